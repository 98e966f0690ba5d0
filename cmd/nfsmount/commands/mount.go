package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/nfs3client/pkg/nfsclient"
)

var mountCmd = &cobra.Command{
	Use:   "mount <host:/export>",
	Short: "Mount an export and print its root file handle",
	Long: `Mount resolves the MOUNT program's port via the remote port-mapper,
sends MNT for the given export, and prints the root file handle, then
unmounts.

Example:
  nfsmount mount nfs.example.com:/srv/export`,
	Args: cobra.ExactArgs(1),
	RunE: runMount,
}

func runMount(cmd *cobra.Command, args []string) error {
	host, export, err := parseTarget(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	client, err := nfsclient.Dial(ctx, host,
		nfsclient.WithPortmapPort(flags.PortmapPort),
		nfsclient.WithDialTimeout(flags.DialTimeout),
		nfsclient.WithCallTimeout(flags.CallTimeout),
		nfsclient.WithMetrics(flags.Metrics),
		nfsclient.WithTracing(flags.Tracing),
		nfsclient.WithAuthFlavor(flags.AuthFlavor),
	)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	mnt, err := client.Mount(ctx, export)
	if err != nil {
		return fmt.Errorf("mount %s:%s: %w", host, export, err)
	}
	defer func() { _ = mnt.Close(ctx) }()

	fmt.Printf("mounted %s:%s\n", host, export)
	fmt.Printf("  root handle: %x\n", mnt.Root().Handle())
	return nil
}
