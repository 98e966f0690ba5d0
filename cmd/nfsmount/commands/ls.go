package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/nfs3client/pkg/nfsclient"
)

var lsCmd = &cobra.Command{
	Use:   "ls <host:/export> [path]",
	Short: "List a directory",
	Long: `List resolves path (the export root if omitted) and issues READDIR
against it, paging through cookies until the server reports EOF.

Example:
  nfsmount ls nfs.example.com:/srv/export some/subdir`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runLs,
}

func runLs(cmd *cobra.Command, args []string) error {
	host, export, err := parseTarget(args[0])
	if err != nil {
		return err
	}
	path := ""
	if len(args) == 2 {
		path = args[1]
	}

	return withMount(cmd.Context(), host, export, func(ctx context.Context, mnt *nfsclient.Mount) error {
		dir, err := mnt.Resolve(ctx, path)
		if err != nil {
			return err
		}

		var cookie uint64
		var verf [8]byte
		for {
			res, err := mnt.Readdir(ctx, dir, cookie, verf)
			if err != nil {
				return fmt.Errorf("readdir: %w", err)
			}
			for _, entry := range res.Entries {
				if entry.Name == "." || entry.Name == ".." {
					continue
				}
				fmt.Println(entry.Name)
			}
			if res.EOF || len(res.Entries) == 0 {
				break
			}
			cookie = res.Entries[len(res.Entries)-1].Cookie
			verf = res.CookieVerf
		}
		return nil
	})
}
