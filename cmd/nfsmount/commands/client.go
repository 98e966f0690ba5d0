package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/nfs3client/pkg/nfsclient"
)

// withMount dials host, mounts export, runs fn against the resulting
// Mount, and unwinds (Mount.Close then Client.Close) regardless of fn's
// outcome. The ls, stat and cat subcommands are one-shot invocations of
// this; mount dials and mounts on its own.
func withMount(ctx context.Context, host, export string, fn func(context.Context, *nfsclient.Mount) error) error {
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

	return fn(ctx, mnt)
}
