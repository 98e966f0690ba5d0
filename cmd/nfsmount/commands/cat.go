package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/nfs3client/pkg/nfsclient"
)

// readChunk bounds each READ request issued by cat; large enough to move
// a typical file in a handful of round trips without risking a reply over
// transport.MaxReplySize once fattr3/wcc_data overhead is added in.
const readChunk = uint32(1 << 20)

var catCmd = &cobra.Command{
	Use:   "cat <host:/export> <path>",
	Short: "Print a file's contents to stdout",
	Args:  cobra.ExactArgs(2),
	RunE:  runCat,
}

func runCat(cmd *cobra.Command, args []string) error {
	host, export, err := parseTarget(args[0])
	if err != nil {
		return err
	}
	path := args[1]

	return withMount(cmd.Context(), host, export, func(ctx context.Context, mnt *nfsclient.Mount) error {
		node, err := mnt.Resolve(ctx, path)
		if err != nil {
			return err
		}

		var offset uint64
		for {
			res, err := mnt.Read(ctx, node, offset, readChunk)
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}
			if len(res.Data) > 0 {
				if _, err := os.Stdout.Write(res.Data); err != nil {
					return err
				}
				offset += uint64(len(res.Data))
			}
			if res.EOF {
				return nil
			}
			if len(res.Data) == 0 {
				return fmt.Errorf("read: server returned no data without EOF at offset %d", offset)
			}
		}
	})
}
