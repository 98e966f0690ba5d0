package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/nfs3client/internal/nfsops"
	"github.com/marmos91/nfs3client/pkg/nfsclient"
)

var statCmd = &cobra.Command{
	Use:   "stat <host:/export> <path>",
	Short: "Print a file or directory's attributes",
	Args:  cobra.ExactArgs(2),
	RunE:  runStat,
}

func runStat(cmd *cobra.Command, args []string) error {
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
		attr, err := mnt.Getattr(ctx, node)
		if err != nil {
			return fmt.Errorf("getattr: %w", err)
		}
		printAttr(path, attr)
		return nil
	})
}

func printAttr(path string, attr *nfsops.FileAttr) {
	fmt.Printf("%s\n", path)
	fmt.Printf("  type:  %s\n", fileTypeString(attr.Type))
	fmt.Printf("  mode:  %04o\n", attr.Mode)
	fmt.Printf("  nlink: %d\n", attr.Nlink)
	fmt.Printf("  uid:   %d\n", attr.UID)
	fmt.Printf("  gid:   %d\n", attr.GID)
	fmt.Printf("  size:  %d\n", attr.Size)
	fmt.Printf("  mtime: %s\n", time.Unix(int64(attr.Mtime.Seconds), int64(attr.Mtime.Nseconds)).UTC())
}

func fileTypeString(t uint32) string {
	switch t {
	case nfsops.FileTypeReg:
		return "regular file"
	case nfsops.FileTypeDir:
		return "directory"
	case nfsops.FileTypeBlk:
		return "block device"
	case nfsops.FileTypeChr:
		return "character device"
	case nfsops.FileTypeLnk:
		return "symbolic link"
	case nfsops.FileTypeSock:
		return "socket"
	case nfsops.FileTypeFifo:
		return "fifo"
	default:
		return "unknown"
	}
}
