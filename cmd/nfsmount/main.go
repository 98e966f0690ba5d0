// Command nfsmount is a thin demonstration client for pkg/nfsclient: it
// mounts a single NFSv3 export and runs one operation against it (list a
// directory, stat a path, or dump a file to stdout), then exits. It
// exists to exercise the library end to end, not to replace a real NFS
// mount(8).
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/nfs3client/cmd/nfsmount/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
