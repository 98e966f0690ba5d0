// Package mount implements the client side of the MOUNT protocol (RPC
// program 100005, version 3): MNT to obtain a root file handle for an
// export, and UMNT to release it.
//
// Flow: connect to the MOUNT port, send MNT/UMNT with the export path,
// decode fhstatus3 on MNT.
package mount

import (
	"bytes"
	"context"
	"fmt"

	goxdr "github.com/rasky/go-xdr/xdr2"

	"github.com/marmos91/nfs3client/internal/rpc"
	"github.com/marmos91/nfs3client/internal/transport"
	"github.com/marmos91/nfs3client/internal/xdr"
)

// Mount protocol procedure numbers (RFC 1813 Appendix I).
const (
	ProcNull    = uint32(0)
	ProcMnt     = uint32(1)
	ProcDump    = uint32(2)
	ProcUmnt    = uint32(3)
	ProcUmntAll = uint32(4)
	ProcExport  = uint32(5)
)

// Mount status codes (mountstat3).
const (
	StatusOK       = uint32(0)
	ErrPerm        = uint32(1)
	ErrNoEnt       = uint32(2)
	ErrIO          = uint32(5)
	ErrAccess      = uint32(13)
	ErrNotDir      = uint32(20)
	ErrInval       = uint32(22)
	ErrNameTooLong = uint32(63)
	ErrNotSupp     = uint32(10004)
	ErrServerFault = uint32(10006)
)

// MountVersion is the only MOUNT protocol version this client speaks.
const MountVersion = uint32(3)

// maxHandleSize is the largest file handle the NFSv3 MOUNT reply may
// carry (spec "File handle" data model: ≤64 bytes).
const maxHandleSize = 64

// Result is the decoded response to a successful MNT call.
type Result struct {
	RootHandle  []byte
	AuthFlavors []uint32
}

// StatusError reports a non-OK fhstatus3 from the MOUNT server.
type StatusError struct {
	Status uint32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mount: MNT failed with status %d (%s)", e.Status, statusString(e.Status))
}

func statusString(status uint32) string {
	switch status {
	case ErrPerm:
		return "not owner"
	case ErrNoEnt:
		return "no such export"
	case ErrIO:
		return "I/O error"
	case ErrAccess:
		return "access denied"
	case ErrNotDir:
		return "not a directory"
	case ErrInval:
		return "invalid argument"
	case ErrNameTooLong:
		return "export path too long"
	case ErrNotSupp:
		return "not supported"
	case ErrServerFault:
		return "server fault"
	default:
		return "unknown"
	}
}

// Mount sends MOUNTPROC3_MNT for export over sess (which must already be
// connected to the remote MOUNT port, e.g. via portmap.GetPort followed
// by Session.SwitchTo) and returns the root file handle and the auth
// flavors the server is willing to accept on it.
func Mount(ctx context.Context, sess *transport.Session, export string) (*Result, error) {
	e := xdr.NewEncoder()
	if err := e.PutString(export); err != nil {
		return nil, err
	}

	xid := rpc.NextXID()
	call, err := rpc.BuildCall(xid, rpc.ProgMount, MountVersion, ProcMnt, sess.Credential(), e.Bytes())
	if err != nil {
		return nil, fmt.Errorf("mount: build MNT call: %w", err)
	}

	wireReply, err := sess.Call(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("mount: MNT exchange: %w", err)
	}

	payload, err := rpc.ParseReply(wireReply, xid)
	if err != nil {
		return nil, fmt.Errorf("mount: MNT reply: %w", err)
	}

	d := xdr.NewDecoder(payload)
	status, err := d.Uint32()
	if err != nil {
		return nil, fmt.Errorf("mount: decode status: %w", err)
	}
	if status != StatusOK {
		return nil, &StatusError{Status: status}
	}

	handle, err := d.Opaque(maxHandleSize)
	if err != nil {
		return nil, fmt.Errorf("mount: decode root handle: %w", err)
	}

	// The trailing auth-flavor list is a plain XDR varlen array of
	// uint32 with no further discriminated-union structure, so it goes
	// through go-xdr's reflection-based Unmarshal rather than one more
	// hand-rolled length-prefixed loop.
	var flavorList authFlavorList
	if _, err := goxdr.Unmarshal(bytes.NewReader(d.Rest()), &flavorList); err != nil {
		return nil, fmt.Errorf("mount: decode auth flavors: %w", err)
	}

	return &Result{RootHandle: handle, AuthFlavors: flavorList.Flavors}, nil
}

// authFlavorList is the wire shape of MNT's trailing auth_flavors field:
// a standard XDR variable-length array, decoded via go-xdr's struct-tag
// driven reflection instead of a hand-rolled loop.
type authFlavorList struct {
	Flavors []uint32
}

// Unmount sends MOUNTPROC3_UMNT for export, releasing the server-side
// mount entry. UMNT's reply is void: any accepted reply means success.
func Unmount(ctx context.Context, sess *transport.Session, export string) error {
	e := xdr.NewEncoder()
	if err := e.PutString(export); err != nil {
		return err
	}

	xid := rpc.NextXID()
	call, err := rpc.BuildCall(xid, rpc.ProgMount, MountVersion, ProcUmnt, sess.Credential(), e.Bytes())
	if err != nil {
		return fmt.Errorf("mount: build UMNT call: %w", err)
	}

	wireReply, err := sess.Call(ctx, call)
	if err != nil {
		return fmt.Errorf("mount: UMNT exchange: %w", err)
	}

	if _, err := rpc.ParseReply(wireReply, xid); err != nil {
		return fmt.Errorf("mount: UMNT reply: %w", err)
	}
	return nil
}
