// Package portmap implements the client side of the ONC RPC port-mapper
// protocol (program 100000), specifically PMAPPROC_GETPORT — the lookup
// this client performs before it can reach the MOUNT or NFS service,
// neither of which listens on a fixed port.
package portmap

import (
	"context"
	"fmt"

	"github.com/marmos91/nfs3client/internal/rpc"
	"github.com/marmos91/nfs3client/internal/transport"
	"github.com/marmos91/nfs3client/internal/xdr"
)

// ProtocolTCP is the IPPROTO_TCP value the mapping struct's prot field
// expects; this client only ever asks for TCP endpoints (spec Non-goal:
// no UDP transport).
const ProtocolTCP = uint32(6)

// NotRegisteredError reports that the port-mapper has no TCP endpoint
// registered for (Program, Version), distinct from an RPC-layer failure.
type NotRegisteredError struct {
	Program uint32
	Version uint32
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("portmap: program %d version %d not registered", e.Program, e.Version)
}

// PMAPPROC_GETPORT (RFC 1833 §3, procedure 3 of program 100000 version 2).
const procGetPort = uint32(3)

const portmapVersion = uint32(2)

// GetPort asks the port-mapper reachable over sess for the TCP port
// registered for (prog, vers), returning that port or an error if the
// program is not registered (a GETPORT miss is reported as port 0 by the
// protocol itself, which this function turns into an error since a zero
// port is never usable).
func GetPort(ctx context.Context, sess *transport.Session, prog, vers uint32) (uint32, error) {
	e := xdr.NewEncoder()
	if err := e.PutUint32(prog); err != nil {
		return 0, err
	}
	if err := e.PutUint32(vers); err != nil {
		return 0, err
	}
	if err := e.PutUint32(ProtocolTCP); err != nil {
		return 0, err
	}
	if err := e.PutUint32(0); err != nil { // port, unused in request
		return 0, err
	}

	xid := rpc.NextXID()
	call, err := rpc.BuildCall(xid, rpc.ProgPortmap, portmapVersion, procGetPort, rpc.NullCredential{}, e.Bytes())
	if err != nil {
		return 0, fmt.Errorf("portmap: build GETPORT call: %w", err)
	}

	wireReply, err := sess.Call(ctx, call)
	if err != nil {
		return 0, fmt.Errorf("portmap: GETPORT exchange: %w", err)
	}

	payload, err := rpc.ParseReply(wireReply, xid)
	if err != nil {
		return 0, fmt.Errorf("portmap: GETPORT reply: %w", err)
	}

	d := xdr.NewDecoder(payload)
	port, err := d.Uint32()
	if err != nil {
		return 0, fmt.Errorf("portmap: decode GETPORT result: %w", err)
	}
	if port == 0 {
		return 0, &NotRegisteredError{Program: prog, Version: vers}
	}
	return port, nil
}
