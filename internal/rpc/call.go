package rpc

import (
	"github.com/marmos91/nfs3client/internal/xdr"
)

// BuildCall assembles a complete, record-marked RPC CALL message:
//
//	record_mark | xid | msg_type=CALL | rpc_vers=2 | prog | vers | proc |
//	cred_flavor | cred_len | cred_body | verf_flavor=AUTH_NONE | verf_len=0 |
//	procedure_args
//
// The verifier accompanying an outbound call is always AUTH_NONE (spec
// §4.2); only the credential varies. The record_mark's length field is
// back-patched once the whole buffer is known, and the last-fragment bit
// is set since this client never splits a call across fragments.
func BuildCall(xid, prog, vers, proc uint32, cred Credential, args []byte) ([]byte, error) {
	e := xdr.NewEncoder()

	markOffset := e.Len()
	if err := e.PutUint32(0); err != nil { // placeholder, patched below
		return nil, err
	}

	if err := e.PutUint32(xid); err != nil {
		return nil, err
	}
	if err := e.PutUint32(Call); err != nil {
		return nil, err
	}
	if err := e.PutUint32(Version2); err != nil {
		return nil, err
	}
	if err := e.PutUint32(prog); err != nil {
		return nil, err
	}
	if err := e.PutUint32(vers); err != nil {
		return nil, err
	}
	if err := e.PutUint32(proc); err != nil {
		return nil, err
	}

	if err := e.PutUint32(cred.Flavor()); err != nil {
		return nil, err
	}
	credLenOffset := e.Len()
	if err := e.PutUint32(0); err != nil { // placeholder
		return nil, err
	}
	credBodyStart := e.Len()
	if err := cred.Encode(e); err != nil {
		return nil, err
	}
	credLen := e.Len() - credBodyStart
	if err := e.PatchUint32(credLenOffset, uint32(credLen)); err != nil {
		return nil, err
	}

	if err := e.PutUint32(AuthNone); err != nil { // verifier flavor
		return nil, err
	}
	if err := e.PutUint32(0); err != nil { // verifier length
		return nil, err
	}

	if len(args) > 0 {
		if err := e.PutRaw(args); err != nil {
			return nil, err
		}
	}

	totalLen := e.Len() - markOffset - 4
	if err := e.PatchUint32(markOffset, uint32(totalLen)|xdr.LastFragmentBit); err != nil {
		return nil, err
	}

	return e.Bytes(), nil
}
