package rpc

import (
	"github.com/marmos91/nfs3client/internal/xdr"
)

// ParseReply validates and strips the RPC envelope from a complete,
// already de-record-marked reply message, returning the remaining bytes
// (the procedure's result-on-success payload) or a typed error from the
// taxonomy in errors.go.
//
// State machine (RFC 5531 §9):
//
//	read xid              -> must equal sentXID, else ErrXidMismatch
//	read msg_type          -> must be Reply, else ErrProtocol
//	read reply_stat
//	  MsgAccepted  -> skip verifier, read accept_stat
//	      Success        -> return remaining bytes
//	      ProgMismatch   -> read low,high -> ErrProgramMismatch
//	      ProgUnavail    -> ErrProgramUnavail
//	      ProcUnavail    -> ErrProcUnavail
//	      GarbageArgs    -> ErrGarbageArgs
//	      other          -> ErrServerFailure
//	  MsgDenied    -> read reject_stat
//	      RPCMismatch -> read low,high -> ErrVersionMismatch
//	      AuthError   -> read auth_stat -> ErrAuthError
func ParseReply(wire []byte, sentXID uint32) ([]byte, error) {
	d := xdr.NewDecoder(wire)

	xid, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if xid != sentXID {
		return nil, ErrXidMismatch(sentXID, xid)
	}

	msgType, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if msgType != Reply {
		return nil, ErrProtocol(msgType)
	}

	replyStat, err := d.Uint32()
	if err != nil {
		return nil, err
	}

	switch replyStat {
	case MsgAccepted:
		return parseAccepted(d)
	case MsgDenied:
		return nil, parseDenied(d)
	default:
		return nil, ErrProtocol(replyStat)
	}
}

func parseAccepted(d *xdr.Decoder) ([]byte, error) {
	if _, err := d.Uint32(); err != nil { // verifier flavor
		return nil, err
	}
	verfLen, err := d.Uint32() // verifier length
	if err != nil {
		return nil, err
	}
	if err := d.Skip(int(verfLen)); err != nil {
		return nil, err
	}

	acceptStat, err := d.Uint32()
	if err != nil {
		return nil, err
	}

	switch acceptStat {
	case AcceptSuccess:
		return d.Rest(), nil
	case AcceptProgMismatch:
		low, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		high, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		return nil, ErrProgramMismatch(low, high)
	case AcceptProgUnavail:
		return nil, ErrProgramUnavail
	case AcceptProcUnavail:
		return nil, ErrProcUnavail
	case AcceptGarbageArgs:
		return nil, ErrGarbageArgs
	default:
		return nil, ErrServerFailure(acceptStat)
	}
}

func parseDenied(d *xdr.Decoder) error {
	rejectStat, err := d.Uint32()
	if err != nil {
		return err
	}
	switch rejectStat {
	case RejectRPCMismatch:
		low, err := d.Uint32()
		if err != nil {
			return err
		}
		high, err := d.Uint32()
		if err != nil {
			return err
		}
		return ErrVersionMismatch(low, high)
	case RejectAuthError:
		stat, err := d.Uint32()
		if err != nil {
			return err
		}
		return ErrAuthError(stat)
	default:
		return ErrProtocol(rejectStat)
	}
}
