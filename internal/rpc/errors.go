package rpc

import "fmt"

// Error is the common shape for every RPC-layer failure: a numeric code
// (an accept_stat, reject_stat, or a client-assigned sentinel) plus a
// human-readable message and an optional wrapped cause.
type Error struct {
	Kind    string
	Code    uint32
	Msg     string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("rpc: %s: %s: %v", e.Kind, e.Msg, e.Wrapped)
	}
	return fmt.Sprintf("rpc: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

func newErr(kind, msg string, code uint32) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Transport-layer failures: the reply arrived but cannot be trusted.
var (
	// ErrXidMismatch is returned when a REPLY's xid does not equal the xid
	// of the CALL it was read in response to.
	ErrXidMismatch = func(sent, got uint32) *Error {
		return newErr("RpcXidMismatch", fmt.Sprintf("sent xid %d, got %d", sent, got), got)
	}
	// ErrOversize is returned when a record-mark claims a fragment length
	// beyond the configured sanity bound.
	ErrOversize = func(n uint32) *Error {
		return newErr("RpcOversize", fmt.Sprintf("fragment length %d exceeds limit", n), n)
	}
	// ErrProtocol is returned when the reply's msg_type is not REPLY.
	ErrProtocol = func(msgType uint32) *Error {
		return newErr("RpcProtocol", fmt.Sprintf("unexpected msg_type %d", msgType), msgType)
	}
)

// MSG_DENIED rejections.
var (
	ErrVersionMismatch = func(low, high uint32) *Error {
		return &Error{Kind: "RpcVersionMismatch", Msg: fmt.Sprintf("server supports versions %d..%d", low, high)}
	}
	ErrAuthError = func(stat uint32) *Error {
		return newErr("RpcAuthError", authStatString(stat), stat)
	}
)

// MSG_ACCEPTED replies whose accept_stat reports a failure.
var (
	ErrProgramUnavail = newErr("RpcProgramUnavail", "remote has not exported this program", AcceptProgUnavail)
	ErrProgramMismatch = func(low, high uint32) *Error {
		return &Error{Kind: "RpcProgramMismatch", Msg: fmt.Sprintf("remote supports versions %d..%d", low, high)}
	}
	ErrProcUnavail    = newErr("RpcProcUnavail", "program does not support this procedure", AcceptProcUnavail)
	ErrGarbageArgs    = newErr("RpcGarbageArgs", "procedure could not decode arguments", AcceptGarbageArgs)
	ErrServerFailure  = func(code uint32) *Error { return newErr("RpcServerFailure", "server-side failure", code) }
)

// Client-side policy errors, raised before any bytes reach the wire.
// Handle and name policy errors live with the NFS operations that raise
// them; only the auth-flavor refusal belongs to this layer.
var ErrAuthNotSupported = newErr("AuthNotSupported", "auth flavor not implemented by this client", 0)

func authStatString(stat uint32) string {
	switch stat {
	case AuthBadCred:
		return "bad credential"
	case AuthRejectedCred:
		return "rejected credential, client must begin a new session"
	case AuthBadVerf:
		return "bad verifier"
	case AuthRejectedVerf:
		return "verifier expired or replayed"
	case AuthTooWeak:
		return "auth flavor too weak for this server"
	case AuthInvalidResp:
		return "bogus verifier in response"
	case AuthFailed:
		return "authentication failed for an unspecified reason"
	case RPCSecGSSCredProb:
		return "no RPCSEC_GSS credentials for user"
	case RPCSecGSSCtxProb:
		return "problem with RPCSEC_GSS context"
	default:
		return fmt.Sprintf("auth_stat %d", stat)
	}
}
