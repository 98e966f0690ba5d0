// Package rpc implements ONC RPC (RFC 5531) call framing, AUTH_SYS
// credentials, and reply parsing for the three programs this client
// speaks: the port-mapper, MOUNT, and NFS.
package rpc

// Msg type values (RFC 5531 §9).
const (
	Call  = uint32(0)
	Reply = uint32(1)
)

// RPC version carried on every CALL header.
const Version2 = uint32(2)

// Auth flavors (RFC 5531 §8.2). AUTH_NONE and AUTH_SYS are implemented;
// the rest are recognized so that NewCredentialForFlavor can refuse them
// with ErrAuthNotSupported before anything reaches the wire.
const (
	AuthNone  = uint32(0)
	AuthSys   = uint32(1)
	AuthShort = uint32(2)
	AuthDES   = uint32(3)
	AuthGSS   = uint32(6)
)

// reply_stat values.
const (
	MsgAccepted = uint32(0)
	MsgDenied   = uint32(1)
)

// accept_stat values, valid when reply_stat == MsgAccepted.
const (
	AcceptSuccess      = uint32(0)
	AcceptProgUnavail  = uint32(1)
	AcceptProgMismatch = uint32(2)
	AcceptProcUnavail  = uint32(3)
	AcceptGarbageArgs  = uint32(4)
	AcceptSystemErr    = uint32(5)
)

// reject_stat values, valid when reply_stat == MsgDenied.
const (
	RejectRPCMismatch = uint32(0)
	RejectAuthError   = uint32(1)
)

// auth_stat values, valid when reject_stat == RejectAuthError.
const (
	AuthOK            = uint32(0)
	AuthBadCred       = uint32(1)
	AuthRejectedCred  = uint32(2)
	AuthBadVerf       = uint32(3)
	AuthRejectedVerf  = uint32(4)
	AuthTooWeak       = uint32(5)
	AuthInvalidResp   = uint32(6)
	AuthFailed        = uint32(7)
	RPCSecGSSCredProb = uint32(13)
	RPCSecGSSCtxProb  = uint32(14)
)

// Well-known RPC program numbers.
const (
	ProgPortmap = uint32(100000)
	ProgNFS     = uint32(100003)
	ProgMount   = uint32(100005)
	ProgNLM     = uint32(100021)
)

// RecordMarkOversizeLimit is a 1 MiB fragment-length bound sized for
// port-mapper and MOUNT replies. Session.Call does not consult it: every
// reply, whatever its program, is checked against the fixed 4 MiB
// transport.MaxReplySize instead.
const RecordMarkOversizeLimit = 1 << 20 // 1 MiB
