package rpc

import (
	"fmt"

	"github.com/marmos91/nfs3client/internal/xdr"
)

// MaxAuxGids bounds the auxiliary gid list accepted when parsing an
// AUTH_SYS credential body (RFC 5531 caps the array at 16 entries). Not
// used when building our own credential, which always sends exactly one
// aux gid of 0.
const MaxAuxGids = 16

// Credential is anything that can encode itself as an RPC credential body
// plus the flavor tag it should be announced under.
type Credential interface {
	Flavor() uint32
	Encode(e *xdr.Encoder) error
}

// NullCredential is AUTH_NONE: flavor 0, zero-length opaque body. It is
// always used as the verifier on outbound CALLs and can be used as the
// credential itself for anonymous access.
type NullCredential struct{}

func (NullCredential) Flavor() uint32 { return AuthNone }
func (NullCredential) Encode(e *xdr.Encoder) error { return nil }

// NewCredentialForFlavor builds the Credential a Session should announce
// for flavor. AUTH_NONE and AUTH_SYS are implemented; AUTH_SHORT,
// AUTH_DH, and RPCSEC_GSS are recognized but refused with
// ErrAuthNotSupported rather than silently downgraded — a caller that
// asks for a flavor this client cannot speak must find out before any
// bytes reach the wire, not after a server-side rejection it could have
// predicted locally.
func NewCredentialForFlavor(flavor uint32) (Credential, error) {
	switch flavor {
	case AuthNone:
		return NullCredential{}, nil
	case AuthSys:
		return NewUnixCredential(), nil
	case AuthShort, AuthDES, AuthGSS:
		return nil, ErrAuthNotSupported
	default:
		return nil, ErrAuthNotSupported
	}
}

// UnixCredential is AUTH_SYS: (stamp, machine-name, uid, gid, aux-gids).
type UnixCredential struct {
	Stamp       uint32
	MachineName string
	UID         uint32
	GID         uint32
	AuxGIDs     []uint32
}

// NewUnixCredential builds the standard root AUTH_SYS credential this
// client sends on every CALL: uid=0, gid=0, one auxiliary gid of 0,
// stamp drawn from the XID counter and machine name set to the cached
// local FQDN.
func NewUnixCredential() *UnixCredential {
	return &UnixCredential{
		Stamp:       NextXID(),
		MachineName: LocalFQDN(),
		UID:         0,
		GID:         0,
		AuxGIDs:     []uint32{0},
	}
}

func (c *UnixCredential) Flavor() uint32 { return AuthSys }

func (c *UnixCredential) Encode(e *xdr.Encoder) error {
	if err := e.PutUint32(c.Stamp); err != nil {
		return err
	}
	if err := e.PutString(c.MachineName); err != nil {
		return err
	}
	if err := e.PutUint32(c.UID); err != nil {
		return err
	}
	if err := e.PutUint32(c.GID); err != nil {
		return err
	}
	if err := e.PutUint32(uint32(len(c.AuxGIDs))); err != nil {
		return err
	}
	for _, gid := range c.AuxGIDs {
		if err := e.PutUint32(gid); err != nil {
			return err
		}
	}
	return nil
}

func (c *UnixCredential) String() string {
	return fmt.Sprintf("AUTH_SYS{machine=%s uid=%d gid=%d aux=%v}", c.MachineName, c.UID, c.GID, c.AuxGIDs)
}

// ParseUnixCredential decodes an AUTH_SYS credential body, the inverse
// of UnixCredential.Encode.
func ParseUnixCredential(body []byte) (*UnixCredential, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("rpc: empty AUTH_SYS body")
	}
	d := xdr.NewDecoder(body)
	stamp, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	name, err := d.String(255)
	if err != nil {
		return nil, fmt.Errorf("rpc: machine name too long or truncated: %w", err)
	}
	uid, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	gid, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if n > MaxAuxGids {
		return nil, fmt.Errorf("rpc: too many gids: %d", n)
	}
	gids := make([]uint32, 0, n)
	for i := uint32(0); i < n; i++ {
		g, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		gids = append(gids, g)
	}
	return &UnixCredential{Stamp: stamp, MachineName: name, UID: uid, GID: gid, AuxGIDs: gids}, nil
}
