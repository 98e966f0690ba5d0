// Package transport owns the single TCP connection this client keeps open
// to a remote RPC service at a time, and the send-call/receive-reply
// exchange every higher-level protocol (port-mapper, MOUNT, NFS) drives
// through it.
//
// One socket, one mutex guarding both the socket handle and the
// send/receive sequence, connect-refuses-if-already-open semantics, and
// a receive timeout applied via a socket option in addition to per-call
// read deadlines.
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/marmos91/nfs3client/internal/rpc"
	"github.com/marmos91/nfs3client/internal/xdr"
)

// DefaultReceiveTimeout is the SO_RCVTIMEO applied to every read on the
// session socket unless overridden with SetReceiveTimeout.
const DefaultReceiveTimeout = 5 * time.Second

// MaxReplySize bounds the record-mark fragment length this client accepts
// in a reply (READ results can be large); replies claiming more are
// rejected before any allocation. Session.Call applies this one bound to
// every reply, port-mapper and MOUNT replies included; it does not consult
// rpc.RecordMarkOversizeLimit, and the bound is not configurable.
const MaxReplySize = 4 << 20 // 4 MiB

// Session is a single TCP connection to one RPC service, reused across
// calls until SwitchTo or Disconnect tears it down. The zero value is not
// usable; construct with NewSession.
type Session struct {
	mu sync.Mutex

	host string
	port int

	conn net.Conn

	totalSent     uint64
	totalReceived uint64

	recvTimeout time.Duration
	cred        rpc.Credential
	metrics     ByteMetrics
}

// ByteMetrics receives the session's wire traffic totals as they happen.
// Implemented by telemetry.SessionMetrics; a nil interface means no
// instrumentation.
type ByteMetrics interface {
	AddBytesSent(n uint64)
	AddBytesReceived(n uint64)
}

// NewSession returns a Session targeting host, initially pointed at
// portmapPort (the well-known port-mapper port, typically 111). Callers
// reassign the port with SwitchTo once a real service port is resolved.
func NewSession(host string, portmapPort int) *Session {
	return &Session{
		host:        host,
		port:        portmapPort,
		recvTimeout: DefaultReceiveTimeout,
		cred:        rpc.NewUnixCredential(),
	}
}

// SetReceiveTimeout overrides the SO_RCVTIMEO applied on the next Connect
// or SwitchTo; it has no effect on an already-open socket. Must be called
// before the first Connect to take effect on the initial connection.
func (s *Session) SetReceiveTimeout(timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recvTimeout = timeout
}

// SetCredential overrides the credential MOUNT/NFS calls on this session
// announce (default: AUTH_SYS via rpc.NewUnixCredential). A session
// configured to offer AUTH_NONE against an export that requires AUTH_SYS
// sees the server's auth rejection, never a silently-upgraded credential.
func (s *Session) SetCredential(cred rpc.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
}

// SetMetrics attaches a sink for the session's per-direction byte
// totals. Pass nil to detach.
func (s *Session) SetMetrics(m ByteMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// Credential returns the credential this session currently announces on
// outbound CALLs.
func (s *Session) Credential() rpc.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred
}

// Connect opens the TCP connection to the session's current host:port.
// Refuses to reconnect an already-open socket.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

func (s *Session) connectLocked(ctx context.Context) error {
	if s.conn != nil {
		return fmt.Errorf("transport: session already connected to %s:%d", s.host, s.port)
	}

	var dialer net.Dialer
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port)))
	if err != nil {
		return fmt.Errorf("transport: dial %s:%d: %w", s.host, s.port, err)
	}

	if err := setRecvTimeout(conn, s.recvTimeout); err != nil {
		_ = conn.Close()
		return fmt.Errorf("transport: set receive timeout: %w", err)
	}

	s.conn = conn
	s.totalSent = 0
	s.totalReceived = 0
	return nil
}

// SwitchTo reconnects the session to the same host on a different port.
// A no-op when the session is already connected to port, so consecutive
// calls against the same service reuse the open socket. Used once the
// port-mapper has resolved the MOUNT or NFS service port.
func (s *Session) SwitchTo(ctx context.Context, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if port == s.port && s.conn != nil {
		return nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.port = port
	return s.connectLocked(ctx)
}

// Disconnect closes the socket, if open, resetting byte counters.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.totalSent = 0
	s.totalReceived = 0
	return err
}

// Stats returns the cumulative bytes sent and received on the currently
// open socket. Connect and SwitchTo start the counts at zero, and
// Disconnect resets them to zero.
func (s *Session) Stats() (sent, received uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalSent, s.totalReceived
}

// Call sends a pre-built, record-marked RPC message and returns the
// de-record-marked reply bytes, holding the session mutex for the whole
// send-then-receive exchange: at most one call is in flight per session,
// and nothing else may write to or read from the socket between a call
// and its matching reply.
func (s *Session) Call(ctx context.Context, wireCall []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil, fmt.Errorf("transport: not connected")
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := s.conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("transport: set deadline: %w", err)
		}
	}

	if err := s.sendLocked(wireCall); err != nil {
		return nil, err
	}
	return s.receiveLocked()
}

func (s *Session) sendLocked(wireCall []byte) error {
	if len(wireCall) == 0 {
		return fmt.Errorf("transport: empty send")
	}
	n, err := s.conn.Write(wireCall)
	if err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	s.totalSent += uint64(n)
	if s.metrics != nil {
		s.metrics.AddBytesSent(uint64(n))
	}
	return nil
}

func (s *Session) receiveLocked() ([]byte, error) {
	var header [4]byte
	if err := readFull(s.conn, header[:]); err != nil {
		return nil, fmt.Errorf("transport: read record mark: %w", err)
	}
	s.totalReceived += 4

	fragLen, err := stripRecordMark(header[:])
	if err != nil {
		return nil, err
	}
	if fragLen > MaxReplySize {
		return nil, rpc.ErrOversize(fragLen)
	}

	body := make([]byte, fragLen)
	if err := readFull(s.conn, body); err != nil {
		return nil, fmt.Errorf("transport: read reply body: %w", err)
	}
	s.totalReceived += uint64(len(body))
	if s.metrics != nil {
		s.metrics.AddBytesReceived(4 + uint64(len(body)))
	}

	return body, nil
}

func stripRecordMark(header []byte) (uint32, error) {
	if err := xdr.StripLastFragment(header); err != nil {
		return 0, err
	}
	d := xdr.NewDecoder(header)
	return d.Uint32()
}

func readFull(conn net.Conn, buf []byte) error {
	for read := 0; read < len(buf); {
		n, err := conn.Read(buf[read:])
		if err != nil {
			return err
		}
		read += n
	}
	return nil
}

// setRecvTimeout applies SO_RCVTIMEO directly via the connection's raw
// file descriptor. Call still layers a context-derived SetDeadline on
// top for cancellation; this socket option is the floor that applies
// even between explicit Call invocations (e.g. while a caller holds the
// session idle).
func setRecvTimeout(conn net.Conn, timeout time.Duration) error {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return err
	}

	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptTimeval(int(fd), unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
	}); err != nil {
		return err
	}
	return sockErr
}
