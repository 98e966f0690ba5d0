package portmap

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/marmos91/nfs3client/internal/transport"
	"github.com/marmos91/nfs3client/internal/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePortmapper answers exactly one GETPORT call, returning the
// configured port (or triggering a protocol-level failure if
// failAcceptStat is non-zero).
type fakePortmapper struct {
	ln             net.Listener
	respondPort    uint32
	failAcceptStat uint32
}

func startFakePortmapper(t *testing.T, respondPort uint32) *fakePortmapper {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakePortmapper{ln: ln, respondPort: respondPort}
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakePortmapper) serve() {
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	var header [4]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return
	}
	fragLen := binary.BigEndian.Uint32(header[:]) & 0x7fffffff
	body := make([]byte, fragLen)
	if _, err := io.ReadFull(conn, body); err != nil {
		return
	}
	xid := binary.BigEndian.Uint32(body[0:4])

	e := xdr.NewEncoder()
	_ = e.PutUint32(xid)
	_ = e.PutUint32(1) // REPLY
	_ = e.PutUint32(0) // MSG_ACCEPTED
	_ = e.PutUint32(0) // verf flavor
	_ = e.PutUint32(0) // verf len
	if f.failAcceptStat != 0 {
		_ = e.PutUint32(f.failAcceptStat)
	} else {
		_ = e.PutUint32(0) // SUCCESS
		_ = e.PutUint32(f.respondPort)
	}

	out := e.Bytes()
	outHeader := make([]byte, 4)
	binary.BigEndian.PutUint32(outHeader, uint32(len(out))|0x80000000)
	_, _ = conn.Write(outHeader)
	_, _ = conn.Write(out)
}

func dialSession(t *testing.T, f *fakePortmapper) *transport.Session {
	t.Helper()
	addr := f.ln.Addr().(*net.TCPAddr)
	sess := transport.NewSession(addr.IP.String(), addr.Port)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sess.Connect(ctx))
	t.Cleanup(func() { _ = sess.Disconnect() })
	return sess
}

func TestGetPortSuccess(t *testing.T) {
	f := startFakePortmapper(t, 20048)
	sess := dialSession(t, f)

	port, err := GetPort(context.Background(), sess, 100003, 3)
	require.NoError(t, err)
	assert.Equal(t, uint32(20048), port)
}

func TestGetPortZeroIsUnregistered(t *testing.T) {
	f := startFakePortmapper(t, 0)
	sess := dialSession(t, f)

	_, err := GetPort(context.Background(), sess, 100005, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestGetPortServerFailure(t *testing.T) {
	f := startFakePortmapper(t, 0)
	f.failAcceptStat = 5 // SYSTEM_ERR
	sess := dialSession(t, f)

	_, err := GetPort(context.Background(), sess, 100003, 3)
	require.Error(t, err)
}
