package mount

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

type fakeMountServer struct {
	ln        net.Listener
	status    uint32
	handle    []byte
	authFlavs []uint32
}

func startFakeMountServer(t *testing.T, status uint32, handle []byte, authFlavs []uint32) *fakeMountServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeMountServer{ln: ln, status: status, handle: handle, authFlavs: authFlavs}
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeMountServer) serve() {
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	for {
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
		proc := binary.BigEndian.Uint32(body[20:24])

		e := xdr.NewEncoder()
		_ = e.PutUint32(xid)
		_ = e.PutUint32(1) // REPLY
		_ = e.PutUint32(0) // MSG_ACCEPTED
		_ = e.PutUint32(0) // verf flavor
		_ = e.PutUint32(0) // verf len
		_ = e.PutUint32(0) // accept_stat SUCCESS

		if proc == ProcMnt {
			_ = e.PutUint32(f.status)
			if f.status == StatusOK {
				_ = e.PutOpaque(f.handle)
				_ = e.PutUint32(uint32(len(f.authFlavs)))
				for _, flav := range f.authFlavs {
					_ = e.PutUint32(flav)
				}
			}
		}
		// ProcUmnt reply body is empty (void).

		out := e.Bytes()
		outHeader := make([]byte, 4)
		binary.BigEndian.PutUint32(outHeader, uint32(len(out))|0x80000000)
		if _, err := conn.Write(outHeader); err != nil {
			return
		}
		if _, err := conn.Write(out); err != nil {
			return
		}
	}
}

func dialMountSession(t *testing.T, f *fakeMountServer) *transport.Session {
	t.Helper()
	addr := f.ln.Addr().(*net.TCPAddr)
	sess := transport.NewSession(addr.IP.String(), addr.Port)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sess.Connect(ctx))
	t.Cleanup(func() { _ = sess.Disconnect() })
	return sess
}

func TestMountSuccess(t *testing.T) {
	handle := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	f := startFakeMountServer(t, StatusOK, handle, []uint32{0, 1})
	sess := dialMountSession(t, f)

	result, err := Mount(context.Background(), sess, "/export/data")
	require.NoError(t, err)
	assert.Equal(t, handle, result.RootHandle)
	assert.Equal(t, []uint32{0, 1}, result.AuthFlavors)
}

func TestMountAccessDenied(t *testing.T) {
	f := startFakeMountServer(t, ErrAccess, nil, nil)
	sess := dialMountSession(t, f)

	_, err := Mount(context.Background(), sess, "/export/private")
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, ErrAccess, statusErr.Status)
}

func TestMountNoSuchExport(t *testing.T) {
	f := startFakeMountServer(t, ErrNoEnt, nil, nil)
	sess := dialMountSession(t, f)

	_, err := Mount(context.Background(), sess, "/export/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such export")
}

func TestUnmountSuccess(t *testing.T) {
	f := startFakeMountServer(t, StatusOK, []byte{1}, []uint32{0})
	sess := dialMountSession(t, f)

	err := Unmount(context.Background(), sess, "/export/data")
	require.NoError(t, err)
}
