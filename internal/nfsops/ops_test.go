package nfsops

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

// fakeNFSServer dispatches one canned response per procedure, keyed by
// proc number, for exactly as many calls as the test issues.
type fakeNFSServer struct {
	ln       net.Listener
	handlers map[uint32]func(body []byte) []byte
}

func startFakeNFSServer(t *testing.T) *fakeNFSServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeNFSServer{ln: ln, handlers: map[uint32]func(body []byte) []byte{}}
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeNFSServer) serve() {
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

		handler, ok := f.handlers[proc]
		if !ok {
			return
		}

		// Skip cred (flavor+len+body) and verifier (flavor+len) to find
		// the procedure args, same layout internal/rpc.BuildCall writes.
		credLen := binary.BigEndian.Uint32(body[28:32])
		argsOffset := 32 + int(credLen) + 8
		procResult := handler(body[argsOffset:])

		e := xdr.NewEncoder()
		_ = e.PutUint32(xid)
		_ = e.PutUint32(1) // REPLY
		_ = e.PutUint32(0) // MSG_ACCEPTED
		_ = e.PutUint32(0) // verf flavor
		_ = e.PutUint32(0) // verf len
		_ = e.PutUint32(0) // accept_stat SUCCESS
		_ = e.PutRaw(procResult)

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

func dialNFSSession(t *testing.T, f *fakeNFSServer) *transport.Session {
	t.Helper()
	addr := f.ln.Addr().(*net.TCPAddr)
	sess := transport.NewSession(addr.IP.String(), addr.Port)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sess.Connect(ctx))
	t.Cleanup(func() { _ = sess.Disconnect() })
	return sess
}

func sampleAttr() *FileAttr {
	return &FileAttr{
		Type: FileTypeReg, Mode: 0644, Nlink: 1, UID: 0, GID: 0,
		Size: 1024, Used: 1024, Fsid: 1, Fileid: 42,
	}
}

func withStatusOK(body func(e *xdr.Encoder)) []byte {
	e := xdr.NewEncoder()
	_ = e.PutUint32(StatusOK)
	body(e)
	return e.Bytes()
}

func TestSanitizeName(t *testing.T) {
	cleaned := func(name string) string {
		t.Helper()
		got, err := sanitizeName(name)
		require.NoError(t, err)
		return got
	}
	rejected := func(name string) error {
		t.Helper()
		_, err := sanitizeName(name)
		return err
	}

	assert.Equal(t, "file.txt", cleaned("file.txt"))
	// "." is a legitimate self-reference LOOKUP (NFS3 defines
	// LOOKUP(dir, ".") == dir) and must not be rejected.
	assert.Equal(t, ".", cleaned("."))

	// A leading "./" and any trailing "/" are scrubbed, not rejected.
	assert.Equal(t, "child", cleaned("./child"))
	assert.Equal(t, "child", cleaned("child/"))
	assert.Equal(t, "child", cleaned("./child/"))

	assert.True(t, IsInvalidName(rejected("")))
	assert.True(t, IsInvalidName(rejected("./")))
	assert.True(t, IsInvalidName(rejected("a/b")))
	assert.True(t, IsInvalidName(rejected("..")))
	assert.True(t, IsInvalidName(rejected("./../etc")))
}

func TestLookupSuccess(t *testing.T) {
	f := startFakeNFSServer(t)
	handle := []byte{1, 2, 3, 4}
	f.handlers[ProcLookup] = func(body []byte) []byte {
		return withStatusOK(func(e *xdr.Encoder) {
			_ = e.PutOpaque(handle)
			_ = e.PutBool(true)
			_ = encodeFileAttr(e, sampleAttr())
			_ = e.PutBool(false)
		})
	}
	sess := dialNFSSession(t, f)

	result, err := Lookup(context.Background(), sess, Handle{0xAA}, "child")
	require.NoError(t, err)
	assert.Equal(t, Handle(handle), result.Handle)
	require.NotNil(t, result.ObjAttr)
	assert.Equal(t, uint64(1024), result.ObjAttr.Size)
	assert.Nil(t, result.DirAttr)
}

func TestLookupRejectsBadName(t *testing.T) {
	sess := &transport.Session{}
	_, err := Lookup(context.Background(), sess, Handle{0xAA}, "../etc")
	require.Error(t, err)
}

func TestCheckHandleRejectsOversizeHandle(t *testing.T) {
	sess := &transport.Session{}
	oversize := make(Handle, maxHandleSize+1)

	_, err := Lookup(context.Background(), sess, oversize, "file.txt")
	require.Error(t, err)
	var policyErr *Error
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, "HandleTooLong", policyErr.Kind)

	_, err = Getattr(context.Background(), sess, oversize)
	require.Error(t, err)
	require.ErrorAs(t, err, &policyErr)
}

func TestLookupNotFound(t *testing.T) {
	f := startFakeNFSServer(t)
	f.handlers[ProcLookup] = func(body []byte) []byte {
		e := xdr.NewEncoder()
		_ = e.PutUint32(ErrNoEnt)
		return e.Bytes()
	}
	sess := dialNFSSession(t, f)

	_, err := Lookup(context.Background(), sess, Handle{0xAA}, "missing")
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, ErrNoEnt, statusErr.Status)
}

func TestGetattrSuccess(t *testing.T) {
	f := startFakeNFSServer(t)
	f.handlers[ProcGetattr] = func(body []byte) []byte {
		return withStatusOK(func(e *xdr.Encoder) {
			_ = encodeFileAttr(e, sampleAttr())
		})
	}
	sess := dialNFSSession(t, f)

	attr, err := Getattr(context.Background(), sess, Handle{0x01})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), attr.Fileid)
}

func TestGetattrStale(t *testing.T) {
	f := startFakeNFSServer(t)
	f.handlers[ProcGetattr] = func(body []byte) []byte {
		e := xdr.NewEncoder()
		_ = e.PutUint32(ErrStale)
		return e.Bytes()
	}
	sess := dialNFSSession(t, f)

	_, err := Getattr(context.Background(), sess, Handle{0x01})
	require.Error(t, err)
	assert.True(t, IsStale(err))
}

func TestReadWriteRoundTrip(t *testing.T) {
	f := startFakeNFSServer(t)
	f.handlers[ProcWrite] = func(body []byte) []byte {
		return withStatusOK(func(e *xdr.Encoder) {
			_ = e.PutBool(false) // wcc before
			_ = e.PutBool(false) // wcc after
			_ = e.PutUint32(4)
			_ = e.PutUint32(StableFileSync)
			_ = e.PutFixedOpaque(make([]byte, 8))
		})
	}
	f.handlers[ProcRead] = func(body []byte) []byte {
		return withStatusOK(func(e *xdr.Encoder) {
			_ = e.PutBool(false)
			_ = e.PutUint32(4)
			_ = e.PutBool(true)
			_ = e.PutOpaque([]byte("data"))
		})
	}
	sess := dialNFSSession(t, f)

	wr, err := Write(context.Background(), sess, Handle{0x01}, 0, []byte("data"), StableFileSync)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), wr.Count)

	rr, err := Read(context.Background(), sess, Handle{0x01}, 0, 4096)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), rr.Data)
	assert.True(t, rr.EOF)
}

func TestCreateAndMkdir(t *testing.T) {
	f := startFakeNFSServer(t)
	newHandle := []byte{9, 9, 9}
	createReply := func(body []byte) []byte {
		return withStatusOK(func(e *xdr.Encoder) {
			_ = e.PutBool(true)
			_ = e.PutOpaque(newHandle)
			_ = e.PutBool(true)
			_ = encodeFileAttr(e, sampleAttr())
			_ = e.PutBool(false)
			_ = e.PutBool(false)
		})
	}
	f.handlers[ProcCreate] = createReply
	f.handlers[ProcMkdir] = createReply
	sess := dialNFSSession(t, f)

	cr, err := Create(context.Background(), sess, Handle{0x01}, "new.txt")
	require.NoError(t, err)
	assert.Equal(t, Handle(newHandle), cr.Handle)

	mr, err := Mkdir(context.Background(), sess, Handle{0x01}, "subdir")
	require.NoError(t, err)
	assert.Equal(t, Handle(newHandle), mr.Handle)
}

func TestRemoveAndRmdir(t *testing.T) {
	f := startFakeNFSServer(t)
	wccReply := func(body []byte) []byte {
		return withStatusOK(func(e *xdr.Encoder) {
			_ = e.PutBool(false)
			_ = e.PutBool(false)
		})
	}
	f.handlers[ProcRemove] = wccReply
	f.handlers[ProcRmdir] = wccReply
	sess := dialNFSSession(t, f)

	_, err := Remove(context.Background(), sess, Handle{0x01}, "file.txt")
	require.NoError(t, err)

	_, err = Rmdir(context.Background(), sess, Handle{0x01}, "subdir")
	require.NoError(t, err)
}

func TestReaddirPaginatesUntilEOF(t *testing.T) {
	f := startFakeNFSServer(t)
	f.handlers[ProcReaddir] = func(body []byte) []byte {
		return withStatusOK(func(e *xdr.Encoder) {
			_ = e.PutBool(true)
			_ = encodeFileAttr(e, sampleAttr())
			_ = e.PutFixedOpaque(make([]byte, 8))

			_ = e.PutBool(true)
			_ = e.PutUint64(1)
			_ = e.PutString("a.txt")
			_ = e.PutUint64(1)

			_ = e.PutBool(true)
			_ = e.PutUint64(2)
			_ = e.PutString("b.txt")
			_ = e.PutUint64(2)

			_ = e.PutBool(false) // no more entries
			_ = e.PutBool(true)  // eof
		})
	}
	sess := dialNFSSession(t, f)

	result, err := Readdir(context.Background(), sess, Handle{0x01}, 0, [8]byte{})
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "a.txt", result.Entries[0].Name)
	assert.Equal(t, "b.txt", result.Entries[1].Name)
	assert.True(t, result.EOF)
}
