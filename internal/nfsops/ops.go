package nfsops

import (
	"context"
	"fmt"
	"strings"

	"github.com/marmos91/nfs3client/internal/rpc"
	"github.com/marmos91/nfs3client/internal/transport"
	"github.com/marmos91/nfs3client/internal/xdr"
)

// sanitizeName scrubs a directory entry name before it goes on the
// wire: a leading "./" and any trailing "/" are stripped, then the
// cleaned name is rejected if it is empty, still contains a slash, or is
// "..". "." is accepted and passed through unchanged — NFSv3's
// self-referencing LOOKUP(dir, ".") is a legitimate, commonly used
// request, not a traversal attempt; only ".." ever lets a caller ascend
// out of a directory it was handed a handle for, which is the case this
// name policy exists to block.
func sanitizeName(name string) (string, error) {
	for strings.HasPrefix(name, "./") {
		name = name[2:]
	}
	name = strings.TrimRight(name, "/")

	if name == "" {
		return "", &Error{Kind: "InvalidName", Msg: "name is empty"}
	}
	if strings.Contains(name, "/") {
		return "", &Error{Kind: "InvalidName", Msg: fmt.Sprintf("name %q contains a path separator", name)}
	}
	if name == ".." {
		return "", &Error{Kind: "InvalidName", Msg: `name is "..": refusing to ascend out of the handle's directory`}
	}
	return name, nil
}

// callProc builds an NFS CALL for proc with args, exchanges it over
// sess, and returns the payload following nfsstat3 once that status has
// been checked — the shared plumbing every procedure in this file uses.
func callProc(ctx context.Context, sess *transport.Session, op string, proc uint32, args []byte) (*xdr.Decoder, error) {
	xid := rpc.NextXID()
	call, err := rpc.BuildCall(xid, rpc.ProgNFS, NFSVersion, proc, sess.Credential(), args)
	if err != nil {
		return nil, fmt.Errorf("nfsops: build %s call: %w", op, err)
	}

	wireReply, err := sess.Call(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("nfsops: %s exchange: %w", op, err)
	}

	payload, err := rpc.ParseReply(wireReply, xid)
	if err != nil {
		return nil, fmt.Errorf("nfsops: %s reply: %w", op, err)
	}

	d := xdr.NewDecoder(payload)
	status, err := d.Uint32()
	if err != nil {
		return nil, fmt.Errorf("nfsops: %s decode status: %w", op, err)
	}
	if status != StatusOK {
		return nil, &StatusError{Op: op, Status: status}
	}
	return d, nil
}

// checkHandle rejects a handle longer than NFSv3's 64-byte ceiling
// before it is encoded into a request.
func checkHandle(h Handle) error {
	if len(h) > maxHandleSize {
		return &Error{Kind: "HandleTooLong", Msg: fmt.Sprintf("handle is %d bytes, max %d", len(h), maxHandleSize)}
	}
	return nil
}

// LookupResult is the decoded LOOKUP3res on success.
type LookupResult struct {
	Handle  Handle
	ObjAttr *FileAttr
	DirAttr *FileAttr
}

// Lookup resolves name within the directory identified by dir, returning
// its file handle and attributes.
func Lookup(ctx context.Context, sess *transport.Session, dir Handle, name string) (*LookupResult, error) {
	name, err := sanitizeName(name)
	if err != nil {
		return nil, err
	}
	if err := checkHandle(dir); err != nil {
		return nil, err
	}

	e := xdr.NewEncoder()
	if err := e.PutOpaque(dir); err != nil {
		return nil, err
	}
	if err := e.PutString(name); err != nil {
		return nil, err
	}

	d, err := callProc(ctx, sess, "LOOKUP", ProcLookup, e.Bytes())
	if err != nil {
		return nil, err
	}

	handle, err := d.Opaque(maxHandleSize)
	if err != nil {
		return nil, fmt.Errorf("nfsops: LOOKUP decode handle: %w", err)
	}
	objAttr, err := decodePostOpAttr(d)
	if err != nil {
		return nil, fmt.Errorf("nfsops: LOOKUP decode obj attr: %w", err)
	}
	dirAttr, err := decodePostOpAttr(d)
	if err != nil {
		return nil, fmt.Errorf("nfsops: LOOKUP decode dir attr: %w", err)
	}

	return &LookupResult{Handle: Handle(handle), ObjAttr: objAttr, DirAttr: dirAttr}, nil
}

// Getattr fetches the attributes of the object identified by handle, for
// any caller that wants to stat a handle directly. No other operation in
// this client calls it after a mutating call.
func Getattr(ctx context.Context, sess *transport.Session, handle Handle) (*FileAttr, error) {
	if err := checkHandle(handle); err != nil {
		return nil, err
	}

	e := xdr.NewEncoder()
	if err := e.PutOpaque(handle); err != nil {
		return nil, err
	}

	d, err := callProc(ctx, sess, "GETATTR", ProcGetattr, e.Bytes())
	if err != nil {
		return nil, err
	}
	return decodeFileAttr(d)
}

// ReadResult is the decoded READ3res on success.
type ReadResult struct {
	Attr *FileAttr
	Data []byte
	EOF  bool
}

// Read fetches up to count bytes starting at offset from the file
// identified by handle.
func Read(ctx context.Context, sess *transport.Session, handle Handle, offset uint64, count uint32) (*ReadResult, error) {
	if err := checkHandle(handle); err != nil {
		return nil, err
	}

	e := xdr.NewEncoder()
	if err := e.PutOpaque(handle); err != nil {
		return nil, err
	}
	if err := e.PutUint64(offset); err != nil {
		return nil, err
	}
	if err := e.PutUint32(count); err != nil {
		return nil, err
	}

	d, err := callProc(ctx, sess, "READ", ProcRead, e.Bytes())
	if err != nil {
		return nil, err
	}

	attr, err := decodePostOpAttr(d)
	if err != nil {
		return nil, fmt.Errorf("nfsops: READ decode attr: %w", err)
	}
	n, err := d.Uint32()
	if err != nil {
		return nil, fmt.Errorf("nfsops: READ decode count: %w", err)
	}
	eof, err := d.Bool()
	if err != nil {
		return nil, fmt.Errorf("nfsops: READ decode eof: %w", err)
	}
	data, err := d.Opaque(n)
	if err != nil {
		return nil, fmt.Errorf("nfsops: READ decode data: %w", err)
	}

	return &ReadResult{Attr: attr, Data: data, EOF: eof}, nil
}

// Stable values for WRITE3args.stable (RFC 1813 §3.3.7).
const (
	StableUnstable = uint32(0)
	StableDataSync = uint32(1)
	StableFileSync = uint32(2)
)

// WriteResult is the decoded WRITE3res on success.
type WriteResult struct {
	Wcc       *Wcc
	Count     uint32
	Committed uint32
	Verifier  [8]byte
}

// Write stores data at offset in the file identified by handle, requesting
// stable storage semantics per stable (StableUnstable/DataSync/FileSync).
func Write(ctx context.Context, sess *transport.Session, handle Handle, offset uint64, data []byte, stable uint32) (*WriteResult, error) {
	if err := checkHandle(handle); err != nil {
		return nil, err
	}

	e := xdr.NewEncoder()
	if err := e.PutOpaque(handle); err != nil {
		return nil, err
	}
	if err := e.PutUint64(offset); err != nil {
		return nil, err
	}
	if err := e.PutUint32(uint32(len(data))); err != nil {
		return nil, err
	}
	if err := e.PutUint32(stable); err != nil {
		return nil, err
	}
	if err := e.PutOpaque(data); err != nil {
		return nil, err
	}

	d, err := callProc(ctx, sess, "WRITE", ProcWrite, e.Bytes())
	if err != nil {
		return nil, err
	}

	wcc, err := decodeWcc(d)
	if err != nil {
		return nil, fmt.Errorf("nfsops: WRITE decode wcc: %w", err)
	}
	count, err := d.Uint32()
	if err != nil {
		return nil, fmt.Errorf("nfsops: WRITE decode count: %w", err)
	}
	committed, err := d.Uint32()
	if err != nil {
		return nil, fmt.Errorf("nfsops: WRITE decode committed: %w", err)
	}
	verfBytes, err := d.FixedOpaque(8)
	if err != nil {
		return nil, fmt.Errorf("nfsops: WRITE decode verifier: %w", err)
	}

	result := &WriteResult{Wcc: wcc, Count: count, Committed: committed}
	copy(result.Verifier[:], verfBytes)
	return result, nil
}

// CreateResult is the decoded CREATE3res/MKDIR3res on success.
type CreateResult struct {
	Handle  Handle
	ObjAttr *FileAttr
	DirWcc  *Wcc
}

// createmode3 values (RFC 1813 §3.3.8).
const createModeUnchecked = uint32(0)

// Create creates a new regular file named name in the directory
// identified by dir, using createmode3=UNCHECKED with a conservative
// default mode.
func Create(ctx context.Context, sess *transport.Session, dir Handle, name string) (*CreateResult, error) {
	name, err := sanitizeName(name)
	if err != nil {
		return nil, err
	}
	if err := checkHandle(dir); err != nil {
		return nil, err
	}

	e := xdr.NewEncoder()
	if err := e.PutOpaque(dir); err != nil {
		return nil, err
	}
	if err := e.PutString(name); err != nil {
		return nil, err
	}
	if err := e.PutUint32(createModeUnchecked); err != nil {
		return nil, err
	}
	if err := encodeSattr3(e, defaultSattr3()); err != nil {
		return nil, err
	}

	d, err := callProc(ctx, sess, "CREATE", ProcCreate, e.Bytes())
	if err != nil {
		return nil, err
	}
	return decodeCreateLikeResult(d, "CREATE")
}

// Mkdir creates a new directory named name in the directory identified
// by dir.
func Mkdir(ctx context.Context, sess *transport.Session, dir Handle, name string) (*CreateResult, error) {
	name, err := sanitizeName(name)
	if err != nil {
		return nil, err
	}
	if err := checkHandle(dir); err != nil {
		return nil, err
	}

	e := xdr.NewEncoder()
	if err := e.PutOpaque(dir); err != nil {
		return nil, err
	}
	if err := e.PutString(name); err != nil {
		return nil, err
	}
	if err := encodeSattr3(e, defaultSattr3()); err != nil {
		return nil, err
	}

	d, err := callProc(ctx, sess, "MKDIR", ProcMkdir, e.Bytes())
	if err != nil {
		return nil, err
	}
	return decodeCreateLikeResult(d, "MKDIR")
}

func decodeCreateLikeResult(d *xdr.Decoder, op string) (*CreateResult, error) {
	handle, err := decodePostOpFh3(d)
	if err != nil {
		return nil, fmt.Errorf("nfsops: %s decode handle: %w", op, err)
	}
	objAttr, err := decodePostOpAttr(d)
	if err != nil {
		return nil, fmt.Errorf("nfsops: %s decode obj attr: %w", op, err)
	}
	dirWcc, err := decodeWcc(d)
	if err != nil {
		return nil, fmt.Errorf("nfsops: %s decode dir wcc: %w", op, err)
	}
	return &CreateResult{Handle: handle, ObjAttr: objAttr, DirWcc: dirWcc}, nil
}

// Remove deletes the file named name from the directory identified by
// dir, returning the directory's weak cache consistency data.
func Remove(ctx context.Context, sess *transport.Session, dir Handle, name string) (*Wcc, error) {
	name, err := sanitizeName(name)
	if err != nil {
		return nil, err
	}
	return removeLike(ctx, sess, "REMOVE", ProcRemove, dir, name)
}

// Rmdir deletes the (empty) directory named name from the directory
// identified by dir.
func Rmdir(ctx context.Context, sess *transport.Session, dir Handle, name string) (*Wcc, error) {
	name, err := sanitizeName(name)
	if err != nil {
		return nil, err
	}
	return removeLike(ctx, sess, "RMDIR", ProcRmdir, dir, name)
}

func removeLike(ctx context.Context, sess *transport.Session, op string, proc uint32, dir Handle, name string) (*Wcc, error) {
	if err := checkHandle(dir); err != nil {
		return nil, err
	}

	e := xdr.NewEncoder()
	if err := e.PutOpaque(dir); err != nil {
		return nil, err
	}
	if err := e.PutString(name); err != nil {
		return nil, err
	}

	d, err := callProc(ctx, sess, op, proc, e.Bytes())
	if err != nil {
		return nil, err
	}
	return decodeWcc(d)
}

// DirEntry is one entry of a READDIR3 reply.
type DirEntry struct {
	FileID uint64
	Name   string
	Cookie uint64
}

// ReaddirResult is the decoded READDIR3res on success.
type ReaddirResult struct {
	DirAttr    *FileAttr
	CookieVerf [8]byte
	Entries    []DirEntry
	EOF        bool
}

// readdirCount bounds the reply size requested from the server; large
// enough for a few hundred typical directory entries per call.
const readdirCount = uint32(8192)

// Readdir lists the directory identified by dir, starting after cookie
// (0 for the first call) using cookieverf from the previous call (zero
// value on the first call). Callers loop, feeding the returned
// CookieVerf and the last entry's Cookie back in, until EOF is true.
func Readdir(ctx context.Context, sess *transport.Session, dir Handle, cookie uint64, cookieVerf [8]byte) (*ReaddirResult, error) {
	if err := checkHandle(dir); err != nil {
		return nil, err
	}

	e := xdr.NewEncoder()
	if err := e.PutOpaque(dir); err != nil {
		return nil, err
	}
	if err := e.PutUint64(cookie); err != nil {
		return nil, err
	}
	if err := e.PutFixedOpaque(cookieVerf[:]); err != nil {
		return nil, err
	}
	if err := e.PutUint32(readdirCount); err != nil {
		return nil, err
	}

	d, err := callProc(ctx, sess, "READDIR", ProcReaddir, e.Bytes())
	if err != nil {
		return nil, err
	}

	dirAttr, err := decodePostOpAttr(d)
	if err != nil {
		return nil, fmt.Errorf("nfsops: READDIR decode dir attr: %w", err)
	}
	verfBytes, err := d.FixedOpaque(8)
	if err != nil {
		return nil, fmt.Errorf("nfsops: READDIR decode cookieverf: %w", err)
	}

	var entries []DirEntry
	for {
		valueFollows, err := d.Bool()
		if err != nil {
			return nil, fmt.Errorf("nfsops: READDIR decode entry marker: %w", err)
		}
		if !valueFollows {
			break
		}
		fileID, err := d.Uint64()
		if err != nil {
			return nil, fmt.Errorf("nfsops: READDIR decode fileid: %w", err)
		}
		name, err := d.String(4096)
		if err != nil {
			return nil, fmt.Errorf("nfsops: READDIR decode name: %w", err)
		}
		entryCookie, err := d.Uint64()
		if err != nil {
			return nil, fmt.Errorf("nfsops: READDIR decode cookie: %w", err)
		}
		entries = append(entries, DirEntry{FileID: fileID, Name: name, Cookie: entryCookie})
	}

	eof, err := d.Bool()
	if err != nil {
		return nil, fmt.Errorf("nfsops: READDIR decode eof: %w", err)
	}

	result := &ReaddirResult{DirAttr: dirAttr, Entries: entries, EOF: eof}
	copy(result.CookieVerf[:], verfBytes)
	return result, nil
}
