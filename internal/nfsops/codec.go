package nfsops

import "github.com/marmos91/nfs3client/internal/xdr"

func decodeTimeVal(d *xdr.Decoder) (TimeVal, error) {
	sec, err := d.Uint32()
	if err != nil {
		return TimeVal{}, err
	}
	nsec, err := d.Uint32()
	if err != nil {
		return TimeVal{}, err
	}
	return TimeVal{Seconds: sec, Nseconds: nsec}, nil
}

func encodeTimeVal(e *xdr.Encoder, t TimeVal) error {
	if err := e.PutUint32(t.Seconds); err != nil {
		return err
	}
	return e.PutUint32(t.Nseconds)
}

func decodeFileAttr(d *xdr.Decoder) (*FileAttr, error) {
	var a FileAttr
	var err error
	if a.Type, err = d.Uint32(); err != nil {
		return nil, err
	}
	if a.Mode, err = d.Uint32(); err != nil {
		return nil, err
	}
	if a.Nlink, err = d.Uint32(); err != nil {
		return nil, err
	}
	if a.UID, err = d.Uint32(); err != nil {
		return nil, err
	}
	if a.GID, err = d.Uint32(); err != nil {
		return nil, err
	}
	if a.Size, err = d.Uint64(); err != nil {
		return nil, err
	}
	if a.Used, err = d.Uint64(); err != nil {
		return nil, err
	}
	if a.Rdev[0], err = d.Uint32(); err != nil {
		return nil, err
	}
	if a.Rdev[1], err = d.Uint32(); err != nil {
		return nil, err
	}
	if a.Fsid, err = d.Uint64(); err != nil {
		return nil, err
	}
	if a.Fileid, err = d.Uint64(); err != nil {
		return nil, err
	}
	if a.Atime, err = decodeTimeVal(d); err != nil {
		return nil, err
	}
	if a.Mtime, err = decodeTimeVal(d); err != nil {
		return nil, err
	}
	if a.Ctime, err = decodeTimeVal(d); err != nil {
		return nil, err
	}
	return &a, nil
}

func encodeFileAttr(e *xdr.Encoder, a *FileAttr) error {
	if err := e.PutUint32(a.Type); err != nil {
		return err
	}
	if err := e.PutUint32(a.Mode); err != nil {
		return err
	}
	if err := e.PutUint32(a.Nlink); err != nil {
		return err
	}
	if err := e.PutUint32(a.UID); err != nil {
		return err
	}
	if err := e.PutUint32(a.GID); err != nil {
		return err
	}
	if err := e.PutUint64(a.Size); err != nil {
		return err
	}
	if err := e.PutUint64(a.Used); err != nil {
		return err
	}
	if err := e.PutUint32(a.Rdev[0]); err != nil {
		return err
	}
	if err := e.PutUint32(a.Rdev[1]); err != nil {
		return err
	}
	if err := e.PutUint64(a.Fsid); err != nil {
		return err
	}
	if err := e.PutUint64(a.Fileid); err != nil {
		return err
	}
	if err := encodeTimeVal(e, a.Atime); err != nil {
		return err
	}
	if err := encodeTimeVal(e, a.Mtime); err != nil {
		return err
	}
	return encodeTimeVal(e, a.Ctime)
}

// decodePostOpAttr decodes a post_op_attr: bool attributes_follow,
// optionally followed by an fattr3. Returns nil if attributes_follow is
// false — the server declined to report attributes, which every caller
// must treat as "unknown", not as a zero value.
func decodePostOpAttr(d *xdr.Decoder) (*FileAttr, error) {
	present, err := d.Bool()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	return decodeFileAttr(d)
}

// decodeWccAttr decodes a pre_op_attr: bool attributes_follow, optionally
// followed by a wcc_attr (size, mtime, ctime — no identity fields).
func decodeWccAttr(d *xdr.Decoder) (*WccAttr, error) {
	present, err := d.Bool()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	var a WccAttr
	if a.Size, err = d.Uint64(); err != nil {
		return nil, err
	}
	if a.Mtime, err = decodeTimeVal(d); err != nil {
		return nil, err
	}
	if a.Ctime, err = decodeTimeVal(d); err != nil {
		return nil, err
	}
	return &a, nil
}

// decodeWcc decodes a wcc_data: pre_op_attr followed by post_op_attr.
func decodeWcc(d *xdr.Decoder) (*Wcc, error) {
	before, err := decodeWccAttr(d)
	if err != nil {
		return nil, err
	}
	after, err := decodePostOpAttr(d)
	if err != nil {
		return nil, err
	}
	return &Wcc{Before: before, After: after}, nil
}

// decodePostOpFh3 decodes a post_op_fh3: bool handle_follows, optionally
// followed by an opaque file handle.
func decodePostOpFh3(d *xdr.Decoder) (Handle, error) {
	present, err := d.Bool()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	h, err := d.Opaque(maxHandleSize)
	if err != nil {
		return nil, err
	}
	return Handle(h), nil
}

// encodeSattr3 encodes a partial sattr3: each field is preceded by a
// set_it bool. atime/mtime are always encoded as DONT_CHANGE; the client
// does not set timestamps explicitly.
func encodeSattr3(e *xdr.Encoder, a Sattr3) error {
	if err := encodeOptionalUint32(e, a.Mode); err != nil {
		return err
	}
	if err := encodeOptionalUint32(e, a.UID); err != nil {
		return err
	}
	if err := encodeOptionalUint32(e, a.GID); err != nil {
		return err
	}
	if err := encodeOptionalUint64(e, a.Size); err != nil {
		return err
	}
	if err := e.PutUint32(0); err != nil { // atime: DONT_CHANGE
		return err
	}
	if err := e.PutUint32(0); err != nil { // mtime: DONT_CHANGE
		return err
	}
	return nil
}

func encodeOptionalUint32(e *xdr.Encoder, v *uint32) error {
	if v == nil {
		return e.PutBool(false)
	}
	if err := e.PutBool(true); err != nil {
		return err
	}
	return e.PutUint32(*v)
}

func encodeOptionalUint64(e *xdr.Encoder, v *uint64) error {
	if v == nil {
		return e.PutBool(false)
	}
	if err := e.PutBool(true); err != nil {
		return err
	}
	return e.PutUint64(*v)
}

// defaultSattr3 is the attribute set used for MKDIR/CREATE's
// createhow3=UNCHECKED mode: a conservative default permission mode with
// no uid/gid/size override, letting the server apply its own defaults
// for ownership.
func defaultSattr3() Sattr3 {
	mode := uint32(0755)
	return Sattr3{Mode: &mode}
}

const maxHandleSize = 64
