// Package xdr provides the cursor-threaded XDR (External Data Representation)
// encoding and decoding used by every RPC program this client speaks:
// port-mapper, MOUNT, and NFS.
//
// Per RFC 4506: big-endian byte order, 4-byte alignment for every field,
// variable-length data preceded by a length prefix and padded with zero
// bytes up to the next 4-byte boundary.
//
// This package has no dependency on any protocol-specific type; it is
// shared wire-format plumbing.
package xdr

import (
	"encoding/binary"
	"fmt"
)

// LastFragmentBit is the high bit of the 4-byte record-mark header; when
// set, the fragment it prefixes is the last fragment of the RPC message.
const LastFragmentBit = uint32(1) << 31

// FragmentLengthMask isolates the low 31 bits of a record-mark header,
// the fragment's byte length.
const FragmentLengthMask = uint32(0x7fffffff)

// ErrTruncated is returned when a decode would read past the end of the buffer.
var ErrTruncated = fmt.Errorf("xdr: truncated")

// ErrOversize is returned when a decoded length exceeds the caller-supplied maximum.
var ErrOversize = fmt.Errorf("xdr: oversize")

// ErrBufferFull is returned when an encode would write past the end of a
// fixed-capacity buffer.
var ErrBufferFull = fmt.Errorf("xdr: buffer full")

// Pad4 returns the number of zero bytes needed to align n to a 4-byte boundary.
func Pad4(n int) int {
	return (4 - (n % 4)) % 4
}

// Encoder builds an XDR-encoded byte buffer behind a write cursor.
//
// Zero value is ready to use; it grows its internal slice as needed and
// never returns ErrBufferFull since it owns the backing array, but a
// bounded encoder created with NewBoundedEncoder enforces a hard cap and
// will return ErrBufferFull instead of growing past it (used for
// fixed-size request scratch buffers where a misbehaving caller should
// fail loudly rather than allocate without limit).
type Encoder struct {
	buf   []byte
	limit int // 0 means unbounded
}

// NewEncoder returns an Encoder with no capacity limit.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// NewBoundedEncoder returns an Encoder that fails with ErrBufferFull once
// its buffer would grow past limit bytes.
func NewBoundedEncoder(limit int) *Encoder {
	return &Encoder{limit: limit}
}

func (e *Encoder) reserve(n int) error {
	if e.limit > 0 && len(e.buf)+n > e.limit {
		return ErrBufferFull
	}
	return nil
}

// Len returns the number of bytes written so far (the write cursor position).
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Bytes returns the encoded buffer. The caller must not retain it across
// further writes; take a copy if that is needed.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// PutUint32 appends a big-endian uint32 and advances the cursor by 4 bytes.
func (e *Encoder) PutUint32(v uint32) error {
	if err := e.reserve(4); err != nil {
		return err
	}
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
	return nil
}

// PutUint64 appends a big-endian uint64 and advances the cursor by 8 bytes.
func (e *Encoder) PutUint64(v uint64) error {
	if err := e.reserve(8); err != nil {
		return err
	}
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
	return nil
}

// PutBool appends a boolean encoded as a uint32 (0 or 1).
func (e *Encoder) PutBool(v bool) error {
	if v {
		return e.PutUint32(1)
	}
	return e.PutUint32(0)
}

// PutOpaque appends variable-length opaque data: length prefix, raw bytes,
// zero padding to the next 4-byte boundary.
func (e *Encoder) PutOpaque(data []byte) error {
	if err := e.reserve(4 + len(data) + Pad4(len(data))); err != nil {
		return err
	}
	if err := e.PutUint32(uint32(len(data))); err != nil {
		return err
	}
	e.buf = append(e.buf, data...)
	return e.Align(4)
}

// PutString appends a variable-length string using the same wire shape as
// PutOpaque: length prefix, raw bytes (no NUL terminator), padding.
func (e *Encoder) PutString(s string) error {
	return e.PutOpaque([]byte(s))
}

// PutFixedOpaque appends exactly len(data) bytes with no length prefix,
// padded to a 4-byte boundary. Used for fixed-size XDR arrays (e.g. the
// NFSv3 cookieverf3 and writeverf3 opaque[8] fields).
func (e *Encoder) PutFixedOpaque(data []byte) error {
	if err := e.reserve(len(data) + Pad4(len(data))); err != nil {
		return err
	}
	e.buf = append(e.buf, data...)
	return e.Align(4)
}

// PutRaw appends data verbatim with no length prefix and no padding. Used
// to splice in an already-encoded, already-aligned sub-message (e.g. a
// procedure's pre-built argument payload) without re-parsing it.
func (e *Encoder) PutRaw(data []byte) error {
	if err := e.reserve(len(data)); err != nil {
		return err
	}
	e.buf = append(e.buf, data...)
	return nil
}

// Align zero-fills until the cursor is a multiple of alignment.
func (e *Encoder) Align(alignment int) error {
	pad := (alignment - (len(e.buf) % alignment)) % alignment
	if pad == 0 {
		return nil
	}
	if err := e.reserve(pad); err != nil {
		return err
	}
	e.buf = append(e.buf, make([]byte, pad)...)
	return nil
}

// PatchUint32 overwrites the 4 bytes at the given offset with v. Used to
// back-patch a length field (record-mark, credential length) after the
// body it measures has been fully written.
func (e *Encoder) PatchUint32(offset int, v uint32) error {
	if offset < 0 || offset+4 > len(e.buf) {
		return ErrTruncated
	}
	binary.BigEndian.PutUint32(e.buf[offset:offset+4], v)
	return nil
}

// SetLastFragment sets the high bit of the first 4 bytes of the buffer,
// marking it the final (and, for this client, only) fragment of the
// record. It touches only the top bit of the first byte.
func SetLastFragment(buf []byte) error {
	if len(buf) < 4 {
		return ErrTruncated
	}
	buf[0] |= 0x80
	return nil
}

// StripLastFragment clears the high bit of the first 4 bytes in place, so
// they then hold the plain fragment-length value. It is the inverse of SetLastFragment: for
// any buf, StripLastFragment(SetLastFragment(buf)) leaves buf unchanged
// except for that single bit having been set and cleared again.
func StripLastFragment(buf []byte) error {
	if len(buf) < 4 {
		return ErrTruncated
	}
	buf[0] &^= 0x80
	return nil
}

// Decoder reads an XDR-encoded byte buffer through a read cursor that
// never advances past the buffer length.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps buf for reading from the start.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Pos returns the current read cursor position.
func (d *Decoder) Pos() int {
	return d.pos
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

func (d *Decoder) need(n int) error {
	if d.pos+n > len(d.buf) {
		return ErrTruncated
	}
	return nil
}

// Uint32 decodes a big-endian uint32 and advances the cursor by 4 bytes.
func (d *Decoder) Uint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.buf[d.pos : d.pos+4])
	d.pos += 4
	return v, nil
}

// Uint64 decodes a big-endian uint64 and advances the cursor by 8 bytes.
func (d *Decoder) Uint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.buf[d.pos : d.pos+8])
	d.pos += 8
	return v, nil
}

// Bool decodes an XDR boolean: 0 is false, anything else is true.
func (d *Decoder) Bool() (bool, error) {
	v, err := d.Uint32()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Opaque decodes variable-length opaque data, failing with ErrOversize if
// the encoded length exceeds maxLen.
func (d *Decoder) Opaque(maxLen uint32) ([]byte, error) {
	length, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if length > maxLen {
		return nil, fmt.Errorf("%w: opaque length %d exceeds max %d", ErrOversize, length, maxLen)
	}
	if err := d.need(int(length)); err != nil {
		return nil, err
	}
	data := make([]byte, length)
	copy(data, d.buf[d.pos:d.pos+int(length)])
	d.pos += int(length)
	return data, d.skipPad(int(length))
}

// FixedOpaque decodes exactly n raw bytes with no length prefix, then skips
// padding to the next 4-byte boundary.
func (d *Decoder) FixedOpaque(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	data := make([]byte, n)
	copy(data, d.buf[d.pos:d.pos+n])
	d.pos += n
	return data, d.skipPad(n)
}

// String decodes a variable-length string, failing with ErrOversize if the
// encoded length exceeds maxLen.
func (d *Decoder) String(maxLen uint32) (string, error) {
	data, err := d.Opaque(maxLen)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (d *Decoder) skipPad(dataLen int) error {
	pad := Pad4(dataLen)
	if pad == 0 {
		return nil
	}
	return d.Skip(pad)
}

// Skip advances the cursor by n bytes without interpreting them.
func (d *Decoder) Skip(n int) error {
	if err := d.need(n); err != nil {
		return err
	}
	d.pos += n
	return nil
}

// Rest returns the unread tail of the buffer without advancing the cursor.
// Used once a decoder has consumed a fixed-shape envelope (e.g. the RPC
// reply header) to hand the remaining, procedure-specific payload back to
// its caller for further decoding.
func (d *Decoder) Rest() []byte {
	return d.buf[d.pos:]
}
