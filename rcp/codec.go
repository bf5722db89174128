package rcp

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned by decode functions when fewer bytes remain
// than the primitive being decoded requires.
var ErrShortBuffer = errors.New("rcp: short buffer decoding primitive")

// Encoder appends self-describing primitives to an owned buffer, building
// one RCP command/property payload at a time. The zero value is ready to
// use.
type Encoder struct {
	buf []byte
}

// Reset empties the encoder, retaining its backing array.
func (e *Encoder) Reset() { e.buf = e.buf[:0] }

// Bytes returns the bytes encoded so far.
func (e *Encoder) Bytes() []byte { return e.buf }

// PutBool appends a single boolean byte (0 or 1).
func (e *Encoder) PutBool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

// PutU8 appends an unsigned byte.
func (e *Encoder) PutU8(v uint8) { e.buf = append(e.buf, v) }

// PutI8 appends a signed byte.
func (e *Encoder) PutI8(v int8) { e.buf = append(e.buf, byte(v)) }

// PutU16 appends a little-endian uint16.
func (e *Encoder) PutU16(v uint16) {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}

// PutI16 appends a little-endian int16.
func (e *Encoder) PutI16(v int16) { e.PutU16(uint16(v)) }

// PutU32 appends a little-endian uint32.
func (e *Encoder) PutU32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

// PutI32 appends a little-endian int32.
func (e *Encoder) PutI32(v int32) { e.PutU32(uint32(v)) }

// PutVaruint appends v as a 7-bit-per-byte little-endian continuation
// varuint, the encoding used for command and property IDs.
func (e *Encoder) PutVaruint(v uint32) {
	for v >= 0x80 {
		e.buf = append(e.buf, byte(v)|0x80)
		v >>= 7
	}
	e.buf = append(e.buf, byte(v))
}

// PutFixed appends a fixed-size byte array verbatim (e.g. an EUI-64 or a
// 16-byte key).
func (e *Encoder) PutFixed(v []byte) { e.buf = append(e.buf, v...) }

// PutBlob appends a varuint length prefix followed by the blob's bytes.
func (e *Encoder) PutBlob(v []byte) {
	e.PutVaruint(uint32(len(v)))
	e.buf = append(e.buf, v...)
}

// Decoder reads self-describing primitives out of a command/property
// payload in order, tracking its own read position.
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder returns a Decoder reading from buf.
func NewDecoder(buf []byte) Decoder { return Decoder{buf: buf} }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.buf) - d.off }

// Offset returns the current read position within the decoder's buffer.
func (d *Decoder) Offset() int { return d.off }

func (d *Decoder) need(n int) error {
	if d.Remaining() < n {
		return ErrShortBuffer
	}
	return nil
}

// Bool decodes a boolean byte.
func (d *Decoder) Bool() (bool, error) {
	if err := d.need(1); err != nil {
		return false, err
	}
	v := d.buf[d.off] != 0
	d.off++
	return v, nil
}

// U8 decodes an unsigned byte.
func (d *Decoder) U8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.off]
	d.off++
	return v, nil
}

// I8 decodes a signed byte.
func (d *Decoder) I8() (int8, error) {
	v, err := d.U8()
	return int8(v), err
}

// U16 decodes a little-endian uint16.
func (d *Decoder) U16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(d.buf[d.off:])
	d.off += 2
	return v, nil
}

// I16 decodes a little-endian int16.
func (d *Decoder) I16() (int16, error) {
	v, err := d.U16()
	return int16(v), err
}

// U32 decodes a little-endian uint32.
func (d *Decoder) U32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

// I32 decodes a little-endian int32.
func (d *Decoder) I32() (int32, error) {
	v, err := d.U32()
	return int32(v), err
}

// Varuint decodes a 7-bit-per-byte little-endian continuation varuint.
func (d *Decoder) Varuint() (uint32, error) {
	var v uint32
	var shift uint
	for {
		if err := d.need(1); err != nil {
			return 0, err
		}
		b := d.buf[d.off]
		d.off++
		v |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
		if shift >= 32 {
			return 0, errors.New("rcp: varuint overflow")
		}
	}
}

// Fixed decodes n bytes verbatim, aliasing the decoder's backing array.
func (d *Decoder) Fixed(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	v := d.buf[d.off : d.off+n]
	d.off += n
	return v, nil
}

// Blob decodes a varuint length prefix followed by that many bytes,
// aliasing the decoder's backing array.
func (d *Decoder) Blob() ([]byte, error) {
	n, err := d.Varuint()
	if err != nil {
		return nil, err
	}
	return d.Fixed(int(n))
}
