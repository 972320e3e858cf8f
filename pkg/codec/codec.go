// Package codec decodes the primitive encodings used by the mapsforge
// binary map format: big-endian scalars, a custom variable-length
// integer scheme, length-prefixed UTF-8 strings, and lat/lon pairs.
//
// Every decoder reads from a Reader cursor over a byte slice and
// advances it past the decoded value, without copying the underlying
// buffer; Remainder returns the bytes not yet consumed.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Reader is a cursor over a byte slice that never copies the
// underlying data; each primitive read consumes a prefix of buf and
// advances pos.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding starting at offset 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.buf) - r.pos
}

// Pos returns the current read offset from the start of buf.
func (r *Reader) Pos() int {
	return r.pos
}

// Remainder returns the unread tail of buf, still backed by the same
// underlying array.
func (r *Reader) Remainder() []byte {
	return r.buf[r.pos:]
}

func (r *Reader) need(n int) error {
	if r.Len() < n {
		return fmt.Errorf("codec: need %d bytes, have %d", n, r.Len())
	}
	return nil
}

// Skip discards n bytes, as used by debug-mode padding.
func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return fmt.Errorf("skip: %w", err)
	}
	r.pos += n
	return nil
}

// Bytes reads and returns the next n bytes without copying.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, fmt.Errorf("bytes: %w", err)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// U8 reads an unsigned byte.
func (r *Reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, fmt.Errorf("u8: %w", err)
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// I8 reads a signed byte.
func (r *Reader) I8() (int8, error) {
	v, err := r.U8()
	return int8(v), err
}

// U16 reads a big-endian uint16.
func (r *Reader) U16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, fmt.Errorf("u16: %w", err)
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

// I16 reads a big-endian int16.
func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

// U32 reads a big-endian uint32.
func (r *Reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, fmt.Errorf("u32: %w", err)
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// I32 reads a big-endian int32.
func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

// U64 reads a big-endian uint64.
func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, fmt.Errorf("u64: %w", err)
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// F32 reads a big-endian IEEE-754 float32.
func (r *Reader) F32() (float32, error) {
	v, err := r.U32()
	return math.Float32frombits(v), err
}

// VarUint reads the unsigned variable-length integer encoding: bytes
// are consumed until one with the high bit clear (the terminator). The
// terminator contributes its full 7 low bits as the least significant
// group; preceding (continuation) bytes contribute their low 7 bits,
// combined in reverse (last-continuation-byte-first) order.
func (r *Reader) VarUint() (uint64, error) {
	var cont []byte
	for {
		b, err := r.U8()
		if err != nil {
			return 0, fmt.Errorf("varuint: %w", err)
		}
		if b&0x80 == 0 {
			ret := uint64(b)
			for i := len(cont) - 1; i >= 0; i-- {
				ret = (ret << 7) | uint64(cont[i]&0x7f)
			}
			return ret, nil
		}
		cont = append(cont, b)
	}
}

// VarInt reads the signed variable-length integer encoding. Framing is
// identical to VarUint; in the terminating byte, bit 6 is the sign bit
// and bits 5..0 are the most significant 6 magnitude bits.
func (r *Reader) VarInt() (int64, error) {
	var cont []byte
	for {
		b, err := r.U8()
		if err != nil {
			return 0, fmt.Errorf("varint: %w", err)
		}
		if b&0x80 == 0 {
			ret := uint64(b & 0x3f)
			for i := len(cont) - 1; i >= 0; i-- {
				ret = (ret << 7) | uint64(cont[i]&0x7f)
			}
			v := int64(ret)
			if b&0x40 != 0 {
				v = -v
			}
			return v, nil
		}
		cont = append(cont, b)
	}
}

// String reads a VarUint length prefix followed by that many bytes of
// UTF-8.
func (r *Reader) String() (string, error) {
	n, err := r.VarUint()
	if err != nil {
		return "", fmt.Errorf("string length: %w", err)
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return "", fmt.Errorf("string body: %w", err)
	}
	return string(b), nil
}

// LatLonPair reads two VarInt values in (lat, lon) microdegree order.
func (r *Reader) LatLonPair() (lat, lon int32, err error) {
	latV, err := r.VarInt()
	if err != nil {
		return 0, 0, fmt.Errorf("lat: %w", err)
	}
	lonV, err := r.VarInt()
	if err != nil {
		return 0, 0, fmt.Errorf("lon: %w", err)
	}
	return int32(latV), int32(lonV), nil
}
