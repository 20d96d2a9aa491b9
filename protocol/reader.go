package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// Reader is a cursor over a single frame or batch buffer. All fixed-width
// values are little-endian. Every read either consumes exactly the bytes
// of one value or fails without side effects beyond the returned error.
type Reader struct {
	buf []byte
	off int
}

// NewReader creates a Reader positioned at the start of buf. The Reader
// does not copy buf; the caller must not mutate it while reading.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Bytes consumes and returns the next n bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative byte count %d: %w", n, ErrFormatMismatch)
	}
	if r.Remaining() < n {
		return nil, fmt.Errorf("need %d bytes at offset %d, have %d: %w", n, r.off, r.Remaining(), ErrTruncated)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Rest consumes and returns all unread bytes.
func (r *Reader) Rest() []byte {
	b := r.buf[r.off:]
	r.off = len(r.buf)
	return b
}

// Uint8 reads one byte.
func (r *Reader) Uint8() (uint8, error) {
	if r.Remaining() < 1 {
		return 0, fmt.Errorf("uint8 at offset %d: %w", r.off, ErrTruncated)
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

// Bool reads one byte, reporting an error for values other than 0 and 1.
func (r *Reader) Bool() (bool, error) {
	v, err := r.Uint8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("bool byte 0x%02X at offset %d: %w", v, r.off-1, ErrFormatMismatch)
	}
}

// Uint16 reads a little-endian uint16.
func (r *Reader) Uint16() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, fmt.Errorf("uint16: %w", err)
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, fmt.Errorf("uint32: %w", err)
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint64 reads a little-endian uint64.
func (r *Reader) Uint64() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, fmt.Errorf("uint64: %w", err)
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Int32 reads a little-endian int32.
func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

// Int64 reads a little-endian int64.
func (r *Reader) Int64() (int64, error) {
	v, err := r.Uint64()
	return int64(v), err
}

// Float32 reads a little-endian IEEE 754 float32.
func (r *Reader) Float32() (float32, error) {
	v, err := r.Uint32()
	return math.Float32frombits(v), err
}

// Float64 reads a little-endian IEEE 754 float64.
func (r *Reader) Float64() (float64, error) {
	v, err := r.Uint64()
	return math.Float64frombits(v), err
}

// VarUint32 reads an unsigned variable-width integer of at most 5 groups.
func (r *Reader) VarUint32() (uint32, error) {
	var v uint32
	for i := 0; i < maxVarIntBytes32*7; i += 7 {
		b, err := r.Uint8()
		if err != nil {
			return 0, fmt.Errorf("varuint32: %w", ErrTruncated)
		}
		v |= uint32(b&0x7F) << i
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, fmt.Errorf("varuint32 at offset %d: %w", r.off, ErrVarIntOverflow)
}

// VarUint64 reads an unsigned variable-width integer of at most 10 groups.
func (r *Reader) VarUint64() (uint64, error) {
	var v uint64
	for i := 0; i < maxVarIntBytes64*7; i += 7 {
		b, err := r.Uint8()
		if err != nil {
			return 0, fmt.Errorf("varuint64: %w", ErrTruncated)
		}
		v |= uint64(b&0x7F) << i
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, fmt.Errorf("varuint64 at offset %d: %w", r.off, ErrVarIntOverflow)
}

// VarInt32 reads a zigzag-encoded signed variable-width integer.
func (r *Reader) VarInt32() (int32, error) {
	v, err := r.VarUint32()
	return Unzigzag32(v), err
}

// VarInt64 reads a zigzag-encoded signed variable-width integer.
func (r *Reader) VarInt64() (int64, error) {
	v, err := r.VarUint64()
	return Unzigzag64(v), err
}

// String reads a varuint32 byte length followed by that many UTF-8 bytes.
func (r *Reader) String() (string, error) {
	n, err := r.VarUint32()
	if err != nil {
		return "", fmt.Errorf("string length: %w", err)
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return "", fmt.Errorf("string body: %w", err)
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("string is not valid UTF-8: %w", ErrFormatMismatch)
	}
	return string(b), nil
}

// ByteSlice reads a varuint32 byte length followed by that many raw bytes.
// The returned slice is a copy and remains valid after the Reader's buffer
// is reused.
func (r *Reader) ByteSlice() ([]byte, error) {
	n, err := r.VarUint32()
	if err != nil {
		return nil, fmt.Errorf("byte slice length: %w", err)
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return nil, fmt.Errorf("byte slice body: %w", err)
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}
