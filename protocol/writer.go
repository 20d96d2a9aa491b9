package protocol

import (
	"encoding/binary"
	"math"
)

// Writer builds a frame or batch buffer. It mirrors Reader: fixed-width
// values are little-endian, varints are minimal-length. Writes cannot
// fail; errors only arise at the codec layer above (bad enum tags and the
// like), which is why Packet.Marshal still returns an error.
type Writer struct {
	buf []byte
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated buffer. The slice aliases the Writer's
// internal storage and is invalidated by further writes.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Reset clears the Writer for reuse.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// Uint8 writes one byte.
func (w *Writer) Uint8(v uint8) { w.buf = append(w.buf, v) }

// Bool writes one byte, 1 for true and 0 for false.
func (w *Writer) Bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

// Uint16 writes a little-endian uint16.
func (w *Writer) Uint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// Uint32 writes a little-endian uint32.
func (w *Writer) Uint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// Uint64 writes a little-endian uint64.
func (w *Writer) Uint64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// Int32 writes a little-endian int32.
func (w *Writer) Int32(v int32) { w.Uint32(uint32(v)) }

// Int64 writes a little-endian int64.
func (w *Writer) Int64(v int64) { w.Uint64(uint64(v)) }

// Float32 writes a little-endian IEEE 754 float32.
func (w *Writer) Float32(v float32) { w.Uint32(math.Float32bits(v)) }

// Float64 writes a little-endian IEEE 754 float64.
func (w *Writer) Float64(v float64) { w.Uint64(math.Float64bits(v)) }

// VarUint32 writes an unsigned variable-width integer.
func (w *Writer) VarUint32(v uint32) { w.buf = AppendVarUint32(w.buf, v) }

// VarUint64 writes an unsigned variable-width integer.
func (w *Writer) VarUint64(v uint64) { w.buf = AppendVarUint64(w.buf, v) }

// VarInt32 writes a zigzag-encoded signed variable-width integer.
func (w *Writer) VarInt32(v int32) { w.VarUint32(Zigzag32(v)) }

// VarInt64 writes a zigzag-encoded signed variable-width integer.
func (w *Writer) VarInt64(v int64) { w.VarUint64(Zigzag64(v)) }

// String writes a varuint32 byte length followed by the UTF-8 bytes of s.
func (w *Writer) String(s string) {
	w.VarUint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// ByteSlice writes a varuint32 byte length followed by the raw bytes of b.
func (w *Writer) ByteSlice(b []byte) {
	w.VarUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// Raw appends b without a length prefix.
func (w *Writer) Raw(b []byte) {
	w.buf = append(w.buf, b...)
}
