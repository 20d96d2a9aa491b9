package protocol

// Variable-width integers are encoded 7 bits per byte, least-significant
// group first, with the high bit of each byte set on all but the final
// byte. Signed values are zigzag-mapped first so small negative numbers
// stay short on the wire.

const (
	maxVarIntBytes32 = 5
	maxVarIntBytes64 = 10
)

// Zigzag32 maps a signed 32-bit integer to an unsigned one, interleaving
// positive and negative values: 0, -1, 1, -2, 2, ...
func Zigzag32(n int32) uint32 {
	return uint32((n << 1) ^ (n >> 31))
}

// Unzigzag32 is the inverse of Zigzag32.
func Unzigzag32(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}

// Zigzag64 maps a signed 64-bit integer to an unsigned one.
func Zigzag64(n int64) uint64 {
	return uint64((n << 1) ^ (n >> 63))
}

// Unzigzag64 is the inverse of Zigzag64.
func Unzigzag64(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// AppendVarUint32 appends the minimal varint encoding of v to b.
func AppendVarUint32(b []byte, v uint32) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

// AppendVarUint64 appends the minimal varint encoding of v to b.
func AppendVarUint64(b []byte, v uint64) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}
