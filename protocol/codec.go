package protocol

// Packet is the typed codec contract every packet variant implements,
// in-repo control packets and external catalogs alike.
//
// Unmarshal must consume exactly the bytes belonging to the packet's own
// fields: the registry rejects frames with unread bytes left over, and
// over-reading surfaces as a truncation error from the Reader, never a
// panic. Both methods are pure with respect to I/O; they only move bytes
// between the value and the cursor.
type Packet interface {
	// ID returns the packet's numeric discriminant within the protocol
	// version. The mapping ID <-> concrete type is injective.
	ID() uint32

	Marshal(w *Writer) error
	Unmarshal(r *Reader) error
}
