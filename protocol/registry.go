package protocol

import (
	"fmt"
	"sort"
)

// Registry maps packet IDs to constructors for the matching packet type.
// It is populated once at startup and never mutated afterwards, which
// makes concurrent lookups from all connections safe without locking.
type Registry struct {
	packets map[uint32]func() Packet
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{packets: make(map[uint32]func() Packet)}
}

// Register binds a packet ID to a constructor for its concrete type. The
// constructor's packet must report the same ID. Registering an ID twice
// is an error: the ID -> type mapping must stay injective.
func (reg *Registry) Register(newPacket func() Packet) error {
	id := newPacket().ID()
	if _, ok := reg.packets[id]; ok {
		return fmt.Errorf("packet ID 0x%02X registered twice", id)
	}
	reg.packets[id] = newPacket
	return nil
}

// Lookup returns the constructor registered for id.
func (reg *Registry) Lookup(id uint32) (func() Packet, bool) {
	newPacket, ok := reg.packets[id]
	return newPacket, ok
}

// Decode resolves id and deserializes the remaining bytes of r into the
// matching packet. The frame boundary is the end of r: a decoder that
// leaves bytes unread did not parse the frame it was given, which is a
// protocol error rather than tolerated slack.
func (reg *Registry) Decode(id uint32, r *Reader) (Packet, error) {
	newPacket, ok := reg.packets[id]
	if !ok {
		return nil, &UnknownPacketIDError{ID: id}
	}
	pkt := newPacket()
	if err := pkt.Unmarshal(r); err != nil {
		return nil, fmt.Errorf("decode packet 0x%02X: %w", id, err)
	}
	if rem := r.Remaining(); rem != 0 {
		return nil, fmt.Errorf("packet 0x%02X left %d bytes unread: %w", id, rem, ErrFormatMismatch)
	}
	return pkt, nil
}

// IDs returns all registered packet IDs in ascending order.
func (reg *Registry) IDs() []uint32 {
	ids := make([]uint32, 0, len(reg.packets))
	for id := range reg.packets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of registered packet types.
func (reg *Registry) Len() int { return len(reg.packets) }
