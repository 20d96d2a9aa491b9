// Package packet holds the control packets the engine itself needs to
// bring a session up: login, play status, disconnect, plus the animate
// packet whose tagged action field exercises nested enum decoding.
// Gameplay catalogs live outside this repository and register their own
// types the same way.
package packet

import "github.com/bedrocknet/bedrocknet/protocol"

// Packet IDs, fixed per protocol version.
const (
	IDLogin      uint32 = 0x01
	IDPlayStatus uint32 = 0x02
	IDDisconnect uint32 = 0x05
	IDAnimate    uint32 = 0x2C
)

// Register binds every control packet to its ID in reg.
func Register(reg *protocol.Registry) error {
	for _, newPacket := range []func() protocol.Packet{
		func() protocol.Packet { return &Login{} },
		func() protocol.Packet { return &PlayStatus{} },
		func() protocol.Packet { return &Disconnect{} },
		func() protocol.Packet { return &Animate{} },
	} {
		if err := reg.Register(newPacket); err != nil {
			return err
		}
	}
	return nil
}
