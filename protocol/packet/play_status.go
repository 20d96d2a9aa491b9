package packet

import (
	"fmt"

	"github.com/bedrocknet/bedrocknet/protocol"
)

// PlayStatusType enumerates the server's verdicts on a session's state.
type PlayStatusType int32

const (
	PlayStatusLoginSuccess PlayStatusType = iota
	PlayStatusFailedClient
	PlayStatusFailedServer
	PlayStatusPlayerSpawn
	PlayStatusFailedInvalidTenant
	PlayStatusFailedVanillaEdu
	PlayStatusFailedEduVanilla
	PlayStatusFailedServerFull
)

// PlayStatus tells the client how the server judged its last phase
// transition: login accepted, version mismatch, server full.
type PlayStatus struct {
	Status PlayStatusType
}

func (*PlayStatus) ID() uint32 { return IDPlayStatus }

func (pkt *PlayStatus) Marshal(w *protocol.Writer) error {
	w.VarInt32(int32(pkt.Status))
	return nil
}

func (pkt *PlayStatus) Unmarshal(r *protocol.Reader) error {
	v, err := r.VarInt32()
	if err != nil {
		return err
	}
	if v < int32(PlayStatusLoginSuccess) || v > int32(PlayStatusFailedServerFull) {
		return fmt.Errorf("play status %d: %w", v, protocol.ErrFormatMismatch)
	}
	pkt.Status = PlayStatusType(v)
	return nil
}
