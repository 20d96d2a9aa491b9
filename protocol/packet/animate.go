package packet

import (
	"fmt"

	"github.com/bedrocknet/bedrocknet/protocol"
)

// AnimateAction tags the shape of an Animate packet's payload.
type AnimateAction int32

const (
	AnimateNoAction         AnimateAction = 0
	AnimateSwing            AnimateAction = 1
	AnimateWakeUp           AnimateAction = 3
	AnimateCriticalHit      AnimateAction = 4
	AnimateMagicCriticalHit AnimateAction = 5
	AnimateRowRight         AnimateAction = 128
	AnimateRowLeft          AnimateAction = 129
)

// Animate plays an entity animation. The action tag selects the payload
// shape: rowing actions carry the rowing time, the others carry nothing
// beyond the target. An unrecognized tag is a decode error, never a
// silently defaulted action.
type Animate struct {
	Action          AnimateAction
	EntityRuntimeID uint64

	// RowingTime is only on the wire for AnimateRowRight/AnimateRowLeft.
	RowingTime float32
}

func (*Animate) ID() uint32 { return IDAnimate }

func (pkt *Animate) rowing() bool {
	return pkt.Action == AnimateRowRight || pkt.Action == AnimateRowLeft
}

func (pkt *Animate) Marshal(w *protocol.Writer) error {
	switch pkt.Action {
	case AnimateNoAction, AnimateSwing, AnimateWakeUp, AnimateCriticalHit,
		AnimateMagicCriticalHit, AnimateRowRight, AnimateRowLeft:
	default:
		return fmt.Errorf("animate action %d: %w", pkt.Action, protocol.ErrFormatMismatch)
	}
	w.VarInt32(int32(pkt.Action))
	w.VarUint64(pkt.EntityRuntimeID)
	if pkt.rowing() {
		w.Float32(pkt.RowingTime)
	}
	return nil
}

func (pkt *Animate) Unmarshal(r *protocol.Reader) error {
	action, err := r.VarInt32()
	if err != nil {
		return err
	}
	if pkt.EntityRuntimeID, err = r.VarUint64(); err != nil {
		return err
	}
	switch AnimateAction(action) {
	case AnimateNoAction, AnimateSwing, AnimateWakeUp, AnimateCriticalHit, AnimateMagicCriticalHit:
		pkt.Action = AnimateAction(action)
		pkt.RowingTime = 0
	case AnimateRowRight, AnimateRowLeft:
		pkt.Action = AnimateAction(action)
		if pkt.RowingTime, err = r.Float32(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("animate action %d: %w", action, protocol.ErrFormatMismatch)
	}
	return nil
}
