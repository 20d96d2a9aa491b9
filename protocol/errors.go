package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when the input ends before a complete
	// value could be read.
	ErrTruncated = errors.New("unexpected end of input")

	// ErrVarIntOverflow is returned when a variable-width integer carries
	// more continuation bytes than its bit width allows.
	ErrVarIntOverflow = errors.New("varint overflows target width")

	// ErrFormatMismatch is returned when the input is structurally valid
	// bytes but violates the protocol's schema: a bad batch header, an
	// unrecognized enum tag, trailing garbage after the last frame.
	ErrFormatMismatch = errors.New("format mismatch")
)

// UnknownPacketIDError is returned by the registry when a batch carries a
// packet ID no decoder was registered for. It is recoverable: the caller
// decides whether to skip the frame or drop the connection.
type UnknownPacketIDError struct {
	ID uint32
}

func (e *UnknownPacketIDError) Error() string {
	return fmt.Sprintf("unknown packet ID 0x%02X", e.ID)
}

// FrameError wraps a decode failure for one frame inside a batch with
// enough context (packet ID, byte offset within the frame) for the caller
// to decide between dropping the frame and dropping the connection.
type FrameError struct {
	ID     uint32
	Offset int
	Err    error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame packet 0x%02X at offset %d: %v", e.ID, e.Offset, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }
