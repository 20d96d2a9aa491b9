package protocol

import (
	"fmt"
)

// A batch is the unit handed to the transport: one or more frames behind a
// single header byte, compressed and encrypted as a whole once the session
// has negotiated either. Each frame is length-delimited explicitly:
//
//	[frame len: varuint32][packet ID: varuint32][payload]
//
// The explicit length prefix means one corrupt frame is skippable without
// resynchronizing the stream, and lets the registry enforce that every
// decoder consumes exactly its own bytes.

// EncodeFrame serializes pkt into its frame body (ID followed by payload,
// no length prefix; EncodeBatch adds that).
func EncodeFrame(pkt Packet) ([]byte, error) {
	w := NewWriter()
	w.VarUint32(pkt.ID())
	if err := pkt.Marshal(w); err != nil {
		return nil, fmt.Errorf("marshal packet 0x%02X: %w", pkt.ID(), err)
	}
	return w.Bytes(), nil
}

// EncodeBatch concatenates frames into one transport payload, compressing
// and then encrypting the whole buffer when the session state calls for
// it, and prepending the batch header tag. Frame order is preserved
// end to end. A nil cipher means encryption is not yet negotiated.
func EncodeBatch(frames [][]byte, comp Compression, cipher *SessionCipher) ([]byte, error) {
	body := NewWriter()
	for _, f := range frames {
		body.ByteSlice(f)
	}

	out, err := comp.Compress(body.Bytes())
	if err != nil {
		return nil, fmt.Errorf("compress batch: %w", err)
	}
	// Compress may return the input buffer itself; copy before the cipher
	// mutates it in place.
	payload := make([]byte, 1+len(out))
	payload[0] = BatchHeader
	copy(payload[1:], out)
	if cipher != nil {
		cipher.Encrypt(payload[1:])
	}
	return payload, nil
}

// DecodeBatch validates the batch header, decrypts and decompresses the
// body according to the session state, and splits it into frames in wire
// order. Partial trailing data after the last complete frame fails the
// whole batch. The returned frames alias the decoded buffer.
func DecodeBatch(payload []byte, comp Compression, cipher *SessionCipher) ([][]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty batch payload: %w", ErrTruncated)
	}
	if payload[0] != BatchHeader {
		return nil, fmt.Errorf("batch header 0x%02X, want 0x%02X: %w", payload[0], BatchHeader, ErrFormatMismatch)
	}
	body := payload[1:]
	if cipher != nil {
		cipher.Decrypt(body)
	}
	body, err := comp.Decompress(body)
	if err != nil {
		return nil, fmt.Errorf("decompress batch: %w", err)
	}

	var frames [][]byte
	r := NewReader(body)
	for r.Remaining() > 0 {
		n, err := r.VarUint32()
		if err != nil {
			return nil, fmt.Errorf("frame length at offset %d: %w", r.Offset(), err)
		}
		frame, err := r.Bytes(int(n))
		if err != nil {
			return nil, fmt.Errorf("frame body at offset %d: %w", r.Offset(), err)
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// DecodeFrame reads the packet ID off the front of one frame and
// dispatches the remainder through the registry. Failures are wrapped in
// a FrameError so the caller can decide whether the frame or the whole
// connection is dropped.
func DecodeFrame(reg *Registry, frame []byte) (Packet, error) {
	r := NewReader(frame)
	id, err := r.VarUint32()
	if err != nil {
		return nil, &FrameError{Offset: r.Offset(), Err: err}
	}
	pkt, err := reg.Decode(id, r)
	if err != nil {
		return nil, &FrameError{ID: id, Offset: r.Offset(), Err: err}
	}
	return pkt, nil
}
