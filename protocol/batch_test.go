package protocol

import (
	"errors"
	"testing"
)

func encodeTestBatch(t *testing.T, comp Compression, cipher *SessionCipher, pkts ...Packet) []byte {
	t.Helper()
	frames := make([][]byte, 0, len(pkts))
	for _, pkt := range pkts {
		f, err := EncodeFrame(pkt)
		if err != nil {
			t.Fatalf("EncodeFrame: %v", err)
		}
		frames = append(frames, f)
	}
	payload, err := EncodeBatch(frames, comp, cipher)
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	return payload
}

func TestBatchPreservesFrameOrder(t *testing.T) {
	reg := newTestRegistry(t)
	payload := encodeTestBatch(t, CompressionNone, nil,
		&echoPacket{Text: "A"},
		&echoPacket{Text: "B"},
		&echoPacket{Text: "C"},
	)

	frames, err := DecodeBatch(payload, CompressionNone, nil)
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	want := []string{"A", "B", "C"}
	for i, frame := range frames {
		pkt, err := DecodeFrame(reg, frame)
		if err != nil {
			t.Fatalf("DecodeFrame %d: %v", i, err)
		}
		if got := pkt.(*echoPacket).Text; got != want[i] {
			t.Errorf("frame %d: got %q, want %q", i, got, want[i])
		}
	}
}

func TestBatchRoundTripWithCompression(t *testing.T) {
	for _, comp := range []Compression{CompressionFlate, CompressionSnappy} {
		t.Run(comp.String(), func(t *testing.T) {
			reg := newTestRegistry(t)
			payload := encodeTestBatch(t, comp, nil, &pingPacket{Nonce: 7})

			frames, err := DecodeBatch(payload, comp, nil)
			if err != nil {
				t.Fatalf("DecodeBatch: %v", err)
			}
			pkt, err := DecodeFrame(reg, frames[0])
			if err != nil {
				t.Fatalf("DecodeFrame: %v", err)
			}
			if pkt.(*pingPacket).Nonce != 7 {
				t.Errorf("Nonce = %d, want 7", pkt.(*pingPacket).Nonce)
			}
		})
	}
}

func TestBatchRoundTripWithEncryption(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i * 7)
	}
	// Separate cipher values stand in for the two peers; each owns its
	// own stream state.
	enc, err := NewSessionCipher(key)
	if err != nil {
		t.Fatalf("NewSessionCipher: %v", err)
	}
	dec, err := NewSessionCipher(key)
	if err != nil {
		t.Fatalf("NewSessionCipher: %v", err)
	}

	reg := newTestRegistry(t)
	for round := 0; round < 3; round++ {
		payload := encodeTestBatch(t, CompressionFlate, enc, &pingPacket{Nonce: uint64(round)})
		frames, err := DecodeBatch(payload, CompressionFlate, dec)
		if err != nil {
			t.Fatalf("round %d DecodeBatch: %v", round, err)
		}
		pkt, err := DecodeFrame(reg, frames[0])
		if err != nil {
			t.Fatalf("round %d DecodeFrame: %v", round, err)
		}
		if pkt.(*pingPacket).Nonce != uint64(round) {
			t.Errorf("round %d: Nonce = %d", round, pkt.(*pingPacket).Nonce)
		}
	}
}

func TestBatchRejectsWrongHeader(t *testing.T) {
	payload := encodeTestBatch(t, CompressionNone, nil, &pingPacket{Nonce: 1})
	payload[0] = 0x01
	if _, err := DecodeBatch(payload, CompressionNone, nil); !errors.Is(err, ErrFormatMismatch) {
		t.Errorf("DecodeBatch with wrong header: got %v, want ErrFormatMismatch", err)
	}
}

func TestBatchRejectsTrailingGarbage(t *testing.T) {
	payload := encodeTestBatch(t, CompressionNone, nil, &pingPacket{Nonce: 1})
	// One stray byte after the last complete frame claims a frame longer
	// than the remaining buffer.
	payload = append(payload, 0x09)
	if _, err := DecodeBatch(payload, CompressionNone, nil); !errors.Is(err, ErrTruncated) {
		t.Errorf("DecodeBatch with trailing partial frame: got %v, want ErrTruncated", err)
	}
}

func TestBatchRejectsEmptyPayload(t *testing.T) {
	if _, err := DecodeBatch(nil, CompressionNone, nil); !errors.Is(err, ErrTruncated) {
		t.Errorf("DecodeBatch(nil): got %v, want ErrTruncated", err)
	}
}

func TestDecodeFrameWrapsFrameError(t *testing.T) {
	reg := newTestRegistry(t)

	w := NewWriter()
	w.VarUint32(0x7F) // unregistered ID
	_, err := DecodeFrame(reg, w.Bytes())
	var fe *FrameError
	if !errors.As(err, &fe) {
		t.Fatalf("DecodeFrame: got %v, want FrameError", err)
	}
	if fe.ID != 0x7F {
		t.Errorf("FrameError.ID = 0x%02X, want 0x7F", fe.ID)
	}
	var unknown *UnknownPacketIDError
	if !errors.As(err, &unknown) {
		t.Errorf("FrameError does not unwrap to UnknownPacketIDError: %v", err)
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	data := make([]byte, 10_000)
	for i := range data {
		data[i] = byte(i % 37)
	}
	for _, comp := range []Compression{CompressionNone, CompressionFlate, CompressionSnappy} {
		t.Run(comp.String(), func(t *testing.T) {
			packed, err := comp.Compress(data)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			out, err := comp.Decompress(packed)
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if len(out) != len(data) {
				t.Fatalf("got %d bytes, want %d", len(out), len(data))
			}
			for i := range out {
				if out[i] != data[i] {
					t.Fatalf("byte %d differs", i)
				}
			}
		})
	}
}
