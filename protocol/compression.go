package protocol

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/snappy"
)

// Compression selects the algorithm applied to a whole batch buffer once
// compression has been negotiated for the session. Compression is never
// applied per frame. The numeric values are the identifiers exchanged
// during negotiation.
type Compression uint16

const (
	CompressionFlate  Compression = 0
	CompressionSnappy Compression = 1
	CompressionNone   Compression = 0xFFFF
)

func (c Compression) String() string {
	switch c {
	case CompressionFlate:
		return "flate"
	case CompressionSnappy:
		return "snappy"
	case CompressionNone:
		return "none"
	default:
		return fmt.Sprintf("compression(%d)", uint16(c))
	}
}

// Compress returns the compressed form of b under c. CompressionNone
// returns b unchanged.
func (c Compression) Compress(b []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return b, nil
	case CompressionFlate:
		var buf bytes.Buffer
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, fmt.Errorf("create flate writer: %w", err)
		}
		if _, err := fw.Write(b); err != nil {
			return nil, fmt.Errorf("flate compress: %w", err)
		}
		if err := fw.Close(); err != nil {
			return nil, fmt.Errorf("flate flush: %w", err)
		}
		return buf.Bytes(), nil
	case CompressionSnappy:
		return snappy.Encode(nil, b), nil
	default:
		return nil, fmt.Errorf("compression %d: %w", uint16(c), ErrFormatMismatch)
	}
}

// Decompress reverses Compress, refusing batches that inflate beyond
// MaxDecompressedBatch.
func (c Compression) Decompress(b []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return b, nil
	case CompressionFlate:
		fr := flate.NewReader(bytes.NewReader(b))
		defer fr.Close()
		out, err := io.ReadAll(io.LimitReader(fr, MaxDecompressedBatch+1))
		if err != nil {
			return nil, fmt.Errorf("flate decompress: %w", err)
		}
		if len(out) > MaxDecompressedBatch {
			return nil, fmt.Errorf("batch decompresses past %d bytes: %w", MaxDecompressedBatch, ErrFormatMismatch)
		}
		return out, nil
	case CompressionSnappy:
		n, err := snappy.DecodedLen(b)
		if err != nil {
			return nil, fmt.Errorf("snappy header: %w", err)
		}
		if n > MaxDecompressedBatch {
			return nil, fmt.Errorf("batch decompresses past %d bytes: %w", MaxDecompressedBatch, ErrFormatMismatch)
		}
		out, err := snappy.Decode(nil, b)
		if err != nil {
			return nil, fmt.Errorf("snappy decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("compression %d: %w", uint16(c), ErrFormatMismatch)
	}
}
