package protocol

const (
	// CurrentProtocol is the protocol version this codec implements.
	CurrentProtocol int32 = 662

	// CurrentVersion is the matching human-readable game version.
	CurrentVersion = "1.20.70"

	// BatchHeader is the single-byte tag preceding every game-data batch,
	// distinguishing it from transport-control payloads on the same
	// channel. Fixed per protocol version; receivers reject other values.
	BatchHeader byte = 0xFE
)

// MaxDecompressedBatch caps how far a compressed batch may inflate. A
// batch claiming to decompress beyond it is rejected instead of letting a
// peer balloon server memory.
const MaxDecompressedBatch = 4 << 20
