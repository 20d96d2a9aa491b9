// Package session orchestrates one connection per peer: it owns the
// transport channel, the compression and encryption state negotiated for
// the session, and the handshake phase, and moves packets between the
// caller and the envelope pipeline.
package session

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bedrocknet/bedrocknet/login"
	"github.com/bedrocknet/bedrocknet/protocol"
	"github.com/bedrocknet/bedrocknet/protocol/packet"
	"github.com/bedrocknet/bedrocknet/transport"
)

// Phase is a connection's handshake state. It only ever moves forward.
type Phase uint32

const (
	Unauthenticated Phase = iota
	ChainValidated
	SessionActive
)

func (p Phase) String() string {
	switch p {
	case Unauthenticated:
		return "unauthenticated"
	case ChainValidated:
		return "chain_validated"
	case SessionActive:
		return "session_active"
	default:
		return fmt.Sprintf("phase(%d)", uint32(p))
	}
}

// Conn is the process-lifetime object for one peer. The registry it
// shares with other connections is read-only; everything else here is
// exclusively owned. Batches from one Conn are decoded strictly in
// arrival order: ReadBatch must not be called concurrently with itself.
type Conn struct {
	t      transport.Transport
	reg    *protocol.Registry
	logger zerolog.Logger

	mu     sync.Mutex
	phase  Phase
	comp   protocol.Compression
	cipher *protocol.SessionCipher
}

// NewConn wraps an established transport channel. Compression and
// encryption start disabled; the handshake negotiates them.
func NewConn(t transport.Transport, reg *protocol.Registry) *Conn {
	return &Conn{
		t:      t,
		reg:    reg,
		logger: log.With().Str("component", "session").Str("remote", t.RemoteAddr().String()).Logger(),
		comp:   protocol.CompressionNone,
	}
}

// Phase returns the connection's current handshake phase.
func (c *Conn) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Advance moves the handshake phase forward. Phases are monotonic; a
// regression or a repeat is an error.
func (c *Conn) Advance(next Phase) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if next <= c.phase {
		return fmt.Errorf("phase %s cannot regress to %s", c.phase, next)
	}
	c.logger.Debug().Str("from", c.phase.String()).Str("to", next.String()).Msg("phase advanced")
	c.phase = next
	return nil
}

// EnableCompression sets the batch compression negotiated for the rest of
// the session.
func (c *Conn) EnableCompression(comp protocol.Compression) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.comp = comp
	c.logger.Debug().Str("algorithm", comp.String()).Msg("compression enabled")
}

// EnableEncryption installs the session cipher derived from the handshake
// key. All batches after this call are encrypted on the wire.
func (c *Conn) EnableEncryption(key [32]byte) error {
	cipher, err := protocol.NewSessionCipher(key)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.cipher = cipher
	c.mu.Unlock()
	c.logger.Debug().Msg("encryption enabled")
	return nil
}

func (c *Conn) pipelineState() (protocol.Compression, *protocol.SessionCipher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.comp, c.cipher
}

// WritePackets serializes pkts into one batch, in the order given, and
// sends it. Order is preserved end to end; nothing is coalesced beyond
// this explicit batching.
func (c *Conn) WritePackets(ctx context.Context, pkts ...protocol.Packet) error {
	frames := make([][]byte, 0, len(pkts))
	for _, pkt := range pkts {
		frame, err := protocol.EncodeFrame(pkt)
		if err != nil {
			return err
		}
		frames = append(frames, frame)
	}

	// Holding the lock across encode+send keeps cipher stream order
	// aligned with transport order when callers write concurrently.
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, err := protocol.EncodeBatch(frames, c.comp, c.cipher)
	if err != nil {
		return err
	}
	return c.t.Send(ctx, payload)
}

// ReadBatch receives the next batch and decodes its frames in wire order.
// When one frame fails, the packets decoded before it are returned
// alongside a *protocol.FrameError carrying the packet ID and offset:
// whether to keep the connection is the caller's policy, not the codec's.
func (c *Conn) ReadBatch(ctx context.Context) ([]protocol.Packet, error) {
	payload, err := c.t.Recv(ctx)
	if err != nil {
		return nil, err
	}
	comp, cipher := c.pipelineState()
	frames, err := protocol.DecodeBatch(payload, comp, cipher)
	if err != nil {
		return nil, err
	}
	pkts := make([]protocol.Packet, 0, len(frames))
	for _, frame := range frames {
		pkt, err := protocol.DecodeFrame(c.reg, frame)
		if err != nil {
			return pkts, err
		}
		pkts = append(pkts, pkt)
	}
	return pkts, nil
}

// Login runs the server side of the handshake: it expects the peer's
// first packet to be Login, validates the certificate chain, and advances
// the phase to ChainValidated. On any failure the connection is closed
// without leaking protocol detail to the peer, and the error is returned
// for the caller's logs only.
func (c *Conn) Login(ctx context.Context) (*login.ConnectionRequest, *packet.Login, error) {
	if p := c.Phase(); p != Unauthenticated {
		return nil, nil, fmt.Errorf("login in phase %s", p)
	}
	pkts, err := c.ReadBatch(ctx)
	if err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("read login batch: %w", err)
	}
	if len(pkts) != 1 {
		c.Close()
		return nil, nil, fmt.Errorf("login batch carried %d packets, want 1", len(pkts))
	}
	loginPkt, ok := pkts[0].(*packet.Login)
	if !ok {
		c.Close()
		return nil, nil, fmt.Errorf("first packet is %T, want *packet.Login", pkts[0])
	}
	req, err := login.DecodeRequest(loginPkt.ConnectionRequest)
	if err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("connection request: %w", err)
	}
	if err := c.Advance(ChainValidated); err != nil {
		c.Close()
		return nil, nil, err
	}
	return req, loginPkt, nil
}

// StartSession promotes a chain-validated connection to active gameplay.
func (c *Conn) StartSession() error {
	if p := c.Phase(); p != ChainValidated {
		return fmt.Errorf("start session in phase %s", p)
	}
	return c.Advance(SessionActive)
}

// Close cancels pending transport calls and releases the channel. Decode
// work in flight finishes or is abandoned; it has no side effects beyond
// its return value.
func (c *Conn) Close() error {
	return c.t.Close()
}

// RemoteAddr returns the peer's address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.t.RemoteAddr()
}
