// Package transport abstracts the channel carrying opaque batch payloads
// between peers. One concrete implementation exists today (RakNet over
// UDP); the other variants are reserved and fail with ErrNotImplemented
// instead of panicking placeholders.
//
// Every variant owns a single identifier byte stamped ahead of each
// payload on send and validated on receive, ahead of the envelope
// pipeline's own batch tag. That byte is what lets one physical channel
// carry transport-control and game-data traffic unambiguously.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrNotImplemented is returned for transport kinds that are reserved
	// but not yet backed by an implementation.
	ErrNotImplemented = errors.New("transport not implemented")

	// ErrClosed is returned from Send and Recv after the transport has
	// been closed locally or by the peer.
	ErrClosed = errors.New("transport closed")
)

// Kind selects a transport implementation.
type Kind int

const (
	KindRakNet Kind = iota
	KindNetherNet
	KindQUIC
	KindTCP
)

func (k Kind) String() string {
	switch k {
	case KindRakNet:
		return "raknet"
	case KindNetherNet:
		return "nethernet"
	case KindQUIC:
		return "quic"
	case KindTCP:
		return "tcp"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// KindFromString resolves a configuration string to a Kind.
func KindFromString(s string) (Kind, error) {
	switch s {
	case "raknet":
		return KindRakNet, nil
	case "nethernet":
		return KindNetherNet, nil
	case "quic":
		return KindQUIC, nil
	case "tcp":
		return KindTCP, nil
	default:
		return 0, fmt.Errorf("unknown transport kind %q", s)
	}
}

// Transport is one established channel to a peer. Implementations carry
// whole application-level datagrams; callers never see partial messages.
type Transport interface {
	// Send transmits one payload, best effort: no internal retries, the
	// caller owns any retry or backoff policy.
	Send(ctx context.Context, payload []byte) error

	// Recv blocks until one inbound datagram is available, the context is
	// cancelled, or the channel fails (peer disconnect, decode failure).
	Recv(ctx context.Context) ([]byte, error)

	// Close releases the channel and unblocks pending Send/Recv calls.
	Close() error

	RemoteAddr() net.Addr
}

// Listener accepts inbound transport channels, one per peer.
type Listener interface {
	Accept(ctx context.Context) (Transport, error)
	Addr() net.Addr
	Close() error
}

// Dial connects to addr over the given transport kind.
func Dial(ctx context.Context, kind Kind, addr string) (Transport, error) {
	switch kind {
	case KindRakNet:
		return dialRakNet(ctx, addr)
	default:
		return nil, fmt.Errorf("dial %s: %w", kind, ErrNotImplemented)
	}
}

// Listen starts accepting peers on addr over the given transport kind.
func Listen(kind Kind, addr string) (Listener, error) {
	switch kind {
	case KindRakNet:
		return listenRakNet(addr)
	default:
		return nil, fmt.Errorf("listen %s: %w", kind, ErrNotImplemented)
	}
}
