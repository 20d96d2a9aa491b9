package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sandertv/go-raknet"
)

// gamePacketID is the RakNet variant's identifier byte: every game-data
// payload on a RakNet channel starts with it, distinguishing game traffic
// from RakNet's own control messages.
const gamePacketID byte = 0xFE

// packetConn is the message-oriented surface this transport needs from an
// underlying RakNet connection. *raknet.Conn satisfies it; tests inject
// an in-memory fake.
type packetConn interface {
	ReadPacket() ([]byte, error)
	Write(b []byte) (int, error)
	Close() error
	RemoteAddr() net.Addr
}

// rakNetTransport carries batch payloads over one reliable-UDP RakNet
// connection. A single read loop owns the underlying conn's read side and
// feeds Recv through a channel, so cancelling one Recv never loses a
// datagram.
type rakNetTransport struct {
	conn   packetConn
	logger zerolog.Logger

	packets chan []byte
	done    chan struct{}

	closeOnce sync.Once

	mu      sync.Mutex
	readErr error
}

func newRakNetTransport(conn packetConn) *rakNetTransport {
	t := &rakNetTransport{
		conn:   conn,
		logger: log.With().Str("component", "transport").Str("remote", conn.RemoteAddr().String()).Logger(),
		// A small buffer decouples the read loop from a consumer that is
		// busy decoding the previous batch.
		packets: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *rakNetTransport) readLoop() {
	defer close(t.packets)
	for {
		pkt, err := t.conn.ReadPacket()
		if err != nil {
			t.fail(fmt.Errorf("raknet read: %w", err))
			return
		}
		if len(pkt) == 0 || pkt[0] != gamePacketID {
			tag := byte(0)
			if len(pkt) > 0 {
				tag = pkt[0]
			}
			t.fail(fmt.Errorf("raknet payload tagged 0x%02X, want 0x%02X", tag, gamePacketID))
			return
		}
		select {
		case t.packets <- pkt[1:]:
		case <-t.done:
			return
		}
	}
}

func (t *rakNetTransport) fail(err error) {
	t.mu.Lock()
	if t.readErr == nil {
		t.readErr = err
	}
	t.mu.Unlock()
}

func (t *rakNetTransport) takeErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return t.readErr
	}
	return ErrClosed
}

func (t *rakNetTransport) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	buf := make([]byte, 1+len(payload))
	buf[0] = gamePacketID
	copy(buf[1:], payload)
	if _, err := t.conn.Write(buf); err != nil {
		return fmt.Errorf("raknet write: %w", err)
	}
	return nil
}

func (t *rakNetTransport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case pkt, ok := <-t.packets:
		if !ok {
			return nil, t.takeErr()
		}
		return pkt, nil
	}
}

func (t *rakNetTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.conn.Close()
		t.logger.Debug().Msg("transport closed")
	})
	return err
}

func (t *rakNetTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

func dialRakNet(ctx context.Context, addr string) (Transport, error) {
	conn, err := raknet.DialContext(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("raknet dial %s: %w", addr, err)
	}
	return newRakNetTransport(conn), nil
}

// rakNetListener adapts *raknet.Listener. Closing the listener unblocks a
// pending Accept.
type rakNetListener struct {
	ln *raknet.Listener
}

func listenRakNet(addr string) (Listener, error) {
	ln, err := raknet.Listen(addr)
	if err != nil {
		return nil, fmt.Errorf("raknet listen %s: %w", addr, err)
	}
	return &rakNetListener{ln: ln}, nil
}

func (l *rakNetListener) Accept(ctx context.Context) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := l.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("raknet accept: %w", err)
	}
	rk, ok := conn.(*raknet.Conn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("raknet accept returned %T", conn)
	}
	return newRakNetTransport(rk), nil
}

func (l *rakNetListener) Addr() net.Addr { return l.ln.Addr() }

func (l *rakNetListener) Close() error { return l.ln.Close() }
