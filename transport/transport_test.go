package transport

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-memory packetConn. Writes are recorded; reads are fed
// from a channel so tests control datagram arrival.
type fakeConn struct {
	mu     sync.Mutex
	wrote  [][]byte
	inbox  chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbox:  make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-c.inbox:
		return pkt, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) Write(b []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, errors.New("connection closed")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(b))
	copy(cp, b)
	c.wrote = append(c.wrote, cp)
	return len(b), nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 19132}
}

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wrote
}

func TestRakNetSendStampsIdentifier(t *testing.T) {
	conn := newFakeConn()
	tr := newRakNetTransport(conn)
	defer tr.Close()

	if err := tr.Send(context.Background(), []byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	wrote := conn.written()
	if len(wrote) != 1 {
		t.Fatalf("wrote %d datagrams, want 1", len(wrote))
	}
	want := []byte{gamePacketID, 0xAA, 0xBB}
	if !bytes.Equal(wrote[0], want) {
		t.Errorf("wire bytes % X, want % X", wrote[0], want)
	}
}

func TestRakNetRecvStripsIdentifier(t *testing.T) {
	conn := newFakeConn()
	tr := newRakNetTransport(conn)
	defer tr.Close()

	conn.inbox <- []byte{gamePacketID, 0x01, 0x02}
	got, err := tr.Recv(context.Background())
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if !bytes.Equal(got, []byte{0x01, 0x02}) {
		t.Errorf("Recv = % X, want 01 02", got)
	}
}

func TestRakNetRecvPreservesOrder(t *testing.T) {
	conn := newFakeConn()
	tr := newRakNetTransport(conn)
	defer tr.Close()

	for i := byte(0); i < 5; i++ {
		conn.inbox <- []byte{gamePacketID, i}
	}
	for i := byte(0); i < 5; i++ {
		got, err := tr.Recv(context.Background())
		if err != nil {
			t.Fatalf("Recv %d: %v", i, err)
		}
		if got[0] != i {
			t.Errorf("Recv %d returned payload %d", i, got[0])
		}
	}
}

func TestRakNetRecvRejectsWrongIdentifier(t *testing.T) {
	conn := newFakeConn()
	tr := newRakNetTransport(conn)
	defer tr.Close()

	conn.inbox <- []byte{0x13, 0x37}
	if _, err := tr.Recv(context.Background()); err == nil {
		t.Error("Recv accepted a payload with the wrong identifier byte")
	}
}

func TestRakNetRecvOnClosedTransport(t *testing.T) {
	conn := newFakeConn()
	tr := newRakNetTransport(conn)
	tr.Close()

	done := make(chan error, 1)
	go func() {
		_, err := tr.Recv(context.Background())
		done <- err
	}()
	select {
	case err := <-done:
		if err == nil {
			t.Error("Recv on closed transport returned no error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Recv on closed transport hung")
	}
}

func TestRakNetRecvHonorsContext(t *testing.T) {
	conn := newFakeConn()
	tr := newRakNetTransport(conn)
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := tr.Recv(ctx)
		done <- err
	}()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Recv: got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Recv did not observe cancellation")
	}
}

func TestRakNetSendOnClosedTransport(t *testing.T) {
	conn := newFakeConn()
	tr := newRakNetTransport(conn)
	tr.Close()

	if err := tr.Send(context.Background(), []byte{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Send: got %v, want ErrClosed", err)
	}
}

func TestUnimplementedKinds(t *testing.T) {
	for _, kind := range []Kind{KindNetherNet, KindQUIC, KindTCP} {
		t.Run(kind.String(), func(t *testing.T) {
			if _, err := Dial(context.Background(), kind, "127.0.0.1:1"); !errors.Is(err, ErrNotImplemented) {
				t.Errorf("Dial: got %v, want ErrNotImplemented", err)
			}
			if _, err := Listen(kind, "127.0.0.1:1"); !errors.Is(err, ErrNotImplemented) {
				t.Errorf("Listen: got %v, want ErrNotImplemented", err)
			}
		})
	}
}

func TestKindFromString(t *testing.T) {
	kind, err := KindFromString("raknet")
	if err != nil || kind != KindRakNet {
		t.Errorf("KindFromString(raknet) = %v, %v", kind, err)
	}
	if _, err := KindFromString("carrier-pigeon"); err == nil {
		t.Error("KindFromString accepted an unknown kind")
	}
}
