package session

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bedrocknet/bedrocknet/protocol"
	"github.com/bedrocknet/bedrocknet/protocol/packet"
	"github.com/bedrocknet/bedrocknet/transport"
)

// memTransport is an in-memory Transport; two of them joined by Pipe form
// a full duplex channel for driving a Conn from the peer's side.
type memTransport struct {
	in   chan []byte
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func memPipe() (*memTransport, *memTransport) {
	a := make(chan []byte, 64)
	b := make(chan []byte, 64)
	done := make(chan struct{})
	return &memTransport{in: a, out: b, done: done}, &memTransport{in: b, out: a, done: done}
}

func (m *memTransport) Send(ctx context.Context, payload []byte) error {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	select {
	case m.out <- cp:
		return nil
	case <-m.done:
		return transport.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *memTransport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case pkt := <-m.in:
		return pkt, nil
	case <-m.done:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *memTransport) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *memTransport) RemoteAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 19132}
}

func newTestRegistry(t *testing.T) *protocol.Registry {
	t.Helper()
	reg := protocol.NewRegistry()
	if err := packet.Register(reg); err != nil {
		t.Fatalf("register packets: %v", err)
	}
	return reg
}

func TestConnRoundTripPreservesOrder(t *testing.T) {
	reg := newTestRegistry(t)
	serverT, clientT := memPipe()
	server := NewConn(serverT, reg)
	client := NewConn(clientT, reg)
	defer server.Close()

	ctx := context.Background()
	err := client.WritePackets(ctx,
		&packet.Animate{Action: packet.AnimateSwing, EntityRuntimeID: 1},
		&packet.Animate{Action: packet.AnimateWakeUp, EntityRuntimeID: 2},
		&packet.Disconnect{HideScreen: true},
	)
	if err != nil {
		t.Fatalf("WritePackets: %v", err)
	}

	pkts, err := server.ReadBatch(ctx)
	if err != nil {
		t.Fatalf("ReadBatch: %v", err)
	}
	if len(pkts) != 3 {
		t.Fatalf("got %d packets, want 3", len(pkts))
	}
	if a := pkts[0].(*packet.Animate); a.EntityRuntimeID != 1 {
		t.Errorf("packet 0 runtime ID = %d, want 1", a.EntityRuntimeID)
	}
	if a := pkts[1].(*packet.Animate); a.EntityRuntimeID != 2 {
		t.Errorf("packet 1 runtime ID = %d, want 2", a.EntityRuntimeID)
	}
	if _, ok := pkts[2].(*packet.Disconnect); !ok {
		t.Errorf("packet 2 is %T, want *packet.Disconnect", pkts[2])
	}
}

func TestConnNegotiatedPipeline(t *testing.T) {
	reg := newTestRegistry(t)
	serverT, clientT := memPipe()
	server := NewConn(serverT, reg)
	client := NewConn(clientT, reg)
	defer server.Close()

	var key [32]byte
	key[0] = 0x42
	server.EnableCompression(protocol.CompressionFlate)
	client.EnableCompression(protocol.CompressionFlate)
	if err := server.EnableEncryption(key); err != nil {
		t.Fatalf("EnableEncryption: %v", err)
	}
	if err := client.EnableEncryption(key); err != nil {
		t.Fatalf("EnableEncryption: %v", err)
	}

	ctx := context.Background()
	in := &packet.Disconnect{Message: "negotiated pipeline"}
	if err := client.WritePackets(ctx, in); err != nil {
		t.Fatalf("WritePackets: %v", err)
	}
	pkts, err := server.ReadBatch(ctx)
	if err != nil {
		t.Fatalf("ReadBatch: %v", err)
	}
	if got := pkts[0].(*packet.Disconnect).Message; got != in.Message {
		t.Errorf("Message = %q, want %q", got, in.Message)
	}
}

func TestConnReadBatchSurfacesFrameError(t *testing.T) {
	reg := newTestRegistry(t)
	serverT, clientT := memPipe()
	server := NewConn(serverT, reg)
	defer server.Close()

	// Hand-build a batch: one good frame, then one with an ID the
	// registry does not know.
	good, err := protocol.EncodeFrame(&packet.Disconnect{HideScreen: true})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	w := protocol.NewWriter()
	w.VarUint32(0x66)
	payload, err := protocol.EncodeBatch([][]byte{good, w.Bytes()}, protocol.CompressionNone, nil)
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	if err := clientT.Send(context.Background(), payload); err != nil {
		t.Fatalf("Send: %v", err)
	}

	pkts, err := server.ReadBatch(context.Background())
	var fe *protocol.FrameError
	if !errors.As(err, &fe) {
		t.Fatalf("ReadBatch: got %v, want FrameError", err)
	}
	if fe.ID != 0x66 {
		t.Errorf("FrameError.ID = 0x%02X, want 0x66", fe.ID)
	}
	if len(pkts) != 1 {
		t.Errorf("got %d packets decoded before the bad frame, want 1", len(pkts))
	}
}

func TestConnPhaseMonotonic(t *testing.T) {
	serverT, _ := memPipe()
	c := NewConn(serverT, newTestRegistry(t))
	defer c.Close()

	if c.Phase() != Unauthenticated {
		t.Fatalf("initial phase = %s", c.Phase())
	}
	if err := c.Advance(ChainValidated); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := c.Advance(SessionActive); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := c.Advance(ChainValidated); err == nil {
		t.Error("phase regressed without error")
	}
	if err := c.Advance(SessionActive); err == nil {
		t.Error("phase repeat accepted")
	}
}

// loginHandshake builds a minimal valid 1-link handshake payload.
func loginHandshake(t *testing.T) []byte {
	t.Helper()
	newKey := func() (*ecdsa.PrivateKey, string) {
		priv, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
		if err != nil {
			t.Fatalf("marshal key: %v", err)
		}
		return priv, base64.StdEncoding.EncodeToString(der)
	}
	rootPriv, rootPub := newKey()
	clientPriv, clientPub := newKey()

	link := jwt.NewWithClaims(jwt.SigningMethodES384, jwt.MapClaims{
		"identityPublicKey": clientPub,
		"extraData":         map[string]any{"displayName": "Alex", "XUID": "1"},
	})
	link.Header["x5u"] = rootPub
	linkStr, err := link.SignedString(rootPriv)
	if err != nil {
		t.Fatalf("sign link: %v", err)
	}
	chainJSON, _ := json.Marshal(map[string][]string{"chain": {linkStr}})

	raw := jwt.NewWithClaims(jwt.SigningMethodES384, jwt.MapClaims{"DeviceModel": "mem"})
	rawStr, err := raw.SignedString(clientPriv)
	if err != nil {
		t.Fatalf("sign raw token: %v", err)
	}

	w := protocol.NewWriter()
	w.VarUint32(uint32(8 + len(chainJSON) + len(rawStr)))
	w.Int32(int32(len(chainJSON)))
	w.Raw(chainJSON)
	w.Int32(int32(len(rawStr)))
	w.Raw([]byte(rawStr))
	return w.Bytes()
}

func TestConnLogin(t *testing.T) {
	reg := newTestRegistry(t)
	serverT, clientT := memPipe()
	server := NewConn(serverT, reg)
	client := NewConn(clientT, reg)

	ctx := context.Background()
	err := client.WritePackets(ctx, &packet.Login{
		ClientProtocol:    protocol.CurrentProtocol,
		ConnectionRequest: loginHandshake(t),
	})
	if err != nil {
		t.Fatalf("WritePackets: %v", err)
	}

	req, loginPkt, err := server.Login(ctx)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if loginPkt.ClientProtocol != protocol.CurrentProtocol {
		t.Errorf("ClientProtocol = %d", loginPkt.ClientProtocol)
	}
	ident, ok := req.Identity()
	if !ok || ident.DisplayName != "Alex" {
		t.Errorf("Identity() = %+v, %v", ident, ok)
	}
	if server.Phase() != ChainValidated {
		t.Errorf("phase after login = %s, want chain_validated", server.Phase())
	}
	if err := server.StartSession(); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if server.Phase() != SessionActive {
		t.Errorf("phase = %s, want session_active", server.Phase())
	}
}

func TestConnLoginRejectsGarbage(t *testing.T) {
	reg := newTestRegistry(t)
	serverT, clientT := memPipe()
	server := NewConn(serverT, reg)
	client := NewConn(clientT, reg)

	ctx := context.Background()
	err := client.WritePackets(ctx, &packet.Login{
		ClientProtocol:    protocol.CurrentProtocol,
		ConnectionRequest: []byte("not a handshake"),
	})
	if err != nil {
		t.Fatalf("WritePackets: %v", err)
	}
	if _, _, err := server.Login(ctx); err == nil {
		t.Fatal("Login accepted a garbage connection request")
	}
	// The connection is closed on handshake failure; the next read fails.
	if _, err := server.ReadBatch(ctx); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("ReadBatch after failed login: got %v, want ErrClosed", err)
	}
}

func TestConnLoginWrongFirstPacket(t *testing.T) {
	reg := newTestRegistry(t)
	serverT, clientT := memPipe()
	server := NewConn(serverT, reg)
	client := NewConn(clientT, reg)

	ctx := context.Background()
	if err := client.WritePackets(ctx, &packet.Animate{Action: packet.AnimateSwing, EntityRuntimeID: 1}); err != nil {
		t.Fatalf("WritePackets: %v", err)
	}
	if _, _, err := server.Login(ctx); err == nil {
		t.Fatal("Login accepted a non-login first packet")
	}
	if server.Phase() != Unauthenticated {
		t.Errorf("phase = %s, want unauthenticated", server.Phase())
	}
}
