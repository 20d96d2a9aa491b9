// Package server implements the session gateway for bedrockd. It owns
// the game-facing listener, runs the login handshake for each peer,
// enforces bans and capacity, and dispatches decoded packets.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bedrocknet/bedrocknet/internal/config"
	"github.com/bedrocknet/bedrocknet/internal/events"
	"github.com/bedrocknet/bedrocknet/internal/store"
	"github.com/bedrocknet/bedrocknet/login"
	"github.com/bedrocknet/bedrocknet/protocol"
	"github.com/bedrocknet/bedrocknet/protocol/packet"
	"github.com/bedrocknet/bedrocknet/session"
	"github.com/bedrocknet/bedrocknet/transport"
)

// Gateway is the central orchestrator for peer sessions.
type Gateway struct {
	mu sync.RWMutex

	cfg      *config.Config
	eventBus *events.EventBus
	store    *store.SessionStore
	registry *protocol.Registry
	logger   zerolog.Logger

	listener *session.Listener
	peers    map[string]*peer
}

// peer tracks one live connection.
type peer struct {
	conn        *session.Conn
	storeID     int64
	identity    login.Identity
	connectedAt time.Time
}

// NewGateway creates the session gateway.
func NewGateway(cfg *config.Config, eventBus *events.EventBus, sessions *store.SessionStore, registry *protocol.Registry) *Gateway {
	return &Gateway{
		cfg:      cfg,
		eventBus: eventBus,
		store:    sessions,
		registry: registry,
		logger:   log.With().Str("component", "gateway").Logger(),
		peers:    make(map[string]*peer),
	}
}

// ActiveCount returns the number of live peers.
func (g *Gateway) ActiveCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.peers)
}

// Start opens the listener and accepts peers until ctx is cancelled.
func (g *Gateway) Start(ctx context.Context) error {
	server := g.cfg.GetServer()

	kind, err := transport.KindFromString(server.Transport)
	if err != nil {
		return fmt.Errorf("gateway transport: %w", err)
	}

	ln, err := session.Listen(kind, server.ListenAddr, g.registry)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	g.listener = ln

	g.logger.Info().
		Str("addr", ln.Addr()).
		Str("transport", kind.String()).
		Int("max_players", server.MaxPlayers).
		Msg("gateway listening")

	// Close the listener when the root context ends so Accept unblocks.
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				return nil
			}
			// Accept errors on RakNet mean the listener itself is gone.
			return fmt.Errorf("gateway accept: %w", err)
		}
		go g.handle(ctx, conn)
	}
}

// handle runs one peer's lifecycle from accept to close.
func (g *Gateway) handle(ctx context.Context, conn *session.Conn) {
	remote := conn.RemoteAddr().String()
	logger := g.logger.With().Str("remote", remote).Logger()

	storeID, err := g.store.RecordConnection(remote)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to record connection")
	}

	g.eventBus.Emit(ctx, events.Event{
		Type:   events.EventConnectionAccepted,
		Source: "gateway",
		Payload: events.ConnectionAcceptedPayload{
			RemoteAddr: remote,
			Transport:  g.cfg.GetServer().Transport,
			At:         time.Now(),
		},
	})

	// Address bans are enforced before the peer spends any handshake work.
	if banned, reason, err := g.store.IsBanned("", remote); err == nil && banned {
		g.reject(ctx, conn, storeID, fmt.Sprintf("address banned: %s", reason))
		return
	}

	req, loginPkt, err := g.login(ctx, conn, storeID)
	if err != nil {
		logger.Info().Err(err).Msg("login rejected")
		return
	}

	ident, _ := req.Identity()
	logger = logger.With().Str("name", ident.DisplayName).Str("xuid", ident.XUID).Logger()

	p := &peer{
		conn:        conn,
		storeID:     storeID,
		identity:    ident,
		connectedAt: time.Now(),
	}
	g.mu.Lock()
	g.peers[remote] = p
	g.mu.Unlock()

	if err := g.store.RecordLogin(storeID, ident.XUID, ident.IdentityID, ident.DisplayName, loginPkt.ClientProtocol); err != nil {
		logger.Warn().Err(err).Msg("failed to record login")
	}
	g.eventBus.Emit(ctx, events.Event{
		Type:   events.EventLoginValidated,
		Source: "gateway",
		Payload: events.LoginValidatedPayload{
			RemoteAddr:  remote,
			XUID:        ident.XUID,
			Identity:    ident.IdentityID,
			DisplayName: ident.DisplayName,
			Protocol:    loginPkt.ClientProtocol,
		},
	})

	server := g.cfg.GetServer()
	comp := compressionFromString(server.Compression)
	conn.EnableCompression(comp)

	if err := conn.StartSession(); err != nil {
		logger.Warn().Err(err).Msg("failed to start session")
		g.close(ctx, conn, p, "internal error")
		return
	}

	if err := conn.WritePackets(ctx, &packet.PlayStatus{Status: packet.PlayStatusLoginSuccess}); err != nil {
		logger.Warn().Err(err).Msg("failed to confirm login")
		g.close(ctx, conn, p, "write failed")
		return
	}

	g.eventBus.Emit(ctx, events.Event{
		Type:   events.EventSessionStarted,
		Source: "gateway",
		Payload: events.SessionStartedPayload{
			RemoteAddr:  remote,
			XUID:        ident.XUID,
			DisplayName: ident.DisplayName,
			Compression: comp.String(),
			Encrypted:   false,
		},
	})
	logger.Info().Str("compression", comp.String()).Msg("session active")

	reason := g.readLoop(ctx, conn, logger)
	g.close(ctx, conn, p, reason)
}

// login runs the handshake and admission checks. On failure the
// connection is closed and recorded as rejected.
func (g *Gateway) login(ctx context.Context, conn *session.Conn, storeID int64) (*login.ConnectionRequest, *packet.Login, error) {
	remote := conn.RemoteAddr().String()
	server := g.cfg.GetServer()

	req, loginPkt, err := conn.Login(ctx)
	if err != nil {
		g.recordRejection(ctx, storeID, remote, err.Error())
		return nil, nil, err
	}

	if int(loginPkt.ClientProtocol) < server.MinProtocol {
		conn.WritePackets(ctx, &packet.PlayStatus{Status: packet.PlayStatusFailedClient})
		conn.Close()
		err := fmt.Errorf("client protocol %d below minimum %d", loginPkt.ClientProtocol, server.MinProtocol)
		g.recordRejection(ctx, storeID, remote, err.Error())
		return nil, nil, err
	}
	if loginPkt.ClientProtocol > protocol.CurrentProtocol {
		conn.WritePackets(ctx, &packet.PlayStatus{Status: packet.PlayStatusFailedServer})
		conn.Close()
		err := fmt.Errorf("client protocol %d newer than server %d", loginPkt.ClientProtocol, protocol.CurrentProtocol)
		g.recordRejection(ctx, storeID, remote, err.Error())
		return nil, nil, err
	}

	ident, ok := req.Identity()
	if !ok && server.RequireXBL {
		conn.Close()
		err := errors.New("chain carries no identity data")
		g.recordRejection(ctx, storeID, remote, err.Error())
		return nil, nil, err
	}

	if banned, reason, err := g.store.IsBanned(ident.XUID, remote); err == nil && banned {
		conn.WritePackets(ctx, &packet.Disconnect{Message: fmt.Sprintf("You are banned: %s", reason)})
		conn.Close()
		err := fmt.Errorf("banned: %s", reason)
		g.recordRejection(ctx, storeID, remote, err.Error())
		return nil, nil, err
	}

	if server.MaxPlayers > 0 && g.ActiveCount() >= server.MaxPlayers {
		conn.WritePackets(ctx, &packet.PlayStatus{Status: packet.PlayStatusFailedServerFull})
		conn.Close()
		err := errors.New("server full")
		g.recordRejection(ctx, storeID, remote, err.Error())
		return nil, nil, err
	}

	return req, loginPkt, nil
}

// readLoop consumes batches until the peer disconnects or the protocol
// breaks. It returns the close reason.
func (g *Gateway) readLoop(ctx context.Context, conn *session.Conn, logger zerolog.Logger) string {
	remote := conn.RemoteAddr().String()

	for {
		pkts, err := conn.ReadBatch(ctx)

		for _, pkt := range pkts {
			g.dispatch(pkt, logger)
		}

		if err == nil {
			continue
		}

		var frameErr *protocol.FrameError
		switch {
		case errors.As(err, &frameErr):
			g.eventBus.Emit(ctx, events.Event{
				Type:   events.EventFrameRejected,
				Source: "gateway",
				Payload: events.FrameRejectedPayload{
					RemoteAddr: remote,
					PacketID:   frameErr.ID,
					Offset:     frameErr.Offset,
					Reason:     frameErr.Error(),
				},
			})
			var unknown *protocol.UnknownPacketIDError
			if errors.As(err, &unknown) {
				g.eventBus.Emit(ctx, events.Event{
					Type:   events.EventUnknownPacket,
					Source: "gateway",
					Payload: events.UnknownPacketPayload{
						RemoteAddr: remote,
						PacketID:   unknown.ID,
					},
				})
			}
			logger.Warn().Uint32("packet_id", frameErr.ID).Int("offset", frameErr.Offset).
				Err(frameErr.Err).Msg("malformed frame")
			conn.WritePackets(ctx, &packet.Disconnect{Message: "Malformed packet"})
			return "malformed frame"
		case errors.Is(err, transport.ErrClosed):
			return "client disconnect"
		case ctx.Err() != nil:
			return "server shutdown"
		default:
			logger.Debug().Err(err).Msg("read failed")
			return "read failed"
		}
	}
}

// dispatch handles one decoded gameplay packet.
func (g *Gateway) dispatch(pkt protocol.Packet, logger zerolog.Logger) {
	switch p := pkt.(type) {
	case *packet.Animate:
		logger.Debug().Int32("action", int32(p.Action)).Msg("animate")
	case *packet.Disconnect:
		logger.Debug().Str("message", p.Message).Msg("client sent disconnect")
	default:
		logger.Debug().Uint32("packet_id", pkt.ID()).Msg("packet received")
	}
}

// close tears down a live peer and records the outcome.
func (g *Gateway) close(ctx context.Context, conn *session.Conn, p *peer, reason string) {
	remote := conn.RemoteAddr().String()
	conn.Close()

	g.mu.Lock()
	delete(g.peers, remote)
	g.mu.Unlock()

	if err := g.store.RecordClose(p.storeID, reason); err != nil {
		g.logger.Warn().Err(err).Msg("failed to record close")
	}

	g.eventBus.Emit(ctx, events.Event{
		Type:   events.EventSessionClosed,
		Source: "gateway",
		Payload: events.SessionClosedPayload{
			RemoteAddr:  remote,
			XUID:        p.identity.XUID,
			DisplayName: p.identity.DisplayName,
			Duration:    time.Since(p.connectedAt),
			Reason:      reason,
		},
	})
	g.logger.Info().Str("remote", remote).Str("reason", reason).Msg("session closed")
}

// reject closes a connection that never reached the handshake.
func (g *Gateway) reject(ctx context.Context, conn *session.Conn, storeID int64, reason string) {
	conn.WritePackets(ctx, &packet.Disconnect{Message: reason})
	conn.Close()
	g.recordRejection(ctx, storeID, conn.RemoteAddr().String(), reason)
}

func (g *Gateway) recordRejection(ctx context.Context, storeID int64, remote, reason string) {
	if err := g.store.RecordRejection(storeID, reason); err != nil {
		g.logger.Warn().Err(err).Msg("failed to record rejection")
	}
	g.eventBus.Emit(ctx, events.Event{
		Type:   events.EventLoginRejected,
		Source: "gateway",
		Payload: events.LoginRejectedPayload{
			RemoteAddr: remote,
			Reason:     reason,
		},
	})
}

// Stop closes the listener. Live peers drain through their read loops.
func (g *Gateway) Stop() error {
	if g.listener != nil {
		return g.listener.Close()
	}
	return nil
}

// compressionFromString maps a configured algorithm name to its protocol
// constant. Unknown names fall back to none.
func compressionFromString(s string) protocol.Compression {
	switch s {
	case "flate":
		return protocol.CompressionFlate
	case "snappy":
		return protocol.CompressionSnappy
	default:
		return protocol.CompressionNone
	}
}
