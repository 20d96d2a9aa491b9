package session

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bedrocknet/bedrocknet/protocol"
	"github.com/bedrocknet/bedrocknet/transport"
)

// Listener accepts peers off a transport listener and hands each one its
// own Conn. The registry is shared read-only across every accepted
// connection; nothing else is.
type Listener struct {
	ln     transport.Listener
	reg    *protocol.Registry
	logger zerolog.Logger
}

// Listen starts accepting connections on addr over the given transport.
func Listen(kind transport.Kind, addr string, reg *protocol.Registry) (*Listener, error) {
	ln, err := transport.Listen(kind, addr)
	if err != nil {
		return nil, err
	}
	logger := log.With().Str("component", "listener").Str("transport", kind.String()).Logger()
	logger.Info().Str("addr", ln.Addr().String()).Msg("listening")
	return &Listener{ln: ln, reg: reg, logger: logger}, nil
}

// Accept blocks until the next peer connects. The returned Conn starts in
// the Unauthenticated phase with compression and encryption disabled.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	t, err := l.ln.Accept(ctx)
	if err != nil {
		return nil, err
	}
	l.logger.Debug().Str("remote", t.RemoteAddr().String()).Msg("peer accepted")
	return NewConn(t, l.reg), nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() string { return l.ln.Addr().String() }

// Close stops accepting and unblocks a pending Accept.
func (l *Listener) Close() error { return l.ln.Close() }
