package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

const maxAcceptDelay = time.Second

// Acceptor owns the TCP listener and hands every accepted connection to the hub.
type Acceptor struct {
	listener net.Listener
	hub      *Hub
	cfg      Config
	logger   *slog.Logger
}

// Listen binds the chat listener. Failing to bind is a startup error.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind tcp listener to %s: %w", addr, err)
	}
	return ln, nil
}

// NewAcceptor wraps an already bound listener.
func NewAcceptor(listener net.Listener, hub *Hub, cfg Config, logger *slog.Logger) *Acceptor {
	if logger == nil {
		logger = discardLogger()
	}
	return &Acceptor{
		listener: listener,
		hub:      hub,
		cfg:      cfg.sanitized(),
		logger:   logger,
	}
}

// Addr is the bound listener address.
func (a *Acceptor) Addr() net.Addr {
	return a.listener.Addr()
}

// Serve accepts connections until ctx is cancelled. A failed accept is logged
// and retried; the only error returned is ErrHubStopped, meaning accepted
// connections can no longer be routed.
func (a *Acceptor) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = a.listener.Close()
	})
	defer stop()

	a.logger.Info("listening for new connections", "addr", a.listener.Addr().String())

	var delay time.Duration
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			delay = nextAcceptDelay(delay)
			a.hub.metrics.AcceptErrors.Inc()
			a.logger.Error("failed to accept connection", "error", err, "retry_in", delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		addr := conn.RemoteAddr().String()
		transport := newTCPTransport(conn, a.cfg.MaxPayloadSize, a.cfg.WriteTimeout)
		client := NewClient(transport, addr, a.cfg, a.logger)
		client.logger.Debug("accepted new connection")

		if err := a.hub.Register(ctx, client); err != nil {
			_ = transport.Close()
			if errors.Is(err, ErrHubStopped) {
				return fmt.Errorf("hand off connection from %s: %w", addr, err)
			}
			return nil
		}
	}
}

func nextAcceptDelay(delay time.Duration) time.Duration {
	if delay == 0 {
		return 5 * time.Millisecond
	}
	delay *= 2
	if delay > maxAcceptDelay {
		delay = maxAcceptDelay
	}
	return delay
}
