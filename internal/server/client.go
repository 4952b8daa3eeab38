// Package server manages individual chat connections, handling read/write
// pumps, rate limiting, and lifecycle control for each of them.
package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// Client is one accepted connection. Equality is by id: display names are
// chosen by users and may repeat.
type Client struct {
	id        uuid.UUID
	addr      string
	transport Transport
	send      chan []byte
	limiter   *rate.Limiter
	logger    *slog.Logger

	// Owned by the hub goroutine.
	name   string
	room   string
	closed bool
}

// NewClient wraps transport. addr is the remote peer address, kept for logs.
func NewClient(transport Transport, addr string, cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.sanitized()
	if logger == nil {
		logger = discardLogger()
	}
	id := uuid.New()

	return &Client{
		id:        id,
		addr:      addr,
		transport: transport,
		send:      make(chan []byte, cfg.SendBufferSize),
		limiter:   newRateLimiter(cfg.RateLimit),
		logger:    logger.With("conn_id", id.String(), "addr", addr),
	}
}

// ID returns the stable connection identifier.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// Addr returns the remote peer address.
func (c *Client) Addr() string {
	return c.addr
}

// enqueue queues payload without blocking and reports whether it fit.
// Hub goroutine only.
func (c *Client) enqueue(payload []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// readPump feeds payloads to the hub until the transport fails, then
// reports the client as gone on the same channel.
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.depart(c)
		_ = c.transport.Close()
	}()

	for {
		payload, err := c.transport.ReadPayload()
		if err != nil {
			if errors.Is(err, protocol.ErrPayloadTooLarge) {
				c.logger.Warn("discarding oversized payload", "error", err)
				h.metrics.DroppedPayloads.WithLabelValues(dropTooLarge).Inc()
				continue
			}
			c.logReadError(err)
			return
		}

		if !c.limiter.Allow() {
			c.logger.Warn("rate limit exceeded; discarding payload")
			h.metrics.DroppedPayloads.WithLabelValues(dropRateLimited).Inc()
			continue
		}

		c.logger.Debug("received payload", "payload", string(payload))
		if !h.deliver(c, payload) {
			return
		}
	}
}

func (c *Client) logReadError(err error) {
	if isExpectedCloseError(err) {
		c.logger.Info("connection closed", "reason", err)
		return
	}
	c.logger.Warn("read error; closing connection", "error", err)
}

// writePump writes queued payloads in order. It closes the transport when
// the hub closes the send channel or a write fails.
func (c *Client) writePump() {
	var tick <-chan time.Time
	if _, ok := c.transport.(pinger); ok {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer func() {
		_ = c.transport.Close()
	}()

	for c.processWriteEvent(tick) {
	}
}

// processWriteEvent waits for the next write event and returns false when
// the pump should stop.
func (c *Client) processWriteEvent(tick <-chan time.Time) bool {
	select {
	case payload, ok := <-c.send:
		if !ok {
			return false
		}
		if err := c.transport.WritePayload(payload); err != nil {
			if !isExpectedCloseError(err) {
				c.logger.Warn("write failed; closing connection", "error", err)
			}
			return false
		}
		return true
	case <-tick:
		p, _ := c.transport.(pinger)
		if err := p.Ping(); err != nil {
			c.logger.Debug("ping failed; closing connection", "error", err)
			return false
		}
		return true
	}
}
