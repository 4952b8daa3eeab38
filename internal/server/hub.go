// Package server coordinates connection hand-off, the join handshake, room
// membership and message fan-out for the chat system via the Hub type.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrHubStopped is returned when handing a connection to a hub that has exited.
var ErrHubStopped = errors.New("hub stopped")

// Hub owns every piece of room state. A single goroutine (Run) receives
// accepted connections, inbound payloads and departures over channels and is
// the only code that reads or mutates the unassigned pool and the registry.
type Hub struct {
	logger   *slog.Logger
	metrics  *Metrics
	registry *Registry
	// unassigned connections still waiting for their Join payload
	pool map[uuid.UUID]*Client

	register chan *Client
	inbound  chan inbound
	queries  chan chan []RoomSnapshot

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewHub creates a hub. A nil metrics gets a private registry.
func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = discardLogger()
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &Hub{
		logger:     logger,
		metrics:    metrics,
		registry:   NewRegistry(logger, metrics),
		pool:       make(map[uuid.UUID]*Client),
		register: make(chan *Client),
		inbound:  make(chan inbound, 256),
		queries:  make(chan chan []RoomSnapshot),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Register hands a freshly accepted connection to the hub. It blocks until
// the hub takes it and returns ErrHubStopped if the hub has exited.
func (h *Hub) Register(ctx context.Context, c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliver passes a payload from c's read pump to the hub.
func (h *Hub) deliver(c *Client, payload []byte) bool {
	select {
	case h.inbound <- inbound{client: c, payload: payload}:
		return true
	case <-h.done:
		return false
	}
}

// depart reports that c's transport is gone. It travels on the inbound
// channel behind c's earlier payloads.
func (h *Hub) depart(c *Client) {
	select {
	case h.inbound <- inbound{client: c, eof: true}:
	case <-h.done:
	}
}

// Rooms returns a snapshot of every room and its members.
func (h *Hub) Rooms(ctx context.Context) ([]RoomSnapshot, error) {
	reply := make(chan []RoomSnapshot, 1)
	select {
	case h.queries <- reply:
	case <-h.done:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case rooms := <-reply:
		return rooms, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled or Shutdown
// is called, after closing every connection it holds.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	h.logger.Info("hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdownClients()
			return

		case <-h.stop:
			h.shutdownClients()
			return

		case c := <-h.register:
			h.handleRegister(c)

		case msg := <-h.inbound:
			h.handleInbound(msg)

		case reply := <-h.queries:
			reply <- h.registry.Rooms()
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	if c == nil {
		h.logger.Warn("received nil client registration; skipping")
		return
	}

	h.pool[c.id] = c
	h.metrics.ConnectionsAccepted.Inc()
	h.metrics.UnassignedConnections.Set(float64(len(h.pool)))
	c.logger.Info("connection awaiting join", "unassigned", len(h.pool))

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump(h)
	}()
}

// disconnect removes departed clients from the pool or their room and
// closes them. Members whose buffers overflow while being told about a
// departure are disconnected in turn.
func (h *Hub) disconnect(clients ...*Client) {
	queue := clients
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil || c.closed {
			continue
		}

		if _, ok := h.pool[c.id]; ok {
			delete(h.pool, c.id)
			h.metrics.UnassignedConnections.Set(float64(len(h.pool)))
			c.logger.Info("unassigned connection left")
		} else if c.room != "" {
			room, name := c.room, c.name
			queue = append(queue, h.registry.Leave(c)...)
			c.logger.Info("member left", "room", room, "name", name)
		}

		h.closeClient(c)
	}
}

// dropSlow disconnects members whose send buffer was full.
func (h *Hub) dropSlow(clients []*Client) {
	for _, c := range clients {
		if c.closed {
			continue
		}
		h.metrics.SlowClientsDropped.Inc()
		c.logger.Warn("send buffer full; disconnecting slow client", "name", c.name, "room", c.room)
	}
	h.disconnect(clients...)
}

// closeClient closes c's send channel; its write pump drains what is queued
// and then closes the transport.
func (h *Hub) closeClient(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// shutdownClients closes every connection the hub holds.
func (h *Hub) shutdownClients() {
	h.logger.Info("shutting down all client connections")

	clients := make([]*Client, 0, len(h.pool))
	for _, c := range h.pool {
		clients = append(clients, c)
	}
	clients = append(clients, h.registry.members()...)

	for _, c := range clients {
		h.closeClient(c)
		if err := c.transport.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn("error closing connection", "error", err)
		}
	}

	h.logger.Info("closed client connections", "count", len(clients))
}

// Shutdown stops the hub and waits for every connection pump to finish, or
// until timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")
	h.stopOnce.Do(func() { close(h.stop) })

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
	case <-timer.C:
		return context.DeadlineExceeded
	}

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-timer.C:
		h.logger.Warn("hub shutdown timeout reached, some pumps may still be running")
		return context.DeadlineExceeded
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
