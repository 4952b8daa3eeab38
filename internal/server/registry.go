package server

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// Registry maps room names to rooms. Rooms are created on first use and never
// removed. It is not safe for concurrent use: the hub goroutine owns it.
//
// Operations that queue payloads return the members whose send buffer was
// full; the caller decides what to do with them.
type Registry struct {
	rooms   map[string]*Room
	logger  *slog.Logger
	metrics *Metrics
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger, metrics *Metrics) *Registry {
	if logger == nil {
		logger = discardLogger()
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &Registry{
		rooms:   make(map[string]*Room),
		logger:  logger,
		metrics: metrics,
	}
}

func (r *Registry) room(name string) *Room {
	room, ok := r.rooms[name]
	if !ok {
		room = newRoom(name)
		r.rooms[name] = room
		r.logger.Info("room created", "room", name)
		r.metrics.Rooms.Set(float64(len(r.rooms)))
	}
	return room
}

// AddMember puts c into room under name, creating the room if needed, and
// tells the members already there that name joined.
func (r *Registry) AddMember(room string, c *Client, name string) []*Client {
	rm := r.room(room)

	failed := r.notify(rm, fmt.Sprintf("%s joined the room", name))

	c.name = name
	c.room = room
	rm.add(c)
	r.metrics.RoomMembers.Inc()
	return failed
}

// RemoveMember removes and returns the first member of room called name, or
// nil if there is none. Names need not be unique, so dispatch resolves
// members by connection id through Detach and Leave; both share remove.
func (r *Registry) RemoveMember(room, name string) *Client {
	rm, ok := r.rooms[room]
	if !ok {
		return nil
	}
	return r.remove(rm, rm.indexByName(name))
}

// Detach removes c from its current room without notifying anyone. It
// reports false if c is not a member of the room it claims.
func (r *Registry) Detach(c *Client) bool {
	rm, ok := r.rooms[c.room]
	if !ok {
		return false
	}
	return r.remove(rm, rm.indexOf(c)) != nil
}

// remove takes the member at index i out of rm. A negative index is a miss.
func (r *Registry) remove(rm *Room, i int) *Client {
	if i < 0 {
		return nil
	}
	c := rm.removeAt(i)
	c.room = ""
	r.metrics.RoomMembers.Dec()
	return c
}

// Leave detaches c and tells the remaining members of its room that it left.
func (r *Registry) Leave(c *Client) []*Client {
	room, name := c.room, c.name
	if !r.Detach(c) {
		return nil
	}
	return r.notify(r.rooms[room], fmt.Sprintf("%s left the room", name))
}

// Broadcast queues payload for every member of room in membership order. A
// full buffer on one member never keeps the others from receiving it.
func (r *Registry) Broadcast(room string, payload []byte) []*Client {
	rm, ok := r.rooms[room]
	if !ok {
		return nil
	}
	return r.fanOut(rm, payload)
}

// SnapshotUsers lists the member names of room in membership order. ok is
// false if the room was never created.
func (r *Registry) SnapshotUsers(room string) (users []string, ok bool) {
	rm, ok := r.rooms[room]
	if !ok {
		return nil, false
	}
	return rm.names(), true
}

// Contains reports whether c is currently a member of the room it claims.
func (r *Registry) Contains(c *Client) bool {
	rm, ok := r.rooms[c.room]
	return ok && rm.indexOf(c) >= 0
}

// Rooms snapshots every room, sorted by name.
func (r *Registry) Rooms() []RoomSnapshot {
	out := make([]RoomSnapshot, 0, len(r.rooms))
	for name, rm := range r.rooms {
		out = append(out, RoomSnapshot{Name: name, Users: rm.names()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// members returns every member of every room.
func (r *Registry) members() []*Client {
	var all []*Client
	for _, rm := range r.rooms {
		all = append(all, rm.members...)
	}
	return all
}

// notify sends a server notice to every current member of rm.
func (r *Registry) notify(rm *Room, text string) []*Client {
	payload, err := protocol.Marshal(protocol.NewSendMessage(text))
	if err != nil {
		r.logger.Error("encoding notice", "error", err)
		return nil
	}
	return r.fanOut(rm, payload)
}

func (r *Registry) fanOut(rm *Room, payload []byte) []*Client {
	delivered, failed := rm.fanOut(payload)
	r.metrics.Deliveries.Add(float64(delivered))
	return failed
}
