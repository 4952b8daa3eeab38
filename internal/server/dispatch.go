package server

import (
	"errors"
	"fmt"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

const commandJoin = "Join"

// handleInbound interprets one payload. Failures are logged and absorbed;
// nothing here may stop the hub loop.
func (h *Hub) handleInbound(msg inbound) {
	c := msg.client
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("recovered from panic while handling payload", "panic", r)
		}
	}()

	if msg.eof {
		h.disconnect(c)
		return
	}

	if c.closed {
		h.metrics.DroppedPayloads.WithLabelValues(dropStale).Inc()
		return
	}

	if _, unassigned := h.pool[c.id]; unassigned {
		h.handleJoin(c, msg.payload)
		return
	}

	cmd, err := protocol.Decode(msg.payload)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownCommand) {
			c.logger.Warn("received an unknown command type", "error", err, "payload", string(msg.payload))
			h.metrics.DroppedPayloads.WithLabelValues(dropUnknownType).Inc()
			return
		}
		c.logger.Warn("error parsing command", "error", err, "payload", string(msg.payload))
		h.metrics.DroppedPayloads.WithLabelValues(dropMalformed).Inc()
		return
	}

	h.metrics.Commands.WithLabelValues(cmd.CommandType()).Inc()

	switch cmd := cmd.(type) {
	case protocol.SendMessage:
		h.handleSendMessage(c, cmd)
	case protocol.GetUsers:
		h.handleGetUsers(c, cmd)
	case protocol.SwitchRoom:
		h.handleSwitchRoom(c, cmd)
	}
}

// handleJoin promotes an unassigned connection into a room. Anything that
// is not a valid Join leaves the connection pooled so the client can retry.
func (h *Hub) handleJoin(c *Client, payload []byte) {
	join, err := protocol.DecodeJoin(payload)
	if err != nil {
		c.logger.Warn("error parsing join payload", "error", err, "payload", string(payload))
		h.metrics.DroppedPayloads.WithLabelValues(dropMalformed).Inc()
		return
	}

	delete(h.pool, c.id)
	h.metrics.UnassignedConnections.Set(float64(len(h.pool)))
	h.metrics.Commands.WithLabelValues(commandJoin).Inc()

	failed := h.registry.AddMember(join.Room, c, join.Name)
	c.logger.Info("joined room", "name", join.Name, "room", join.Room)
	h.dropSlow(failed)
}

func (h *Hub) handleSendMessage(c *Client, cmd protocol.SendMessage) {
	out := protocol.NewSendMessage(fmt.Sprintf("%s: %s", c.name, cmd.Message))
	payload, err := protocol.Marshal(out)
	if err != nil {
		c.logger.Error("encoding message", "error", err)
		return
	}
	h.dropSlow(h.registry.Broadcast(c.room, payload))
}

// handleGetUsers answers only the requester. The requested room may differ
// from the room the requester is in.
func (h *Hub) handleGetUsers(c *Client, cmd protocol.GetUsers) {
	users, ok := h.registry.SnapshotUsers(cmd.Room)
	if !ok {
		c.logger.Warn("users requested for unknown room", "room", cmd.Room)
		h.metrics.DroppedPayloads.WithLabelValues(dropStale).Inc()
		return
	}
	if !h.registry.Contains(c) {
		c.logger.Warn("requester is no longer in its room", "room", c.room)
		h.metrics.DroppedPayloads.WithLabelValues(dropStale).Inc()
		return
	}

	payload, err := protocol.Marshal(protocol.NewUsersList(users))
	if err != nil {
		c.logger.Error("encoding users list", "error", err)
		return
	}
	if !c.enqueue(payload) {
		h.dropSlow([]*Client{c})
	}
}

// handleSwitchRoom moves c to another room. If c is not where it claims to
// be the switch is silently skipped.
func (h *Hub) handleSwitchRoom(c *Client, cmd protocol.SwitchRoom) {
	if !h.registry.Contains(c) {
		c.logger.Warn("switch requested by a connection not in its room", "room", c.room)
		h.metrics.DroppedPayloads.WithLabelValues(dropStale).Inc()
		return
	}

	from, name := c.room, c.name
	failed := h.registry.Leave(c)
	failed = append(failed, h.registry.AddMember(cmd.Room, c, name)...)
	c.logger.Info("switched rooms", "name", name, "from", from, "to", cmd.Room)
	h.dropSlow(failed)
}
