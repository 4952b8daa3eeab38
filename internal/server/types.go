// Package server defines small shared types and helpers reused across the
// client, hub and registry.
package server

import (
	"errors"
	"io"
	"net"
	"strings"

	"github.com/gorilla/websocket"
)

// inbound is one payload read from a connection, waiting for the hub. The
// last inbound of every connection has eof set and no payload, so the hub
// sees a departure only after everything the connection sent before it.
type inbound struct {
	client  *Client
	payload []byte
	eof     bool
}

// RoomSnapshot is the member list of one room at a point in time.
type RoomSnapshot struct {
	Name  string   `json:"name"`
	Users []string `json:"users"`
}

// isExpectedCloseError reports errors that just mean the peer went away.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "connection reset by peer") ||
		strings.Contains(errStr, "broken pipe")
}
