package client

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// Session is a joined connection to a chat server. Send and Receive may be
// called from different goroutines.
type Session struct {
	conn   net.Conn
	reader *protocol.Reader
	name   string

	writeMu sync.Mutex
	writer  *protocol.Writer

	roomMu sync.RWMutex
	room   string
}

// Dial connects to addr and sends the join handshake for name and room.
func Dial(ctx context.Context, addr, name, room string) (*Session, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}

	s := NewSession(conn, name, room)
	if err := s.writeCommand(protocol.Join{Name: name, Room: room}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("join %s: %w", room, err)
	}
	return s, nil
}

// NewSession wraps an established connection that has already joined room.
func NewSession(conn net.Conn, name, room string) *Session {
	return &Session{
		conn:   conn,
		reader: protocol.NewReader(conn, protocol.DefaultMaxPayloadSize),
		writer: protocol.NewWriter(conn),
		name:   name,
		room:   room,
	}
}

// Name is the display name used in the join handshake.
func (s *Session) Name() string { return s.name }

// Room is the room the session last joined or switched to.
func (s *Session) Room() string {
	s.roomMu.RLock()
	defer s.roomMu.RUnlock()
	return s.room
}

// Send writes cmd. A SwitchRoom updates Room once it has been written.
func (s *Session) Send(cmd protocol.Command) error {
	if err := s.writeCommand(cmd); err != nil {
		return err
	}
	if sw, ok := cmd.(protocol.SwitchRoom); ok {
		s.roomMu.Lock()
		s.room = sw.Room
		s.roomMu.Unlock()
	}
	return nil
}

func (s *Session) writeCommand(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writer.WriteCommand(v)
}

// Receive blocks for the next server payload and renders it.
func (s *Session) Receive() (string, error) {
	payload, err := s.reader.ReadPayload()
	if err != nil {
		return "", err
	}
	return FormatPayload(payload)
}

// Close closes the connection; a blocked Receive returns an error.
func (s *Session) Close() error {
	return s.conn.Close()
}
