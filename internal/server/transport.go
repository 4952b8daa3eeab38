package server

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
)

// Transport is the byte-level side of a connection. ReadPayload is only
// called by the read pump and WritePayload only by the write pump; Close may
// be called from anywhere.
type Transport interface {
	ReadPayload() ([]byte, error)
	WritePayload(payload []byte) error
	Close() error
}

// pinger is implemented by transports that need keepalive frames.
type pinger interface {
	Ping() error
}

type tcpTransport struct {
	conn         net.Conn
	reader       *protocol.Reader
	writer       *protocol.Writer
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func newTCPTransport(conn net.Conn, maxPayload int, writeTimeout time.Duration) *tcpTransport {
	return &tcpTransport{
		conn:         conn,
		reader:       protocol.NewReader(conn, maxPayload),
		writer:       protocol.NewWriter(conn),
		writeTimeout: writeTimeout,
	}
}

func (t *tcpTransport) ReadPayload() ([]byte, error) {
	return t.reader.ReadPayload()
}

func (t *tcpTransport) WritePayload(payload []byte) error {
	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	return t.writer.WriteLine(payload)
}

func (t *tcpTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

// wsTransport carries one payload per websocket text frame. A frame over
// maxPayload is skipped like an overlong line on TCP; the connection stays up.
type wsTransport struct {
	conn         *websocket.Conn
	maxPayload   int
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func newWSTransport(conn *websocket.Conn, maxPayload int, writeTimeout time.Duration) *wsTransport {
	if maxPayload <= 0 {
		maxPayload = protocol.DefaultMaxPayloadSize
	}
	t := &wsTransport{conn: conn, maxPayload: maxPayload, writeTimeout: writeTimeout}
	t.setupReadDeadline()
	return t
}

// setupReadDeadline arms the read deadline and extends it on every pong.
func (t *wsTransport) setupReadDeadline() {
	_ = t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func (t *wsTransport) ReadPayload() ([]byte, error) {
	for {
		_, r, err := t.conn.NextReader()
		if err != nil {
			return nil, err
		}
		// the unread rest of an oversized frame is discarded by the next NextReader
		data, err := io.ReadAll(io.LimitReader(r, int64(t.maxPayload)+1))
		if err != nil {
			return nil, err
		}
		if len(data) > t.maxPayload {
			return nil, fmt.Errorf("%w (%d bytes)", protocol.ErrPayloadTooLarge, t.maxPayload)
		}
		if payload := bytes.TrimSpace(data); len(payload) > 0 {
			return payload, nil
		}
	}
}

func (t *wsTransport) WritePayload(payload []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (t *wsTransport) Ping() error {
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeTimeout))
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
