package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

const (
	messageTimeout = 2 * time.Second
	quietPeriod    = 200 * time.Millisecond
)

// stubTransport never produces input and accepts every write.
type stubTransport struct{}

func (stubTransport) ReadPayload() ([]byte, error) { return nil, io.EOF }
func (stubTransport) WritePayload([]byte) error    { return nil }
func (stubTransport) Close() error                 { return nil }

// pipeTransport is an in-memory transport driven by the test.
type pipeTransport struct {
	in   chan []byte
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newPipeTransport() *pipeTransport {
	return &pipeTransport{
		in:   make(chan []byte, 16),
		out:  make(chan []byte, 64),
		done: make(chan struct{}),
	}
}

func (p *pipeTransport) ReadPayload() ([]byte, error) {
	select {
	case b, ok := <-p.in:
		if !ok {
			return nil, io.EOF
		}
		return b, nil
	case <-p.done:
		return nil, net.ErrClosed
	}
}

func (p *pipeTransport) WritePayload(b []byte) error {
	select {
	case p.out <- b:
		return nil
	case <-p.done:
		return net.ErrClosed
	}
}

func (p *pipeTransport) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Port = 0
	cfg.SendBufferSize = 16
	cfg.RateLimit = RateLimitConfig{Burst: 1000, RefillInterval: time.Second}
	return cfg
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	return NewClient(stubTransport{}, "pipe", testConfig(), nil)
}

// wireMessage is any server to client payload.
type wireMessage struct {
	CommandType string   `json:"commandType"`
	Message     string   `json:"message"`
	Users       []string `json:"users"`
}

// drain returns every payload queued on c without blocking.
func drain(t *testing.T, c *Client) []wireMessage {
	t.Helper()
	var out []wireMessage
	for {
		select {
		case b, ok := <-c.send:
			if !ok {
				return out
			}
			var m wireMessage
			require.NoError(t, json.Unmarshal(b, &m), string(b))
			out = append(out, m)
		default:
			return out
		}
	}
}

func messages(ms []wireMessage) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		if m.CommandType == "SendMessage" {
			out = append(out, m.Message)
		}
	}
	return out
}

// startTestServer runs a server on an ephemeral loopback port.
func startTestServer(t *testing.T) *Server {
	t.Helper()
	return startServerWithConfig(t, testConfig())
}

func startServerWithConfig(t *testing.T, cfg Config) *Server {
	t.Helper()

	srv, err := New(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Start(ctx))

	t.Cleanup(func() {
		cancel()
		_ = srv.Wait()
	})
	return srv
}

// waitForMember blocks until name is listed in room.
func waitForMember(t *testing.T, h *Hub, room, name string) {
	t.Helper()
	require.Eventually(t, func() bool {
		rooms, err := h.Rooms(context.Background())
		if err != nil {
			return false
		}
		for _, r := range rooms {
			if r.Name == room && slices.Contains(r.Users, name) {
				return true
			}
		}
		return false
	}, messageTimeout, 10*time.Millisecond, "%s never joined %s", name, room)
}

// tcpClient is a raw protocol client used by the end-to-end tests.
type tcpClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dialClient(t *testing.T, srv *Server) *tcpClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", srv.Addr().String(), messageTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &tcpClient{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (c *tcpClient) sendLine(line string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

func (c *tcpClient) send(v any) {
	c.t.Helper()
	b, err := json.Marshal(v)
	require.NoError(c.t, err)
	c.sendLine(string(b))
}

func (c *tcpClient) receive() wireMessage {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(messageTimeout)))
	line, err := c.reader.ReadString('\n')
	require.NoError(c.t, err)

	var m wireMessage
	require.NoError(c.t, json.Unmarshal([]byte(strings.TrimSpace(line)), &m), line)
	return m
}

func (c *tcpClient) expectMessage(want string) {
	c.t.Helper()
	m := c.receive()
	require.Equal(c.t, "SendMessage", m.CommandType)
	require.Equal(c.t, want, m.Message)
}

func (c *tcpClient) expectUsers(want ...string) {
	c.t.Helper()
	m := c.receive()
	require.Equal(c.t, "GetUsers", m.CommandType)
	require.Equal(c.t, want, m.Users)
}

func (c *tcpClient) expectNothing() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(quietPeriod)))
	line, err := c.reader.ReadString('\n')
	require.Error(c.t, err, "unexpected payload %q", line)
	var netErr net.Error
	require.ErrorAs(c.t, err, &netErr)
	require.True(c.t, netErr.Timeout())
}

func (c *tcpClient) join(srv *Server, name, room string) {
	c.t.Helper()
	c.send(map[string]string{"name": name, "room": room})
	waitForMember(c.t, srv.hub, room, name)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}
