// Package server exposes HTTP handlers, including the websocket gateway,
// health checks, room inspection and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Gateway lets websocket clients speak the chat protocol: each text frame is
// one payload and every reply is one text frame.
type Gateway struct {
	hub      *Hub
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewGateway creates a gateway feeding hub.
func NewGateway(hub *Hub, cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = discardLogger()
	}
	cfg = cfg.sanitized()
	policy := newOriginPolicy(cfg.AllowedOrigins, logger)

	return &Gateway{
		hub:    hub,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.checkOrigin,
		},
	}
}

// WebSocketHandler upgrades GET requests and hands the connection to the hub
// as a new unassigned client.
func (g *Gateway) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "error", err, "addr", r.RemoteAddr)
		return
	}

	transport := newWSTransport(conn, g.cfg.MaxPayloadSize, g.cfg.WriteTimeout)
	client := NewClient(transport, r.RemoteAddr, g.cfg, g.logger)

	// The hub launches the pump goroutines.
	if err := g.hub.Register(r.Context(), client); err != nil {
		g.logger.Error("could not hand off websocket connection", "error", err, "addr", r.RemoteAddr)
		_ = transport.Close()
	}
}

// RoomsHandler responds with every room and its members as JSON.
func (g *Gateway) RoomsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rooms, err := g.hub.Rooms(r.Context())
	if err != nil {
		http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rooms); err != nil {
		g.logger.Warn("error writing rooms response", "error", err)
	}
}

// HealthHandler provides a simple health check endpoint.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "roomchat server is running!")
}

// TestPageHandler serves an HTML page that joins a room over the websocket
// gateway and sends chat commands.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>roomchat test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background-color: #f9f9f9; }
        input[type="text"] { width: 200px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
    </style>
</head>
<body>
    <h1>roomchat test</h1>
    <div>
        <input type="text" id="name" placeholder="name">
        <input type="text" id="room" placeholder="room" value="lobby">
        <button onclick="join()">Join</button>
        <button onclick="switchRoom()">Switch</button>
        <button onclick="users()">Users</button>
    </div>
    <div id="messages"></div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
    </div>
    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');

        function addMessage(text) {
            const el = document.createElement('div');
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function send(obj) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify(obj));
            }
        }

        function join() {
            const name = document.getElementById('name').value.trim();
            const room = document.getElementById('room').value.trim();
            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onopen = () => { send({name: name, room: room}); addMessage('joined ' + room + ' as ' + name); };
            ws.onmessage = (event) => {
                const msg = JSON.parse(event.data);
                if (msg.users) { addMessage('users: ' + msg.users.join(', ')); } else { addMessage(msg.message); }
            };
            ws.onclose = () => { addMessage('connection closed'); ws = null; };
        }

        function switchRoom() {
            send({commandType: 'SwitchRoom', room: document.getElementById('room').value.trim()});
        }

        function users() {
            send({commandType: 'GetUsers', room: document.getElementById('room').value.trim()});
        }

        function sendMessage() {
            const input = document.getElementById('messageInput');
            send({commandType: 'SendMessage', message: input.value});
            input.value = '';
        }
    </script>
</body>
</html>`
