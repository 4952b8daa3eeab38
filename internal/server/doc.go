// Package server implements the room chat engine.
//
// Connections arrive over TCP (Acceptor) or the websocket gateway (Gateway)
// and are handed to the Hub, which owns all room state on a single
// goroutine. Each connection has a read pump feeding payloads to the hub and
// a write pump draining its send queue. A connection starts unassigned and
// becomes a room member once it sends a Join payload; after that its
// payloads are dispatched as SendMessage, GetUsers or SwitchRoom commands.
//
// The implementation is organized into files for configuration, hub and
// registry, clients and transports, routing, and HTTP handlers.
package server
