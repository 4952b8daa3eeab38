// Package server wires HTTP handlers into a ServeMux for the chat gateway.
package server

import "net/http"

// SetupRoutes returns a ServeMux with the health check, websocket endpoint,
// room inspection, metrics and the browser test page.
func SetupRoutes(gw *Gateway, metrics *Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", gw.WebSocketHandler)
	mux.HandleFunc("/rooms", gw.RoomsHandler)
	mux.HandleFunc("/test", TestPageHandler)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
