// Package server constructs and starts the websocket gateway HTTP service
// with helpers that apply sensible production defaults.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// CreateServer creates an HTTP server for addr and handler with reasonable
// timeout values for production use.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// StartServer serves on ln and blocks until the server stops.
func StartServer(server *http.Server, ln net.Listener, logger *slog.Logger) error {
	logger.Info("http gateway listening", "addr", ln.Addr().String())
	return server.Serve(ln)
}

// ShutdownServer gracefully shuts down the HTTP server, waiting for active
// requests until timeout. Hijacked websocket connections are closed by the hub.
func ShutdownServer(server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	logger.Info("shutting down http gateway")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("http gateway shutdown error", "error", err)
		return err
	}

	logger.Info("http gateway shutdown completed")
	return nil
}
