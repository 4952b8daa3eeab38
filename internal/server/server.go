package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 5 * time.Second

// Server ties the TCP acceptor, the hub and the optional HTTP gateway together.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics
	hub     *Hub
	gateway *Gateway

	acceptor     *Acceptor
	httpServer   *http.Server
	httpListener net.Listener

	cancel context.CancelFunc
	runCtx context.Context
	wg     sync.WaitGroup
	errMu  sync.Mutex
	err    error
}

// New validates cfg and builds a server. Nothing is bound until Start.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = discardLogger()
	}
	cfg = cfg.sanitized()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := NewMetrics(reg)
	hub := NewHub(logger, metrics)

	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		hub:     hub,
		gateway: NewGateway(hub, cfg, logger),
	}, nil
}

// Handler is the HTTP gateway handler, usable with httptest.
func (s *Server) Handler() http.Handler {
	return SetupRoutes(s.gateway, s.metrics)
}

// Start binds the listeners and launches the hub, acceptor and gateway. A
// bind failure is returned and nothing is left running.
func (s *Server) Start(ctx context.Context) error {
	ln, err := Listen(s.cfg.ListenAddr())
	if err != nil {
		return err
	}

	if s.cfg.SocketServerPort != 0 {
		hl, err := net.Listen("tcp", s.cfg.HTTPAddr())
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("bind http gateway to %s: %w", s.cfg.HTTPAddr(), err)
		}
		s.httpListener = hl
		s.httpServer = CreateServer(s.cfg.HTTPAddr(), s.Handler())
	}

	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.acceptor = NewAcceptor(ln, s.hub, s.cfg, s.logger)

	go s.hub.Run(s.runCtx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptor.Serve(s.runCtx); err != nil {
			s.fail(err)
		}
	}()

	if s.httpServer != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := StartServer(s.httpServer, s.httpListener, s.logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.fail(fmt.Errorf("http gateway: %w", err))
			}
		}()
	}

	return nil
}

// fail records the first fatal error and stops the server.
func (s *Server) fail(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
	s.logger.Error("fatal server error", "error", err)
	s.cancel()
}

// Addr is the bound TCP chat address. Valid after Start.
func (s *Server) Addr() net.Addr {
	return s.acceptor.Addr()
}

// HTTPAddr is the bound gateway address, or nil when the gateway is disabled.
func (s *Server) HTTPAddr() net.Addr {
	if s.httpListener == nil {
		return nil
	}
	return s.httpListener.Addr()
}

// Wait blocks until the start context is cancelled or a fatal error occurs,
// shuts everything down and returns the fatal error, if any.
func (s *Server) Wait() error {
	<-s.runCtx.Done()
	s.logger.Info("shutting down")

	if s.httpServer != nil {
		_ = ShutdownServer(s.httpServer, shutdownTimeout, s.logger)
	}
	if err := s.hub.Shutdown(shutdownTimeout); err != nil {
		s.logger.Warn("hub shutdown incomplete", "error", err)
	}
	s.wg.Wait()

	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	return s.Wait()
}
