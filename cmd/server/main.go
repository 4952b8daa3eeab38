package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Tyrowin/roomchat/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Load local .env (dev only)
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "", "path to a JSON settings file")
		host       = flag.String("host", "", "address the chat listener binds to")
		port       = flag.Int("port", 0, "chat listener port")
		wsPort     = flag.Int("ws-port", 0, "websocket gateway port (0 disables it)")
		logLevel   = flag.String("log-level", "", "log level (debug, info, warn, error)")
		logFormat  = flag.String("log-format", "", "log format (text, json)")
	)
	flag.Parse()

	cfg := server.NewConfig()
	if *configPath != "" {
		if err := cfg.LoadSettingsFile(*configPath); err != nil {
			return err
		}
	}
	cfg.ApplyEnv()

	// Explicit flags win over the file and the environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = *host
		case "port":
			cfg.Port = *port
		case "ws-port":
			cfg.SocketServerPort = *wsPort
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		}
	})

	logger := server.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	srv, err := server.New(*cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting roomchat server",
		"addr", cfg.ListenAddr(),
		"ws_port", cfg.SocketServerPort,
		"log_level", cfg.LogLevel)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}
