package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/Tyrowin/roomchat/internal/client"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var (
		addr = flag.String("addr", envOr("CHAT_ADDR", "127.0.0.1:8080"), "chat server address")
		name = flag.String("name", os.Getenv("USER"), "display name")
		room = flag.String("room", "lobby", "room to join")
	)
	flag.Parse()

	if *name == "" || *room == "" {
		return fmt.Errorf("both -name and -room are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session, err := client.Dial(ctx, *addr, *name, *room)
	if err != nil {
		return err
	}
	defer session.Close()

	ui, err := NewChatUI(session, *addr)
	if err != nil {
		return fmt.Errorf("start terminal ui: %w", err)
	}
	defer ui.Close()

	return ui.Run()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
