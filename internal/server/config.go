// Package server provides configuration helpers that define runtime defaults,
// settings-file and environment loading, and validation for the chat service.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// RateLimitConfig defines the parameters for per-connection payload rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server settings. It is built once before the server
// starts and never mutated afterwards.
type Config struct {
	// Host and Port form the TCP chat listener address.
	Host string
	Port int
	// SocketServerPort serves the websocket gateway, health, rooms and
	// metrics endpoints. Zero disables the HTTP side.
	SocketServerPort int
	AllowedOrigins   []string
	MaxPayloadSize   int
	SendBufferSize   int
	WriteTimeout     time.Duration
	RateLimit        RateLimitConfig
	LogLevel         string
	LogFormat        string
}

func defaultConfig() Config {
	return Config{
		Host: "127.0.0.1",
		Port: 8080,
		AllowedOrigins: []string{
			"http://localhost:8081",
		},
		MaxPayloadSize: protocol.DefaultMaxPayloadSize,
		SendBufferSize: 256,
		WriteTimeout:   10 * time.Second,
		RateLimit: RateLimitConfig{
			Burst:          20,
			RefillInterval: time.Second,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// settingsFile mirrors the JSON settings file. Absent keys keep the current value.
type settingsFile struct {
	Host             *string  `json:"host"`
	Port             *int     `json:"port"`
	SocketServerPort *int     `json:"socketServerPort"`
	AllowedOrigins   []string `json:"allowedOrigins"`
	MaxPayloadSize   *int     `json:"maxPayloadSize"`
	SendBufferSize   *int     `json:"sendBufferSize"`
	LogLevel         *string  `json:"logLevel"`
	LogFormat        *string  `json:"logFormat"`
}

// LoadSettingsFile overlays the JSON settings file at path onto cfg.
func (cfg *Config) LoadSettingsFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read settings %s: %w", path, err)
	}

	var s settingsFile
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("parse settings %s: %w", path, err)
	}

	if s.Host != nil {
		cfg.Host = *s.Host
	}
	if s.Port != nil {
		cfg.Port = *s.Port
	}
	if s.SocketServerPort != nil {
		cfg.SocketServerPort = *s.SocketServerPort
	}
	if s.AllowedOrigins != nil {
		cfg.AllowedOrigins = append([]string(nil), s.AllowedOrigins...)
	}
	if s.MaxPayloadSize != nil {
		cfg.MaxPayloadSize = *s.MaxPayloadSize
	}
	if s.SendBufferSize != nil {
		cfg.SendBufferSize = *s.SendBufferSize
	}
	if s.LogLevel != nil {
		cfg.LogLevel = *s.LogLevel
	}
	if s.LogFormat != nil {
		cfg.LogFormat = *s.LogFormat
	}
	return nil
}

// ApplyEnv overlays CHAT_* environment variables onto cfg. Unparsable
// numeric values keep the current setting.
func (cfg *Config) ApplyEnv() {
	if host := os.Getenv("CHAT_HOST"); host != "" {
		cfg.Host = host
	}

	if port := os.Getenv("CHAT_PORT"); port != "" {
		cfg.Port = parsePort(port, cfg.Port)
	}

	if port := os.Getenv("CHAT_WS_PORT"); port != "" {
		cfg.SocketServerPort = parsePort(port, cfg.SocketServerPort)
	}

	if origins := os.Getenv("CHAT_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if size := os.Getenv("CHAT_MAX_PAYLOAD_SIZE"); size != "" {
		cfg.MaxPayloadSize = parseIntValue(size, cfg.MaxPayloadSize)
	}

	if size := os.Getenv("CHAT_SEND_BUFFER"); size != "" {
		cfg.SendBufferSize = parseIntValue(size, cfg.SendBufferSize)
	}

	if burst := os.Getenv("CHAT_RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("CHAT_RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseRefillInterval(interval, cfg.RateLimit.RefillInterval)
	}

	if level := os.Getenv("CHAT_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if format := os.Getenv("CHAT_LOG_FORMAT"); format != "" {
		cfg.LogFormat = format
	}
}

// NewConfigFromEnv creates a Config from defaults overlaid with the environment.
func NewConfigFromEnv() *Config {
	cfg := NewConfig()
	cfg.ApplyEnv()
	return cfg
}

// Validate reports settings the server cannot start with.
func (cfg *Config) Validate() error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, cfg.Port)
	}
	if cfg.SocketServerPort < 0 || cfg.SocketServerPort > 65535 {
		return fmt.Errorf("%w: socketServerPort %d out of range", ErrInvalidConfig, cfg.SocketServerPort)
	}
	if cfg.SocketServerPort != 0 && cfg.SocketServerPort == cfg.Port {
		return fmt.Errorf("%w: port and socketServerPort are both %d", ErrInvalidConfig, cfg.Port)
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidConfig)
	}
	return nil
}

// sanitized returns a copy with non-positive tunables reset to their defaults.
func (cfg Config) sanitized() Config {
	def := defaultConfig()

	if cfg.MaxPayloadSize <= 0 {
		cfg.MaxPayloadSize = def.MaxPayloadSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = def.SendBufferSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// ListenAddr is the TCP chat listener address.
func (cfg *Config) ListenAddr() string {
	return joinHostPort(cfg.Host, cfg.Port)
}

// HTTPAddr is the websocket gateway address.
func (cfg *Config) HTTPAddr() string {
	return joinHostPort(cfg.Host, cfg.SocketServerPort)
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parsePort(value string, defaultValue int) int {
	if port, err := strconv.Atoi(value); err == nil && port >= 0 && port <= 65535 {
		return port
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseRefillInterval(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
