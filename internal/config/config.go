// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

// Package config loads layered configuration for the server and client
// binaries: struct defaults, then an optional YAML file, then environment
// variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration consumed by cmd/server and cmd/client.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Client  ClientConfig  `koanf:"client"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig configures the thin REST+WebSocket backend.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ClientConfig configures the sync client: remote endpoints, the local data
// directory, request timeout, and reconnect/backoff parameters.
type ClientConfig struct {
	BaseURL        string        `koanf:"base_url"`
	WebSocketURL   string        `koanf:"websocket_url"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	DataDir        string        `koanf:"data_dir"`

	// WebSocket reconnect: linear backoff of attempt*ReconnectStep, abandoned
	// after MaxReconnectAttempts. The attempt counter resets on a successful
	// connection.
	MaxReconnectAttempts int           `koanf:"max_reconnect_attempts"`
	ReconnectStep        time.Duration `koanf:"reconnect_step"`

	// ReachabilityInterval is how often the health endpoint is probed.
	ReachabilityInterval time.Duration `koanf:"reachability_interval"`

	// Client-side request pacing.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	RequestBurst      int     `koanf:"request_burst"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are applied
// first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8094,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Client: ClientConfig{
			BaseURL:              "http://localhost:8094",
			WebSocketURL:         "ws://localhost:8094/ws",
			RequestTimeout:       10 * time.Second,
			DataDir:              "./data",
			MaxReconnectAttempts: 10,
			ReconnectStep:        2 * time.Second,
			ReachabilityInterval: 5 * time.Second,
			RequestsPerSecond:    20,
			RequestBurst:         5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Client.BaseURL == "" {
		return fmt.Errorf("client.base_url must not be empty")
	}
	if c.Client.WebSocketURL == "" {
		return fmt.Errorf("client.websocket_url must not be empty")
	}
	if c.Client.RequestTimeout <= 0 {
		return fmt.Errorf("client.request_timeout must be positive, got %s", c.Client.RequestTimeout)
	}
	if c.Client.MaxReconnectAttempts < 1 {
		return fmt.Errorf("client.max_reconnect_attempts must be at least 1, got %d", c.Client.MaxReconnectAttempts)
	}
	if c.Client.ReconnectStep <= 0 {
		return fmt.Errorf("client.reconnect_step must be positive, got %s", c.Client.ReconnectStep)
	}
	if c.Client.ReachabilityInterval <= 0 {
		return fmt.Errorf("client.reachability_interval must be positive, got %s", c.Client.ReachabilityInterval)
	}
	return nil
}
