// Package config loads relay settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"realtime-relay/internal/relay"
)

// Config holds process configuration. Only PORT is needed for a plain relay;
// everything else has a working default.
type Config struct {
	Port              int           `env:"PORT"               envDefault:"8081"`
	BroadcastScope    string        `env:"BROADCAST_SCOPE"    envDefault:"exclude-sender"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30s"`
	WriteWait         time.Duration `env:"WRITE_WAIT"         envDefault:"10s"`
	SendBuffer        int           `env:"SEND_BUFFER"        envDefault:"256"`
	MaxMessageBytes   int64         `env:"MAX_MESSAGE_BYTES"  envDefault:"104857600"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT"   envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	RedisURL       string `env:"REDIS_URL"`
	SideWriteKey   string `env:"SIDEWRITE_KEY"   envDefault:"relay:last_packet"`
	SideWriteQueue int    `env:"SIDEWRITE_QUEUE" envDefault:"64"`
}

// Load reads an optional .env file, then the environment, and validates the result.
func Load(dotenvFiles ...string) (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load(dotenvFiles...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if _, err := relay.ParseScope(c.BroadcastScope); err != nil {
		return fmt.Errorf("BROADCAST_SCOPE: %w", err)
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("HEARTBEAT_INTERVAL must be positive")
	}
	if c.WriteWait <= 0 {
		return errors.New("WRITE_WAIT must be positive")
	}
	if c.SendBuffer <= 0 {
		return errors.New("SEND_BUFFER must be positive")
	}
	if c.MaxMessageBytes <= 0 {
		return errors.New("MAX_MESSAGE_BYTES must be positive")
	}
	if c.RedisURL != "" && c.SideWriteQueue <= 0 {
		return errors.New("SIDEWRITE_QUEUE must be positive when REDIS_URL is set")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Scope returns the parsed broadcast scope. Validate has already rejected bad values.
func (c *Config) Scope() relay.Scope {
	scope, _ := relay.ParseScope(c.BroadcastScope)
	return scope
}

func (c *Config) Client() relay.ClientConfig {
	return relay.ClientConfig{
		SendBuffer:      c.SendBuffer,
		WriteWait:       c.WriteWait,
		MaxMessageBytes: c.MaxMessageBytes,
	}
}
