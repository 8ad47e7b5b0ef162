package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Service information
	Service struct {
		Name        string `yaml:"name"`
		Version     string `yaml:"version"`
		Environment string `yaml:"environment"`
	} `yaml:"service"`

	HTTP      HTTPConfig      `yaml:"http"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Auth      AuthConfig      `yaml:"auth"`
	Presence  PresenceConfig  `yaml:"presence"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

// HTTPConfig represents HTTP server configuration
type HTTPConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// WebSocketConfig represents WebSocket connection configuration
type WebSocketConfig struct {
	Path             string        `yaml:"path"`
	MaxMessageSize   int64         `yaml:"max_message_size"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteWait        time.Duration `yaml:"write_wait"`
	PongWait         time.Duration `yaml:"pong_wait"`
	PingPeriod       time.Duration `yaml:"ping_period"`
	SendBuffer       int           `yaml:"send_buffer"`
}

// AuthConfig represents identity verification configuration
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	JWTExpiration time.Duration `yaml:"jwt_expiration"`
}

// PresenceConfig represents presence state machine configuration. The idle
// timeout and offline grace are deliberately tunable rather than constants.
type PresenceConfig struct {
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	OfflineGrace time.Duration `yaml:"offline_grace"`
}

// RateLimitConfig represents per-connection event rate limiting
type RateLimitConfig struct {
	Enabled      bool    `yaml:"enabled"`
	EventsPerSec float64 `yaml:"events_per_sec"`
	Burst        int     `yaml:"burst"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads the configuration from a file. An empty path returns the
// defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvironmentOverrides(config)

	if config.WebSocket.PingPeriod >= config.WebSocket.PongWait {
		return nil, fmt.Errorf("websocket ping_period (%s) must be shorter than pong_wait (%s)",
			config.WebSocket.PingPeriod, config.WebSocket.PongWait)
	}

	return config, nil
}

// Default returns the default configuration
func Default() *Config {
	config := &Config{
		HTTP: HTTPConfig{
			Address:         ":8090",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		WebSocket: WebSocketConfig{
			Path:             "/ws",
			MaxMessageSize:   16 * 1024,
			HandshakeTimeout: 10 * time.Second,
			WriteWait:        10 * time.Second,
			PongWait:         60 * time.Second,
			PingPeriod:       54 * time.Second,
			SendBuffer:       256,
		},
		Auth: AuthConfig{
			JWTExpiration: 24 * time.Hour,
		},
		Presence: PresenceConfig{
			IdleTimeout:  30 * time.Second,
			OfflineGrace: 2500 * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			Enabled:      true,
			EventsPerSec: 20,
			Burst:        40,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
	config.Service.Name = "duochat-relay"
	config.Service.Environment = "development"
	return config
}

// applyEnvironmentOverrides applies environment overrides
func applyEnvironmentOverrides(config *Config) {
	if addr := os.Getenv("HTTP_ADDRESS"); addr != "" {
		config.HTTP.Address = addr
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		config.Service.Environment = env
	}

	if d := os.Getenv("PRESENCE_IDLE_TIMEOUT"); d != "" {
		if parsed, err := time.ParseDuration(d); err == nil {
			config.Presence.IdleTimeout = parsed
		}
	}

	if d := os.Getenv("PRESENCE_OFFLINE_GRACE"); d != "" {
		if parsed, err := time.ParseDuration(d); err == nil {
			config.Presence.OfflineGrace = parsed
		}
	}
}
