package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all bridge configuration.
type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Loader    LoaderConfig
	Logging   LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8090"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// TransportConfig holds frontend transport configuration.
type TransportConfig struct {
	// MaxMessageSize is the largest single message the frontend transport
	// accepts. Outbound protocol events are chunked at a quarter of this.
	MaxMessageSize int `envconfig:"BRIDGE_MAX_MESSAGE_SIZE" default:"134217728"`
}

// LoaderConfig holds network resource loader configuration.
type LoaderConfig struct {
	RequestTimeout    time.Duration `envconfig:"LOADER_REQUEST_TIMEOUT" default:"30s"`
	FragmentSize      int           `envconfig:"LOADER_FRAGMENT_SIZE" default:"32768"`
	RequestsPerSecond float64       `envconfig:"LOADER_RATE_LIMIT_RPS" default:"0"`
	Burst             int           `envconfig:"LOADER_RATE_LIMIT_BURST" default:"0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8090",
			Host: "0.0.0.0",
		},
		Transport: TransportConfig{
			MaxMessageSize: 128 * 1024 * 1024,
		},
		Loader: LoaderConfig{
			RequestTimeout: 30 * time.Second,
			FragmentSize:   32 * 1024,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// ChunkThreshold returns the outbound chunking threshold. Messages at or
// above this size are split into ordered chunks of exactly this many bytes.
func (c *Config) ChunkThreshold() int {
	return c.Transport.MaxMessageSize / 4
}
