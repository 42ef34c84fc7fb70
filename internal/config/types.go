package config

import (
	"time"

	"github.com/raaihank/redactor/internal/service"
)

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Service   service.Config  `yaml:"service" mapstructure:"service"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	History   HistoryConfig   `yaml:"history" mapstructure:"history"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig contains workspace server configuration
type ServerConfig struct {
	Port          int           `yaml:"port" mapstructure:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxWorkspaces int           `yaml:"max_workspaces" mapstructure:"max_workspaces"`
	// WorkspaceIdleTimeout tears down workspaces left without requests or
	// viewers; 0 disables expiry
	WorkspaceIdleTimeout time.Duration   `yaml:"workspace_idle_timeout" mapstructure:"workspace_idle_timeout"`
	RateLimit            RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RateLimitConfig contains per-client rate limiting for the workspace API
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	Burst          int  `yaml:"burst" mapstructure:"burst"`
}

// CacheConfig contains result cache configuration. An empty RedisURL
// selects the in-process cache.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL  string        `yaml:"redis_url" mapstructure:"redis_url"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Size      int           `yaml:"size" mapstructure:"size"`
	KeyPrefix string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// HistoryConfig contains submission history configuration
type HistoryConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Driver          string        `yaml:"driver" mapstructure:"driver"` // postgres or sqlite
	DSN             string        `yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// ExportConfig contains result export configuration
type ExportConfig struct {
	DownloadDir string `yaml:"download_dir" mapstructure:"download_dir"`
}

// BatchConfig contains dataset processing configuration
type BatchConfig struct {
	Workers        int     `yaml:"workers" mapstructure:"workers"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	Burst          int     `yaml:"burst" mapstructure:"burst"`
	IncludeText    bool    `yaml:"include_text" mapstructure:"include_text"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
		Path       string `yaml:"path" mapstructure:"path"`
		MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`
		MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`
		MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
		Compress   bool   `yaml:"compress" mapstructure:"compress"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Path            string        `yaml:"path" mapstructure:"path"`
	ReadBufferSize  int           `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size" mapstructure:"write_buffer_size"`
	PingInterval    time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxMessageSize  int64         `yaml:"max_message_size" mapstructure:"max_message_size"`
	AllowedOrigins  []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:                 8080,
			ReadTimeout:          30 * time.Second,
			WriteTimeout:         60 * time.Second,
			IdleTimeout:          60 * time.Second,
			MaxWorkspaces:        100,
			WorkspaceIdleTimeout: 30 * time.Minute,
			RateLimit: RateLimitConfig{
				Enabled:        true,
				RequestsPerMin: 120,
				Burst:          20,
			},
		},
		Service: service.Config{
			BaseURL: "http://localhost:5000",
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:   false,
			TTL:       10 * time.Minute,
			Size:      256,
			KeyPrefix: "redactor",
		},
		History: HistoryConfig{
			Enabled:         false,
			Driver:          "sqlite",
			DSN:             "file:redactor-history.db",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Export: ExportConfig{
			DownloadDir: ".",
		},
		Batch: BatchConfig{
			Workers:        4,
			RequestsPerSec: 5,
			Burst:          5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		WebSocket: WebSocketConfig{
			Enabled:         true,
			Path:            "/ws",
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingInterval:    54 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxMessageSize:  512,
			AllowedOrigins:  []string{"*"},
		},
	}

	cfg.Logging.File.Enabled = false
	cfg.Logging.File.Path = "logs/redactor.log"
	cfg.Logging.File.MaxSize = 100 // MB
	cfg.Logging.File.MaxAge = 30   // days
	cfg.Logging.File.MaxBackups = 5
	cfg.Logging.File.Compress = true

	return cfg
}
