package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. REDACTOR_SERVICE_BASE_URL
const EnvPrefix = "REDACTOR"

// Load loads configuration from .env, file and environment variables
func Load(configPath string) (*Config, error) {
	// Best-effort: a missing .env is fine
	_ = godotenv.Load()

	v := newViper(configPath)

	// Read configuration
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

// Watch reloads the configuration file on change and passes every valid
// reload to callback. Invalid reloads are reported to onError and skipped.
func Watch(configPath string, callback func(*Config), onError func(error)) error {
	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file for watching: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		newConfig, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		callback(newConfig)
	})
	v.WatchConfig()

	return nil
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/redactor/")
	v.AddConfigPath("$HOME/.redactor/")

	// Environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Use specific config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	setDefaults(v, GetDefaults())
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	config := GetDefaults()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// setDefaults registers every key so environment overrides apply even when
// the file does not mention them
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.max_workspaces", d.Server.MaxWorkspaces)
	v.SetDefault("server.workspace_idle_timeout", d.Server.WorkspaceIdleTimeout)
	v.SetDefault("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	v.SetDefault("server.rate_limit.requests_per_min", d.Server.RateLimit.RequestsPerMin)
	v.SetDefault("server.rate_limit.burst", d.Server.RateLimit.Burst)

	v.SetDefault("service.base_url", d.Service.BaseURL)
	v.SetDefault("service.timeout", d.Service.Timeout)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.redis_url", d.Cache.RedisURL)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.size", d.Cache.Size)
	v.SetDefault("cache.key_prefix", d.Cache.KeyPrefix)

	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.driver", d.History.Driver)
	v.SetDefault("history.dsn", d.History.DSN)
	v.SetDefault("history.max_open_conns", d.History.MaxOpenConns)
	v.SetDefault("history.max_idle_conns", d.History.MaxIdleConns)
	v.SetDefault("history.conn_max_lifetime", d.History.ConnMaxLifetime)

	v.SetDefault("export.download_dir", d.Export.DownloadDir)

	v.SetDefault("batch.workers", d.Batch.Workers)
	v.SetDefault("batch.requests_per_sec", d.Batch.RequestsPerSec)
	v.SetDefault("batch.burst", d.Batch.Burst)
	v.SetDefault("batch.include_text", d.Batch.IncludeText)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file.enabled", d.Logging.File.Enabled)
	v.SetDefault("logging.file.path", d.Logging.File.Path)
	v.SetDefault("logging.file.max_size", d.Logging.File.MaxSize)
	v.SetDefault("logging.file.max_age", d.Logging.File.MaxAge)
	v.SetDefault("logging.file.max_backups", d.Logging.File.MaxBackups)
	v.SetDefault("logging.file.compress", d.Logging.File.Compress)

	v.SetDefault("websocket.enabled", d.WebSocket.Enabled)
	v.SetDefault("websocket.path", d.WebSocket.Path)
	v.SetDefault("websocket.read_buffer_size", d.WebSocket.ReadBufferSize)
	v.SetDefault("websocket.write_buffer_size", d.WebSocket.WriteBufferSize)
	v.SetDefault("websocket.ping_interval", d.WebSocket.PingInterval)
	v.SetDefault("websocket.pong_timeout", d.WebSocket.PongTimeout)
	v.SetDefault("websocket.write_timeout", d.WebSocket.WriteTimeout)
	v.SetDefault("websocket.max_message_size", d.WebSocket.MaxMessageSize)
	v.SetDefault("websocket.allowed_origins", d.WebSocket.AllowedOrigins)
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Server.MaxWorkspaces <= 0 {
		return fmt.Errorf("invalid max workspaces: %d", config.Server.MaxWorkspaces)
	}

	if config.Server.WorkspaceIdleTimeout < 0 {
		return fmt.Errorf("invalid workspace idle timeout: %s", config.Server.WorkspaceIdleTimeout)
	}

	if config.Server.RateLimit.Enabled && config.Server.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("invalid rate limit: %d requests per minute", config.Server.RateLimit.RequestsPerMin)
	}

	u, err := url.Parse(config.Service.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid service base URL: %q (must be an absolute http or https URL)", config.Service.BaseURL)
	}

	if config.Service.Timeout <= 0 {
		return fmt.Errorf("invalid service timeout: %s (must be positive)", config.Service.Timeout)
	}

	if config.History.Enabled && config.History.Driver != "postgres" && config.History.Driver != "sqlite" {
		return fmt.Errorf("invalid history driver: %s (must be postgres or sqlite)", config.History.Driver)
	}

	if config.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d", config.Batch.Workers)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}
