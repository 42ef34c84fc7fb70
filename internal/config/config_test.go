package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := GetDefaults()
	require.NoError(t, validateConfig(cfg))
	assert.Equal(t, "http://localhost:5000", cfg.Service.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Service.Timeout)
	assert.False(t, cfg.Cache.Enabled)
	assert.False(t, cfg.History.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
service:
  base_url: https://anonymizer.internal
  timeout: 5s
server:
  port: 9090
logging:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://anonymizer.internal", cfg.Service.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Service.Timeout)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched keys keep their defaults
	assert.Equal(t, 100, cfg.Server.MaxWorkspaces)
	assert.Equal(t, "/ws", cfg.WebSocket.Path)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	t.Setenv("REDACTOR_SERVICE_BASE_URL", "http://env-host:7000")
	t.Setenv("REDACTOR_BATCH_WORKERS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env-host:7000", cfg.Service.BaseURL)
	assert.Equal(t, 8, cfg.Batch.Workers)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"bad base url", "service:\n  base_url: localhost\n"},
		{"zero timeout", "service:\n  timeout: 0s\n"},
		{"bad log level", "logging:\n  level: trace\n"},
		{"bad history driver", "history:\n  enabled: true\n  driver: mysql\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestWatchRequiresFile(t *testing.T) {
	err := Watch(filepath.Join(t.TempDir(), "absent.yaml"), func(*Config) {}, nil)
	assert.Error(t, err)
}

func TestWorkspaceIdleTimeout(t *testing.T) {
	cfg := GetDefaults()
	assert.Equal(t, 30*time.Minute, cfg.Server.WorkspaceIdleTimeout)

	cfg.Server.WorkspaceIdleTimeout = 0
	assert.NoError(t, validateConfig(cfg), "zero disables expiry")

	cfg.Server.WorkspaceIdleTimeout = -time.Second
	assert.Error(t, validateConfig(cfg))
}
