package history

import (
	"time"
)

// Config contains history database configuration
type Config struct {
	Driver          string        `yaml:"driver" mapstructure:"driver"`
	DSN             string        `yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// Entry is one settled submission. Text and results are never stored.
type Entry struct {
	ID           string `db:"id" json:"id"`
	WorkspaceID  string `db:"workspace_id" json:"workspace_id"`
	Status       string `db:"status" json:"status"`
	ErrorKind    string `db:"error_kind" json:"error_kind,omitempty"`
	ErrorMessage string `db:"error_message" json:"error_message,omitempty"`
	TextLength   int    `db:"text_length" json:"text_length"`
	ResultLength int    `db:"result_length" json:"result_length"`
	Categories   string `db:"categories" json:"categories"`
	CustomRule   int    `db:"custom_rule" json:"custom_rule"`
	StartedAt    int64  `db:"started_at" json:"started_at"`
	FinishedAt   int64  `db:"finished_at" json:"finished_at"`
	DurationMs   int64  `db:"duration_ms" json:"duration_ms"`
}

// Started returns the submission start time
func (e *Entry) Started() time.Time {
	return time.UnixMilli(e.StartedAt)
}

// Duration returns how long the call took
func (e *Entry) Duration() time.Duration {
	return time.Duration(e.DurationMs) * time.Millisecond
}

// Stats summarizes the recorded submissions
type Stats struct {
	Total         int64   `json:"total"`
	Succeeded     int64   `json:"succeeded"`
	Failed        int64   `json:"failed"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}
