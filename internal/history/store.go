package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/samber/lo"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/raaihank/redactor/internal/options"
	"github.com/raaihank/redactor/internal/workspace"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	id            TEXT PRIMARY KEY,
	workspace_id  TEXT NOT NULL,
	status        TEXT NOT NULL,
	error_kind    TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	text_length   INTEGER NOT NULL DEFAULT 0,
	result_length INTEGER NOT NULL DEFAULT 0,
	categories    TEXT NOT NULL DEFAULT '',
	custom_rule   INTEGER NOT NULL DEFAULT 0,
	started_at    BIGINT NOT NULL,
	finished_at   BIGINT NOT NULL,
	duration_ms   BIGINT NOT NULL DEFAULT 0
)`

const finishedIndex = `CREATE INDEX IF NOT EXISTS idx_submissions_finished_at ON submissions (finished_at)`

// Store is the submission audit log
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open connects to the history database
func Open(config *Config, logger *zap.Logger) (*Store, error) {
	if config.Driver != DriverPostgres && config.Driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported history driver %q", config.Driver)
	}

	db, err := sqlx.Connect(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	// Configure connection pool
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	logger.Info("History store initialized",
		zap.String("driver", config.Driver),
		zap.String("dsn", maskDatabaseURL(config.DSN)),
		zap.Int("max_open_conns", config.MaxOpenConns))

	return New(db, logger), nil
}

// New wraps an existing connection
func New(db *sqlx.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Migrate creates the submissions table if needed
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range []string{schema, finishedIndex} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate history schema: %w", err)
		}
	}
	return nil
}

// Record implements workspace.Recorder
func (s *Store) Record(ctx context.Context, sub workspace.Submission) error {
	return s.Insert(ctx, EntryFromSubmission(sub))
}

// Insert adds one entry
func (s *Store) Insert(ctx context.Context, e *Entry) error {
	query := s.db.Rebind(`
		INSERT INTO submissions (id, workspace_id, status, error_kind, error_message,
			text_length, result_length, categories, custom_rule, started_at, finished_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.WorkspaceID, e.Status, e.ErrorKind, e.ErrorMessage,
		e.TextLength, e.ResultLength, e.Categories, e.CustomRule,
		e.StartedAt, e.FinishedAt, e.DurationMs,
	)
	if err != nil {
		s.logger.Error("Failed to insert history entry",
			zap.Error(err),
			zap.String("submission_id", e.ID))
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	s.logger.Debug("History entry recorded",
		zap.String("submission_id", e.ID),
		zap.String("status", e.Status))
	return nil
}

// Recent returns the newest entries first
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := s.db.Rebind(`
		SELECT id, workspace_id, status, error_kind, error_message, text_length,
			result_length, categories, custom_rule, started_at, finished_at, duration_ms
		FROM submissions
		ORDER BY finished_at DESC, id
		LIMIT ?`)

	entries := []Entry{}
	if err := s.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return entries, nil
}

// Stats returns aggregate counts
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'succeeded' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_ms), 0)
		FROM submissions`

	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.Total,
		&stats.Succeeded,
		&stats.Failed,
		&stats.AvgDurationMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get history stats: %w", err)
	}
	return stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// EntryFromSubmission converts a settled submission to its stored form
func EntryFromSubmission(sub workspace.Submission) *Entry {
	cats := lo.Map(sub.Options.EnabledCategories(), func(c options.Category, _ int) string {
		return string(c)
	})

	e := &Entry{
		ID:           sub.ID,
		WorkspaceID:  sub.WorkspaceID,
		Status:       string(sub.Status),
		ErrorKind:    sub.ErrorKind,
		ErrorMessage: sub.Error,
		TextLength:   sub.TextLength,
		ResultLength: sub.ResultLength,
		Categories:   strings.Join(cats, ","),
		StartedAt:    sub.StartedAt.UnixMilli(),
		FinishedAt:   sub.FinishedAt.UnixMilli(),
		DurationMs:   sub.FinishedAt.Sub(sub.StartedAt).Milliseconds(),
	}
	if sub.Options.CustomRuleActive() {
		e.CustomRule = 1
	}
	return e
}

// maskDatabaseURL masks the password in a connection string for logging
func maskDatabaseURL(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	userPart := dsn[:at]
	colon := strings.LastIndex(userPart, ":")
	if colon < 0 || strings.HasPrefix(userPart[colon:], "://") {
		return dsn
	}
	return userPart[:colon+1] + "***" + dsn[at:]
}

var _ workspace.Recorder = (*Store)(nil)
