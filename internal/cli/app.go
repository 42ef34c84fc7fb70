package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/raaihank/redactor/internal/cache"
	"github.com/raaihank/redactor/internal/config"
	"github.com/raaihank/redactor/internal/history"
	"github.com/raaihank/redactor/internal/logger"
	"github.com/raaihank/redactor/internal/service"
	"github.com/raaihank/redactor/internal/workspace"
)

// app holds the collaborators shared by every command
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	client     *service.Client
	anonymizer service.Anonymizer
	cache      cache.Store
	history    *history.Store
}

// newApp loads configuration and wires the service client, the optional
// result cache and the optional history store.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, usageErrorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(loggerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	client, err := service.NewClient(cfg.Service, log.WithComponent("service").Logger)
	if err != nil {
		return nil, usageErrorf("invalid service configuration: %w", err)
	}

	a := &app{cfg: cfg, log: log, client: client, anonymizer: client}

	if cfg.Cache.Enabled {
		store, err := openCache(cfg, log)
		if err != nil {
			// The cache only saves calls; run without it
			log.Warn("Result cache unavailable, continuing without it", zap.Error(err))
		} else {
			a.cache = store
			a.anonymizer = cache.NewAnonymizer(client, store, log.WithComponent("cache").Logger)
		}
	}

	if cfg.History.Enabled {
		store, err := openHistory(ctx, cfg, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.history = store
	}

	return a, nil
}

// recorder returns the history store as a workspace.Recorder, or nil
func (a *app) recorder() workspace.Recorder {
	if a.history == nil {
		return nil
	}
	return a.history
}

func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("Failed to close cache", zap.Error(err))
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.Warn("Failed to close history store", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

func loggerConfig(cfg *config.Config) logger.Config {
	lc := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		lc.File = &logger.FileConfig{
			Enabled:    cfg.Logging.File.Enabled,
			Path:       cfg.Logging.File.Path,
			MaxSize:    cfg.Logging.File.MaxSize,
			MaxAge:     cfg.Logging.File.MaxAge,
			MaxBackups: cfg.Logging.File.MaxBackups,
			Compress:   cfg.Logging.File.Compress,
		}
	}
	return lc
}

func openCache(cfg *config.Config, log *logger.Logger) (cache.Store, error) {
	cc := &cache.Config{
		RedisURL:   cfg.Cache.RedisURL,
		DefaultTTL: cfg.Cache.TTL,
		Size:       cfg.Cache.Size,
		KeyPrefix:  cfg.Cache.KeyPrefix,
	}
	if cc.RedisURL == "" {
		return cache.NewMemoryStore(cc), nil
	}
	return cache.NewRedisStore(cc, log.WithComponent("cache").Logger)
}

func openHistory(ctx context.Context, cfg *config.Config, log *logger.Logger) (*history.Store, error) {
	store, err := history.Open(&history.Config{
		Driver:          cfg.History.Driver,
		DSN:             cfg.History.DSN,
		MaxOpenConns:    cfg.History.MaxOpenConns,
		MaxIdleConns:    cfg.History.MaxIdleConns,
		ConnMaxLifetime: cfg.History.ConnMaxLifetime,
	}, log.WithComponent("history").Logger)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
