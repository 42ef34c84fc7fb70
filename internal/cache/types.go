package cache

import (
	"context"
	"time"

	"github.com/raaihank/redactor/internal/service"
)

// Store holds anonymization responses keyed by request fingerprint
type Store interface {
	Get(ctx context.Context, key string) (*service.Response, bool, error)
	Set(ctx context.Context, key string, resp *service.Response) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// CachedResponse is the stored form of a response
type CachedResponse struct {
	Response service.Response `json:"response"`
	CachedAt time.Time        `json:"cached_at"`
	TTL      int64            `json:"ttl"`
}

// Stats represents cache performance statistics
type Stats struct {
	Backend     string  `json:"backend"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	TotalKeys   int64   `json:"total_keys"`
	MemoryUsage int64   `json:"memory_usage_bytes,omitempty"`
}

// Config contains cache configuration
type Config struct {
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	Size           int           `yaml:"size" mapstructure:"size"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
