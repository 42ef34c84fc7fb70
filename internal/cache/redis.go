package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raaihank/redactor/internal/service"
)

// RedisStore is a Redis-backed response cache
type RedisStore struct {
	client *redis.Client
	config *Config
	logger *zap.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(config *Config, logger *zap.Logger) (*RedisStore, error) {
	// Parse Redis URL
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pool
	if config.MaxConnections > 0 {
		opts.PoolSize = config.MaxConnections
	}
	opts.MinIdleConns = config.MinIdleConns

	store := &RedisStore{
		client: redis.NewClient(opts),
		config: config,
		logger: logger,
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.client.Ping(ctx).Err(); err != nil {
		store.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Result cache initialized",
		zap.String("backend", "redis"),
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Duration("default_ttl", config.DefaultTTL))

	return store, nil
}

// Get looks up a cached response
func (s *RedisStore) Get(ctx context.Context, key string) (*service.Response, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		s.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		s.misses.Add(1)
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}

	var cached CachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		s.logger.Warn("Dropping corrupted cache entry", zap.Error(err))
		s.client.Del(ctx, s.key(key))
		s.misses.Add(1)
		return nil, false, nil
	}

	s.hits.Add(1)
	return &cached.Response, true, nil
}

// Set stores a response with the configured TTL
func (s *RedisStore) Set(ctx context.Context, key string, resp *service.Response) error {
	data, err := json.Marshal(CachedResponse{
		Response: *resp,
		CachedAt: time.Now(),
		TTL:      int64(s.config.DefaultTTL.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal response for caching: %w", err)
	}

	if err := s.client.Set(ctx, s.key(key), data, s.config.DefaultTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}
	return nil
}

// Stats returns cache performance statistics
func (s *RedisStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Backend: "redis",
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}
	stats.HitRate = hitRate(stats.Hits, stats.Misses)

	// Parse memory usage from Redis info
	if info, err := s.client.Info(ctx, "memory").Result(); err == nil {
		for _, line := range strings.Split(info, "\r\n") {
			if memStr, ok := strings.CutPrefix(line, "used_memory:"); ok {
				if mem, err := strconv.ParseInt(memStr, 10, 64); err == nil {
					stats.MemoryUsage = mem
				}
			}
		}
	}

	keys, err := s.scanKeys(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalKeys = int64(len(keys))

	return stats, nil
}

// Clear removes all cached responses under the key prefix
func (s *RedisStore) Clear(ctx context.Context) error {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return err
	}

	// Delete keys in batches
	batchSize := 100
	for i := 0; i < len(keys); i += batchSize {
		end := min(i+batchSize, len(keys))
		if err := s.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	s.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.config.KeyPrefix+":resp:*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return keys, nil
}

func (s *RedisStore) key(fingerprint string) string {
	return fmt.Sprintf("%s:resp:%s", s.config.KeyPrefix, fingerprint)
}

// maskRedisURL masks the password in a Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
