package cache

import (
	"context"
	"sync/atomic"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/raaihank/redactor/internal/service"
)

// MemoryStore is an in-process LRU response cache with expiry
type MemoryStore struct {
	lru    *expirable.LRU[string, service.Response]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryStore creates an in-process cache
func NewMemoryStore(config *Config) *MemoryStore {
	size := config.Size
	if size <= 0 {
		size = 256
	}
	return &MemoryStore{
		lru: expirable.NewLRU[string, service.Response](size, nil, config.DefaultTTL),
	}
}

// Get looks up a cached response
func (s *MemoryStore) Get(_ context.Context, key string) (*service.Response, bool, error) {
	resp, ok := s.lru.Get(key)
	if !ok {
		s.misses.Add(1)
		return nil, false, nil
	}
	s.hits.Add(1)
	return &resp, true, nil
}

// Set stores a response
func (s *MemoryStore) Set(_ context.Context, key string, resp *service.Response) error {
	s.lru.Add(key, *resp)
	return nil
}

// Stats returns cache performance statistics
func (s *MemoryStore) Stats(_ context.Context) (*Stats, error) {
	stats := &Stats{
		Backend:   "memory",
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		TotalKeys: int64(s.lru.Len()),
	}
	stats.HitRate = hitRate(stats.Hits, stats.Misses)
	return stats, nil
}

// Clear removes every entry
func (s *MemoryStore) Clear(_ context.Context) error {
	s.lru.Purge()
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
