package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/raaihank/redactor/internal/config"
)

// RateLimiter applies a token bucket per client IP
type RateLimiter struct {
	config  config.RateLimitConfig
	buckets map[string]*bucket
	mu      sync.Mutex
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		config:  cfg,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow checks if a request from the given client IP is allowed
func (r *RateLimiter) Allow(clientIP string) bool {
	if !r.config.Enabled {
		return true
	}

	r.mu.Lock()
	now := r.now()
	b, ok := r.buckets[clientIP]
	if !ok {
		perSecond := rate.Limit(float64(r.config.RequestsPerMin) / 60.0)
		b = &bucket{limiter: rate.NewLimiter(perSecond, max(r.config.Burst, 1))}
		r.buckets[clientIP] = b
	}
	b.lastSeen = now
	r.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// Clients returns the number of tracked client buckets
func (r *RateLimiter) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}

// CleanupOldBuckets removes buckets not used within idle
func (r *RateLimiter) CleanupOldBuckets(idle time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	for ip, b := range r.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(r.buckets, ip)
		}
	}
}

// StartCleanupRoutine prunes idle buckets until stop is closed
func (r *RateLimiter) StartCleanupRoutine(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.CleanupOldBuckets(time.Hour)
			case <-stop:
				return
			}
		}
	}()
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
