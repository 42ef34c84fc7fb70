package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/raaihank/redactor/internal/service"
)

// Anonymizer serves repeated requests from a Store and only forwards
// misses. Only the anonymized text of successful responses is cached;
// a hit carries no replacements.
type Anonymizer struct {
	next   service.Anonymizer
	store  Store
	logger *zap.Logger
}

// NewAnonymizer wraps next with store
func NewAnonymizer(next service.Anonymizer, store Store, logger *zap.Logger) *Anonymizer {
	return &Anonymizer{next: next, store: store, logger: logger}
}

// Anonymize implements service.Anonymizer
func (a *Anonymizer) Anonymize(ctx context.Context, req service.Request) (*service.Response, error) {
	key, err := Fingerprint(req)
	if err != nil {
		a.logger.Warn("Failed to fingerprint request, bypassing cache", zap.Error(err))
		return a.next.Anonymize(ctx, req)
	}

	if resp, ok, err := a.store.Get(ctx, key); err != nil {
		a.logger.Warn("Cache lookup failed", zap.Error(err))
	} else if ok {
		a.logger.Debug("Cache hit", zap.String("key", key[:16]))
		return resp, nil
	}

	resp, err := a.next.Anonymize(ctx, req)
	if err != nil {
		return nil, err
	}

	// Replacements hold the original sensitive strings and stay out of the store
	if err := a.store.Set(ctx, key, &service.Response{AnonymizedText: resp.AnonymizedText}); err != nil {
		a.logger.Warn("Failed to cache response", zap.Error(err))
	}
	return resp, nil
}

// Fingerprint derives the cache key of a request
func Fingerprint(req service.Request) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
