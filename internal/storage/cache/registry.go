// --- File: internal/storage/cache/registry.go ---
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/hermesbot/go-alert-service/pkg/dispatch"
	"github.com/hermesbot/go-alert-service/pkg/notification"
)

const subscriptionsKey = "hermes:subscriptions"

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or an error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedRegistry is a Decorator that adds Read-Aside caching to any Registry.
type CachedRegistry struct {
	realStore dispatch.Registry
	cache     CacheClient
	ttl       time.Duration
	logger    *slog.Logger
}

// NewCachedRegistry creates the decorator.
func NewCachedRegistry(realStore dispatch.Registry, cache CacheClient, ttl time.Duration, logger *slog.Logger) *CachedRegistry {
	return &CachedRegistry{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.With("component", "CachedRegistry"),
	}
}

// --- READ PATH (Read-Aside) ---

func (s *CachedRegistry) List(ctx context.Context) ([]notification.PushSubscription, error) {
	var cached []notification.PushSubscription
	if err := s.cache.Get(ctx, subscriptionsKey, &cached); err == nil {
		return cached, nil
	}

	fresh, err := s.realStore.List(ctx)
	if err != nil {
		return nil, err
	}

	// Caching is an optimization; if Redis is down we serve from the store.
	_ = s.cache.Set(ctx, subscriptionsKey, fresh, s.ttl)

	return fresh, nil
}

// --- WRITE PATHS (Invalidate-on-Write) ---

func (s *CachedRegistry) Add(ctx context.Context, sub notification.PushSubscription) error {
	if err := s.realStore.Add(ctx, sub); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Remove must clear the cache even when the key was already gone, so that
// dead endpoints stop receiving pushes immediately.
func (s *CachedRegistry) Remove(ctx context.Context, endpoint string) error {
	if err := s.realStore.Remove(ctx, endpoint); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// invalidate drops the cached list. The store write has already committed,
// so a Redis failure is logged and the stale list lives at most one TTL.
func (s *CachedRegistry) invalidate(ctx context.Context) {
	if err := s.cache.Del(ctx, subscriptionsKey); err != nil {
		s.logger.Warn("Failed to invalidate subscription cache", "err", err)
	}
}
