// Package cache provides the short-TTL read-through cache in front of the
// search and autocomplete paths.
//
// There is deliberately no locking around misses: concurrent requests for
// the same cold key each compute the value and the last write wins. The
// computation is idempotent, so the duplicated work during the first
// seconds of a key's life is cheaper than a lock or singleflight layer.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	apperrors "github.com/dungeun/e-market-search/pkg/errors"

	"github.com/dungeun/e-market-search/internal/kv"
)

// Invalidation scopes accepted by Invalidate.
const (
	ScopeAll          = "all"
	ScopeSearch       = "search"
	ScopeAutocomplete = "autocomplete"
)

// Default TTLs per cache tier.
const (
	DefaultSearchTTL       = 5 * time.Minute
	DefaultAutocompleteTTL = 60 * time.Second
)

// Manager wraps a kv.Store with JSON serialization and scope invalidation.
type Manager struct {
	store  kv.Store
	logger *slog.Logger
}

// New creates a Manager over the given store.
func New(store kv.Store, logger *slog.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// GetOrCompute returns the cached value at key, or computes, stores, and
// returns it. The second return reports whether this was a cache hit.
//
// Store failures on the write path are logged and swallowed: a cache that
// cannot persist still serves the computed value.
func GetOrCompute[T any](ctx context.Context, m *Manager, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, bool, error) {
	var zero T

	raw, err := m.store.Get(ctx, key)
	switch {
	case err == nil:
		var cached T
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			return cached, true, nil
		}
		// Undecodable entry; fall through and recompute over it.
		m.logger.WarnContext(ctx, "cache entry undecodable, recomputing", slog.String("key", key))
	case errors.Is(err, kv.ErrKeyNotFound):
		// Cold key.
	default:
		// Read path down; serve from the source rather than failing.
		m.logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	value, err := compute(ctx)
	if err != nil {
		return zero, false, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		m.logger.ErrorContext(ctx, "cache value not serializable", slog.String("key", key), slog.String("error", err.Error()))
		return value, false, nil
	}
	if err := m.store.SetWithTTL(ctx, key, string(data), ttl); err != nil {
		m.logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return value, false, nil
}

// Invalidate removes cached entries for the given scope and reports how many
// keys were dropped. A scope that is not a named tier is treated as a
// category id; cache keys are hashed request digests, so a category cannot
// be targeted by pattern and the drop widens to both tiers.
func (m *Manager) Invalidate(ctx context.Context, scope string) (int, error) {
	if scope == "" {
		return 0, apperrors.InvalidInput("invalidation scope is required")
	}

	var patterns []string
	switch scope {
	case ScopeSearch:
		patterns = []string{"search:*"}
	case ScopeAutocomplete:
		patterns = []string{"autocomplete:*"}
	case ScopeAll:
		patterns = []string{"search:*", "autocomplete:*"}
	default:
		m.logger.InfoContext(ctx, "cache invalidation widened to all tiers", slog.String("scope", scope))
		patterns = []string{"search:*", "autocomplete:*"}
	}

	removed := 0
	for _, pattern := range patterns {
		n, err := m.store.DeleteByPattern(ctx, pattern)
		removed += n
		if err != nil {
			return removed, apperrors.Unavailable("cache invalidation failed", err)
		}
	}

	m.logger.InfoContext(ctx, "cache invalidated",
		slog.String("scope", scope),
		slog.Int("keys_removed", removed),
	)
	return removed, nil
}
