// Package kv defines the key-value surface the search engine relies on:
// plain values with TTLs, glob-pattern invalidation, sorted sets for
// popularity and ranking indexes, and hashes for daily counters.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get when the key is absent or expired.
var ErrKeyNotFound = errors.New("kv: key not found")

// Member is a sorted-set entry.
type Member struct {
	Name  string
	Score float64
}

// Store is the subset of Redis the engine uses. A memory implementation
// backs tests and single-node deployments.
type Store interface {
	// Get returns the value at key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)

	// SetWithTTL writes value at key with the given expiry.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX writes value only if key is absent. Returns true if the write won.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes the given keys.
	Delete(ctx context.Context, keys ...string) error

	// DeleteByPattern removes all keys matching a glob pattern and reports
	// how many were removed.
	DeleteByPattern(ctx context.Context, pattern string) (int, error)

	// ZIncrBy atomically adds delta to member's score in the sorted set.
	ZIncrBy(ctx context.Context, key, member string, delta float64) error

	// ZAdd sets the scores of the given members.
	ZAdd(ctx context.Context, key string, members ...Member) error

	// ZTop returns up to n members ordered by score descending.
	ZTop(ctx context.Context, key string, n int) ([]Member, error)

	// ZScores returns the scores of the requested members. Missing members
	// are absent from the result.
	ZScores(ctx context.Context, key string, members []string) (map[string]float64, error)

	// HIncrBy atomically adds delta to a hash field.
	HIncrBy(ctx context.Context, key, field string, delta int64) error

	// HGetAll returns all fields of a hash. An absent hash yields an empty map.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Expire sets a key's TTL.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}
