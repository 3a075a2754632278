package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, store.SetWithTTL(ctx, "k", "v", time.Minute))

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.SetWithTTL(ctx, "k", "v", 30*time.Second))

	_, err := store.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(31 * time.Second)

	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStore_SetNX(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	won, err := store.SetNX(ctx, "lock", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = store.SetNX(ctx, "lock", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, won)

	val, err := store.Get(ctx, "lock")
	require.NoError(t, err)
	assert.Equal(t, "a", val)
}

func TestMemoryStore_DeleteByPattern(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.SetWithTTL(ctx, "search:abc", "1", 0))
	require.NoError(t, store.SetWithTTL(ctx, "search:def", "2", 0))
	require.NoError(t, store.SetWithTTL(ctx, "autocomplete:abc", "3", 0))

	removed, err := store.DeleteByPattern(ctx, "search:*")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = store.Get(ctx, "search:abc")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	val, err := store.Get(ctx, "autocomplete:abc")
	require.NoError(t, err)
	assert.Equal(t, "3", val)
}

func TestMemoryStore_SortedSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.ZIncrBy(ctx, "pop", "shirt", 1))
	require.NoError(t, store.ZIncrBy(ctx, "pop", "shirt", 1))
	require.NoError(t, store.ZIncrBy(ctx, "pop", "shoes", 1))
	require.NoError(t, store.ZIncrBy(ctx, "pop", "hat", 3))

	top, err := store.ZTop(ctx, "pop", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, Member{Name: "hat", Score: 3}, top[0])
	assert.Equal(t, Member{Name: "shirt", Score: 2}, top[1])

	scores, err := store.ZScores(ctx, "pop", []string{"shoes", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"shoes": 1}, scores)
}

func TestMemoryStore_ZAddOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.ZAdd(ctx, "idx", Member{Name: "p1", Score: 10}))
	require.NoError(t, store.ZAdd(ctx, "idx", Member{Name: "p1", Score: 25}, Member{Name: "p2", Score: 5}))

	scores, err := store.ZScores(ctx, "idx", []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"p1": 25, "p2": 5}, scores)
}

func TestMemoryStore_Hash(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.HIncrBy(ctx, "daily", "searches", 1))
	require.NoError(t, store.HIncrBy(ctx, "daily", "searches", 2))
	require.NoError(t, store.HIncrBy(ctx, "daily", "zero_results", 1))

	fields, err := store.HGetAll(ctx, "daily")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"searches": "3", "zero_results": "1"}, fields)

	empty, err := store.HGetAll(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore_HashExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.HIncrBy(ctx, "daily", "searches", 5))
	require.NoError(t, store.Expire(ctx, "daily", time.Hour))

	now = now.Add(2 * time.Hour)

	fields, err := store.HGetAll(ctx, "daily")
	require.NoError(t, err)
	assert.Empty(t, fields)
}
