package suggest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeun/e-market-search/internal/analytics"
	"github.com/dungeun/e-market-search/internal/cache"
	"github.com/dungeun/e-market-search/internal/catalog/memory"
	"github.com/dungeun/e-market-search/internal/domain"
	"github.com/dungeun/e-market-search/internal/kv"
)

func newTestService(t *testing.T) (*Service, *memory.Reader, *kv.MemoryStore) {
	t.Helper()
	reader := memory.New()
	store := kv.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(reader, store, cache.New(store, logger), time.Minute, logger)
	return svc, reader, store
}

func seedProducts(reader *memory.Reader) {
	now := time.Now()
	reader.Put(domain.Product{ID: "p1", Name: "Shirt Classic", Status: domain.ProductStatusActive, Tags: []string{"shirts", "cotton"}, CreatedAt: now})
	reader.Put(domain.Product{ID: "p2", Name: "Shiny Jacket", Status: domain.ProductStatusActive, Tags: []string{"outerwear"}, CreatedAt: now})
	reader.Put(domain.Product{ID: "p3", Name: "Shoes Runner", Status: domain.ProductStatusActive, CreatedAt: now})
}

func TestSuggest_ShortPrefixYieldsEmpty(t *testing.T) {
	svc, reader, _ := newTestService(t)
	seedProducts(reader)

	for _, prefix := range []string{"", "s", "  s  "} {
		got, err := svc.Suggest(context.Background(), prefix, 10)
		require.NoError(t, err)
		assert.Empty(t, got, "prefix %q", prefix)
	}
}

func TestSuggest_MatchesNamesAndTags(t *testing.T) {
	svc, reader, _ := newTestService(t)
	seedProducts(reader)

	got, err := svc.Suggest(context.Background(), "shi", 10)
	require.NoError(t, err)

	assert.Contains(t, got, "Shirt Classic")
	assert.Contains(t, got, "Shiny Jacket")
	assert.Contains(t, got, "shirts")
	assert.NotContains(t, got, "Shoes Runner")
}

func TestSuggest_MergesLedgerEntriesFirstByLength(t *testing.T) {
	svc, reader, store := newTestService(t)
	seedProducts(reader)

	ctx := context.Background()
	require.NoError(t, store.ZIncrBy(ctx, analytics.PopularQueriesKey, "shirt", 50))

	got, err := svc.Suggest(ctx, "shi", 10)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	// "shirt" is the shortest candidate, so it leads.
	assert.Equal(t, "shirt", got[0])
}

func TestSuggest_MatchesSubstrings(t *testing.T) {
	svc, reader, store := newTestService(t)
	reader.Put(domain.Product{ID: "p1", Name: "Runner Shoes", Status: domain.ProductStatusActive, CreatedAt: time.Now()})

	ctx := context.Background()
	require.NoError(t, store.ZIncrBy(ctx, analytics.PopularQueriesKey, "red shoes", 5))

	got, err := svc.Suggest(ctx, "sho", 10)
	require.NoError(t, err)

	assert.Contains(t, got, "Runner Shoes")
	assert.Contains(t, got, "red shoes")
}

func TestSuggest_PrefixMatchesBeforeSubstringMatches(t *testing.T) {
	svc, reader, _ := newTestService(t)
	now := time.Now()
	reader.Put(domain.Product{ID: "p1", Name: "Ash Gray Hoodie", Status: domain.ProductStatusActive, CreatedAt: now})
	reader.Put(domain.Product{ID: "p2", Name: "Shoes Runner Long Name", Status: domain.ProductStatusActive, CreatedAt: now})

	got, err := svc.Suggest(context.Background(), "sh", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// The substring-only match is longer overall yet sorts last anyway.
	assert.Equal(t, []string{"Shoes Runner Long Name", "Ash Gray Hoodie"}, got)
}

func TestSuggest_ExactPrefixMatchLeads(t *testing.T) {
	svc, reader, store := newTestService(t)
	seedProducts(reader)

	ctx := context.Background()
	require.NoError(t, store.ZIncrBy(ctx, analytics.PopularQueriesKey, "sh", 1))

	got, err := svc.Suggest(ctx, "sh", 10)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "sh", got[0])
}

func TestSuggest_DeduplicatesCaseInsensitively(t *testing.T) {
	svc, reader, store := newTestService(t)
	reader.Put(domain.Product{ID: "p1", Name: "Shirt", Status: domain.ProductStatusActive, CreatedAt: time.Now()})

	ctx := context.Background()
	require.NoError(t, store.ZIncrBy(ctx, analytics.PopularQueriesKey, "shirt", 10))

	got, err := svc.Suggest(ctx, "shir", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	// Ledger casing was seen first.
	assert.Equal(t, "shirt", got[0])
}

func TestSuggest_Deterministic(t *testing.T) {
	svc, reader, _ := newTestService(t)
	seedProducts(reader)

	ctx := context.Background()
	first, err := svc.Suggest(ctx, "shi", 10)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := svc.Suggest(ctx, "shi", 10)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSuggest_RespectsLimit(t *testing.T) {
	svc, reader, _ := newTestService(t)
	now := time.Now()
	for _, name := range []string{"Shirt A", "Shirt B", "Shirt C", "Shirt D"} {
		reader.Put(domain.Product{ID: name, Name: name, Status: domain.ProductStatusActive, CreatedAt: now})
	}

	got, err := svc.Suggest(context.Background(), "shirt", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSuggest_CachesResults(t *testing.T) {
	svc, reader, store := newTestService(t)
	seedProducts(reader)

	ctx := context.Background()
	_, err := svc.Suggest(ctx, "shi", 10)
	require.NoError(t, err)

	// A product added after the first call is invisible until the TTL lapses.
	reader.Put(domain.Product{ID: "p9", Name: "Shimmer Dress", Status: domain.ProductStatusActive, CreatedAt: time.Now()})

	got, err := svc.Suggest(ctx, "shi", 10)
	require.NoError(t, err)
	assert.NotContains(t, got, "Shimmer Dress")

	// Invalidation makes it visible again.
	_, err = cache.New(store, slog.New(slog.NewTextHandler(io.Discard, nil))).Invalidate(ctx, cache.ScopeAutocomplete)
	require.NoError(t, err)

	got, err = svc.Suggest(ctx, "shi", 10)
	require.NoError(t, err)
	assert.Contains(t, got, "Shimmer Dress")
}
