package ranking

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeun/e-market-search/internal/catalog/memory"
	"github.com/dungeun/e-market-search/internal/domain"
	"github.com/dungeun/e-market-search/internal/kv"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedScorer(now time.Time) *Scorer {
	s := NewScorer(DefaultWeights)
	s.now = func() time.Time { return now }
	return s
}

func TestScorer_CompositeWeights(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	scorer := fixedScorer(now)

	p := domain.Product{
		ID:            "p1",
		OrderCount:    100,
		ReviewCount:   40,
		WishlistCount: 20,
		CreatedAt:     now.AddDate(0, 0, -10),
	}

	// 100*0.5 + 40*0.2 + 20*0.1 + (100-10)*0.2
	assert.InDelta(t, 50+8+2+18, scorer.Score(p), 1e-9)
}

func TestScorer_RecencyFloorsAtZero(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	scorer := fixedScorer(now)

	old := domain.Product{OrderCount: 10, CreatedAt: now.AddDate(-2, 0, 0)}
	assert.InDelta(t, 5.0, scorer.Score(old), 1e-9)
}

func TestScorer_MoreOrdersScoresHigher(t *testing.T) {
	now := time.Now()
	scorer := fixedScorer(now)

	base := domain.Product{ReviewCount: 5, WishlistCount: 5, CreatedAt: now.AddDate(0, 0, -30)}

	low := base
	low.OrderCount = 10
	high := base
	high.OrderCount = 50

	assert.Greater(t, scorer.Score(high), scorer.Score(low))
}

func TestIndex_ScoresPrefersIndexedValues(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	now := time.Now()

	require.NoError(t, store.ZAdd(ctx, IndexKey, kv.Member{Name: "p1", Score: 42}))

	idx := NewIndex(store, fixedScorer(now), testLogger())

	products := []domain.Product{
		{ID: "p1", OrderCount: 1, CreatedAt: now},
		{ID: "p2", OrderCount: 10, CreatedAt: now.AddDate(0, 0, -200)},
	}

	scores := idx.Scores(ctx, products)
	assert.InDelta(t, 42, scores["p1"], 1e-9)
	// p2 is absent from the index, so it is scored on the fly: 10*0.5.
	assert.InDelta(t, 5, scores["p2"], 1e-9)
}

func TestIndex_Rebuild(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	reader := memory.New()
	now := time.Now()

	reader.Put(domain.Product{ID: "p1", Name: "Shirt", Status: domain.ProductStatusActive, OrderCount: 10, CreatedAt: now.AddDate(0, 0, -200)})
	reader.Put(domain.Product{ID: "p2", Name: "Shoes", Status: domain.ProductStatusActive, OrderCount: 4, CreatedAt: now.AddDate(0, 0, -200)})
	reader.Put(domain.Product{ID: "p3", Name: "Draft", Status: domain.ProductStatusDraft, OrderCount: 99, CreatedAt: now})

	idx := NewIndex(store, fixedScorer(now), testLogger())

	indexed, err := idx.Rebuild(ctx, reader)
	require.NoError(t, err)
	assert.Equal(t, 2, indexed)

	scores, err := store.ZScores(ctx, IndexKey, []string{"p1", "p2", "p3"})
	require.NoError(t, err)
	assert.InDelta(t, 5, scores["p1"], 1e-9)
	assert.InDelta(t, 2, scores["p2"], 1e-9)
	assert.NotContains(t, scores, "p3")
}

func TestIndex_RebuildLockExcludesConcurrentRuns(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	reader := memory.New()

	won, err := store.SetNX(ctx, rebuildLockKey, "held", time.Minute)
	require.NoError(t, err)
	require.True(t, won)

	idx := NewIndex(store, fixedScorer(time.Now()), testLogger())

	_, err = idx.Rebuild(ctx, reader)
	assert.ErrorIs(t, err, ErrRebuildInProgress)
}

func TestSortByScore_TiebreaksByRecencyThenID(t *testing.T) {
	now := time.Now()
	products := []domain.Product{
		{ID: "b", UpdatedAt: now},
		{ID: "c", UpdatedAt: now.Add(-time.Hour)},
		{ID: "a", UpdatedAt: now.Add(-time.Hour)},
	}
	scores := map[string]float64{"a": 1, "b": 5, "c": 1}

	SortByScore(products, scores)

	assert.Equal(t, "b", products[0].ID)
	assert.Equal(t, "a", products[1].ID)
	assert.Equal(t, "c", products[2].ID)
}

func TestSortByScore_EqualScoresPreferNewerUpdate(t *testing.T) {
	now := time.Now()
	products := []domain.Product{
		{ID: "a-older", UpdatedAt: now.Add(-30 * 24 * time.Hour)},
		{ID: "z-newer", UpdatedAt: now},
	}
	scores := map[string]float64{"a-older": 7, "z-newer": 7}

	SortByScore(products, scores)

	assert.Equal(t, "z-newer", products[0].ID)
	assert.Equal(t, "a-older", products[1].ID)
}
