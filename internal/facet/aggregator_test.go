package facet

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeun/e-market-search/internal/catalog"
	"github.com/dungeun/e-market-search/internal/domain"
)

// stubReader lets each test control per-dimension results and latency.
type stubReader struct {
	mu        sync.Mutex
	delay     time.Duration
	buckets   map[catalog.GroupBy][]domain.FacetBucket
	prices    []domain.PriceBucket
	seenAgg   []catalog.Filter
	seenPrice []catalog.Filter
}

func (s *stubReader) Find(context.Context, catalog.Filter, catalog.Order, int, int) ([]domain.Product, error) {
	return nil, nil
}

func (s *stubReader) Count(context.Context, catalog.Filter) (int, error) { return 0, nil }

func (s *stubReader) Aggregate(ctx context.Context, f catalog.Filter, groupBy catalog.GroupBy) ([]domain.FacetBucket, error) {
	s.mu.Lock()
	s.seenAgg = append(s.seenAgg, f)
	s.mu.Unlock()
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.buckets[groupBy], nil
}

func (s *stubReader) PriceHistogram(ctx context.Context, f catalog.Filter, _ int) ([]domain.PriceBucket, error) {
	s.mu.Lock()
	s.seenPrice = append(s.seenPrice, f)
	s.mu.Unlock()
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.prices, nil
}

func (s *stubReader) wait(ctx context.Context) error {
	if s.delay == 0 {
		return nil
	}
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAggregate_AllDimensions(t *testing.T) {
	reader := &stubReader{
		buckets: map[catalog.GroupBy][]domain.FacetBucket{
			catalog.GroupByCategory: {{ID: "c1", Label: "Apparel", Count: 12}},
			catalog.GroupByTag:      {{Label: "cotton", Count: 8}, {Label: "summer", Count: 3}},
		},
		prices: []domain.PriceBucket{{From: 100, To: 500, Count: 15}},
	}

	agg := New(reader, time.Second, testLogger())
	summary := agg.Aggregate(context.Background(), catalog.Filter{Text: "shirt"})

	assert.False(t, summary.Partial)
	assert.Equal(t, []domain.FacetBucket{{ID: "c1", Label: "Apparel", Count: 12}}, summary.Categories)
	assert.Len(t, summary.Tags, 2)
	assert.Len(t, summary.PriceRanges, 1)
}

func TestAggregate_ExcludesOwnDimension(t *testing.T) {
	reader := &stubReader{}

	min, max := int64(100), int64(500)
	filter := catalog.Filter{
		Text:       "shirt",
		CategoryID: "c1",
		Tags:       []string{"cotton"},
		MinPrice:   &min,
		MaxPrice:   &max,
	}

	agg := New(reader, time.Second, testLogger())
	agg.Aggregate(context.Background(), filter)

	require.Len(t, reader.seenAgg, 2)
	for _, f := range reader.seenAgg {
		// Whichever dimension ran, the other constraints must survive.
		if f.CategoryID == "" {
			assert.Equal(t, []string{"cotton"}, f.Tags)
		} else {
			assert.Empty(t, f.Tags)
			assert.Equal(t, "c1", f.CategoryID)
		}
		assert.NotNil(t, f.MinPrice)
	}

	require.Len(t, reader.seenPrice, 1)
	assert.Nil(t, reader.seenPrice[0].MinPrice)
	assert.Nil(t, reader.seenPrice[0].MaxPrice)
	assert.Equal(t, "c1", reader.seenPrice[0].CategoryID)
}

func TestAggregate_TimeoutDegradesToPartial(t *testing.T) {
	reader := &stubReader{
		delay: 200 * time.Millisecond,
		buckets: map[catalog.GroupBy][]domain.FacetBucket{
			catalog.GroupByCategory: {{ID: "c1", Label: "Apparel", Count: 1}},
		},
	}

	agg := New(reader, 20*time.Millisecond, testLogger())

	start := time.Now()
	summary := agg.Aggregate(context.Background(), catalog.Filter{})
	elapsed := time.Since(start)

	assert.True(t, summary.Partial)
	assert.Empty(t, summary.Categories)
	assert.Empty(t, summary.Tags)
	assert.Empty(t, summary.PriceRanges)
	assert.Less(t, elapsed, 150*time.Millisecond)
}

func TestAggregate_TagLimit(t *testing.T) {
	var tags []domain.FacetBucket
	for i := 0; i < 30; i++ {
		tags = append(tags, domain.FacetBucket{Label: string(rune('a' + i)), Count: 30 - i})
	}
	reader := &stubReader{
		buckets: map[catalog.GroupBy][]domain.FacetBucket{catalog.GroupByTag: tags},
	}

	agg := New(reader, time.Second, testLogger())
	summary := agg.Aggregate(context.Background(), catalog.Filter{})

	assert.Len(t, summary.Tags, tagLimit)
	assert.Equal(t, "a", summary.Tags[0].Label)
}
