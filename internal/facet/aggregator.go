// Package facet computes facet counts over the filtered result set. The
// three dimensions run concurrently under one deadline; a dimension that
// misses the deadline is dropped and the summary is marked partial rather
// than failing the search.
package facet

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dungeun/e-market-search/internal/catalog"
	"github.com/dungeun/e-market-search/internal/domain"
)

const (
	// DefaultTimeout bounds one full aggregation pass.
	DefaultTimeout = 800 * time.Millisecond

	// tagLimit caps the tag dimension to the most frequent values.
	tagLimit = 20

	// priceBucketCount is the number of equal-width price ranges.
	priceBucketCount = 5
)

// Aggregator fans facet dimensions out over a catalog reader.
type Aggregator struct {
	reader  catalog.Reader
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an Aggregator. A non-positive timeout falls back to
// DefaultTimeout.
func New(reader catalog.Reader, timeout time.Duration, logger *slog.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Aggregator{reader: reader, timeout: timeout, logger: logger}
}

// Aggregate computes category, tag, and price-range counts for the filter.
// Each dimension excludes its own constraint so selecting a facet value does
// not collapse that dimension to a single bucket.
//
// Aggregate never returns an error: a dimension that fails or times out is
// left empty and Partial is set.
func (a *Aggregator) Aggregate(ctx context.Context, f catalog.Filter) domain.FacetSummary {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var (
		wg sync.WaitGroup

		categories []domain.FacetBucket
		tags       []domain.FacetBucket
		prices     []domain.PriceBucket

		catErr, tagErr, priceErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		categories, catErr = a.reader.Aggregate(ctx, f.WithoutCategory(), catalog.GroupByCategory)
	}()
	go func() {
		defer wg.Done()
		tags, tagErr = a.reader.Aggregate(ctx, f.WithoutTags(), catalog.GroupByTag)
	}()
	go func() {
		defer wg.Done()
		prices, priceErr = a.reader.PriceHistogram(ctx, f.WithoutPrice(), priceBucketCount)
	}()
	wg.Wait()

	summary := domain.FacetSummary{
		Categories:  []domain.FacetBucket{},
		Tags:        []domain.FacetBucket{},
		PriceRanges: []domain.PriceBucket{},
	}

	if catErr != nil {
		summary.Partial = true
		a.logDimension(ctx, "categories", catErr)
	} else {
		summary.Categories = categories
	}

	if tagErr != nil {
		summary.Partial = true
		a.logDimension(ctx, "tags", tagErr)
	} else {
		if len(tags) > tagLimit {
			tags = tags[:tagLimit]
		}
		summary.Tags = tags
	}

	if priceErr != nil {
		summary.Partial = true
		a.logDimension(ctx, "price_ranges", priceErr)
	} else {
		summary.PriceRanges = prices
	}

	return summary
}

func (a *Aggregator) logDimension(ctx context.Context, dimension string, err error) {
	level := slog.LevelWarn
	if ctx.Err() == nil {
		// Not a deadline miss; the reader itself failed.
		level = slog.LevelError
	}
	a.logger.Log(ctx, level, "facet dimension dropped",
		slog.String("dimension", dimension),
		slog.String("error", err.Error()),
	)
}
