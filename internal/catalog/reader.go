package catalog

import (
	"context"

	"github.com/dungeun/e-market-search/internal/domain"
)

// Filter is the normalized predicate set applied to catalog reads. Zero
// values mean "no constraint". Text matching is a case-insensitive substring
// predicate over name and description; Tags use any-match semantics.
type Filter struct {
	Text       string
	CategoryID string
	MinPrice   *int64
	MaxPrice   *int64
	InStock    bool
	MinRating  float64
	Tags       []string
	Status     string
}

// WithoutCategory returns a copy of the filter with the category constraint
// removed. Used for own-dimension exclusion in facet aggregation.
func (f Filter) WithoutCategory() Filter {
	f.CategoryID = ""
	return f
}

// WithoutTags returns a copy of the filter with the tag constraint removed.
func (f Filter) WithoutTags() Filter {
	f.Tags = nil
	return f
}

// WithoutPrice returns a copy of the filter with the price range removed.
func (f Filter) WithoutPrice() Filter {
	f.MinPrice = nil
	f.MaxPrice = nil
	return f
}

// Order is a push-down ordering for Find.
type Order string

const (
	OrderNewest    Order = "newest"
	OrderPriceAsc  Order = "price_asc"
	OrderPriceDesc Order = "price_desc"
	OrderRating    Order = "rating"
)

// GroupBy selects the dimension for Aggregate.
type GroupBy string

const (
	GroupByCategory GroupBy = "category"
	GroupByTag      GroupBy = "tag"
)

// Reader executes predicate-based reads and aggregates against the product
// store. Implementations must support case-insensitive substring match,
// range predicates, and set-membership predicates. All errors are returned
// unmodified; the engine performs no retries.
type Reader interface {
	// Find returns products matching the filter in the given order.
	// Ties within an order are broken by id ascending for determinism.
	Find(ctx context.Context, f Filter, order Order, limit, offset int) ([]domain.Product, error)

	// Count returns the number of products matching the filter.
	Count(ctx context.Context, f Filter) (int, error)

	// Aggregate returns value buckets with counts for the given dimension,
	// ordered by count descending then label ascending.
	Aggregate(ctx context.Context, f Filter, groupBy GroupBy) ([]domain.FacetBucket, error)

	// PriceHistogram splits the filtered set's [min, max] price span into
	// the given number of equal-width buckets with accurate counts. A span
	// of zero width yields a single bucket.
	PriceHistogram(ctx context.Context, f Filter, buckets int) ([]domain.PriceBucket, error)
}
