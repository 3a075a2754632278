package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dungeun/e-market-search/internal/catalog"
	"github.com/dungeun/e-market-search/internal/domain"
)

// Reader is an in-memory implementation of catalog.Reader. It backs tests
// and the dev-mode catalog backend with simple string matching on name and
// description. Thread-safe via sync.RWMutex.
type Reader struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// New creates a new in-memory catalog reader.
func New() *Reader {
	return &Reader{
		products: make(map[string]domain.Product),
	}
}

// Put adds or replaces a product.
func (r *Reader) Put(p domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
}

// Remove deletes a product by id.
func (r *Reader) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, id)
}

// Find returns products matching the filter in the given order.
func (r *Reader) Find(_ context.Context, f catalog.Filter, order catalog.Order, limit, offset int) ([]domain.Product, error) {
	matched := r.matching(f)
	sortProducts(matched, order)

	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

// Count returns the number of products matching the filter.
func (r *Reader) Count(_ context.Context, f catalog.Filter) (int, error) {
	return len(r.matching(f)), nil
}

// Aggregate groups the filtered set by the given dimension.
func (r *Reader) Aggregate(_ context.Context, f catalog.Filter, groupBy catalog.GroupBy) ([]domain.FacetBucket, error) {
	matched := r.matching(f)

	type key struct{ id, label string }
	counts := make(map[key]int)

	for _, p := range matched {
		switch groupBy {
		case catalog.GroupByCategory:
			if p.CategoryID != "" {
				counts[key{p.CategoryID, p.CategoryName}]++
			}
		case catalog.GroupByTag:
			for _, t := range p.Tags {
				counts[key{"", t}]++
			}
		}
	}

	buckets := make([]domain.FacetBucket, 0, len(counts))
	for k, n := range counts {
		buckets = append(buckets, domain.FacetBucket{ID: k.id, Label: k.label, Count: n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Label < buckets[j].Label
	})
	return buckets, nil
}

// PriceHistogram splits the filtered set's price span into equal-width
// buckets with accurate counts.
func (r *Reader) PriceHistogram(_ context.Context, f catalog.Filter, n int) ([]domain.PriceBucket, error) {
	matched := r.matching(f)
	if len(matched) == 0 {
		return []domain.PriceBucket{}, nil
	}

	min, max := matched[0].Price, matched[0].Price
	for _, p := range matched[1:] {
		if p.Price < min {
			min = p.Price
		}
		if p.Price > max {
			max = p.Price
		}
	}

	buckets := catalog.SplitPriceRange(min, max, n)
	for _, p := range matched {
		if i := catalog.BucketIndex(buckets, p.Price); i >= 0 {
			buckets[i].Count++
		}
	}
	return buckets, nil
}

// matching returns a snapshot of products passing the filter, id-ordered so
// downstream tie-breaking is deterministic.
func (r *Reader) matching(f catalog.Filter) []domain.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.Product, 0)
	for _, p := range r.products {
		if matches(p, f) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched
}

func matches(p domain.Product, f catalog.Filter) bool {
	if f.Text != "" {
		name := strings.ToLower(p.Name)
		desc := strings.ToLower(p.Description)
		if !strings.Contains(name, f.Text) && !strings.Contains(desc, f.Text) {
			return false
		}
	}

	if f.CategoryID != "" && p.CategoryID != f.CategoryID {
		return false
	}

	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}

	if f.InStock && p.Stock <= 0 {
		return false
	}

	if f.MinRating > 0 && p.RatingAvg < f.MinRating {
		return false
	}

	if f.Status != "" && p.Status != f.Status {
		return false
	}

	// Any-match: at least one requested tag present on the product.
	if len(f.Tags) > 0 {
		found := false
		for _, want := range f.Tags {
			for _, have := range p.Tags {
				if strings.EqualFold(have, want) {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

func sortProducts(products []domain.Product, order catalog.Order) {
	switch order {
	case catalog.OrderPriceAsc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price < products[j].Price
		})
	case catalog.OrderPriceDesc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price > products[j].Price
		})
	case catalog.OrderRating:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].RatingAvg > products[j].RatingAvg
		})
	case catalog.OrderNewest:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].CreatedAt.After(products[j].CreatedAt)
		})
	}
}
