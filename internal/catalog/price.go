package catalog

import (
	"github.com/dungeun/e-market-search/internal/domain"
)

// SplitPriceRange divides [min, max] into n equal-width buckets with zero
// counts. Buckets are contiguous and non-overlapping; integer division
// remainder folds into the last bucket so the union always covers [min, max].
// A degenerate span (max <= min) yields a single bucket.
func SplitPriceRange(min, max int64, n int) []domain.PriceBucket {
	if n < 1 {
		n = 1
	}
	if max <= min {
		return []domain.PriceBucket{{From: min, To: max}}
	}

	width := (max - min) / int64(n)
	if width < 1 {
		width = 1
	}

	buckets := make([]domain.PriceBucket, 0, n)
	from := min
	for i := 0; i < n; i++ {
		to := from + width
		if i == n-1 || to > max {
			to = max
		}
		buckets = append(buckets, domain.PriceBucket{From: from, To: to})
		if to >= max {
			break
		}
		from = to
	}
	return buckets
}

// BucketIndex returns the index of the bucket holding price, or -1 when the
// price falls outside all buckets. From is inclusive, To exclusive, except
// the last bucket which includes its upper bound.
func BucketIndex(buckets []domain.PriceBucket, price int64) int {
	for i, b := range buckets {
		last := i == len(buckets)-1
		if price >= b.From && (price < b.To || (last && price <= b.To)) {
			return i
		}
	}
	return -1
}
