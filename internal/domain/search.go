package domain

// Sort options for search results.
const (
	SortRelevance = "relevance"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortRating    = "rating"
	SortNewest    = "newest"
)

// ValidSortOptions returns the list of valid sort options.
func ValidSortOptions() []string {
	return []string{SortRelevance, SortPriceAsc, SortPriceDesc, SortRating, SortNewest}
}

// IsValidSort checks whether the given sort string is a valid sort option.
func IsValidSort(sort string) bool {
	for _, s := range ValidSortOptions() {
		if s == sort {
			return true
		}
	}
	return false
}

// SearchRequest holds the validated, normalized parameters for one search
// call. Build it through the planner; a hand-built value skips normalization
// and cache-key canonicalization.
type SearchRequest struct {
	// Query preserves the caller's casing for display; Normalized is the
	// lowercased, trimmed form used for matching and as part of the cache key.
	Query      string   `json:"query"`
	Normalized string   `json:"normalized"`
	CategoryID *string  `json:"category_id,omitempty"`
	MinPrice   *int64   `json:"min_price,omitempty"`
	MaxPrice   *int64   `json:"max_price,omitempty"`
	InStock    bool     `json:"in_stock"`
	MinRating  float64  `json:"min_rating,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	SortBy     string   `json:"sort_by"`
	Page       int      `json:"page"`
	PerPage    int      `json:"per_page"`
}

// SearchResult holds the assembled search response. Immutable once
// constructed and safe to cache verbatim.
type SearchResult struct {
	Products    []Product    `json:"products"`
	Total       int          `json:"total"`
	Page        int          `json:"page"`
	PerPage     int          `json:"per_page"`
	Facets      FacetSummary `json:"facets"`
	Suggestions []string     `json:"suggestions,omitempty"`
	TookMs      int64        `json:"took_ms"`
}

// FacetSummary aggregates the facet dimensions for the current filter.
// Partial is set when one or more dimensions missed the aggregation deadline.
type FacetSummary struct {
	Categories  []FacetBucket `json:"categories"`
	Tags        []FacetBucket `json:"tags"`
	PriceRanges []PriceBucket `json:"price_ranges"`
	Partial     bool          `json:"partial,omitempty"`
}

// FacetBucket is one value of a facet dimension with its match count.
type FacetBucket struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// PriceBucket is one equal-width price range with its match count.
// From is inclusive; To is exclusive except for the last bucket.
type PriceBucket struct {
	From  int64 `json:"from"`
	To    int64 `json:"to"`
	Count int   `json:"count"`
}

// QueryCount is one entry of the popular-queries ranking.
type QueryCount struct {
	Text  string `json:"text"`
	Count int64  `json:"count"`
}

// DailyStats holds the per-day search counters kept by the analytics recorder.
type DailyStats struct {
	Date       string `json:"date"`
	Searches   int64  `json:"searches"`
	Results    int64  `json:"results"`
	DurationMs int64  `json:"duration_ms"`
}
