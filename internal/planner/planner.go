// Package planner turns raw search parameters into a validated, normalized
// request and derives the canonical cache key for it.
package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/dungeun/e-market-search/internal/domain"
	"github.com/dungeun/e-market-search/pkg/errors"
	"github.com/dungeun/e-market-search/pkg/validator"
)

// DefaultPerPage applies when the caller omits the page size.
const DefaultPerPage = 20

// RawRequest carries search parameters as received from the transport layer,
// before normalization.
type RawRequest struct {
	Query      string   `validate:"max=200"`
	CategoryID string   `validate:"omitempty,max=64"`
	MinPrice   *int64   `validate:"omitempty,gte=0"`
	MaxPrice   *int64   `validate:"omitempty,gte=0"`
	InStock    bool
	MinRating  float64  `validate:"gte=0,lte=5"`
	Tags       []string `validate:"max=10,dive,max=50"`
	SortBy     string   `validate:"omitempty,oneof=relevance price_asc price_desc rating newest"`
	Page       int
	PerPage    int      `validate:"min=1,max=100"`
}

// Plan validates and normalizes a raw request. Query text is lowercased and
// whitespace-collapsed, tags are deduplicated and sorted, and a swapped price
// range is reordered rather than rejected.
func Plan(raw RawRequest) (domain.SearchRequest, error) {
	if err := validator.Validate(raw); err != nil {
		return domain.SearchRequest{}, errors.InvalidInput(err.Error())
	}

	req := domain.SearchRequest{
		Query:      strings.TrimSpace(raw.Query),
		Normalized: normalizeQuery(raw.Query),
		InStock:    raw.InStock,
		MinRating:  raw.MinRating,
		SortBy:     raw.SortBy,
		Page:       raw.Page,
		PerPage:    raw.PerPage,
	}

	if cat := strings.TrimSpace(raw.CategoryID); cat != "" {
		req.CategoryID = &cat
	}

	req.MinPrice, req.MaxPrice = raw.MinPrice, raw.MaxPrice
	if req.MinPrice != nil && req.MaxPrice != nil && *req.MinPrice > *req.MaxPrice {
		req.MinPrice, req.MaxPrice = req.MaxPrice, req.MinPrice
	}

	req.Tags = normalizeTags(raw.Tags)

	if req.SortBy == "" {
		req.SortBy = domain.SortRelevance
	}
	if req.Page < 1 {
		req.Page = 1
	}

	return req, nil
}

// CacheKey derives a deterministic key for the request. Two requests that
// normalize to the same parameters share a key regardless of parameter order
// or query casing.
func CacheKey(req domain.SearchRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "q=%s", req.Normalized)
	if req.CategoryID != nil {
		fmt.Fprintf(&b, "|cat=%s", *req.CategoryID)
	}
	if req.MinPrice != nil {
		fmt.Fprintf(&b, "|minp=%d", *req.MinPrice)
	}
	if req.MaxPrice != nil {
		fmt.Fprintf(&b, "|maxp=%d", *req.MaxPrice)
	}
	if req.InStock {
		b.WriteString("|stock=1")
	}
	if req.MinRating > 0 {
		fmt.Fprintf(&b, "|rating=%g", req.MinRating)
	}
	if len(req.Tags) > 0 {
		fmt.Fprintf(&b, "|tags=%s", strings.Join(req.Tags, ","))
	}
	fmt.Fprintf(&b, "|sort=%s|page=%d|per=%d", req.SortBy, req.Page, req.PerPage)

	sum := sha256.Sum256([]byte(b.String()))
	return "search:" + hex.EncodeToString(sum[:16])
}

// normalizeQuery lowercases, trims, and collapses runs of whitespace.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// normalizeTags lowercases, trims, deduplicates, and sorts the tag list so
// equivalent tag sets produce identical requests.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
