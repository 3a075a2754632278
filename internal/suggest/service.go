// Package suggest serves prefix-based autocomplete over product names,
// product tags, and the popular-query ledger.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/dungeun/e-market-search/pkg/errors"

	"github.com/dungeun/e-market-search/internal/analytics"
	"github.com/dungeun/e-market-search/internal/cache"
	"github.com/dungeun/e-market-search/internal/catalog"
	"github.com/dungeun/e-market-search/internal/domain"
	"github.com/dungeun/e-market-search/internal/kv"
)

const (
	// MinPrefixLen is the shortest prefix that produces suggestions.
	MinPrefixLen = 2

	// DefaultLimit is the suggestion count when the caller does not specify one.
	DefaultLimit = 10

	// MaxLimit caps the suggestion count.
	MaxLimit = 25

	// candidateFetchSize bounds the product and ledger scans per request.
	candidateFetchSize = 100
)

// Service computes autocomplete suggestions, cached with a short TTL.
type Service struct {
	reader catalog.Reader
	store  kv.Store
	cache  *cache.Manager
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a Service. A non-positive ttl falls back to the autocomplete
// default.
func New(reader catalog.Reader, store kv.Store, cacheManager *cache.Manager, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = cache.DefaultAutocompleteTTL
	}
	return &Service{reader: reader, store: store, cache: cacheManager, ttl: ttl, logger: logger}
}

// Suggest returns up to limit suggestions for the prefix. Prefixes shorter
// than MinPrefixLen yield an empty list without touching any backend.
func (s *Service) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	prefix = strings.Join(strings.Fields(strings.ToLower(prefix)), " ")
	if utf8.RuneCountInString(prefix) < MinPrefixLen {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	key := fmt.Sprintf("autocomplete:%s:%d", prefix, limit)
	suggestions, _, err := cache.GetOrCompute(ctx, s.cache, key, s.ttl, func(ctx context.Context) ([]string, error) {
		return s.compute(ctx, prefix, limit)
	})
	return suggestions, err
}

func (s *Service) compute(ctx context.Context, prefix string, limit int) ([]string, error) {
	candidates := s.ledgerCandidates(ctx, prefix)

	products, err := s.reader.Find(ctx, catalog.Filter{
		Text:   prefix,
		Status: domain.ProductStatusActive,
	}, catalog.OrderNewest, candidateFetchSize, 0)
	if err != nil {
		return nil, apperrors.Unavailable("autocomplete source unavailable", err)
	}

	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), prefix) {
			candidates = append(candidates, p.Name)
		}
		for _, tag := range p.Tags {
			if strings.Contains(strings.ToLower(tag), prefix) {
				candidates = append(candidates, tag)
			}
		}
	}

	return rank(candidates, prefix, limit), nil
}

// ledgerCandidates pulls popular queries containing the prefix. Ledger
// failures degrade to product-only suggestions.
func (s *Service) ledgerCandidates(ctx context.Context, prefix string) []string {
	members, err := s.store.ZTop(ctx, analytics.PopularQueriesKey, candidateFetchSize)
	if err != nil {
		s.logger.WarnContext(ctx, "autocomplete: ledger read failed", slog.String("error", err.Error()))
		return nil
	}

	var out []string
	for _, m := range members {
		if strings.Contains(strings.ToLower(m.Name), prefix) {
			out = append(out, m.Name)
		}
	}
	return out
}

// rank deduplicates candidates case-insensitively (first casing wins) and
// orders them: candidates starting with the prefix before substring-only
// matches, then shorter before longer, then lexically. The ordering is fully
// determined by the candidate set, so a given prefix always yields the same
// list.
func rank(candidates []string, prefix string, limit int) []string {
	seen := make(map[string]struct{}, len(candidates))
	unique := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		lower := strings.ToLower(c)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		unique = append(unique, c)
	}

	sort.Slice(unique, func(i, j int) bool {
		li, lj := strings.ToLower(unique[i]), strings.ToLower(unique[j])
		pi, pj := strings.HasPrefix(li, prefix), strings.HasPrefix(lj, prefix)
		if pi != pj {
			return pi
		}
		if len(li) != len(lj) {
			return len(li) < len(lj)
		}
		return li < lj
	})

	if len(unique) > limit {
		unique = unique[:limit]
	}
	return unique
}
