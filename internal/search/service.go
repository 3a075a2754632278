// Package search orchestrates one search request: plan, cache lookup,
// concurrent fetch and facet aggregation, ranking, and analytics.
package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/dungeun/e-market-search/pkg/errors"

	"github.com/dungeun/e-market-search/internal/cache"
	"github.com/dungeun/e-market-search/internal/catalog"
	"github.com/dungeun/e-market-search/internal/domain"
	"github.com/dungeun/e-market-search/internal/facet"
	"github.com/dungeun/e-market-search/internal/planner"
	"github.com/dungeun/e-market-search/internal/ranking"
)

const (
	// DefaultCandidateLimit bounds the result set fetched for relevance
	// ordering. Deeper results than this are not reachable by pagination
	// under relevance sort.
	DefaultCandidateLimit = 500

	zeroResultSuggestions = 5
)

// Recorder receives fire-and-forget analytics for executed searches.
type Recorder interface {
	Record(ctx context.Context, query string, resultCount int, took time.Duration)
}

// Suggester supplies alternative queries for zero-result searches.
type Suggester interface {
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)
}

// Service executes search requests.
type Service struct {
	reader         catalog.Reader
	cache          *cache.Manager
	aggregator     *facet.Aggregator
	index          *ranking.Index
	recorder       Recorder
	suggester      Suggester
	searchTTL      time.Duration
	candidateLimit int
	logger         *slog.Logger
}

// Config carries the service's collaborators. Recorder and Suggester may be
// nil; the corresponding behavior is skipped.
type Config struct {
	Reader         catalog.Reader
	Cache          *cache.Manager
	Aggregator     *facet.Aggregator
	Index          *ranking.Index
	Recorder       Recorder
	Suggester      Suggester
	SearchTTL      time.Duration
	CandidateLimit int
	Logger         *slog.Logger
}

// NewService creates a search Service.
func NewService(cfg Config) *Service {
	if cfg.SearchTTL <= 0 {
		cfg.SearchTTL = cache.DefaultSearchTTL
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = DefaultCandidateLimit
	}
	return &Service{
		reader:         cfg.Reader,
		cache:          cfg.Cache,
		aggregator:     cfg.Aggregator,
		index:          cfg.Index,
		recorder:       cfg.Recorder,
		suggester:      cfg.Suggester,
		searchTTL:      cfg.SearchTTL,
		candidateLimit: cfg.CandidateLimit,
		logger:         cfg.Logger,
	}
}

// Search plans, executes, and caches one search. Identical requests within
// the cache TTL share a result; every request, cached or not, is recorded.
func (s *Service) Search(ctx context.Context, raw planner.RawRequest) (domain.SearchResult, error) {
	start := time.Now()

	req, err := planner.Plan(raw)
	if err != nil {
		searchesTotal.WithLabelValues("invalid").Inc()
		return domain.SearchResult{}, err
	}

	key := planner.CacheKey(req)
	result, hit, err := cache.GetOrCompute(ctx, s.cache, key, s.searchTTL, func(ctx context.Context) (domain.SearchResult, error) {
		return s.execute(ctx, req)
	})
	took := time.Since(start)
	searchDuration.Observe(took.Seconds())

	if err != nil {
		searchesTotal.WithLabelValues("error").Inc()
		return domain.SearchResult{}, err
	}
	if hit {
		cacheEvents.WithLabelValues("hit").Inc()
	} else {
		cacheEvents.WithLabelValues("miss").Inc()
	}
	searchesTotal.WithLabelValues("ok").Inc()

	// Cached hits keep the TookMs recorded when the entry was computed, so
	// identical requests within the TTL return identical results.
	s.record(ctx, req.Normalized, result.Total, took)
	return result, nil
}

// execute runs the uncached path: result fetch and facet aggregation in
// parallel, then ranking and assembly. TookMs is stamped here so the value
// is serialized into the cache entry.
func (s *Service) execute(ctx context.Context, req domain.SearchRequest) (domain.SearchResult, error) {
	start := time.Now()
	filter := toFilter(req)

	var (
		wg       sync.WaitGroup
		products []domain.Product
		total    int
		fetchErr error
		facets   domain.FacetSummary
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		products, total, fetchErr = s.fetch(ctx, req, filter)
	}()
	go func() {
		defer wg.Done()
		facets = s.aggregator.Aggregate(ctx, filter)
	}()
	wg.Wait()

	if fetchErr != nil {
		return domain.SearchResult{}, apperrors.Unavailable("search backend unavailable", fetchErr)
	}
	if facets.Partial {
		facetPartials.Inc()
	}

	result := domain.SearchResult{
		Products: products,
		Total:    total,
		Page:     req.Page,
		PerPage:  req.PerPage,
		Facets:   facets,
	}

	if total == 0 && req.Normalized != "" && s.suggester != nil {
		suggestions, err := s.suggester.Suggest(ctx, req.Normalized, zeroResultSuggestions)
		if err != nil {
			s.logger.WarnContext(ctx, "zero-result suggestions failed", slog.String("error", err.Error()))
		} else {
			result.Suggestions = suggestions
		}
	}

	result.TookMs = time.Since(start).Milliseconds()
	return result, nil
}

// fetch returns the requested page and the total match count. Explicit sorts
// push ordering and pagination down to the reader; relevance sort loads a
// bounded candidate set and orders it by composite score.
func (s *Service) fetch(ctx context.Context, req domain.SearchRequest, filter catalog.Filter) ([]domain.Product, int, error) {
	total, err := s.reader.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	offset := (req.Page - 1) * req.PerPage

	if req.SortBy != domain.SortRelevance {
		products, err := s.reader.Find(ctx, filter, toOrder(req.SortBy), req.PerPage, offset)
		if err != nil {
			return nil, 0, err
		}
		return products, total, nil
	}

	candidates, err := s.reader.Find(ctx, filter, catalog.OrderNewest, s.candidateLimit, 0)
	if err != nil {
		return nil, 0, err
	}

	scores := s.index.Scores(ctx, candidates)
	ranking.SortByScore(candidates, scores)

	if offset >= len(candidates) {
		return []domain.Product{}, total, nil
	}
	end := offset + req.PerPage
	if end > len(candidates) {
		end = len(candidates)
	}
	return candidates[offset:end], total, nil
}

func (s *Service) record(ctx context.Context, query string, total int, took time.Duration) {
	if s.recorder == nil {
		return
	}
	// Detached from the request lifecycle; a canceled request still counts.
	go s.recorder.Record(context.WithoutCancel(ctx), query, total, took)
}

// toFilter maps a validated request onto the catalog predicate set. Only
// active products are searchable.
func toFilter(req domain.SearchRequest) catalog.Filter {
	f := catalog.Filter{
		Text:      req.Normalized,
		MinPrice:  req.MinPrice,
		MaxPrice:  req.MaxPrice,
		InStock:   req.InStock,
		MinRating: req.MinRating,
		Tags:      req.Tags,
		Status:    domain.ProductStatusActive,
	}
	if req.CategoryID != nil {
		f.CategoryID = *req.CategoryID
	}
	return f
}

func toOrder(sortBy string) catalog.Order {
	switch sortBy {
	case domain.SortPriceAsc:
		return catalog.OrderPriceAsc
	case domain.SortPriceDesc:
		return catalog.OrderPriceDesc
	case domain.SortRating:
		return catalog.OrderRating
	default:
		return catalog.OrderNewest
	}
}
