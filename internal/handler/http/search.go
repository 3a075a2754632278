// Package http exposes the search engine over HTTP.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/dungeun/e-market-search/pkg/errors"
	"github.com/dungeun/e-market-search/pkg/httputil"

	"github.com/dungeun/e-market-search/internal/analytics"
	"github.com/dungeun/e-market-search/internal/cache"
	"github.com/dungeun/e-market-search/internal/catalog"
	"github.com/dungeun/e-market-search/internal/planner"
	"github.com/dungeun/e-market-search/internal/ranking"
	"github.com/dungeun/e-market-search/internal/search"
	"github.com/dungeun/e-market-search/internal/suggest"
)

const defaultPopularLimit = 10

// SearchHandler handles the search API surface.
type SearchHandler struct {
	service  *search.Service
	suggest  *suggest.Service
	recorder *analytics.Recorder
	cache    *cache.Manager
	index    *ranking.Index
	reader   catalog.Reader
	logger   *slog.Logger
}

// NewSearchHandler creates a SearchHandler.
func NewSearchHandler(
	service *search.Service,
	suggestSvc *suggest.Service,
	recorder *analytics.Recorder,
	cacheManager *cache.Manager,
	index *ranking.Index,
	reader catalog.Reader,
	logger *slog.Logger,
) *SearchHandler {
	return &SearchHandler{
		service:  service,
		suggest:  suggestSvc,
		recorder: recorder,
		cache:    cacheManager,
		index:    index,
		reader:   reader,
		logger:   logger,
	}
}

// Search handles GET /api/v1/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	raw, err := parseSearchParams(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.service.Search(r.Context(), raw)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Autocomplete handles GET /api/v1/search/autocomplete.
func (h *SearchHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, err := parseOptionalInt(r, "limit", suggest.DefaultLimit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	suggestions, err := h.suggest.Suggest(r.Context(), q, limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"query":       q,
		"suggestions": suggestions,
	}})
}

// PopularQueries handles GET /api/v1/search/popular.
func (h *SearchHandler) PopularQueries(w http.ResponseWriter, r *http.Request) {
	limit, err := parseOptionalInt(r, "limit", defaultPopularLimit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	queries, err := h.recorder.PopularQueries(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"queries": queries,
	}})
}

// DailyStats handles GET /api/v1/search/stats/daily.
func (h *SearchHandler) DailyStats(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("date parameter is required"), h.logger)
		return
	}

	stats, err := h.recorder.DailyStats(r.Context(), date)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: stats})
}

// InvalidateCache handles POST /api/v1/search/cache/invalidate.
func (h *SearchHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = cache.ScopeAll
	}

	removed, err := h.cache.Invalidate(r.Context(), scope)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"scope":        scope,
		"keys_removed": removed,
	}})
}

// RebuildRankingIndex handles POST /api/v1/search/ranking/rebuild. The
// rebuild itself runs detached; the response only acknowledges the request
// or reports an already-running rebuild.
func (h *SearchHandler) RebuildRankingIndex(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	done := make(chan error, 1)

	go func() {
		indexed, err := h.index.Rebuild(ctx, h.reader)
		done <- err
		if err == nil {
			h.logger.InfoContext(ctx, "ranking index rebuilt", slog.Int("products", indexed))
		} else if !errors.Is(err, ranking.ErrRebuildInProgress) {
			h.logger.ErrorContext(ctx, "ranking index rebuild failed", slog.String("error", err.Error()))
		}
	}()

	// The lock is taken synchronously at the start of Rebuild, so a
	// conflicting run reports back before the heavy work begins.
	select {
	case err := <-done:
		if errors.Is(err, ranking.ErrRebuildInProgress) {
			httputil.WriteJSON(w, http.StatusConflict, httputil.Response{
				Error: &httputil.ErrorResponse{
					Code:    "REBUILD_IN_PROGRESS",
					Message: "a ranking index rebuild is already running",
				},
			})
			return
		}
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
	case <-time.After(100 * time.Millisecond):
	}

	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{Data: map[string]any{
		"status": "accepted",
	}})
}

func parseSearchParams(r *http.Request) (planner.RawRequest, error) {
	q := r.URL.Query()

	raw := planner.RawRequest{
		Query:      q.Get("q"),
		CategoryID: q.Get("category_id"),
		SortBy:     q.Get("sort"),
		InStock:    q.Get("in_stock") == "true",
	}

	var err error
	if raw.Page, err = parseOptionalInt(r, "page", 1); err != nil {
		return raw, err
	}
	if raw.PerPage, err = parseOptionalInt(r, "per_page", planner.DefaultPerPage); err != nil {
		return raw, err
	}

	if raw.MinPrice, err = parseOptionalInt64(r, "min_price"); err != nil {
		return raw, err
	}
	if raw.MaxPrice, err = parseOptionalInt64(r, "max_price"); err != nil {
		return raw, err
	}

	if v := q.Get("min_rating"); v != "" {
		rating, parseErr := strconv.ParseFloat(v, 64)
		if parseErr != nil {
			return raw, apperrors.InvalidInput("min_rating must be a number")
		}
		raw.MinRating = rating
	}

	if v := q.Get("tags"); v != "" {
		raw.Tags = strings.Split(v, ",")
	}

	return raw, nil
}

func parseOptionalInt(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperrors.InvalidInput(name + " must be an integer")
	}
	return n, nil
}

func parseOptionalInt64(r *http.Request, name string) (*int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, apperrors.InvalidInput(name + " must be an integer")
	}
	return &n, nil
}
