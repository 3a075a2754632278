package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeun/e-market-search/pkg/health"

	"github.com/dungeun/e-market-search/internal/analytics"
	"github.com/dungeun/e-market-search/internal/cache"
	"github.com/dungeun/e-market-search/internal/catalog/memory"
	"github.com/dungeun/e-market-search/internal/domain"
	"github.com/dungeun/e-market-search/internal/facet"
	"github.com/dungeun/e-market-search/internal/kv"
	"github.com/dungeun/e-market-search/internal/ranking"
	"github.com/dungeun/e-market-search/internal/search"
	"github.com/dungeun/e-market-search/internal/suggest"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Reader, *kv.MemoryStore) {
	t.Helper()

	reader := memory.New()
	store := kv.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cacheManager := cache.New(store, logger)
	recorder := analytics.New(store, nil, logger)
	index := ranking.NewIndex(store, ranking.NewScorer(ranking.DefaultWeights), logger)
	suggestSvc := suggest.New(reader, store, cacheManager, time.Minute, logger)

	svc := search.NewService(search.Config{
		Reader:     reader,
		Cache:      cacheManager,
		Aggregator: facet.New(reader, time.Second, logger),
		Index:      index,
		Recorder:   recorder,
		Suggester:  suggestSvc,
		SearchTTL:  time.Minute,
		Logger:     logger,
	})

	handler := NewSearchHandler(svc, suggestSvc, recorder, cacheManager, index, reader, logger)
	router := NewRouter(handler, health.NewHandler(), logger)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, reader, store
}

func seedCatalog(reader *memory.Reader) {
	now := time.Now()
	reader.Put(domain.Product{
		ID: "p1", Name: "Blue Cotton Shirt", Price: 2500, Stock: 5,
		Status: domain.ProductStatusActive, CategoryID: "apparel", CategoryName: "Apparel",
		Tags: []string{"cotton"}, OrderCount: 10, CreatedAt: now,
	})
	reader.Put(domain.Product{
		ID: "p2", Name: "Running Shoes", Price: 7900, Stock: 2,
		Status: domain.ProductStatusActive, CategoryID: "footwear", CategoryName: "Footwear",
		Tags: []string{"sport"}, OrderCount: 3, CreatedAt: now,
	})
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func postJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func TestSearchEndpoint(t *testing.T) {
	srv, reader, _ := newTestServer(t)
	seedCatalog(reader)

	var body struct {
		Data domain.SearchResult `json:"data"`
	}
	resp := getJSON(t, srv.URL+"/api/v1/search?q=cotton+shirt", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, body.Data.Total)
	require.Len(t, body.Data.Products, 1)
	assert.Equal(t, "p1", body.Data.Products[0].ID)
	assert.Equal(t, 20, body.Data.PerPage)
}

func TestSearchEndpoint_InvalidPageSize(t *testing.T) {
	srv, reader, _ := newTestServer(t)
	seedCatalog(reader)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	resp := getJSON(t, srv.URL+"/api/v1/search?q=shirt&per_page=0", &body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_INPUT", body.Error.Code)
}

func TestSearchEndpoint_NonNumericPrice(t *testing.T) {
	srv, reader, _ := newTestServer(t)
	seedCatalog(reader)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	resp := getJSON(t, srv.URL+"/api/v1/search?min_price=cheap", &body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_INPUT", body.Error.Code)
}

func TestAutocompleteEndpoint(t *testing.T) {
	srv, reader, _ := newTestServer(t)
	seedCatalog(reader)

	var body struct {
		Data struct {
			Suggestions []string `json:"suggestions"`
		} `json:"data"`
	}
	resp := getJSON(t, srv.URL+"/api/v1/search/autocomplete?q=run", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body.Data.Suggestions, "Running Shoes")
}

func TestPopularQueriesEndpoint(t *testing.T) {
	srv, reader, store := newTestServer(t)
	seedCatalog(reader)

	ctx := t.Context()
	require.NoError(t, store.ZIncrBy(ctx, analytics.PopularQueriesKey, "shirt", 5))
	require.NoError(t, store.ZIncrBy(ctx, analytics.PopularQueriesKey, "shoes", 2))

	var body struct {
		Data struct {
			Queries []domain.QueryCount `json:"queries"`
		} `json:"data"`
	}
	resp := getJSON(t, srv.URL+"/api/v1/search/popular?limit=1", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Data.Queries, 1)
	assert.Equal(t, "shirt", body.Data.Queries[0].Text)
}

func TestDailyStatsEndpoint_RejectsBadDate(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	resp := getJSON(t, srv.URL+"/api/v1/search/stats/daily?date=notadate", &body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvalidateEndpoint(t *testing.T) {
	srv, reader, _ := newTestServer(t)
	seedCatalog(reader)

	// Warm the cache, then drop it.
	var warm struct {
		Data domain.SearchResult `json:"data"`
	}
	getJSON(t, srv.URL+"/api/v1/search?q=shirt", &warm)

	var body struct {
		Data struct {
			Scope       string `json:"scope"`
			KeysRemoved int    `json:"keys_removed"`
		} `json:"data"`
	}
	resp := postJSON(t, srv.URL+"/api/v1/search/cache/invalidate?scope=search", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "search", body.Data.Scope)
	assert.Equal(t, 1, body.Data.KeysRemoved)
}

func TestInvalidateEndpoint_CategoryScope(t *testing.T) {
	srv, _, store := newTestServer(t)

	ctx := t.Context()
	require.NoError(t, store.SetWithTTL(ctx, "search:warm", "{}", time.Minute))
	require.NoError(t, store.SetWithTTL(ctx, "autocomplete:warm", "[]", time.Minute))

	var body struct {
		Data struct {
			Scope       string `json:"scope"`
			KeysRemoved int    `json:"keys_removed"`
		} `json:"data"`
	}
	resp := postJSON(t, srv.URL+"/api/v1/search/cache/invalidate?scope=cat-123", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cat-123", body.Data.Scope)
	assert.Equal(t, 2, body.Data.KeysRemoved)
}

func TestRebuildEndpoint(t *testing.T) {
	srv, reader, store := newTestServer(t)
	seedCatalog(reader)

	var body struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	resp := postJSON(t, srv.URL+"/api/v1/search/ranking/rebuild", &body)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "accepted", body.Data.Status)

	require.Eventually(t, func() bool {
		scores, err := store.ZScores(t.Context(), ranking.IndexKey, []string{"p1", "p2"})
		return err == nil && len(scores) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHealthEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
