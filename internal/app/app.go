// Package app wires the search service together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dungeun/e-market-search/pkg/database"
	"github.com/dungeun/e-market-search/pkg/health"
	"github.com/dungeun/e-market-search/pkg/kafka"

	"github.com/dungeun/e-market-search/internal/analytics"
	"github.com/dungeun/e-market-search/internal/cache"
	"github.com/dungeun/e-market-search/internal/catalog"
	"github.com/dungeun/e-market-search/internal/catalog/elastic"
	"github.com/dungeun/e-market-search/internal/catalog/memory"
	catalogpg "github.com/dungeun/e-market-search/internal/catalog/postgres"
	"github.com/dungeun/e-market-search/internal/config"
	"github.com/dungeun/e-market-search/internal/event"
	"github.com/dungeun/e-market-search/internal/facet"
	handlerhttp "github.com/dungeun/e-market-search/internal/handler/http"
	"github.com/dungeun/e-market-search/internal/kv"
	"github.com/dungeun/e-market-search/internal/ranking"
	"github.com/dungeun/e-market-search/internal/search"
	"github.com/dungeun/e-market-search/internal/suggest"
)

// App holds the running service and its owned resources.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	server    *http.Server
	pool      *pgxpool.Pool
	redis     *redis.Client
	producer  *kafka.Producer
	consumers []*kafka.Consumer
}

// New builds the full dependency graph for the configured backends.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}
	healthHandler := health.NewHandler()

	store, err := a.buildStore(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	reader, err := a.buildReader(ctx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	if cfg.Kafka.Enabled {
		a.producer = kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers}, logger)
	}

	cacheManager := cache.New(store, logger)
	scorer := ranking.NewScorer(ranking.Weights{
		Orders:   cfg.Search.WeightOrders,
		Reviews:  cfg.Search.WeightReviews,
		Wishlist: cfg.Search.WeightWishlist,
		Recency:  cfg.Search.WeightRecency,
	})
	index := ranking.NewIndex(store, scorer, logger)

	var publisher analytics.Publisher
	if a.producer != nil {
		publisher = a.producer
	}
	recorder := analytics.New(store, publisher, logger)
	suggestSvc := suggest.New(reader, store, cacheManager, cfg.Search.AutocompleteCacheTTL, logger)

	svc := search.NewService(search.Config{
		Reader:         reader,
		Cache:          cacheManager,
		Aggregator:     facet.New(reader, cfg.Search.FacetTimeout, logger),
		Index:          index,
		Recorder:       recorder,
		Suggester:      suggestSvc,
		SearchTTL:      cfg.Search.CacheTTL,
		CandidateLimit: cfg.Search.CandidateLimit,
		Logger:         logger,
	})

	handler := handlerhttp.NewSearchHandler(svc, suggestSvc, recorder, cacheManager, index, reader, logger)
	router := handlerhttp.NewRouter(handler, healthHandler, logger)

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Kafka.Enabled {
		a.consumers = event.NewProductConsumers(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cacheManager, logger)
	}

	return a, nil
}

// buildStore creates the configured key-value store and registers its
// health check.
func (a *App) buildStore(ctx context.Context, h *health.Handler) (kv.Store, error) {
	switch a.cfg.KVBackend {
	case config.KVRedis:
		client, err := database.NewRedisClient(ctx, a.cfg.RedisDatabaseConfig())
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		store := kv.NewRedisStore(client)
		h.Register("redis", store.Ping)
		return store, nil
	case config.KVMemory:
		return kv.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown kv backend %q", a.cfg.KVBackend)
	}
}

// buildReader creates the configured catalog backend and registers its
// health check.
func (a *App) buildReader(ctx context.Context, h *health.Handler) (catalog.Reader, error) {
	switch a.cfg.CatalogBackend {
	case config.BackendPostgres:
		pgCfg := a.cfg.PostgresDatabaseConfig()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.pool = pool
		h.Register("postgres", pool.Ping)
		return catalogpg.NewReader(pool), nil
	case config.BackendElasticsearch:
		reader, err := elastic.New(a.cfg.Elastic.URL, a.cfg.Elastic.Index, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect elasticsearch: %w", err)
		}
		h.Register("elasticsearch", reader.Ping)
		return reader, nil
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown catalog backend %q", a.cfg.CatalogBackend)
	}
}

// Run starts the HTTP server and any consumers, blocking until the context
// is canceled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server starting", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	for _, c := range a.consumers {
		go func(c *kafka.Consumer) {
			if err := c.Start(ctx); err != nil {
				a.logger.Error("consumer stopped with error", slog.String("error", err.Error()))
			}
		}(c)
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
		return a.Shutdown()
	case err := <-errCh:
		_ = a.Shutdown()
		return fmt.Errorf("http server: %w", err)
	}
}

// Shutdown drains the HTTP server and closes owned connections.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var firstErr error
	if err := a.server.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("http shutdown: %w", err)
	}

	for _, c := range a.consumers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("consumer close: %w", err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("producer close: %w", err)
		}
	}

	a.closeResources()

	a.logger.Info("shutdown complete")
	return firstErr
}

func (a *App) closeResources() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", slog.String("error", err.Error()))
		}
	}
}
