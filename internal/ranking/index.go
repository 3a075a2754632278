package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/dungeun/e-market-search/internal/catalog"
	"github.com/dungeun/e-market-search/internal/domain"
	"github.com/dungeun/e-market-search/internal/kv"
)

const (
	// IndexKey is the sorted set holding precomputed scores per product ID.
	IndexKey = "ranking_index"

	// rebuildLockKey guards against overlapping rebuild runs.
	rebuildLockKey = "ranking_index:rebuild_lock"

	// rebuildLockTTL bounds how long a crashed rebuild blocks the next one.
	rebuildLockTTL = 10 * time.Minute

	// rebuildPageSize is how many products one rebuild batch loads and scores.
	rebuildPageSize = 500
)

// ErrRebuildInProgress is returned when a rebuild is requested while another
// run holds the lock.
var ErrRebuildInProgress = errors.New("ranking: rebuild already in progress")

// Index reads and rebuilds the precomputed score index. Index reads go
// through a circuit breaker; when the store misbehaves the breaker opens and
// scores are computed on the fly from the products at hand.
type Index struct {
	store   kv.Store
	scorer  *Scorer
	breaker *gobreaker.CircuitBreaker[map[string]float64]
	logger  *slog.Logger
}

// NewIndex creates an Index over the given store.
func NewIndex(store kv.Store, scorer *Scorer, logger *slog.Logger) *Index {
	breaker := gobreaker.NewCircuitBreaker[map[string]float64](gobreaker.Settings{
		Name:        "ranking-index",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return &Index{store: store, scorer: scorer, breaker: breaker, logger: logger}
}

// Scores returns a composite score per product. Indexed scores win; products
// missing from the index, and every product while the breaker is open, are
// scored on the fly.
func (i *Index) Scores(ctx context.Context, products []domain.Product) map[string]float64 {
	scores := make(map[string]float64, len(products))

	ids := make([]string, len(products))
	for n, p := range products {
		ids[n] = p.ID
	}

	indexed, err := i.breaker.Execute(func() (map[string]float64, error) {
		return i.store.ZScores(ctx, IndexKey, ids)
	})
	if err != nil {
		if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
			i.logger.WarnContext(ctx, "ranking index read failed, scoring on the fly",
				slog.String("error", err.Error()))
		}
		indexed = nil
	}

	for _, p := range products {
		if score, ok := indexed[p.ID]; ok {
			scores[p.ID] = score
			continue
		}
		scores[p.ID] = i.scorer.Score(p)
	}
	return scores
}

// Rebuild recomputes every active product's score and rewrites the index.
// Only one rebuild runs at a time; concurrent requests get
// ErrRebuildInProgress.
func (i *Index) Rebuild(ctx context.Context, reader catalog.Reader) (int, error) {
	won, err := i.store.SetNX(ctx, rebuildLockKey, time.Now().UTC().Format(time.RFC3339), rebuildLockTTL)
	if err != nil {
		return 0, fmt.Errorf("ranking rebuild: acquire lock: %w", err)
	}
	if !won {
		return 0, ErrRebuildInProgress
	}
	defer func() {
		if err := i.store.Delete(context.WithoutCancel(ctx), rebuildLockKey); err != nil {
			i.logger.WarnContext(ctx, "ranking rebuild: release lock failed",
				slog.String("error", err.Error()))
		}
	}()

	filter := catalog.Filter{Status: domain.ProductStatusActive}

	indexed := 0
	for offset := 0; ; offset += rebuildPageSize {
		products, err := reader.Find(ctx, filter, catalog.OrderNewest, rebuildPageSize, offset)
		if err != nil {
			return indexed, fmt.Errorf("ranking rebuild: load products: %w", err)
		}
		if len(products) == 0 {
			return indexed, nil
		}

		members := make([]kv.Member, len(products))
		for n, p := range products {
			members[n] = kv.Member{Name: p.ID, Score: i.scorer.Score(p)}
		}
		if err := i.store.ZAdd(ctx, IndexKey, members...); err != nil {
			return indexed, fmt.Errorf("ranking rebuild: write scores: %w", err)
		}
		indexed += len(products)

		if len(products) < rebuildPageSize {
			return indexed, nil
		}
	}
}

// SortByScore orders products by score descending. Ties go to the most
// recently updated product, then to the lower ID so equal orderings stay
// stable across calls.
func SortByScore(products []domain.Product, scores map[string]float64) {
	sort.SliceStable(products, func(a, b int) bool {
		sa, sb := scores[products[a].ID], scores[products[b].ID]
		if sa != sb {
			return sa > sb
		}
		if !products[a].UpdatedAt.Equal(products[b].UpdatedAt) {
			return products[a].UpdatedAt.After(products[b].UpdatedAt)
		}
		return products[a].ID < products[b].ID
	})
}
