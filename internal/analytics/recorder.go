// Package analytics keeps the query-frequency ledger and daily search
// counters. Recording is fire-and-forget: it runs off the request path and
// never surfaces an error to the caller.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	apperrors "github.com/dungeun/e-market-search/pkg/errors"
	"github.com/dungeun/e-market-search/pkg/kafka"

	"github.com/dungeun/e-market-search/internal/domain"
	"github.com/dungeun/e-market-search/internal/kv"
)

const (
	// PopularQueriesKey is the sorted set mapping normalized query text to
	// its lifetime search count.
	PopularQueriesKey = "popularity:queries"

	dailyKeyPrefix = "popularity:daily:"
	dailyTTL       = 30 * 24 * time.Hour
)

var dateFormat = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Publisher is the slice of the event producer the recorder needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// Recorder increments popularity and daily counters for executed searches.
type Recorder struct {
	store     kv.Store
	publisher Publisher
	logger    *slog.Logger
	// now is swappable in tests.
	now func() time.Time
}

// New creates a Recorder. publisher may be nil to disable event emission.
func New(store kv.Store, publisher Publisher, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, publisher: publisher, logger: logger, now: time.Now}
}

// Record notes one executed search. Empty queries (pure filter browses) are
// excluded from the popularity ledger but still count toward daily totals.
// All failures are logged and swallowed.
func (r *Recorder) Record(ctx context.Context, query string, resultCount int, took time.Duration) {
	if query != "" {
		if err := r.store.ZIncrBy(ctx, PopularQueriesKey, query, 1); err != nil {
			r.logger.WarnContext(ctx, "analytics: popularity increment failed",
				slog.String("query", query), slog.String("error", err.Error()))
		}
	}

	dailyKey := dailyKeyPrefix + r.now().UTC().Format("2006-01-02")
	counters := map[string]int64{
		"searches":    1,
		"results":     int64(resultCount),
		"duration_ms": took.Milliseconds(),
	}
	for field, delta := range counters {
		if err := r.store.HIncrBy(ctx, dailyKey, field, delta); err != nil {
			r.logger.WarnContext(ctx, "analytics: daily counter failed",
				slog.String("field", field), slog.String("error", err.Error()))
			return
		}
	}
	if err := r.store.Expire(ctx, dailyKey, dailyTTL); err != nil {
		r.logger.WarnContext(ctx, "analytics: daily expiry failed", slog.String("error", err.Error()))
	}

	r.publishExecuted(ctx, query, resultCount, took)
}

func (r *Recorder) publishExecuted(ctx context.Context, query string, resultCount int, took time.Duration) {
	if r.publisher == nil {
		return
	}

	event, err := kafka.NewEvent("search.executed", query, "search-service", map[string]interface{}{
		"query":        query,
		"result_count": resultCount,
		"duration_ms":  took.Milliseconds(),
	})
	if err != nil {
		r.logger.WarnContext(ctx, "analytics: event build failed", slog.String("error", err.Error()))
		return
	}
	if err := r.publisher.Publish(ctx, kafka.Topic("search", "executed"), event); err != nil {
		r.logger.WarnContext(ctx, "analytics: event publish failed", slog.String("error", err.Error()))
	}
}

// PopularQueries returns the n most-searched queries, most frequent first.
func (r *Recorder) PopularQueries(ctx context.Context, n int) ([]domain.QueryCount, error) {
	members, err := r.store.ZTop(ctx, PopularQueriesKey, n)
	if err != nil {
		return nil, apperrors.Unavailable("popular queries unavailable", err)
	}
	queries := make([]domain.QueryCount, len(members))
	for i, m := range members {
		queries[i] = domain.QueryCount{Text: m.Name, Count: int64(m.Score)}
	}
	return queries, nil
}

// DailyStats returns the counters for one UTC date (YYYY-MM-DD). A day with
// no recorded searches yields zeroed stats, not an error.
func (r *Recorder) DailyStats(ctx context.Context, date string) (domain.DailyStats, error) {
	if !dateFormat.MatchString(date) {
		return domain.DailyStats{}, apperrors.InvalidInput(fmt.Sprintf("invalid date %q, want YYYY-MM-DD", date))
	}

	fields, err := r.store.HGetAll(ctx, dailyKeyPrefix+date)
	if err != nil {
		return domain.DailyStats{}, apperrors.Unavailable("daily stats unavailable", err)
	}

	stats := domain.DailyStats{Date: date}
	stats.Searches = parseCounter(fields["searches"])
	stats.Results = parseCounter(fields["results"])
	stats.DurationMs = parseCounter(fields["duration_ms"])
	return stats, nil
}

func parseCounter(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
