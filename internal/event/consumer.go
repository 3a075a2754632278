// Package event reacts to catalog change events by dropping stale cache
// entries. Cached search pages cannot be matched to the products inside
// them, so any product change invalidates the whole search tier; the
// autocomplete tier follows because names and tags feed suggestions.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dungeun/e-market-search/pkg/kafka"

	"github.com/dungeun/e-market-search/internal/cache"
)

// Product lifecycle events this service subscribes to.
var productTopics = []string{
	kafka.Topic("product", "created"),
	kafka.Topic("product", "updated"),
	kafka.Topic("product", "deleted"),
}

// Invalidator is the slice of the cache manager the consumers need.
type Invalidator interface {
	Invalidate(ctx context.Context, scope string) (int, error)
}

// NewProductConsumers builds one consumer per product lifecycle topic, all
// sharing the invalidation handler.
func NewProductConsumers(brokers []string, groupID string, invalidator Invalidator, logger *slog.Logger) []*kafka.Consumer {
	handler := invalidateHandler(invalidator, logger)

	consumers := make([]*kafka.Consumer, 0, len(productTopics))
	for _, topic := range productTopics {
		consumers = append(consumers, kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, handler, logger))
	}
	return consumers
}

func invalidateHandler(invalidator Invalidator, logger *slog.Logger) kafka.Handler {
	return func(ctx context.Context, event *kafka.Event) error {
		removed, err := invalidator.Invalidate(ctx, cache.ScopeAll)
		if err != nil {
			return fmt.Errorf("invalidate on %s: %w", event.EventType, err)
		}

		logger.InfoContext(ctx, "cache invalidated on catalog change",
			slog.String("event_type", event.EventType),
			slog.String("product_id", event.AggregateID),
			slog.Int("keys_removed", removed),
		)
		return nil
	}
}
