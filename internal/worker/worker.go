// Package worker turns catalog change events into cache invalidations.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cozyberries/storefront/internal/cache"
	"github.com/cozyberries/storefront/internal/catalog"
	"github.com/cozyberries/storefront/internal/domain"
)

// Invalidator subscribes to catalog change topics and evicts the cache
// entries those changes make stale. It never refetches: the next read
// repopulates through the normal cold path.
type Invalidator struct {
	bus     domain.EventBus
	cache   *cache.Service
	fetcher *catalog.Fetcher

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewInvalidator creates an invalidation worker.
func NewInvalidator(bus domain.EventBus, cacheSvc *cache.Service, fetcher *catalog.Fetcher) *Invalidator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Invalidator{
		bus:     bus,
		cache:   cacheSvc,
		fetcher: fetcher,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to all catalog change topics.
func (w *Invalidator) Start() error {
	topics := map[string]domain.MessageHandler{
		domain.TopicProductChanged:  w.handleProductChanged,
		domain.TopicCategoryChanged: w.handleCategoryChanged,
		domain.TopicRatingChanged:   w.handleRatingChanged,
	}

	for topic, handler := range topics {
		sub, err := w.bus.Subscribe(w.ctx, topic, handler)
		if err != nil {
			w.Stop()
			return err
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	slog.Info("invalidation worker started",
		"topics", len(w.subscriptions),
	)
	return nil
}

// handleProductChanged evicts the product itself, its rating summary, and
// every listing page, since any page could contain the changed product.
func (w *Invalidator) handleProductChanged(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	event, err := parseEvent(msg)
	if err != nil {
		return err
	}

	if event.Slug != "" {
		w.cache.Delete(ctx, domain.DomainProduct, event.Slug)
	}
	if event.ProductID != "" {
		w.cache.Delete(ctx, domain.DomainRatings, "product_"+event.ProductID)
	}
	w.cache.DeletePattern(ctx, cache.ListingPattern())

	slog.Info("product cache invalidated",
		"slug", event.Slug,
		"message_id", msg.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// handleCategoryChanged evicts category lists, filter options, and listing
// pages, and drops the local in-process copies.
func (w *Invalidator) handleCategoryChanged(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	w.cache.Delete(ctx, domain.DomainCategoryList, "images_true")
	w.cache.Delete(ctx, domain.DomainCategoryList, "images_false")
	w.cache.Delete(ctx, domain.DomainCategoryOptions, "all")
	w.cache.DeletePattern(ctx, cache.ListingPattern())

	if w.fetcher != nil {
		w.fetcher.InvalidateLocal()
	}

	slog.Info("category cache invalidated",
		"message_id", msg.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// handleRatingChanged evicts one product's rating summary, or every summary
// when the event does not name a product.
func (w *Invalidator) handleRatingChanged(ctx context.Context, msg *domain.Message) error {
	event, err := parseEvent(msg)
	if err != nil {
		return err
	}

	if event.ProductID != "" {
		w.cache.Delete(ctx, domain.DomainRatings, "product_"+event.ProductID)
	} else {
		w.cache.DeletePattern(ctx, "ratings:*")
	}

	slog.Info("rating cache invalidated",
		"product_id", event.ProductID,
		"message_id", msg.ID,
	)
	return nil
}

func parseEvent(msg *domain.Message) (*domain.ChangeEvent, error) {
	var event domain.ChangeEvent
	if len(msg.Payload) == 0 {
		return &event, nil
	}
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse change event",
			"message_id", msg.ID,
			"topic", msg.Topic,
			"error", err,
		)
		return nil, err
	}
	return &event, nil
}

// Stop unsubscribes from all topics.
func (w *Invalidator) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("invalidation worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Invalidator) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
