package domain

import "context"

// Topics for catalog change events. Publishing a change is how the source
// of record tells the cache layer to invalidate.
const (
	TopicProductChanged  = "catalog.product.changed"
	TopicCategoryChanged = "catalog.category.changed"
	TopicRatingChanged   = "catalog.rating.changed"
)

// ChangeEvent is the payload of a catalog change message.
type ChangeEvent struct {
	Slug      string `json:"slug,omitempty"`
	ProductID string `json:"productId,omitempty"`
}

// Message is the envelope carried by the event bus.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// MessageHandler processes a message from a subscription.
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscription is a live topic subscription.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBus distributes catalog change events to cache invalidation workers.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}
