package articles

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/kafka"
)

type EventType string

const (
	EventCreated     EventType = "created"
	EventUpdated     EventType = "updated"
	EventDeleted     EventType = "deleted"
	EventRestored    EventType = "restored"
	EventPublished   EventType = "published"
	EventUnpublished EventType = "unpublished"
)

// Valid reports whether t is one of the known lifecycle event types.
func (t EventType) Valid() bool {
	switch t {
	case EventCreated, EventUpdated, EventDeleted, EventRestored, EventPublished, EventUnpublished:
		return true
	}
	return false
}

// LifecycleEvent is the Kafka payload emitted whenever an article mutation
// may have changed its public visibility or indexed content.
type LifecycleEvent struct {
	Type       EventType `json:"type"`
	ArticleID  int64     `json:"article_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher is the subset of kafka.Producer the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Notifier lets the article-owning service enqueue index maintenance
// instead of calling the indexer inline.
type Notifier struct {
	producer Publisher
	logger   *slog.Logger
}

func NewNotifier(producer Publisher) *Notifier {
	return &Notifier{
		producer: producer,
		logger:   slog.Default().With("component", "article-notifier"),
	}
}

// Notify publishes one lifecycle event keyed by article id, so every event
// for an article lands on the same partition in order.
func (n *Notifier) Notify(ctx context.Context, eventType EventType, articleID int64) error {
	if !eventType.Valid() {
		return fmt.Errorf("unknown lifecycle event type %q", eventType)
	}
	event := LifecycleEvent{
		Type:       eventType,
		ArticleID:  articleID,
		OccurredAt: time.Now().UTC(),
	}
	if err := n.producer.Publish(ctx, kafka.Event{
		Key:     strconv.FormatInt(articleID, 10),
		Value:   event,
		Headers: map[string]string{"event_type": string(eventType)},
	}); err != nil {
		return fmt.Errorf("notifying %s for article %d: %w", eventType, articleID, err)
	}
	n.logger.Debug("lifecycle event published", "type", eventType, "article_id", articleID)
	return nil
}
