// Package consumer applies article lifecycle events from Kafka to the
// search index. Deletions detach the document directly; every other event
// reloads the article from the source of truth and re-indexes it, which
// removes it again if it is no longer publicly visible.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/articles"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/metrics"
)

// Indexer is the write side of the index.
type Indexer interface {
	IndexDocument(ctx context.Context, a *articles.Article) bool
	RemoveDocument(ctx context.Context, id int64) bool
}

// ArticleSource loads the current state of one article.
type ArticleSource interface {
	Get(ctx context.Context, id int64) (*articles.Article, error)
}

// IndexConsumer wraps a Kafka consumer to drive index maintenance.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start consumes until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a MessageHandler for the lifecycle topic. Payloads
// that cannot be decoded are logged and skipped. A failure to load the
// article or write the index is returned; the Kafka consumer retries the
// same message until it applies, so no lifecycle event is skipped.
func HandleMessage(ix Indexer, source ArticleSource, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[articles.LifecycleEvent](value)
		if err != nil || !event.Type.Valid() || event.ArticleID <= 0 {
			m.LifecycleEventsTotal.WithLabelValues(string(event.Type), "invalid").Inc()
			logger.Error("skipping invalid lifecycle event",
				"key", string(key),
				"type", event.Type,
				"article_id", event.ArticleID,
				"error", err,
			)
			return nil
		}

		if err := apply(ctx, ix, source, event); err != nil {
			m.LifecycleEventsTotal.WithLabelValues(string(event.Type), "failed").Inc()
			return err
		}
		m.LifecycleEventsTotal.WithLabelValues(string(event.Type), "applied").Inc()
		logger.Debug("lifecycle event applied", "type", event.Type, "article_id", event.ArticleID)
		return nil
	}
}

func apply(ctx context.Context, ix Indexer, source ArticleSource, event articles.LifecycleEvent) error {
	if event.Type == articles.EventDeleted {
		if !ix.RemoveDocument(ctx, event.ArticleID) {
			return fmt.Errorf("removing article %d", event.ArticleID)
		}
		return nil
	}

	article, err := source.Get(ctx, event.ArticleID)
	if errors.Is(err, articles.ErrArticleNotFound) {
		if !ix.RemoveDocument(ctx, event.ArticleID) {
			return fmt.Errorf("removing vanished article %d", event.ArticleID)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading article %d for %s event: %w", event.ArticleID, event.Type, err)
	}
	if !ix.IndexDocument(ctx, article) {
		return fmt.Errorf("indexing article %d", event.ArticleID)
	}
	return nil
}
