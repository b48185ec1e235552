// Package lifecycle rebuilds the search index from the source of truth and
// clears it. Both are safe to run alongside queries, which simply see a
// partially built index in the meantime.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/articles"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

// Source pages through publicly visible articles by ascending id.
type Source interface {
	ListPublished(ctx context.Context, afterID int64, limit int) ([]*articles.Article, error)
}

type Indexer interface {
	IndexDocument(ctx context.Context, a *articles.Article) bool
}

// Report summarises one rebuild.
type Report struct {
	Indexed     int           `json:"indexed"`
	Failed      int           `json:"failed"`
	Pages       int           `json:"pages"`
	KeysCleared int64         `json:"keys_cleared"`
	Duration    time.Duration `json:"duration"`
	Shared      bool          `json:"shared"`
}

type Options struct {
	BatchSize   int
	PageTimeout time.Duration
	Retry       resilience.RetryConfig
}

type Manager struct {
	store   *index.Store
	indexer Indexer
	source  Source
	opts    Options
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
}

func New(store *index.Store, ix Indexer, source Source, opts Options, m *metrics.Metrics) *Manager {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 30 * time.Second
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}
	}
	return &Manager{
		store:   store,
		indexer: ix,
		source:  source,
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "index-lifecycle"),
	}
}

// Rebuild clears the namespace and re-indexes every visible article. It
// reports whether the run completed.
func (m *Manager) Rebuild(ctx context.Context) bool {
	_, err := m.Run(ctx)
	return err == nil
}

// Run is Rebuild with a report. Concurrent calls share one run; every
// caller receives its result.
func (m *Manager) Run(ctx context.Context) (Report, error) {
	v, err, shared := m.group.Do("rebuild", func() (any, error) {
		return m.rebuild(ctx)
	})
	report, _ := v.(Report)
	report.Shared = shared
	return report, err
}

func (m *Manager) rebuild(ctx context.Context) (Report, error) {
	start := time.Now()
	var report Report
	m.logger.Info("index rebuild started", "batch_size", m.opts.BatchSize)

	finish := func(err error) (Report, error) {
		report.Duration = time.Since(start)
		status := "success"
		if err != nil {
			status = "failed"
			m.logger.Error("index rebuild failed",
				"error", err,
				"indexed", report.Indexed,
				"pages", report.Pages,
			)
		} else {
			m.logger.Info("index rebuild complete",
				"indexed", report.Indexed,
				"failed", report.Failed,
				"pages", report.Pages,
				"duration", report.Duration,
			)
		}
		m.metrics.RebuildsTotal.WithLabelValues(status).Inc()
		m.metrics.RebuildDuration.Observe(report.Duration.Seconds())
		return report, err
	}

	cleared, err := m.store.Clear(ctx)
	report.KeysCleared = cleared
	if err != nil {
		return finish(err)
	}

	var afterID int64
	for {
		page, err := m.fetchPage(ctx, afterID)
		if err != nil {
			return finish(err)
		}
		report.Pages++
		for _, a := range page {
			if m.indexer.IndexDocument(ctx, a) {
				report.Indexed++
				m.metrics.RebuildDocsTotal.Inc()
			} else {
				report.Failed++
			}
			afterID = a.ID
		}
		if len(page) < m.opts.BatchSize {
			return finish(nil)
		}
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
	}
}

func (m *Manager) fetchPage(ctx context.Context, afterID int64) ([]*articles.Article, error) {
	var page []*articles.Article
	name := fmt.Sprintf("rebuild page after %d", afterID)
	err := resilience.Retry(ctx, name, m.opts.Retry, func() error {
		return resilience.WithTimeout(ctx, m.opts.PageTimeout, name, func(ctx context.Context) error {
			var err error
			page, err = m.source.ListPublished(ctx, afterID, m.opts.BatchSize)
			return err
		})
	})
	return page, err
}

// Clear deletes every key under the index namespace.
func (m *Manager) Clear(ctx context.Context) bool {
	if _, err := m.store.Clear(ctx); err != nil {
		m.logger.Error("index clear failed", "error", err)
		return false
	}
	return true
}
