// Package indexer files articles into the search index and detaches them
// again. A document is written in several round trips with no cross-key
// transaction; a failure part way leaves it partially indexed until the
// next re-index or rebuild.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/articles"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/indexer/scorer"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/metrics"
)

// Indexer maintains every posting family for a document.
type Indexer struct {
	store        *index.Store
	keys         index.Keys
	retractStale bool
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func New(store *index.Store, cfg config.SearchConfig, m *metrics.Metrics) *Indexer {
	return &Indexer{
		store:        store,
		keys:         store.Keys(),
		retractStale: cfg.RetractStaleOnUpdate,
		metrics:      m,
		logger:       slog.Default().With("component", "indexer"),
	}
}

// IndexDocument writes the article's snapshot and postings, or removes it
// when it is not publicly visible. Indexing an unchanged article twice
// leaves the same postings and scores. Failures are logged and reported
// as false.
func (ix *Indexer) IndexDocument(ctx context.Context, a *articles.Article) bool {
	if !a.IsPubliclyVisible() {
		return ix.RemoveDocument(ctx, a.ID)
	}
	if err := ix.index(ctx, a); err != nil {
		ix.metrics.IndexErrorsTotal.WithLabelValues("index").Inc()
		ix.logger.Error("indexing article failed", "article_id", a.ID, "error", err)
		return false
	}
	ix.metrics.DocsIndexedTotal.Inc()
	ix.logger.Info("article indexed", "article_id", a.ID)
	return true
}

// RemoveDocument detaches the document from every posting it was filed
// under, as recorded in its snapshot, then deletes the snapshot. Removing
// an id with no snapshot succeeds and does nothing.
func (ix *Indexer) RemoveDocument(ctx context.Context, id int64) bool {
	removed, err := ix.remove(ctx, id)
	if err != nil {
		ix.metrics.IndexErrorsTotal.WithLabelValues("remove").Inc()
		ix.logger.Error("removing article from index failed", "article_id", id, "error", err)
		return false
	}
	if removed {
		ix.metrics.DocsRemovedTotal.Inc()
		ix.logger.Info("article removed from index", "article_id", id)
	}
	return true
}

func (ix *Indexer) index(ctx context.Context, a *articles.Article) error {
	doc := Snapshot(a)

	var previous *index.Document
	if ix.retractStale {
		prev, err := ix.store.GetDocument(ctx, doc.ID)
		switch {
		case err == nil:
			previous = &prev
		case !errors.Is(err, index.ErrDocumentNotFound):
			ix.logger.Warn("previous snapshot unreadable, skipping retraction", "article_id", doc.ID, "error", err)
		}
	}

	if err := ix.store.PutDocument(ctx, doc); err != nil {
		return err
	}

	member := index.FormatID(doc.ID)
	terms := tokenizer.ExtractTerms(doc.IndexableText())
	score := scorer.Score(doc.PublishedAt, doc.ViewsCount, doc.CommentsCount)

	termPostings := make([]index.Posting, 0, len(terms))
	counters := make([]index.Posting, 0, len(terms))
	for _, term := range terms {
		termPostings = append(termPostings, index.Posting{Key: ix.keys.Term(term), Member: member, Score: score})
		counters = append(counters, index.Posting{Key: ix.keys.Suggestions(term), Member: term, Score: 1})
	}
	if err := ix.store.UpsertMany(ctx, termPostings); err != nil {
		return fmt.Errorf("term postings: %w", err)
	}
	if err := ix.store.IncrementMany(ctx, counters); err != nil {
		return fmt.Errorf("suggestion counters: %w", err)
	}

	published := float64(doc.PublishedAt)
	filters := make([]index.Posting, 0, len(a.TagSlugs)+2)
	for _, slug := range doc.Slugs() {
		filters = append(filters, index.Posting{Key: ix.keys.Tag(slug), Member: member, Score: published})
	}
	filters = append(filters,
		index.Posting{Key: ix.keys.Author(doc.AuthorID), Member: member, Score: published},
		index.Posting{Key: ix.keys.Recent(), Member: member, Score: published},
	)
	if err := ix.store.UpsertMany(ctx, filters); err != nil {
		return fmt.Errorf("tag, author and recent postings: %w", err)
	}

	if previous != nil {
		stale := difference(ix.postingsFor(*previous), ix.postingsFor(doc))
		if err := ix.store.RemoveMany(ctx, stale); err != nil {
			return fmt.Errorf("retracting %d stale postings: %w", len(stale), err)
		}
		if len(stale) > 0 {
			ix.logger.Debug("retracted stale postings", "article_id", doc.ID, "count", len(stale))
		}
	}
	return nil
}

func (ix *Indexer) remove(ctx context.Context, id int64) (bool, error) {
	doc, err := ix.store.GetDocument(ctx, id)
	switch {
	case errors.Is(err, index.ErrDocumentNotFound):
		return false, nil
	case errors.Is(err, index.ErrMalformedDocument):
		ix.logger.Warn("snapshot malformed, deleting without detaching postings", "article_id", id, "error", err)
		return true, ix.store.DeleteDocument(ctx, id)
	case err != nil:
		return false, err
	}

	if err := ix.store.RemoveMany(ctx, ix.postingsFor(doc)); err != nil {
		return false, err
	}
	if err := ix.store.DeleteDocument(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

// postingsFor lists every posting a snapshot is filed under, re-deriving
// terms from the stored text exactly as indexing does.
func (ix *Indexer) postingsFor(doc index.Document) []index.Posting {
	member := index.FormatID(doc.ID)
	terms := tokenizer.ExtractTerms(doc.IndexableText())
	slugs := doc.Slugs()
	postings := make([]index.Posting, 0, len(terms)+len(slugs)+2)
	for _, term := range terms {
		postings = append(postings, index.Posting{Key: ix.keys.Term(term), Member: member})
	}
	for _, slug := range slugs {
		postings = append(postings, index.Posting{Key: ix.keys.Tag(slug), Member: member})
	}
	return append(postings,
		index.Posting{Key: ix.keys.Author(doc.AuthorID), Member: member},
		index.Posting{Key: ix.keys.Recent(), Member: member},
	)
}

// difference returns the postings of old whose key is absent from current.
func difference(old, current []index.Posting) []index.Posting {
	keep := make(map[string]struct{}, len(current))
	for _, p := range current {
		keep[p.Key] = struct{}{}
	}
	var stale []index.Posting
	for _, p := range old {
		if _, ok := keep[p.Key]; !ok {
			stale = append(stale, p)
		}
	}
	return stale
}
