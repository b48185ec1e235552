// Package resolver answers queries from the index alone: ranked multi-term
// search with optional tag and author filters, direct tag and author
// listings, and the most-recent fallback for an empty query. It never
// touches the source of truth; a miss or a store failure is an empty
// result, which callers treat as a cue to fall back.
package resolver

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/highlight"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/resilience"
)

// Query kinds, used as metric labels and analytics event kinds.
const (
	KindTerms   = "terms"
	KindRecent  = "recent"
	KindFilters = "filters"
	KindTag     = "tag"
	KindAuthor  = "author"
)

// candidateFactor is how many ids per requested result are read from each
// term posting, leaving room for aggregation, filtering and expired
// snapshots.
const candidateFactor = 3

// Filters restricts a search. A document must carry every tag and, when
// AuthorID is set, be written by that author.
type Filters struct {
	Tags     []string
	AuthorID int64
}

func (f Filters) Empty() bool {
	return len(f.Tags) == 0 && f.AuthorID == 0
}

// Outcome summarises a resolved query for analytics.
type Outcome struct {
	Kind     string
	Terms    []string
	Returned int
	Latency  time.Duration
}

type Resolver struct {
	store        *index.Store
	keys         index.Keys
	breaker      *resilience.CircuitBreaker
	defaultLimit int
	maxResults   int
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// New returns a Resolver. breaker guards every index read and may be nil.
func New(store *index.Store, breaker *resilience.CircuitBreaker, cfg config.SearchConfig, m *metrics.Metrics) *Resolver {
	r := &Resolver{
		store:        store,
		keys:         store.Keys(),
		breaker:      breaker,
		defaultLimit: cfg.DefaultLimit,
		maxResults:   cfg.MaxResults,
		metrics:      m,
		logger:       slog.Default().With("component", "query-resolver"),
	}
	if r.defaultLimit <= 0 {
		r.defaultLimit = 50
	}
	if r.maxResults < r.defaultLimit {
		r.maxResults = r.defaultLimit
	}
	return r
}

// Search resolves a free-text query. Documents matching more query terms
// accumulate higher aggregate scores; ties go to the lower id.
func (r *Resolver) Search(ctx context.Context, query string, filters Filters, limit int) []Result {
	results, _ := r.SearchWithOutcome(ctx, query, filters, limit)
	return results
}

// SearchWithOutcome is Search plus a summary of how the query was served.
func (r *Resolver) SearchWithOutcome(ctx context.Context, query string, filters Filters, limit int) ([]Result, Outcome) {
	start := time.Now()
	limit = r.clampLimit(limit)
	filters = normalizeFilters(filters)
	terms := tokenizer.ExtractTerms(query)
	blank := tokenizer.Sanitize(tokenizer.StripTags(query)) == ""

	var (
		kind string
		ids  []int64
		err  error
	)
	switch {
	case blank && filters.Empty():
		kind = KindRecent
		ids, err = r.topIDs(ctx, r.keys.Recent(), limit)
	case blank:
		kind = KindFilters
		ids, err = r.filterOnly(ctx, filters, limit*candidateFactor)
	case len(terms) == 0:
		kind = KindTerms
	default:
		kind = KindTerms
		ids, err = r.rankTerms(ctx, terms, filters, limit)
	}

	var results []Result
	if err == nil {
		results, err = r.hydrate(ctx, ids, limit, highlight.Compile(query))
	}
	if err != nil {
		r.logger.Error("search failed", "kind", kind, "query", query, "error", err)
		results = []Result{}
	}
	outcome := Outcome{Kind: kind, Terms: terms, Returned: len(results), Latency: time.Since(start)}
	r.observe(outcome, err)
	r.logger.Debug("query resolved",
		"kind", kind,
		"query", query,
		"terms", terms,
		"tags", filters.Tags,
		"author_id", filters.AuthorID,
		"results", len(results),
		"latency", outcome.Latency,
	)
	return results, outcome
}

// SearchByTag lists up to limit documents carrying the tag, newest first.
func (r *Resolver) SearchByTag(ctx context.Context, slug string, limit int) []Result {
	return r.listing(ctx, KindTag, r.keys.Tag(strings.TrimSpace(slug)), limit)
}

// SearchByAuthor lists up to limit documents by the author, newest first.
func (r *Resolver) SearchByAuthor(ctx context.Context, authorID int64, limit int) []Result {
	return r.listing(ctx, KindAuthor, r.keys.Author(authorID), limit)
}

func (r *Resolver) listing(ctx context.Context, kind, key string, limit int) []Result {
	start := time.Now()
	limit = r.clampLimit(limit)
	ids, err := r.topIDs(ctx, key, limit)
	var results []Result
	if err == nil {
		results, err = r.hydrate(ctx, ids, limit, nil)
	}
	if err != nil {
		r.logger.Error("listing failed", "kind", kind, "key", key, "error", err)
		results = []Result{}
	}
	r.observe(Outcome{Kind: kind, Returned: len(results), Latency: time.Since(start)}, err)
	return results
}

type scoredID struct {
	id    int64
	score float64
}

// rankTerms sums per-term scores, applies filters and returns at most
// limit*candidateFactor ids by aggregate score.
func (r *Resolver) rankTerms(ctx context.Context, terms []string, filters Filters, limit int) ([]int64, error) {
	perTerm := limit * candidateFactor
	totals := make(map[int64]float64)
	for _, term := range terms {
		postings, err := r.rangeWithScores(ctx, r.keys.Term(term), perTerm)
		if err != nil {
			return nil, err
		}
		for _, p := range postings {
			id, err := index.ParseID(p.Member)
			if err != nil {
				continue
			}
			totals[id] += p.Score
		}
	}

	ranked := make([]scoredID, 0, len(totals))
	for id, score := range totals {
		ranked = append(ranked, scoredID{id: id, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})

	ids := make([]int64, len(ranked))
	for i, s := range ranked {
		ids[i] = s.id
	}
	if !filters.Empty() {
		var err error
		if ids, err = r.keepMatching(ctx, ids, r.filterKeys(filters)); err != nil {
			return nil, err
		}
	}
	if len(ids) > perTerm {
		ids = ids[:perTerm]
	}
	return ids, nil
}

// filterOnly walks the first filter posting newest first and keeps the ids
// present in every other filter posting.
func (r *Resolver) filterOnly(ctx context.Context, filters Filters, max int) ([]int64, error) {
	keys := r.filterKeys(filters)
	ids, err := r.topIDs(ctx, keys[0], 0)
	if err != nil {
		return nil, err
	}
	if ids, err = r.keepMatching(ctx, ids, keys[1:]); err != nil {
		return nil, err
	}
	if len(ids) > max {
		ids = ids[:max]
	}
	return ids, nil
}

func (r *Resolver) filterKeys(filters Filters) []string {
	keys := make([]string, 0, len(filters.Tags)+1)
	for _, slug := range filters.Tags {
		keys = append(keys, r.keys.Tag(slug))
	}
	if filters.AuthorID != 0 {
		keys = append(keys, r.keys.Author(filters.AuthorID))
	}
	return keys
}

// keepMatching filters ids, preserving order, to those present in every
// posting in keys.
func (r *Resolver) keepMatching(ctx context.Context, ids []int64, keys []string) ([]int64, error) {
	for _, key := range keys {
		if len(ids) == 0 {
			return ids, nil
		}
		members := make([]string, len(ids))
		for i, id := range ids {
			members[i] = index.FormatID(id)
		}
		var present map[string]float64
		err := r.read(func() error {
			var err error
			present, err = r.store.Scores(ctx, key, members)
			return err
		})
		if err != nil {
			return nil, err
		}
		kept := make([]int64, 0, len(ids))
		for i, id := range ids {
			if _, ok := present[members[i]]; ok {
				kept = append(kept, id)
			}
		}
		ids = kept
	}
	return ids, nil
}

func (r *Resolver) topIDs(ctx context.Context, key string, limit int) ([]int64, error) {
	postings, err := r.rangeWithScores(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(postings))
	for _, p := range postings {
		if id, err := index.ParseID(p.Member); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *Resolver) rangeWithScores(ctx context.Context, key string, limit int) ([]index.Posting, error) {
	var postings []index.Posting
	err := r.read(func() error {
		scored, err := r.store.RangeWithScores(ctx, key, limit)
		if err != nil {
			return err
		}
		postings = make([]index.Posting, len(scored))
		for i, sm := range scored {
			postings[i] = index.Posting{Key: key, Member: sm.Member, Score: sm.Score}
		}
		return nil
	})
	return postings, err
}

// hydrate loads snapshots for ids in order and returns the first limit
// that still exist.
func (r *Resolver) hydrate(ctx context.Context, ids []int64, limit int, marker *regexp.Regexp) ([]Result, error) {
	if len(ids) == 0 {
		return []Result{}, nil
	}
	var docs []index.Document
	err := r.read(func() error {
		var err error
		docs, err = r.store.GetDocuments(ctx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	if misses := len(ids) - len(docs); misses > 0 {
		r.metrics.HydrationMissesTotal.Add(float64(misses))
	}
	if len(docs) > limit {
		docs = docs[:limit]
	}
	results := make([]Result, len(docs))
	for i, doc := range docs {
		results[i] = newResult(doc, marker)
	}
	return results, nil
}

func (r *Resolver) read(fn func() error) error {
	if r.breaker == nil {
		return fn()
	}
	return r.breaker.Execute(fn)
}

func (r *Resolver) clampLimit(limit int) int {
	if limit <= 0 {
		return r.defaultLimit
	}
	if limit > r.maxResults {
		return r.maxResults
	}
	return limit
}

func (r *Resolver) observe(o Outcome, err error) {
	outcome := "hit"
	switch {
	case err != nil:
		outcome = "error"
	case o.Returned == 0:
		outcome = "zero_result"
	}
	r.metrics.SearchQueriesTotal.WithLabelValues(o.Kind, outcome).Inc()
	r.metrics.SearchLatency.WithLabelValues(o.Kind).Observe(o.Latency.Seconds())
	r.metrics.SearchResultsCount.WithLabelValues(o.Kind).Observe(float64(o.Returned))
}

func normalizeFilters(f Filters) Filters {
	seen := make(map[string]struct{}, len(f.Tags))
	tags := make([]string, 0, len(f.Tags))
	for _, t := range f.Tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	if f.AuthorID < 0 {
		f.AuthorID = 0
	}
	return Filters{Tags: tags, AuthorID: f.AuthorID}
}
