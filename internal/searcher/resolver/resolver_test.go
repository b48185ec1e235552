package resolver_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/articles"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/index/indextest"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/resolver"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/resilience"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var searchCfg = config.SearchConfig{DefaultLimit: 50, MaxResults: 200}

type fixture struct {
	store    *index.Store
	mr       *miniredis.Miniredis
	indexer  *indexer.Indexer
	resolver *resolver.Resolver
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, mr := indextest.NewStore(t)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	return &fixture{
		store:    store,
		mr:       mr,
		indexer:  indexer.New(store, searchCfg, m),
		resolver: resolver.New(store, nil, searchCfg, m),
		metrics:  m,
	}
}

func article(id int64, title string, publishedAt int64, views int64, authorID int64, tags ...string) *articles.Article {
	published := time.Unix(publishedAt, 0)
	return &articles.Article{
		ID:          id,
		Title:       title,
		Slug:        "article",
		Status:      articles.StatusPublished,
		PublishedAt: &published,
		AuthorID:    authorID,
		AuthorName:  "Author",
		TagNames:    tags,
		TagSlugs:    tags,
		ViewsCount:  views,
	}
}

func (f *fixture) index(t *testing.T, articles ...*articles.Article) {
	t.Helper()
	for _, a := range articles {
		if !f.indexer.IndexDocument(context.Background(), a) {
			t.Fatalf("indexing article %d failed", a.ID)
		}
	}
}

func ids(results []resolver.Result) []int64 {
	out := make([]int64, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestScenarioIndexSearchRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := article(1, "Laravel Caching Guide", 1000, 50, 7, "laravel")
	a.CommentsCount = 4
	f.index(t, a)

	got := f.resolver.Search(ctx, "laravel", resolver.Filters{}, 10)
	if !reflect.DeepEqual(ids(got), []int64{1}) {
		t.Fatalf("search(laravel) = %v, want [1]", ids(got))
	}
	if got[0].HighlightedTitle != `<mark class="search-highlight">Laravel</mark> Caching Guide` {
		t.Errorf("highlighted title = %q", got[0].HighlightedTitle)
	}
	if !got[0].PublishedAt.Equal(time.Unix(1000, 0)) || got[0].ViewsCount != 50 || got[0].CommentsCount != 4 {
		t.Errorf("typed fields wrong: %+v", got[0])
	}
	if got := f.resolver.SearchByTag(ctx, "laravel", 10); !reflect.DeepEqual(ids(got), []int64{1}) {
		t.Fatalf("searchByTag = %v, want [1]", ids(got))
	}
	if got := f.resolver.SearchByAuthor(ctx, 7, 10); !reflect.DeepEqual(ids(got), []int64{1}) {
		t.Fatalf("searchByAuthor = %v, want [1]", ids(got))
	}

	a.Status = articles.StatusDraft
	f.index(t, a)
	if !f.indexer.RemoveDocument(ctx, 1) {
		t.Fatal("RemoveDocument failed")
	}
	if got := f.resolver.Search(ctx, "laravel", resolver.Filters{}, 10); len(got) != 0 {
		t.Errorf("search after removal = %v", ids(got))
	}
	if got := f.resolver.SearchByTag(ctx, "laravel", 10); len(got) != 0 {
		t.Errorf("searchByTag after removal = %v", ids(got))
	}
	if got := f.resolver.SearchByAuthor(ctx, 7, 10); len(got) != 0 {
		t.Errorf("searchByAuthor after removal = %v", ids(got))
	}
}

func TestMultiTermMatchesOutrankSingleTerm(t *testing.T) {
	f := newFixture(t)
	f.index(t,
		article(1, "Redis internals", 1000, 0, 1),
		article(2, "Redis sorted sets", 1000, 0, 1),
		article(3, "Sorted algorithms", 1500, 0, 1),
	)
	got := f.resolver.Search(context.Background(), "redis sorted", resolver.Filters{}, 10)
	if want := []int64{2, 3, 1}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("ranking = %v, want %v", ids(got), want)
	}
}

func TestViewsBreakEqualRecency(t *testing.T) {
	f := newFixture(t)
	f.index(t,
		article(1, "Kafka consumers", 1000, 10, 1),
		article(2, "Kafka consumers", 1000, 500, 1),
	)
	got := f.resolver.Search(context.Background(), "kafka", resolver.Filters{}, 10)
	if want := []int64{2, 1}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("ranking = %v, want %v", ids(got), want)
	}
}

func TestEmptyQueryReturnsRecent(t *testing.T) {
	f := newFixture(t)
	f.index(t,
		article(1, "Oldest", 1000, 900, 1),
		article(2, "Newest", 3000, 0, 1),
		article(3, "Middle", 2000, 0, 1),
	)
	got := f.resolver.Search(context.Background(), "  ", resolver.Filters{}, 2)
	if want := []int64{2, 3}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("recent = %v, want %v", ids(got), want)
	}
	if got := testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues(resolver.KindRecent, "hit")); got != 1 {
		t.Errorf("recent hit metric = %v", got)
	}
}

func TestMarkupOnlyQueryReturnsRecent(t *testing.T) {
	f := newFixture(t)
	f.index(t,
		article(1, "Older", 1000, 0, 1),
		article(2, "Newer", 2000, 0, 1),
	)
	for _, q := range []string{"<b></b>", "<br/>", "<script>alert(1)</script>", " <p> ! </p> "} {
		got, outcome := f.resolver.SearchWithOutcome(context.Background(), q, resolver.Filters{}, 10)
		if outcome.Kind != resolver.KindRecent {
			t.Errorf("query %q resolved as %q, want %q", q, outcome.Kind, resolver.KindRecent)
		}
		if want := []int64{2, 1}; !reflect.DeepEqual(ids(got), want) {
			t.Errorf("query %q = %v, want %v", q, ids(got), want)
		}
	}
}

func TestQueryWithoutTermsIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.index(t, article(1, "Go", 1000, 0, 1))
	if got := f.resolver.Search(context.Background(), "a", resolver.Filters{}, 10); len(got) != 0 {
		t.Errorf("expected no results for a query with no indexable terms, got %v", ids(got))
	}
}

func TestFilters(t *testing.T) {
	f := newFixture(t)
	f.index(t,
		article(1, "Go channels", 1000, 0, 7, "go", "concurrency"),
		article(2, "Go modules", 2000, 0, 8, "go"),
		article(3, "Go generics", 3000, 0, 7, "go"),
		article(4, "Rust channels", 4000, 0, 7, "rust", "concurrency"),
	)
	ctx := context.Background()
	tests := []struct {
		name    string
		query   string
		filters resolver.Filters
		want    []int64
	}{
		{"tag narrows terms", "channels", resolver.Filters{Tags: []string{"go"}}, []int64{1}},
		{"all tags required", "go", resolver.Filters{Tags: []string{"go", "concurrency"}}, []int64{1}},
		{"author narrows terms", "go", resolver.Filters{AuthorID: 7}, []int64{3, 1}},
		{"filters without query", "", resolver.Filters{Tags: []string{"concurrency"}, AuthorID: 7}, []int64{4, 1}},
		{"author only without query", "", resolver.Filters{AuthorID: 8}, []int64{2}},
		{"unknown tag", "go", resolver.Filters{Tags: []string{"java"}}, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.resolver.Search(ctx, tt.query, tt.filters, 10)
			if !reflect.DeepEqual(ids(got), tt.want) {
				t.Errorf("Search(%q, %+v) = %v, want %v", tt.query, tt.filters, ids(got), tt.want)
			}
		})
	}
}

func TestExpiredSnapshotsAreDropped(t *testing.T) {
	f := newFixture(t)
	f.index(t,
		article(1, "Postgres tuning", 1000, 0, 1),
		article(2, "Postgres indexes", 2000, 0, 1),
	)
	f.mr.Del("search:blogs:2")

	got := f.resolver.Search(context.Background(), "postgres", resolver.Filters{}, 10)
	if !reflect.DeepEqual(ids(got), []int64{1}) {
		t.Errorf("results = %v, want [1]", ids(got))
	}
	if got := testutil.ToFloat64(f.metrics.HydrationMissesTotal); got != 1 {
		t.Errorf("hydration misses = %v, want 1", got)
	}
}

func TestLimitIsClamped(t *testing.T) {
	f := newFixture(t)
	for i := int64(1); i <= 5; i++ {
		f.index(t, article(i, "Clamp test", 1000+i, 0, 1))
	}
	r := resolver.New(f.store, nil, config.SearchConfig{DefaultLimit: 2, MaxResults: 3}, f.metrics)
	ctx := context.Background()
	if got := r.Search(ctx, "clamp", resolver.Filters{}, 0); len(got) != 2 {
		t.Errorf("default limit returned %d results", len(got))
	}
	if got := r.Search(ctx, "clamp", resolver.Filters{}, 100); len(got) != 3 {
		t.Errorf("max limit returned %d results", len(got))
	}
}

func TestStoreFailureDegradesToEmpty(t *testing.T) {
	f := newFixture(t)
	f.index(t, article(1, "Redis outage", 1000, 0, 1, "ops"))
	breaker := resilience.NewCircuitBreaker("redis-read", resilience.CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	r := resolver.New(f.store, breaker, searchCfg, f.metrics)
	f.mr.Close()

	ctx := context.Background()
	if got := r.Search(ctx, "redis", resolver.Filters{}, 10); len(got) != 0 {
		t.Errorf("expected empty results, got %v", ids(got))
	}
	if breaker.GetState() != resilience.StateOpen {
		t.Fatalf("breaker should be open, got %s", breaker.GetState())
	}
	if got := r.SearchByTag(ctx, "ops", 10); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil results, got %v", got)
	}
	if got := testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues(resolver.KindTag, "error")); got != 1 {
		t.Errorf("tag error metric = %v", got)
	}
	if err := breaker.Execute(func() error { return nil }); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("expected open breaker to reject, got %v", err)
	}
}
