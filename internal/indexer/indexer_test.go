package indexer_test

import (
	"context"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/articles"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/index/indextest"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/indexer/scorer"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/metrics"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func laravelArticle() *articles.Article {
	published := time.Unix(1000, 0)
	return &articles.Article{
		ID:              1,
		UUID:            uuid.MustParse("6f1c0d1e-8c1a-4e53-9d62-3f3f5c0d7a11"),
		Title:           "Laravel Caching Guide",
		Slug:            "laravel-caching-guide",
		Excerpt:         "Speed up every request",
		DescriptionHTML: "<p>Use <strong>Redis</strong> &amp; tags</p>",
		Keywords:        []string{"php", "cache"},
		Status:          articles.StatusPublished,
		PublishedAt:     &published,
		AuthorID:        7,
		AuthorName:      "Ada",
		TagNames:        []string{"Laravel"},
		TagSlugs:        []string{"laravel"},
		ViewsCount:      50,
		CommentsCount:   4,
	}
}

func newIndexer(t *testing.T, cfg config.SearchConfig) (*indexer.Indexer, *index.Store, *miniredis.Miniredis, *metrics.Metrics) {
	t.Helper()
	store, mr := indextest.NewStore(t)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	return indexer.New(store, cfg, m), store, mr, m
}

func members(t *testing.T, store *index.Store, key string) []string {
	t.Helper()
	got, err := store.TopByScoreDescending(context.Background(), key, 0)
	if err != nil {
		t.Fatalf("reading %s: %v", key, err)
	}
	return got
}

func TestSnapshot(t *testing.T) {
	doc := indexer.Snapshot(laravelArticle())
	if doc.Description != "Use Redis & tags" {
		t.Errorf("description = %q", doc.Description)
	}
	if doc.Keywords != "php cache" || doc.Tags != "Laravel" || doc.TagSlugs != "laravel" {
		t.Errorf("joined fields wrong: %+v", doc)
	}
	if doc.PublishedAt != 1000 || doc.UUID != "6f1c0d1e-8c1a-4e53-9d62-3f3f5c0d7a11" {
		t.Errorf("unexpected published_at/uuid: %+v", doc)
	}
}

func TestIndexDocumentWritesEveryFamily(t *testing.T) {
	ix, store, mr, m := newIndexer(t, config.SearchConfig{})
	ctx := context.Background()
	keys := store.Keys()

	if !ix.IndexDocument(ctx, laravelArticle()) {
		t.Fatal("IndexDocument returned false")
	}

	want := scorer.Score(1000, 50, 4)
	for _, term := range []string{"laravel", "caching", "guide", "redis", "tags", "php", "cache"} {
		scores, err := store.Scores(ctx, keys.Term(term), []string{"1"})
		if err != nil {
			t.Fatalf("Scores: %v", err)
		}
		if scores["1"] != want {
			t.Errorf("term %q score = %v, want %v", term, scores["1"], want)
		}
	}
	for _, key := range []string{keys.Tag("laravel"), keys.Author(7), keys.Recent()} {
		scores, err := store.Scores(ctx, key, []string{"1"})
		if err != nil {
			t.Fatalf("Scores: %v", err)
		}
		if scores["1"] != 1000 {
			t.Errorf("%s score = %v, want 1000", key, scores["1"])
		}
	}
	if got, _ := mr.ZScore("search:suggestions:l", "laravel"); got != 1 {
		t.Errorf("suggestion counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DocsIndexedTotal); got != 1 {
		t.Errorf("docs indexed metric = %v", got)
	}
}

func TestIndexDocumentIsIdempotent(t *testing.T) {
	ix, store, _, _ := newIndexer(t, config.SearchConfig{})
	ctx := context.Background()
	a := laravelArticle()

	ix.IndexDocument(ctx, a)
	first, err := store.RangeWithScores(ctx, store.Keys().Term("laravel"), 0)
	if err != nil {
		t.Fatalf("RangeWithScores: %v", err)
	}
	ix.IndexDocument(ctx, a)
	second, err := store.RangeWithScores(ctx, store.Keys().Term("laravel"), 0)
	if err != nil {
		t.Fatalf("RangeWithScores: %v", err)
	}
	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Errorf("postings changed on re-index: %+v then %+v", first, second)
	}
}

func TestRemoveDocumentDetachesEverything(t *testing.T) {
	ix, store, mr, m := newIndexer(t, config.SearchConfig{})
	ctx := context.Background()
	keys := store.Keys()

	ix.IndexDocument(ctx, laravelArticle())
	if !ix.RemoveDocument(ctx, 1) {
		t.Fatal("RemoveDocument returned false")
	}
	for _, key := range []string{keys.Term("laravel"), keys.Term("redis"), keys.Tag("laravel"), keys.Author(7), keys.Recent()} {
		if got := members(t, store, key); len(got) != 0 {
			t.Errorf("%s still holds %v", key, got)
		}
	}
	if mr.Exists("search:blogs:1") {
		t.Error("snapshot not deleted")
	}
	if got := testutil.ToFloat64(m.DocsRemovedTotal); got != 1 {
		t.Errorf("docs removed metric = %v", got)
	}

	if !ix.RemoveDocument(ctx, 1) {
		t.Error("removing an absent document should succeed")
	}
}

func TestRemoveDocumentWithMalformedSnapshot(t *testing.T) {
	ix, _, mr, _ := newIndexer(t, config.SearchConfig{})
	mr.HSet("search:blogs:9", "id", "9", "published_at", "not-a-number")

	if !ix.RemoveDocument(context.Background(), 9) {
		t.Fatal("RemoveDocument returned false")
	}
	if mr.Exists("search:blogs:9") {
		t.Error("malformed snapshot not deleted")
	}
}

func TestInvisibleArticleIsRemoved(t *testing.T) {
	ix, store, _, _ := newIndexer(t, config.SearchConfig{})
	ctx := context.Background()
	a := laravelArticle()
	ix.IndexDocument(ctx, a)

	a.Status = articles.StatusDraft
	if !ix.IndexDocument(ctx, a) {
		t.Fatal("IndexDocument returned false")
	}
	if got := members(t, store, store.Keys().Tag("laravel")); len(got) != 0 {
		t.Errorf("unpublished article still tagged: %v", got)
	}

	future := time.Now().Add(time.Hour)
	a.Status = articles.StatusPublished
	a.PublishedAt = &future
	ix.IndexDocument(ctx, a)
	if got := members(t, store, store.Keys().Recent()); len(got) != 0 {
		t.Errorf("scheduled article indexed: %v", got)
	}
}

func TestUpdateKeepsStalePostingsByDefault(t *testing.T) {
	ix, store, _, _ := newIndexer(t, config.SearchConfig{})
	ctx := context.Background()
	a := laravelArticle()
	ix.IndexDocument(ctx, a)

	a.Title = "Symfony Caching Guide"
	a.TagNames, a.TagSlugs = []string{"Symfony"}, []string{"symfony"}
	ix.IndexDocument(ctx, a)

	if got := members(t, store, store.Keys().Term("laravel")); len(got) != 1 {
		t.Errorf("expected stale laravel posting to remain, got %v", got)
	}
	if got := members(t, store, store.Keys().Tag("laravel")); len(got) != 1 {
		t.Errorf("expected stale tag posting to remain, got %v", got)
	}

	ix.RemoveDocument(ctx, 1)
	if got := members(t, store, store.Keys().Term("symfony")); len(got) != 0 {
		t.Errorf("symfony posting left after removal: %v", got)
	}
}

func TestUpdateRetractsStalePostingsWhenEnabled(t *testing.T) {
	ix, store, _, _ := newIndexer(t, config.SearchConfig{RetractStaleOnUpdate: true})
	ctx := context.Background()
	a := laravelArticle()
	ix.IndexDocument(ctx, a)

	a.Title = "Symfony Caching Guide"
	a.TagNames, a.TagSlugs = []string{"Symfony"}, []string{"symfony"}
	a.AuthorID = 8
	if !ix.IndexDocument(ctx, a) {
		t.Fatal("IndexDocument returned false")
	}

	keys := store.Keys()
	for _, key := range []string{keys.Term("laravel"), keys.Tag("laravel"), keys.Author(7)} {
		if got := members(t, store, key); len(got) != 0 {
			t.Errorf("%s not retracted: %v", key, got)
		}
	}
	for _, key := range []string{keys.Term("symfony"), keys.Term("caching"), keys.Tag("symfony"), keys.Author(8)} {
		if got := members(t, store, key); len(got) != 1 {
			t.Errorf("%s missing current posting: %v", key, got)
		}
	}
}

func TestIndexDocumentReportsStoreFailure(t *testing.T) {
	ix, _, mr, m := newIndexer(t, config.SearchConfig{})
	mr.Close()

	if ix.IndexDocument(context.Background(), laravelArticle()) {
		t.Fatal("expected false with the store down")
	}
	if got := testutil.ToFloat64(m.IndexErrorsTotal.WithLabelValues("index")); got != 1 {
		t.Errorf("index errors metric = %v", got)
	}
}
