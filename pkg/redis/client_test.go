package redis

import (
	"context"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	"github.com/alicebob/miniredis/v2"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(config.RedisConfig{Addr: mr.Addr(), PoolSize: 2})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestZAddManyRefreshesTTL(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	err := c.ZAddManyWithTTL(ctx, []ZEntry{
		{Key: "s:terms:go", Member: "1", Score: 10},
		{Key: "s:terms:go", Member: "2", Score: 20},
		{Key: "s:terms:redis", Member: "1", Score: 10},
	}, time.Minute)
	if err != nil {
		t.Fatalf("ZAddManyWithTTL: %v", err)
	}
	if ttl := mr.TTL("s:terms:go"); ttl != time.Minute {
		t.Errorf("expected ttl 1m, got %v", ttl)
	}

	got, err := c.ZRevRangeWithScores(ctx, "s:terms:go", 0)
	if err != nil {
		t.Fatalf("ZRevRangeWithScores: %v", err)
	}
	if len(got) != 2 || got[0].Member != "2" || got[0].Score != 20 || got[1].Member != "1" {
		t.Errorf("unexpected range: %+v", got)
	}

	limited, err := c.ZRevRangeWithScores(ctx, "s:terms:go", 1)
	if err != nil {
		t.Fatalf("ZRevRangeWithScores: %v", err)
	}
	if len(limited) != 1 || limited[0].Member != "2" {
		t.Errorf("limit not applied: %+v", limited)
	}
}

func TestZIncrManyAndRemove(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	entries := []ZEntry{{Key: "s:suggestions:l", Member: "laravel", Score: 1}}
	for i := 0; i < 3; i++ {
		if err := c.ZIncrManyWithTTL(ctx, entries, time.Minute); err != nil {
			t.Fatalf("ZIncrManyWithTTL: %v", err)
		}
	}
	got, err := c.ZRevRangeWithScores(ctx, "s:suggestions:l", 0)
	if err != nil {
		t.Fatalf("ZRevRangeWithScores: %v", err)
	}
	if len(got) != 1 || got[0].Score != 3 {
		t.Fatalf("expected frequency 3, got %+v", got)
	}

	if err := c.ZRemMany(ctx, []ZEntry{{Key: "s:suggestions:l", Member: "laravel"}, {Key: "s:missing", Member: "x"}}); err != nil {
		t.Fatalf("ZRemMany: %v", err)
	}
	got, _ = c.ZRevRangeWithScores(ctx, "s:suggestions:l", 0)
	if len(got) != 0 {
		t.Errorf("expected empty set after removal, got %+v", got)
	}
}

func TestZScoresSkipsAbsentMembers(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	if err := c.ZAddWithTTL(ctx, "s:tags:go", "4", 400, time.Minute); err != nil {
		t.Fatalf("ZAddWithTTL: %v", err)
	}
	scores, err := c.ZScores(ctx, "s:tags:go", []string{"4", "5"})
	if err != nil {
		t.Fatalf("ZScores: %v", err)
	}
	if len(scores) != 1 || scores["4"] != 400 {
		t.Errorf("unexpected scores: %v", scores)
	}

	scores, err = c.ZScores(ctx, "s:tags:missing", []string{"4"})
	if err != nil {
		t.Fatalf("ZScores on missing key: %v", err)
	}
	if len(scores) != 0 {
		t.Errorf("expected no scores, got %v", scores)
	}
}

func TestHashRoundTrip(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	if err := c.HSetWithTTL(ctx, "s:blogs:1", map[string]string{"id": "1", "title": "Hello"}, 2*time.Minute); err != nil {
		t.Fatalf("HSetWithTTL: %v", err)
	}
	if ttl := mr.TTL("s:blogs:1"); ttl != 2*time.Minute {
		t.Errorf("expected ttl 2m, got %v", ttl)
	}
	many, err := c.HGetAllMany(ctx, []string{"s:blogs:1", "s:blogs:2"})
	if err != nil {
		t.Fatalf("HGetAllMany: %v", err)
	}
	if len(many) != 2 {
		t.Fatalf("expected 2 results, got %d", len(many))
	}
	if many[0]["title"] != "Hello" {
		t.Errorf("unexpected first hash: %v", many[0])
	}
	if len(many[1]) != 0 {
		t.Errorf("expected empty map for missing key, got %v", many[1])
	}
}

func TestFlushByPattern(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	mr.Set("s:blogs:1", "x")
	mr.Set("s:recent", "x")
	mr.Set("other:key", "x")

	deleted, err := c.FlushByPattern(ctx, "s:*")
	if err != nil {
		t.Fatalf("FlushByPattern: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}
	if !mr.Exists("other:key") {
		t.Error("key outside the pattern was deleted")
	}
}

func TestCountByPatternAndZCard(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	mr.Set("s:terms:go", "x")
	mr.Set("s:terms:redis", "x")
	mr.Set("s:tags:go", "x")
	mr.ZAdd("s:recent", 1, "1")
	mr.ZAdd("s:recent", 2, "2")

	n, err := c.CountByPattern(ctx, "s:terms:*")
	if err != nil {
		t.Fatalf("CountByPattern: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 term keys, got %d", n)
	}
	if !mr.Exists("s:terms:go") {
		t.Error("counting removed a key")
	}

	card, err := c.ZCard(ctx, "s:recent")
	if err != nil {
		t.Fatalf("ZCard: %v", err)
	}
	if card != 2 {
		t.Errorf("expected recent cardinality 2, got %d", card)
	}
	if card, err := c.ZCard(ctx, "s:missing"); err != nil || card != 0 {
		t.Errorf("ZCard on missing key = %d, %v; want 0, nil", card, err)
	}
}
