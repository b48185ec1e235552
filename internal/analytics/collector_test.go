package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/kafka"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, events)
	return nil
}

func (p *recordingPublisher) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestCollectorFlushesFullBatches(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 100, 2, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	for i := 0; i < 4; i++ {
		c.Track(SearchEvent{Kind: "terms", Query: "redis"})
	}
	deadline := time.Now().Add(2 * time.Second)
	for pub.total() < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	c.Close()

	if got := pub.total(); got != 4 {
		t.Fatalf("published %d events, want 4", got)
	}
	if key := pub.batches[0][0].Key; key != "terms" {
		t.Errorf("event key = %q, want terms", key)
	}
	if kind := pub.batches[0][0].Headers["kind"]; kind != "terms" {
		t.Errorf("kind header = %q, want terms", kind)
	}
}

func TestCollectorFlushesOnShutdown(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 100, 50, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	c.Track(SearchEvent{Kind: "recent"})
	c.Track(SearchEvent{Kind: "tag"})
	cancel()
	c.Close()

	if got := pub.total(); got != 2 {
		t.Fatalf("published %d events on shutdown, want 2", got)
	}
}

func TestTrackDropsWhenFull(t *testing.T) {
	c := NewCollector(&recordingPublisher{}, 1, 10, time.Hour)
	c.Track(SearchEvent{Kind: "terms"})
	c.Track(SearchEvent{Kind: "terms"})
	if got := c.Dropped(); got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
}
