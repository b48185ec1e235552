// Package indextest starts an index.Store on an in-process miniredis for
// tests in other packages.
package indextest

import (
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/redis"
	"github.com/alicebob/miniredis/v2"
)

const (
	Namespace = "search"
	TTL       = time.Hour
)

// NewStore returns a Store under Namespace and the server behind it. Both
// are closed when the test ends.
func NewStore(t testing.TB) (*index.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(config.RedisConfig{Addr: mr.Addr(), PoolSize: 4})
	if err != nil {
		t.Fatalf("connecting to miniredis: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	store, err := index.New(client, Namespace, TTL)
	if err != nil {
		t.Fatalf("index.New: %v", err)
	}
	return store, mr
}
