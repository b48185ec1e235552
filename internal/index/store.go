// Package index keeps the search index in Redis: sorted-set postings for
// terms, tags, authors, suggestions and recency, plus one hash snapshot per
// indexed article. Every write refreshes the TTL of the key it touches, so an
// unmaintained index expires instead of serving stale results forever.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/redis"
)

// Store reads and writes postings and document snapshots under one
// namespace.
type Store struct {
	client *redis.Client
	keys   Keys
	ttl    time.Duration
	logger *slog.Logger
}

// New validates the namespace and returns a Store over client.
func New(client *redis.Client, namespace string, ttl time.Duration) (*Store, error) {
	if strings.TrimSpace(namespace) == "" {
		return nil, errors.New("index namespace must not be empty")
	}
	if strings.ContainsAny(namespace, "*?[]\\") {
		return nil, fmt.Errorf("index namespace %q contains glob characters", namespace)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("index ttl must be positive, got %v", ttl)
	}
	return &Store{
		client: client,
		keys:   NewKeys(namespace),
		ttl:    ttl,
		logger: slog.Default().With("component", "index-store", "namespace", namespace),
	}, nil
}

func (s *Store) Keys() Keys { return s.keys }

// PutDocument writes the snapshot and refreshes its TTL.
func (s *Store) PutDocument(ctx context.Context, doc Document) error {
	key := s.keys.Document(doc.ID)
	if err := s.client.HSetWithTTL(ctx, key, doc.fields(), s.ttl); err != nil {
		return fmt.Errorf("writing snapshot %d: %w", doc.ID, err)
	}
	return nil
}

// GetDocument returns ErrDocumentNotFound when no snapshot exists and
// ErrMalformedDocument when the stored hash cannot be decoded.
func (s *Store) GetDocument(ctx context.Context, id int64) (Document, error) {
	h, err := s.client.HGetAll(ctx, s.keys.Document(id))
	if err != nil {
		return Document{}, fmt.Errorf("reading snapshot %d: %w", id, err)
	}
	doc, err := decodeDocument(h)
	if err != nil {
		return Document{}, fmt.Errorf("snapshot %d: %w", id, err)
	}
	return doc, nil
}

// GetDocuments hydrates ids in one pipeline, keeping their order. Ids with
// no snapshot or an undecodable one are dropped.
func (s *Store) GetDocuments(ctx context.Context, ids []int64) ([]Document, error) {
	if len(ids) == 0 {
		return []Document{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keys.Document(id)
	}
	hashes, err := s.client.HGetAllMany(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hydrating %d snapshots: %w", len(ids), err)
	}
	docs := make([]Document, 0, len(ids))
	for i, h := range hashes {
		doc, err := decodeDocument(h)
		if err != nil {
			if !errors.Is(err, ErrDocumentNotFound) {
				s.logger.Warn("dropping undecodable snapshot", "article_id", ids[i], "error", err)
			}
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	if err := s.client.Del(ctx, s.keys.Document(id)); err != nil {
		return fmt.Errorf("deleting snapshot %d: %w", id, err)
	}
	return nil
}

// Clear deletes every key under the namespace and returns how many went.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	n, err := s.client.FlushByPattern(ctx, s.keys.Pattern())
	if err != nil {
		return n, fmt.Errorf("clearing namespace %s: %w", s.keys.Namespace(), err)
	}
	s.logger.Info("index namespace cleared", "keys_deleted", n)
	return n, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
