package index

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/redis"
)

// Posting is one member of a sorted set. For counters Score is the delta.
type Posting struct {
	Key    string
	Member string
	Score  float64
}

// Upsert adds member to key or re-scores it, refreshing the key's TTL.
func (s *Store) Upsert(ctx context.Context, key, member string, score float64) error {
	return s.UpsertMany(ctx, []Posting{{Key: key, Member: member, Score: score}})
}

// UpsertMany writes every posting in one round trip.
func (s *Store) UpsertMany(ctx context.Context, postings []Posting) error {
	if err := s.client.ZAddManyWithTTL(ctx, toEntries(postings), s.ttl); err != nil {
		return fmt.Errorf("upserting %d postings: %w", len(postings), err)
	}
	return nil
}

// Remove drops members from key. Absent members are ignored.
func (s *Store) Remove(ctx context.Context, key string, members ...string) error {
	postings := make([]Posting, len(members))
	for i, m := range members {
		postings[i] = Posting{Key: key, Member: m}
	}
	return s.RemoveMany(ctx, postings)
}

func (s *Store) RemoveMany(ctx context.Context, postings []Posting) error {
	if err := s.client.ZRemMany(ctx, toEntries(postings)); err != nil {
		return fmt.Errorf("removing %d postings: %w", len(postings), err)
	}
	return nil
}

// TopByScoreDescending returns up to limit members of key, best first.
func (s *Store) TopByScoreDescending(ctx context.Context, key string, limit int) ([]string, error) {
	scored, err := s.RangeWithScores(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	members := make([]string, len(scored))
	for i, sm := range scored {
		members[i] = sm.Member
	}
	return members, nil
}

// RangeWithScores returns up to limit members of key with their scores,
// best first. A limit of zero or less returns the whole set.
func (s *Store) RangeWithScores(ctx context.Context, key string, limit int) ([]redis.ScoredMember, error) {
	scored, err := s.client.ZRevRangeWithScores(ctx, key, limit)
	if err != nil {
		return nil, fmt.Errorf("reading postings %s: %w", key, err)
	}
	return scored, nil
}

// IncrementCounter adds delta to member's score in key.
func (s *Store) IncrementCounter(ctx context.Context, key, member string, delta float64) error {
	return s.IncrementMany(ctx, []Posting{{Key: key, Member: member, Score: delta}})
}

func (s *Store) IncrementMany(ctx context.Context, postings []Posting) error {
	if err := s.client.ZIncrManyWithTTL(ctx, toEntries(postings), s.ttl); err != nil {
		return fmt.Errorf("incrementing %d counters: %w", len(postings), err)
	}
	return nil
}

// Scores reports which members are present in key. Absent members are
// missing from the map.
func (s *Store) Scores(ctx context.Context, key string, members []string) (map[string]float64, error) {
	scores, err := s.client.ZScores(ctx, key, members)
	if err != nil {
		return nil, fmt.Errorf("checking membership in %s: %w", key, err)
	}
	return scores, nil
}

func toEntries(postings []Posting) []redis.ZEntry {
	entries := make([]redis.ZEntry, len(postings))
	for i, p := range postings {
		entries[i] = redis.ZEntry{Key: p.Key, Member: p.Member, Score: p.Score}
	}
	return entries
}
