// Package suggest serves autocomplete from the per-first-rune frequency
// buckets the indexer maintains.
package suggest

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/resilience"
)

// MinPrefixLength is the shortest prefix, in runes, that gets suggestions.
const MinPrefixLength = 2

type Suggestion struct {
	Term      string `json:"term"`
	Frequency int64  `json:"frequency"`
}

type Suggester struct {
	store        *index.Store
	breaker      *resilience.CircuitBreaker
	defaultLimit int
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// New returns a Suggester. breaker may be nil.
func New(store *index.Store, breaker *resilience.CircuitBreaker, defaultLimit int, m *metrics.Metrics) *Suggester {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &Suggester{
		store:        store,
		breaker:      breaker,
		defaultLimit: defaultLimit,
		metrics:      m,
		logger:       slog.Default().With("component", "suggester"),
	}
}

// Suggest returns up to limit indexed terms starting with prefix, most
// frequent first. Short prefixes and store failures yield an empty list.
func (s *Suggester) Suggest(ctx context.Context, prefix string, limit int) []Suggestion {
	prefix = tokenizer.Sanitize(prefix)
	if utf8.RuneCountInString(prefix) < MinPrefixLength {
		s.metrics.SuggestionsTotal.WithLabelValues("short_prefix").Inc()
		return []Suggestion{}
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}

	key := s.store.Keys().Suggestions(prefix)
	var bucket []index.Posting
	read := func() error {
		scored, err := s.store.RangeWithScores(ctx, key, 0)
		if err != nil {
			return err
		}
		bucket = make([]index.Posting, len(scored))
		for i, sm := range scored {
			bucket[i] = index.Posting{Key: key, Member: sm.Member, Score: sm.Score}
		}
		return nil
	}
	var err error
	if s.breaker != nil {
		err = s.breaker.Execute(read)
	} else {
		err = read()
	}
	if err != nil {
		s.metrics.SuggestionsTotal.WithLabelValues("error").Inc()
		s.logger.Error("suggestion lookup failed", "prefix", prefix, "error", err)
		return []Suggestion{}
	}

	suggestions := make([]Suggestion, 0, limit)
	for _, p := range bucket {
		if !strings.HasPrefix(p.Member, prefix) {
			continue
		}
		suggestions = append(suggestions, Suggestion{Term: p.Member, Frequency: int64(p.Score)})
		if len(suggestions) == limit {
			break
		}
	}
	outcome := "hit"
	if len(suggestions) == 0 {
		outcome = "empty"
	}
	s.metrics.SuggestionsTotal.WithLabelValues(outcome).Inc()
	return suggestions
}
