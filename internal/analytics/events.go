// Package analytics ships one event per search request to Kafka so query
// volume, zero-result queries and latency can be analysed offline.
package analytics

import "time"

// SearchEvent describes one resolved query.
type SearchEvent struct {
	Kind       string    `json:"kind"`
	Query      string    `json:"query,omitempty"`
	Terms      []string  `json:"terms,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	AuthorID   int64     `json:"author_id,omitempty"`
	Returned   int       `json:"returned"`
	ZeroResult bool      `json:"zero_result"`
	LatencyMs  int64     `json:"latency_ms"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
