package index

import (
	"context"
	"fmt"
)

// Stats counts the keys of each index family. Recent is the number of
// members in the recent list rather than a key count.
type Stats struct {
	Documents   int64 `json:"documents"`
	Terms       int64 `json:"terms"`
	Tags        int64 `json:"tags"`
	Authors     int64 `json:"authors"`
	Suggestions int64 `json:"suggestions"`
	Recent      int64 `json:"recent"`
}

// Stats scans the namespace once per family. It is meant for admin tooling,
// not the request path.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	families := []struct {
		name string
		dst  *int64
	}{
		{"blogs", &st.Documents},
		{"terms", &st.Terms},
		{"tags", &st.Tags},
		{"authors", &st.Authors},
		{"suggestions", &st.Suggestions},
	}
	for _, f := range families {
		n, err := s.client.CountByPattern(ctx, s.keys.FamilyPattern(f.name))
		if err != nil {
			return st, fmt.Errorf("counting %s keys: %w", f.name, err)
		}
		*f.dst = n
	}
	n, err := s.client.ZCard(ctx, s.keys.Recent())
	if err != nil {
		return st, fmt.Errorf("counting recent list: %w", err)
	}
	st.Recent = n
	return st, nil
}
