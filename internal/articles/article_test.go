package articles

import (
	"testing"
	"time"
)

func TestIsVisibleAt(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name    string
		article Article
		want    bool
	}{
		{"published in the past", Article{Status: StatusPublished, PublishedAt: &past}, true},
		{"published exactly now", Article{Status: StatusPublished, PublishedAt: &now}, true},
		{"published in the future", Article{Status: StatusPublished, PublishedAt: &future}, false},
		{"published without time", Article{Status: StatusPublished}, false},
		{"draft", Article{Status: StatusDraft, PublishedAt: &past}, false},
		{"scheduled", Article{Status: StatusScheduled, PublishedAt: &past}, false},
		{"soft deleted", Article{Status: StatusPublished, PublishedAt: &past, DeletedAt: &now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.article.isVisibleAt(now); got != tt.want {
				t.Errorf("isVisibleAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPublishedUnix(t *testing.T) {
	var a Article
	if a.PublishedUnix() != 0 {
		t.Error("expected zero for unset publish time")
	}
	ts := time.Unix(1000, 0)
	a.PublishedAt = &ts
	if a.PublishedUnix() != 1000 {
		t.Errorf("PublishedUnix() = %d", a.PublishedUnix())
	}
}
