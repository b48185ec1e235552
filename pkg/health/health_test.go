package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRunAggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name     string
		redis    error
		postgres error
		want     Status
	}{
		{"all up", nil, nil, StatusUp},
		{"optional down", nil, errors.New("pg gone"), StatusDegraded},
		{"critical down", errors.New("redis gone"), nil, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			c.RegisterPing("redis", func(context.Context) error { return tt.redis }, true)
			c.RegisterPing("postgres", func(context.Context) error { return tt.postgres }, false)
			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("status = %s, want %s", report.Status, tt.want)
			}
			if len(report.Components) != 2 {
				t.Errorf("expected 2 components, got %d", len(report.Components))
			}
		})
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.RegisterPing("redis", func(context.Context) error { return errors.New("down") }, true)

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if report.Components["redis"].Message != "down" {
		t.Errorf("unexpected component: %+v", report.Components["redis"])
	}
}
