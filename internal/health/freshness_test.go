package health

import (
	"testing"
	"time"

	"github.com/harpy-platform/harpy-core/internal/model"
)

func TestFreshnessFromAge_Levels(t *testing.T) {
	tests := []struct {
		name string
		age  time.Duration
		want model.Freshness
	}{
		{"fresh", 30 * time.Second, model.FreshnessFresh},
		{"aging", 120 * time.Second, model.FreshnessAging},
		{"stale", 400 * time.Second, model.FreshnessStale},
		{"critical", 700 * time.Second, model.FreshnessCritical},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FreshnessFromAge(tc.age); got != tc.want {
				t.Errorf("FreshnessFromAge(%v) = %v, want %v", tc.age, got, tc.want)
			}
		})
	}
}

func TestFreshnessFromLastSuccess_NeverSucceeded(t *testing.T) {
	if got := FreshnessFromLastSuccess(0, time.Now()); got != model.FreshnessCritical {
		t.Errorf("got %v, want CRITICAL for zero last-success", got)
	}
}
