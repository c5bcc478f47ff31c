package store

import (
	"testing"
	"time"

	"github.com/harpy-platform/harpy-core/internal/model"
)

func TestRetentionSweep_TickRemovesOldDeltas(t *testing.T) {
	repo := newTestDeltaRepo(t)

	now := time.Now()
	old := model.TrackDelta{ID: "t1", Lat: 1, Lon: 1, TsMs: now.Add(-48 * time.Hour).UnixMilli()}
	fresh := model.TrackDelta{ID: "t1", Lat: 1, Lon: 1, TsMs: now.UnixMilli()}
	if err := repo.AppendBatch([]model.TrackDelta{old, fresh}); err != nil {
		t.Fatal(err)
	}

	sweep, err := NewRetentionSweep(repo, "17 3 * * *", 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	sweep.tick()

	n, err := repo.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("remaining = %d, want 1", n)
	}
}

func TestNewRetentionSweep_InvalidSchedule(t *testing.T) {
	repo := newTestDeltaRepo(t)
	if _, err := NewRetentionSweep(repo, "not a cron expression", time.Hour); err == nil {
		t.Fatal("expected error for invalid cron schedule")
	}
}
