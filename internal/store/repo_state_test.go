package store

import (
	"testing"

	"github.com/harpy-platform/harpy-core/internal/config"
	"github.com/harpy-platform/harpy-core/internal/model"
)

// newTestStateRepo creates a state.db in a temp dir, migrates it, and
// returns a StateRepo.
func newTestStateRepo(t *testing.T) *StateRepo {
	t.Helper()
	dir := t.TempDir()
	db, err := OpenDB(dir + "/state.db")
	if err != nil {
		t.Fatal(err)
	}
	if err := MigrateStateDB(db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return newStateRepo(db)
}

func TestStateRepo_CurrentTrack_FlushAndGet(t *testing.T) {
	repo := newTestStateRepo(t)

	track := model.CurrentTrack{
		ID:         "t1",
		Kind:       model.KindAircraft,
		Lat:        37.7,
		Lon:        -122.4,
		TsMs:       1000,
		ProviderID: "adsb_opensky",
		Meta:       map[string]string{"callsign": "UAL123"},
		H3Index:    42,
	}

	if err := repo.FlushTx(FlushOps{UpsertCurrentTracks: []model.CurrentTrack{track}}); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetCurrentTrack("t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Lat != track.Lat || got.Lon != track.Lon || got.H3Index != track.H3Index {
		t.Fatalf("got %+v, want %+v", got, track)
	}
	if got.Meta["callsign"] != "UAL123" {
		t.Fatalf("meta not round-tripped: %+v", got.Meta)
	}
}

func TestStateRepo_CurrentTrack_NotFound(t *testing.T) {
	repo := newTestStateRepo(t)

	if _, err := repo.GetCurrentTrack("missing"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStateRepo_CurrentTrack_Delete(t *testing.T) {
	repo := newTestStateRepo(t)

	track := model.CurrentTrack{ID: "t1", Lat: 1, Lon: 2, H3Index: 5}
	if err := repo.FlushTx(FlushOps{UpsertCurrentTracks: []model.CurrentTrack{track}}); err != nil {
		t.Fatal(err)
	}
	if err := repo.FlushTx(FlushOps{DeleteCurrentTracks: []string{"t1"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GetCurrentTrack("t1"); err != ErrNotFound {
		t.Fatalf("expected deleted track to be gone, got err=%v", err)
	}
}

func TestStateRepo_ProviderStatus_Upsert(t *testing.T) {
	repo := newTestStateRepo(t)

	status := model.ProviderStatus{
		ProviderID:      "adsb_opensky",
		CircuitState:    model.CircuitClosed,
		Freshness:       model.FreshnessFresh,
		LastSuccessTsMs: 5000,
		FailureCount:    0,
	}
	if err := repo.FlushTx(FlushOps{UpsertProviderStatus: []model.ProviderStatus{status}}); err != nil {
		t.Fatal(err)
	}

	all, err := repo.LoadAllProviderStatus()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].ProviderID != "adsb_opensky" {
		t.Fatalf("got %+v", all)
	}
}

func TestStateRepo_Alert_InsertAndGetWithEvidence(t *testing.T) {
	repo := newTestStateRepo(t)

	if err := repo.InsertLink(model.Link{ID: "l1", FromType: model.EntityTrack, FromID: "t1", Rel: model.RelNear, ToType: model.EntityTrack, ToID: "t2", TsMs: 10}); err != nil {
		t.Fatal(err)
	}

	alert := model.Alert{
		ID:              "a1",
		Severity:        model.SeverityWarning,
		Title:           "convergence detected",
		TsMs:            100,
		Status:          model.AlertStatusActive,
		EvidenceLinkIDs: []string{"l1"},
		Meta:            map[string]string{"rule": "h3_convergence"},
	}
	if err := repo.InsertAlert(alert); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetAlert("a1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != alert.Title || len(got.EvidenceLinkIDs) != 1 || got.EvidenceLinkIDs[0] != "l1" {
		t.Fatalf("got %+v", got)
	}
	if got.Meta["rule"] != "h3_convergence" {
		t.Fatalf("meta not round-tripped: %+v", got.Meta)
	}
}

func TestStateRepo_Alert_UpdateStatus(t *testing.T) {
	repo := newTestStateRepo(t)

	alert := model.Alert{ID: "a1", Title: "x", Status: model.AlertStatusActive, TsMs: 1}
	if err := repo.InsertAlert(alert); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateAlertStatus("a1", model.AlertStatusResolved); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetAlert("a1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.AlertStatusResolved {
		t.Fatalf("status = %v, want resolved", got.Status)
	}
}

func TestStateRepo_Alert_UpdateStatus_NotFound(t *testing.T) {
	repo := newTestStateRepo(t)
	if err := repo.UpdateAlertStatus("missing", model.AlertStatusResolved); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStateRepo_ListActiveAlerts_ExcludesResolved(t *testing.T) {
	repo := newTestStateRepo(t)

	for _, a := range []model.Alert{
		{ID: "a1", Title: "active", Status: model.AlertStatusActive, TsMs: 1},
		{ID: "a2", Title: "resolved", Status: model.AlertStatusResolved, TsMs: 2},
	} {
		if err := repo.InsertAlert(a); err != nil {
			t.Fatal(err)
		}
	}

	active, err := repo.ListActiveAlerts()
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != "a1" {
		t.Fatalf("got %+v", active)
	}
}

func TestStateRepo_Snapshot_InsertAndList(t *testing.T) {
	repo := newTestStateRepo(t)

	snap := model.Snapshot{SnapshotID: "s1", StartTsMs: 0, EndTsMs: 1000, TrackCount: 1}
	tracks := []model.SnapshotTrack{{SnapshotID: "s1", TrackID: "t1", TrackKind: model.KindAircraft, FirstTsMs: 0, LastTsMs: 1000, PositionCount: 5}}

	if err := repo.InsertSnapshot(snap, tracks); err != nil {
		t.Fatal(err)
	}

	got, err := repo.ListSnapshotsInRange(500, 1500)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].SnapshotID != "s1" {
		t.Fatalf("got %+v", got)
	}

	miss, err := repo.ListSnapshotsInRange(2000, 3000)
	if err != nil {
		t.Fatal(err)
	}
	if len(miss) != 0 {
		t.Fatalf("expected no snapshots outside range, got %+v", miss)
	}
}

func TestStateRepo_SystemConfig_RoundTrip(t *testing.T) {
	repo := newTestStateRepo(t)

	cfg, version, err := repo.GetSystemConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg != nil || version != 0 {
		t.Fatalf("expected no persisted config, got %+v version %d", cfg, version)
	}

	want := config.NewDefaultRuntimeConfig()
	want.FusionH3Resolution = 9
	if err := repo.SaveSystemConfig(want, 1, 1000); err != nil {
		t.Fatal(err)
	}

	got, version, err := repo.GetSystemConfig()
	if err != nil {
		t.Fatal(err)
	}
	if version != 1 {
		t.Fatalf("version = %d, want 1", version)
	}
	if got.FusionH3Resolution != 9 {
		t.Fatalf("FusionH3Resolution = %d, want 9", got.FusionH3Resolution)
	}

	want.FusionH3Resolution = 10
	if err := repo.SaveSystemConfig(want, 2, 2000); err != nil {
		t.Fatal(err)
	}
	got, version, err = repo.GetSystemConfig()
	if err != nil {
		t.Fatal(err)
	}
	if version != 2 || got.FusionH3Resolution != 10 {
		t.Fatalf("expected updated config, got %+v version %d", got, version)
	}
}
