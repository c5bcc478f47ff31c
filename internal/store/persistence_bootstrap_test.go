package store

import "testing"

func TestPersistenceBootstrap_CreatesUsableEngine(t *testing.T) {
	dir := t.TempDir()
	engine, closer, err := PersistenceBootstrap(dir+"/state", dir+"/deltas")
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	if engine.DirtyCount() != 0 {
		t.Fatalf("fresh engine should have no dirty entries, got %d", engine.DirtyCount())
	}

	tracks, err := engine.LoadAllCurrentTracks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 0 {
		t.Fatalf("fresh store should have no tracks, got %d", len(tracks))
	}

	n, err := engine.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("fresh delta log should be empty, got %d", n)
	}
}

func TestPersistenceBootstrap_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	_, closer1, err := PersistenceBootstrap(dir+"/state", dir+"/deltas")
	if err != nil {
		t.Fatal(err)
	}
	closer1.Close()

	// Re-opening the same directories should succeed (no-change migration).
	_, closer2, err := PersistenceBootstrap(dir+"/state", dir+"/deltas")
	if err != nil {
		t.Fatal(err)
	}
	closer2.Close()
}
