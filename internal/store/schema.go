// Package store implements the persistence layer: SQLite repos, the dirty-set
// flush engine, the current-state cache, the snapshot job and the delta-log
// retention sweep.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// state.db holds current tracks, provider status, alerts, links, alert
// evidence and the snapshot catalogue: low write volume relative to the
// delta log. current_tracks/provider_status are batch-upserted through the
// dirty-set engine; the rest are written transactionally as they occur.
// deltas.db holds the append-only track_deltas log: every normalised delta
// is inserted here regardless of whether it moved the current_tracks row,
// giving the replay/DVR path a full history. Swept by the retention job on
// HARPY_RETENTION_SWEEP_SCHEDULE. Both schemas live under migrations/ and
// are applied by MigrateStateDB/MigrateDeltasDB.

// OpenDB opens (or creates) a SQLite database at path with recommended
// pragmas: WAL journal mode, synchronous=NORMAL, foreign_keys=ON,
// busy_timeout=5000.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}

	// Single-writer: only one connection needed.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q on %s: %w", p, path, err)
		}
	}

	return db, nil
}

// InitDB executes DDL statements on the given database.
func InitDB(db *sql.DB, ddl string) error {
	_, err := db.Exec(ddl)
	return err
}
