package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// persistenceCloser holds DB handles for cleanup. Implements io.Closer.
type persistenceCloser struct {
	stateDB  *sql.DB
	deltasDB *sql.DB
}

func (c *persistenceCloser) Close() error {
	return errors.Join(c.stateDB.Close(), c.deltasDB.Close())
}

// Closer releases the underlying database handles.
type Closer interface {
	Close() error
}

// PersistenceBootstrap initializes both databases, applies migrations, and
// returns a ready-to-use Engine plus a Closer for the DB handles.
//
// Steps:
//  1. Open/create state.db and deltas.db with recommended pragmas.
//  2. Apply migrations on both databases.
//  3. Construct and return Engine.
func PersistenceBootstrap(stateDir, deltasDir string) (engine *Engine, closer Closer, err error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create state dir %s: %w", stateDir, err)
	}
	if err := os.MkdirAll(deltasDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create deltas dir %s: %w", deltasDir, err)
	}

	stateDBPath := filepath.Join(stateDir, "state.db")
	deltasDBPath := filepath.Join(deltasDir, "deltas.db")

	stateDB, err := OpenDB(stateDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open state.db: %w", err)
	}

	deltasDB, err := OpenDB(deltasDBPath)
	if err != nil {
		stateDB.Close()
		return nil, nil, fmt.Errorf("open deltas.db: %w", err)
	}

	if err := MigrateStateDB(stateDB); err != nil {
		stateDB.Close()
		deltasDB.Close()
		return nil, nil, fmt.Errorf("migrate state.db: %w", err)
	}

	if err := MigrateDeltasDB(deltasDB); err != nil {
		stateDB.Close()
		deltasDB.Close()
		return nil, nil, fmt.Errorf("migrate deltas.db: %w", err)
	}

	stateRepo := newStateRepo(stateDB)
	deltaRepo := newDeltaRepo(deltasDB)
	engine = newEngine(stateRepo, deltaRepo)

	return engine, &persistenceCloser{stateDB: stateDB, deltasDB: deltasDB}, nil
}
