package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/harpy-platform/harpy-core/internal/config"
	"github.com/harpy-platform/harpy-core/internal/model"
)

// StateRepo wraps state.db: current tracks, provider status (batch-flushed
// through the dirty-set engine), and alerts/links/snapshots (written
// transactionally as they occur).
type StateRepo struct {
	db *sql.DB
}

func newStateRepo(db *sql.DB) *StateRepo {
	return &StateRepo{db: db}
}

func encodeMetaJSON(m map[string]string) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeMetaJSON(s string) (map[string]string, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// --- current_tracks / provider_status: batch flush path ---

const upsertCurrentTrackSQL = `INSERT INTO current_tracks
	(id, kind, lat, lon, alt, heading_deg, speed_mps, ts_ms, provider_id, meta_json, h3_index)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		kind        = excluded.kind,
		lat         = excluded.lat,
		lon         = excluded.lon,
		alt         = excluded.alt,
		heading_deg = excluded.heading_deg,
		speed_mps   = excluded.speed_mps,
		ts_ms       = excluded.ts_ms,
		provider_id = excluded.provider_id,
		meta_json   = excluded.meta_json,
		h3_index    = excluded.h3_index`

const deleteCurrentTrackSQL = "DELETE FROM current_tracks WHERE id = ?"

const upsertProviderStatusSQL = `INSERT INTO provider_status
	(provider_id, circuit_state, freshness, last_success_ts_ms, failure_count, error_message)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(provider_id) DO UPDATE SET
		circuit_state      = excluded.circuit_state,
		freshness           = excluded.freshness,
		last_success_ts_ms = excluded.last_success_ts_ms,
		failure_count      = excluded.failure_count,
		error_message      = excluded.error_message`

const deleteProviderStatusSQL = "DELETE FROM provider_status WHERE provider_id = ?"

// FlushOps holds all upsert/delete slices for a single-transaction flush of
// the dirty-tracked tables.
type FlushOps struct {
	UpsertCurrentTracks []model.CurrentTrack
	DeleteCurrentTracks []string
	UpsertProviderStatus []model.ProviderStatus
	DeleteProviderStatus []string
}

// FlushTx executes all upserts and deletes in a single transaction.
func (r *StateRepo) FlushTx(ops FlushOps) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin flush tx: %w", err)
	}
	defer tx.Rollback()

	if err := bulkExecTx(tx, upsertCurrentTrackSQL, len(ops.UpsertCurrentTracks), func(s *sql.Stmt, i int) error {
		t := ops.UpsertCurrentTracks[i]
		metaJSON, err := encodeMetaJSON(t.Meta)
		if err != nil {
			return fmt.Errorf("encode meta: %w", err)
		}
		_, err = s.Exec(t.ID, int(t.Kind), t.Lat, t.Lon, t.Alt, t.HeadingDeg, t.SpeedMps, t.TsMs, t.ProviderID, metaJSON, t.H3Index)
		return err
	}); err != nil {
		return fmt.Errorf("upsert_current_tracks: %w", err)
	}

	if err := bulkExecTx(tx, upsertProviderStatusSQL, len(ops.UpsertProviderStatus), func(s *sql.Stmt, i int) error {
		p := ops.UpsertProviderStatus[i]
		_, err := s.Exec(p.ProviderID, int(p.CircuitState), int(p.Freshness), p.LastSuccessTsMs, p.FailureCount, p.ErrorMessage)
		return err
	}); err != nil {
		return fmt.Errorf("upsert_provider_status: %w", err)
	}

	if err := bulkExecTx(tx, deleteCurrentTrackSQL, len(ops.DeleteCurrentTracks), func(s *sql.Stmt, i int) error {
		_, err := s.Exec(ops.DeleteCurrentTracks[i])
		return err
	}); err != nil {
		return fmt.Errorf("delete_current_tracks: %w", err)
	}

	if err := bulkExecTx(tx, deleteProviderStatusSQL, len(ops.DeleteProviderStatus), func(s *sql.Stmt, i int) error {
		_, err := s.Exec(ops.DeleteProviderStatus[i])
		return err
	}); err != nil {
		return fmt.Errorf("delete_provider_status: %w", err)
	}

	return tx.Commit()
}

// LoadAllCurrentTracks reads every current-track row, used to warm the
// in-memory cache on startup.
func (r *StateRepo) LoadAllCurrentTracks() ([]model.CurrentTrack, error) {
	rows, err := r.db.Query(`SELECT id, kind, lat, lon, alt, heading_deg, speed_mps, ts_ms, provider_id, meta_json, h3_index
		FROM current_tracks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.CurrentTrack
	for rows.Next() {
		var t model.CurrentTrack
		var kind int
		var metaJSON string
		if err := rows.Scan(&t.ID, &kind, &t.Lat, &t.Lon, &t.Alt, &t.HeadingDeg, &t.SpeedMps, &t.TsMs, &t.ProviderID, &metaJSON, &t.H3Index); err != nil {
			return nil, err
		}
		t.Kind = model.TrackKind(kind)
		meta, err := decodeMetaJSON(metaJSON)
		if err != nil {
			return nil, fmt.Errorf("decode meta_json: %w", err)
		}
		t.Meta = meta
		result = append(result, t)
	}
	return result, rows.Err()
}

// GetCurrentTrack reads a single current-track row by id.
func (r *StateRepo) GetCurrentTrack(id string) (model.CurrentTrack, error) {
	var t model.CurrentTrack
	var kind int
	var metaJSON string
	err := r.db.QueryRow(`SELECT id, kind, lat, lon, alt, heading_deg, speed_mps, ts_ms, provider_id, meta_json, h3_index
		FROM current_tracks WHERE id = ?`, id).
		Scan(&t.ID, &kind, &t.Lat, &t.Lon, &t.Alt, &t.HeadingDeg, &t.SpeedMps, &t.TsMs, &t.ProviderID, &metaJSON, &t.H3Index)
	if err == sql.ErrNoRows {
		return model.CurrentTrack{}, ErrNotFound
	}
	if err != nil {
		return model.CurrentTrack{}, err
	}
	t.Kind = model.TrackKind(kind)
	meta, err := decodeMetaJSON(metaJSON)
	if err != nil {
		return model.CurrentTrack{}, fmt.Errorf("decode meta_json: %w", err)
	}
	t.Meta = meta
	return t, nil
}

// LoadAllProviderStatus reads every provider-status row, used to warm the
// health supervisor on startup.
func (r *StateRepo) LoadAllProviderStatus() ([]model.ProviderStatus, error) {
	rows, err := r.db.Query(`SELECT provider_id, circuit_state, freshness, last_success_ts_ms, failure_count, error_message
		FROM provider_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.ProviderStatus
	for rows.Next() {
		var p model.ProviderStatus
		var circuit, freshness int
		if err := rows.Scan(&p.ProviderID, &circuit, &freshness, &p.LastSuccessTsMs, &p.FailureCount, &p.ErrorMessage); err != nil {
			return nil, err
		}
		p.CircuitState = model.CircuitState(circuit)
		p.Freshness = model.Freshness(freshness)
		result = append(result, p)
	}
	return result, rows.Err()
}

// --- alerts / links / alert_evidence: direct transactional writes ---

// InsertAlert writes an alert and its evidence links in a single transaction.
func (r *StateRepo) InsertAlert(a model.Alert) error {
	metaJSON, err := encodeMetaJSON(a.Meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert alert tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO alerts (id, severity, title, description, ts_ms, status, meta_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, int(a.Severity), a.Title, a.Description, a.TsMs, int(a.Status), metaJSON); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}

	for _, linkID := range a.EvidenceLinkIDs {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO alert_evidence (alert_id, link_id) VALUES (?, ?)`, a.ID, linkID); err != nil {
			return fmt.Errorf("insert alert_evidence: %w", err)
		}
	}

	return tx.Commit()
}

// UpdateAlertStatus transitions an alert's lifecycle status.
func (r *StateRepo) UpdateAlertStatus(id string, status model.AlertStatus) error {
	res, err := r.db.Exec("UPDATE alerts SET status = ? WHERE id = ?", int(status), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAlert reads a single alert with its evidence link ids.
func (r *StateRepo) GetAlert(id string) (model.Alert, error) {
	var a model.Alert
	var severity, status int
	var metaJSON string
	err := r.db.QueryRow(`SELECT id, severity, title, description, ts_ms, status, meta_json
		FROM alerts WHERE id = ?`, id).
		Scan(&a.ID, &severity, &a.Title, &a.Description, &a.TsMs, &status, &metaJSON)
	if err == sql.ErrNoRows {
		return model.Alert{}, ErrNotFound
	}
	if err != nil {
		return model.Alert{}, err
	}
	a.Severity = model.AlertSeverity(severity)
	a.Status = model.AlertStatus(status)
	meta, err := decodeMetaJSON(metaJSON)
	if err != nil {
		return model.Alert{}, fmt.Errorf("decode meta_json: %w", err)
	}
	a.Meta = meta

	rows, err := r.db.Query("SELECT link_id FROM alert_evidence WHERE alert_id = ?", id)
	if err != nil {
		return model.Alert{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var linkID string
		if err := rows.Scan(&linkID); err != nil {
			return model.Alert{}, err
		}
		a.EvidenceLinkIDs = append(a.EvidenceLinkIDs, linkID)
	}
	return a, rows.Err()
}

// ListActiveAlerts returns every alert not in RESOLVED status, newest first.
func (r *StateRepo) ListActiveAlerts() ([]model.Alert, error) {
	rows, err := r.db.Query(`SELECT id, severity, title, description, ts_ms, status, meta_json
		FROM alerts WHERE status != ? ORDER BY ts_ms DESC`, int(model.AlertStatusResolved))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Alert
	for rows.Next() {
		var a model.Alert
		var severity, status int
		var metaJSON string
		if err := rows.Scan(&a.ID, &severity, &a.Title, &a.Description, &a.TsMs, &status, &metaJSON); err != nil {
			return nil, err
		}
		a.Severity = model.AlertSeverity(severity)
		a.Status = model.AlertStatus(status)
		meta, err := decodeMetaJSON(metaJSON)
		if err != nil {
			return nil, fmt.Errorf("decode meta_json: %w", err)
		}
		a.Meta = meta
		result = append(result, a)
	}
	return result, rows.Err()
}

// InsertLink writes a single link row.
func (r *StateRepo) InsertLink(l model.Link) error {
	metaJSON, err := encodeMetaJSON(l.Meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	_, err = r.db.Exec(`INSERT INTO links (id, from_type, from_id, rel, to_type, to_id, ts_ms, meta_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.FromType, l.FromID, l.Rel, l.ToType, l.ToID, l.TsMs, metaJSON)
	return err
}

// GetLink reads a single link by id.
func (r *StateRepo) GetLink(id string) (model.Link, error) {
	var l model.Link
	var metaJSON string
	err := r.db.QueryRow(`SELECT id, from_type, from_id, rel, to_type, to_id, ts_ms, meta_json
		FROM links WHERE id = ?`, id).
		Scan(&l.ID, &l.FromType, &l.FromID, &l.Rel, &l.ToType, &l.ToID, &l.TsMs, &metaJSON)
	if err == sql.ErrNoRows {
		return model.Link{}, ErrNotFound
	}
	if err != nil {
		return model.Link{}, err
	}
	meta, err := decodeMetaJSON(metaJSON)
	if err != nil {
		return model.Link{}, fmt.Errorf("decode meta_json: %w", err)
	}
	l.Meta = meta
	return l, nil
}

// --- snapshots / snapshot_tracks: direct transactional writes ---

// InsertSnapshot writes a snapshot catalogue row with its track membership
// rows in a single transaction.
func (r *StateRepo) InsertSnapshot(s model.Snapshot, tracks []model.SnapshotTrack) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert snapshot tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO snapshots
		(snapshot_id, start_ts_ms, end_ts_ms, track_count, storage_path, storage_backend, compressed_size_bytes, viewport_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SnapshotID, s.StartTsMs, s.EndTsMs, s.TrackCount, s.StoragePath, s.StorageBackend, s.CompressedSizeBytes, s.ViewportJSON); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	if err := bulkExecTx(tx, `INSERT INTO snapshot_tracks
		(snapshot_id, track_id, track_kind, first_ts_ms, last_ts_ms, position_count)
		VALUES (?, ?, ?, ?, ?, ?)`, len(tracks), func(stmt *sql.Stmt, i int) error {
		t := tracks[i]
		_, err := stmt.Exec(t.SnapshotID, t.TrackID, int(t.TrackKind), t.FirstTsMs, t.LastTsMs, t.PositionCount)
		return err
	}); err != nil {
		return fmt.Errorf("insert snapshot_tracks: %w", err)
	}

	return tx.Commit()
}

// ListSnapshotsInRange returns catalogue rows overlapping [startTsMs, endTsMs],
// ordered by start time, for DVR seek resolution.
func (r *StateRepo) ListSnapshotsInRange(startTsMs, endTsMs int64) ([]model.Snapshot, error) {
	rows, err := r.db.Query(`SELECT snapshot_id, start_ts_ms, end_ts_ms, track_count, storage_path, storage_backend, compressed_size_bytes, viewport_json
		FROM snapshots WHERE start_ts_ms <= ? AND end_ts_ms >= ? ORDER BY start_ts_ms`, endTsMs, startTsMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Snapshot
	for rows.Next() {
		var s model.Snapshot
		if err := rows.Scan(&s.SnapshotID, &s.StartTsMs, &s.EndTsMs, &s.TrackCount, &s.StoragePath, &s.StorageBackend, &s.CompressedSizeBytes, &s.ViewportJSON); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// --- system_config: persisted RuntimeConfig, swapped via atomic.Pointer by the caller ---

// GetSystemConfig loads the persisted runtime config and its version.
// Returns a nil config and version 0 if nothing has been saved yet.
func (r *StateRepo) GetSystemConfig() (*config.RuntimeConfig, int, error) {
	row := r.db.QueryRow("SELECT config_json, version FROM system_config WHERE id = 1")
	var configJSON string
	var version int
	if err := row.Scan(&configJSON, &version); err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("scan system_config: %w", err)
	}
	cfg := &config.RuntimeConfig{}
	if err := json.Unmarshal([]byte(configJSON), cfg); err != nil {
		return nil, 0, fmt.Errorf("unmarshal system_config: %w", err)
	}
	return cfg, version, nil
}

// SaveSystemConfig persists cfg as the current runtime config, stamping the
// given version and timestamp. Callers bump version themselves; there is no
// optimistic-concurrency check here.
func (r *StateRepo) SaveSystemConfig(cfg *config.RuntimeConfig, version int, updatedAtNs int64) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal system_config: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO system_config (id, config_json, version, updated_at_ns)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			config_json   = excluded.config_json,
			version       = excluded.version,
			updated_at_ns = excluded.updated_at_ns
	`, string(data), version, updatedAtNs)
	return err
}

// bulkExecTx runs a prepared statement within an existing transaction for n rows.
func bulkExecTx(tx *sql.Tx, query string, n int, execFn func(stmt *sql.Stmt, i int) error) error {
	if n == 0 {
		return nil
	}

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := execFn(stmt, i); err != nil {
			return fmt.Errorf("exec row %d: %w", i, err)
		}
	}
	return nil
}
