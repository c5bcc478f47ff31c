package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/harpy-platform/harpy-core/internal/model"
)

// DeltaRepo wraps deltas.db: the append-only observation log. Every accepted
// delta is appended directly from the ingest path; there is no dirty-set
// collapsing since each row is a distinct historical observation.
type DeltaRepo struct {
	db *sql.DB
}

func newDeltaRepo(db *sql.DB) *DeltaRepo {
	return &DeltaRepo{db: db}
}

const insertTrackDeltaSQL = `INSERT INTO track_deltas
	(track_id, kind, lat, lon, alt, heading_deg, speed_mps, ts_ms, provider_id, meta_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// AppendBatch inserts a batch of normalised deltas in a single transaction.
func (r *DeltaRepo) AppendBatch(deltas []model.TrackDelta) error {
	if len(deltas) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin append batch tx: %w", err)
	}
	defer tx.Rollback()

	if err := bulkExecTx(tx, insertTrackDeltaSQL, len(deltas), func(stmt *sql.Stmt, i int) error {
		d := deltas[i]
		metaJSON, err := encodeMetaJSON(d.Meta)
		if err != nil {
			return fmt.Errorf("encode meta: %w", err)
		}
		_, err = stmt.Exec(d.ID, int(d.Kind), d.Lat, d.Lon, d.Alt, d.HeadingDeg, d.SpeedMps, d.TsMs, d.ProviderID, metaJSON)
		return err
	}); err != nil {
		return fmt.Errorf("append_track_deltas: %w", err)
	}

	return tx.Commit()
}

// QueryRange returns every delta for trackID within [startTsMs, endTsMs],
// ordered by timestamp. An empty trackID matches all tracks. The playback
// engine reads through QueryRangeFiltered instead.
func (r *DeltaRepo) QueryRange(trackID string, startTsMs, endTsMs int64) ([]model.TrackDelta, error) {
	query := `SELECT track_id, kind, lat, lon, alt, heading_deg, speed_mps, ts_ms, provider_id, meta_json
		FROM track_deltas WHERE ts_ms >= ? AND ts_ms <= ?`
	args := []any{startTsMs, endTsMs}
	if trackID != "" {
		query += " AND track_id = ?"
		args = append(args, trackID)
	}
	query += " ORDER BY ts_ms"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.TrackDelta
	for rows.Next() {
		var d model.TrackDelta
		var kind int
		var metaJSON string
		if err := rows.Scan(&d.ID, &kind, &d.Lat, &d.Lon, &d.Alt, &d.HeadingDeg, &d.SpeedMps, &d.TsMs, &d.ProviderID, &metaJSON); err != nil {
			return nil, err
		}
		d.Kind = model.TrackKind(kind)
		meta, err := decodeMetaJSON(metaJSON)
		if err != nil {
			return nil, fmt.Errorf("decode meta_json: %w", err)
		}
		d.Meta = meta
		result = append(result, d)
	}
	return result, rows.Err()
}

// RangeFilter narrows QueryRangeFiltered/CountRange to a viewport and a set
// of track kinds; a nil Viewport or empty Kinds skips that predicate.
type RangeFilter struct {
	Viewport *model.Viewport
	Kinds    []model.TrackKind
}

func (f RangeFilter) apply(qb *strings.Builder, args *[]any) {
	if f.Viewport != nil {
		v := *f.Viewport
		minLat, maxLat := v.MinLat, v.MaxLat
		if minLat > maxLat {
			minLat, maxLat = maxLat, minLat
		}
		qb.WriteString(" AND lat >= ? AND lat <= ?")
		*args = append(*args, minLat, maxLat)
		if v.MinLon > v.MaxLon {
			qb.WriteString(" AND (lon >= ? OR lon <= ?)")
			*args = append(*args, v.MinLon, v.MaxLon)
		} else {
			qb.WriteString(" AND lon >= ? AND lon <= ?")
			*args = append(*args, v.MinLon, v.MaxLon)
		}
	}
	if len(f.Kinds) > 0 {
		qb.WriteString(" AND kind IN (")
		for i, k := range f.Kinds {
			if i > 0 {
				qb.WriteString(",")
			}
			qb.WriteString("?")
			*args = append(*args, int(k))
		}
		qb.WriteString(")")
	}
}

// QueryRangeFiltered returns deltas with ts_ms in (startTsMs, endTsMs],
// ordered by timestamp, narrowed by filter and capped at limit rows. Used by
// the playback engine, which polls disjoint windows every tick.
func (r *DeltaRepo) QueryRangeFiltered(startTsMs, endTsMs int64, filter RangeFilter, limit int) ([]model.TrackDelta, error) {
	var qb strings.Builder
	qb.WriteString(`SELECT track_id, kind, lat, lon, alt, heading_deg, speed_mps, ts_ms, provider_id, meta_json
		FROM track_deltas WHERE ts_ms > ? AND ts_ms <= ?`)
	args := []any{startTsMs, endTsMs}
	filter.apply(&qb, &args)
	qb.WriteString(" ORDER BY ts_ms LIMIT ?")
	args = append(args, limit)

	rows, err := r.db.Query(qb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.TrackDelta
	for rows.Next() {
		var d model.TrackDelta
		var kind int
		var metaJSON string
		if err := rows.Scan(&d.ID, &kind, &d.Lat, &d.Lon, &d.Alt, &d.HeadingDeg, &d.SpeedMps, &d.TsMs, &d.ProviderID, &metaJSON); err != nil {
			return nil, err
		}
		d.Kind = model.TrackKind(kind)
		meta, err := decodeMetaJSON(metaJSON)
		if err != nil {
			return nil, fmt.Errorf("decode meta_json: %w", err)
		}
		d.Meta = meta
		result = append(result, d)
	}
	return result, rows.Err()
}

// CountRange returns the number of deltas with ts_ms in [startTsMs,
// endTsMs] matching filter, used by the seek API to estimate row counts
// without fetching them.
func (r *DeltaRepo) CountRange(startTsMs, endTsMs int64, filter RangeFilter) (int64, error) {
	var qb strings.Builder
	qb.WriteString("SELECT COUNT(*) FROM track_deltas WHERE ts_ms >= ? AND ts_ms <= ?")
	args := []any{startTsMs, endTsMs}
	filter.apply(&qb, &args)

	var n int64
	err := r.db.QueryRow(qb.String(), args...).Scan(&n)
	return n, err
}

// DeleteOlderThan removes every delta with ts_ms strictly before cutoffTsMs,
// returning the number of rows removed. Invoked by the retention sweep on
// HARPY_RETENTION_SWEEP_SCHEDULE with cutoff = now - HARPY_DELTA_LOG_RETENTION_HOURS.
func (r *DeltaRepo) DeleteOlderThan(cutoffTsMs int64) (int64, error) {
	res, err := r.db.Exec("DELETE FROM track_deltas WHERE ts_ms < ?", cutoffTsMs)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Count returns the total number of rows in track_deltas, used for metrics
// and tests.
func (r *DeltaRepo) Count() (int64, error) {
	var n int64
	err := r.db.QueryRow("SELECT COUNT(*) FROM track_deltas").Scan(&n)
	return n, err
}
