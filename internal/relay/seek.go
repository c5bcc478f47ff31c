package relay

import (
	"github.com/harpy-platform/harpy-core/internal/model"
	"github.com/harpy-platform/harpy-core/internal/store"
)

// Seek error codes, returned verbatim in SeekError.Code per spec.
const (
	ErrCodeInvalidRange  = "INVALID_RANGE"
	ErrCodeRangeTooLarge = "RANGE_TOO_LARGE"
	ErrCodeDBUnavailable = "DB_UNAVAILABLE"
	ErrCodeDBQueryFailed = "DB_QUERY_FAILED"
)

// maxSeekRangeMs bounds a seek request to 24 hours, per spec.
const maxSeekRangeMs = 24 * 60 * 60 * 1000

// SeekRequest mirrors the GET /seek query parameters.
type SeekRequest struct {
	StartTsMs int64
	EndTsMs   int64
	Viewport  *model.Viewport
	Layers    []model.LayerType
}

// SnapshotRef is the recommended base snapshot for a seek response.
type SnapshotRef struct {
	ID          string `json:"id"`
	StartTsMs   int64  `json:"start_ts_ms"`
	EndTsMs     int64  `json:"end_ts_ms"`
	TrackCount  int    `json:"track_count"`
	StoragePath string `json:"storage_path"`
}

// DeltaRange is one contiguous window of track deltas to fetch after the
// recommended snapshot.
type DeltaRange struct {
	StartTsMs       int64  `json:"start_ts_ms"`
	EndTsMs         int64  `json:"end_ts_ms"`
	EstimatedDeltas int64  `json:"estimated_deltas"`
	StorageHint     string `json:"storage_hint"`
}

// SeekResponse answers a SeekRequest.
type SeekResponse struct {
	Snapshot             *SnapshotRef `json:"snapshot,omitempty"`
	DeltaRanges          []DeltaRange `json:"delta_ranges"`
	TotalEstimatedTracks int64        `json:"total_estimated_tracks"`
	SchemaVersion        string       `json:"schema_version"`
}

// SeekError is the structured error body for a failed seek request. It is
// returned as a plain value, not used through the error interface, so its
// JSON field can be named "error" without a method-name collision.
type SeekError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Seek resolves a SeekRequest into a recommended snapshot plus the delta
// ranges a client must fetch to reconstruct state from StartTsMs, per the
// playback bootstrap algorithm in spec §4.5.
func Seek(stateRepo *store.StateRepo, deltaRepo *store.DeltaRepo, req SeekRequest) (*SeekResponse, *SeekError) {
	if req.StartTsMs >= req.EndTsMs {
		return nil, &SeekError{Error: "start_ts_ms must be less than end_ts_ms", Code: ErrCodeInvalidRange}
	}
	if req.EndTsMs-req.StartTsMs > maxSeekRangeMs {
		return nil, &SeekError{Error: "time range exceeds maximum (24 hours)", Code: ErrCodeRangeTooLarge}
	}
	if stateRepo == nil || deltaRepo == nil {
		return nil, &SeekError{Error: "database unavailable: seek requires persistent storage", Code: ErrCodeDBUnavailable}
	}

	snapshot, err := findSnapshot(stateRepo, req.StartTsMs)
	if err != nil {
		return nil, &SeekError{Error: "failed to query snapshots: " + err.Error(), Code: ErrCodeDBQueryFailed}
	}

	deltaStartTsMs := req.StartTsMs
	if snapshot != nil {
		deltaStartTsMs = max64(snapshot.EndTsMs+1, req.StartTsMs)
	}

	filter := store.RangeFilter{Viewport: req.Viewport, Kinds: kindsForLayerList(req.Layers)}
	estimated, err := deltaRepo.CountRange(deltaStartTsMs, req.EndTsMs, filter)
	if err != nil {
		return nil, &SeekError{Error: "failed to count deltas: " + err.Error(), Code: ErrCodeDBQueryFailed}
	}

	return &SeekResponse{
		Snapshot: snapshot,
		DeltaRanges: []DeltaRange{{
			StartTsMs:       deltaStartTsMs,
			EndTsMs:         req.EndTsMs,
			EstimatedDeltas: estimated,
			StorageHint:     "sqlite:track_deltas",
		}},
		TotalEstimatedTracks: estimated,
		SchemaVersion:        "1.0.0",
	}, nil
}

// findSnapshot prefers the snapshot whose window covers startTsMs; failing
// that, the most recent snapshot ending at or before startTsMs.
func findSnapshot(repo *store.StateRepo, startTsMs int64) (*SnapshotRef, error) {
	covering, err := repo.ListSnapshotsInRange(startTsMs, startTsMs)
	if err != nil {
		return nil, err
	}
	if len(covering) > 0 {
		return snapshotRefFrom(covering[0]), nil
	}

	candidates, err := repo.ListSnapshotsInRange(0, startTsMs)
	if err != nil {
		return nil, err
	}
	var best *model.Snapshot
	for i := range candidates {
		s := candidates[i]
		if s.EndTsMs > startTsMs {
			continue
		}
		if best == nil || s.EndTsMs > best.EndTsMs {
			best = &s
		}
	}
	if best == nil {
		return nil, nil
	}
	return snapshotRefFrom(*best), nil
}

func snapshotRefFrom(s model.Snapshot) *SnapshotRef {
	return &SnapshotRef{
		ID:          s.SnapshotID,
		StartTsMs:   s.StartTsMs,
		EndTsMs:     s.EndTsMs,
		TrackCount:  s.TrackCount,
		StoragePath: s.StoragePath,
	}
}

func kindsForLayerList(layers []model.LayerType) []model.TrackKind {
	if len(layers) == 0 {
		return nil
	}
	set := make(map[model.LayerType]struct{}, len(layers))
	for _, l := range layers {
		set[l] = struct{}{}
	}
	return kindsForLayers(set)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
