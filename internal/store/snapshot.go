package store

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/harpy-platform/harpy-core/internal/model"
	"github.com/harpy-platform/harpy-core/internal/scanloop"
)

// SnapshotJob periodically catalogues the current world state as a metadata-only
// Snapshot row plus one SnapshotTrack row per live track, giving the DVR seek
// path non-overlapping windows to resolve into. No object-storage write is
// performed; StoragePath/CompressedSizeBytes are left empty/zero.
type SnapshotJob struct {
	repo     *StateRepo
	cache    *StateCache
	interval time.Duration
	viewport model.Viewport

	windowStart time.Time
}

// NewSnapshotJob creates a snapshot job over the current-state cache,
// catalogued into repo every interval.
func NewSnapshotJob(repo *StateRepo, cache *StateCache, interval time.Duration) *SnapshotJob {
	return &SnapshotJob{
		repo:        repo,
		cache:       cache,
		interval:    interval,
		viewport:    model.WorldViewport(),
		windowStart: time.Now(),
	}
}

// Run drives the job at a small jitter around interval until stopCh closes.
func (j *SnapshotJob) Run(stopCh <-chan struct{}) {
	scanloop.Run(stopCh, j.interval, j.interval/10, j.tick)
}

func (j *SnapshotJob) tick() {
	now := time.Now()
	startMs := j.windowStart.UnixMilli()
	endMs := now.UnixMilli()
	j.windowStart = now

	var tracks []model.SnapshotTrack
	j.cache.RangeTracks(func(t model.CurrentTrack) bool {
		tracks = append(tracks, model.SnapshotTrack{
			TrackID:       t.ID,
			TrackKind:     t.Kind,
			FirstTsMs:     startMs,
			LastTsMs:      t.TsMs,
			PositionCount: 1,
		})
		return true
	})

	snapshotID := uuid.NewString()
	for i := range tracks {
		tracks[i].SnapshotID = snapshotID
	}

	viewportJSON, err := json.Marshal(j.viewport)
	if err != nil {
		log.Printf("[store] snapshot job: encode viewport failed: %v", err)
		return
	}

	snap := model.Snapshot{
		SnapshotID:   snapshotID,
		StartTsMs:    startMs,
		EndTsMs:      endMs,
		TrackCount:   len(tracks),
		ViewportJSON: string(viewportJSON),
	}

	if err := j.repo.InsertSnapshot(snap, tracks); err != nil {
		log.Printf("[store] snapshot job: insert failed: %v", err)
		return
	}
	log.Printf("[store] snapshot %s catalogued %d tracks for [%d,%d]", snapshotID, len(tracks), startMs, endMs)
}
