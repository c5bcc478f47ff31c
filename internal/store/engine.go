package store

import (
	"fmt"
	"log"

	"github.com/harpy-platform/harpy-core/internal/model"
)

// StateReaders provides callbacks for reading current in-memory values at
// flush time. If a reader returns nil for a key marked OpUpsert, the key is
// treated as a delete (the object was removed between mark and flush).
type StateReaders struct {
	ReadCurrentTrack   func(id string) *model.CurrentTrack
	ReadProviderStatus func(providerID string) *model.ProviderStatus
}

// Engine is the single write entry point for all persistence operations.
// Current-track and provider-status rows are extremely high-churn (every
// accepted delta, every poll outcome) so they are dirty-marked in memory and
// batch-flushed to state.db; alerts, links and snapshots are comparatively
// rare and go through direct transactional writes. The delta log is appended
// straight through DeltaRepo from the ingest path.
type Engine struct {
	*StateRepo
	*DeltaRepo

	dirtyCurrentTracks  *DirtySet[string]
	dirtyProviderStatus *DirtySet[string]
}

func newEngine(stateRepo *StateRepo, deltaRepo *DeltaRepo) *Engine {
	return &Engine{
		StateRepo:           stateRepo,
		DeltaRepo:           deltaRepo,
		dirtyCurrentTracks:  NewDirtySet[string](),
		dirtyProviderStatus: NewDirtySet[string](),
	}
}

// MarkCurrentTrack marks a track id for upsert on the next flush.
func (e *Engine) MarkCurrentTrack(id string) { e.dirtyCurrentTracks.MarkUpsert(id) }

// MarkCurrentTrackDelete marks a track id for deletion on the next flush.
func (e *Engine) MarkCurrentTrackDelete(id string) { e.dirtyCurrentTracks.MarkDelete(id) }

// MarkProviderStatus marks a provider id for upsert on the next flush.
func (e *Engine) MarkProviderStatus(providerID string) { e.dirtyProviderStatus.MarkUpsert(providerID) }

// DirtyCount returns the total number of dirty entries across both sets.
func (e *Engine) DirtyCount() int {
	return e.dirtyCurrentTracks.Len() + e.dirtyProviderStatus.Len()
}

func classifyDirtySet[K comparable, V any](
	drained map[K]DirtyOp,
	reader func(K) *V,
) (upserts []V, deletes []K) {
	for key, op := range drained {
		if op == OpDelete {
			deletes = append(deletes, key)
			continue
		}
		v := reader(key)
		if v == nil {
			deletes = append(deletes, key)
		} else {
			upserts = append(upserts, *v)
		}
	}
	return
}

// FlushDirtySets drains both dirty sets, reads current values via readers,
// and batch-writes to state.db in a single transaction. On failure, the
// drained entries are merged back.
func (e *Engine) FlushDirtySets(readers StateReaders) error {
	drainedTracks := e.dirtyCurrentTracks.Drain()
	drainedStatus := e.dirtyProviderStatus.Drain()

	remerge := func() {
		e.dirtyCurrentTracks.Merge(drainedTracks)
		e.dirtyProviderStatus.Merge(drainedStatus)
	}

	upsertTracks, deleteTracks := classifyDirtySet(drainedTracks, readers.ReadCurrentTrack)
	upsertStatus, deleteStatus := classifyDirtySet(drainedStatus, readers.ReadProviderStatus)

	if err := e.StateRepo.FlushTx(FlushOps{
		UpsertCurrentTracks:  upsertTracks,
		DeleteCurrentTracks:  deleteTracks,
		UpsertProviderStatus: upsertStatus,
		DeleteProviderStatus: deleteStatus,
	}); err != nil {
		remerge()
		return fmt.Errorf("flush: %w", err)
	}

	log.Printf("[store] flushed dirty sets: tracks=%d, provider_status=%d", len(drainedTracks), len(drainedStatus))
	return nil
}
