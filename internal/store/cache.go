package store

import (
	"time"

	"github.com/maypok86/otter"

	"github.com/harpy-platform/harpy-core/internal/model"
)

// StateCache is the in-memory current-state cache fronting state.db: the
// latest CurrentTrack and ProviderStatus per key, each entry expiring after
// ttl (default 1h) so a provider or track that stops reporting eventually
// falls out of memory even if nothing ever marks it for deletion.
type StateCache struct {
	tracks    otter.Cache[string, model.CurrentTrack]
	providers otter.Cache[string, model.ProviderStatus]
}

// NewStateCache creates a StateCache bounded to maxEntries per table with
// the given TTL.
func NewStateCache(maxEntries int, ttl time.Duration) *StateCache {
	tracks, err := otter.MustBuilder[string, model.CurrentTrack](maxEntries).
		Cost(func(_ string, _ model.CurrentTrack) uint32 { return 1 }).
		WithTTL(ttl).
		Build()
	if err != nil {
		panic("store: failed to create track cache: " + err.Error())
	}

	providers, err := otter.MustBuilder[string, model.ProviderStatus](maxEntries).
		Cost(func(_ string, _ model.ProviderStatus) uint32 { return 1 }).
		WithTTL(ttl).
		Build()
	if err != nil {
		panic("store: failed to create provider status cache: " + err.Error())
	}

	return &StateCache{tracks: tracks, providers: providers}
}

// SetTrack stores/refreshes the current track; ReadTrack serves it back as
// a StateReaders.ReadCurrentTrack result.
func (c *StateCache) SetTrack(t model.CurrentTrack) {
	c.tracks.Set(t.ID, t)
}

// Track returns the cached current track for id, if present and unexpired.
func (c *StateCache) Track(id string) (model.CurrentTrack, bool) {
	return c.tracks.Get(id)
}

// ReadTrack adapts Track to the Engine flush-reader shape.
func (c *StateCache) ReadTrack(id string) *model.CurrentTrack {
	t, ok := c.tracks.Get(id)
	if !ok {
		return nil
	}
	return &t
}

// DeleteTrack evicts a track from the cache.
func (c *StateCache) DeleteTrack(id string) {
	c.tracks.Delete(id)
}

// RangeTracks iterates every cached track. Returning false stops iteration.
func (c *StateCache) RangeTracks(fn func(model.CurrentTrack) bool) {
	c.tracks.Range(func(_ string, v model.CurrentTrack) bool {
		return fn(v)
	})
}

// SetProviderStatus stores/refreshes the cached provider status.
func (c *StateCache) SetProviderStatus(p model.ProviderStatus) {
	c.providers.Set(p.ProviderID, p)
}

// ProviderStatus returns the cached provider status, if present and unexpired.
func (c *StateCache) ProviderStatus(providerID string) (model.ProviderStatus, bool) {
	return c.providers.Get(providerID)
}

// ReadProviderStatus adapts ProviderStatus to the Engine flush-reader shape.
func (c *StateCache) ReadProviderStatus(providerID string) *model.ProviderStatus {
	p, ok := c.providers.Get(providerID)
	if !ok {
		return nil
	}
	return &p
}

// Readers builds the StateReaders callback set backed by this cache.
func (c *StateCache) Readers() StateReaders {
	return StateReaders{
		ReadCurrentTrack:   c.ReadTrack,
		ReadProviderStatus: c.ReadProviderStatus,
	}
}

// Close releases resources held by the underlying caches.
func (c *StateCache) Close() {
	c.tracks.Close()
	c.providers.Close()
}
