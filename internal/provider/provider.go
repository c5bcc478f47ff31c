// Package provider implements the per-provider polling loop (component C2):
// independent cadence per provider, exponential backoff on failure, a
// configurable rate-limit floor, and normalisation of raw observations into
// the fixed TrackDelta shape.
package provider

import (
	"context"

	"github.com/harpy-platform/harpy-core/internal/model"
)

// Provider is the external capability every data source implements. A
// provider is a stateless caller-of-network; freshness and circuit state
// are the health supervisor's concern, not the provider's.
type Provider interface {
	// ID returns the provider's stable identity, used as ProviderStatus key
	// and injected into every TrackDelta it produces.
	ID() string
	// Fetch retrieves the current batch of observations. Implementations
	// should respect ctx's deadline; a timeout counts as a failure.
	Fetch(ctx context.Context) ([]model.TrackDelta, error)
}

// Normalize applies the fixed normalisation rules to a raw batch fetched
// from providerID: drops observations with missing/out-of-bounds position,
// clamps negative timestamps to zero, and overwrites ProviderID with the
// poller's own identity (upstream values are never trusted). Kind is set by
// the adapter that constructs the TrackDelta; Normalize leaves it as is.
func Normalize(providerID string, raw []model.TrackDelta) []model.TrackDelta {
	out := make([]model.TrackDelta, 0, len(raw))
	for _, d := range raw {
		if !d.PositionValid() {
			continue
		}
		if d.TsMs < 0 {
			d.TsMs = 0
		}
		d.ProviderID = providerID
		out = append(out, d)
	}
	return out
}
