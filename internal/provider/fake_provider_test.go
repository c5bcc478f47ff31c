package provider

import (
	"context"
	"sync/atomic"

	"github.com/harpy-platform/harpy-core/internal/model"
)

// fakeProvider is a deterministic Provider used only by this package's
// tests; it is never wired into cmd/harpy.
type fakeProvider struct {
	id      string
	batches [][]model.TrackDelta
	errs    []error
	calls   atomic.Int64
}

func (p *fakeProvider) ID() string { return p.id }

func (p *fakeProvider) Fetch(ctx context.Context) ([]model.TrackDelta, error) {
	i := p.calls.Add(1) - 1
	if int(i) < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if int(i) < len(p.batches) {
		return p.batches[i], nil
	}
	return nil, nil
}
