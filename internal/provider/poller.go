package provider

import (
	"context"
	"log"
	"time"

	"github.com/harpy-platform/harpy-core/internal/health"
	"github.com/harpy-platform/harpy-core/internal/model"
)

// PollerConfig parameterises a single provider's loop.
type PollerConfig struct {
	Provider   Provider
	Supervisor *health.Supervisor

	// Interval is the configured poll cadence; RateLimitFloor, if nonzero
	// and larger than Interval, overrides it. The spec's example floor for
	// anonymous rate-limited providers is 300s.
	Interval       time.Duration
	RateLimitFloor time.Duration

	// FetchTimeout bounds each Fetch call; a timeout counts as a failure.
	FetchTimeout time.Duration

	// BackoffBase, BackoffMaxShift and BackoffCap parameterise the
	// exponential backoff applied after a failure:
	// BackoffBase * 2^min(consecutive_failures, BackoffMaxShift), capped at
	// BackoffCap.
	BackoffBase     time.Duration
	BackoffMaxShift int
	BackoffCap      time.Duration

	// OnBatch receives each normalised, non-empty batch. Called from the
	// poller's own goroutine; must not block significantly.
	OnBatch func(providerID string, batch []model.TrackDelta)

	// OnPollResult, if set, is called after every fetch attempt (success or
	// failure) with the underlying error, or nil on success. Used to drive
	// the harpy_provider_poll_success_total/harpy_provider_poll_error_total
	// counters without coupling the poller to the metrics package.
	OnPollResult func(providerID string, err error)
}

// Poller runs one provider's independent poll loop. Run is expected to
// execute on a single goroutine per Poller instance; consecutiveFailure is
// only ever touched from that goroutine.
type Poller struct {
	cfg                PollerConfig
	interval           time.Duration
	consecutiveFailure int
}

// NewPoller builds a Poller, applying the rate-limit floor to the
// configured interval once at construction.
func NewPoller(cfg PollerConfig) *Poller {
	interval := cfg.Interval
	if cfg.RateLimitFloor > 0 && cfg.RateLimitFloor > interval {
		interval = cfg.RateLimitFloor
	}
	return &Poller{cfg: cfg, interval: interval}
}

// Run loops until stopCh is closed: sleep, fetch-under-supervisor, normalise
// and publish on success, back off on failure. On CircuitOpen the poller's
// own backoff still advances — the supervisor's open state does not reset
// the poller's failure counter.
func (p *Poller) Run(stopCh <-chan struct{}) {
	providerID := p.cfg.Provider.ID()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-timer.C:
		}

		var batch []model.TrackDelta
		err := p.cfg.Supervisor.Call(providerID, func() error {
			ctx := context.Background()
			if p.cfg.FetchTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, p.cfg.FetchTimeout)
				defer cancel()
			}
			raw, fetchErr := p.cfg.Provider.Fetch(ctx)
			if fetchErr != nil {
				return fetchErr
			}
			batch = raw
			return nil
		})

		var sleep time.Duration
		if err != nil {
			p.consecutiveFailure++
			sleep = backoffDuration(p.consecutiveFailure, p.cfg.BackoffBase, p.cfg.BackoffMaxShift, p.cfg.BackoffCap)
			log.Printf("[provider:%s] poll failed (consecutive=%d, next in %v): %v", providerID, p.consecutiveFailure, sleep, err)
		} else {
			p.consecutiveFailure = 0
			sleep = p.interval
			normalized := Normalize(providerID, batch)
			if len(normalized) > 0 && p.cfg.OnBatch != nil {
				p.cfg.OnBatch(providerID, normalized)
			}
		}

		if p.cfg.OnPollResult != nil {
			p.cfg.OnPollResult(providerID, err)
		}

		timer.Reset(sleep)
	}
}

// backoffDuration computes base * 2^min(failures, maxShift), capped at maxCap.
func backoffDuration(failures int, base time.Duration, maxShift int, maxCap time.Duration) time.Duration {
	shift := failures
	if shift > maxShift {
		shift = maxShift
	}
	d := base << uint(shift)
	if d > maxCap || d <= 0 {
		return maxCap
	}
	return d
}
