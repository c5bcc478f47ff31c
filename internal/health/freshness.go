package health

import (
	"time"

	"github.com/harpy-platform/harpy-core/internal/model"
)

// FreshnessFromAge derives the staleness classification from the age of the
// last successful poll. Read-only with respect to the circuit breaker — it
// never triggers a state transition.
func FreshnessFromAge(age time.Duration) model.Freshness {
	switch {
	case age < 60*time.Second:
		return model.FreshnessFresh
	case age < 5*time.Minute:
		return model.FreshnessAging
	case age < 10*time.Minute:
		return model.FreshnessStale
	default:
		return model.FreshnessCritical
	}
}

// FreshnessFromLastSuccess is a convenience wrapper around FreshnessFromAge
// for a last-success timestamp in epoch milliseconds.
func FreshnessFromLastSuccess(lastSuccessTsMs int64, now time.Time) model.Freshness {
	if lastSuccessTsMs == 0 {
		return model.FreshnessCritical
	}
	last := time.UnixMilli(lastSuccessTsMs)
	return FreshnessFromAge(now.Sub(last))
}
