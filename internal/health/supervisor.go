package health

import (
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/harpy-platform/harpy-core/internal/model"
)

// entry is the supervisor's private per-provider bookkeeping: the breaker
// plus the fields needed to derive ProviderStatus without re-locking it.
type entry struct {
	breaker         *CircuitBreaker
	lastSuccessTsMs int64
	errorMessage    string
}

// Supervisor maintains one circuit breaker per provider and answers
// read-only ProviderStatus queries. Safe for concurrent use.
type Supervisor struct {
	providers        *xsync.Map[string, *entry]
	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time
}

// NewSupervisor builds a Supervisor. failureThreshold and resetTimeout seed
// every provider's breaker the first time it is seen.
func NewSupervisor(failureThreshold int, resetTimeout time.Duration) *Supervisor {
	return &Supervisor{
		providers:        xsync.NewMap[string, *entry](),
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
}

func (s *Supervisor) breakerFor(providerID string) *entry {
	e, _ := s.providers.LoadOrCompute(providerID, func() (*entry, bool) {
		return &entry{breaker: NewCircuitBreaker(s.failureThreshold, s.resetTimeout)}, false
	})
	return e
}

// Call runs fn under the named provider's circuit breaker, updating
// last-success/error bookkeeping on the outcome. Returns ErrCircuitOpen
// without invoking fn if the breaker is open.
func (s *Supervisor) Call(providerID string, fn func() error) error {
	e := s.breakerFor(providerID)
	err := e.breaker.Call(providerID, fn)

	s.providers.Compute(providerID, func(cur *entry, loaded bool) (*entry, xsync.ComputeOp) {
		if !loaded {
			cur = e
		}
		if err == nil {
			cur.lastSuccessTsMs = s.now().UnixMilli()
			cur.errorMessage = ""
		} else if _, isOpen := err.(ErrCircuitOpen); !isOpen {
			cur.errorMessage = err.Error()
		}
		return cur, xsync.UpdateOp
	})

	return err
}

// Status returns the current ProviderStatus for providerID. A provider
// never seen before reports UNSPECIFIED circuit state and CRITICAL
// freshness.
func (s *Supervisor) Status(providerID string) model.ProviderStatus {
	e, ok := s.providers.Load(providerID)
	if !ok {
		return model.ProviderStatus{
			ProviderID:   providerID,
			CircuitState: model.CircuitUnspecified,
			Freshness:    model.FreshnessCritical,
		}
	}
	return model.ProviderStatus{
		ProviderID:      providerID,
		CircuitState:    e.breaker.State(),
		Freshness:       FreshnessFromLastSuccess(e.lastSuccessTsMs, s.now()),
		LastSuccessTsMs: e.lastSuccessTsMs,
		FailureCount:    e.breaker.FailureCount(),
		ErrorMessage:    e.errorMessage,
	}
}

// AllStatuses returns a status snapshot for every provider seen so far.
func (s *Supervisor) AllStatuses() []model.ProviderStatus {
	out := make([]model.ProviderStatus, 0, s.providers.Size())
	s.providers.Range(func(providerID string, e *entry) bool {
		out = append(out, model.ProviderStatus{
			ProviderID:      providerID,
			CircuitState:    e.breaker.State(),
			Freshness:       FreshnessFromLastSuccess(e.lastSuccessTsMs, s.now()),
			LastSuccessTsMs: e.lastSuccessTsMs,
			FailureCount:    e.breaker.FailureCount(),
			ErrorMessage:    e.errorMessage,
		})
		return true
	})
	return out
}
