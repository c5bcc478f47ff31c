package store

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionSweep periodically deletes track_deltas rows older than
// retention, driven by a cron schedule (HARPY_RETENTION_SWEEP_SCHEDULE,
// default "17 3 * * *").
type RetentionSweep struct {
	repo      *DeltaRepo
	retention time.Duration
	cron      *cron.Cron
}

// NewRetentionSweep creates a sweep that deletes deltas older than retention
// each time schedule fires. schedule is a standard five-field cron expression.
func NewRetentionSweep(repo *DeltaRepo, schedule string, retention time.Duration) (*RetentionSweep, error) {
	c := cron.New()
	sweep := &RetentionSweep{repo: repo, retention: retention, cron: c}
	if _, err := c.AddFunc(schedule, sweep.tick); err != nil {
		return nil, err
	}
	return sweep, nil
}

// Start launches the cron scheduler in the background.
func (s *RetentionSweep) Start() { s.cron.Start() }

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (s *RetentionSweep) Stop() { <-s.cron.Stop().Done() }

func (s *RetentionSweep) tick() {
	cutoff := time.Now().Add(-s.retention).UnixMilli()
	n, err := s.repo.DeleteOlderThan(cutoff)
	if err != nil {
		log.Printf("[store] retention sweep failed: %v", err)
		return
	}
	log.Printf("[store] retention sweep removed %d deltas older than %d", n, cutoff)
}
