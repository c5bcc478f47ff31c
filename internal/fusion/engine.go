package fusion

import (
	"time"

	"github.com/harpy-platform/harpy-core/internal/geo"
	"github.com/harpy-platform/harpy-core/internal/model"
)

// Config sizes an Engine's thresholds. Zero-value Duration fields fall
// back to DefaultConfig's values via NewEngine.
type Config struct {
	H3Resolution     int
	ProximityMeters  float64
	SpeedAnomalyMps  float64
	AltitudeAnomalyM float64
	DedupTTL         time.Duration
}

// DefaultConfig mirrors the fusion thresholds baked into the original rule
// engine constructor.
func DefaultConfig() Config {
	return Config{
		H3Resolution:     8,
		ProximityMeters:  5000.0,
		SpeedAnomalyMps:  300.0,
		AltitudeAnomalyM: 20000.0,
		DedupTTL:         5 * time.Minute,
	}
}

// RuleStatus reports a single rule's registration and trigger count, for
// GET /api/v1/fusion/rules.
type RuleStatus struct {
	Name         string `json:"name"`
	Enabled      bool   `json:"enabled"`
	TriggerCount uint64 `json:"trigger_count"`
}

// Engine evaluates the registered rule set over a snapshot of current
// tracks, deduplicates alerts that already fired recently, and keeps a
// per-rule trigger counter for operational visibility.
type Engine struct {
	cfg    Config
	rules  []Rule
	counts *triggerCounts
	dedup  *dedupCache
}

// NewEngine builds an Engine. Any zero Config field falls back to
// DefaultConfig's value so callers can override only what they need.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.H3Resolution == 0 {
		cfg.H3Resolution = def.H3Resolution
	}
	if cfg.ProximityMeters == 0 {
		cfg.ProximityMeters = def.ProximityMeters
	}
	if cfg.SpeedAnomalyMps == 0 {
		cfg.SpeedAnomalyMps = def.SpeedAnomalyMps
	}
	if cfg.AltitudeAnomalyM == 0 {
		cfg.AltitudeAnomalyM = def.AltitudeAnomalyM
	}
	if cfg.DedupTTL == 0 {
		cfg.DedupTTL = def.DedupTTL
	}

	return &Engine{
		cfg: cfg,
		rules: []Rule{
			ConvergenceRule{h3Resolution: cfg.H3Resolution},
			ProximityRule{thresholdMeters: cfg.ProximityMeters},
			AnomalyRule{speedThresholdMps: cfg.SpeedAnomalyMps, altitudeThresholdM: cfg.AltitudeAnomalyM},
			LoiteringRule{},
		},
		counts: newTriggerCounts(RuleNames()),
		dedup:  newDedupCache(cfg.DedupTTL),
	}
}

// bucketByCell groups tracks by H3 cell at the engine's configured
// resolution, recomputing the index from lat/lon rather than trusting
// CurrentTrack.H3Index, which may have been stamped at a different
// resolution by an earlier configuration.
func (e *Engine) bucketByCell(tracks []model.CurrentTrack) map[uint64][]model.CurrentTrack {
	buckets := make(map[uint64][]model.CurrentTrack)
	for _, t := range tracks {
		cell, ok := geo.CellIndex(t.Lat, t.Lon, e.cfg.H3Resolution)
		if !ok {
			continue
		}
		buckets[cell] = append(buckets[cell], t)
	}
	return buckets
}

// Evaluate runs every registered rule over tracks, drops alerts that
// duplicate one already emitted within the dedup window, updates trigger
// counters for whatever survives, and returns the deduplicated output.
func (e *Engine) Evaluate(tracks []model.CurrentTrack, now time.Time) RuleOutput {
	nowMs := now.UnixMilli()
	buckets := e.bucketByCell(tracks)

	var groups []AlertGroup
	for _, rule := range e.rules {
		out := rule.Evaluate(tracks, buckets, nowMs)
		groups = append(groups, out.Groups...)
	}

	e.dedup.gcIfDue(now)

	var result RuleOutput
	for _, group := range groups {
		if e.dedup.seenRecently(group.Alert.Title, group.Alert.Description, now) {
			continue
		}
		result.Groups = append(result.Groups, group)
		if ruleName, ok := group.Alert.Meta["rule"]; ok {
			e.counts.increment(ruleName)
		}
	}

	return result
}

// RuleStatuses returns the current registration/trigger-count view for
// every rule, in RuleNames order.
func (e *Engine) RuleStatuses() []RuleStatus {
	names := RuleNames()
	statuses := make([]RuleStatus, 0, len(names))
	for _, name := range names {
		statuses = append(statuses, RuleStatus{
			Name:         name,
			Enabled:      true,
			TriggerCount: e.counts.get(name),
		})
	}
	return statuses
}
