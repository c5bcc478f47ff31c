// Package fusion implements the rule engine (component C4): cross-provider
// convergence, proximity, and anomaly detection over the current-track
// table, plus the alert dedup cache that keeps the rule engine from
// re-emitting the same alert every evaluation tick.
package fusion

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/harpy-platform/harpy-core/internal/geo"
	"github.com/harpy-platform/harpy-core/internal/model"
)

// Rule name strings. These are also the trigger-count keys and must match
// model.Alert.Meta["rule"] for every alert a rule emits. Alert dedup keys
// on title and description, not on the rule name.
const (
	RuleConvergence     = "h3_convergence"
	RuleProximity       = "proximity"
	RuleAnomalySpeed    = "anomaly_speed"
	RuleAnomalyAltitude = "anomaly_altitude"
	RuleLoitering       = "loitering"
)

// RuleNames lists every registered rule, in evaluation order.
func RuleNames() []string {
	return []string{RuleConvergence, RuleProximity, RuleAnomalySpeed, RuleAnomalyAltitude, RuleLoitering}
}

// AlertGroup is one alert together with the links that substantiate it
// (the association/proximity edge plus its is_evidenced_by edge, or none
// for a bare anomaly alert). Every fusion rule emits whole groups; no rule
// emits a link that does not belong to some alert.
type AlertGroup struct {
	Alert model.Alert
	Links []model.Link
}

// RuleOutput is what a single rule evaluation produces: zero or more
// alert groups.
type RuleOutput struct {
	Groups []AlertGroup
}

func (o *RuleOutput) addAlert(alert model.Alert, links ...model.Link) {
	o.Groups = append(o.Groups, AlertGroup{Alert: alert, Links: links})
}

// Rule is a single fusion detector. CellBuckets groups the same track set
// by H3 cell at the engine's configured resolution; rules that do not need
// bucketing (proximity, anomaly) ignore it.
type Rule interface {
	Name() string
	Evaluate(tracks []model.CurrentTrack, cellBuckets map[uint64][]model.CurrentTrack, nowMs int64) RuleOutput
}

// ConvergenceRule flags tracks from two or more distinct providers sharing
// an H3 cell. It emits one association link and one alert per
// cross-provider track pair in the cell.
type ConvergenceRule struct {
	h3Resolution int
}

func (r ConvergenceRule) Name() string { return RuleConvergence }

func (r ConvergenceRule) Evaluate(_ []model.CurrentTrack, cellBuckets map[uint64][]model.CurrentTrack, nowMs int64) RuleOutput {
	var out RuleOutput

	for cell, tracks := range cellBuckets {
		if len(tracks) < 2 {
			continue
		}

		providers := map[string]struct{}{}
		for _, t := range tracks {
			providers[t.ProviderID] = struct{}{}
		}
		if len(providers) < 2 {
			continue
		}

		for i := 0; i < len(tracks); i++ {
			for j := i + 1; j < len(tracks); j++ {
				first, second := tracks[i], tracks[j]
				if first.ProviderID == second.ProviderID {
					continue
				}

				linkID := uuid.NewString()
				alertID := uuid.NewString()

				link := model.Link{
					ID:       linkID,
					FromType: model.EntityTrack,
					FromID:   first.ID,
					Rel:      model.RelAssociatedWith,
					ToType:   model.EntityTrack,
					ToID:     second.ID,
					TsMs:     nowMs,
					Meta: map[string]string{
						"rule":          RuleConvergence,
						"cell":          fmt.Sprintf("%x", cell),
						"h3_resolution": fmt.Sprintf("%d", r.h3Resolution),
						"providers":     first.ProviderID + "," + second.ProviderID,
						"track_kinds":   first.Kind.String() + "," + second.Kind.String(),
					},
				}

				alert := model.Alert{
					ID:       alertID,
					Severity: model.SeverityMedium,
					Title:    "Multi-Provider Convergence",
					Description: fmt.Sprintf(
						"Tracks %s (%s) and %s (%s) converged in H3 cell %x from different providers",
						first.ID, first.ProviderID, second.ID, second.ProviderID, cell,
					),
					TsMs:            nowMs,
					Status:          model.AlertStatusActive,
					EvidenceLinkIDs: []string{linkID},
					Meta: map[string]string{
						"rule":           RuleConvergence,
						"cell":           fmt.Sprintf("%x", cell),
						"h3_resolution":  fmt.Sprintf("%d", r.h3Resolution),
						"provider_count": fmt.Sprintf("%d", len(providers)),
						"track_count":    fmt.Sprintf("%d", len(tracks)),
					},
				}

				evidenceLink := model.Link{
					ID:       uuid.NewString(),
					FromType: model.EntityAlert,
					FromID:   alertID,
					Rel:      model.RelIsEvidencedBy,
					ToType:   model.EntityTrack,
					ToID:     first.ID,
					TsMs:     nowMs,
					Meta:     map[string]string{"convergence_link": linkID},
				}

				out.addAlert(alert, link, evidenceLink)
			}
		}
	}

	return out
}

// ProximityRule flags any two tracks, regardless of provider, closer than
// thresholdMeters. It is an all-pairs scan, not H3-bucketed, since two
// tracks near a cell boundary would otherwise be missed.
type ProximityRule struct {
	thresholdMeters float64
}

func (r ProximityRule) Name() string { return RuleProximity }

func (r ProximityRule) Evaluate(tracks []model.CurrentTrack, _ map[uint64][]model.CurrentTrack, nowMs int64) RuleOutput {
	var out RuleOutput

	for i := 0; i < len(tracks); i++ {
		for j := i + 1; j < len(tracks); j++ {
			first, second := tracks[i], tracks[j]
			distance := geo.HaversineMeters(first.Lat, first.Lon, second.Lat, second.Lon)
			if distance > r.thresholdMeters {
				continue
			}

			linkID := uuid.NewString()
			alertID := uuid.NewString()

			severity := model.SeverityWarning
			if distance < 1000.0 {
				severity = model.SeverityCritical
			}

			link := model.Link{
				ID:       linkID,
				FromType: model.EntityTrack,
				FromID:   first.ID,
				Rel:      model.RelNear,
				ToType:   model.EntityTrack,
				ToID:     second.ID,
				TsMs:     nowMs,
				Meta: map[string]string{
					"rule":             RuleProximity,
					"distance_meters":  fmt.Sprintf("%.0f", distance),
					"threshold_meters": fmt.Sprintf("%.0f", r.thresholdMeters),
				},
			}

			alert := model.Alert{
				ID:       alertID,
				Severity: severity,
				Title:    "Proximity Alert",
				Description: fmt.Sprintf(
					"Tracks %s and %s are %.0fm apart (threshold: %.0fm)",
					first.ID, second.ID, distance, r.thresholdMeters,
				),
				TsMs:            nowMs,
				Status:          model.AlertStatusActive,
				EvidenceLinkIDs: []string{linkID},
				Meta: map[string]string{
					"rule":             RuleProximity,
					"distance_meters":  fmt.Sprintf("%.0f", distance),
					"threshold_meters": fmt.Sprintf("%.0f", r.thresholdMeters),
				},
			}

			evidenceLink := model.Link{
				ID:       uuid.NewString(),
				FromType: model.EntityAlert,
				FromID:   alertID,
				Rel:      model.RelIsEvidencedBy,
				ToType:   model.EntityTrack,
				ToID:     first.ID,
				TsMs:     nowMs,
				Meta:     map[string]string{"proximity_link": linkID},
			}

			out.addAlert(alert, link, evidenceLink)
		}
	}

	return out
}

// AnomalyRule flags per-track speed and altitude values outside fixed
// absolute bounds. These thresholds are not configurable percentages of a
// baseline — they are the same flat speedThreshold/altitudeThreshold
// values checked against every track, independent of providers or history.
type AnomalyRule struct {
	speedThresholdMps  float64
	altitudeThresholdM float64
}

func (r AnomalyRule) Name() string { return RuleAnomalySpeed }

func (r AnomalyRule) Evaluate(tracks []model.CurrentTrack, _ map[uint64][]model.CurrentTrack, nowMs int64) RuleOutput {
	var out RuleOutput

	for _, t := range tracks {
		if t.SpeedMps > r.speedThresholdMps {
			alert := model.Alert{
				ID:       uuid.NewString(),
				Severity: model.SeverityWarning,
				Title:    "Speed Anomaly",
				Description: fmt.Sprintf(
					"Track %s has unusual speed: %.0f m/s (%.0f knots)",
					t.ID, t.SpeedMps, t.SpeedMps*1.94384,
				),
				TsMs:            nowMs,
				Status:          model.AlertStatusActive,
				EvidenceLinkIDs: []string{},
				Meta: map[string]string{
					"rule":          RuleAnomalySpeed,
					"speed_mps":     fmt.Sprintf("%.0f", t.SpeedMps),
					"speed_knots":   fmt.Sprintf("%.0f", t.SpeedMps*1.94384),
					"threshold_mps": fmt.Sprintf("%.0f", r.speedThresholdMps),
				},
			}
			out.addAlert(alert)
		}

		if t.Alt > r.altitudeThresholdM {
			alert := model.Alert{
				ID:       uuid.NewString(),
				Severity: model.SeverityInfo,
				Title:    "Altitude Anomaly",
				Description: fmt.Sprintf(
					"Track %s at unusual altitude: %.0fm (%.0fft)",
					t.ID, t.Alt, t.Alt*3.28084,
				),
				TsMs:            nowMs,
				Status:          model.AlertStatusActive,
				EvidenceLinkIDs: []string{},
				Meta: map[string]string{
					"rule":             RuleAnomalyAltitude,
					"altitude_meters":  fmt.Sprintf("%.0f", t.Alt),
					"altitude_feet":    fmt.Sprintf("%.0f", t.Alt*3.28084),
					"threshold_meters": fmt.Sprintf("%.0f", r.altitudeThresholdM),
				},
			}
			out.addAlert(alert)
		}
	}

	return out
}

// LoiteringRule is a registered no-op: circular-pattern detection needs a
// per-track position history this engine does not hold, so it always
// returns an empty result. Its trigger counter stays registered and
// permanently zero so GET /api/v1/fusion/rules can still list it.
type LoiteringRule struct{}

func (r LoiteringRule) Name() string { return RuleLoitering }

func (r LoiteringRule) Evaluate(_ []model.CurrentTrack, _ map[uint64][]model.CurrentTrack, _ int64) RuleOutput {
	return RuleOutput{}
}
