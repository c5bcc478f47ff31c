package relay

import (
	"context"
	"log"
	"time"

	"github.com/harpy-platform/harpy-core/internal/model"
	"github.com/harpy-platform/harpy-core/internal/store"
	"github.com/harpy-platform/harpy-core/internal/wire"
)

// maxDeltasPerTick caps how many rows a single playback tick will fetch,
// per spec.
const maxDeltasPerTick = 5000

// playbackState tracks one client's DVR clock: current/end position and
// speed, clamped to [minSpeed, maxSpeed] at construction and on every
// update.
type playbackState struct {
	currentTsMs int64
	endTsMs     int64
	speed       float64
	minSpeed    float64
	maxSpeed    float64
}

func newPlaybackState(startTsMs, endTsMs int64, speed, minSpeed, maxSpeed float64) *playbackState {
	return &playbackState{
		currentTsMs: startTsMs,
		endTsMs:     endTsMs,
		speed:       clamp(speed, minSpeed, maxSpeed),
		minSpeed:    minSpeed,
		maxSpeed:    maxSpeed,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// advance moves the playback clock forward by elapsedRealMs*speed, capping
// at endTsMs, and reports whether the range is now exhausted.
func (p *playbackState) advance(elapsedRealMs int64) (prevTsMs, currentTsMs int64, done bool) {
	prevTsMs = p.currentTsMs
	delta := int64(float64(elapsedRealMs) * p.speed)
	p.currentTsMs += delta
	if p.currentTsMs >= p.endTsMs {
		p.currentTsMs = p.endTsMs
		done = true
	}
	return prevTsMs, p.currentTsMs, done
}

// runPlayback streams historical deltas to c at playback speed until the
// range is exhausted or ctx is cancelled (superseded by a new subscription
// request, or the client disconnected). It ticks at cfg.PlaybackTick real
// time, matching the relay's 100ms cadence.
func runPlayback(ctx context.Context, c *Client, sub model.ClientSubscription, repo *store.DeltaRepo, cfg Config) {
	state := newPlaybackState(sub.TimeRange.StartTsMs, sub.TimeRange.EndTsMs, sub.TimeRange.Speed, cfg.PlaybackMinSpeed, cfg.PlaybackMaxSpeed)

	ticker := time.NewTicker(cfg.PlaybackTick)
	defer ticker.Stop()

	viewport := sub.Viewport
	filter := store.RangeFilter{Viewport: &viewport, Kinds: kindsForLayers(sub.Layers)}

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsedMs := now.Sub(last).Milliseconds()
			last = now

			prevTsMs, currentTsMs, done := state.advance(elapsedMs)

			var deltas []model.TrackDelta
			if repo != nil {
				var err error
				deltas, err = repo.QueryRangeFiltered(prevTsMs, currentTsMs, filter, maxDeltasPerTick)
				if err != nil {
					log.Printf("[relay] playback query failed for client %s: %v", c.ID, err)
					deltas = nil
				}
			}

			if len(deltas) > 0 {
				if !c.SendEnvelope(&wire.Envelope{
					SchemaVersion:   wire.SchemaVersion,
					ServerTsMs:      time.Now().UnixMilli(),
					TrackDeltaBatch: &wire.TrackDeltaBatch{Deltas: deltas},
				}) {
					return
				}
			}

			if done {
				c.SendEnvelope(&wire.Envelope{
					SchemaVersion: wire.SchemaVersion,
					ServerTsMs:    time.Now().UnixMilli(),
					SnapshotMeta: &model.Snapshot{
						SnapshotID: "playback-complete",
						StartTsMs:  sub.TimeRange.StartTsMs,
						EndTsMs:    sub.TimeRange.EndTsMs,
					},
				})
				return
			}
		}
	}
}

// kindsForLayers returns the track kinds admitted by any of layers, the
// inverse of model.LayersForKind, used to push the layer filter down into
// the SQL query for playback.
func kindsForLayers(layers map[model.LayerType]struct{}) []model.TrackKind {
	var kinds []model.TrackKind
	for _, k := range []model.TrackKind{model.KindAircraft, model.KindSatellite, model.KindGround, model.KindVessel} {
		for _, l := range model.LayersForKind(k) {
			if _, ok := layers[l]; ok {
				kinds = append(kinds, k)
				break
			}
		}
	}
	return kinds
}
