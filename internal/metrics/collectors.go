// Package metrics defines HARPY's Prometheus collectors and the handler
// that serves them at GET /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds every metric HARPY exposes, registered against a private
// registry so repeated construction in tests never collides with the
// default global one.
type Collectors struct {
	registry *prometheus.Registry

	TracksSent         prometheus.Counter
	ProviderStatusSent prometheus.Counter

	ProviderPollSuccess *prometheus.CounterVec
	ProviderPollError   *prometheus.CounterVec

	TrackBatchesDropped prometheus.Counter
	TrackBatchesSent    prometheus.Counter
	HighPrioritySent    prometheus.Counter
}

// New builds the collector set. wsConnections is sampled on every scrape via
// a GaugeFunc, matching the live connection count without requiring callers
// to push updates themselves.
func New(wsConnections func() float64) *Collectors {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	c := &Collectors{
		registry: reg,

		TracksSent: f.NewCounter(prometheus.CounterOpts{
			Name: "harpy_tracks_sent",
			Help: "Total number of track deltas relayed to any WebSocket client.",
		}),
		ProviderStatusSent: f.NewCounter(prometheus.CounterOpts{
			Name: "harpy_provider_status_sent",
			Help: "Total number of provider status updates relayed to any WebSocket client.",
		}),
		ProviderPollSuccess: f.NewCounterVec(prometheus.CounterOpts{
			Name: "harpy_provider_poll_success_total",
			Help: "Total number of successful provider polls, by provider_id.",
		}, []string{"provider_id"}),
		ProviderPollError: f.NewCounterVec(prometheus.CounterOpts{
			Name: "harpy_provider_poll_error_total",
			Help: "Total number of failed provider polls, by provider_id.",
		}, []string{"provider_id"}),
		TrackBatchesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "harpy_relay_track_batches_dropped_total",
			Help: "Total number of TrackDeltaBatch frames dropped because a client's normal-priority queue was full.",
		}),
		TrackBatchesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "harpy_relay_track_batches_sent_total",
			Help: "Total number of TrackDeltaBatch frames successfully queued for a client.",
		}),
		HighPrioritySent: f.NewCounter(prometheus.CounterOpts{
			Name: "harpy_relay_high_priority_sent_total",
			Help: "Total number of high-priority frames (acks, alerts, links, provider status, snapshot meta) successfully queued for a client.",
		}),
	}

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "harpy_ws_connections",
		Help: "Current number of connected relay WebSocket clients.",
	}, wsConnections)

	return c
}

// Handler returns the HTTP handler for GET /metrics.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
