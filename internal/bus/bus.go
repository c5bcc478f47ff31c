package bus

import (
	"github.com/harpy-platform/harpy-core/internal/model"
)

// TrackBatch is one provider's normalised observation batch as it travels
// the live bus between C2/C3 and C4/C5.
type TrackBatch struct {
	ProviderID string
	Deltas     []model.TrackDelta
	TsMs       int64
}

// Bus is the shared-read broadcast surface for the three live topics named
// in the component design: tracks, alerts/links, and provider status.
// Implementations must never let a slow subscriber block a publisher.
type Bus interface {
	PublishTrackBatch(TrackBatch)
	PublishAlert(model.Alert)
	PublishLink(model.Link)
	PublishProviderStatus(model.ProviderStatus)

	SubscribeTrackBatches() *Subscription[TrackBatch]
	SubscribeAlerts() *Subscription[model.Alert]
	SubscribeLinks() *Subscription[model.Link]
	SubscribeProviderStatus() *Subscription[model.ProviderStatus]

	Close()
}

// memBus is the in-process implementation: four independent rings, one per
// topic. This is always the backing store, even when a redisBus wraps it to
// fan cross-process publishes in.
type memBus struct {
	tracks   *ring[TrackBatch]
	alerts   *ring[model.Alert]
	links    *ring[model.Link]
	statuses *ring[model.ProviderStatus]
}

// Config bounds each topic's ring capacity.
type Config struct {
	TrackCapacity    int
	AlertCapacity    int
	LinkCapacity     int
	StatusCapacity   int
}

// DefaultConfig sizes each ring generously; tracks are the highest-volume
// topic so it gets the largest buffer.
func DefaultConfig() Config {
	return Config{
		TrackCapacity:  1024,
		AlertCapacity:  256,
		LinkCapacity:   256,
		StatusCapacity: 64,
	}
}

// NewMemBus builds the in-process broadcast bus.
func NewMemBus(cfg Config) Bus {
	return &memBus{
		tracks:   newRing[TrackBatch](cfg.TrackCapacity),
		alerts:   newRing[model.Alert](cfg.AlertCapacity),
		links:    newRing[model.Link](cfg.LinkCapacity),
		statuses: newRing[model.ProviderStatus](cfg.StatusCapacity),
	}
}

func (b *memBus) PublishTrackBatch(t TrackBatch)          { b.tracks.publish(t) }
func (b *memBus) PublishAlert(a model.Alert)              { b.alerts.publish(a) }
func (b *memBus) PublishLink(l model.Link)                { b.links.publish(l) }
func (b *memBus) PublishProviderStatus(s model.ProviderStatus) { b.statuses.publish(s) }

func (b *memBus) SubscribeTrackBatches() *Subscription[TrackBatch] { return b.tracks.subscribe() }
func (b *memBus) SubscribeAlerts() *Subscription[model.Alert]      { return b.alerts.subscribe() }
func (b *memBus) SubscribeLinks() *Subscription[model.Link]       { return b.links.subscribe() }
func (b *memBus) SubscribeProviderStatus() *Subscription[model.ProviderStatus] {
	return b.statuses.subscribe()
}

func (b *memBus) Close() {}
