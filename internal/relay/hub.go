// Package relay implements C5: per-client subscription state, the filter
// pipeline, prioritised fanout over WebSocket, playback/DVR streaming and
// the seek query used to bootstrap a playback session.
package relay

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/harpy-platform/harpy-core/internal/bus"
	"github.com/harpy-platform/harpy-core/internal/config"
	"github.com/harpy-platform/harpy-core/internal/metrics"
	"github.com/harpy-platform/harpy-core/internal/model"
	"github.com/harpy-platform/harpy-core/internal/store"
	"github.com/harpy-platform/harpy-core/internal/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Config bounds a Hub's per-client queue capacities.
type Config struct {
	HighQueueCapacity   int
	NormalQueueCapacity int
	PlaybackTick        time.Duration
	PlaybackMinSpeed    float64
	PlaybackMaxSpeed    float64
}

// ConfigFromRuntime derives a relay Config from the live RuntimeConfig.
func ConfigFromRuntime(rc *config.RuntimeConfig) Config {
	return Config{
		HighQueueCapacity:   rc.RelayHighQueueCapacity,
		NormalQueueCapacity: rc.RelayNormalQueueCapacity,
		PlaybackTick:        rc.PlaybackTickInterval.Std(),
		PlaybackMinSpeed:    rc.PlaybackMinSpeed,
		PlaybackMaxSpeed:    rc.PlaybackMaxSpeed,
	}
}

// Hub maintains the live subscription registry and fans out the three
// shared live buses (tracks, alerts/links, provider status) to every
// connected client's filter pipeline.
type Hub struct {
	cfg       Config
	bus       bus.Bus
	deltaRepo *store.DeltaRepo
	metrics   *metrics.Collectors

	clients *xsync.Map[string, *Client]
}

// NewHub wires a Hub to the shared live bus and the delta repo playback
// reads from. m may be nil, in which case metric increments are skipped.
func NewHub(cfg Config, b bus.Bus, deltaRepo *store.DeltaRepo, m *metrics.Collectors) *Hub {
	return &Hub{
		cfg:       cfg,
		bus:       b,
		deltaRepo: deltaRepo,
		metrics:   m,
		clients:   xsync.NewMap[string, *Client](),
	}
}

// ClientCount returns the number of currently registered clients, used by
// the `harpy_ws_connections` gauge.
func (h *Hub) ClientCount() int {
	return h.clients.Size()
}

// Run subscribes to the shared live buses and fans out until ctx is
// cancelled. Each topic runs its own goroutine, matching the teacher's
// one-task-per-concern concurrency idiom.
func (h *Hub) Run(ctx context.Context) {
	go h.fanoutTracks(ctx)
	go h.fanoutAlerts(ctx)
	go h.fanoutLinks(ctx)
	go h.fanoutProviderStatus(ctx)
}

func (h *Hub) fanoutTracks(ctx context.Context) {
	sub := h.bus.SubscribeTrackBatches()
	for {
		batch, err := sub.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[relay] track fanout: %v", err)
			continue
		}
		h.deliverTrackBatch(batch)
	}
}

// deliverTrackBatch applies every live client's filter pipeline to the
// batch and sends the surviving per-client subset as a single
// TrackDeltaBatch frame; an empty result after filtering sends nothing.
func (h *Hub) deliverTrackBatch(batch bus.TrackBatch) {
	h.clients.Range(func(id string, c *Client) bool {
		sub := c.Subscription()
		if sub.Mode != model.ModeLive {
			return true
		}
		filtered := filterBatch(sub, batch.Deltas)
		if len(filtered) == 0 {
			return true
		}
		sent := c.SendEnvelope(&wire.Envelope{
			SchemaVersion:   wire.SchemaVersion,
			ServerTsMs:      batch.TsMs,
			TrackDeltaBatch: &wire.TrackDeltaBatch{Deltas: filtered},
		})
		if sent && h.metrics != nil {
			h.metrics.TracksSent.Add(float64(len(filtered)))
		}
		return true
	})
}

func (h *Hub) fanoutAlerts(ctx context.Context) {
	sub := h.bus.SubscribeAlerts()
	for {
		alert, err := sub.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[relay] alert fanout: %v", err)
			continue
		}
		a := alert
		h.broadcastLive(&wire.Envelope{
			SchemaVersion: wire.SchemaVersion,
			ServerTsMs:    a.TsMs,
			AlertUpsert:   &a,
		})
	}
}

func (h *Hub) fanoutLinks(ctx context.Context) {
	sub := h.bus.SubscribeLinks()
	for {
		link, err := sub.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[relay] link fanout: %v", err)
			continue
		}
		l := link
		h.broadcastLive(&wire.Envelope{
			SchemaVersion: wire.SchemaVersion,
			ServerTsMs:    l.TsMs,
			LinkUpsert:    &l,
		})
	}
}

func (h *Hub) fanoutProviderStatus(ctx context.Context) {
	sub := h.bus.SubscribeProviderStatus()
	for {
		status, err := sub.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[relay] provider status fanout: %v", err)
			continue
		}
		s := status
		h.broadcastLive(&wire.Envelope{
			SchemaVersion:  wire.SchemaVersion,
			ServerTsMs:     time.Now().UnixMilli(),
			ProviderStatus: &s,
		})
		if h.metrics != nil {
			h.metrics.ProviderStatusSent.Inc()
		}
	}
}

// broadcastLive sends env, unfiltered, to every live-mode subscription:
// alerts/links/provider-status are never dropped and never viewport-tested.
func (h *Hub) broadcastLive(env *wire.Envelope) {
	h.clients.Range(func(id string, c *Client) bool {
		if c.Subscription().Mode == model.ModeLive {
			c.SendEnvelope(env)
		}
		return true
	})
}

// HandleWebSocket upgrades the connection, registers a default-subscription
// client, and runs its read/write pumps until it disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[relay] websocket upgrade failed: %v", err)
		return
	}

	client := newClient(conn, h)
	h.clients.Store(client.ID, client)
	log.Printf("[relay] client %s connected, total %d", client.ID, h.clients.Size())

	go client.writePump()
	client.SendEnvelope(&wire.Envelope{
		SchemaVersion:   wire.SchemaVersion,
		ServerTsMs:      time.Now().UnixMilli(),
		SubscriptionAck: &wire.SubscriptionAck{Success: true},
	})

	client.readPump()
}

func (h *Hub) unregister(c *Client) {
	if _, loaded := h.clients.LoadAndDelete(c.ID); loaded {
		c.Close()
		log.Printf("[relay] client %s disconnected, total %d", c.ID, h.clients.Size())
	}
}

// handleSubscriptionRequest applies a SubscriptionRequest: it replaces the
// client's viewport/layers/mode, aborts any running playback on every
// request, and (re-)launches one when the new mode is PLAYBACK.
func (h *Hub) handleSubscriptionRequest(c *Client, req *wire.SubscriptionRequest) {
	sub := &model.ClientSubscription{
		ClientID: c.ID,
		Viewport: req.Viewport,
		Layers:   normalizeLayers(req.Layers),
		Mode:     req.Mode,
	}
	if req.TimeRange != nil {
		sub.TimeRange = *req.TimeRange
	}
	c.setSubscription(sub)
	c.stopPlayback()

	ack := &wire.Envelope{
		SchemaVersion:   wire.SchemaVersion,
		ServerTsMs:      time.Now().UnixMilli(),
		SubscriptionAck: &wire.SubscriptionAck{Success: true},
	}

	if sub.Mode == model.ModePlayback {
		ctx, cancel := context.WithCancel(context.Background())
		c.startPlayback(cancel)
		go runPlayback(ctx, c, *sub, h.deltaRepo, h.cfg)
	}

	c.SendEnvelope(ack)
}
