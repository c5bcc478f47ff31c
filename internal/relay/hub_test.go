package relay

import (
	"testing"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/harpy-platform/harpy-core/internal/bus"
	"github.com/harpy-platform/harpy-core/internal/model"
	"github.com/harpy-platform/harpy-core/internal/wire"
)

func testHub() *Hub {
	return &Hub{
		cfg:     Config{HighQueueCapacity: 16, NormalQueueCapacity: 16, PlaybackTick: 100 * time.Millisecond, PlaybackMinSpeed: 0.25, PlaybackMaxSpeed: 8.0},
		bus:     bus.NewMemBus(bus.DefaultConfig()),
		clients: xsync.NewMap[string, *Client](),
	}
}

func drainOne(t *testing.T, ch chan []byte) *wire.Envelope {
	t.Helper()
	select {
	case data := <-ch:
		env, err := wire.Unmarshal(data)
		if err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return env
	default:
		return nil
	}
}

func TestHub_DeliverTrackBatch_FiltersPerClient(t *testing.T) {
	h := testHub()

	aircraftClient := testClient(4, 4)
	aircraftClient.sub = subWith(model.WorldViewport(), model.LayerAircraft)
	vesselClient := testClient(4, 4)
	vesselClient.sub = subWith(model.WorldViewport(), model.LayerVessel)

	h.clients.Store(aircraftClient.ID, aircraftClient)
	h.clients.Store("vessel", vesselClient)

	h.deliverTrackBatch(bus.TrackBatch{
		ProviderID: "p1",
		TsMs:       1000,
		Deltas: []model.TrackDelta{
			{ID: "a1", Kind: model.KindAircraft, Lat: 1, Lon: 1},
		},
	})

	if env := drainOne(t, aircraftClient.normal); env == nil || env.TrackDeltaBatch == nil {
		t.Fatal("aircraft-subscribed client should have received the batch")
	}
	if env := drainOne(t, vesselClient.normal); env != nil {
		t.Fatal("vessel-subscribed client should not have received an aircraft delta")
	}
}

func TestHub_DeliverTrackBatch_SkipsPlaybackClients(t *testing.T) {
	h := testHub()

	playbackClient := testClient(4, 4)
	sub := subWith(model.WorldViewport(), model.LayerAircraft)
	sub.Mode = model.ModePlayback
	playbackClient.sub = sub
	h.clients.Store(playbackClient.ID, playbackClient)

	h.deliverTrackBatch(bus.TrackBatch{
		Deltas: []model.TrackDelta{{ID: "a1", Kind: model.KindAircraft, Lat: 1, Lon: 1}},
	})

	if env := drainOne(t, playbackClient.normal); env != nil {
		t.Fatal("a playback-mode client should not receive live fanout")
	}
}

func TestHub_BroadcastLive_SkipsPlaybackClients(t *testing.T) {
	h := testHub()

	live := testClient(4, 4)
	live.sub = subWith(model.WorldViewport(), model.LayerAlert)
	h.clients.Store(live.ID, live)

	playback := testClient(4, 4)
	sub := subWith(model.WorldViewport(), model.LayerAlert)
	sub.Mode = model.ModePlayback
	playback.sub = sub
	h.clients.Store("playback", playback)

	h.broadcastLive(&wire.Envelope{SchemaVersion: wire.SchemaVersion, AlertUpsert: &model.Alert{ID: "a1"}})

	if env := drainOne(t, live.high); env == nil || env.AlertUpsert == nil {
		t.Fatal("live client should receive the alert on its high-priority queue")
	}
	if env := drainOne(t, playback.high); env != nil {
		t.Fatal("playback client should not receive live broadcasts")
	}
}

func TestHub_HandleSubscriptionRequest_UpdatesSubscription(t *testing.T) {
	h := testHub()
	c := testClient(4, 4)
	h.clients.Store(c.ID, c)

	h.handleSubscriptionRequest(c, &wire.SubscriptionRequest{
		Viewport: model.Viewport{MinLat: -1, MaxLat: 1, MinLon: -1, MaxLon: 1},
		Layers:   []model.LayerType{model.LayerVessel},
		Mode:     model.ModeLive,
	})

	got := c.Subscription()
	if got.Mode != model.ModeLive {
		t.Fatalf("mode = %v, want live", got.Mode)
	}
	if _, ok := got.Layers[model.LayerVessel]; !ok || len(got.Layers) != 1 {
		t.Fatalf("layers = %+v, want only vessel", got.Layers)
	}

	if env := drainOne(t, c.high); env == nil || env.SubscriptionAck == nil || !env.SubscriptionAck.Success {
		t.Fatal("expected a successful SubscriptionAck on the high-priority queue")
	}
}

func TestHub_HandleSubscriptionRequest_EmptyLayersMeansAll(t *testing.T) {
	h := testHub()
	c := testClient(4, 4)
	h.clients.Store(c.ID, c)

	h.handleSubscriptionRequest(c, &wire.SubscriptionRequest{Viewport: model.WorldViewport(), Mode: model.ModeLive})

	got := c.Subscription()
	if len(got.Layers) != len(model.AllLayers()) {
		t.Fatalf("got %d layers, want all %d", len(got.Layers), len(model.AllLayers()))
	}
}
