package relay

import (
	"testing"

	"github.com/harpy-platform/harpy-core/internal/model"
	"github.com/harpy-platform/harpy-core/internal/wire"
)

func testClient(highCap, normalCap int) *Client {
	id := "c1"
	return &Client{
		ID:     id,
		sub:    model.NewDefaultSubscription(id),
		high:   make(chan []byte, highCap),
		normal: make(chan []byte, normalCap),
	}
}

func TestIsHighPriority(t *testing.T) {
	if !isHighPriority(&wire.Envelope{SubscriptionAck: &wire.SubscriptionAck{Success: true}}) {
		t.Fatal("SubscriptionAck should be high priority")
	}
	if isHighPriority(&wire.Envelope{TrackDeltaBatch: &wire.TrackDeltaBatch{}}) {
		t.Fatal("TrackDeltaBatch should not be high priority")
	}
}

func TestClient_SendEnvelope_HighPriorityNeverDrops(t *testing.T) {
	c := testClient(1, 1)
	for i := 0; i < 3; i++ {
		c.SendEnvelope(&wire.Envelope{SchemaVersion: wire.SchemaVersion, ProviderStatus: &model.ProviderStatus{ProviderID: "p"}})
	}
	if c.Stats.TrackBatchesDropped.Load() != 0 {
		t.Fatalf("high priority sends should never increment the drop counter, got %d", c.Stats.TrackBatchesDropped.Load())
	}
}

func TestClient_SendEnvelope_NormalQueueDropsWhenFull(t *testing.T) {
	c := testClient(4, 1)

	ok1 := c.SendEnvelope(&wire.Envelope{SchemaVersion: wire.SchemaVersion, TrackDeltaBatch: &wire.TrackDeltaBatch{}})
	if !ok1 {
		t.Fatal("first send into an empty normal queue should succeed")
	}

	ok2 := c.SendEnvelope(&wire.Envelope{SchemaVersion: wire.SchemaVersion, TrackDeltaBatch: &wire.TrackDeltaBatch{}})
	if ok2 {
		t.Fatal("second send should be dropped, normal queue capacity is 1")
	}
	if c.Stats.TrackBatchesDropped.Load() != 1 {
		t.Fatalf("dropped counter = %d, want 1", c.Stats.TrackBatchesDropped.Load())
	}
	if c.Stats.TrackBatchesSent.Load() != 1 {
		t.Fatalf("sent counter = %d, want 1", c.Stats.TrackBatchesSent.Load())
	}
}

func TestClient_SendEnvelope_ClosedClientNeverSends(t *testing.T) {
	c := testClient(4, 4)
	c.closed.Store(true)
	if c.SendEnvelope(&wire.Envelope{SchemaVersion: wire.SchemaVersion, TrackDeltaBatch: &wire.TrackDeltaBatch{}}) {
		t.Fatal("a closed client should never report a successful send")
	}
}

func TestClient_SubscriptionRoundTrip(t *testing.T) {
	c := testClient(1, 1)
	sub := &model.ClientSubscription{ClientID: "c1", Viewport: model.WorldViewport(), Layers: model.AllLayers(), Mode: model.ModeLive}
	c.setSubscription(sub)
	got := c.Subscription()
	if got.Mode != model.ModeLive || got.ClientID != "c1" {
		t.Fatalf("got %+v", got)
	}
}

func TestClient_StopPlaybackWithoutStartedPlaybackIsSafe(t *testing.T) {
	c := testClient(1, 1)
	c.stopPlayback()
}

func TestClient_StartPlaybackCancelsPrevious(t *testing.T) {
	c := testClient(1, 1)
	firstCancelled := false
	c.startPlayback(func() { firstCancelled = true })
	c.startPlayback(func() {})
	if !firstCancelled {
		t.Fatal("starting a new playback should cancel the previous one")
	}
}
