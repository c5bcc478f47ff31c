package bus

import (
	"context"
	"testing"

	"github.com/harpy-platform/harpy-core/internal/model"
)

func TestMemBus_TrackBatchRoundTrip(t *testing.T) {
	b := NewMemBus(DefaultConfig())
	sub := b.SubscribeTrackBatches()

	b.PublishTrackBatch(TrackBatch{ProviderID: "adsb_opensky", TsMs: 100})

	got, err := sub.Recv(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ProviderID != "adsb_opensky" {
		t.Errorf("ProviderID = %q, want adsb_opensky", got.ProviderID)
	}
}

func TestMemBus_AlertsNeverDroppedWithinCapacity(t *testing.T) {
	b := NewMemBus(Config{AlertCapacity: 8, TrackCapacity: 1, LinkCapacity: 1, StatusCapacity: 1})
	sub := b.SubscribeAlerts()

	for i := 0; i < 5; i++ {
		b.PublishAlert(model.Alert{ID: "a"})
	}

	count := 0
	for i := 0; i < 5; i++ {
		if _, err := sub.Recv(context.Background()); err == nil {
			count++
		}
	}
	if count != 5 {
		t.Errorf("received %d alerts, want 5", count)
	}
}

func TestMemBus_IndependentTopics(t *testing.T) {
	b := NewMemBus(DefaultConfig())
	trackSub := b.SubscribeTrackBatches()
	statusSub := b.SubscribeProviderStatus()

	b.PublishProviderStatus(model.ProviderStatus{ProviderID: "p1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := trackSub.Recv(ctx); err == nil {
		t.Fatal("expected track subscriber to see nothing and respect cancellation")
	}

	status, err := statusSub.Recv(context.Background())
	if err != nil || status.ProviderID != "p1" {
		t.Fatalf("got (%+v, %v)", status, err)
	}
}
