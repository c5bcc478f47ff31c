package wire

import (
	"reflect"
	"testing"

	"github.com/harpy-platform/harpy-core/internal/model"
)

func roundTrip(t *testing.T, e *Envelope) *Envelope {
	t.Helper()
	data := Marshal(e)
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return got
}

func TestEnvelope_SubscriptionRequestRoundTrip(t *testing.T) {
	e := &Envelope{
		SchemaVersion: SchemaVersion,
		ServerTsMs:    1000,
		SubscriptionRequest: &SubscriptionRequest{
			Viewport: model.Viewport{MinLat: -10, MinLon: -20, MaxLat: 10, MaxLon: 20},
			Layers:   []model.LayerType{model.LayerAircraft, model.LayerVessel},
			Mode:     model.ModePlayback,
			TimeRange: &model.TimeRange{
				StartTsMs: 100,
				EndTsMs:   200,
				Speed:     2.0,
			},
		},
	}

	got := roundTrip(t, e)
	if !reflect.DeepEqual(e, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", e, got)
	}
}

func TestEnvelope_SubscriptionRequestWithoutTimeRange(t *testing.T) {
	e := &Envelope{
		SchemaVersion: SchemaVersion,
		ServerTsMs:    1000,
		SubscriptionRequest: &SubscriptionRequest{
			Viewport: model.WorldViewport(),
			Layers:   []model.LayerType{model.LayerAircraft},
			Mode:     model.ModeLive,
		},
	}

	got := roundTrip(t, e)
	if got.SubscriptionRequest.TimeRange != nil {
		t.Fatalf("expected nil TimeRange, got %+v", got.SubscriptionRequest.TimeRange)
	}
	if !reflect.DeepEqual(e, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", e, got)
	}
}

func TestEnvelope_SubscriptionAckRoundTrip(t *testing.T) {
	e := &Envelope{
		SchemaVersion:   SchemaVersion,
		ServerTsMs:      42,
		SubscriptionAck: &SubscriptionAck{Success: false, Error: "bad frame"},
	}

	got := roundTrip(t, e)
	if !reflect.DeepEqual(e, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", e, got)
	}
}

func TestEnvelope_TrackDeltaBatchRoundTrip(t *testing.T) {
	e := &Envelope{
		SchemaVersion: SchemaVersion,
		ServerTsMs:    7,
		TrackDeltaBatch: &TrackDeltaBatch{
			Deltas: []model.TrackDelta{
				{
					ID:         "t1",
					Kind:       model.KindAircraft,
					Lat:        1.5,
					Lon:        -2.5,
					Alt:        1000,
					HeadingDeg: 90,
					SpeedMps:   250,
					TsMs:       1234,
					ProviderID: "adsb_opensky",
					Meta:       map[string]string{"squawk": "7700"},
				},
				{ID: "t2", Kind: model.KindVessel, TsMs: 5678},
			},
		},
	}

	got := roundTrip(t, e)
	if !reflect.DeepEqual(e, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", e, got)
	}
}

func TestEnvelope_AlertUpsertRoundTrip(t *testing.T) {
	e := &Envelope{
		SchemaVersion: SchemaVersion,
		ServerTsMs:    9,
		AlertUpsert: &model.Alert{
			ID:              "a1",
			Severity:        model.SeverityCritical,
			Title:           "Proximity Alert",
			Description:     "Tracks t1 and t2 are 40m apart",
			TsMs:            321,
			Status:          model.AlertStatusActive,
			EvidenceLinkIDs: []string{"l1", "l2"},
			Meta:            map[string]string{"rule": "proximity", "distance_meters": "40"},
		},
	}

	got := roundTrip(t, e)
	if !reflect.DeepEqual(e, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", e, got)
	}
}

func TestEnvelope_LinkUpsertRoundTrip(t *testing.T) {
	e := &Envelope{
		SchemaVersion: SchemaVersion,
		ServerTsMs:    9,
		LinkUpsert: &model.Link{
			ID:       "l1",
			FromType: model.EntityTrack,
			FromID:   "t1",
			Rel:      model.RelNear,
			ToType:   model.EntityTrack,
			ToID:     "t2",
			TsMs:     321,
			Meta:     map[string]string{"rule": "proximity"},
		},
	}

	got := roundTrip(t, e)
	if !reflect.DeepEqual(e, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", e, got)
	}
}

func TestEnvelope_ProviderStatusRoundTrip(t *testing.T) {
	e := &Envelope{
		SchemaVersion: SchemaVersion,
		ServerTsMs:    9,
		ProviderStatus: &model.ProviderStatus{
			ProviderID:      "adsb_opensky",
			CircuitState:    model.CircuitOpen,
			Freshness:       model.FreshnessStale,
			LastSuccessTsMs: 111,
			FailureCount:    3,
			ErrorMessage:    "timeout",
		},
	}

	got := roundTrip(t, e)
	if !reflect.DeepEqual(e, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", e, got)
	}
}

func TestEnvelope_SnapshotMetaRoundTrip(t *testing.T) {
	e := &Envelope{
		SchemaVersion: SchemaVersion,
		ServerTsMs:    9,
		SnapshotMeta: &model.Snapshot{
			SnapshotID:          "s1",
			StartTsMs:           1000,
			EndTsMs:             2000,
			TrackCount:          5,
			StorageBackend:      "",
			CompressedSizeBytes: 0,
			ViewportJSON:        `{"min_lat":-1}`,
		},
	}

	got := roundTrip(t, e)
	if !reflect.DeepEqual(e, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", e, got)
	}
}

func TestUnmarshal_MalformedFrameReturnsError(t *testing.T) {
	if _, err := Unmarshal([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}); err == nil {
		t.Fatal("expected an error for a malformed frame")
	}
}

func TestUnmarshal_EmptyFrame(t *testing.T) {
	got, err := Unmarshal(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SchemaVersion != "" || got.ServerTsMs != 0 {
		t.Fatalf("expected zero-value envelope, got %+v", got)
	}
}
