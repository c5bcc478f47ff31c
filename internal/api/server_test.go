package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/harpy-platform/harpy-core/internal/bus"
	"github.com/harpy-platform/harpy-core/internal/fusion"
	"github.com/harpy-platform/harpy-core/internal/metrics"
	"github.com/harpy-platform/harpy-core/internal/relay"
	"github.com/harpy-platform/harpy-core/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	engine, closer, err := store.PersistenceBootstrap(dir+"/state", dir+"/deltas")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { closer.Close() })

	relayCfg := relay.Config{HighQueueCapacity: 16, NormalQueueCapacity: 16}
	collectors := metrics.New(func() float64 { return 0 })
	hub := relay.NewHub(relayCfg, bus.NewMemBus(bus.DefaultConfig()), engine.DeltaRepo, collectors)
	fusionEngine := fusion.NewEngine(fusion.DefaultConfig())

	return NewServer(0, hub, fusionEngine, engine.StateRepo, engine.DeltaRepo, collectors)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["service"] != "harpy" {
		t.Fatalf("got %+v", body)
	}
}

func TestHandleMetrics_ExposesWSConnectionsGauge(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "harpy_ws_connections") {
		t.Fatalf("metrics output missing harpy_ws_connections:\n%s", rec.Body.String())
	}
}

func TestHandleFusionRules(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("GET", "/api/v1/fusion/rules", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Rules []fusion.RuleStatus `json:"rules"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Rules) != 5 {
		t.Fatalf("got %d rules, want 5", len(body.Rules))
	}
}

func TestHandleSeek_MissingParams(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("GET", "/seek", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSeek_ValidRequest(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("GET", "/seek?start_ts_ms=0&end_ts_ms=1000", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var resp relay.SeekResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.SchemaVersion != "1.0.0" {
		t.Fatalf("schema_version = %q, want 1.0.0", resp.SchemaVersion)
	}
}

func TestHandleSeek_RangeTooLarge(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("GET", "/seek?start_ts_ms=0&end_ts_ms=100000000000", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var serr relay.SeekError
	if err := json.Unmarshal(rec.Body.Bytes(), &serr); err != nil {
		t.Fatal(err)
	}
	if serr.Code != relay.ErrCodeRangeTooLarge {
		t.Fatalf("code = %q, want %q", serr.Code, relay.ErrCodeRangeTooLarge)
	}
}

func TestHandleSeek_InvalidLayerName(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("GET", "/seek?start_ts_ms=0&end_ts_ms=1000&layers=not_a_layer", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
