package config

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewDefaultRuntimeConfig(t *testing.T) {
	cfg := NewDefaultRuntimeConfig()

	if cfg.FusionH3Resolution != 8 {
		t.Errorf("FusionH3Resolution: got %d, want 8", cfg.FusionH3Resolution)
	}
	if time.Duration(cfg.FusionAlertDedupTTL) != 5*time.Minute {
		t.Errorf("FusionAlertDedupTTL: got %v, want 5m", time.Duration(cfg.FusionAlertDedupTTL))
	}
	if cfg.CircuitFailureThreshold != 3 {
		t.Errorf("CircuitFailureThreshold: got %d, want 3", cfg.CircuitFailureThreshold)
	}
	if time.Duration(cfg.FreshAgeMax) != 60*time.Second {
		t.Errorf("FreshAgeMax: got %v, want 60s", time.Duration(cfg.FreshAgeMax))
	}
	if cfg.PlaybackMinSpeed != 0.25 || cfg.PlaybackMaxSpeed != 8.0 {
		t.Errorf("playback speed bounds: got [%v,%v], want [0.25,8.0]", cfg.PlaybackMinSpeed, cfg.PlaybackMaxSpeed)
	}
	if cfg.RelayNormalQueueCapacity != 10 {
		t.Errorf("RelayNormalQueueCapacity: got %d, want 10", cfg.RelayNormalQueueCapacity)
	}
}

func TestRuntimeConfig_JSONRoundTrip(t *testing.T) {
	original := NewDefaultRuntimeConfig()

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var decoded RuntimeConfig
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	if decoded.FusionH3Resolution != original.FusionH3Resolution {
		t.Errorf("FusionH3Resolution: got %d, want %d", decoded.FusionH3Resolution, original.FusionH3Resolution)
	}
	if decoded.RetentionSweepSchedule != original.RetentionSweepSchedule {
		t.Errorf("RetentionSweepSchedule: got %q, want %q", decoded.RetentionSweepSchedule, original.RetentionSweepSchedule)
	}
}

func TestDuration_JSON(t *testing.T) {
	d := Duration(5 * time.Minute)

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if string(data) != `"5m0s"` {
		t.Errorf("marshal: got %s, want %q", data, "5m0s")
	}

	var decoded Duration
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if time.Duration(decoded) != 5*time.Minute {
		t.Errorf("unmarshal: got %v, want 5m", time.Duration(decoded))
	}
}

func TestDuration_JSONInvalid(t *testing.T) {
	var d Duration
	err := json.Unmarshal([]byte(`"not-a-duration"`), &d)
	if err == nil {
		t.Fatal("expected error for invalid duration string")
	}

	err = json.Unmarshal([]byte(`123`), &d)
	if err == nil {
		t.Fatal("expected error for non-string duration")
	}
}

func TestRuntimeConfig_JSONFieldNames(t *testing.T) {
	cfg := NewDefaultRuntimeConfig()
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal to map error: %v", err)
	}

	expectedKeys := []string{
		"fusion_h3_resolution",
		"fusion_alert_dedup_ttl",
		"fusion_proximity_meters",
		"fusion_speed_anomaly_mps",
		"fusion_altitude_anomaly_meters",
		"snapshot_interval",
		"retention_sweep_schedule",
		"delta_log_retention",
		"circuit_failure_threshold",
		"circuit_reset_timeout",
		"fresh_age_max",
		"aging_age_max",
		"stale_age_max",
		"provider_backoff_base",
		"provider_backoff_cap",
		"relay_normal_queue_capacity",
		"relay_high_queue_capacity",
		"playback_tick_interval",
		"playback_min_speed",
		"playback_max_speed",
	}

	for _, key := range expectedKeys {
		if _, ok := m[key]; !ok {
			t.Errorf("missing JSON key: %q", key)
		}
	}
}
