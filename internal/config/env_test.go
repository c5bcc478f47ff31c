package config

import (
	"strings"
	"testing"
	"time"
)

// setEnvs sets multiple env vars via t.Setenv, which restores them when the
// test ends.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func TestLoadEnvConfig_Defaults(t *testing.T) {
	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Directories
	assertEqual(t, "StateDir", cfg.StateDir, "/var/lib/harpy")
	assertEqual(t, "CacheDir", cfg.CacheDir, "/var/cache/harpy")
	assertEqual(t, "LogDir", cfg.LogDir, "/var/log/harpy")
	assertEqual(t, "ListenAddress", cfg.ListenAddress, "0.0.0.0")

	// Ports
	assertEqual(t, "HTTPPort", cfg.HTTPPort, 8080)
	assertEqual(t, "WSPort", cfg.WSPort, 8081)
	assertEqual(t, "NodePort", cfg.NodePort, 8082)

	// Persistence
	assertEqual(t, "DatabaseURL", cfg.DatabaseURL, "")
	assertEqual(t, "RedisURL", cfg.RedisURL, "")

	// Fusion
	assertEqual(t, "FusionH3Resolution", cfg.FusionH3Resolution, 8)
	assertEqual(t, "FusionAlertDedupTTL", cfg.FusionAlertDedupTTL, 300*time.Second)
	assertEqual(t, "FusionProximityMeters", cfg.FusionProximityMeters, 5000.0)
	assertEqual(t, "FusionSpeedMpsLimit", cfg.FusionSpeedMpsLimit, 300.0)
	assertEqual(t, "FusionAltMetersLimit", cfg.FusionAltMetersLimit, 20000.0)

	// Snapshot / retention
	assertEqual(t, "SnapshotIntervalSecs", cfg.SnapshotIntervalSecs, 300)
	assertEqual(t, "RetentionSweepSchedule", cfg.RetentionSweepSchedule, "17 3 * * *")
	assertEqual(t, "DeltaLogRetentionHours", cfg.DeltaLogRetentionHours, 168)

	// Provider polling
	assertEqual(t, "adsb_opensky poll interval", cfg.ProviderPollIntervalSecs["adsb_opensky"], 15)
	assertEqual(t, "tle_celestrak poll interval", cfg.ProviderPollIntervalSecs["tle_celestrak"], 3600)
	assertEqual(t, "ProviderRateLimitFloorSecs", cfg.ProviderRateLimitFloorSecs, 300)
	assertEqual(t, "ProviderFetchTimeout", cfg.ProviderFetchTimeout, 25*time.Second)
	assertEqual(t, "EnableRealProviders", cfg.EnableRealProviders, false)

	// HTTP
	assertEqual(t, "APIMaxBodyBytes", cfg.APIMaxBodyBytes, int64(1<<20))

	// Relay
	assertEqual(t, "NormalQueueCapacity", cfg.NormalQueueCapacity, 10)
	assertEqual(t, "HighQueueCapacity", cfg.HighQueueCapacity, 4096)
}

func TestLoadEnvConfig_EnvOverrides(t *testing.T) {
	envs := map[string]string{
		"HARPY_STATE_DIR":              "/tmp/state",
		"HARPY_LISTEN_ADDRESS":         "127.0.0.1",
		"HTTP_PORT":                    "9000",
		"WS_PORT":                      "9001",
		"DATABASE_URL":                 "file:/tmp/harpy.db",
		"REDIS_URL":                    "redis://localhost:6379",
		"FUSION_H3_RESOLUTION":         "6",
		"FUSION_ALERT_DEDUP_TTL_MS":    "60000",
		"SNAPSHOT_INTERVAL_SECS":       "60",
		"ADSB_OPENSKY_POLL_INTERVAL_SECS": "30",
		"ENABLE_REAL_PROVIDERS":        "true",
	}
	setEnvs(t, envs)

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertEqual(t, "StateDir", cfg.StateDir, "/tmp/state")
	assertEqual(t, "ListenAddress", cfg.ListenAddress, "127.0.0.1")
	assertEqual(t, "HTTPPort", cfg.HTTPPort, 9000)
	assertEqual(t, "WSPort", cfg.WSPort, 9001)
	assertEqual(t, "DatabaseURL", cfg.DatabaseURL, "file:/tmp/harpy.db")
	assertEqual(t, "RedisURL", cfg.RedisURL, "redis://localhost:6379")
	assertEqual(t, "FusionH3Resolution", cfg.FusionH3Resolution, 6)
	assertEqual(t, "FusionAlertDedupTTL", cfg.FusionAlertDedupTTL, 60*time.Second)
	assertEqual(t, "SnapshotIntervalSecs", cfg.SnapshotIntervalSecs, 60)
	assertEqual(t, "adsb_opensky poll interval", cfg.ProviderPollIntervalSecs["adsb_opensky"], 30)
	assertEqual(t, "EnableRealProviders", cfg.EnableRealProviders, true)
}

func TestLoadEnvConfig_EmptyListenAddress(t *testing.T) {
	t.Setenv("HARPY_LISTEN_ADDRESS", "   ")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for empty listen address")
	}
	assertContains(t, err.Error(), "HARPY_LISTEN_ADDRESS")
}

func TestLoadEnvConfig_InvalidPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "99999")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for port out of range")
	}
	assertContains(t, err.Error(), "HTTP_PORT")
}

func TestLoadEnvConfig_InvalidPortNotNumber(t *testing.T) {
	t.Setenv("WS_PORT", "abc")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for non-numeric port")
	}
	assertContains(t, err.Error(), "WS_PORT")
}

func TestLoadEnvConfig_InvalidH3Resolution(t *testing.T) {
	t.Setenv("FUSION_H3_RESOLUTION", "16")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for out-of-range H3 resolution")
	}
	assertContains(t, err.Error(), "FUSION_H3_RESOLUTION")
}

func TestLoadEnvConfig_DedupTTLTooSmall(t *testing.T) {
	t.Setenv("FUSION_ALERT_DEDUP_TTL_MS", "500")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for sub-second dedup ttl")
	}
	assertContains(t, err.Error(), "FUSION_ALERT_DEDUP_TTL_MS")
}

func TestLoadEnvConfig_InvalidRetentionSweepSchedule(t *testing.T) {
	t.Setenv("HARPY_RETENTION_SWEEP_SCHEDULE", "not-a-cron")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for invalid retention sweep schedule")
	}
	assertContains(t, err.Error(), "HARPY_RETENTION_SWEEP_SCHEDULE")
}

func TestLoadEnvConfig_NegativeValue(t *testing.T) {
	t.Setenv("SNAPSHOT_INTERVAL_SECS", "-5")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for negative value")
	}
	assertContains(t, err.Error(), "SNAPSHOT_INTERVAL_SECS")
}

func TestLoadEnvConfig_InvalidDuration(t *testing.T) {
	t.Setenv("HARPY_PROVIDER_FETCH_TIMEOUT", "not-a-duration")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	assertContains(t, err.Error(), "HARPY_PROVIDER_FETCH_TIMEOUT")
}

func TestLoadEnvConfig_InvalidFusionFloat(t *testing.T) {
	t.Setenv("FUSION_PROXIMITY_METERS", "not-a-float")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for invalid float")
	}
	assertContains(t, err.Error(), "FUSION_PROXIMITY_METERS")
}

func TestLoadEnvConfig_ZeroAPIMaxBodyBytes(t *testing.T) {
	t.Setenv("HARPY_API_MAX_BODY_BYTES", "0")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for non-positive API max body bytes")
	}
	assertContains(t, err.Error(), "HARPY_API_MAX_BODY_BYTES")
}

// --- test helpers ---

func assertEqual[T comparable](t *testing.T, name string, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", name, got, want)
	}
}

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}
