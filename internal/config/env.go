// Package config handles environment-based configuration loading and runtime config models.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// EnvConfig holds all environment-variable-driven settings (not hot-updatable).
type EnvConfig struct {
	// Directories
	StateDir string
	CacheDir string
	LogDir   string

	// Network / ports
	ListenAddress string
	HTTPPort      int
	WSPort        int
	NodePort      int

	// Persistence
	DatabaseURL string // read from DATABASE_URL but not consulted: SQLite under StateDir/CacheDir is always opened, so an empty value does not disable persistence
	RedisURL    string // empty disables the redis-backed bus (in-process only)

	// Fusion
	FusionH3Resolution    int
	FusionAlertDedupTTL   time.Duration
	FusionProximityMeters float64
	FusionSpeedMpsLimit   float64
	FusionAltMetersLimit  float64

	// Snapshot / retention
	SnapshotIntervalSecs   int
	RetentionSweepSchedule string
	DeltaLogRetentionHours int

	// Provider polling
	ProviderPollIntervalSecs   map[string]int
	ProviderRateLimitFloorSecs int
	ProviderFetchTimeout       time.Duration
	EnableRealProviders        bool

	// HTTP
	APIMaxBodyBytes int64

	// Relay
	NormalQueueCapacity int
	HighQueueCapacity   int
}

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// Returns an error if any value is invalid; callers treat this as fatal at
// startup.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Directories ---
	cfg.StateDir = envStr("HARPY_STATE_DIR", "/var/lib/harpy")
	cfg.CacheDir = envStr("HARPY_CACHE_DIR", "/var/cache/harpy")
	cfg.LogDir = envStr("HARPY_LOG_DIR", "/var/log/harpy")
	cfg.ListenAddress = strings.TrimSpace(envStr("HARPY_LISTEN_ADDRESS", "0.0.0.0"))

	// --- Ports ---
	cfg.HTTPPort = envInt("HTTP_PORT", 8080, &errs)
	cfg.WSPort = envInt("WS_PORT", 8081, &errs)
	cfg.NodePort = envInt("NODE_PORT", 8082, &errs)

	// --- Persistence ---
	cfg.DatabaseURL = envStr("DATABASE_URL", "")
	cfg.RedisURL = envStr("REDIS_URL", "")

	// --- Fusion ---
	cfg.FusionH3Resolution = envInt("FUSION_H3_RESOLUTION", 8, &errs)
	cfg.FusionAlertDedupTTL = time.Duration(envInt("FUSION_ALERT_DEDUP_TTL_MS", 300_000, &errs)) * time.Millisecond
	cfg.FusionProximityMeters = envFloat("FUSION_PROXIMITY_METERS", 5000.0, &errs)
	cfg.FusionSpeedMpsLimit = envFloat("FUSION_SPEED_ANOMALY_MPS", 300.0, &errs)
	cfg.FusionAltMetersLimit = envFloat("FUSION_ALTITUDE_ANOMALY_METERS", 20000.0, &errs)

	// --- Snapshot / retention ---
	cfg.SnapshotIntervalSecs = envInt("SNAPSHOT_INTERVAL_SECS", 300, &errs)
	cfg.RetentionSweepSchedule = envStr("HARPY_RETENTION_SWEEP_SCHEDULE", "17 3 * * *")
	cfg.DeltaLogRetentionHours = envInt("HARPY_DELTA_LOG_RETENTION_HOURS", 168, &errs)

	// --- Provider polling ---
	cfg.ProviderPollIntervalSecs = map[string]int{
		"adsb_opensky":      envInt("ADSB_OPENSKY_POLL_INTERVAL_SECS", 15, &errs),
		"tle_celestrak":     envInt("TLE_CELESTRAK_POLL_INTERVAL_SECS", 3600, &errs),
		"radar_nexrad":      envInt("RADAR_NEXRAD_POLL_INTERVAL_SECS", 300, &errs),
		"seismic_usgs":      envInt("SEISMIC_USGS_POLL_INTERVAL_SECS", 60, &errs),
		"weather_nws":       envInt("WEATHER_NWS_POLL_INTERVAL_SECS", 600, &errs),
		"open_data_catalog": envInt("OPEN_DATA_CATALOG_POLL_INTERVAL_SECS", 900, &errs),
	}
	cfg.ProviderRateLimitFloorSecs = envInt("HARPY_PROVIDER_RATE_LIMIT_FLOOR_SECS", 300, &errs)
	cfg.ProviderFetchTimeout = envDuration("HARPY_PROVIDER_FETCH_TIMEOUT", 25*time.Second, &errs)
	cfg.EnableRealProviders = envBool("ENABLE_REAL_PROVIDERS", false)

	// --- HTTP ---
	cfg.APIMaxBodyBytes = int64(envInt("HARPY_API_MAX_BODY_BYTES", 1<<20, &errs))

	// --- Relay ---
	cfg.NormalQueueCapacity = envInt("HARPY_RELAY_NORMAL_QUEUE_CAPACITY", 10, &errs)
	cfg.HighQueueCapacity = envInt("HARPY_RELAY_HIGH_QUEUE_CAPACITY", 4096, &errs)

	// --- Validation ---
	if cfg.ListenAddress == "" {
		errs = append(errs, "HARPY_LISTEN_ADDRESS must not be empty")
	}
	validatePort("HTTP_PORT", cfg.HTTPPort, &errs)
	validatePort("WS_PORT", cfg.WSPort, &errs)
	validatePort("NODE_PORT", cfg.NodePort, &errs)

	if cfg.FusionH3Resolution < 0 || cfg.FusionH3Resolution > 15 {
		errs = append(errs, fmt.Sprintf("FUSION_H3_RESOLUTION: must be 0-15, got %d", cfg.FusionH3Resolution))
	}
	if cfg.FusionAlertDedupTTL < time.Second {
		errs = append(errs, "FUSION_ALERT_DEDUP_TTL_MS: must be at least 1000 (1s)")
	}
	validatePositiveFloat("FUSION_PROXIMITY_METERS", cfg.FusionProximityMeters, &errs)
	validatePositiveFloat("FUSION_SPEED_ANOMALY_MPS", cfg.FusionSpeedMpsLimit, &errs)
	validatePositiveFloat("FUSION_ALTITUDE_ANOMALY_METERS", cfg.FusionAltMetersLimit, &errs)

	validatePositive("SNAPSHOT_INTERVAL_SECS", cfg.SnapshotIntervalSecs, &errs)
	if _, err := cron.ParseStandard(cfg.RetentionSweepSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("HARPY_RETENTION_SWEEP_SCHEDULE: invalid cron expression %q: %v", cfg.RetentionSweepSchedule, err))
	}
	validatePositive("HARPY_DELTA_LOG_RETENTION_HOURS", cfg.DeltaLogRetentionHours, &errs)

	for name, secs := range cfg.ProviderPollIntervalSecs {
		validatePositive(name+"_POLL_INTERVAL_SECS", secs, &errs)
	}
	validatePositive("HARPY_PROVIDER_RATE_LIMIT_FLOOR_SECS", cfg.ProviderRateLimitFloorSecs, &errs)
	if cfg.ProviderFetchTimeout <= 0 {
		errs = append(errs, "HARPY_PROVIDER_FETCH_TIMEOUT must be positive")
	}

	validatePositive("HARPY_API_MAX_BODY_BYTES", int(cfg.APIMaxBodyBytes), &errs)
	validatePositive("HARPY_RELAY_NORMAL_QUEUE_CAPACITY", cfg.NormalQueueCapacity, &errs)
	validatePositive("HARPY_RELAY_HIGH_QUEUE_CAPACITY", cfg.HighQueueCapacity, &errs)

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envFloat(key string, defaultVal float64, errs *[]string) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid float %q", key, v))
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}

func validatePositiveFloat(name string, value float64, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %v", name, value))
	}
}
