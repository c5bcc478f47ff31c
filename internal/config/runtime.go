package config

import "time"

// RuntimeConfig holds all hot-updatable global settings. Values are
// persisted and swappable at runtime via atomic.Pointer, unlike EnvConfig
// which is fixed for the process lifetime.
type RuntimeConfig struct {
	// Fusion rule thresholds
	FusionH3Resolution        int      `json:"fusion_h3_resolution"`
	FusionAlertDedupTTL       Duration `json:"fusion_alert_dedup_ttl"`
	FusionProximityMeters     float64  `json:"fusion_proximity_meters"`
	FusionSpeedAnomalyMps     float64  `json:"fusion_speed_anomaly_mps"`
	FusionAltitudeAnomalyM    float64  `json:"fusion_altitude_anomaly_meters"`
	FusionLoiteringWindow     Duration `json:"fusion_loitering_window"`
	FusionLoiteringRadiusM    float64  `json:"fusion_loitering_radius_meters"`

	// Snapshot / retention
	SnapshotInterval       Duration `json:"snapshot_interval"`
	RetentionSweepSchedule string   `json:"retention_sweep_schedule"`
	DeltaLogRetention      Duration `json:"delta_log_retention"`

	// Health supervisor
	CircuitFailureThreshold int      `json:"circuit_failure_threshold"`
	CircuitResetTimeout     Duration `json:"circuit_reset_timeout"`
	FreshAgeMax             Duration `json:"fresh_age_max"`
	AgingAgeMax             Duration `json:"aging_age_max"`
	StaleAgeMax             Duration `json:"stale_age_max"`

	// Provider polling
	ProviderBackoffBase     Duration `json:"provider_backoff_base"`
	ProviderBackoffMaxShift int      `json:"provider_backoff_max_shift"`
	ProviderBackoffCap      Duration `json:"provider_backoff_cap"`
	ProviderRateLimitFloor  Duration `json:"provider_rate_limit_floor"`

	// Relay backpressure
	RelayNormalQueueCapacity int `json:"relay_normal_queue_capacity"`
	RelayHighQueueCapacity   int `json:"relay_high_queue_capacity"`

	// Playback
	PlaybackTickInterval Duration `json:"playback_tick_interval"`
	PlaybackMinSpeed     float64  `json:"playback_min_speed"`
	PlaybackMaxSpeed     float64  `json:"playback_max_speed"`
}

// NewDefaultRuntimeConfig returns a RuntimeConfig populated with the default
// values named in the component design.
func NewDefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		FusionH3Resolution:     8,
		FusionAlertDedupTTL:    Duration(5 * time.Minute),
		FusionProximityMeters:  5000.0,
		FusionSpeedAnomalyMps:  300.0,
		FusionAltitudeAnomalyM: 20000.0,
		FusionLoiteringWindow:  Duration(15 * time.Minute),
		FusionLoiteringRadiusM: 1000.0,

		SnapshotInterval:       Duration(300 * time.Second),
		RetentionSweepSchedule: "17 3 * * *",
		DeltaLogRetention:      Duration(168 * time.Hour),

		CircuitFailureThreshold: 3,
		CircuitResetTimeout:     Duration(30 * time.Second),
		FreshAgeMax:             Duration(60 * time.Second),
		AgingAgeMax:             Duration(5 * time.Minute),
		StaleAgeMax:             Duration(10 * time.Minute),

		ProviderBackoffBase:     Duration(5 * time.Second),
		ProviderBackoffMaxShift: 6,
		ProviderBackoffCap:      Duration(30 * time.Minute),
		ProviderRateLimitFloor:  Duration(300 * time.Second),

		RelayNormalQueueCapacity: 10,
		RelayHighQueueCapacity:   4096,

		PlaybackTickInterval: Duration(100 * time.Millisecond),
		PlaybackMinSpeed:     0.25,
		PlaybackMaxSpeed:     8.0,
	}
}
