package learning

import "time"

// Config holds configuration for the adaptive learning engine.
// Defaults mirror the hand-tuned values the firmware shipped with.
type Config struct {
	// StateFile is the binary learning-state checkpoint. MirrorFile is a
	// best-effort JSON copy for inspection; it is never read back.
	StateFile  string `mapstructure:"state_file"`
	MirrorFile string `mapstructure:"mirror_file"`

	// LearnSamplesMin is the number of samples needed before the baseline
	// is considered established.
	LearnSamplesMin int `mapstructure:"learn_samples_min"`
	// UpdateInterval is the number of samples between adaptive baseline blends.
	UpdateInterval int `mapstructure:"update_interval"`
	// SaveInterval is the number of samples between state checkpoints,
	// bounding data loss on power failure.
	SaveInterval int `mapstructure:"save_interval"`
	// AdaptationRate is the EMA rate for baseline blending (0.01-0.1).
	// Audio bands adapt at twice this rate, weight at half.
	AdaptationRate float64 `mapstructure:"adaptation_rate"`
	// SeedSampleCount is the nominal sample weight assigned to estimators
	// seeded from a restored baseline.
	SeedSampleCount int `mapstructure:"seed_sample_count"`

	// Z-score anomaly thresholds per channel.
	TempAnomalyThreshold     float64 `mapstructure:"temp_anomaly_threshold"`
	HumidityAnomalyThreshold float64 `mapstructure:"humidity_anomaly_threshold"`
	WeightAnomalyThreshold   float64 `mapstructure:"weight_anomaly_threshold"`
	// WeightChangeThreshold is the stddev multiple for a sudden
	// reading-to-reading weight change.
	WeightChangeThreshold float64 `mapstructure:"weight_change_threshold"`

	// Static alert thresholds the adapted values are derived from.
	TempAlertLow  float64 `mapstructure:"temp_alert_low"`
	TempAlertHigh float64 `mapstructure:"temp_alert_high"`
	HumAlertLow   float64 `mapstructure:"hum_alert_low"`
	HumAlertHigh  float64 `mapstructure:"hum_alert_high"`

	// Hard survival bounds the adapted thresholds are clamped to.
	MinSafeTemp     float64 `mapstructure:"min_safe_temp"`
	MaxSafeTemp     float64 `mapstructure:"max_safe_temp"`
	MinSafeHumidity float64 `mapstructure:"min_safe_humidity"`
	MaxSafeHumidity float64 `mapstructure:"max_safe_humidity"`

	// MinAudioThreshold floors adapted audio thresholds regardless of learning.
	MinAudioThreshold float64 `mapstructure:"min_audio_threshold"`

	// History housekeeping.
	AnomalyRetention    time.Duration `mapstructure:"anomaly_retention"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
}

// DefaultConfig returns the hand-tuned defaults for a typical colony.
func DefaultConfig() Config {
	return Config{
		StateFile:  "data/learning.state",
		MirrorFile: "data/learning.json",

		LearnSamplesMin: 100,
		UpdateInterval:  50,
		SaveInterval:    20,
		AdaptationRate:  0.05,
		SeedSampleCount: 30,

		TempAnomalyThreshold:     3.0,
		HumidityAnomalyThreshold: 3.0,
		WeightAnomalyThreshold:   3.5,
		WeightChangeThreshold:    2.0,

		TempAlertLow:  30.0,
		TempAlertHigh: 38.0,
		HumAlertLow:   50.0,
		HumAlertHigh:  70.0,

		MinSafeTemp:     25.0,
		MaxSafeTemp:     42.0,
		MinSafeHumidity: 30.0,
		MaxSafeHumidity: 90.0,

		MinAudioThreshold: 0.05,

		AnomalyRetention:    30 * 24 * time.Hour,
		MaintenanceInterval: 1 * time.Hour,
	}
}
