package sampler

import "time"

// Config holds sampler configuration.
type Config struct {
	// HiveID labels every reading produced by this daemon.
	HiveID string `mapstructure:"hive_id"`
	// Interval between measurement cycles.
	Interval time.Duration `mapstructure:"interval"`
	// Source selects the sensor backend: "simulated" today, hardware
	// sources register themselves under their own names.
	Source string `mapstructure:"source"`

	// ReadingRetention bounds the readings history table.
	ReadingRetention    time.Duration `mapstructure:"reading_retention"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`

	// Simulated source tuning.
	Seed int64 `mapstructure:"seed"`
}

// DefaultConfig returns sampler defaults: one measurement cycle per
// minute from the simulated source.
func DefaultConfig() Config {
	return Config{
		HiveID:              "hive-1",
		Interval:            time.Minute,
		Source:              "simulated",
		ReadingRetention:    90 * 24 * time.Hour,
		MaintenanceInterval: time.Hour,
	}
}
