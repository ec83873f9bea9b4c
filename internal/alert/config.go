package alert

import "time"

// WebhookConfig holds configuration for webhook notification delivery.
type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Secret  string            `mapstructure:"secret"`
	Headers map[string]string `mapstructure:"headers"`
}

// Config holds alerting configuration.
type Config struct {
	// ConsecutiveBreaches is how many readings in a row must breach a
	// threshold before an alert triggers. Filters sensor glitches.
	ConsecutiveBreaches int `mapstructure:"consecutive_breaches"`

	// Static environmental thresholds, used until the learning plugin
	// has an established baseline.
	TempAlertLow  float64 `mapstructure:"temp_alert_low"`
	TempAlertHigh float64 `mapstructure:"temp_alert_high"`
	HumAlertLow   float64 `mapstructure:"hum_alert_low"`
	HumAlertHigh  float64 `mapstructure:"hum_alert_high"`

	// Battery thresholds. Below critical the field unit is about to die.
	BatteryLowVolt      float64 `mapstructure:"battery_low_volt"`
	BatteryCriticalVolt float64 `mapstructure:"battery_critical_volt"`

	// Webhook notification target. Empty URL disables delivery.
	Webhook WebhookConfig `mapstructure:"webhook"`

	// NotifyRatePerMinute caps outbound notifications; NotifyBurst is
	// the token bucket size.
	NotifyRatePerMinute float64 `mapstructure:"notify_rate_per_minute"`
	NotifyBurst         int     `mapstructure:"notify_burst"`

	// Housekeeping for resolved alert history.
	AlertRetention      time.Duration `mapstructure:"alert_retention"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
}

// DefaultConfig returns alerting defaults matching the field-tuned
// monitor behavior.
func DefaultConfig() Config {
	return Config{
		ConsecutiveBreaches: 3,

		TempAlertLow:  30.0,
		TempAlertHigh: 38.0,
		HumAlertLow:   50.0,
		HumAlertHigh:  70.0,

		BatteryLowVolt:      3.5,
		BatteryCriticalVolt: 3.2,

		NotifyRatePerMinute: 6,
		NotifyBurst:         3,

		AlertRetention:      90 * 24 * time.Hour,
		MaintenanceInterval: time.Hour,
	}
}
