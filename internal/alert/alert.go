package alert

import "time"

// Alert severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert conditions. One active alert exists per (hive, condition).
const (
	CondTempLow         = "temperature_low"
	CondTempHigh        = "temperature_high"
	CondHumidityLow     = "humidity_low"
	CondHumidityHigh    = "humidity_high"
	CondAudioAnomaly    = "audio_anomaly"
	CondWeightAnomaly   = "weight_anomaly"
	CondAnomaly         = "anomaly"
	CondBatteryLow      = "battery_low"
	CondBatteryCritical = "battery_critical"
)

// Alert is an active or resolved alert condition for one hive.
type Alert struct {
	ID          string     `json:"id"`
	HiveID      string     `json:"hive_id"`
	Condition   string     `json:"condition"`
	Severity    string     `json:"severity"`
	Message     string     `json:"message"`
	Value       float64    `json:"value"`
	Threshold   float64    `json:"threshold"`
	TriggeredAt time.Time  `json:"triggered_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}
