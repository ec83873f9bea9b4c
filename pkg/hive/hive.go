// Package hive provides public SDK types for the GaiaForge hive monitoring
// system: sensor readings, detected anomalies, and learned-baseline views
// exchanged between plugins and exposed over the API.
package hive

import (
	"math"
	"time"
)

// NumAudioBands is the number of audio frequency bands the acquisition
// layer reduces the microphone signal to.
const NumAudioBands = 4

// Audio band indices. Band ranges follow the acquisition firmware:
// worker hum 200-300 Hz, queen piping 300-600 Hz, swarm agitation
// 600-1000 Hz, alarm/disturbance 1000-3000 Hz.
const (
	BandHum = iota
	BandQueen
	BandSwarm
	BandAlarm
)

// Motion is one accelerometer/gyro/magnetometer sample from the hive body.
type Motion struct {
	AccelX float64 `json:"accel_x"` // G
	AccelY float64 `json:"accel_y"` // G
	AccelZ float64 `json:"accel_z"` // G
	GyroX  float64 `json:"gyro_x"`  // deg/s
	GyroY  float64 `json:"gyro_y"`  // deg/s
	GyroZ  float64 `json:"gyro_z"`  // deg/s
}

// Magnitude returns the acceleration vector magnitude in G.
func (m Motion) Magnitude() float64 {
	return math.Sqrt(m.AccelX*m.AccelX + m.AccelY*m.AccelY + m.AccelZ*m.AccelZ)
}

// Reading is one complete measurement cycle across all sensor channels.
type Reading struct {
	HiveID      string                 `json:"hive_id"`
	Temperature float64                `json:"temperature"` // °C, brood nest
	Humidity    float64                `json:"humidity"`    // %RH
	Pressure    float64                `json:"pressure"`    // hPa
	Weight      float64                `json:"weight"`      // kg, full hive
	Audio       [NumAudioBands]float64 `json:"audio"`       // normalized band energy
	Motion      Motion                 `json:"motion"`
	LightLevel  float64                `json:"light_level"`   // lux, inside the hive body
	BatteryVolt float64                `json:"battery_volt"`  // V
	Timestamp   time.Time              `json:"timestamp"`
}

// Channel names used in anomaly records and API responses.
const (
	ChannelTemperature = "temperature"
	ChannelHumidity    = "humidity"
	ChannelPressure    = "pressure"
	ChannelWeight      = "weight"
	ChannelAudio       = "audio"
	ChannelBattery     = "battery"
)

// Anomaly represents a reading classified as abnormal for this colony.
type Anomaly struct {
	ID         string    `json:"id"`
	HiveID     string    `json:"hive_id"`
	Channel    string    `json:"channel"`
	Value      float64   `json:"value"`
	Expected   float64   `json:"expected"`  // baseline + pattern offset
	Deviation  float64   `json:"deviation"` // z-score against the learned stddev
	Band       int       `json:"band"` // audio band index, -1 otherwise
	DetectedAt time.Time `json:"detected_at"`
	Description string   `json:"description"`
}

// BaselineSnapshot is a read-only view of the learned per-channel baseline.
type BaselineSnapshot struct {
	TempMean         float64                `json:"temp_mean"`
	TempStdDev       float64                `json:"temp_std_dev"`
	HumidityMean     float64                `json:"humidity_mean"`
	HumidityStdDev   float64                `json:"humidity_std_dev"`
	PressureMean     float64                `json:"pressure_mean"`
	PressureStdDev   float64                `json:"pressure_std_dev"`
	WeightMean       float64                `json:"weight_mean"`
	WeightStdDev     float64                `json:"weight_std_dev"`
	WeightDailyDelta float64                `json:"weight_daily_delta"`
	AudioEnergy      [NumAudioBands]float64 `json:"audio_energy"`
	AudioStdDev      [NumAudioBands]float64 `json:"audio_std_dev"`
}

// Range is a low/high alert threshold pair.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Thresholds bundles the adapted alert thresholds derived from the baseline.
// Only meaningful once the baseline is established; callers fall back to
// static configured thresholds before that.
type Thresholds struct {
	Temperature Range                  `json:"temperature"`
	Humidity    Range                  `json:"humidity"`
	Audio       [NumAudioBands]float64 `json:"audio"`
}

// ThresholdProvider is implemented by plugins that derive alert
// thresholds from learned colony behavior. The bool result reports
// whether the thresholds are learned or still the static defaults.
type ThresholdProvider interface {
	CurrentThresholds(hour int) (Thresholds, bool)
}

// LearningStatus reports the engine's learning phase for status APIs.
type LearningStatus struct {
	BaselineEstablished bool      `json:"baseline_established"`
	Progress            int       `json:"progress"` // 0-100
	SampleCount         uint64    `json:"sample_count"`
	Season              int       `json:"season"` // 0=winter 1=spring 2=summer 3=fall
	LastSavedAt         time.Time `json:"last_saved_at,omitempty"`
}
