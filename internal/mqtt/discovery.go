package mqtt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/GaiaForge/beehive-monitoring/internal/version"
)

// nonAlphanumeric matches any character that is not alphanumeric or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// DiscoveryConfig holds a single HA MQTT discovery payload.
type DiscoveryConfig struct {
	Topic   string // Full MQTT topic (homeassistant/...)
	Payload []byte // JSON-encoded config (empty = remove)
	Retain  bool   // Discovery configs should always be retained
}

// HADevice is the "device" block in HA discovery payloads.
type HADevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model,omitempty"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// SensorConfig is the HA discovery payload for sensor.
type SensorConfig struct {
	Name              string   `json:"name"`
	ObjectID          string   `json:"object_id"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	DeviceClass       string   `json:"device_class,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	Icon              string   `json:"icon,omitempty"`
	Device            HADevice `json:"device"`
}

// BinarySensorConfig is the HA discovery payload for binary_sensor.
type BinarySensorConfig struct {
	Name        string   `json:"name"`
	ObjectID    string   `json:"object_id"`
	UniqueID    string   `json:"unique_id"`
	StateTopic  string   `json:"state_topic"`
	DeviceClass string   `json:"device_class,omitempty"`
	PayloadOn   string   `json:"payload_on"`
	PayloadOff  string   `json:"payload_off"`
	Icon        string   `json:"icon,omitempty"`
	Device      HADevice `json:"device"`
}

// SafeObjectID sanitizes a string for use as an HA object_id.
// Replaces any non-alphanumeric character (except underscore) with underscore,
// lowercases, and trims leading/trailing underscores.
func SafeObjectID(s string) string {
	s = strings.ToLower(s)
	s = nonAlphanumeric.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}

// buildHADevice creates the HA device block for a monitored hive.
func buildHADevice(hiveID string) HADevice {
	return HADevice{
		Identifiers:  []string{"hivemon_" + hiveID},
		Name:         "Hive " + hiveID,
		Model:        "hivemon sensor unit",
		Manufacturer: "GaiaForge",
		SWVersion:    version.Short(),
	}
}

// hiveSensor describes one HA sensor entity derived from a reading channel.
type hiveSensor struct {
	channel     string
	name        string
	deviceClass string
	unit        string
	icon        string
}

var hiveSensors = []hiveSensor{
	{channel: "temperature", name: "Brood Temperature", deviceClass: "temperature", unit: "°C"},
	{channel: "humidity", name: "Humidity", deviceClass: "humidity", unit: "%"},
	{channel: "pressure", name: "Pressure", deviceClass: "atmospheric_pressure", unit: "hPa"},
	{channel: "weight", name: "Hive Weight", deviceClass: "weight", unit: "kg", icon: "mdi:scale"},
	{channel: "battery", name: "Battery Voltage", deviceClass: "voltage", unit: "V"},
}

// BuildHiveDiscoveryConfigs creates HA discovery config payloads for a hive:
// one sensor per reading channel plus an anomaly binary_sensor.
func BuildHiveDiscoveryConfigs(hiveID, topicPrefix, haPrefix string) []DiscoveryConfig {
	if hiveID == "" {
		return nil
	}

	safeID := SafeObjectID(hiveID)
	haDevice := buildHADevice(hiveID)
	stateBase := topicPrefix + "/hive/" + hiveID

	configs := make([]DiscoveryConfig, 0, len(hiveSensors)+1)

	for _, s := range hiveSensors {
		cfg := SensorConfig{
			Name:              s.name,
			ObjectID:          "hivemon_" + safeID + "_" + s.channel,
			UniqueID:          "hivemon_" + safeID + "_" + s.channel,
			StateTopic:        stateBase + "/" + s.channel,
			DeviceClass:       s.deviceClass,
			StateClass:        "measurement",
			UnitOfMeasurement: s.unit,
			Icon:              s.icon,
			Device:            haDevice,
		}
		payload, err := json.Marshal(cfg)
		if err != nil {
			continue
		}
		configs = append(configs, DiscoveryConfig{
			Topic:   fmt.Sprintf("%s/sensor/hivemon_%s/%s/config", haPrefix, safeID, s.channel),
			Payload: payload,
			Retain:  true,
		})
	}

	anomalyCfg := BinarySensorConfig{
		Name:        "Anomaly",
		ObjectID:    "hivemon_" + safeID + "_anomaly",
		UniqueID:    "hivemon_" + safeID + "_anomaly",
		StateTopic:  stateBase + "/anomaly",
		DeviceClass: "problem",
		PayloadOn:   "ON",
		PayloadOff:  "OFF",
		Icon:        "mdi:bee",
		Device:      haDevice,
	}
	if payload, err := json.Marshal(anomalyCfg); err == nil {
		configs = append(configs, DiscoveryConfig{
			Topic:   fmt.Sprintf("%s/binary_sensor/hivemon_%s/anomaly/config", haPrefix, safeID),
			Payload: payload,
			Retain:  true,
		})
	}

	return configs
}
