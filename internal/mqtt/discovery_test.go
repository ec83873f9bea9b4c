package mqtt

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSafeObjectID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple id", "hive-1", "hive_1"},
		{"UUID", "550e8400-e29b-41d4-a716-446655440000", "550e8400_e29b_41d4_a716_446655440000"},
		{"already clean", "northhive", "northhive"},
		{"uppercase", "NorthHive", "northhive"},
		{"leading special chars", "---test", "test"},
		{"trailing special chars", "test---", "test"},
		{"empty string", "", "unknown"},
		{"only special chars", "---", "unknown"},
		{"mixed special", "hive@field#1", "hive_field_1"},
		{"underscores preserved", "hive_01", "hive_01"},
		{"spaces", "north hive", "north_hive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SafeObjectID(tt.input)
			if got != tt.want {
				t.Errorf("SafeObjectID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBuildHiveDiscoveryConfigs(t *testing.T) {
	configs := BuildHiveDiscoveryConfigs("hive-1", "hivemon", "homeassistant")

	// Five channel sensors plus the anomaly binary_sensor.
	if len(configs) != 6 {
		t.Fatalf("configs length = %d, want 6", len(configs))
	}

	for _, cfg := range configs {
		if !cfg.Retain {
			t.Errorf("discovery config %q not retained", cfg.Topic)
		}
		if !strings.HasPrefix(cfg.Topic, "homeassistant/") {
			t.Errorf("topic %q missing homeassistant prefix", cfg.Topic)
		}
		if !strings.HasSuffix(cfg.Topic, "/config") {
			t.Errorf("topic %q missing /config suffix", cfg.Topic)
		}
	}

	// First config is the temperature sensor.
	var temp SensorConfig
	if err := json.Unmarshal(configs[0].Payload, &temp); err != nil {
		t.Fatalf("decode temperature config: %v", err)
	}
	if temp.DeviceClass != "temperature" {
		t.Errorf("device_class = %q, want temperature", temp.DeviceClass)
	}
	if temp.UnitOfMeasurement != "°C" {
		t.Errorf("unit = %q, want °C", temp.UnitOfMeasurement)
	}
	if temp.StateTopic != "hivemon/hive/hive-1/temperature" {
		t.Errorf("state_topic = %q", temp.StateTopic)
	}
	if temp.UniqueID != "hivemon_hive_1_temperature" {
		t.Errorf("unique_id = %q", temp.UniqueID)
	}
	if len(temp.Device.Identifiers) != 1 || temp.Device.Identifiers[0] != "hivemon_hive-1" {
		t.Errorf("device identifiers = %v", temp.Device.Identifiers)
	}

	// Last config is the anomaly binary_sensor.
	var anomaly BinarySensorConfig
	if err := json.Unmarshal(configs[len(configs)-1].Payload, &anomaly); err != nil {
		t.Fatalf("decode anomaly config: %v", err)
	}
	if anomaly.DeviceClass != "problem" {
		t.Errorf("anomaly device_class = %q, want problem", anomaly.DeviceClass)
	}
	if anomaly.PayloadOn != "ON" || anomaly.PayloadOff != "OFF" {
		t.Errorf("anomaly payloads = %q/%q", anomaly.PayloadOn, anomaly.PayloadOff)
	}
	if anomaly.StateTopic != "hivemon/hive/hive-1/anomaly" {
		t.Errorf("anomaly state_topic = %q", anomaly.StateTopic)
	}
}

func TestBuildHiveDiscoveryConfigs_EmptyHiveID(t *testing.T) {
	if configs := BuildHiveDiscoveryConfigs("", "hivemon", "homeassistant"); configs != nil {
		t.Errorf("configs = %v, want nil for empty hive ID", configs)
	}
}

func TestBuildHiveDiscoveryConfigs_CustomPrefixes(t *testing.T) {
	configs := BuildHiveDiscoveryConfigs("hive-1", "apiary/east", "ha")
	if len(configs) == 0 {
		t.Fatal("no configs")
	}
	if !strings.HasPrefix(configs[0].Topic, "ha/sensor/") {
		t.Errorf("topic = %q, want ha/sensor/ prefix", configs[0].Topic)
	}
	var cfg SensorConfig
	if err := json.Unmarshal(configs[0].Payload, &cfg); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if !strings.HasPrefix(cfg.StateTopic, "apiary/east/hive/hive-1/") {
		t.Errorf("state_topic = %q", cfg.StateTopic)
	}
}
