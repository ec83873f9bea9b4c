package sampler

import (
	"context"
	"testing"
)

func TestSimulatedSourceProducesPlausibleReadings(t *testing.T) {
	src := NewSimulatedSource("hive-1", 1)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		r, err := src.Read(ctx)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if r.HiveID != "hive-1" {
			t.Fatalf("hive id = %q", r.HiveID)
		}
		if r.Temperature < 25 || r.Temperature > 45 {
			t.Fatalf("temperature %g implausible", r.Temperature)
		}
		if r.Humidity < 20 || r.Humidity > 95 {
			t.Fatalf("humidity %g implausible", r.Humidity)
		}
		if r.Weight < 30 || r.Weight > 60 {
			t.Fatalf("weight %g implausible", r.Weight)
		}
		for b, e := range r.Audio {
			if e < 0 || e > 1 {
				t.Fatalf("audio band %d energy %g outside [0,1]", b, e)
			}
		}
		if r.BatteryVolt < 3.0 || r.BatteryVolt > 4.2 {
			t.Fatalf("battery %g outside operating range", r.BatteryVolt)
		}
		if r.Timestamp.IsZero() {
			t.Fatal("zero timestamp")
		}
	}
}

func TestNewSourceSelection(t *testing.T) {
	cfg := DefaultConfig()

	if _, err := NewSource(cfg); err != nil {
		t.Fatalf("default source: %v", err)
	}

	cfg.Source = "simulated"
	if _, err := NewSource(cfg); err != nil {
		t.Fatalf("simulated source: %v", err)
	}

	cfg.Source = "bosch-bme280"
	if _, err := NewSource(cfg); err == nil {
		t.Fatal("unknown source accepted")
	}
}
