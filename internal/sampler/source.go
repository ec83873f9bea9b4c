package sampler

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/GaiaForge/beehive-monitoring/pkg/hive"
)

// SensorSource produces one complete reading per measurement cycle.
// Hardware implementations talk to the actual sensor bus; the simulated
// source generates plausible colony behavior for development.
type SensorSource interface {
	Read(ctx context.Context) (hive.Reading, error)
	Close() error
}

// NewSource builds the configured sensor source.
func NewSource(cfg Config) (SensorSource, error) {
	switch cfg.Source {
	case "simulated", "":
		return NewSimulatedSource(cfg.HiveID, cfg.Seed), nil
	default:
		return nil, fmt.Errorf("unknown sensor source %q", cfg.Source)
	}
}

// SimulatedSource generates readings for a healthy colony: a warm brood
// nest with a mild diurnal swing, slow nectar gain, and a battery that
// discharges over weeks.
type SimulatedSource struct {
	hiveID string

	mu     sync.Mutex
	rng    *rand.Rand
	weight float64
	volt   float64
}

// NewSimulatedSource creates a simulated colony. A zero seed derives
// one from the clock.
func NewSimulatedSource(hiveID string, seed int64) *SimulatedSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedSource{
		hiveID: hiveID,
		rng:    rand.New(rand.NewSource(seed)),
		weight: 40.0,
		volt:   4.1,
	}
}

// Read implements SensorSource.
func (s *SimulatedSource) Read(_ context.Context) (hive.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	hour := float64(now.Hour()) + float64(now.Minute())/60
	// Peak activity mid-afternoon, trough before dawn.
	diurnal := math.Sin((hour - 6) / 24 * 2 * math.Pi)

	// Foragers bring in nectar during the day; the colony consumes
	// stores slowly overnight.
	if diurnal > 0 {
		s.weight += 0.002 * diurnal * s.rng.Float64()
	} else {
		s.weight -= 0.0005 * s.rng.Float64()
	}
	// Slow discharge with a little solar recovery at midday.
	s.volt -= 0.00002
	if diurnal > 0.5 {
		s.volt += 0.00003
	}
	s.volt = math.Min(4.2, math.Max(3.0, s.volt))

	r := hive.Reading{
		HiveID:      s.hiveID,
		Temperature: 34.5 + 0.8*diurnal + s.rng.NormFloat64()*0.3,
		Humidity:    60.0 - 4.0*diurnal + s.rng.NormFloat64()*1.5,
		Pressure:    1012.0 + s.rng.NormFloat64(),
		Weight:      s.weight + s.rng.NormFloat64()*0.05,
		Audio: [hive.NumAudioBands]float64{
			clamp01(0.55 + 0.1*diurnal + s.rng.NormFloat64()*0.02),
			clamp01(0.35 + s.rng.NormFloat64()*0.02),
			clamp01(0.25 + s.rng.NormFloat64()*0.02),
			clamp01(0.15 + s.rng.NormFloat64()*0.01),
		},
		Motion: hive.Motion{
			AccelX: s.rng.NormFloat64() * 0.02,
			AccelY: s.rng.NormFloat64() * 0.02,
			AccelZ: 1.0 + s.rng.NormFloat64()*0.01,
			GyroX:  s.rng.NormFloat64() * 0.1,
			GyroY:  s.rng.NormFloat64() * 0.1,
			GyroZ:  s.rng.NormFloat64() * 0.1,
		},
		LightLevel:  math.Max(0, 50*diurnal) + s.rng.Float64(),
		BatteryVolt: s.volt,
		Timestamp:   now,
	}
	return r, nil
}

// Close implements SensorSource.
func (s *SimulatedSource) Close() error { return nil }

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
