package learning

import (
	"github.com/GaiaForge/beehive-monitoring/pkg/hive"
)

// Baseline is the learned "normal" for one colony. Values before the
// baseline is established are conservative defaults for a healthy hive.
type Baseline struct {
	TempMean         float64
	TempStdDev       float64
	HumidityMean     float64
	HumidityStdDev   float64
	PressureMean     float64
	PressureStdDev   float64
	WeightMean       float64
	WeightStdDev     float64
	WeightDailyDelta float64
	AudioEnergy      [hive.NumAudioBands]float64
	AudioStdDev      [hive.NumAudioBands]float64
}

// Default audio band energies for a calm colony, used until learning
// replaces them with measured values.
var defaultAudioEnergy = [hive.NumAudioBands]float64{0.6, 0.4, 0.3, 0.2}

// defaultBaseline returns conservative priors for a healthy colony:
// brood nest near 35°C, humidity near 60%, standard sea-level pressure.
func defaultBaseline() Baseline {
	b := Baseline{
		TempMean:         35.0,
		TempStdDev:       2.0,
		HumidityMean:     60.0,
		HumidityStdDev:   5.0,
		PressureMean:     1013.25,
		PressureStdDev:   5.0,
		WeightMean:       0.0,
		WeightStdDev:     1.0,
		WeightDailyDelta: 0.2,
		AudioEnergy:      defaultAudioEnergy,
	}
	for i := range b.AudioStdDev {
		b.AudioStdDev[i] = 0.1
	}
	return b
}

// Snapshot returns the baseline as the public read-only view.
func (b Baseline) Snapshot() hive.BaselineSnapshot {
	return hive.BaselineSnapshot{
		TempMean:         b.TempMean,
		TempStdDev:       b.TempStdDev,
		HumidityMean:     b.HumidityMean,
		HumidityStdDev:   b.HumidityStdDev,
		PressureMean:     b.PressureMean,
		PressureStdDev:   b.PressureStdDev,
		WeightMean:       b.WeightMean,
		WeightStdDev:     b.WeightStdDev,
		WeightDailyDelta: b.WeightDailyDelta,
		AudioEnergy:      b.AudioEnergy,
		AudioStdDev:      b.AudioStdDev,
	}
}

// blend moves current toward target by rate: (1-rate)*current + rate*target.
func blend(current, target, rate float64) float64 {
	return (1-rate)*current + rate*target
}
