package learning

import (
	"math"

	"github.com/GaiaForge/beehive-monitoring/pkg/hive"
)

// Evaluation is the outcome of checking one scalar channel against the
// learned baseline.
type Evaluation struct {
	Anomalous bool
	// Expected is the baseline mean plus the rhythm offset for the slot.
	Expected float64
	// Z is the signed z-score of the value against the learned stddev.
	Z float64
}

// AudioEvaluation is the outcome of checking the audio band vector.
// Band is the first band that exceeded its threshold, or -1.
type AudioEvaluation struct {
	Anomalous bool
	Band      int
	Expected  float64
	Z         float64
}

// WeightEvaluation distinguishes a sudden reading-to-reading jump
// (swarm departure, theft, a fallen branch) from slow drift away from
// the long-term baseline.
type WeightEvaluation struct {
	Anomalous    bool
	SuddenChange bool
	Expected     float64
	Z            float64
}

// Per-band z-score thresholds. The worker-hum band varies more with
// normal foraging activity, so it gets the loosest bound.
var audioBandThresholds = [hive.NumAudioBands]float64{3.0, 2.5, 2.5, 2.5}

// EvaluateTemperature checks a temperature against the expected value
// for the given hour in the current season.
func (e *Engine) EvaluateTemperature(value float64, hour Hour) Evaluation {
	expected := e.baseline.TempMean + e.grid.At(hour, e.season).TempOffset
	z := (value - expected) / e.baseline.TempStdDev
	return Evaluation{
		Anomalous: math.Abs(z) > e.cfg.TempAnomalyThreshold,
		Expected:  expected,
		Z:         z,
	}
}

// IsTemperatureAnomaly reports whether a temperature reading deviates
// beyond the configured z-score threshold.
func (e *Engine) IsTemperatureAnomaly(value float64, hour Hour) bool {
	return e.EvaluateTemperature(value, hour).Anomalous
}

// EvaluateHumidity checks a humidity reading against the expected value
// for the given hour in the current season.
func (e *Engine) EvaluateHumidity(value float64, hour Hour) Evaluation {
	expected := e.baseline.HumidityMean + e.grid.At(hour, e.season).HumidityOffset
	z := (value - expected) / e.baseline.HumidityStdDev
	return Evaluation{
		Anomalous: math.Abs(z) > e.cfg.HumidityAnomalyThreshold,
		Expected:  expected,
		Z:         z,
	}
}

// IsHumidityAnomaly reports whether a humidity reading deviates beyond
// the configured z-score threshold.
func (e *Engine) IsHumidityAnomaly(value float64, hour Hour) bool {
	return e.EvaluateHumidity(value, hour).Anomalous
}

// EvaluateAudio checks each frequency band against its learned energy,
// stopping at the first band that exceeds its threshold.
func (e *Engine) EvaluateAudio(bands [hive.NumAudioBands]float64) AudioEvaluation {
	for i := range bands {
		sd := math.Max(audioStdDevFloor, e.baseline.AudioStdDev[i])
		z := (bands[i] - e.baseline.AudioEnergy[i]) / sd
		if math.Abs(z) > audioBandThresholds[i] {
			return AudioEvaluation{
				Anomalous: true,
				Band:      i,
				Expected:  e.baseline.AudioEnergy[i],
				Z:         z,
			}
		}
	}
	return AudioEvaluation{Band: -1}
}

// IsAudioAnomaly reports whether any audio band deviates beyond its
// per-band threshold.
func (e *Engine) IsAudioAnomaly(bands [hive.NumAudioBands]float64) bool {
	return e.EvaluateAudio(bands).Anomalous
}

// EvaluateWeight checks a weight reading two ways: a sudden change
// relative to the previous reading, and long-term deviation from the
// baseline mean.
func (e *Engine) EvaluateWeight(value, previous float64) WeightEvaluation {
	ev := WeightEvaluation{
		Expected: e.baseline.WeightMean,
		Z:        (value - e.baseline.WeightMean) / e.baseline.WeightStdDev,
	}

	change := value - previous
	if math.Abs(change) > e.cfg.WeightChangeThreshold*e.baseline.WeightStdDev {
		ev.Anomalous = true
		ev.SuddenChange = true
		return ev
	}

	if math.Abs(ev.Z) > e.cfg.WeightAnomalyThreshold {
		ev.Anomalous = true
	}
	return ev
}

// IsWeightAnomaly reports whether a weight reading is a sudden jump or
// a long-term drift beyond the configured thresholds.
func (e *Engine) IsWeightAnomaly(value, previous float64) bool {
	return e.EvaluateWeight(value, previous).Anomalous
}
