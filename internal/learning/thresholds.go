package learning

import (
	"math"

	"github.com/GaiaForge/beehive-monitoring/pkg/hive"
)

// refBroodTemp is the textbook brood nest temperature the static alert
// thresholds were tuned around. Adapted thresholds shift by how far this
// colony's learned mean sits from it.
const refBroodTemp = 35.0

// AdaptedTempThresholds returns alert bounds for the given hour, shifted
// by the colony's learned mean and rhythm offset, widened by the learned
// spread, and clamped to the hard survival range.
func (e *Engine) AdaptedTempThresholds(hour Hour) hive.Range {
	offset := e.grid.At(hour, e.season).TempOffset
	shift := e.baseline.TempMean - refBroodTemp

	low := e.cfg.TempAlertLow + shift + offset - e.baseline.TempStdDev
	high := e.cfg.TempAlertHigh + shift + offset + e.baseline.TempStdDev

	return hive.Range{
		Low:  math.Max(e.cfg.MinSafeTemp, low),
		High: math.Min(e.cfg.MaxSafeTemp, high),
	}
}

// AdaptedHumidityThresholds returns humidity alert bounds for the given
// hour, shifted by the rhythm offset and widened by the learned spread,
// clamped to the hard range.
func (e *Engine) AdaptedHumidityThresholds(hour Hour) hive.Range {
	offset := e.grid.At(hour, e.season).HumidityOffset

	low := e.cfg.HumAlertLow + offset - e.baseline.HumidityStdDev
	high := e.cfg.HumAlertHigh + offset + e.baseline.HumidityStdDev

	return hive.Range{
		Low:  math.Max(e.cfg.MinSafeHumidity, low),
		High: math.Min(e.cfg.MaxSafeHumidity, high),
	}
}

// Per-band multipliers over the learned energy. The worker-hum band
// alerts on a drop below normal, so its threshold sits under the
// baseline; the others alert on elevated energy.
var audioThresholdFactors = [hive.NumAudioBands]float64{0.7, 1.5, 1.5, 1.8}

// AdaptedAudioThresholds returns per-band alert thresholds scaled from
// the learned band energies, floored at the configured minimum.
func (e *Engine) AdaptedAudioThresholds() [hive.NumAudioBands]float64 {
	var out [hive.NumAudioBands]float64
	for i := range out {
		out[i] = math.Max(e.cfg.MinAudioThreshold,
			e.baseline.AudioEnergy[i]*audioThresholdFactors[i])
	}
	return out
}

// Thresholds bundles all adapted thresholds for the given hour.
func (e *Engine) Thresholds(hour Hour) hive.Thresholds {
	return hive.Thresholds{
		Temperature: e.AdaptedTempThresholds(hour),
		Humidity:    e.AdaptedHumidityThresholds(hour),
		Audio:       e.AdaptedAudioThresholds(),
	}
}
