package learning

import (
	"errors"
	"io/fs"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/GaiaForge/beehive-monitoring/internal/learning/stats"
	"github.com/GaiaForge/beehive-monitoring/pkg/hive"
)

// Activity weighting: colony activity is mostly audible (worker hum)
// with a small motion component.
const (
	activityAudioWeight  = 0.8
	activityMotionWeight = 0.2
)

// audioStdDevFloor guards z-score division for freshly learned bands
// whose measured spread is near zero.
const audioStdDevFloor = 0.01

// Engine is the adaptive learning core for one hive. It accumulates
// per-channel running statistics, learns the colony's daily rhythm, and
// classifies readings against the learned baseline.
//
// Engine is not safe for concurrent use; the owning plugin serializes
// access.
type Engine struct {
	cfg   Config
	log   *zap.Logger
	codec *Codec // nil disables persistence

	baseline Baseline
	grid     PatternGrid

	temp     stats.Running
	humidity stats.Running
	pressure stats.Running
	weight   stats.Running
	light    stats.Running
	motion   stats.Running
	audio    [hive.NumAudioBands]stats.Running

	sampleCount uint64
	established bool
	season      Season
	lastSaved   time.Time
}

// NewEngine builds an engine, restoring prior learning state from the
// configured state file when one exists and is intact. A missing,
// truncated, or corrupt state file falls back to a fresh start with
// default baselines.
func NewEngine(cfg Config, log *zap.Logger) *Engine {
	e := &Engine{cfg: cfg, log: log}
	if cfg.StateFile != "" {
		e.codec = &Codec{Path: cfg.StateFile, MirrorPath: cfg.MirrorFile}
	}
	e.resetState()

	if e.codec == nil {
		return e
	}
	st, err := e.codec.Load()
	switch {
	case err == nil:
		e.restore(st)
		log.Info("learning state restored",
			zap.Uint64("samples", e.sampleCount),
			zap.Bool("established", e.established))
	case errors.Is(err, fs.ErrNotExist):
		log.Info("no learning state file, starting fresh",
			zap.String("path", cfg.StateFile))
	default:
		log.Warn("learning state unreadable, starting fresh",
			zap.String("path", cfg.StateFile), zap.Error(err))
	}
	return e
}

// resetState discards all learned history and returns to defaults.
func (e *Engine) resetState() {
	e.baseline = defaultBaseline()
	e.grid = NewPatternGrid()
	e.temp.Reset()
	e.humidity.Reset()
	e.pressure.Reset()
	e.weight.Reset()
	e.light.Reset()
	e.motion.Reset()
	for i := range e.audio {
		e.audio[i].Reset()
	}
	e.sampleCount = 0
	e.established = false
	e.season = SeasonWinter
}

// Reset discards all learned history and checkpoints the fresh state.
func (e *Engine) Reset() error {
	e.resetState()
	return e.Save()
}

// restore applies a loaded state and seeds the running estimators from
// the stored baseline so adaptation resumes with reasonable weight.
func (e *Engine) restore(st *State) {
	e.baseline = st.Baseline
	e.grid = st.Grid
	e.sampleCount = st.SampleCount
	e.established = st.Established
	e.season = st.Season

	n := uint64(0)
	if e.cfg.SeedSampleCount > 0 {
		n = uint64(e.cfg.SeedSampleCount)
	}
	e.temp.Seed(e.baseline.TempMean, e.baseline.TempStdDev, n)
	e.humidity.Seed(e.baseline.HumidityMean, e.baseline.HumidityStdDev, n)
	e.pressure.Seed(e.baseline.PressureMean, e.baseline.PressureStdDev, n)
	e.weight.Seed(e.baseline.WeightMean, e.baseline.WeightStdDev, n)
	for i := range e.audio {
		e.audio[i].Seed(e.baseline.AudioEnergy[i], e.baseline.AudioStdDev[i], n)
	}
}

// Update folds one reading into the learning model: running statistics,
// the daily pattern grid, baseline phase transitions, and periodic
// checkpoints.
func (e *Engine) Update(r hive.Reading) {
	at := r.Timestamp
	e.season = SeasonForMonth(at.Month())
	hour := HourOf(at)

	motionMag := r.Motion.Magnitude()
	// Mean before this sample, so a lone spike is normalized against
	// history rather than against itself.
	priorMotionMean := e.motion.Mean()

	e.sampleCount++
	e.temp.AddSample(r.Temperature)
	e.humidity.AddSample(r.Humidity)
	e.pressure.AddSample(r.Pressure)
	e.weight.AddSample(r.Weight)
	for i := range e.audio {
		e.audio[i].AddSample(r.Audio[i])
	}
	e.motion.AddSample(motionMag)
	e.light.AddSample(r.LightLevel)

	activity := e.activityLevel(r.Audio[hive.BandHum], motionMag, priorMotionMean)
	e.grid.Update(hour, e.season, activity,
		r.Temperature-e.baseline.TempMean,
		r.Humidity-e.baseline.HumidityMean)

	if !e.established && e.sampleCount >= uint64(e.cfg.LearnSamplesMin) {
		e.establishBaseline()
		e.checkpoint()
	}

	if e.established && e.sampleCount%uint64(e.cfg.UpdateInterval) == 0 {
		e.adaptBaseline()
		e.checkpoint()
	}

	if e.sampleCount%uint64(e.cfg.SaveInterval) == 0 {
		e.checkpoint()
	}
}

// activityLevel estimates normalized colony activity in [0,1] from the
// worker-hum band energy and motion magnitude.
func (e *Engine) activityLevel(humEnergy, motionMag, priorMotionMean float64) float64 {
	var audioTerm float64
	if e.baseline.AudioEnergy[hive.BandHum] > 0 {
		audioTerm = humEnergy / e.baseline.AudioEnergy[hive.BandHum]
	}
	var motionTerm float64
	if priorMotionMean > 1e-9 {
		motionTerm = motionMag / priorMotionMean
	}
	activity := audioTerm*activityAudioWeight + motionTerm*activityMotionWeight
	return math.Min(1, math.Max(0, activity))
}

// establishBaseline replaces the default priors with this colony's
// measured statistics and ends the learning phase.
func (e *Engine) establishBaseline() {
	e.baseline.TempMean = e.temp.Mean()
	e.baseline.TempStdDev = e.temp.StdDev()
	e.baseline.HumidityMean = e.humidity.Mean()
	e.baseline.HumidityStdDev = e.humidity.StdDev()
	e.baseline.PressureMean = e.pressure.Mean()
	e.baseline.PressureStdDev = e.pressure.StdDev()
	e.baseline.WeightMean = e.weight.Mean()
	e.baseline.WeightStdDev = e.weight.StdDev()
	for i := range e.audio {
		e.baseline.AudioEnergy[i] = e.audio[i].Mean()
		e.baseline.AudioStdDev[i] = e.audio[i].StdDev()
	}
	e.established = true

	e.log.Info("baseline established",
		zap.Uint64("samples", e.sampleCount),
		zap.Float64("temp_mean", e.baseline.TempMean),
		zap.Float64("humidity_mean", e.baseline.HumidityMean),
		zap.Float64("weight_mean", e.baseline.WeightMean))
}

// adaptBaseline blends the established baseline toward the statistics of
// the epoch since the last adaptation, then resets the epoch estimators.
// Audio tracks the colony's sound signature faster than the environment;
// weight drifts seasonally and adapts at half rate, with part of its
// history retained across epochs.
func (e *Engine) adaptBaseline() {
	rate := e.cfg.AdaptationRate

	e.baseline.TempMean = blend(e.baseline.TempMean, e.temp.Mean(), rate)
	e.baseline.TempStdDev = blend(e.baseline.TempStdDev, e.temp.StdDev(), rate)
	e.baseline.HumidityMean = blend(e.baseline.HumidityMean, e.humidity.Mean(), rate)
	e.baseline.HumidityStdDev = blend(e.baseline.HumidityStdDev, e.humidity.StdDev(), rate)
	e.baseline.PressureMean = blend(e.baseline.PressureMean, e.pressure.Mean(), rate)
	e.baseline.WeightMean = blend(e.baseline.WeightMean, e.weight.Mean(), rate/2)

	for i := range e.audio {
		e.baseline.AudioEnergy[i] = blend(e.baseline.AudioEnergy[i], e.audio[i].Mean(), rate*2)
		e.baseline.AudioStdDev[i] = blend(e.baseline.AudioStdDev[i], e.audio[i].StdDev(), rate)
	}

	e.temp.Reset()
	e.humidity.Reset()
	e.pressure.Reset()
	for i := range e.audio {
		e.audio[i].Reset()
	}
	e.weight.PartialReset(0.8)

	e.log.Debug("baseline adapted",
		zap.Uint64("samples", e.sampleCount),
		zap.Float64("temp_mean", e.baseline.TempMean),
		zap.Float64("weight_mean", e.baseline.WeightMean))
}

// checkpoint persists the current state, tolerating mirror failures.
func (e *Engine) checkpoint() {
	if err := e.Save(); err != nil {
		e.log.Warn("learning state save failed", zap.Error(err))
	}
}

// Save writes the current state to the configured state file. The JSON
// mirror is best-effort; its failure does not fail the checkpoint.
func (e *Engine) Save() error {
	if e.codec == nil {
		return nil
	}
	st := e.state()
	if err := e.codec.Save(st); err != nil {
		return err
	}
	e.lastSaved = time.Now()
	if err := e.codec.WriteMirror(st); err != nil {
		e.log.Debug("learning state mirror write failed", zap.Error(err))
	}
	return nil
}

func (e *Engine) state() *State {
	return &State{
		Baseline:    e.baseline,
		Grid:        e.grid,
		SampleCount: e.sampleCount,
		Season:      e.season,
		Established: e.established,
	}
}

// Established reports whether the learning phase has completed.
func (e *Engine) Established() bool { return e.established }

// SampleCount returns the number of readings folded in so far.
func (e *Engine) SampleCount() uint64 { return e.sampleCount }

// Season returns the season of the most recent reading.
func (e *Engine) Season() Season { return e.season }

// Progress returns learning progress as a percentage. It caps at 99
// until the baseline is actually established.
func (e *Engine) Progress() int {
	if e.established {
		return 100
	}
	p := int(e.sampleCount * 100 / uint64(e.cfg.LearnSamplesMin))
	if p > 99 {
		p = 99
	}
	return p
}

// Status returns the public learning status view.
func (e *Engine) Status() hive.LearningStatus {
	return hive.LearningStatus{
		BaselineEstablished: e.established,
		Progress:            e.Progress(),
		SampleCount:         e.sampleCount,
		Season:              int(e.season),
		LastSavedAt:         e.lastSaved,
	}
}

// BaselineView returns the current baseline as the public snapshot type.
func (e *Engine) BaselineView() hive.BaselineSnapshot {
	return e.baseline.Snapshot()
}

// Pattern returns the cell for one (hour, season) slot.
func (e *Engine) Pattern(h Hour, s Season) PatternCell {
	return e.grid.At(h, s)
}

// PatternCells returns a copy of the full daily pattern grid.
func (e *Engine) PatternCells() [24][numSeasons]PatternCell {
	return e.grid.Cells()
}
