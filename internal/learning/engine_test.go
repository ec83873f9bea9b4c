package learning

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/GaiaForge/beehive-monitoring/pkg/hive"
)

// simReading produces one plausible reading for a healthy colony, with
// a mild diurnal cycle and sensor noise.
func simReading(ts time.Time, rng *rand.Rand) hive.Reading {
	hour := float64(ts.Hour())
	diurnal := math.Sin((hour - 6) / 24 * 2 * math.Pi)

	return hive.Reading{
		HiveID:      "hive-1",
		Temperature: 34.5 + 0.8*diurnal + rng.NormFloat64()*0.3,
		Humidity:    60.0 - 4.0*diurnal + rng.NormFloat64()*1.5,
		Pressure:    1012.0 + rng.NormFloat64(),
		Weight:      40.0 + rng.NormFloat64()*0.1,
		Audio: [hive.NumAudioBands]float64{
			0.55 + 0.1*diurnal + rng.NormFloat64()*0.02,
			0.35 + rng.NormFloat64()*0.02,
			0.25 + rng.NormFloat64()*0.02,
			0.15 + rng.NormFloat64()*0.01,
		},
		Motion: hive.Motion{
			AccelX: rng.NormFloat64() * 0.02,
			AccelY: rng.NormFloat64() * 0.02,
			AccelZ: 1.0,
		},
		LightLevel:  math.Max(0, 50*diurnal) + rng.Float64(),
		BatteryVolt: 3.9,
		Timestamp:   ts,
	}
}

func feedReadings(e *Engine, start time.Time, n int, step time.Duration, rng *rand.Rand) time.Time {
	ts := start
	for i := 0; i < n; i++ {
		e.Update(simReading(ts, rng))
		ts = ts.Add(step)
	}
	return ts
}

func TestEngineEstablishesBaselineAtMinimum(t *testing.T) {
	e := testEngine(t)
	rng := rand.New(rand.NewSource(1))
	start := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	ts := feedReadings(e, start, 99, time.Minute, rng)
	if e.Established() {
		t.Fatal("established before minimum sample count")
	}
	if e.Progress() != 99 {
		t.Fatalf("progress = %d at 99 samples, want 99", e.Progress())
	}

	e.Update(simReading(ts, rng))
	if !e.Established() {
		t.Fatal("not established at minimum sample count")
	}
	if e.Progress() != 100 {
		t.Fatalf("progress = %d after establishment, want 100", e.Progress())
	}

	// The defaults must be replaced by measured statistics.
	b := e.BaselineView()
	if math.Abs(b.TempMean-34.5) > 1.0 {
		t.Errorf("temp mean = %g, want near 34.5", b.TempMean)
	}
	if b.TempStdDev <= 0 || b.TempStdDev > 2.0 {
		t.Errorf("temp stddev = %g, want measured spread", b.TempStdDev)
	}
	if math.Abs(b.WeightMean-40.0) > 0.5 {
		t.Errorf("weight mean = %g, want near 40", b.WeightMean)
	}
}

func TestEngineProgressRampsEarly(t *testing.T) {
	e := testEngine(t)
	rng := rand.New(rand.NewSource(2))
	start := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	feedReadings(e, start, 50, time.Minute, rng)
	if e.Progress() != 50 {
		t.Fatalf("progress = %d at 50 samples, want 50", e.Progress())
	}
	if e.SampleCount() != 50 {
		t.Fatalf("sample count = %d, want 50", e.SampleCount())
	}
}

func TestEngineAdaptsBaselineToDrift(t *testing.T) {
	e := testEngine(t)
	rng := rand.New(rand.NewSource(3))
	start := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	ts := feedReadings(e, start, 100, time.Minute, rng)
	before := e.BaselineView().TempMean

	// The colony drifts 2°C warmer. Several adaptation epochs later the
	// baseline has followed part of the way, slowly.
	for i := 0; i < 200; i++ {
		r := simReading(ts, rng)
		r.Temperature += 2.0
		e.Update(r)
		ts = ts.Add(time.Minute)
	}
	after := e.BaselineView().TempMean

	if after <= before+0.05 {
		t.Fatalf("baseline did not follow drift: before %g after %g", before, after)
	}
	if after >= before+2.0 {
		t.Fatalf("baseline jumped instead of adapting slowly: before %g after %g", before, after)
	}
}

func TestEngineSeasonFollowsReadings(t *testing.T) {
	e := testEngine(t)
	rng := rand.New(rand.NewSource(4))

	e.Update(simReading(time.Date(2025, time.January, 10, 12, 0, 0, 0, time.UTC), rng))
	if e.Season() != SeasonWinter {
		t.Fatalf("season = %v, want winter", e.Season())
	}
	e.Update(simReading(time.Date(2025, time.July, 10, 12, 0, 0, 0, time.UTC), rng))
	if e.Season() != SeasonSummer {
		t.Fatalf("season = %v, want summer", e.Season())
	}
}

func TestEngineActivityClamped(t *testing.T) {
	e := testEngine(t)
	// Saturated audio against a quiet baseline would exceed 1 without
	// the clamp.
	if a := e.activityLevel(10.0, 0.0, 0.0); a != 1.0 {
		t.Errorf("activity = %g for saturated audio, want 1.0", a)
	}
	if a := e.activityLevel(0.0, 0.0, 0.0); a != 0.0 {
		t.Errorf("activity = %g for silence, want 0.0", a)
	}
}

func TestEngineCheckpointsAtSaveInterval(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.StateFile = filepath.Join(dir, "learning.state")
	cfg.MirrorFile = filepath.Join(dir, "learning.json")
	e := NewEngine(cfg, zap.NewNop())

	rng := rand.New(rand.NewSource(5))
	start := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	ts := feedReadings(e, start, cfg.SaveInterval-1, time.Minute, rng)

	if _, err := os.Stat(cfg.StateFile); err == nil {
		t.Fatal("state file written before save interval")
	}

	e.Update(simReading(ts, rng))
	if _, err := os.Stat(cfg.StateFile); err != nil {
		t.Fatalf("state file missing after save interval: %v", err)
	}
	if _, err := os.Stat(cfg.MirrorFile); err != nil {
		t.Fatalf("mirror file missing after save interval: %v", err)
	}
}

func TestEngineRestoresAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.StateFile = filepath.Join(dir, "learning.state")

	e1 := NewEngine(cfg, zap.NewNop())
	rng := rand.New(rand.NewSource(6))
	start := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	// 120 samples: established at 100, checkpointed at 120.
	feedReadings(e1, start, 120, time.Minute, rng)
	if !e1.Established() {
		t.Fatal("first engine not established")
	}
	want := e1.BaselineView()

	e2 := NewEngine(cfg, zap.NewNop())
	if !e2.Established() {
		t.Fatal("restored engine lost established flag")
	}
	if e2.SampleCount() != 120 {
		t.Fatalf("restored sample count = %d, want 120", e2.SampleCount())
	}
	if e2.BaselineView() != want {
		t.Fatalf("restored baseline differs:\n got %+v\nwant %+v", e2.BaselineView(), want)
	}
	// Estimators are seeded so adaptation resumes with prior weight.
	if e2.temp.Count() != uint64(cfg.SeedSampleCount) {
		t.Fatalf("seeded count = %d, want %d", e2.temp.Count(), cfg.SeedSampleCount)
	}
	if math.Abs(e2.temp.Mean()-want.TempMean) > 1e-12 {
		t.Fatalf("seeded mean = %g, want %g", e2.temp.Mean(), want.TempMean)
	}
}

func TestEngineRestoreNegativeSeedCount(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.StateFile = filepath.Join(dir, "learning.state")

	e1 := NewEngine(cfg, zap.NewNop())
	rng := rand.New(rand.NewSource(7))
	start := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	feedReadings(e1, start, 120, time.Minute, rng)

	// A bad config value must not wrap around to a huge seed weight.
	cfg.SeedSampleCount = -5
	e2 := NewEngine(cfg, zap.NewNop())
	if got := e2.temp.Count(); got != 0 {
		t.Fatalf("seeded count with negative config = %d, want 0", got)
	}
	if !e2.Established() {
		t.Fatal("restored engine lost established flag")
	}
}

func TestEngineStartsFreshOnCorruptState(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.StateFile = filepath.Join(dir, "learning.state")

	if err := os.WriteFile(cfg.StateFile, []byte("not a state file"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	e := NewEngine(cfg, zap.NewNop())
	if e.Established() || e.SampleCount() != 0 {
		t.Fatalf("engine did not start fresh: established=%v samples=%d",
			e.Established(), e.SampleCount())
	}
	// Defaults back in place.
	if e.BaselineView().TempMean != 35.0 {
		t.Fatalf("baseline not at defaults: %+v", e.BaselineView())
	}
}

func TestEngineReset(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.StateFile = filepath.Join(dir, "learning.state")

	e := NewEngine(cfg, zap.NewNop())
	rng := rand.New(rand.NewSource(7))
	start := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	feedReadings(e, start, 150, time.Minute, rng)

	if err := e.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if e.Established() || e.SampleCount() != 0 || e.Progress() != 0 {
		t.Fatal("reset did not clear learning state")
	}

	// The checkpoint reflects the cleared state, so a restart stays fresh.
	e2 := NewEngine(cfg, zap.NewNop())
	if e2.Established() || e2.SampleCount() != 0 {
		t.Fatal("reset state not persisted")
	}
}

// TestEngineSeasonalScenario runs a hundred days of hourly readings and
// checks the learned model end to end: establishment, a baseline close
// to the simulated colony, calm readings classified as normal, and
// injected disturbances flagged.
func TestEngineSeasonalScenario(t *testing.T) {
	e := testEngine(t)
	rng := rand.New(rand.NewSource(8))
	start := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	ts := feedReadings(e, start, 100*24, time.Hour, rng)
	if !e.Established() {
		t.Fatal("not established after 100 days")
	}

	b := e.BaselineView()
	if math.Abs(b.TempMean-34.5) > 1.0 {
		t.Errorf("temp mean = %g, want near 34.5", b.TempMean)
	}
	if math.Abs(b.HumidityMean-60.0) > 4.0 {
		t.Errorf("humidity mean = %g, want near 60", b.HumidityMean)
	}

	hour := HourOf(ts)

	// A normal reading stays normal.
	normal := simReading(ts, rng)
	if e.IsTemperatureAnomaly(normal.Temperature, hour) {
		t.Errorf("normal temperature %g flagged", normal.Temperature)
	}
	if e.IsAudioAnomaly(normal.Audio) {
		t.Errorf("normal audio %v flagged", normal.Audio)
	}

	// Overheating brood nest.
	if !e.IsTemperatureAnomaly(45.0, hour) {
		t.Error("45°C not flagged after learning")
	}
	// Chilled brood.
	if !e.IsTemperatureAnomaly(25.0, hour) {
		t.Error("25°C not flagged after learning")
	}
	// Alarm band roar, the signature of a disturbed colony.
	alarm := normal.Audio
	alarm[hive.BandAlarm] = 0.9
	if !e.IsAudioAnomaly(alarm) {
		t.Error("alarm band roar not flagged")
	}
	// Swarm departure: a sudden multi-kilo weight drop.
	if !e.IsWeightAnomaly(37.0, 40.0) {
		t.Error("sudden 3kg weight drop not flagged")
	}

	// Adapted thresholds sit inside the hard ranges and bracket the
	// colony's normal band.
	th := e.Thresholds(hour)
	if th.Temperature.Low < 25.0 || th.Temperature.High > 42.0 {
		t.Errorf("temp thresholds %+v outside hard range", th.Temperature)
	}
	if th.Temperature.Low >= 34.5 || th.Temperature.High <= 34.5 {
		t.Errorf("temp thresholds %+v do not bracket the colony mean", th.Temperature)
	}
	if th.Humidity.Low < 30.0 || th.Humidity.High > 90.0 {
		t.Errorf("humidity thresholds %+v outside hard range", th.Humidity)
	}

	// The pattern grid learned the diurnal rhythm: afternoon activity
	// above pre-dawn activity in the season the samples came from.
	season := e.Season()
	afternoon := e.Pattern(14, season)
	predawn := e.Pattern(3, season)
	if afternoon.SampleCount == 0 || predawn.SampleCount == 0 {
		t.Fatal("pattern cells missing samples")
	}
	if afternoon.ActivityLevel <= predawn.ActivityLevel {
		t.Errorf("afternoon activity %g not above pre-dawn %g",
			afternoon.ActivityLevel, predawn.ActivityLevel)
	}
}
