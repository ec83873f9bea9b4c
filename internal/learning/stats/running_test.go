package stats

import (
	"math"
	"math/rand"
	"testing"

	montana "github.com/montanaflynn/stats"
)

const tolerance = 1e-9

func TestRunning_MatchesBatchStatistics(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
	}{
		{
			name:    "small fixed set",
			samples: []float64{34.2, 35.1, 34.8, 35.6, 35.0},
		},
		{
			name:    "two samples",
			samples: []float64{10, 20},
		},
		{
			name:    "identical samples",
			samples: []float64{7.5, 7.5, 7.5, 7.5},
		},
		{
			name:    "negative offsets",
			samples: []float64{-2.5, -1.0, 0.0, 1.0, 2.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Running
			for _, x := range tt.samples {
				r.AddSample(x)
			}

			wantMean, _ := montana.Mean(tt.samples)
			wantStdDev, _ := montana.StandardDeviationSample(tt.samples)

			if math.Abs(r.Mean()-wantMean) > tolerance {
				t.Errorf("Mean() = %v, want %v", r.Mean(), wantMean)
			}
			if math.Abs(r.StdDev()-wantStdDev) > 1e-6 {
				t.Errorf("StdDev() = %v, want %v", r.StdDev(), wantStdDev)
			}
		})
	}
}

func TestRunning_MatchesBatchOnLongRandomStream(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	samples := make([]float64, 10000)
	var r Running
	for i := range samples {
		samples[i] = 35 + rng.NormFloat64()*2
		r.AddSample(samples[i])
	}

	wantMean, _ := montana.Mean(samples)
	wantVar, _ := montana.SampleVariance(samples)

	if math.Abs(r.Mean()-wantMean) > 1e-9 {
		t.Errorf("Mean() = %v, want %v", r.Mean(), wantMean)
	}
	if math.Abs(r.Variance()-wantVar) > 1e-6 {
		t.Errorf("Variance() = %v, want %v", r.Variance(), wantVar)
	}
}

func TestRunning_ZeroValueAccessors(t *testing.T) {
	var r Running
	if r.Mean() != 0 {
		t.Errorf("Mean() on empty estimator = %v, want 0", r.Mean())
	}
	if r.Variance() != 0 {
		t.Errorf("Variance() on empty estimator = %v, want 0", r.Variance())
	}
	r.AddSample(5)
	if r.Variance() != 0 {
		t.Errorf("Variance() with one sample = %v, want 0", r.Variance())
	}
	if r.Mean() != 5 {
		t.Errorf("Mean() with one sample = %v, want 5", r.Mean())
	}
}

func TestRunning_Reset(t *testing.T) {
	var r Running
	r.AddSample(1)
	r.AddSample(2)
	r.Reset()

	if r.Count() != 0 || r.Mean() != 0 || r.Variance() != 0 {
		t.Errorf("Reset left state behind: count=%d mean=%v var=%v", r.Count(), r.Mean(), r.Variance())
	}
}

func TestRunning_PartialResetPreservesEstimates(t *testing.T) {
	var r Running
	for i := 0; i < 100; i++ {
		r.AddSample(40 + float64(i%7))
	}

	meanBefore := r.Mean()
	varBefore := r.Variance()

	r.PartialReset(0.8)

	if r.Count() != 80 {
		t.Errorf("Count() after PartialReset(0.8) = %d, want 80", r.Count())
	}
	if math.Abs(r.Mean()-meanBefore) > tolerance {
		t.Errorf("Mean() changed on PartialReset: %v -> %v", meanBefore, r.Mean())
	}
	// Variance shifts slightly because the divisor shrinks while M2 is kept;
	// it must stay the same order of magnitude, not be zeroed.
	if r.Variance() == 0 || varBefore == 0 {
		t.Fatalf("variance unexpectedly zero: before=%v after=%v", varBefore, r.Variance())
	}
}

func TestRunning_PartialResetFloorsAtOne(t *testing.T) {
	var r Running
	r.AddSample(1)

	r.PartialReset(0.1)
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want floor of 1", r.Count())
	}
}

func TestRunning_PartialResetSpeedsConvergence(t *testing.T) {
	full := Running{}
	reduced := Running{}
	for i := 0; i < 200; i++ {
		full.AddSample(30)
		reduced.AddSample(30)
	}
	reduced.PartialReset(0.1)

	// Same new evidence moves the reduced estimator further.
	for i := 0; i < 20; i++ {
		full.AddSample(40)
		reduced.AddSample(40)
	}
	if reduced.Mean() <= full.Mean() {
		t.Errorf("reduced-weight estimator should converge faster: reduced=%v full=%v",
			reduced.Mean(), full.Mean())
	}
}

func TestRunning_Seed(t *testing.T) {
	tests := []struct {
		name   string
		mean   float64
		stdDev float64
		count  uint64
	}{
		{name: "default count", mean: 35.0, stdDev: 2.0, count: 0},
		{name: "explicit count", mean: 60.0, stdDev: 5.0, count: 50},
		{name: "zero stddev", mean: 1013.25, stdDev: 0, count: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Running
			r.Seed(tt.mean, tt.stdDev, tt.count)

			if math.Abs(r.Mean()-tt.mean) > tolerance {
				t.Errorf("Mean() = %v, want %v", r.Mean(), tt.mean)
			}
			if math.Abs(r.StdDev()-tt.stdDev) > 1e-9 {
				t.Errorf("StdDev() = %v, want %v", r.StdDev(), tt.stdDev)
			}
			wantCount := tt.count
			if wantCount == 0 {
				wantCount = DefaultSeedCount
			}
			if r.Count() != wantCount {
				t.Errorf("Count() = %d, want %d", r.Count(), wantCount)
			}
		})
	}
}

func TestRunning_SeededEstimatorAbsorbsNewSamples(t *testing.T) {
	var r Running
	r.Seed(35.0, 2.0, 0)

	// 30 new samples at a shifted mean should pull the estimate roughly
	// halfway, since the seed carries the weight of 30 samples.
	for i := 0; i < 30; i++ {
		r.AddSample(37.0)
	}
	if r.Mean() < 35.5 || r.Mean() > 36.5 {
		t.Errorf("seeded estimator mean after shift = %v, want ~36", r.Mean())
	}
}
