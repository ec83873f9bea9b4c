// Package stats provides a bounded-memory online mean/variance estimator
// for a single sensor channel.
package stats

import "math"

// DefaultSeedCount is the nominal sample count assigned when seeding an
// estimator from a restored baseline. It controls how much weight the
// restored values carry against new samples: the estimator behaves as if
// exactly that many real samples had produced the seeded mean/stddev.
const DefaultSeedCount = 30

// Running maintains an online estimate of mean and variance for an unbounded
// sample stream in O(1) memory, using Welford's algorithm. The zero value is
// ready to use.
type Running struct {
	count uint64
	mean  float64
	m2    float64 // sum of squared deltas from the running mean
}

// AddSample folds one sample into the estimate.
func (r *Running) AddSample(x float64) {
	r.count++
	delta := x - r.mean
	r.mean += delta / float64(r.count)
	delta2 := x - r.mean
	r.m2 += delta * delta2
}

// Reset zeroes the estimator, starting a fresh adaptation epoch.
func (r *Running) Reset() {
	r.count = 0
	r.mean = 0
	r.m2 = 0
}

// PartialReset reduces the statistical weight of the accumulated history
// without changing the current mean/variance point estimate: future samples
// move the mean faster, but nothing is forgotten outright. keepRatio is
// clamped to (0, 1]. Used for channels that should forget slowly (weight)
// rather than reset abruptly.
func (r *Running) PartialReset(keepRatio float64) {
	if r.count == 0 {
		return
	}
	if keepRatio <= 0 || keepRatio > 1 {
		keepRatio = 1
	}
	kept := uint64(float64(r.count) * keepRatio)
	if kept < 1 {
		kept = 1
	}
	r.count = kept
}

// Seed initializes the estimator from an externally known mean/stddev pair,
// back-solving the Welford accumulator for the given nominal sample count
// (DefaultSeedCount if nominalCount is zero). Used when restoring from a
// persisted baseline.
func (r *Running) Seed(mean, stdDev float64, nominalCount uint64) {
	if nominalCount == 0 {
		nominalCount = DefaultSeedCount
	}
	r.mean = mean
	r.count = nominalCount
	r.m2 = stdDev * stdDev * float64(nominalCount-1)
}

// Mean returns the running mean, 0 if no samples have been added.
func (r *Running) Mean() float64 {
	if r.count == 0 {
		return 0
	}
	return r.mean
}

// Variance returns the Bessel-corrected sample variance, 0 for fewer than
// two samples.
func (r *Running) Variance() float64 {
	if r.count <= 1 {
		return 0
	}
	return r.m2 / float64(r.count-1)
}

// StdDev returns the sample standard deviation.
func (r *Running) StdDev() float64 {
	return math.Sqrt(r.Variance())
}

// Count returns the number of samples since the last reset.
func (r *Running) Count() uint64 {
	return r.count
}
