// Package warmup measures how steadily frames arrive from the writer.
package warmup

import (
	"math"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum FPS standard deviation as a fraction of the mean.
	// Example: 30 FPS mean → stable if stddev < 4.5 FPS
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum mean jitter as a fraction of the expected interval.
	// Example: 30 FPS (33ms interval) → stable if jitter < 6.6ms
	jitterStabilityThreshold = 0.20
)

// Stats summarizes frame arrival times over a measurement window.
type Stats struct {
	// FramesReceived is the number of arrivals observed
	FramesReceived int
	// FramesMissed is the number of frames stored between two observations
	// (sequence gaps). Only set by Collect.
	FramesMissed int
	// Duration is the measurement window
	Duration time.Duration
	// FPSMean is FramesReceived / Duration
	FPSMean float64
	// FPSStdDev is the standard deviation of instantaneous FPS around FPSMean
	FPSStdDev float64
	// FPSMin is the minimum instantaneous FPS
	FPSMin float64
	// FPSMax is the maximum instantaneous FPS
	FPSMax float64
	// JitterMean is the mean deviation (seconds) of intervals from 1/FPSMean
	JitterMean float64
	// JitterStdDev is the standard deviation of the jitter (seconds)
	JitterStdDev float64
	// JitterMax is the largest deviation (seconds)
	JitterMax float64
	// IsStable is true if stddev < 15% of mean AND jitter < 20% of the interval
	IsStable bool
}

// CalculateFPSStats computes arrival statistics from frame timestamps.
//
// Instantaneous FPS is 1/interval for each pair of consecutive arrivals
// (zero-length intervals are skipped). Fewer than two arrivals, or no usable
// interval, yield an unstable result with only the mean filled in.
func CalculateFPSStats(arrivals []time.Time, window time.Duration) *Stats {
	n := len(arrivals)
	stats := &Stats{FramesReceived: n, Duration: window}
	if n == 0 || window <= 0 {
		return stats
	}
	stats.FPSMean = float64(n) / window.Seconds()

	intervals := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		intervals = append(intervals, arrivals[i].Sub(arrivals[i-1]).Seconds())
	}

	instant := make([]float64, 0, len(intervals))
	for _, iv := range intervals {
		if iv > 0 {
			instant = append(instant, 1/iv)
		}
	}
	if len(instant) == 0 {
		return stats
	}

	stats.FPSMin, stats.FPSMax = minMax(instant)
	stats.FPSStdDev = stdDevAround(instant, stats.FPSMean)

	expected := 1 / stats.FPSMean
	jitters := make([]float64, len(intervals))
	for i, iv := range intervals {
		jitters[i] = math.Abs(iv - expected)
	}
	stats.JitterMean = mean(jitters)
	stats.JitterStdDev = stdDevAround(jitters, stats.JitterMean)
	_, stats.JitterMax = minMax(jitters)

	stats.IsStable = stats.FPSStdDev < stats.FPSMean*fpsStabilityThreshold &&
		stats.JitterMean < expected*jitterStabilityThreshold

	return stats
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdDevAround(xs []float64, center float64) float64 {
	var sum float64
	for _, x := range xs {
		d := x - center
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

func minMax(xs []float64) (lo, hi float64) {
	lo, hi = xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}
