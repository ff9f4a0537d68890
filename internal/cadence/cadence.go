// Package cadence measures how regularly frames arrive.
//
// It is used to report the real decode rate of a playback session and to
// tell whether delivery is steady enough to look smooth on screen.
package cadence

import (
	"math"
	"sync"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum allowed FPS standard deviation as a fraction of mean FPS.
	// Example: 30 FPS mean → stable if stddev < 4.5 FPS
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum allowed mean jitter as a fraction of expected interval.
	// Example: 30 FPS (33ms interval) → stable if jitter < 6.6ms
	jitterStabilityThreshold = 0.20

	// DefaultWindowSize is the number of arrival times a Window keeps.
	DefaultWindowSize = 120
)

// Stats describes frame arrival regularity over a time span.
type Stats struct {
	Frames       int           // Number of arrivals observed
	Duration     time.Duration // Span the arrivals were observed over
	FPSMean      float64       // Overall rate (Frames / Duration)
	FPSStdDev    float64       // Standard deviation of instantaneous FPS
	FPSMin       float64       // Minimum instantaneous FPS
	FPSMax       float64       // Maximum instantaneous FPS
	JitterMean   float64       // Mean deviation from the expected interval (seconds)
	JitterStdDev float64       // Standard deviation of jitter (seconds)
	JitterMax    float64       // Maximum jitter observed (seconds)
	IsStable     bool          // stddev < 15% of mean AND jitter < 20% of interval
}

// Calculate computes cadence statistics from arrival timestamps.
//
// This function:
//  1. Calculates mean FPS (overall)
//  2. Calculates instantaneous FPS for each frame interval
//  3. Finds min/max instantaneous FPS
//  4. Calculates standard deviation of instantaneous FPS
//  5. Calculates jitter statistics (inter-frame interval variance)
//  6. Determines stability (stddev < 15% of mean AND jitter < 20%)
func Calculate(times []time.Time, total time.Duration) Stats {
	n := len(times)
	if n == 0 || total <= 0 {
		return Stats{Frames: n, Duration: total}
	}

	fpsMean := float64(n) / total.Seconds()

	instantaneous := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		interval := times[i].Sub(times[i-1]).Seconds()
		if interval > 0 {
			instantaneous = append(instantaneous, 1.0/interval)
		}
	}

	if len(instantaneous) == 0 {
		return Stats{Frames: n, Duration: total, FPSMean: fpsMean}
	}

	fpsMin, fpsMax := instantaneous[0], instantaneous[0]
	var sumSquares float64
	for _, fps := range instantaneous {
		fpsMin = math.Min(fpsMin, fps)
		fpsMax = math.Max(fpsMax, fps)
		diff := fps - fpsMean
		sumSquares += diff * diff
	}
	fpsStdDev := math.Sqrt(sumSquares / float64(len(instantaneous)))

	// Jitter = deviation from the expected inter-frame interval
	expected := 1.0 / fpsMean

	jitters := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		actual := times[i].Sub(times[i-1]).Seconds()
		jitters = append(jitters, math.Abs(actual-expected))
	}

	var jitterSum, jitterMax float64
	for _, j := range jitters {
		jitterSum += j
		jitterMax = math.Max(jitterMax, j)
	}
	jitterMean := jitterSum / float64(len(jitters))

	var jitterSquares float64
	for _, j := range jitters {
		diff := j - jitterMean
		jitterSquares += diff * diff
	}
	jitterStdDev := math.Sqrt(jitterSquares / float64(len(jitters)))

	return Stats{
		Frames:       n,
		Duration:     total,
		FPSMean:      fpsMean,
		FPSStdDev:    fpsStdDev,
		FPSMin:       fpsMin,
		FPSMax:       fpsMax,
		JitterMean:   jitterMean,
		JitterStdDev: jitterStdDev,
		JitterMax:    jitterMax,
		IsStable: fpsStdDev < fpsMean*fpsStabilityThreshold &&
			jitterMean < expected*jitterStabilityThreshold,
	}
}

// Window keeps the most recent arrival times in a ring buffer.
//
// Thread-safety: Add and Stats may be called from different goroutines.
type Window struct {
	mu    sync.Mutex
	times []time.Time
	next  int
	count int
}

// NewWindow creates a window holding at most size arrivals.
// size <= 1 selects DefaultWindowSize.
func NewWindow(size int) *Window {
	if size <= 1 {
		size = DefaultWindowSize
	}
	return &Window{times: make([]time.Time, size)}
}

// Add records one arrival.
func (w *Window) Add(t time.Time) {
	w.mu.Lock()
	w.times[w.next] = t
	w.next = (w.next + 1) % len(w.times)
	if w.count < len(w.times) {
		w.count++
	}
	w.mu.Unlock()
}

// Reset forgets every arrival.
func (w *Window) Reset() {
	w.mu.Lock()
	w.next = 0
	w.count = 0
	w.mu.Unlock()
}

// Stats computes cadence over the arrivals currently in the window.
//
// The span is measured from the first to the last arrival, so the mean FPS
// counts intervals rather than frames.
func (w *Window) Stats() Stats {
	w.mu.Lock()
	ordered := make([]time.Time, 0, w.count)
	start := (w.next - w.count + len(w.times)) % len(w.times)
	for i := 0; i < w.count; i++ {
		ordered = append(ordered, w.times[(start+i)%len(w.times)])
	}
	w.mu.Unlock()

	if len(ordered) < 2 {
		return Stats{Frames: len(ordered)}
	}

	span := ordered[len(ordered)-1].Sub(ordered[0])
	// n arrivals span n-1 intervals; drop one arrival from the rate.
	stats := Calculate(ordered, span)
	if span > 0 {
		stats.FPSMean = float64(len(ordered)-1) / span.Seconds()
	}
	return stats
}
