// Package cadence measures the frame rate and timing regularity of a stream
// from buffer presentation timestamps.
package cadence

import (
	"math"
	"sync"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum FPS standard deviation as a
	// fraction of mean FPS for a stable stream.
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum mean jitter as a fraction of
	// the expected interval for a stable stream.
	jitterStabilityThreshold = 0.20

	// gapFactor marks an interval longer than this many expected intervals
	// as a gap (one or more frames missing from the timeline).
	gapFactor = 1.5
)

// Stats summarises the timing of a sequence of frames.
type Stats struct {
	Frames       int           `json:"frames"`
	Duration     time.Duration `json:"duration"`
	FPSMean      float64       `json:"fps_mean"`
	FPSStdDev    float64       `json:"fps_stddev"`
	FPSMin       float64       `json:"fps_min"`
	FPSMax       float64       `json:"fps_max"`
	JitterMean   float64       `json:"jitter_mean"`
	JitterStdDev float64       `json:"jitter_stddev"`
	JitterMax    float64       `json:"jitter_max"`
	Gaps         int           `json:"gaps"`
	IsStable     bool          `json:"is_stable"`
}

// Calculate computes Stats from presentation timestamps in arrival order.
// The span is last-first plus one mean interval, so n evenly spaced frames at
// F fps give FPSMean == F.
//
// Stable means FPS stddev < 15% of mean and mean jitter < 20% of the
// expected interval.
func Calculate(timestamps []time.Duration) *Stats {
	n := len(timestamps)
	if n < 2 {
		return &Stats{Frames: n}
	}

	intervals := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if d := (timestamps[i] - timestamps[i-1]).Seconds(); d > 0 {
			intervals = append(intervals, d)
		}
	}
	if len(intervals) == 0 {
		return &Stats{Frames: n}
	}

	var sum float64
	for _, d := range intervals {
		sum += d
	}
	expected := sum / float64(len(intervals))
	duration := timestamps[n-1] - timestamps[0] + time.Duration(expected*float64(time.Second))
	fpsMean := float64(n) / duration.Seconds()

	fpsMin, fpsMax := math.Inf(1), 0.0
	var fpsSquares float64
	var jitterSum, jitterMax float64
	jitters := make([]float64, len(intervals))
	gaps := 0
	for i, d := range intervals {
		fps := 1.0 / d
		fpsMin = math.Min(fpsMin, fps)
		fpsMax = math.Max(fpsMax, fps)
		fpsSquares += (fps - fpsMean) * (fps - fpsMean)

		j := math.Abs(d - expected)
		jitters[i] = j
		jitterSum += j
		jitterMax = math.Max(jitterMax, j)

		if d > expected*gapFactor {
			gaps++
		}
	}
	fpsStdDev := math.Sqrt(fpsSquares / float64(len(intervals)))
	jitterMean := jitterSum / float64(len(jitters))

	var jitterSquares float64
	for _, j := range jitters {
		jitterSquares += (j - jitterMean) * (j - jitterMean)
	}

	return &Stats{
		Frames:       n,
		Duration:     duration,
		FPSMean:      fpsMean,
		FPSStdDev:    fpsStdDev,
		FPSMin:       fpsMin,
		FPSMax:       fpsMax,
		JitterMean:   jitterMean,
		JitterStdDev: math.Sqrt(jitterSquares / float64(len(jitters))),
		JitterMax:    jitterMax,
		Gaps:         gaps,
		IsStable:     fpsStdDev < fpsMean*fpsStabilityThreshold && jitterMean < expected*jitterStabilityThreshold,
	}
}

// Recorder collects timestamps from a streaming thread.
type Recorder struct {
	mu         sync.Mutex
	timestamps []time.Duration
}

// Add records one timestamp. Negative values (GStreamer's "none") are
// ignored.
func (r *Recorder) Add(ts time.Duration) {
	if ts < 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timestamps = append(r.timestamps, ts)
}

// Len returns the number of recorded timestamps.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timestamps)
}

// Stats computes Stats over everything recorded so far.
func (r *Recorder) Stats() *Stats {
	r.mu.Lock()
	ts := make([]time.Duration, len(r.timestamps))
	copy(ts, r.timestamps)
	r.mu.Unlock()
	return Calculate(ts)
}
