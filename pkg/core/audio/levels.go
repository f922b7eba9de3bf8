package audio

import (
	"math"
	"sync"
)

// RMSEnergy computes the root-mean-square energy of a float frame.
// Returns a value between 0.0 and 1.0 for well-formed input.
func RMSEnergy(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}

	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// PeakAmplitude returns the maximum absolute amplitude in the frame.
func PeakAmplitude(frame []float32) float64 {
	var maxAbs float64
	for _, s := range frame {
		abs := math.Abs(float64(s))
		if abs > maxAbs {
			maxAbs = abs
		}
	}
	return maxAbs
}

// LevelTap is a concurrent-safe probe on the raw capture stream. The
// capture pump feeds it every frame; visualizer-style collaborators poll
// Level without touching the real-time path.
type LevelTap struct {
	mu        sync.Mutex
	rms       float64
	peak      float64
	smoothing float64
}

// NewLevelTap creates a tap with the given exponential smoothing factor
// in [0, 1). Zero disables smoothing.
func NewLevelTap(smoothing float64) *LevelTap {
	if smoothing < 0 || smoothing >= 1 {
		smoothing = 0
	}
	return &LevelTap{smoothing: smoothing}
}

// Observe records one capture frame.
func (t *LevelTap) Observe(frame []float32) {
	rms := RMSEnergy(frame)
	peak := PeakAmplitude(frame)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.rms = t.smoothing*t.rms + (1-t.smoothing)*rms
	t.peak = t.smoothing*t.peak + (1-t.smoothing)*peak
}

// Level returns the current smoothed RMS and peak levels.
func (t *LevelTap) Level() (rms, peak float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rms, t.peak
}

// Reset clears the tap state.
func (t *LevelTap) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rms = 0
	t.peak = 0
}
