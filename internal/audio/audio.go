// Package audio implements the deterministic post-processing pipeline for
// synthesized speech: normalization, edge silence trimming, spectral noise
// gating, fades, and gap-aware segment concatenation. All transforms are
// pure; they return new sample slices and never mutate their input.
package audio

import (
	"errors"
	"fmt"
	"math"
)

// Common errors.
var (
	ErrEmptyWaveform      = errors.New("empty waveform")
	ErrNoSegments         = errors.New("no segments provided")
	ErrSampleRateMismatch = errors.New("segments have mismatched sample rates")
	ErrInvalidSampleRate  = errors.New("sample rate must be positive")
)

// ProcessingError reports a failure in a named pipeline stage.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("audio processing failed at %s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Waveform is a mono audio signal: float samples in [-1, 1] paired with a
// sample rate. Mixing waveforms of different sample rates without
// resampling is an error everywhere in this package.
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the waveform length in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Empty reports whether the waveform carries no samples.
func (w Waveform) Empty() bool { return len(w.Samples) == 0 }

// Clone returns a deep copy of the waveform.
func (w Waveform) Clone() Waveform {
	out := Waveform{
		Samples:    make([]float64, len(w.Samples)),
		SampleRate: w.SampleRate,
	}
	copy(out.Samples, w.Samples)
	return out
}

// Silence returns a zero-valued waveform of the given duration.
func Silence(duration float64, sampleRate int) Waveform {
	n := int(math.Round(duration * float64(sampleRate)))
	if n < 0 {
		n = 0
	}
	return Waveform{Samples: make([]float64, n), SampleRate: sampleRate}
}

// peak returns the maximum absolute sample value.
func peak(samples []float64) float64 {
	var p float64
	for _, s := range samples {
		if a := math.Abs(s); a > p {
			p = a
		}
	}
	return p
}
