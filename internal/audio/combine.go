package audio

import (
	"math"

	"github.com/rs/zerolog/log"
)

// CombineOptions controls segment concatenation.
type CombineOptions struct {
	// GapDuration is the silence inserted between consecutive segments,
	// in seconds. No gap is added before the first or after the last.
	GapDuration float64

	// EdgeFade smooths each segment boundary with a short linear fade of
	// this many seconds. Length-preserving; prevents clicks at joins.
	EdgeFade float64
}

// DefaultCombineOptions returns the standard combining settings.
func DefaultCombineOptions() CombineOptions {
	return CombineOptions{
		GapDuration: 0.5,
		EdgeFade:    0.1,
	}
}

// Combine concatenates segments in order with silence gaps between them.
// All segments must share one sample rate; mixing rates would corrupt
// pitch and duration, so it is rejected outright. The output length is
// exactly sum(segment lengths) + (n-1) * round(gap * rate).
func Combine(segments []Waveform, opts CombineOptions) (Waveform, error) {
	if len(segments) == 0 {
		return Waveform{}, ErrNoSegments
	}
	rate := segments[0].SampleRate
	if rate <= 0 {
		return Waveform{}, ErrInvalidSampleRate
	}
	for _, seg := range segments {
		if seg.SampleRate != rate {
			return Waveform{}, ErrSampleRateMismatch
		}
	}

	// Nothing to separate or smooth.
	if len(segments) == 1 {
		return segments[0].Clone(), nil
	}

	gapSamples := int(math.Round(opts.GapDuration * float64(rate)))
	if gapSamples < 0 {
		gapSamples = 0
	}
	fadeSamples := int(opts.EdgeFade * float64(rate))

	total := gapSamples * (len(segments) - 1)
	for _, seg := range segments {
		total += len(seg.Samples)
	}

	out := make([]float64, 0, total)
	for i, seg := range segments {
		out = append(out, smoothEdges(seg.Samples, fadeSamples)...)
		if i < len(segments)-1 {
			out = append(out, make([]float64, gapSamples)...)
		}
	}

	log.Debug().
		Int("segments", len(segments)).
		Int("gap_samples", gapSamples).
		Int("output_samples", len(out)).
		Msg("segments combined")

	return Waveform{Samples: out, SampleRate: rate}, nil
}

// smoothEdges returns a copy with short linear fades at both ends.
// Segments shorter than the fade window are copied untouched.
func smoothEdges(samples []float64, fadeSamples int) []float64 {
	out := make([]float64, len(samples))
	copy(out, samples)
	if fadeSamples <= 0 || len(samples) <= fadeSamples {
		return out
	}
	for i := 0; i < fadeSamples; i++ {
		ramp := float64(i) / float64(fadeSamples)
		out[i] *= ramp
		out[len(out)-1-i] *= ramp
	}
	return out
}
