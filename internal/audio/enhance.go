package audio

import (
	"math"
	"sort"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectral analysis parameters for silence detection and noise gating.
// Small frames give fine edge resolution and avoid clipping soft onsets.
const (
	frameLength = 512
	hopLength   = 128
)

// silencePeakFloor is the peak amplitude below which normalization is
// skipped; rescaling near-silence would only amplify noise.
const silencePeakFloor = 1e-10

// EnhanceOptions controls the enhancement stages. Stage order is fixed:
// normalize, trim silence, noise reduction, fade.
type EnhanceOptions struct {
	// Normalize rescales samples so the peak absolute amplitude is 1.0.
	Normalize bool

	// TrimSilence removes leading and trailing regions quieter than
	// TrimDB decibels below peak. Interior silence is never touched.
	TrimSilence bool
	TrimDB      float64

	// NoiseReduction applies a percentile-based spectral gate that
	// removes steady low-level hiss. Disable for pre-cleaned input.
	NoiseReduction       bool
	NoiseFloorPercentile float64

	// AddFade applies linear fade in/out ramps of FadeDuration seconds,
	// clamped to a quarter of the signal length.
	AddFade      bool
	FadeDuration float64
}

// DefaultEnhanceOptions returns the standard enhancement settings.
func DefaultEnhanceOptions() EnhanceOptions {
	return EnhanceOptions{
		Normalize:            true,
		TrimSilence:          true,
		TrimDB:               30.0,
		NoiseReduction:       true,
		NoiseFloorPercentile: 10.0,
		AddFade:              true,
		FadeDuration:         0.1,
	}
}

// Enhance runs the enabled stages over the waveform in fixed order and
// returns a new waveform at the same sample rate. The output is never
// longer than the input: trimming shortens, the other stages preserve
// length. An empty input is an error.
func Enhance(w Waveform, opts EnhanceOptions) (Waveform, error) {
	if w.Empty() {
		return Waveform{}, &ProcessingError{Stage: "enhance", Err: ErrEmptyWaveform}
	}
	if w.SampleRate <= 0 {
		return Waveform{}, &ProcessingError{Stage: "enhance", Err: ErrInvalidSampleRate}
	}

	log.Debug().
		Int("samples", len(w.Samples)).
		Int("sample_rate", w.SampleRate).
		Bool("normalize", opts.Normalize).
		Bool("trim_silence", opts.TrimSilence).
		Bool("noise_reduction", opts.NoiseReduction).
		Msg("enhancing audio")

	out := w.Clone()

	if opts.Normalize {
		out.Samples = normalize(out.Samples)
	}
	if opts.TrimSilence {
		out.Samples = trimSilence(out.Samples, opts.TrimDB)
	}
	if opts.NoiseReduction {
		out.Samples = spectralGate(out.Samples, opts.NoiseFloorPercentile)
	}
	if opts.AddFade {
		out.Samples = applyFade(out.Samples, out.SampleRate, opts.FadeDuration)
	}

	log.Debug().Int("output_samples", len(out.Samples)).Msg("audio enhanced")
	return out, nil
}

// normalize rescales so the peak absolute amplitude becomes 1.0. A
// near-silent signal is returned unchanged to avoid amplifying noise.
func normalize(samples []float64) []float64 {
	p := peak(samples)
	if p < silencePeakFloor {
		return samples
	}
	out := make([]float64, len(samples))
	scale := 1.0 / p
	for i, s := range samples {
		out[i] = s * scale
	}
	return out
}

// trimSilence removes edge regions whose frame peak stays below the
// threshold, expressed in dB under the signal peak. A fully silent
// signal is returned unchanged rather than emptied.
func trimSilence(samples []float64, trimDB float64) []float64 {
	p := peak(samples)
	if p < silencePeakFloor {
		return samples
	}
	threshold := p * math.Pow(10, -trimDB/20)

	frameActive := func(start int) bool {
		end := start + frameLength
		if end > len(samples) {
			end = len(samples)
		}
		for _, s := range samples[start:end] {
			if math.Abs(s) >= threshold {
				return true
			}
		}
		return false
	}

	first, last := -1, -1
	for start := 0; start < len(samples); start += hopLength {
		if frameActive(start) {
			if first < 0 {
				first = start
			}
			last = start
		}
	}
	if first < 0 {
		return samples
	}

	end := last + frameLength
	if end > len(samples) {
		end = len(samples)
	}
	return samples[first:end]
}

// spectralGate computes an STFT, estimates the noise floor as a low
// percentile of the magnitude spectrum, zeroes bins below the floor, and
// reconstructs by overlap-add with the original phase. Length is
// preserved exactly.
func spectralGate(samples []float64, percentile float64) []float64 {
	if len(samples) < frameLength {
		// Too short for a single analysis frame; nothing to gate.
		return samples
	}

	window := hannWindow(frameLength)
	fft := fourier.NewFFT(frameLength)
	bins := frameLength/2 + 1

	numFrames := 1 + (len(samples)-frameLength+hopLength-1)/hopLength
	padded := make([]float64, (numFrames-1)*hopLength+frameLength)
	copy(padded, samples)

	// Analysis pass: windowed FFT per frame, collecting all magnitudes
	// for the percentile estimate.
	spectra := make([][]complex128, numFrames)
	mags := make([]float64, 0, numFrames*bins)
	frame := make([]float64, frameLength)
	for f := 0; f < numFrames; f++ {
		off := f * hopLength
		for i := 0; i < frameLength; i++ {
			frame[i] = padded[off+i] * window[i]
		}
		coeffs := fft.Coefficients(nil, frame)
		spectra[f] = coeffs
		for _, c := range coeffs {
			mags = append(mags, cmplxAbs(c))
		}
	}

	floor := percentileOf(mags, percentile)

	// Gate: zeroing a complex coefficient zeroes its magnitude while the
	// remaining bins keep their original phase.
	for _, coeffs := range spectra {
		for i, c := range coeffs {
			if cmplxAbs(c) < floor {
				coeffs[i] = 0
			}
		}
	}

	// Synthesis pass: inverse FFT and windowed overlap-add, normalized
	// by the accumulated squared window.
	out := make([]float64, len(padded))
	wsum := make([]float64, len(padded))
	for f := 0; f < numFrames; f++ {
		off := f * hopLength
		seq := fft.Sequence(nil, spectra[f])
		for i := 0; i < frameLength; i++ {
			// gonum's Sequence is unnormalized; divide by frame length.
			s := seq[i] / float64(frameLength)
			out[off+i] += s * window[i]
			wsum[off+i] += window[i] * window[i]
		}
	}
	for i := range out {
		if wsum[i] > 1e-12 {
			out[i] /= wsum[i]
		}
	}

	return out[:len(samples)]
}

// applyFade applies linear fade in/out ramps. The fade window is clamped
// to a quarter of the signal so short clips are faded, not failed.
func applyFade(samples []float64, sampleRate int, duration float64) []float64 {
	fadeSamples := int(duration * float64(sampleRate))
	if max := len(samples) / 4; fadeSamples > max {
		fadeSamples = max
	}
	if fadeSamples <= 0 {
		return samples
	}

	out := make([]float64, len(samples))
	copy(out, samples)
	for i := 0; i < fadeSamples; i++ {
		ramp := float64(i) / float64(fadeSamples)
		out[i] *= ramp
		out[len(out)-1-i] *= ramp
	}
	return out
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// percentileOf returns the p-th percentile (0-100) of values by
// nearest-rank on a sorted copy.
func percentileOf(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
