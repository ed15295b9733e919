package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog/log"
)

const wavBitDepth = 16

// Save writes the waveform to path as 16-bit PCM mono WAV. The file is
// written to a temp sibling and renamed into place, so readers never see
// a partial file and a failed write leaves no artifact behind.
func Save(w Waveform, path string) error {
	if w.Empty() {
		return &ProcessingError{Stage: "save", Err: ErrEmptyWaveform}
	}
	if w.SampleRate <= 0 {
		return &ProcessingError{Stage: "save", Err: ErrInvalidSampleRate}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &ProcessingError{Stage: "save", Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".voicekit-*.wav")
	if err != nil {
		return &ProcessingError{Stage: "save", Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := encodeWAV(tmp, w); err != nil {
		tmp.Close()
		return &ProcessingError{Stage: "save", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &ProcessingError{Stage: "save", Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return &ProcessingError{Stage: "save", Err: err}
	}

	log.Debug().
		Str("path", path).
		Float64("duration", w.Duration()).
		Int("sample_rate", w.SampleRate).
		Msg("wav saved")
	return nil
}

func encodeWAV(f *os.File, w Waveform) error {
	ints := make([]int, len(w.Samples))
	for i, s := range w.Samples {
		clamped := math.Max(-1.0, math.Min(1.0, s))
		ints[i] = int(clamped * 32767)
	}

	enc := wav.NewEncoder(f, w.SampleRate, wavBitDepth, 1, 1)
	buf := &goaudio.IntBuffer{
		Data:           ints,
		Format:         &goaudio.Format{SampleRate: w.SampleRate, NumChannels: 1},
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// Load reads a WAV file into a waveform, downmixing multi-channel input
// to mono by channel averaging.
func Load(path string) (Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return Waveform{}, &ProcessingError{Stage: "load", Err: err}
	}
	defer f.Close()

	w, err := DecodeWAV(f)
	if err != nil {
		return Waveform{}, &ProcessingError{Stage: "load", Err: fmt.Errorf("%s: %w", path, err)}
	}
	return w, nil
}

// DecodeWAV decodes WAV data from a seekable reader, downmixing
// multi-channel input to mono by channel averaging.
func DecodeWAV(r io.ReadSeeker) (Waveform, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Waveform{}, errors.New("not a valid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Waveform{}, err
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	scale := 1.0 / float64(int(1)<<(uint(dec.BitDepth)-1))

	samples := make([]float64, len(buf.Data)/channels)
	for i := range samples {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		samples[i] = sum / float64(channels) * scale
	}

	return Waveform{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

// FileDuration returns the duration of a WAV file in seconds without
// keeping the samples.
func FileDuration(path string) (float64, error) {
	w, err := Load(path)
	if err != nil {
		return 0, err
	}
	return w.Duration(), nil
}
