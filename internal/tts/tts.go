// Package tts orchestrates speech generation: it validates requests,
// splits long text into chunks, drives the engine adapters, stitches and
// enhances the audio, and persists the result atomically. Batch, script,
// and podcast workflows build on the same core path.
package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/aparsoft/voicekit/internal/audio"
	"github.com/aparsoft/voicekit/internal/chunker"
	"github.com/aparsoft/voicekit/internal/engine"
)

// Gap defaults between stitched pieces, in seconds.
const (
	DefaultChunkGap   = 0.3
	DefaultScriptGap  = 0.5
	DefaultPodcastGap = 0.6
)

// MaxPodcastSegments bounds a single podcast request.
const MaxPodcastSegments = 50

// Config holds the orchestrator defaults. Zero values fall back to the
// documented defaults in New.
type Config struct {
	// DefaultEngine is used when a request names no engine.
	DefaultEngine string

	// ChunkGap is the silence between stitched chunks of one text.
	ChunkGap float64

	// ScriptGap and PodcastGap are the inter-section pauses used when a
	// request passes no explicit gap.
	ScriptGap  float64
	PodcastGap float64

	// Enhance enables post-processing of generated audio.
	Enhance        bool
	EnhanceOptions audio.EnhanceOptions

	// Chunking sets the text splitting budgets.
	Chunking chunker.Options
}

// DefaultConfig returns the standard orchestrator settings.
func DefaultConfig() Config {
	return Config{
		DefaultEngine:  "kokoro",
		ChunkGap:       DefaultChunkGap,
		ScriptGap:      DefaultScriptGap,
		PodcastGap:     DefaultPodcastGap,
		Enhance:        true,
		EnhanceOptions: audio.DefaultEnhanceOptions(),
		Chunking:       chunker.DefaultOptions(),
	}
}

// Recorder persists completed generations. A nil recorder disables
// history.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Record is one completed generation.
type Record struct {
	ID         string
	Engine     string
	Voice      string
	TextHash   string
	Duration   float64
	OutputPath string
	CreatedAt  time.Time
}

// Synthesizer is the generation orchestrator. Engines are resolved
// through the registry on each request, so adapters construct lazily and
// are shared across workflows.
type Synthesizer struct {
	registry *engine.Registry
	config   Config
	recorder Recorder
}

// New creates a synthesizer over the given registry.
func New(registry *engine.Registry, config Config) *Synthesizer {
	if config.DefaultEngine == "" {
		config.DefaultEngine = "kokoro"
	}
	if config.ChunkGap <= 0 {
		config.ChunkGap = DefaultChunkGap
	}
	if config.ScriptGap <= 0 {
		config.ScriptGap = DefaultScriptGap
	}
	if config.PodcastGap <= 0 {
		config.PodcastGap = DefaultPodcastGap
	}
	if config.Chunking.AbsoluteMaxUnits <= 0 {
		config.Chunking = chunker.DefaultOptions()
	}
	return &Synthesizer{registry: registry, config: config}
}

// DefaultEngine returns the engine used when a request names none.
func (s *Synthesizer) DefaultEngine() string { return s.config.DefaultEngine }

// WithRecorder attaches a history recorder and returns the synthesizer.
func (s *Synthesizer) WithRecorder(r Recorder) *Synthesizer {
	s.recorder = r
	return s
}

// GenerateOptions override the per-request settings.
type GenerateOptions struct {
	Engine  string
	Voice   string
	Speed   float64
	Emotion string

	// SkipEnhance bypasses post-processing for this request.
	SkipEnhance bool
}

// Result describes a completed generation.
type Result struct {
	OutputPath string
	Duration   float64
	SampleRate int
	Chunks     int
	Engine     string
	Voice      string
}

// Generate synthesizes text into a single waveform, writing it to
// outputPath when non-empty. Text over the engine's unit limit is split
// into chunks, synthesized in order, and stitched with a short gap. A
// failed chunk aborts the whole request.
func (s *Synthesizer) Generate(ctx context.Context, text, outputPath string, opts GenerateOptions) (Result, audio.Waveform, error) {
	eng, err := s.resolveEngine(opts.Engine)
	if err != nil {
		return Result{}, audio.Waveform{}, err
	}

	req := engine.Request{Text: text, Voice: opts.Voice, Speed: opts.Speed, Emotion: opts.Emotion}
	if err := engine.ValidateRequest(req, eng); err != nil {
		return Result{}, audio.Waveform{}, err
	}

	w, chunks, err := s.synthesize(ctx, eng, req)
	if err != nil {
		return Result{}, audio.Waveform{}, err
	}

	if s.config.Enhance && !opts.SkipEnhance {
		w, err = audio.Enhance(w, s.config.EnhanceOptions)
		if err != nil {
			return Result{}, audio.Waveform{}, err
		}
	}

	if outputPath != "" {
		if err := audio.Save(w, outputPath); err != nil {
			return Result{}, audio.Waveform{}, err
		}
	}

	res := Result{
		OutputPath: outputPath,
		Duration:   w.Duration(),
		SampleRate: w.SampleRate,
		Chunks:     chunks,
		Engine:     eng.Name(),
		Voice:      opts.Voice,
	}
	s.record(ctx, res, text)

	log.Info().
		Str("engine", res.Engine).
		Int("chunks", res.Chunks).
		Float64("duration", res.Duration).
		Str("output", outputPath).
		Msg("generation complete")
	return res, w, nil
}

// GenerateStream synthesizes text chunk by chunk, invoking fn for each
// waveform in source order. Enhancement is skipped; chunks are meant for
// immediate playback. A callback error stops the stream.
func (s *Synthesizer) GenerateStream(ctx context.Context, text string, opts GenerateOptions, fn func(chunk chunker.Chunk, w audio.Waveform) error) error {
	eng, err := s.resolveEngine(opts.Engine)
	if err != nil {
		return err
	}

	req := engine.Request{Text: text, Voice: opts.Voice, Speed: opts.Speed, Emotion: opts.Emotion}
	if err := engine.ValidateRequest(req, eng); err != nil {
		return err
	}

	chunks, err := s.splitForEngine(text, eng)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		creq := req
		creq.Text = c.Text
		w, err := eng.Generate(ctx, creq)
		if err != nil {
			return fmt.Errorf("chunk %d/%d: %w", c.Index+1, len(chunks), err)
		}
		if err := fn(c, w); err != nil {
			return err
		}
	}
	return nil
}

// synthesize runs the chunk-and-stitch core and returns the combined
// waveform plus the chunk count.
func (s *Synthesizer) synthesize(ctx context.Context, eng engine.Engine, req engine.Request) (audio.Waveform, int, error) {
	chunks, err := s.splitForEngine(req.Text, eng)
	if err != nil {
		return audio.Waveform{}, 0, err
	}

	if len(chunks) == 1 {
		w, err := eng.Generate(ctx, req)
		if err != nil {
			return audio.Waveform{}, 0, err
		}
		return w, 1, nil
	}

	log.Debug().
		Int("chunks", len(chunks)).
		Str("engine", eng.Name()).
		Msg("long text, using chunked synthesis")

	segments := make([]audio.Waveform, 0, len(chunks))
	for _, c := range chunks {
		creq := req
		creq.Text = c.Text
		w, err := eng.Generate(ctx, creq)
		if err != nil {
			return audio.Waveform{}, 0, fmt.Errorf("chunk %d/%d: %w", c.Index+1, len(chunks), err)
		}
		segments = append(segments, w)
	}

	combined, err := audio.Combine(segments, audio.CombineOptions{
		GapDuration: s.config.ChunkGap,
		EdgeFade:    0.05,
	})
	if err != nil {
		return audio.Waveform{}, 0, err
	}
	return combined, len(chunks), nil
}

// splitForEngine chunks text against the configured budgets clamped to
// the engine's unit limit. Text that fits in one call is returned as a
// single chunk.
func (s *Synthesizer) splitForEngine(text string, eng engine.Engine) ([]chunker.Chunk, error) {
	if text != "" && chunker.EstimateUnits(text) <= eng.MaxUnits() {
		units := chunker.EstimateUnits(text)
		return []chunker.Chunk{{Index: 0, Text: text, Units: units}}, nil
	}
	opts := s.config.Chunking
	if eng.MaxUnits() < opts.AbsoluteMaxUnits {
		opts.AbsoluteMaxUnits = eng.MaxUnits()
		if opts.TargetMaxUnits > opts.AbsoluteMaxUnits {
			opts.TargetMaxUnits = opts.AbsoluteMaxUnits
		}
	}
	return chunker.Split(text, opts)
}

func (s *Synthesizer) resolveEngine(name string) (engine.Engine, error) {
	if name == "" {
		name = s.config.DefaultEngine
	}
	return s.registry.Get(name)
}

// record writes the generation to history. Failures are logged, never
// surfaced: a working WAV beats a complete ledger.
func (s *Synthesizer) record(ctx context.Context, res Result, text string) {
	if s.recorder == nil || res.OutputPath == "" {
		return
	}
	sum := sha256.Sum256([]byte(text))
	rec := Record{
		ID:         uuid.NewString(),
		Engine:     res.Engine,
		Voice:      res.Voice,
		TextHash:   hex.EncodeToString(sum[:]),
		Duration:   res.Duration,
		OutputPath: res.OutputPath,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.recorder.Record(ctx, rec); err != nil {
		log.Warn().Err(err).Str("id", rec.ID).Msg("failed to record generation history")
	}
}
