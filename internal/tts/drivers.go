package tts

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/aparsoft/voicekit/internal/audio"
	"github.com/aparsoft/voicekit/internal/engine"
)

// BatchItem is one text in a batch request.
type BatchItem struct {
	Text       string
	OutputPath string
}

// BatchResult pairs an item with its outcome. Exactly one of Result and
// Err is meaningful.
type BatchResult struct {
	Item   BatchItem
	Result Result
	Err    error
}

// BatchGenerate synthesizes each item independently. A failed item is
// recorded in its result and the batch continues; the returned error is
// non-nil only when every item failed.
func (s *Synthesizer) BatchGenerate(ctx context.Context, items []BatchItem, opts GenerateOptions) ([]BatchResult, error) {
	if len(items) == 0 {
		return nil, &engine.ValidationError{Field: "items", Message: "batch is empty"}
	}

	results := make([]BatchResult, len(items))
	failed := 0
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return results[:i], err
		}
		res, _, err := s.Generate(ctx, item.Text, item.OutputPath, opts)
		results[i] = BatchResult{Item: item, Result: res, Err: err}
		if err != nil {
			failed++
			log.Warn().Err(err).Int("item", i).Msg("batch item failed")
		}
	}

	log.Info().
		Int("total", len(items)).
		Int("failed", failed).
		Msg("batch generation complete")

	if failed == len(items) {
		return results, fmt.Errorf("all %d batch items failed", len(items))
	}
	return results, nil
}

// BatchToDir builds batch items writing segment_001.wav, segment_002.wav,
// ... under dir.
func BatchToDir(texts []string, dir string) []BatchItem {
	items := make([]BatchItem, len(texts))
	for i, text := range texts {
		items[i] = BatchItem{
			Text:       text,
			OutputPath: filepath.Join(dir, fmt.Sprintf("segment_%03d.wav", i+1)),
		}
	}
	return items
}

var scriptParagraphSplit = regexp.MustCompile(`\n\s*\n`)

// ProcessScript synthesizes a video-script style document: blank lines
// separate spoken sections, and gap seconds of silence sit between them
// in the output. A non-positive gap uses the configured script gap.
func (s *Synthesizer) ProcessScript(ctx context.Context, script, outputPath string, gap float64, opts GenerateOptions) (Result, error) {
	if strings.TrimSpace(script) == "" {
		return Result{}, &engine.ValidationError{Field: "script", Message: "must not be empty"}
	}
	if gap <= 0 {
		gap = s.config.ScriptGap
	}

	var sections []string
	for _, para := range scriptParagraphSplit.Split(script, -1) {
		if para = strings.TrimSpace(para); para != "" {
			sections = append(sections, para)
		}
	}

	log.Debug().Int("sections", len(sections)).Float64("gap", gap).Msg("processing script")

	segments := make([]audio.Waveform, 0, len(sections))
	sectionOpts := opts
	sectionOpts.SkipEnhance = true
	for i, section := range sections {
		_, w, err := s.Generate(ctx, section, "", sectionOpts)
		if err != nil {
			return Result{}, fmt.Errorf("section %d/%d: %w", i+1, len(sections), err)
		}
		segments = append(segments, w)
	}

	return s.finishCombined(ctx, segments, outputPath, gap, opts, strings.Join(sections, "\n\n"))
}

// PodcastSegment is one voiced part of a podcast.
type PodcastSegment struct {
	Text    string
	Voice   string
	Speed   float64
	Emotion string
}

// GeneratePodcast synthesizes ordered segments, each with its own voice,
// speed, and emotion, on a single engine, separated by gap seconds. A
// non-positive gap uses the configured podcast gap.
func (s *Synthesizer) GeneratePodcast(ctx context.Context, segments []PodcastSegment, outputPath string, gap float64, opts GenerateOptions) (Result, error) {
	if len(segments) == 0 {
		return Result{}, &engine.ValidationError{Field: "segments", Message: "podcast has no segments"}
	}
	if len(segments) > MaxPodcastSegments {
		return Result{}, &engine.ValidationError{
			Field:   "segments",
			Message: fmt.Sprintf("%d segments exceeds the limit of %d", len(segments), MaxPodcastSegments),
		}
	}
	if gap <= 0 {
		gap = s.config.PodcastGap
	}

	log.Debug().Int("segments", len(segments)).Float64("gap", gap).Msg("generating podcast")

	waves := make([]audio.Waveform, 0, len(segments))
	texts := make([]string, 0, len(segments))
	for i, seg := range segments {
		segOpts := opts
		segOpts.Voice = seg.Voice
		segOpts.Speed = seg.Speed
		segOpts.Emotion = seg.Emotion
		segOpts.SkipEnhance = true

		_, w, err := s.Generate(ctx, seg.Text, "", segOpts)
		if err != nil {
			return Result{}, fmt.Errorf("segment %d/%d: %w", i+1, len(segments), err)
		}
		waves = append(waves, w)
		texts = append(texts, seg.Text)
	}

	return s.finishCombined(ctx, waves, outputPath, gap, opts, strings.Join(texts, "\n\n"))
}

// finishCombined stitches the segments, applies enhancement per the
// request, saves, and records the result. sourceText is the concatenated
// input text, hashed into the history ledger.
func (s *Synthesizer) finishCombined(ctx context.Context, segments []audio.Waveform, outputPath string, gap float64, opts GenerateOptions, sourceText string) (Result, error) {
	combined, err := audio.Combine(segments, audio.CombineOptions{GapDuration: gap, EdgeFade: 0.05})
	if err != nil {
		return Result{}, err
	}

	if s.config.Enhance && !opts.SkipEnhance {
		// Trimming would eat the deliberate gaps, so only normalize and
		// fade the combined program.
		enhanceOpts := s.config.EnhanceOptions
		enhanceOpts.TrimSilence = false
		combined, err = audio.Enhance(combined, enhanceOpts)
		if err != nil {
			return Result{}, err
		}
	}

	if outputPath != "" {
		if err := audio.Save(combined, outputPath); err != nil {
			return Result{}, err
		}
	}

	engineName := opts.Engine
	if engineName == "" {
		engineName = s.config.DefaultEngine
	}
	res := Result{
		OutputPath: outputPath,
		Duration:   combined.Duration(),
		SampleRate: combined.SampleRate,
		Chunks:     len(segments),
		Engine:     engineName,
		Voice:      opts.Voice,
	}
	s.record(ctx, res, sourceText)
	return res, nil
}
