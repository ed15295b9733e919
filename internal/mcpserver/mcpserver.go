// Package mcpserver exposes the synthesis pipeline as Model Context
// Protocol tools over stdio, so agent runtimes can generate speech,
// assemble podcasts, and transcribe audio without shelling out.
package mcpserver

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/aparsoft/voicekit/internal/engine"
	"github.com/aparsoft/voicekit/internal/transcribe"
	"github.com/aparsoft/voicekit/internal/tts"
)

// Config holds the MCP server settings.
type Config struct {
	Version   string
	OutputDir string
}

// Server wires the voicekit tools into an MCP server.
type Server struct {
	config      Config
	synth       *tts.Synthesizer
	registry    *engine.Registry
	transcriber *transcribe.Service
	mcpServer   *mcp.Server
}

// New builds the server and registers all tools. transcriber may be nil
// when whisper.cpp is not installed; the transcription tool then reports
// the missing dependency.
func New(config Config, synth *tts.Synthesizer, registry *engine.Registry, transcriber *transcribe.Service) *Server {
	if config.OutputDir == "" {
		config.OutputDir = "."
	}

	s := &Server{
		config:      config,
		synth:       synth,
		registry:    registry,
		transcriber: transcriber,
	}
	s.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    "voicekit",
		Title:   "VoiceKit Text-to-Speech",
		Version: config.Version,
	}, nil)
	s.registerTools()
	return s
}

// Run serves MCP over stdio until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	log.Info().Msg("mcp server listening on stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// ══════════════════════════════════════════════════════════════════════════════
// Tool Parameters
// ══════════════════════════════════════════════════════════════════════════════

type generateParams struct {
	Text       string   `json:"text" mcp:"The text to convert to speech"`
	Engine     *string  `json:"engine,omitempty" mcp:"Engine to use: kokoro, indic, or openvoice (default: kokoro)"`
	Voice      *string  `json:"voice,omitempty" mcp:"Voice ID from the engine's catalog (e.g. 'am_michael', 'af_bella')"`
	Speed      *float64 `json:"speed,omitempty" mcp:"Speech speed multiplier (0.5-2.0, default: 1.0)"`
	Emotion    *string  `json:"emotion,omitempty" mcp:"Emotion label, indic engine only (neutral, happy, sad, angry, surprise, calm)"`
	OutputPath *string  `json:"output_path,omitempty" mcp:"Where to write the WAV file (default: generated name in the output directory)"`
}

type batchParams struct {
	Texts     []string `json:"texts" mcp:"Texts to synthesize, one output file each"`
	OutputDir *string  `json:"output_dir,omitempty" mcp:"Directory for segment_NNN.wav files (default: the output directory)"`
	Engine    *string  `json:"engine,omitempty" mcp:"Engine to use (default: kokoro)"`
	Voice     *string  `json:"voice,omitempty" mcp:"Voice ID for all items"`
}

type scriptParams struct {
	Script     string   `json:"script" mcp:"Script text; blank lines separate spoken sections"`
	Gap        *float64 `json:"gap,omitempty" mcp:"Silence between sections in seconds (default: 0.5)"`
	Voice      *string  `json:"voice,omitempty" mcp:"Voice ID for the whole script"`
	Engine     *string  `json:"engine,omitempty" mcp:"Engine to use (default: kokoro)"`
	OutputPath *string  `json:"output_path,omitempty" mcp:"Where to write the WAV file"`
}

type podcastSegmentParams struct {
	Text    string   `json:"text" mcp:"Segment text"`
	Voice   *string  `json:"voice,omitempty" mcp:"Voice ID for this segment"`
	Speed   *float64 `json:"speed,omitempty" mcp:"Speed for this segment (0.5-2.0)"`
	Emotion *string  `json:"emotion,omitempty" mcp:"Emotion for this segment, indic engine only"`
}

type podcastParams struct {
	Segments   []podcastSegmentParams `json:"segments" mcp:"Ordered podcast segments, each with its own voice"`
	Gap        *float64               `json:"gap,omitempty" mcp:"Silence between segments in seconds (default: 0.6)"`
	Engine     *string                `json:"engine,omitempty" mcp:"Engine for all segments (default: kokoro)"`
	OutputPath *string                `json:"output_path,omitempty" mcp:"Where to write the WAV file"`
}

type listVoicesParams struct {
	Engine *string `json:"engine,omitempty" mcp:"Engine whose catalog to list (default: the configured default engine)"`
}

type transcribeParams struct {
	AudioPath string  `json:"audio_path" mcp:"Path to the audio file to transcribe"`
	Language  *string `json:"language,omitempty" mcp:"Language hint (e.g. 'en', 'hi')"`
}

// ══════════════════════════════════════════════════════════════════════════════
// Tool Registration
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "generate_speech",
		Title:       "Generate Speech",
		Description: "Convert text to speech and save it as a WAV file. Long text is automatically chunked and stitched.",
	}, s.handleGenerate)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "batch_generate",
		Title:       "Batch Generate",
		Description: "Convert multiple texts to speech, one WAV file each. Items fail independently.",
	}, s.handleBatch)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "process_script",
		Title:       "Process Script",
		Description: "Convert a multi-section script (blank-line separated) into one WAV with silence gaps between sections.",
	}, s.handleScript)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "generate_podcast",
		Title:       "Generate Podcast",
		Description: "Convert ordered segments with per-segment voices into one WAV conversation.",
	}, s.handlePodcast)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_voices",
		Title:       "List Voices",
		Description: "List the voice catalog of an engine, grouped by language and gender.",
	}, s.handleListVoices)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "transcribe_audio",
		Title:       "Transcribe Audio",
		Description: "Transcribe an audio file to text with timestamps using whisper.cpp.",
	}, s.handleTranscribe)
}

// ══════════════════════════════════════════════════════════════════════════════
// Tool Handlers
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGenerate(ctx context.Context, _ *mcp.CallToolRequest, input generateParams) (*mcp.CallToolResult, any, error) {
	outputPath := strVal(input.OutputPath)
	if outputPath == "" {
		outputPath = filepath.Join(s.config.OutputDir, uuid.NewString()+".wav")
	}

	res, _, err := s.synth.Generate(ctx, input.Text, outputPath, tts.GenerateOptions{
		Engine:  strVal(input.Engine),
		Voice:   strVal(input.Voice),
		Speed:   floatVal(input.Speed),
		Emotion: strVal(input.Emotion),
	})
	if err != nil {
		return errResult(err), nil, nil
	}
	return textResult(fmt.Sprintf("Generated %.2fs of speech (%d chunks, engine %s) at %s",
		res.Duration, res.Chunks, res.Engine, res.OutputPath)), nil, nil
}

func (s *Server) handleBatch(ctx context.Context, _ *mcp.CallToolRequest, input batchParams) (*mcp.CallToolResult, any, error) {
	dir := strVal(input.OutputDir)
	if dir == "" {
		dir = s.config.OutputDir
	}

	results, err := s.synth.BatchGenerate(ctx, tts.BatchToDir(input.Texts, dir), tts.GenerateOptions{
		Engine: strVal(input.Engine),
		Voice:  strVal(input.Voice),
	})
	if err != nil && len(results) == 0 {
		return errResult(err), nil, nil
	}

	var b strings.Builder
	succeeded := 0
	for i, r := range results {
		if r.Err != nil {
			fmt.Fprintf(&b, "item %d: FAILED: %v\n", i+1, r.Err)
			continue
		}
		succeeded++
		fmt.Fprintf(&b, "item %d: %s (%.2fs)\n", i+1, r.Result.OutputPath, r.Result.Duration)
	}
	fmt.Fprintf(&b, "%d/%d items succeeded", succeeded, len(results))

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: b.String()}},
		IsError: succeeded == 0,
	}, nil, nil
}

func (s *Server) handleScript(ctx context.Context, _ *mcp.CallToolRequest, input scriptParams) (*mcp.CallToolResult, any, error) {
	outputPath := strVal(input.OutputPath)
	if outputPath == "" {
		outputPath = filepath.Join(s.config.OutputDir, uuid.NewString()+".wav")
	}

	res, err := s.synth.ProcessScript(ctx, input.Script, outputPath, floatVal(input.Gap), tts.GenerateOptions{
		Engine: strVal(input.Engine),
		Voice:  strVal(input.Voice),
	})
	if err != nil {
		return errResult(err), nil, nil
	}
	return textResult(fmt.Sprintf("Processed script: %d sections, %.2fs total, saved to %s",
		res.Chunks, res.Duration, res.OutputPath)), nil, nil
}

func (s *Server) handlePodcast(ctx context.Context, _ *mcp.CallToolRequest, input podcastParams) (*mcp.CallToolResult, any, error) {
	outputPath := strVal(input.OutputPath)
	if outputPath == "" {
		outputPath = filepath.Join(s.config.OutputDir, uuid.NewString()+".wav")
	}

	segments := make([]tts.PodcastSegment, len(input.Segments))
	for i, seg := range input.Segments {
		segments[i] = tts.PodcastSegment{
			Text:    seg.Text,
			Voice:   strVal(seg.Voice),
			Speed:   floatVal(seg.Speed),
			Emotion: strVal(seg.Emotion),
		}
	}

	res, err := s.synth.GeneratePodcast(ctx, segments, outputPath, floatVal(input.Gap), tts.GenerateOptions{
		Engine: strVal(input.Engine),
	})
	if err != nil {
		return errResult(err), nil, nil
	}
	return textResult(fmt.Sprintf("Generated podcast: %d segments, %.2fs total, saved to %s",
		res.Chunks, res.Duration, res.OutputPath)), nil, nil
}

func (s *Server) handleListVoices(ctx context.Context, _ *mcp.CallToolRequest, input listVoicesParams) (*mcp.CallToolResult, any, error) {
	name := strVal(input.Engine)
	if name == "" {
		name = s.synth.DefaultEngine()
	}
	e, err := s.registry.Get(name)
	if err != nil {
		return errResult(err), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Engine %s (%d Hz, max %d units per call)\n", e.Name(), e.SampleRate(), e.MaxUnits())
	for group, ids := range engine.GroupVoices(e.Voices()) {
		if group == "all" || len(ids) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", group, strings.Join(ids, ", "))
	}
	if ee, ok := e.(engine.EmotionEngine); ok {
		fmt.Fprintf(&b, "emotions: %s\n", strings.Join(ee.Emotions(), ", "))
	}
	if _, ok := e.(engine.CloningEngine); ok {
		b.WriteString("supports voice cloning from reference audio\n")
	}
	return textResult(b.String()), nil, nil
}

func (s *Server) handleTranscribe(ctx context.Context, _ *mcp.CallToolRequest, input transcribeParams) (*mcp.CallToolResult, any, error) {
	if s.transcriber == nil {
		return errResult(fmt.Errorf("transcription unavailable: whisper.cpp not installed")), nil, nil
	}

	tr, err := s.transcriber.TranscribeFile(ctx, input.AudioPath, strVal(input.Language))
	if err != nil {
		return errResult(err), nil, nil
	}

	var b strings.Builder
	b.WriteString(tr.Text)
	if len(tr.Segments) > 0 {
		b.WriteString("\n\nSegments:\n")
		for _, seg := range tr.Segments {
			fmt.Fprintf(&b, "[%.2f-%.2f] %s\n", seg.Start, seg.End, seg.Text)
		}
	}
	return textResult(b.String()), nil, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// Helpers
// ══════════════════════════════════════════════════════════════════════════════

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + err.Error()}},
		IsError: true,
	}
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func floatVal(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
