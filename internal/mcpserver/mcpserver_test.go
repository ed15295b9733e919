package mcpserver

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aparsoft/voicekit/internal/audio"
	"github.com/aparsoft/voicekit/internal/engine"
	"github.com/aparsoft/voicekit/internal/tts"
)

// ══════════════════════════════════════════════════════════════════════════════
// Test Helpers
// ══════════════════════════════════════════════════════════════════════════════

type fakeEngine struct{}

func (f *fakeEngine) Name() string    { return "fake" }
func (f *fakeEngine) SampleRate() int { return 24000 }
func (f *fakeEngine) MaxUnits() int   { return 510 }
func (f *fakeEngine) Health(ctx context.Context) error {
	return nil
}
func (f *fakeEngine) Voices() []engine.Voice {
	return []engine.Voice{
		{ID: "am_adam", Language: "en-us", Gender: engine.GenderMale},
		{ID: "hf_alpha", Language: "hi", Gender: engine.GenderFemale},
	}
}
func (f *fakeEngine) Generate(ctx context.Context, req engine.Request) (audio.Waveform, error) {
	samples := make([]float64, 2400)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/24000)
	}
	return audio.Waveform{Samples: samples, SampleRate: 24000}, nil
}

func newTestMCPServer(t *testing.T) *Server {
	t.Helper()
	r := engine.NewRegistry()
	r.Register("fake", func() (engine.Engine, error) { return &fakeEngine{}, nil })

	cfg := tts.DefaultConfig()
	cfg.DefaultEngine = "fake"
	cfg.Enhance = false
	synth := tts.New(r, cfg)

	return New(Config{Version: "test", OutputDir: t.TempDir()}, synth, r, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// Tool Handler Tests
// ══════════════════════════════════════════════════════════════════════════════

func TestGenerateSpeechTool(t *testing.T) {
	s := newTestMCPServer(t)
	voice := "am_adam"

	res, _, err := s.handleGenerate(context.Background(), nil, generateParams{
		Text:  "Hello world.",
		Voice: &voice,
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	text := contentText(t, res.Content)
	assert.Contains(t, text, "Generated")
	assert.Contains(t, text, ".wav")
}

func TestGenerateSpeechToolValidation(t *testing.T) {
	s := newTestMCPServer(t)

	res, _, err := s.handleGenerate(context.Background(), nil, generateParams{Text: ""})
	require.NoError(t, err, "tool failures surface in the result, not as protocol errors")
	assert.True(t, res.IsError)
	assert.Contains(t, contentText(t, res.Content), "text")
}

func TestGenerateSpeechToolExplicitOutput(t *testing.T) {
	s := newTestMCPServer(t)
	out := filepath.Join(t.TempDir(), "explicit.wav")

	res, _, err := s.handleGenerate(context.Background(), nil, generateParams{
		Text:       "Hello.",
		OutputPath: &out,
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	loaded, err := audio.Load(out)
	require.NoError(t, err)
	assert.Equal(t, 24000, loaded.SampleRate)
}

func TestBatchGenerateTool(t *testing.T) {
	s := newTestMCPServer(t)

	res, _, err := s.handleBatch(context.Background(), nil, batchParams{
		Texts: []string{"First.", "Second."},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	text := contentText(t, res.Content)
	assert.Contains(t, text, "2/2 items succeeded")
	assert.Contains(t, text, "segment_001.wav")
}

func TestProcessScriptTool(t *testing.T) {
	s := newTestMCPServer(t)

	res, _, err := s.handleScript(context.Background(), nil, scriptParams{
		Script: "Part one.\n\nPart two.",
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, contentText(t, res.Content), "2 sections")
}

func TestGeneratePodcastTool(t *testing.T) {
	s := newTestMCPServer(t)
	host := "am_adam"
	guest := "hf_alpha"

	res, _, err := s.handlePodcast(context.Background(), nil, podcastParams{
		Segments: []podcastSegmentParams{
			{Text: "Welcome.", Voice: &host},
			{Text: "Thanks.", Voice: &guest},
		},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, contentText(t, res.Content), "2 segments")
}

func TestListVoicesTool(t *testing.T) {
	s := newTestMCPServer(t)
	name := "fake"

	res, _, err := s.handleListVoices(context.Background(), nil, listVoicesParams{Engine: &name})
	require.NoError(t, err)
	require.False(t, res.IsError)

	text := contentText(t, res.Content)
	assert.Contains(t, text, "am_adam")
	assert.Contains(t, text, "hindi_female")
	assert.Contains(t, text, "24000 Hz")
}

func TestListVoicesDefaultsToConfiguredEngine(t *testing.T) {
	s := newTestMCPServer(t)

	res, _, err := s.handleListVoices(context.Background(), nil, listVoicesParams{})
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, contentText(t, res.Content), "Engine fake")
}

func TestListVoicesUnknownEngine(t *testing.T) {
	s := newTestMCPServer(t)
	name := "nope"

	res, _, err := s.handleListVoices(context.Background(), nil, listVoicesParams{Engine: &name})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestTranscribeToolWithoutWhisper(t *testing.T) {
	s := newTestMCPServer(t)

	res, _, err := s.handleTranscribe(context.Background(), nil, transcribeParams{AudioPath: "/tmp/x.wav"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, contentText(t, res.Content), "whisper")
}

// contentText concatenates the text content blocks of a result.
func contentText(t *testing.T, content []mcp.Content) string {
	t.Helper()
	var b strings.Builder
	for _, c := range content {
		if tc, ok := c.(*mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}
