package transcribe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ══════════════════════════════════════════════════════════════════════════════
// Timestamp Parsing Tests
// ══════════════════════════════════════════════════════════════════════════════

func TestParseTimestamp(t *testing.T) {
	cases := map[string]float64{
		"00:00:00,000": 0,
		"00:00:02,500": 2.5,
		"00:01:30,250": 90.25,
		"01:00:00,000": 3600,
		"02:15:45,100": 2*3600 + 15*60 + 45.1,
	}
	for ts, want := range cases {
		assert.InDelta(t, want, parseTimestamp(ts), 1e-9, ts)
	}
}

func TestParseTimestampMalformed(t *testing.T) {
	assert.Equal(t, 0.0, parseTimestamp("garbage"))
	assert.Equal(t, 0.0, parseTimestamp("12:34"))
	assert.Equal(t, 0.0, parseTimestamp(""))
}

// ══════════════════════════════════════════════════════════════════════════════
// Output Parsing Tests
// ══════════════════════════════════════════════════════════════════════════════

func TestParseOutputJSON(t *testing.T) {
	output := `whisper.cpp progress noise
{"transcription":[
  {"timestamps":{"from":"00:00:00,000","to":"00:00:02,500"},"text":" Hello world."},
  {"timestamps":{"from":"00:00:02,500","to":"00:00:05,000"},"text":" This is a test."}
]}`

	tr, err := ParseOutput(output, "en")
	require.NoError(t, err)
	assert.Equal(t, "Hello world. This is a test.", tr.Text)
	assert.Equal(t, "en", tr.Language)
	require.Len(t, tr.Segments, 2)

	assert.Equal(t, 0, tr.Segments[0].ID)
	assert.InDelta(t, 0.0, tr.Segments[0].Start, 1e-9)
	assert.InDelta(t, 2.5, tr.Segments[0].End, 1e-9)
	assert.Equal(t, "Hello world.", tr.Segments[0].Text)

	assert.InDelta(t, 2.5, tr.Segments[1].Start, 1e-9)
	assert.InDelta(t, 5.0, tr.Segments[1].End, 1e-9)
}

func TestParseOutputPlainText(t *testing.T) {
	tr, err := ParseOutput("  just plain words  ", "")
	require.NoError(t, err)
	assert.Equal(t, "just plain words", tr.Text)
	assert.Empty(t, tr.Segments)
}

func TestParseOutputBrokenJSONFallsBack(t *testing.T) {
	tr, err := ParseOutput(`{"transcription": [broken`, "en")
	require.NoError(t, err)
	assert.Contains(t, tr.Text, "transcription")
	assert.Empty(t, tr.Segments)
}

func TestParseOutputEmptyTranscription(t *testing.T) {
	tr, err := ParseOutput(`{"transcription":[]}`, "en")
	require.NoError(t, err)
	assert.Equal(t, "", tr.Text)
	assert.Empty(t, tr.Segments)
}

// ══════════════════════════════════════════════════════════════════════════════
// Command Tests
// ══════════════════════════════════════════════════════════════════════════════

func TestCommandArgs(t *testing.T) {
	s := &Service{config: Config{
		ModelDir:   "/models",
		ModelSize:  "base",
		NumThreads: 4,
	}}

	args := s.commandArgs("/tmp/audio.wav", "en")
	assert.Equal(t, []string{
		"-f", "/tmp/audio.wav",
		"-m", "/models/ggml-base.bin",
		"-t", "4",
		"-oj",
		"-l", "en",
	}, args)

	args = s.commandArgs("/tmp/audio.wav", "")
	assert.NotContains(t, args, "-l")
}
