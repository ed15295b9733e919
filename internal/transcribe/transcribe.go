// Package transcribe adapts whisper.cpp for speech-to-text. The binary
// runs as a subprocess against a temp copy of the audio and emits JSON
// with per-segment timestamps.
package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyAudio    = errors.New("empty audio data")
	ErrAudioTooLarge = errors.New("audio exceeds maximum size")
)

// Error wraps a transcription failure with the whisper output that
// caused it.
type Error struct {
	Output string
	Err    error
}

func (e *Error) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("transcription failed: %v", e.Err)
	}
	return fmt.Sprintf("transcription failed: %v: %s", e.Err, e.Output)
}

func (e *Error) Unwrap() error { return e.Err }

// Config holds the whisper.cpp invocation settings.
type Config struct {
	ExecutablePath string // Default: "whisper" resolved from PATH
	ModelDir       string // Default: ~/.whisper
	ModelSize      string // Default: "base"
	NumThreads     int    // Default: 4
	MaxAudioSize   int64  // Default: 25 MiB
	TempDir        string // Default: os.TempDir()
}

// Service runs whisper.cpp transcriptions.
type Service struct {
	config Config
}

// New creates a transcription service, resolving the whisper binary and
// applying defaults.
func New(config Config) (*Service, error) {
	if config.ModelSize == "" {
		config.ModelSize = "base"
	}
	if config.NumThreads == 0 {
		config.NumThreads = 4
	}
	if config.MaxAudioSize == 0 {
		config.MaxAudioSize = 25 * 1024 * 1024
	}
	if config.TempDir == "" {
		config.TempDir = os.TempDir()
	}
	if config.ModelDir == "" {
		home, _ := os.UserHomeDir()
		config.ModelDir = filepath.Join(home, ".whisper")
	}

	if config.ExecutablePath == "" {
		config.ExecutablePath = "whisper"
	}
	if _, err := exec.LookPath(config.ExecutablePath); err != nil {
		return nil, fmt.Errorf("whisper.cpp executable not found: %s", config.ExecutablePath)
	}

	return &Service{config: config}, nil
}

// Segment is one timestamped span of the transcript.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the full transcription result.
type Transcript struct {
	Text     string        `json:"text"`
	Language string        `json:"language,omitempty"`
	Segments []Segment     `json:"segments"`
	Elapsed  time.Duration `json:"elapsed"`
}

// TranscribeFile transcribes an audio file on disk.
func (s *Service) TranscribeFile(ctx context.Context, path, language string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Err: err}
	}
	return s.Transcribe(ctx, data, filepath.Ext(path), language)
}

// Transcribe runs whisper.cpp over the audio bytes. format is the file
// extension of the audio container ("wav" when empty).
func (s *Service) Transcribe(ctx context.Context, audioData []byte, format, language string) (*Transcript, error) {
	start := time.Now()

	if len(audioData) == 0 {
		return nil, &Error{Err: ErrEmptyAudio}
	}
	if int64(len(audioData)) > s.config.MaxAudioSize {
		return nil, &Error{Err: ErrAudioTooLarge}
	}

	tempFile, err := s.writeTempAudio(audioData, format)
	if err != nil {
		return nil, &Error{Err: err}
	}
	defer os.Remove(tempFile)

	args := s.commandArgs(tempFile, language)
	log.Debug().Strs("args", args).Msg("running whisper.cpp")

	cmd := exec.CommandContext(ctx, s.config.ExecutablePath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &Error{Output: string(output), Err: err}
	}

	transcript, err := ParseOutput(string(output), language)
	if err != nil {
		return nil, &Error{Output: string(output), Err: err}
	}
	transcript.Elapsed = time.Since(start)

	log.Debug().
		Int("segments", len(transcript.Segments)).
		Dur("elapsed", transcript.Elapsed).
		Msg("transcription complete")
	return transcript, nil
}

func (s *Service) writeTempAudio(audioData []byte, format string) (string, error) {
	ext := format
	if ext == "" {
		ext = "wav"
	}
	ext = "." + strings.TrimPrefix(ext, ".")

	tempFile := filepath.Join(s.config.TempDir, fmt.Sprintf("voicekit_stt_%d%s", time.Now().UnixNano(), ext))
	if err := os.WriteFile(tempFile, audioData, 0o644); err != nil {
		return "", fmt.Errorf("failed to write temp audio file: %w", err)
	}
	return tempFile, nil
}

func (s *Service) commandArgs(audioFile, language string) []string {
	args := []string{
		"-f", audioFile,
		"-m", filepath.Join(s.config.ModelDir, fmt.Sprintf("ggml-%s.bin", s.config.ModelSize)),
		"-t", fmt.Sprintf("%d", s.config.NumThreads),
		"-oj",
	}
	if language != "" {
		args = append(args, "-l", language)
	}
	return args
}

// whisperOutput is the -oj JSON shape.
type whisperOutput struct {
	Transcription []struct {
		Timestamps struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"timestamps"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// ParseOutput extracts a transcript from whisper.cpp output. The binary
// prints progress text before the JSON, so parsing starts at the first
// brace; output with no JSON at all is treated as the plain transcript.
func ParseOutput(output, language string) (*Transcript, error) {
	jsonStart := strings.Index(output, "{")
	if jsonStart == -1 {
		return &Transcript{Text: strings.TrimSpace(output), Language: language}, nil
	}

	var parsed whisperOutput
	if err := json.Unmarshal([]byte(output[jsonStart:]), &parsed); err != nil {
		return &Transcript{Text: strings.TrimSpace(output), Language: language}, nil
	}

	var fullText strings.Builder
	segments := make([]Segment, 0, len(parsed.Transcription))
	for i, seg := range parsed.Transcription {
		text := strings.TrimSpace(seg.Text)
		if fullText.Len() > 0 {
			fullText.WriteString(" ")
		}
		fullText.WriteString(text)
		segments = append(segments, Segment{
			ID:    i,
			Start: parseTimestamp(seg.Timestamps.From),
			End:   parseTimestamp(seg.Timestamps.To),
			Text:  text,
		})
	}

	return &Transcript{
		Text:     fullText.String(),
		Language: language,
		Segments: segments,
	}, nil
}

// parseTimestamp converts "HH:MM:SS,mmm" to seconds.
func parseTimestamp(ts string) float64 {
	parts := strings.Split(ts, ":")
	if len(parts) != 3 {
		return 0
	}

	var hours, minutes float64
	fmt.Sscanf(parts[0], "%f", &hours)
	fmt.Sscanf(parts[1], "%f", &minutes)

	var seconds, millis float64
	secParts := strings.Split(parts[2], ",")
	if len(secParts) >= 1 {
		fmt.Sscanf(secParts[0], "%f", &seconds)
	}
	if len(secParts) >= 2 {
		fmt.Sscanf(secParts[1], "%f", &millis)
	}

	return hours*3600 + minutes*60 + seconds + millis/1000
}
