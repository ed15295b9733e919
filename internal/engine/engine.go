// Package engine defines the synthesis backend abstraction. Each backend
// (Kokoro, the Indic model, OpenVoice) runs as an external serving
// process; the adapters here are HTTP clients that normalize them behind
// one interface. A Registry constructs adapters on demand and caches them
// for the process lifetime.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/aparsoft/voicekit/internal/audio"
)

// Common errors.
var (
	ErrUnknownEngine     = errors.New("unknown engine")
	ErrVoiceNotFound     = errors.New("voice not found")
	ErrEngineUnavailable = errors.New("engine unavailable")
	ErrTextTooLong       = errors.New("text exceeds engine unit limit")
)

// Speed bounds accepted by every backend.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// EngineError wraps a backend failure with the engine name.
type EngineError struct {
	Engine string
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Engine, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Request is a single synthesis call.
type Request struct {
	Text  string
	Voice string

	// Speed is the playback rate multiplier in [0.5, 2.0]; zero means 1.0.
	Speed float64

	// Emotion is honored only by backends implementing EmotionEngine;
	// others reject a non-empty value.
	Emotion string
}

// Engine is one synthesis backend.
type Engine interface {
	// Name returns the engine identifier ("kokoro", "indic", "openvoice").
	Name() string

	// Generate synthesizes one request into a waveform.
	Generate(ctx context.Context, req Request) (audio.Waveform, error)

	// Voices returns the engine's static voice catalog.
	Voices() []Voice

	// Health reports whether the backend serving process is reachable.
	Health(ctx context.Context) error

	// SampleRate is the backend's native output rate in Hz.
	SampleRate() int

	// MaxUnits is the largest phonetic unit count one call accepts.
	MaxUnits() int
}

// EmotionEngine is implemented by backends that condition synthesis on
// an emotion label.
type EmotionEngine interface {
	Engine

	// Emotions returns the accepted emotion labels.
	Emotions() []string
}

// CloningEngine is implemented by backends that can mimic a reference
// speaker from an audio sample.
type CloningEngine interface {
	Engine

	// GenerateCloned synthesizes with the speaker timbre extracted from
	// the reference audio file.
	GenerateCloned(ctx context.Context, req Request, referencePath string) (audio.Waveform, error)
}

// ValidateRequest applies the request checks shared by all backends.
func ValidateRequest(req Request, e Engine) error {
	if req.Text == "" {
		return &ValidationError{Field: "text", Message: "must not be empty"}
	}
	if req.Speed != 0 && (req.Speed < MinSpeed || req.Speed > MaxSpeed) {
		return &ValidationError{
			Field:   "speed",
			Message: fmt.Sprintf("must be between %.1f and %.1f", MinSpeed, MaxSpeed),
		}
	}
	if req.Voice != "" && !HasVoice(e.Voices(), req.Voice) {
		return &ValidationError{
			Field:   "voice",
			Message: fmt.Sprintf("%q not in %s catalog", req.Voice, e.Name()),
		}
	}
	if req.Emotion != "" {
		ee, ok := e.(EmotionEngine)
		if !ok {
			return &ValidationError{
				Field:   "emotion",
				Message: fmt.Sprintf("engine %s does not support emotions", e.Name()),
			}
		}
		if !containsString(ee.Emotions(), req.Emotion) {
			return &ValidationError{
				Field:   "emotion",
				Message: fmt.Sprintf("%q not supported by %s", req.Emotion, e.Name()),
			}
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
