// Package indic adapts a Parler-style Indic TTS serving process. The
// backend conditions synthesis on a speaker name and an optional emotion
// label rather than a voice-pack ID, and serves Hindi plus Indian
// English speakers.
package indic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aparsoft/voicekit/internal/audio"
	"github.com/aparsoft/voicekit/internal/engine"
)

const (
	sampleRate = 44100
	maxUnits   = 400
)

// Config holds the Indic backend connection settings.
type Config struct {
	BaseURL      string        // Default: http://localhost:8881
	Timeout      time.Duration // Default: 120s (larger model, slower synthesis)
	DefaultVoice string        // Default: "rohit"
}

// Adapter implements engine.Engine and engine.EmotionEngine.
type Adapter struct {
	config     Config
	httpClient *http.Client
	voices     []engine.Voice
}

// Catalog lists the backend's named speakers. These are model speaker
// identities, not prefixed pack voices, so the prefix table does not
// apply to them.
var Catalog = []engine.Voice{
	{ID: "rohit", Name: "Rohit", Language: "hi", Gender: engine.GenderMale},
	{ID: "aman", Name: "Aman", Language: "hi", Gender: engine.GenderMale},
	{ID: "divya", Name: "Divya", Language: "hi", Gender: engine.GenderFemale},
	{ID: "rani", Name: "Rani", Language: "hi", Gender: engine.GenderFemale},
	{ID: "arjun", Name: "Arjun", Language: "en-in", Gender: engine.GenderMale},
	{ID: "maya", Name: "Maya", Language: "en-in", Gender: engine.GenderFemale},
}

// emotions lists the labels the backend's style conditioning accepts.
var emotions = []string{"neutral", "happy", "sad", "angry", "surprise", "calm"}

// New creates an Indic adapter, applying defaults for zero-valued
// config fields.
func New(config Config) (*Adapter, error) {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8881"
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}
	if config.DefaultVoice == "" {
		config.DefaultVoice = "rohit"
	}
	if err := engine.ValidateCatalog(Catalog); err != nil {
		return nil, err
	}

	return &Adapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		voices:     Catalog,
	}, nil
}

func (a *Adapter) Name() string { return "indic" }

func (a *Adapter) Voices() []engine.Voice { return a.voices }

func (a *Adapter) SampleRate() int { return sampleRate }

func (a *Adapter) MaxUnits() int { return maxUnits }

func (a *Adapter) Emotions() []string { return emotions }

// synthesisRequest is the Parler-style request body: the description
// field carries speaker identity and emotion as natural language.
type synthesisRequest struct {
	Text        string  `json:"text"`
	Description string  `json:"description"`
	Speed       float64 `json:"speed,omitempty"`
}

// Generate synthesizes one request against /v1/synthesize.
func (a *Adapter) Generate(ctx context.Context, req engine.Request) (audio.Waveform, error) {
	if err := engine.ValidateRequest(req, a); err != nil {
		return audio.Waveform{}, err
	}

	voice := req.Voice
	if voice == "" {
		voice = a.config.DefaultVoice
	}
	emotion := req.Emotion
	if emotion == "" {
		emotion = "neutral"
	}
	speed := req.Speed
	if speed == 0 {
		speed = 1.0
	}

	body, err := json.Marshal(synthesisRequest{
		Text:        req.Text,
		Description: fmt.Sprintf("%s speaks in a %s tone with clear audio quality.", voice, emotion),
		Speed:       speed,
	})
	if err != nil {
		return audio.Waveform{}, &engine.EngineError{Engine: a.Name(), Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.config.BaseURL+"/v1/synthesize", bytes.NewReader(body))
	if err != nil {
		return audio.Waveform{}, &engine.EngineError{Engine: a.Name(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return audio.Waveform{}, &engine.EngineError{Engine: a.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return audio.Waveform{}, &engine.EngineError{
			Engine: a.Name(),
			Err:    fmt.Errorf("status %d: %s", resp.StatusCode, string(msg)),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Waveform{}, &engine.EngineError{Engine: a.Name(), Err: err}
	}
	w, err := audio.DecodeWAV(bytes.NewReader(data))
	if err != nil {
		return audio.Waveform{}, &engine.EngineError{Engine: a.Name(), Err: err}
	}

	log.Debug().
		Str("voice", voice).
		Str("emotion", emotion).
		Float64("duration", w.Duration()).
		Dur("elapsed", time.Since(start)).
		Msg("indic synthesis complete")
	return w, nil
}

// Health probes the backend's health endpoint.
func (a *Adapter) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return engine.ErrEngineUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("indic health check failed: status %d", resp.StatusCode)
	}
	return nil
}
