// Package kokoro adapts a Kokoro-FastAPI serving process. Kokoro is a
// small CPU-friendly model with a fixed voice pack covering American and
// British English plus Hindi; it exposes an OpenAI-compatible speech
// endpoint that returns WAV bytes.
package kokoro

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
	sampleRate = 24000
	maxUnits   = 510
)

// Config holds the Kokoro backend connection settings.
type Config struct {
	BaseURL      string        // Default: http://localhost:8880
	Timeout      time.Duration // Default: 60s
	DefaultVoice string        // Default: "am_michael"
}

// Adapter implements engine.Engine for Kokoro.
type Adapter struct {
	config     Config
	httpClient *http.Client
	voices     []engine.Voice
}

// Catalog is Kokoro's fixed voice pack.
var Catalog = []engine.Voice{
	{ID: "am_adam", Name: "Adam", Language: "en-us", Gender: engine.GenderMale},
	{ID: "am_michael", Name: "Michael", Language: "en-us", Gender: engine.GenderMale},
	{ID: "af_bella", Name: "Bella", Language: "en-us", Gender: engine.GenderFemale},
	{ID: "af_sarah", Name: "Sarah", Language: "en-us", Gender: engine.GenderFemale},
	{ID: "af_nicole", Name: "Nicole", Language: "en-us", Gender: engine.GenderFemale},
	{ID: "af_sky", Name: "Sky", Language: "en-us", Gender: engine.GenderFemale},
	{ID: "bm_george", Name: "George", Language: "en-gb", Gender: engine.GenderMale},
	{ID: "bm_lewis", Name: "Lewis", Language: "en-gb", Gender: engine.GenderMale},
	{ID: "bf_emma", Name: "Emma", Language: "en-gb", Gender: engine.GenderFemale},
	{ID: "bf_isabella", Name: "Isabella", Language: "en-gb", Gender: engine.GenderFemale},
	{ID: "hm_omega", Name: "Omega", Language: "hi", Gender: engine.GenderMale},
	{ID: "hm_psi", Name: "Psi", Language: "hi", Gender: engine.GenderMale},
	{ID: "hf_alpha", Name: "Alpha", Language: "hi", Gender: engine.GenderFemale},
	{ID: "hf_beta", Name: "Beta", Language: "hi", Gender: engine.GenderFemale},
}

// New creates a Kokoro adapter, applying defaults for zero-valued
// config fields and validating the voice catalog.
func New(config Config) (*Adapter, error) {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8880"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.DefaultVoice == "" {
		config.DefaultVoice = "am_michael"
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

func (a *Adapter) Name() string { return "kokoro" }

func (a *Adapter) Voices() []engine.Voice { return a.voices }

func (a *Adapter) SampleRate() int { return sampleRate }

func (a *Adapter) MaxUnits() int { return maxUnits }

// speechRequest is the OpenAI-compatible request body.
type speechRequest struct {
	Model string  `json:"model"`
	Input string  `json:"input"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed,omitempty"`
}

// Generate synthesizes one request against /v1/audio/speech.
func (a *Adapter) Generate(ctx context.Context, req engine.Request) (audio.Waveform, error) {
	if err := engine.ValidateRequest(req, a); err != nil {
		return audio.Waveform{}, err
	}

	voice := req.Voice
	if voice == "" {
		voice = a.config.DefaultVoice
	}
	speed := req.Speed
	if speed == 0 {
		speed = 1.0
	}

	body, err := json.Marshal(speechRequest{
		Model: "kokoro",
		Input: req.Text,
		Voice: voice,
		Speed: speed,
	})
	if err != nil {
		return audio.Waveform{}, &engine.EngineError{Engine: a.Name(), Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.config.BaseURL+"/v1/audio/speech", bytes.NewReader(body))
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
		Float64("speed", speed).
		Float64("duration", w.Duration()).
		Dur("elapsed", time.Since(start)).
		Msg("kokoro synthesis complete")
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
		return fmt.Errorf("kokoro health check failed: status %d", resp.StatusCode)
	}
	return nil
}
