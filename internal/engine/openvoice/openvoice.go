// Package openvoice adapts an OpenVoice serving process. OpenVoice
// synthesizes with a small set of base speakers and can additionally
// clone the timbre of a reference speaker from an uploaded audio sample.
package openvoice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aparsoft/voicekit/internal/audio"
	"github.com/aparsoft/voicekit/internal/engine"
)

const (
	sampleRate = 24000
	maxUnits   = 300
)

// Config holds the OpenVoice backend connection settings.
type Config struct {
	BaseURL      string        // Default: http://localhost:8882
	Timeout      time.Duration // Default: 120s
	DefaultVoice string        // Default: "en-default"
}

// Adapter implements engine.Engine and engine.CloningEngine.
type Adapter struct {
	config     Config
	httpClient *http.Client
	voices     []engine.Voice
}

// Catalog lists the base speakers shipped with the model.
var Catalog = []engine.Voice{
	{ID: "en-default", Name: "English Default", Language: "en-us", Gender: engine.GenderMale},
	{ID: "en-us-female", Name: "English US Female", Language: "en-us", Gender: engine.GenderFemale},
	{ID: "en-br-male", Name: "English British Male", Language: "en-gb", Gender: engine.GenderMale},
}

// New creates an OpenVoice adapter, applying defaults for zero-valued
// config fields.
func New(config Config) (*Adapter, error) {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8882"
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}
	if config.DefaultVoice == "" {
		config.DefaultVoice = "en-default"
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

func (a *Adapter) Name() string { return "openvoice" }

func (a *Adapter) Voices() []engine.Voice { return a.voices }

func (a *Adapter) SampleRate() int { return sampleRate }

func (a *Adapter) MaxUnits() int { return maxUnits }

type synthesisRequest struct {
	Text    string  `json:"text"`
	Speaker string  `json:"speaker"`
	Speed   float64 `json:"speed,omitempty"`
}

// Generate synthesizes with a base speaker against /v1/synthesize.
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

	body, err := json.Marshal(synthesisRequest{Text: req.Text, Speaker: voice, Speed: speed})
	if err != nil {
		return audio.Waveform{}, &engine.EngineError{Engine: a.Name(), Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.config.BaseURL+"/v1/synthesize", bytes.NewReader(body))
	if err != nil {
		return audio.Waveform{}, &engine.EngineError{Engine: a.Name(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return a.doAudio(httpReq, voice)
}

// GenerateCloned synthesizes with the timbre of the reference audio,
// uploading it as multipart form data to /v1/clone.
func (a *Adapter) GenerateCloned(ctx context.Context, req engine.Request, referencePath string) (audio.Waveform, error) {
	if err := engine.ValidateRequest(req, a); err != nil {
		return audio.Waveform{}, err
	}
	if referencePath == "" {
		return audio.Waveform{}, &engine.ValidationError{Field: "reference", Message: "reference audio path is required"}
	}

	ref, err := os.Open(referencePath)
	if err != nil {
		return audio.Waveform{}, &engine.ValidationError{Field: "reference", Message: err.Error()}
	}
	defer ref.Close()

	speed := req.Speed
	if speed == 0 {
		speed = 1.0
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("text", req.Text); err != nil {
		return audio.Waveform{}, &engine.EngineError{Engine: a.Name(), Err: err}
	}
	if err := mw.WriteField("speed", fmt.Sprintf("%g", speed)); err != nil {
		return audio.Waveform{}, &engine.EngineError{Engine: a.Name(), Err: err}
	}
	part, err := mw.CreateFormFile("reference", filepath.Base(referencePath))
	if err != nil {
		return audio.Waveform{}, &engine.EngineError{Engine: a.Name(), Err: err}
	}
	if _, err := io.Copy(part, ref); err != nil {
		return audio.Waveform{}, &engine.EngineError{Engine: a.Name(), Err: err}
	}
	if err := mw.Close(); err != nil {
		return audio.Waveform{}, &engine.EngineError{Engine: a.Name(), Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.config.BaseURL+"/v1/clone", &buf)
	if err != nil {
		return audio.Waveform{}, &engine.EngineError{Engine: a.Name(), Err: err}
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	log.Debug().Str("reference", referencePath).Msg("openvoice cloning request")
	return a.doAudio(httpReq, "cloned")
}

// doAudio executes a prepared request and decodes the WAV response.
func (a *Adapter) doAudio(httpReq *http.Request, voice string) (audio.Waveform, error) {
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
		Float64("duration", w.Duration()).
		Dur("elapsed", time.Since(start)).
		Msg("openvoice synthesis complete")
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
		return fmt.Errorf("openvoice health check failed: status %d", resp.StatusCode)
	}
	return nil
}
