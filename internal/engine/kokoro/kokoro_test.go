package kokoro

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aparsoft/voicekit/internal/audio"
	"github.com/aparsoft/voicekit/internal/engine"
)

// ══════════════════════════════════════════════════════════════════════════════
// Test Helpers
// ══════════════════════════════════════════════════════════════════════════════

// wavBytes builds a real PCM WAV payload for mock responses.
func wavBytes(t *testing.T, duration float64) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mock.wav")
	require.NoError(t, audio.Save(audio.Silence(duration, 24000), path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

// mockBackend serves the health and speech endpoints, capturing the last
// speech request body.
func mockBackend(t *testing.T, lastReq *speechRequest) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		case "/v1/audio/speech":
			if err := json.NewDecoder(r.Body).Decode(lastReq); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "audio/wav")
			w.Write(wavBytes(t, 0.25))
		default:
			http.NotFound(w, r)
		}
	}))
}

// ══════════════════════════════════════════════════════════════════════════════
// Adapter Tests
// ══════════════════════════════════════════════════════════════════════════════

func TestNewAppliesDefaults(t *testing.T) {
	a, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, "kokoro", a.Name())
	assert.Equal(t, 24000, a.SampleRate())
	assert.Equal(t, 510, a.MaxUnits())
	assert.NotEmpty(t, a.Voices())
}

func TestGenerateDecodesWAV(t *testing.T) {
	var lastReq speechRequest
	srv := mockBackend(t, &lastReq)
	defer srv.Close()

	a, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	w, err := a.Generate(context.Background(), engine.Request{
		Text:  "Hello there.",
		Voice: "af_bella",
		Speed: 1.2,
	})
	require.NoError(t, err)
	assert.Equal(t, 24000, w.SampleRate)
	assert.InDelta(t, 0.25, w.Duration(), 1e-3)

	assert.Equal(t, "kokoro", lastReq.Model)
	assert.Equal(t, "Hello there.", lastReq.Input)
	assert.Equal(t, "af_bella", lastReq.Voice)
	assert.Equal(t, 1.2, lastReq.Speed)
}

func TestGenerateDefaultVoice(t *testing.T) {
	var lastReq speechRequest
	srv := mockBackend(t, &lastReq)
	defer srv.Close()

	a, err := New(Config{BaseURL: srv.URL, DefaultVoice: "bm_george"})
	require.NoError(t, err)

	_, err = a.Generate(context.Background(), engine.Request{Text: "Hi."})
	require.NoError(t, err)
	assert.Equal(t, "bm_george", lastReq.Voice)
}

func TestGenerateRejectsUnknownVoice(t *testing.T) {
	a, err := New(Config{BaseURL: "http://localhost:1"})
	require.NoError(t, err)

	_, err = a.Generate(context.Background(), engine.Request{Text: "Hi.", Voice: "xx_nobody"})
	var verr *engine.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "voice", verr.Field)
}

func TestGenerateRejectsEmotion(t *testing.T) {
	a, err := New(Config{BaseURL: "http://localhost:1"})
	require.NoError(t, err)

	_, err = a.Generate(context.Background(), engine.Request{Text: "Hi.", Emotion: "happy"})
	var verr *engine.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "emotion", verr.Field)
}

func TestGenerateBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	a, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = a.Generate(context.Background(), engine.Request{Text: "Hi."})
	var eerr *engine.EngineError
	require.True(t, errors.As(err, &eerr))
	assert.Equal(t, "kokoro", eerr.Engine)
	assert.Contains(t, eerr.Error(), "500")
}

func TestHealth(t *testing.T) {
	var lastReq speechRequest
	srv := mockBackend(t, &lastReq)
	defer srv.Close()

	a, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	assert.NoError(t, a.Health(context.Background()))

	srv.Close()
	assert.Error(t, a.Health(context.Background()))
}

func TestCatalogPrefixesConsistent(t *testing.T) {
	assert.NoError(t, engine.ValidateCatalog(Catalog))
	for _, v := range Catalog {
		lang, ok := engine.LanguageForVoice(v.ID)
		require.True(t, ok, v.ID)
		assert.Equal(t, v.Language, lang, v.ID)
	}
}
