package indic

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

func wavBytes(t *testing.T, duration float64) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mock.wav")
	require.NoError(t, audio.Save(audio.Silence(duration, 44100), path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func mockBackend(t *testing.T, lastReq *synthesisRequest) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/v1/synthesize":
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
	assert.Equal(t, "indic", a.Name())
	assert.Equal(t, 44100, a.SampleRate())
	assert.Equal(t, 400, a.MaxUnits())
	assert.Contains(t, a.Emotions(), "happy")
}

func TestGenerateDescriptionCarriesSpeakerAndEmotion(t *testing.T) {
	var lastReq synthesisRequest
	srv := mockBackend(t, &lastReq)
	defer srv.Close()

	a, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	w, err := a.Generate(context.Background(), engine.Request{
		Text:    "नमस्ते, आप कैसे हैं?",
		Voice:   "divya",
		Emotion: "happy",
	})
	require.NoError(t, err)
	assert.Equal(t, 44100, w.SampleRate)

	assert.Equal(t, "नमस्ते, आप कैसे हैं?", lastReq.Text)
	assert.Equal(t, "divya speaks in a happy tone with clear audio quality.", lastReq.Description)
	assert.Equal(t, 1.0, lastReq.Speed)
}

func TestGenerateDefaultsToNeutralTone(t *testing.T) {
	var lastReq synthesisRequest
	srv := mockBackend(t, &lastReq)
	defer srv.Close()

	a, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = a.Generate(context.Background(), engine.Request{Text: "Hello."})
	require.NoError(t, err)
	assert.Contains(t, lastReq.Description, "rohit speaks in a neutral tone")
}

func TestGenerateRejectsUnknownEmotion(t *testing.T) {
	a, err := New(Config{BaseURL: "http://localhost:1"})
	require.NoError(t, err)

	_, err = a.Generate(context.Background(), engine.Request{Text: "Hi.", Emotion: "ecstatic"})
	var verr *engine.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "emotion", verr.Field)
}

func TestGenerateRejectsUnknownSpeaker(t *testing.T) {
	a, err := New(Config{BaseURL: "http://localhost:1"})
	require.NoError(t, err)

	_, err = a.Generate(context.Background(), engine.Request{Text: "Hi.", Voice: "nobody"})
	var verr *engine.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "voice", verr.Field)
}

func TestGenerateBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = a.Generate(context.Background(), engine.Request{Text: "Hi."})
	var eerr *engine.EngineError
	require.True(t, errors.As(err, &eerr))
	assert.Equal(t, "indic", eerr.Engine)
}

func TestCatalogHasUnprefixedSpeakers(t *testing.T) {
	require.NoError(t, engine.ValidateCatalog(Catalog))
	for _, v := range Catalog {
		_, prefixed := engine.LanguageForVoice(v.ID)
		assert.False(t, prefixed, "speaker %s should not match the voice-pack prefix table", v.ID)
	}
}
