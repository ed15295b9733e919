package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
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

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	r := engine.NewRegistry()
	r.Register("fake", func() (engine.Engine, error) { return &fakeEngine{}, nil })

	cfg := tts.DefaultConfig()
	cfg.DefaultEngine = "fake"
	cfg.Enhance = false
	synth := tts.New(r, cfg)

	s := New(Config{OutputDir: t.TempDir()}, synth, r, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

// ══════════════════════════════════════════════════════════════════════════════
// Endpoint Tests
// ══════════════════════════════════════════════════════════════════════════════

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["fake"])
}

func TestVoicesEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/voices?engine=fake")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Engine string              `json:"engine"`
		Voices []engine.Voice      `json:"voices"`
		Groups map[string][]string `json:"groups"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "fake", body.Engine)
	assert.Len(t, body.Voices, 2)
	assert.Equal(t, []string{"hf_alpha"}, body.Groups["hindi_female"])
}

func TestVoicesEndpointDefaultsToConfiguredEngine(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/voices")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Engine string `json:"engine"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "fake", body.Engine)
}

func TestVoicesUnknownEngine(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/voices?engine=nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerateEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/v1/generate", map[string]any{
		"text":  "Hello world.",
		"voice": "am_adam",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body generateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.JobID)
	assert.Equal(t, 1, body.Chunks)
	assert.True(t, strings.HasSuffix(body.OutputPath, ".wav"))

	loaded, err := audio.Load(body.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, 24000, loaded.SampleRate)
}

func TestGenerateValidationError(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/v1/generate", map[string]any{"text": ""})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "text", body["field"])
}

func TestGenerateBadJSON(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/v1/generate", "application/json", strings.NewReader("{broken"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPodcastEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/v1/podcast", map[string]any{
		"segments": []map[string]any{
			{"Text": "Welcome.", "Voice": "am_adam"},
			{"Text": "Hello.", "Voice": "hf_alpha"},
		},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body generateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Chunks)
}

func TestScriptEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/v1/script", map[string]any{
		"script": "Part one.\n\nPart two.",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body generateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Chunks)
}

func TestHistoryDisabled(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ══════════════════════════════════════════════════════════════════════════════
// Event Stream Tests
// ══════════════════════════════════════════════════════════════════════════════

func TestEventStreamReceivesJobEvents(t *testing.T) {
	_, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the server time to register the client before the job runs.
	time.Sleep(50 * time.Millisecond)

	resp := postJSON(t, ts.URL+"/v1/generate", map[string]any{"text": "Hello."})
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var started, completed bool
	for i := 0; i < 2; i++ {
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev))
		switch ev.Kind {
		case "started":
			started = true
		case "completed":
			completed = true
		}
		assert.NotEmpty(t, ev.JobID)
	}
	assert.True(t, started)
	assert.True(t, completed)
}
