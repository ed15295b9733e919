// Package server exposes the synthesis pipeline over HTTP: JSON
// endpoints for generation and catalogs, plus a websocket stream of job
// progress events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/aparsoft/voicekit/internal/engine"
	"github.com/aparsoft/voicekit/internal/tts"
)

// History is the read side of the generation ledger. Nil disables the
// history endpoint.
type History interface {
	Recent(ctx context.Context, limit int) ([]tts.Record, error)
}

// Config holds the server settings.
type Config struct {
	Addr      string // Default: 127.0.0.1:8778
	OutputDir string // Where generated files land
}

// Server is the HTTP API over a synthesizer.
type Server struct {
	config   Config
	synth    *tts.Synthesizer
	registry *engine.Registry
	history  History
	hub      *hub
	httpSrv  *http.Server
}

// New creates the server. history may be nil.
func New(config Config, synth *tts.Synthesizer, registry *engine.Registry, history History) *Server {
	if config.Addr == "" {
		config.Addr = "127.0.0.1:8778"
	}
	s := &Server{
		config:   config,
		synth:    synth,
		registry: registry,
		history:  history,
		hub:      newHub(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/voices", s.handleVoices)
	mux.HandleFunc("POST /v1/generate", s.handleGenerate)
	mux.HandleFunc("POST /v1/script", s.handleScript)
	mux.HandleFunc("POST /v1/podcast", s.handlePodcast)
	mux.HandleFunc("GET /v1/history", s.handleHistory)
	mux.HandleFunc("GET /v1/events", s.hub.serveWS)

	s.httpSrv = &http.Server{
		Addr:              config.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// ListenAndServe runs the server until the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.config.Addr).Msg("api server listening")
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.hub.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// Handlers
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	for _, name := range s.registry.Names() {
		e, err := s.registry.Get(name)
		if err != nil {
			status[name] = "error: " + err.Error()
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		if err := e.Health(ctx); err != nil {
			status[name] = "unreachable"
		} else {
			status[name] = "ok"
		}
		cancel()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("engine")
	if name == "" {
		name = s.synth.DefaultEngine()
	}
	e, err := s.registry.Get(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"engine": e.Name(),
		"voices": e.Voices(),
		"groups": engine.GroupVoices(e.Voices()),
	})
}

type generateRequest struct {
	Text       string  `json:"text"`
	Engine     string  `json:"engine,omitempty"`
	Voice      string  `json:"voice,omitempty"`
	Speed      float64 `json:"speed,omitempty"`
	Emotion    string  `json:"emotion,omitempty"`
	OutputPath string  `json:"output_path,omitempty"`
}

type generateResponse struct {
	JobID      string  `json:"job_id"`
	OutputPath string  `json:"output_path"`
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sample_rate"`
	Chunks     int     `json:"chunks"`
	Engine     string  `json:"engine"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
		return
	}

	jobID := uuid.NewString()
	outputPath := s.outputPath(req.OutputPath, jobID)
	s.hub.publish(Event{JobID: jobID, Kind: "started"})

	res, _, err := s.synth.Generate(r.Context(), req.Text, outputPath, tts.GenerateOptions{
		Engine:  req.Engine,
		Voice:   req.Voice,
		Speed:   req.Speed,
		Emotion: req.Emotion,
	})
	if err != nil {
		s.hub.publish(Event{JobID: jobID, Kind: "failed", Message: err.Error()})
		writeError(w, err)
		return
	}

	s.hub.publish(Event{JobID: jobID, Kind: "completed", Chunks: res.Chunks})
	writeJSON(w, http.StatusOK, generateResponse{
		JobID:      jobID,
		OutputPath: res.OutputPath,
		Duration:   res.Duration,
		SampleRate: res.SampleRate,
		Chunks:     res.Chunks,
		Engine:     res.Engine,
	})
}

type scriptRequest struct {
	Script     string  `json:"script"`
	Gap        float64 `json:"gap,omitempty"`
	Engine     string  `json:"engine,omitempty"`
	Voice      string  `json:"voice,omitempty"`
	Speed      float64 `json:"speed,omitempty"`
	OutputPath string  `json:"output_path,omitempty"`
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	var req scriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
		return
	}

	jobID := uuid.NewString()
	outputPath := s.outputPath(req.OutputPath, jobID)
	s.hub.publish(Event{JobID: jobID, Kind: "started"})

	res, err := s.synth.ProcessScript(r.Context(), req.Script, outputPath, req.Gap, tts.GenerateOptions{
		Engine: req.Engine,
		Voice:  req.Voice,
		Speed:  req.Speed,
	})
	if err != nil {
		s.hub.publish(Event{JobID: jobID, Kind: "failed", Message: err.Error()})
		writeError(w, err)
		return
	}

	s.hub.publish(Event{JobID: jobID, Kind: "completed", Chunks: res.Chunks})
	writeJSON(w, http.StatusOK, generateResponse{
		JobID:      jobID,
		OutputPath: res.OutputPath,
		Duration:   res.Duration,
		SampleRate: res.SampleRate,
		Chunks:     res.Chunks,
		Engine:     res.Engine,
	})
}

type podcastRequest struct {
	Segments []tts.PodcastSegment `json:"segments"`
	Gap      float64              `json:"gap,omitempty"`
	Engine   string               `json:"engine,omitempty"`

	OutputPath string `json:"output_path,omitempty"`
}

func (s *Server) handlePodcast(w http.ResponseWriter, r *http.Request) {
	var req podcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
		return
	}

	jobID := uuid.NewString()
	outputPath := s.outputPath(req.OutputPath, jobID)
	s.hub.publish(Event{JobID: jobID, Kind: "started"})

	res, err := s.synth.GeneratePodcast(r.Context(), req.Segments, outputPath, req.Gap, tts.GenerateOptions{
		Engine: req.Engine,
	})
	if err != nil {
		s.hub.publish(Event{JobID: jobID, Kind: "failed", Message: err.Error()})
		writeError(w, err)
		return
	}

	s.hub.publish(Event{JobID: jobID, Kind: "completed", Chunks: res.Chunks})
	writeJSON(w, http.StatusOK, generateResponse{
		JobID:      jobID,
		OutputPath: res.OutputPath,
		Duration:   res.Duration,
		SampleRate: res.SampleRate,
		Chunks:     res.Chunks,
		Engine:     res.Engine,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history disabled"})
		return
	}
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		fmt.Sscanf(q, "%d", &limit)
	}
	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// ══════════════════════════════════════════════════════════════════════════════
// Helpers
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) outputPath(requested, jobID string) string {
	if requested != "" {
		return requested
	}
	dir := s.config.OutputDir
	if dir == "" {
		dir = "."
	}
	return fmt.Sprintf("%s/%s.wav", dir, jobID)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

// writeError maps the error taxonomy to HTTP statuses: validation
// failures are the client's fault, engine failures are upstream.
func writeError(w http.ResponseWriter, err error) {
	var verr *engine.ValidationError
	var eerr *engine.EngineError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "field": verr.Field})
	case errors.As(err, &eerr):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error(), "engine": eerr.Engine})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
