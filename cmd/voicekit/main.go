// Package main is the entry point for the voicekit CLI. Voicekit drives
// local TTS serving processes (Kokoro, Indic Parler, OpenVoice) to turn
// text, scripts, and multi-voice conversations into finished WAV files,
// and exposes the same pipeline over HTTP and MCP.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aparsoft/voicekit/internal/audio"
	"github.com/aparsoft/voicekit/internal/chunker"
	"github.com/aparsoft/voicekit/internal/config"
	"github.com/aparsoft/voicekit/internal/engine"
	"github.com/aparsoft/voicekit/internal/engine/indic"
	"github.com/aparsoft/voicekit/internal/engine/kokoro"
	"github.com/aparsoft/voicekit/internal/engine/openvoice"
	"github.com/aparsoft/voicekit/internal/history"
	"github.com/aparsoft/voicekit/internal/transcribe"
	"github.com/aparsoft/voicekit/internal/tts"
	"github.com/aparsoft/voicekit/internal/tui"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
	cfg     *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "voicekit",
		Short: "Voicekit - local text-to-speech toolkit",
		Long: `Voicekit turns text into finished audio using local TTS serving
processes:
  • Kokoro for fast English speech
  • Indic Parler for Hindi and Indian English with emotion control
  • OpenVoice for voice cloning from reference audio

Long text is chunked at sentence boundaries, synthesized in order, and
stitched with natural pauses. Generated audio is normalized, trimmed,
de-hissed, and faded before it lands on disk.

Interactive mode:  voicekit
Quick generation:  voicekit generate "Hello there" -o hello.wav
Voice catalogs:    voicekit voices --engine kokoro`,
		PersistentPreRunE: initApp,
		RunE:              runTUI,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.voicekit/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("voicekit v%s\n", version)
		},
	})

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(scriptCmd())
	rootCmd.AddCommand(podcastCmd())
	rootCmd.AddCommand(voicesCmd())
	rootCmd.AddCommand(transcribeCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// Initialization
// ══════════════════════════════════════════════════════════════════════════════

// initApp loads the configuration and sets up zerolog before any
// command runs.
func initApp(cmd *cobra.Command, args []string) error {
	var err error
	if cfgPath != "" {
		cfg, err = config.LoadFromPath(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := zerolog.InfoLevel
	if cfg.Logging.Level != "" {
		if parsed, perr := zerolog.ParseLevel(cfg.Logging.Level); perr == nil {
			level = parsed
		}
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	if cfg.Logging.File != "" {
		f, ferr := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if ferr != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot open log file: %v\n", ferr)
		} else {
			out = zerolog.MultiLevelWriter(out, f)
		}
	}
	zlog.Logger = zerolog.New(out).With().Timestamp().Logger()

	zlog.Debug().Str("config", cfgPath).Str("level", level.String()).Msg("voicekit starting")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// Component Wiring
// ══════════════════════════════════════════════════════════════════════════════

// buildRegistry wires the engine adapters from config. Adapters are
// constructed lazily on first use, so unreachable backends only fail
// requests that actually need them.
func buildRegistry() *engine.Registry {
	r := engine.NewRegistry()

	r.Register("kokoro", func() (engine.Engine, error) {
		a, err := kokoro.New(kokoro.Config{
			BaseURL:      cfg.Engines.Kokoro.BaseURL,
			Timeout:      time.Duration(cfg.Engines.Kokoro.TimeoutSec) * time.Second,
			DefaultVoice: cfg.Engines.Kokoro.DefaultVoice,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	})

	r.Register("indic", func() (engine.Engine, error) {
		a, err := indic.New(indic.Config{
			BaseURL:      cfg.Engines.Indic.BaseURL,
			Timeout:      time.Duration(cfg.Engines.Indic.TimeoutSec) * time.Second,
			DefaultVoice: cfg.Engines.Indic.DefaultVoice,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	})

	r.Register("openvoice", func() (engine.Engine, error) {
		a, err := openvoice.New(openvoice.Config{
			BaseURL:      cfg.Engines.OpenVoice.BaseURL,
			Timeout:      time.Duration(cfg.Engines.OpenVoice.TimeoutSec) * time.Second,
			DefaultVoice: cfg.Engines.OpenVoice.DefaultVoice,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	})

	return r
}

// buildSynth assembles the orchestrator with the history recorder
// attached when enabled. The cleanup func closes the history store.
func buildSynth(registry *engine.Registry) (*tts.Synthesizer, func(), error) {
	enhance := audio.DefaultEnhanceOptions()
	if cfg.TTS.TrimDB > 0 {
		enhance.TrimDB = cfg.TTS.TrimDB
	}
	if cfg.TTS.FadeDuration > 0 {
		enhance.FadeDuration = cfg.TTS.FadeDuration
	}

	chunking := chunker.DefaultOptions()
	if cfg.Chunking.TargetMaxUnits > 0 {
		chunking.TargetMaxUnits = cfg.Chunking.TargetMaxUnits
	}
	if cfg.Chunking.AbsoluteMaxUnits > 0 {
		chunking.AbsoluteMaxUnits = cfg.Chunking.AbsoluteMaxUnits
	}
	if cfg.Chunking.MinChunkUnits > 0 {
		chunking.MinChunkUnits = cfg.Chunking.MinChunkUnits
	}

	synth := tts.New(registry, tts.Config{
		DefaultEngine:  cfg.TTS.DefaultEngine,
		ChunkGap:       cfg.TTS.ChunkGap,
		ScriptGap:      cfg.TTS.ScriptGap,
		PodcastGap:     cfg.TTS.PodcastGap,
		Enhance:        cfg.TTS.Enhance,
		EnhanceOptions: enhance,
		Chunking:       chunking,
	})

	cleanup := func() {}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.DBPath)
		if err != nil {
			zlog.Warn().Err(err).Str("path", cfg.History.DBPath).Msg("history disabled: cannot open store")
		} else {
			synth.WithRecorder(store)
			cleanup = func() { store.Close() }
		}
	}
	return synth, cleanup, nil
}

// buildTranscriber resolves whisper.cpp. Returns nil when the binary is
// not installed.
func buildTranscriber() *transcribe.Service {
	svc, err := transcribe.New(transcribe.Config{
		ExecutablePath: cfg.Transcribe.ExecutablePath,
		ModelDir:       cfg.Transcribe.ModelDir,
		ModelSize:      cfg.Transcribe.ModelSize,
		NumThreads:     cfg.Transcribe.NumThreads,
	})
	if err != nil {
		zlog.Debug().Err(err).Msg("transcription unavailable")
		return nil
	}
	return svc
}

// defaultOutputPath builds a timestamped filename in the output dir.
func defaultOutputPath(prefix string) string {
	name := fmt.Sprintf("%s_%s.wav", prefix, time.Now().Format("20060102_150405"))
	return filepath.Join(cfg.TTS.OutputDir, name)
}

// ══════════════════════════════════════════════════════════════════════════════
// TUI (root command)
// ══════════════════════════════════════════════════════════════════════════════

func runTUI(cmd *cobra.Command, args []string) error {
	registry := buildRegistry()
	synth, cleanup, err := buildSynth(registry)
	if err != nil {
		return err
	}
	defer cleanup()

	// The TUI owns the terminal; send logs to the configured file or
	// drop them so they cannot corrupt the screen.
	var out io.Writer = io.Discard
	if cfg.Logging.File != "" {
		if f, ferr := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); ferr == nil {
			defer f.Close()
			out = zerolog.ConsoleWriter{Out: f, NoColor: true}
		}
	}
	zlog.Logger = zerolog.New(out).With().Timestamp().Logger()

	return tui.Run(tui.Config{
		Synth:     synth,
		Registry:  registry,
		Engine:    cfg.TTS.DefaultEngine,
		OutputDir: cfg.TTS.OutputDir,
	})
}
