package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aparsoft/voicekit/internal/audio"
	"github.com/aparsoft/voicekit/internal/chunker"
	"github.com/aparsoft/voicekit/internal/engine"
	"github.com/aparsoft/voicekit/internal/history"
	"github.com/aparsoft/voicekit/internal/mcpserver"
	"github.com/aparsoft/voicekit/internal/server"
	"github.com/aparsoft/voicekit/internal/tts"
)

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// readInput resolves the text argument: an explicit file wins, then the
// joined positional args.
func readInput(file string, args []string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(data), nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("no text given: pass it as an argument or with --file")
	}
	return strings.Join(args, " "), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

func generateCmd() *cobra.Command {
	var (
		engineName string
		voice      string
		speed      float64
		emotion    string
		output     string
		file       string
		clone      string
		chunksDir  string
		noEnhance  bool
	)

	cmd := &cobra.Command{
		Use:   "generate [text]",
		Short: "Generate speech from text",
		Long: `Generate speech from text. Long text is split at sentence
boundaries and stitched with short pauses.

Examples:
  voicekit generate "Hello world" -o hello.wav
  voicekit generate --file chapter.txt --voice af_bella
  voicekit generate "नमस्ते" -e indic --voice divya --emotion happy
  voicekit generate "Hello" -e openvoice --clone reference.wav`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(file, args)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			registry := buildRegistry()

			if clone != "" {
				return runClone(ctx, registry, text, engineName, voice, speed, clone, output)
			}

			synth, cleanup, err := buildSynth(registry)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := tts.GenerateOptions{
				Engine:      engineName,
				Voice:       voice,
				Speed:       speed,
				Emotion:     emotion,
				SkipEnhance: noEnhance,
			}

			if chunksDir != "" {
				return runStream(ctx, synth, text, chunksDir, opts)
			}

			if output == "" {
				output = defaultOutputPath("speech")
			}
			res, _, err := synth.Generate(ctx, text, output, opts)
			if err != nil {
				return err
			}
			fmt.Printf("Generated %.2fs of audio (%d chunks) -> %s\n", res.Duration, res.Chunks, res.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&engineName, "engine", "e", "", "engine: kokoro, indic, or openvoice")
	cmd.Flags().StringVar(&voice, "voice", "", "voice ID from the engine's catalog")
	cmd.Flags().Float64Var(&speed, "speed", 0, "speech speed multiplier (0.5-2.0)")
	cmd.Flags().StringVar(&emotion, "emotion", "", "emotion label (indic engine)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output WAV path")
	cmd.Flags().StringVar(&file, "file", "", "read text from a file")
	cmd.Flags().StringVar(&clone, "clone", "", "reference audio for voice cloning (openvoice)")
	cmd.Flags().StringVar(&chunksDir, "chunks-dir", "", "write each chunk as a separate WAV instead of stitching")
	cmd.Flags().BoolVar(&noEnhance, "no-enhance", false, "skip audio post-processing")

	return cmd
}

// runClone synthesizes with the timbre of the reference recording.
func runClone(ctx context.Context, registry *engine.Registry, text, engineName, voice string, speed float64, reference, output string) error {
	if engineName == "" {
		engineName = "openvoice"
	}
	e, err := registry.Get(engineName)
	if err != nil {
		return err
	}
	ce, ok := e.(engine.CloningEngine)
	if !ok {
		return &engine.ValidationError{Field: "engine", Message: fmt.Sprintf("%s does not support voice cloning", engineName)}
	}
	if _, err := os.Stat(reference); err != nil {
		return fmt.Errorf("reference audio: %w", err)
	}

	req := engine.Request{Text: text, Voice: voice, Speed: speed}
	if err := engine.ValidateRequest(req, e); err != nil {
		return err
	}

	w, err := ce.GenerateCloned(ctx, req, reference)
	if err != nil {
		return err
	}
	if cfg.TTS.Enhance {
		w, err = audio.Enhance(w, audio.DefaultEnhanceOptions())
		if err != nil {
			return err
		}
	}
	if output == "" {
		output = defaultOutputPath("cloned")
	}
	if err := audio.Save(w, output); err != nil {
		return err
	}
	fmt.Printf("Cloned %.2fs of audio -> %s\n", w.Duration(), output)
	return nil
}

// runStream writes each chunk as its own file as it is synthesized.
func runStream(ctx context.Context, synth *tts.Synthesizer, text, dir string, opts tts.GenerateOptions) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	count := 0
	err := synth.GenerateStream(ctx, text, opts, func(chunk chunker.Chunk, w audio.Waveform) error {
		path := filepath.Join(dir, fmt.Sprintf("chunk_%03d.wav", chunk.Index))
		if err := audio.Save(w, path); err != nil {
			return err
		}
		count++
		fmt.Printf("chunk %d (%.2fs) -> %s\n", chunk.Index, w.Duration(), path)
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d chunks to %s\n", count, dir)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BATCH COMMAND
// ══════════════════════════════════════════════════════════════════════════════

func batchCmd() *cobra.Command {
	var (
		engineName string
		voice      string
		outputDir  string
		file       string
	)

	cmd := &cobra.Command{
		Use:   "batch [texts...]",
		Short: "Generate one file per text",
		Long: `Generate multiple texts independently, one WAV each, named
segment_NNN.wav. A failed item does not stop the rest.

With --file, each non-empty line of the file is one item.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			texts := args
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				texts = nil
				for _, line := range strings.Split(string(data), "\n") {
					if line = strings.TrimSpace(line); line != "" {
						texts = append(texts, line)
					}
				}
			}

			ctx, cancel := signalContext()
			defer cancel()

			synth, cleanup, err := buildSynth(buildRegistry())
			if err != nil {
				return err
			}
			defer cleanup()

			if outputDir == "" {
				outputDir = cfg.TTS.OutputDir
			}
			results, err := synth.BatchGenerate(ctx, tts.BatchToDir(texts, outputDir), tts.GenerateOptions{
				Engine: engineName,
				Voice:  voice,
			})
			if err != nil && len(results) == 0 {
				return err
			}

			succeeded := 0
			for i, r := range results {
				if r.Err != nil {
					fmt.Printf("item %d: FAILED: %v\n", i+1, r.Err)
					continue
				}
				succeeded++
				fmt.Printf("item %d: %s (%.2fs)\n", i+1, r.Result.OutputPath, r.Result.Duration)
			}
			fmt.Printf("%d/%d items succeeded\n", succeeded, len(results))
			return nil
		},
	}

	cmd.Flags().StringVarP(&engineName, "engine", "e", "", "engine for all items")
	cmd.Flags().StringVar(&voice, "voice", "", "voice for all items")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "directory for segment files")
	cmd.Flags().StringVar(&file, "file", "", "read items from a file, one per line")

	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// SCRIPT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

func scriptCmd() *cobra.Command {
	var (
		engineName string
		voice      string
		speed      float64
		gap        float64
		output     string
	)

	cmd := &cobra.Command{
		Use:   "script <file>",
		Short: "Narrate a multi-section script into one file",
		Long: `Narrate a script into a single WAV. Blank lines in the script
separate sections; each section boundary gets a longer pause than
ordinary chunk stitching.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read script: %w", err)
			}

			ctx, cancel := signalContext()
			defer cancel()

			synth, cleanup, err := buildSynth(buildRegistry())
			if err != nil {
				return err
			}
			defer cleanup()

			if output == "" {
				output = defaultOutputPath("script")
			}
			res, err := synth.ProcessScript(ctx, string(data), output, gap, tts.GenerateOptions{
				Engine: engineName,
				Voice:  voice,
				Speed:  speed,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Narrated %d sections, %.2fs total -> %s\n", res.Chunks, res.Duration, res.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&engineName, "engine", "e", "", "engine to use")
	cmd.Flags().StringVar(&voice, "voice", "", "voice for the whole script")
	cmd.Flags().Float64Var(&speed, "speed", 0, "speech speed multiplier")
	cmd.Flags().Float64Var(&gap, "gap", 0, "pause between sections in seconds (default 0.5)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output WAV path")

	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// PODCAST COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// podcastFile is the JSON input format: an array of segments.
type podcastFileSegment struct {
	Text    string  `json:"text"`
	Voice   string  `json:"voice,omitempty"`
	Speed   float64 `json:"speed,omitempty"`
	Emotion string  `json:"emotion,omitempty"`
}

func podcastCmd() *cobra.Command {
	var (
		engineName string
		gap        float64
		output     string
	)

	cmd := &cobra.Command{
		Use:   "podcast <segments.json>",
		Short: "Generate a multi-voice conversation",
		Long: `Generate a conversation from a JSON file of ordered segments,
each with its own voice, speed, and emotion, stitched with pauses.

Segment file format:
  [
    {"text": "Welcome to the show.", "voice": "am_michael"},
    {"text": "Thanks for having me!", "voice": "af_bella", "speed": 1.1}
  ]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read segments: %w", err)
			}
			var fileSegments []podcastFileSegment
			if err := json.Unmarshal(data, &fileSegments); err != nil {
				return fmt.Errorf("invalid segments file: %w", err)
			}

			segments := make([]tts.PodcastSegment, len(fileSegments))
			for i, s := range fileSegments {
				segments[i] = tts.PodcastSegment{
					Text:    s.Text,
					Voice:   s.Voice,
					Speed:   s.Speed,
					Emotion: s.Emotion,
				}
			}

			ctx, cancel := signalContext()
			defer cancel()

			synth, cleanup, err := buildSynth(buildRegistry())
			if err != nil {
				return err
			}
			defer cleanup()

			if output == "" {
				output = defaultOutputPath("podcast")
			}
			res, err := synth.GeneratePodcast(ctx, segments, output, gap, tts.GenerateOptions{
				Engine: engineName,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Generated %d segments, %.2fs total -> %s\n", res.Chunks, res.Duration, res.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&engineName, "engine", "e", "", "engine for all segments")
	cmd.Flags().Float64Var(&gap, "gap", 0, "pause between segments in seconds (default 0.6)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output WAV path")

	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// VOICES COMMAND
// ══════════════════════════════════════════════════════════════════════════════

func voicesCmd() *cobra.Command {
	var (
		engineName string
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List voice catalogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := buildRegistry()
			names := []string{engineName}
			if all || engineName == "" {
				names = registry.Names()
			}

			for _, name := range names {
				e, err := registry.Get(name)
				if err != nil {
					fmt.Printf("%s: %v\n\n", name, err)
					continue
				}
				printEngineInfo(e)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&engineName, "engine", "e", "", "show one engine's catalog")
	cmd.Flags().BoolVar(&all, "all", false, "show every engine")

	return cmd
}

func printEngineInfo(e engine.Engine) {
	fmt.Printf("%s (%d Hz, max %d units per call)\n", e.Name(), e.SampleRate(), e.MaxUnits())
	fmt.Println(strings.Repeat("─", 40))

	groups := engine.GroupVoices(e.Voices())
	for _, group := range []string{"male", "female", "hindi_male", "hindi_female"} {
		if ids := groups[group]; len(ids) > 0 {
			fmt.Printf("  %-13s %s\n", group+":", strings.Join(ids, ", "))
		}
	}
	if ee, ok := e.(engine.EmotionEngine); ok {
		fmt.Printf("  %-13s %s\n", "emotions:", strings.Join(ee.Emotions(), ", "))
	}
	if _, ok := e.(engine.CloningEngine); ok {
		fmt.Println("  supports voice cloning from reference audio")
	}
	fmt.Println()
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSCRIBE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

func transcribeCmd() *cobra.Command {
	var (
		language     string
		showSegments bool
	)

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe audio to text with whisper.cpp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := buildTranscriber()
			if svc == nil {
				return fmt.Errorf("whisper.cpp not found: install it and set transcribe.executable_path")
			}

			ctx, cancel := signalContext()
			defer cancel()

			tr, err := svc.TranscribeFile(ctx, args[0], language)
			if err != nil {
				return err
			}

			fmt.Println(tr.Text)
			if showSegments {
				fmt.Println()
				for _, seg := range tr.Segments {
					fmt.Printf("[%8.2f - %8.2f] %s\n", seg.Start, seg.End, seg.Text)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "language hint (e.g. en, hi)")
	cmd.Flags().BoolVar(&showSegments, "segments", false, "print timestamped segments")

	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the generation ledger",
	}

	var (
		limit      int
		engineName string
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent generations",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			var records []tts.Record
			if engineName != "" {
				records, err = store.ByEngine(ctx, engineName, limit)
			} else {
				records, err = store.Recent(ctx, limit)
			}
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No generations recorded.")
				return nil
			}
			for _, rec := range records {
				fmt.Printf("%s  %-9s %-12s %6.2fs  %s\n",
					rec.CreatedAt.Local().Format("2006-01-02 15:04"),
					rec.Engine, rec.Voice, rec.Duration, rec.OutputPath)
			}
			return nil
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records")
	listCmd.Flags().StringVarP(&engineName, "engine", "e", "", "filter by engine")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show aggregate statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Summary(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Generations: %d\n", stats.Total)
			fmt.Printf("Total audio: %.1fs\n", stats.TotalDuration)
			for name, count := range stats.ByEngine {
				fmt.Printf("  %-10s %d\n", name, count)
			}
			return nil
		},
	})

	var days int
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete records older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			cutoff := time.Now().AddDate(0, 0, -days)
			n, err := store.Prune(context.Background(), cutoff)
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %d records older than %s\n", n, cutoff.Format("2006-01-02"))
			return nil
		},
	}
	pruneCmd.Flags().IntVar(&days, "days", 90, "keep records newer than this many days")
	cmd.AddCommand(pruneCmd)

	return cmd
}

func openHistory() (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("history is disabled in the configuration")
	}
	return history.Open(cfg.History.DBPath)
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API: JSON endpoints for generation, scripts,
podcasts, voice catalogs, and history, plus a websocket stream of job
progress events at /v1/events.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := buildRegistry()
			synth, cleanup, err := buildSynth(registry)
			if err != nil {
				return err
			}
			defer cleanup()

			var hist server.History
			if cfg.History.Enabled {
				if store, herr := history.Open(cfg.History.DBPath); herr == nil {
					defer store.Close()
					hist = store
				}
			}

			if addr == "" {
				addr = cfg.Server.Addr
			}
			srv := server.New(server.Config{
				Addr:      addr,
				OutputDir: cfg.TTS.OutputDir,
			}, synth, registry, hist)

			ctx, cancel := signalContext()
			defer cancel()
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// MCP COMMAND
// ══════════════════════════════════════════════════════════════════════════════

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		Long: `Run the Model Context Protocol server on stdio, exposing
generation, batch, script, podcast, voice listing, and transcription as
tools for agent runtimes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := buildRegistry()
			synth, cleanup, err := buildSynth(registry)
			if err != nil {
				return err
			}
			defer cleanup()

			srv := mcpserver.New(mcpserver.Config{
				Version:   version,
				OutputDir: cfg.TTS.OutputDir,
			}, synth, registry, buildTranscriber())

			ctx, cancel := signalContext()
			defer cancel()
			return srv.Run(ctx)
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Voicekit Configuration:")
			fmt.Println("───────────────────────")
			fmt.Printf("Default engine:  %s\n", cfg.TTS.DefaultEngine)
			fmt.Printf("Output dir:      %s\n", cfg.TTS.OutputDir)
			fmt.Printf("Enhance:         %t\n", cfg.TTS.Enhance)
			fmt.Printf("Kokoro:          %s\n", cfg.Engines.Kokoro.BaseURL)
			fmt.Printf("Indic:           %s\n", cfg.Engines.Indic.BaseURL)
			fmt.Printf("OpenVoice:       %s\n", cfg.Engines.OpenVoice.BaseURL)
			fmt.Printf("Server addr:     %s\n", cfg.Server.Addr)
			fmt.Printf("History:         %t (%s)\n", cfg.History.Enabled, cfg.History.DBPath)
			fmt.Printf("Log level:       %s\n", cfg.Logging.Level)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			if cfgPath != "" {
				fmt.Println(cfgPath)
				return
			}
			home, err := os.UserHomeDir()
			if err != nil {
				home = "~"
			}
			fmt.Println(filepath.Join(home, ".voicekit", "config.yaml"))
		},
	})

	return cmd
}
