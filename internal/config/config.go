// Package config loads the voicekit configuration from
// ~/.voicekit/config.yaml with VOICEKIT_* environment overrides. A
// missing file is created with defaults on first load.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all voicekit settings.
type Config struct {
	TTS        TTSConfig        `mapstructure:"tts" yaml:"tts"`
	Engines    EnginesConfig    `mapstructure:"engines" yaml:"engines"`
	Chunking   ChunkingConfig   `mapstructure:"chunking" yaml:"chunking"`
	Transcribe TranscribeConfig `mapstructure:"transcribe" yaml:"transcribe"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	History    HistoryConfig    `mapstructure:"history" yaml:"history"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// TTSConfig controls the generation pipeline.
type TTSConfig struct {
	// DefaultEngine is used when a request names no engine.
	DefaultEngine string `mapstructure:"default_engine" yaml:"default_engine"`
	// OutputDir is where generated audio lands by default.
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	// Enhance enables audio post-processing.
	Enhance bool `mapstructure:"enhance" yaml:"enhance"`
	// TrimDB is the silence trim threshold in dB below peak.
	TrimDB float64 `mapstructure:"trim_db" yaml:"trim_db"`
	// FadeDuration is the fade in/out length in seconds.
	FadeDuration float64 `mapstructure:"fade_duration" yaml:"fade_duration"`
	// ChunkGap is the silence between stitched chunks, in seconds.
	ChunkGap float64 `mapstructure:"chunk_gap" yaml:"chunk_gap"`
	// ScriptGap is the default silence between script sections.
	ScriptGap float64 `mapstructure:"script_gap" yaml:"script_gap"`
	// PodcastGap is the default silence between podcast segments.
	PodcastGap float64 `mapstructure:"podcast_gap" yaml:"podcast_gap"`
}

// EngineConfig is the connection to one backend serving process.
type EngineConfig struct {
	BaseURL      string `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSec   int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
	DefaultVoice string `mapstructure:"default_voice" yaml:"default_voice"`
}

// EnginesConfig holds the per-backend connections.
type EnginesConfig struct {
	Kokoro    EngineConfig `mapstructure:"kokoro" yaml:"kokoro"`
	Indic     EngineConfig `mapstructure:"indic" yaml:"indic"`
	OpenVoice EngineConfig `mapstructure:"openvoice" yaml:"openvoice"`
}

// ChunkingConfig overrides the text chunking budgets.
type ChunkingConfig struct {
	TargetMaxUnits   int `mapstructure:"target_max_units" yaml:"target_max_units"`
	AbsoluteMaxUnits int `mapstructure:"absolute_max_units" yaml:"absolute_max_units"`
	MinChunkUnits    int `mapstructure:"min_chunk_units" yaml:"min_chunk_units"`
}

// TranscribeConfig holds whisper.cpp settings.
type TranscribeConfig struct {
	ExecutablePath string `mapstructure:"executable_path" yaml:"executable_path"`
	ModelDir       string `mapstructure:"model_dir" yaml:"model_dir"`
	ModelSize      string `mapstructure:"model_size" yaml:"model_size"`
	NumThreads     int    `mapstructure:"num_threads" yaml:"num_threads"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// HistoryConfig holds the generation ledger settings.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DBPath  string `mapstructure:"db_path" yaml:"db_path"`
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// File receives logs in addition to stderr when set.
	File string `mapstructure:"file" yaml:"file"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		TTS: TTSConfig{
			DefaultEngine: "kokoro",
			OutputDir:     "~/voicekit-output",
			Enhance:       true,
			TrimDB:        30.0,
			FadeDuration:  0.1,
			ChunkGap:      0.3,
			ScriptGap:     0.5,
			PodcastGap:    0.6,
		},
		Engines: EnginesConfig{
			Kokoro:    EngineConfig{BaseURL: "http://localhost:8880", TimeoutSec: 60, DefaultVoice: "am_michael"},
			Indic:     EngineConfig{BaseURL: "http://localhost:8881", TimeoutSec: 120, DefaultVoice: "rohit"},
			OpenVoice: EngineConfig{BaseURL: "http://localhost:8882", TimeoutSec: 120, DefaultVoice: "en-default"},
		},
		Chunking: ChunkingConfig{
			TargetMaxUnits:   250,
			AbsoluteMaxUnits: 450,
			MinChunkUnits:    20,
		},
		Transcribe: TranscribeConfig{
			ModelDir:   "~/.whisper",
			ModelSize:  "base",
			NumThreads: 4,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8778",
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  "~/.voicekit/history.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from ~/.voicekit/config.yaml, creating the
// file with defaults when missing, and merges environment overrides.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return LoadFromPath(filepath.Join(homeDir, ".voicekit", "config.yaml"))
}

// LoadFromPath reads configuration from a specific file, creating it
// with defaults when missing. Environment variables prefixed VOICEKIT_
// override file values (e.g. VOICEKIT_TTS_DEFAULT_ENGINE).
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("VOICEKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.TTS.OutputDir = expandPath(cfg.TTS.OutputDir)
	cfg.Transcribe.ModelDir = expandPath(cfg.Transcribe.ModelDir)
	cfg.History.DBPath = expandPath(cfg.History.DBPath)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.TTS.DefaultEngine {
	case "kokoro", "indic", "openvoice":
	default:
		return fmt.Errorf("tts.default_engine: unknown engine %q", c.TTS.DefaultEngine)
	}
	if c.TTS.ChunkGap < 0 || c.TTS.ScriptGap < 0 || c.TTS.PodcastGap < 0 {
		return fmt.Errorf("tts: gap durations must not be negative")
	}
	if c.Chunking.TargetMaxUnits > c.Chunking.AbsoluteMaxUnits {
		return fmt.Errorf("chunking: target_max_units %d exceeds absolute_max_units %d",
			c.Chunking.TargetMaxUnits, c.Chunking.AbsoluteMaxUnits)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	return nil
}

// SaveToPath writes the configuration as YAML.
func (c *Config) SaveToPath(path string) error {
	return writeConfigFile(expandPath(path), c)
}

func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// expandPath resolves a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/"))
}
