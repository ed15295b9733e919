package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ══════════════════════════════════════════════════════════════════════════════
// Default Tests
// ══════════════════════════════════════════════════════════════════════════════

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "kokoro", cfg.TTS.DefaultEngine)
	assert.Equal(t, 0.3, cfg.TTS.ChunkGap)
	assert.Equal(t, 0.5, cfg.TTS.ScriptGap)
	assert.Equal(t, 0.6, cfg.TTS.PodcastGap)
	assert.Equal(t, 250, cfg.Chunking.TargetMaxUnits)
	assert.Equal(t, 450, cfg.Chunking.AbsoluteMaxUnits)
}

// ══════════════════════════════════════════════════════════════════════════════
// Load Tests
// ══════════════════════════════════════════════════════════════════════════════

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "kokoro", cfg.TTS.DefaultEngine)

	_, err = os.Stat(path)
	assert.NoError(t, err, "default config file written on first load")
}

func TestLoadReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
tts:
  default_engine: indic
  chunk_gap: 0.25
engines:
  indic:
    base_url: http://indic.internal:9000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "indic", cfg.TTS.DefaultEngine)
	assert.Equal(t, 0.25, cfg.TTS.ChunkGap)
	assert.Equal(t, "http://indic.internal:9000", cfg.Engines.Indic.BaseURL)
	// Untouched sections keep their defaults.
	assert.Equal(t, "http://localhost:8880", cfg.Engines.Kokoro.BaseURL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tts:\n  default_engine: espeak\n"), 0o644))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "espeak")
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Default()
	cfg.TTS.DefaultEngine = "openvoice"
	cfg.Server.Addr = "0.0.0.0:9999"
	require.NoError(t, cfg.SaveToPath(path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "openvoice", loaded.TTS.DefaultEngine)
	assert.Equal(t, "0.0.0.0:9999", loaded.Server.Addr)
}

// ══════════════════════════════════════════════════════════════════════════════
// Validate Tests
// ══════════════════════════════════════════════════════════════════════════════

func TestValidateBudgets(t *testing.T) {
	cfg := Default()
	cfg.Chunking.TargetMaxUnits = 500
	cfg.Chunking.AbsoluteMaxUnits = 450
	assert.Error(t, cfg.Validate())
}

func TestValidateNegativeGap(t *testing.T) {
	cfg := Default()
	cfg.TTS.ScriptGap = -1
	assert.Error(t, cfg.Validate())
}

func TestValidateLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "loud"
	assert.Error(t, cfg.Validate())

	cfg.Logging.Level = "debug"
	assert.NoError(t, cfg.Validate())
}
