// Package tui is the interactive terminal frontend: browse voice
// catalogs, type text, and generate speech without leaving the terminal.
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aparsoft/voicekit/internal/engine"
	"github.com/aparsoft/voicekit/internal/tts"
)

// Config holds everything the TUI needs to run.
type Config struct {
	// Synth performs the actual generation.
	Synth *tts.Synthesizer

	// Registry supplies the engine catalogs.
	Registry *engine.Registry

	// Engine is the engine selected at startup (defaults to kokoro).
	Engine string

	// OutputDir is where generated files land.
	OutputDir string
}

// New creates the Bubble Tea program.
func New(cfg Config) (*tea.Program, error) {
	if cfg.Synth == nil || cfg.Registry == nil {
		return nil, fmt.Errorf("tui: synthesizer and registry are required")
	}
	if cfg.Engine == "" {
		cfg.Engine = "kokoro"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}

	m, err := newModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("tui: %w", err)
	}
	return tea.NewProgram(m, tea.WithAltScreen()), nil
}

// Run starts the TUI and blocks until it exits.
func Run(cfg Config) error {
	prog, err := New(cfg)
	if err != nil {
		return err
	}
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
