package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/aparsoft/voicekit/internal/engine"
	"github.com/aparsoft/voicekit/internal/tts"
)

// focusArea tracks which pane receives key input.
type focusArea int

const (
	focusVoices focusArea = iota
	focusInput
)

// ══════════════════════════════════════════════════════════════════════════════
// Messages
// ══════════════════════════════════════════════════════════════════════════════

type generateDoneMsg struct {
	result  tts.Result
	elapsed time.Duration
}

type generateFailedMsg struct {
	err error
}

// ══════════════════════════════════════════════════════════════════════════════
// Voice List Items
// ══════════════════════════════════════════════════════════════════════════════

type voiceItem struct {
	voice engine.Voice
}

func (i voiceItem) Title() string { return i.voice.ID }
func (i voiceItem) Description() string {
	return fmt.Sprintf("%s, %s", i.voice.Language, i.voice.Gender)
}
func (i voiceItem) FilterValue() string { return i.voice.ID }

func voiceItems(voices []engine.Voice) []list.Item {
	items := make([]list.Item, len(voices))
	for i, v := range voices {
		items[i] = voiceItem{voice: v}
	}
	return items
}

// ══════════════════════════════════════════════════════════════════════════════
// Model
// ══════════════════════════════════════════════════════════════════════════════

// Model is the Bubble Tea model for the generation screen: a voice
// browser on the left, a text prompt on the right, and a status line.
type Model struct {
	cfg    Config
	styles Styles
	keys   KeyMap

	width  int
	height int
	ready  bool

	engineName  string
	engineNames []string

	focus      focusArea
	voices     list.Model
	input      textarea.Model
	spinner    spinner.Model
	help       help.Model
	generating bool

	status    string
	statusErr bool
}

func newModel(cfg Config) (Model, error) {
	e, err := cfg.Registry.Get(cfg.Engine)
	if err != nil {
		return Model{}, err
	}

	delegate := list.NewDefaultDelegate()
	voices := list.New(voiceItems(e.Voices()), delegate, 0, 0)
	voices.Title = "Voices"
	voices.SetShowHelp(false)
	voices.SetFilteringEnabled(true)

	input := textarea.New()
	input.Placeholder = "Type text to speak, then press Enter..."
	input.CharLimit = 4000
	input.SetHeight(5)
	input.ShowLineNumbers = false
	input.KeyMap.InsertNewline.SetEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	styles := newStyles()
	sp.Style = styles.Spinner

	return Model{
		cfg:         cfg,
		styles:      styles,
		keys:        DefaultKeyMap(),
		engineName:  cfg.Engine,
		engineNames: cfg.Registry.Names(),
		focus:       focusVoices,
		voices:      voices,
		input:       input,
		spinner:     sp,
		help:        help.New(),
		status:      "select a voice and type some text",
	}, nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// ══════════════════════════════════════════════════════════════════════════════
// Update
// ══════════════════════════════════════════════════════════════════════════════

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case generateDoneMsg:
		m.generating = false
		m.statusErr = false
		m.status = fmt.Sprintf("wrote %s (%.2fs audio, %d chunks, took %s)",
			msg.result.OutputPath, msg.result.Duration, msg.result.Chunks,
			msg.elapsed.Round(time.Millisecond))
		return m, nil

	case generateFailedMsg:
		m.generating = false
		m.statusErr = true
		m.status = msg.err.Error()
		return m, nil
	}

	return m.updateComponents(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Quit always wins, even mid-generation.
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if m.generating {
		return m, nil
	}

	// While the list filter is open, keys belong to the list.
	if m.focus == focusVoices && m.voices.FilterState() == list.Filtering {
		return m.updateComponents(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Focus):
		if m.focus == focusVoices {
			m.focus = focusInput
			m.input.Focus()
		} else {
			m.focus = focusVoices
			m.input.Blur()
		}
		return m, nil

	case key.Matches(msg, m.keys.Engine):
		return m.nextEngine()

	case key.Matches(msg, m.keys.Help) && m.focus == focusVoices:
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Generate):
		return m.startGenerate()
	}

	return m.updateComponents(msg)
}

func (m Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	if m.focus == focusVoices {
		m.voices, cmd = m.voices.Update(msg)
		cmds = append(cmds, cmd)
	} else {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) nextEngine() (tea.Model, tea.Cmd) {
	if len(m.engineNames) < 2 {
		return m, nil
	}
	next := m.engineNames[0]
	for i, name := range m.engineNames {
		if name == m.engineName {
			next = m.engineNames[(i+1)%len(m.engineNames)]
			break
		}
	}

	e, err := m.cfg.Registry.Get(next)
	if err != nil {
		m.statusErr = true
		m.status = err.Error()
		return m, nil
	}
	m.engineName = next
	m.statusErr = false
	m.status = "switched to " + next
	return m, m.voices.SetItems(voiceItems(e.Voices()))
}

func (m Model) startGenerate() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if text == "" {
		m.statusErr = true
		m.status = "nothing to speak: type some text first"
		return m, nil
	}
	item, ok := m.voices.SelectedItem().(voiceItem)
	if !ok {
		m.statusErr = true
		m.status = "no voice selected"
		return m, nil
	}

	m.generating = true
	m.statusErr = false
	m.status = "generating..."
	return m, tea.Batch(m.spinner.Tick, m.generateCmd(text, item.voice.ID))
}

// generateCmd runs the synthesis off the update loop and reports back.
func (m Model) generateCmd(text, voice string) tea.Cmd {
	synth := m.cfg.Synth
	engineName := m.engineName
	outputPath := filepath.Join(m.cfg.OutputDir, uuid.NewString()+".wav")

	return func() tea.Msg {
		start := time.Now()
		res, _, err := synth.Generate(context.Background(), text, outputPath, tts.GenerateOptions{
			Engine: engineName,
			Voice:  voice,
		})
		if err != nil {
			return generateFailedMsg{err: err}
		}
		return generateDoneMsg{result: res, elapsed: time.Since(start)}
	}
}

// layout resizes the panes to the terminal.
func (m *Model) layout() {
	const headerLines = 2
	const statusLines = 2
	paneHeight := m.height - headerLines - statusLines - 2
	if paneHeight < 5 {
		paneHeight = 5
	}

	listWidth := m.width / 3
	if listWidth < 24 {
		listWidth = 24
	}
	inputWidth := m.width - listWidth - 6
	if inputWidth < 20 {
		inputWidth = 20
	}

	m.voices.SetSize(listWidth, paneHeight)
	m.input.SetWidth(inputWidth)
	m.input.SetHeight(paneHeight)
	m.help.Width = m.width
}

// ══════════════════════════════════════════════════════════════════════════════
// View
// ══════════════════════════════════════════════════════════════════════════════

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		m.styles.Header.Render("voicekit"),
		m.styles.Status.Render("engine: "),
		m.styles.Engine.Render(m.engineName),
	)

	voicePane := m.styles.VoicePane
	inputPane := m.styles.InputPane
	if m.focus == focusVoices {
		voicePane = m.styles.Focused
	} else {
		inputPane = m.styles.Focused
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		voicePane.Render(m.voices.View()),
		inputPane.Render(m.input.View()),
	)

	var status string
	switch {
	case m.generating:
		status = m.styles.Status.Render(m.spinner.View() + " generating...")
	case m.statusErr:
		status = m.styles.StatusErr.Render(m.status)
	default:
		status = m.styles.StatusOK.Render(m.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		status,
		m.styles.Help.Render(m.help.View(m.keys)),
	)
}
