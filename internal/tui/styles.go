package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the pre-computed lipgloss styles for the layout regions.
type Styles struct {
	Header    lipgloss.Style
	Engine    lipgloss.Style
	VoicePane lipgloss.Style
	InputPane lipgloss.Style
	Focused   lipgloss.Style
	Status    lipgloss.Style
	StatusOK  lipgloss.Style
	StatusErr lipgloss.Style
	Spinner   lipgloss.Style
	Help      lipgloss.Style
}

func newStyles() Styles {
	border := lipgloss.RoundedBorder()
	return Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1),
		Engine: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true),
		VoicePane: lipgloss.NewStyle().
			Border(border).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1),
		InputPane: lipgloss.NewStyle().
			Border(border).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1),
		Focused: lipgloss.NewStyle().
			Border(border).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 1),
		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Padding(0, 1),
		StatusOK: lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Padding(0, 1),
		StatusErr: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Padding(0, 1),
		Spinner: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")),
		Help: lipgloss.NewStyle().
			Padding(0, 1),
	}
}
