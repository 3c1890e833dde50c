package chatbot

import (
	"io"

	"AssistantChat/internal/config"
	"AssistantChat/internal/session"

	"github.com/charmbracelet/lipgloss"
)

// palette is the accent set for one theme
type palette struct {
	accent lipgloss.Color
	text   lipgloss.Color
}

var palettes = map[string]palette{
	config.ThemeLight: {accent: "#227c9d", text: "#1f2937"},
	config.ThemeDark:  {accent: "#9ca3af", text: "#f9fafb"},
	config.ThemeBlue:  {accent: "#1e40af", text: "#1e3a8a"},
	config.ThemeGreen: {accent: "#166534", text: "#14532d"},
}

// Theme renders REPL output in one of the configured color schemes
type Theme struct {
	Name      string
	header    lipgloss.Style
	prompt    lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	system    lipgloss.Style
	body      lipgloss.Style
}

// NewTheme builds the named theme for w. Unknown names fall back to light.
// Colors are dropped automatically when w is not a terminal.
func NewTheme(name string, w io.Writer) Theme {
	p, ok := palettes[name]
	if !ok {
		name = config.ThemeLight
		p = palettes[name]
	}
	r := lipgloss.NewRenderer(w)
	return Theme{
		Name:      name,
		header:    r.NewStyle().Bold(true).Foreground(p.accent),
		prompt:    r.NewStyle().Bold(true).Foreground(p.accent),
		user:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("#2563eb")),
		assistant: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#6b7280")),
		system:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#22c55e")),
		body:      r.NewStyle().Foreground(p.text),
	}
}

func (t Theme) label(sender session.Sender) string {
	switch sender {
	case session.SenderUser:
		return t.user.Render("You:")
	case session.SenderAssistant:
		return t.assistant.Render("Assistant:")
	default:
		return t.system.Render("System:")
	}
}
