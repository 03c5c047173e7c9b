package termui

import (
	"github.com/charmbracelet/lipgloss"
	"pkt.systems/conch/schema"
)

type palette struct {
	Prompt    string
	Input     string
	Stdout    string
	Stderr    string
	Exception string
	Banner    string
	StatusFG  string
	StatusBG  string
}

var palettes = map[schema.ThemeName]palette{
	"default": {
		Prompt:    "#00E5FF",
		Input:     "#FFFFFF",
		Stdout:    "#D0D4E4",
		Stderr:    "#FF5BBD",
		Exception: "#FF6B6B",
		Banner:    "#9AA3B2",
		StatusFG:  "#0A0D17",
		StatusBG:  "#00E5FF",
	},
	"orca": {
		Prompt:    "#83A598",
		Input:     "#EBDBB2",
		Stdout:    "#D5C4A1",
		Stderr:    "#D3869B",
		Exception: "#FB4934",
		Banner:    "#928374",
		StatusFG:  "#282828",
		StatusBG:  "#83A598",
	},
}

// Theme maps console styles to terminal styles.
type Theme struct {
	Name   schema.ThemeName
	styles map[schema.Style]lipgloss.Style
	status lipgloss.Style
}

// NewTheme builds the named theme for renderer. The mono theme and unknown
// names without a palette use attributes only.
func NewTheme(r *lipgloss.Renderer, name schema.ThemeName) Theme {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	if normalized, ok := schema.NormalizeThemeName(string(name)); ok {
		name = normalized
	} else {
		name = schema.DefaultTheme
	}
	t := Theme{Name: name, styles: make(map[schema.Style]lipgloss.Style)}
	p, ok := palettes[name]
	if !ok {
		t.styles[schema.StylePrompt] = r.NewStyle().Bold(true)
		t.styles[schema.StyleStderr] = r.NewStyle().Underline(true)
		t.styles[schema.StyleException] = r.NewStyle().Bold(true).Underline(true)
		t.styles[schema.StyleBanner] = r.NewStyle().Faint(true)
		t.status = r.NewStyle().Reverse(true)
		return t
	}
	t.styles[schema.StylePrompt] = r.NewStyle().Foreground(lipgloss.Color(p.Prompt)).Bold(true)
	t.styles[schema.StyleInput] = r.NewStyle().Foreground(lipgloss.Color(p.Input))
	t.styles[schema.StyleStdout] = r.NewStyle().Foreground(lipgloss.Color(p.Stdout))
	t.styles[schema.StyleStderr] = r.NewStyle().Foreground(lipgloss.Color(p.Stderr))
	t.styles[schema.StyleException] = r.NewStyle().Foreground(lipgloss.Color(p.Exception)).Bold(true)
	t.styles[schema.StyleBanner] = r.NewStyle().Foreground(lipgloss.Color(p.Banner)).Italic(true)
	t.status = r.NewStyle().Foreground(lipgloss.Color(p.StatusFG)).Background(lipgloss.Color(p.StatusBG))
	return t
}

// Render styles text. Unknown styles render verbatim.
func (t Theme) Render(style schema.Style, text string) string {
	if text == "" {
		return ""
	}
	s, ok := t.styles[style]
	if !ok {
		return text
	}
	return s.Render(text)
}

// Status styles the status bar.
func (t Theme) Status(text string) string {
	return t.status.Render(text)
}
