package schema

import "strings"

// ConsoleConfig defines defaults and limits for a console instance.
type ConsoleConfig struct {
	BufferMaxLines int
	HistoryMax     int
	// Prompt is printed before each input line. "{dir}" expands to the
	// working directory and "{base}" to its last element.
	Prompt   string
	Banner   []string
	StartDir string
	Theme    ThemeName
	// DisableAuditLogging disables audit trail debug logs for commands.
	DisableAuditLogging bool
}

// DefaultBufferMaxLines is the default console line cap.
const DefaultBufferMaxLines = 2500

// DefaultHistoryMax is the default number of remembered commands.
const DefaultHistoryMax = 50

// DefaultPrompt is the prompt used when none is configured.
const DefaultPrompt = "{dir}> "

// DefaultBanner is printed on console start and after clear.
var DefaultBanner = []string{
	"conch console. Type 'help' for built-in commands.",
	"Anything else runs in the system shell from the current directory.",
}

// NormalizeConsoleConfig applies defaults to the config.
func NormalizeConsoleConfig(cfg ConsoleConfig) ConsoleConfig {
	if cfg.BufferMaxLines <= 0 {
		cfg.BufferMaxLines = DefaultBufferMaxLines
	}
	if cfg.HistoryMax <= 0 {
		cfg.HistoryMax = DefaultHistoryMax
	}
	if strings.TrimSpace(cfg.Prompt) == "" {
		cfg.Prompt = DefaultPrompt
	}
	if cfg.Banner == nil {
		cfg.Banner = append([]string(nil), DefaultBanner...)
	}
	if theme, ok := NormalizeThemeName(string(cfg.Theme)); ok {
		cfg.Theme = theme
	} else {
		cfg.Theme = DefaultTheme
	}
	return cfg
}
