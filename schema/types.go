package schema

// ConsoleID identifies a console instance.
type ConsoleID string

// ThemeName identifies a frontend theme.
type ThemeName string

// Style tags a run of console text.
type Style string

const (
	// StylePrompt marks prompt text.
	StylePrompt Style = "prompt"
	// StyleInput marks text typed by the user.
	StyleInput Style = "input"
	// StyleStdout marks process stdout and built-in output.
	StyleStdout Style = "stdout"
	// StyleStderr marks process stderr and user-facing errors.
	StyleStderr Style = "stderr"
	// StyleException marks unexpected failures.
	StyleException Style = "exception"
	// StyleBanner marks the usage banner.
	StyleBanner Style = "banner"
)

// Segment is a styled run of console text.
type Segment struct {
	Text  string `json:"text"`
	Style Style  `json:"style"`
}
