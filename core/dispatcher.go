package core

import (
	"context"

	"pkt.systems/conch/schema"
)

// Dispatcher intercepts built-in commands. Dispatch reports whether line was
// handled; unhandled lines run as external processes.
type Dispatcher interface {
	Dispatch(ctx context.Context, shell Shell, line string) (bool, error)
}

// Shell is the console surface visible to built-in commands.
type Shell interface {
	ID() schema.ConsoleID
	Append(text string, style schema.Style)
	AppendLines(style schema.Style, lines ...string)
	Clear()
	WorkingDir() string
	ChangeDir(target string) (string, error)
	History() []string
	Host() Host
	Theme() schema.ThemeName
	SetTheme(theme schema.ThemeName) error
}
