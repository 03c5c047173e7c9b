package core

import "context"

// Host is the editor the console is embedded in.
type Host interface {
	// OpenFile opens path in the editor.
	OpenFile(ctx context.Context, path string) error
	// CurrentFile returns the file being edited, or "" when none.
	CurrentFile() string
	// ReportError surfaces an error outside the console.
	ReportError(ctx context.Context, err error)
}
