package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrConsoleBusy indicates a process is already running in the console.
	ErrConsoleBusy = errors.New("console is busy")
	// ErrConsoleClosed indicates the console was closed.
	ErrConsoleClosed = errors.New("console is closed")
	// ErrReadOnlyRegion indicates an edit touched already emitted output.
	ErrReadOnlyRegion = errors.New("read-only region")
	// ErrInvalidOffset indicates an offset outside the document.
	ErrInvalidOffset = errors.New("invalid offset")
	// ErrHistoryBounds indicates a recall past the oldest or newest entry.
	ErrHistoryBounds = errors.New("no more history")
	// ErrDirDoesNotExist indicates a cd target that does not exist.
	ErrDirDoesNotExist = errors.New("directory does not exist")
	// ErrNoPreviousDir indicates "cd -" before any directory change.
	ErrNoPreviousDir = errors.New("no previous directory")
	// ErrNotADirectory indicates a cd target that is not a directory.
	ErrNotADirectory = errors.New("not a directory")
	// ErrIncorrectParamCount indicates a built-in called with the wrong arguments.
	ErrIncorrectParamCount = errors.New("incorrect parameter count")
	// ErrFileNotFound indicates an open target that is not a regular file.
	ErrFileNotFound = errors.New("file not found")
	// ErrRunnerUnavailable indicates no runner is configured.
	ErrRunnerUnavailable = errors.New("runner not configured")
	// ErrProcessTerminated indicates the running process was interrupted.
	ErrProcessTerminated = errors.New("process forcibly terminated")
	// ErrUnknownMacro indicates a macro name that is not registered.
	ErrUnknownMacro = errors.New("unknown macro")
	// ErrUnknownProject indicates a project name that is not in the workspace.
	ErrUnknownProject = errors.New("unknown project")
	// ErrProjectExists indicates a duplicate project name.
	ErrProjectExists = errors.New("project already exists")
	// ErrUnsupportedFormat indicates a file type tidy cannot format.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrUnknownTheme indicates an unsupported theme name.
	ErrUnknownTheme = errors.New("unknown theme")
)
