package core

import (
	"context"
	"fmt"
	"strings"
)

// Runner starts external commands and exposes their output stream.
type Runner interface {
	RunCommand(ctx context.Context, req RunCommandRequest) (CommandHandle, error)
}

// RunCommandRequest describes an external command invocation.
type RunCommandRequest struct {
	WorkingDir string
	Command    string
	UseShell   bool
	Env        []string
}

// RunResult describes the process outcome.
type RunResult struct {
	ExitCode int
}

// CommandStreamKind indicates which stream produced output.
type CommandStreamKind string

const (
	// CommandStreamStdout indicates output captured from stdout.
	CommandStreamStdout CommandStreamKind = "stdout"
	// CommandStreamStderr indicates output captured from stderr.
	CommandStreamStderr CommandStreamKind = "stderr"
)

// CommandOutput captures a line of output from a command.
type CommandOutput struct {
	Stream CommandStreamKind
	Text   string
}

// CommandStream yields command output lines in arrival order. Next returns
// io.EOF once both streams are drained.
type CommandStream interface {
	Next(ctx context.Context) (CommandOutput, error)
	Close() error
}

// CommandHandle exposes output and lifecycle controls for a command.
type CommandHandle interface {
	Outputs() CommandStream
	Signal(ctx context.Context, sig ProcessSignal) error
	Wait(ctx context.Context) (RunResult, error)
	Close() error
}

// ProcessSignal indicates which signal to send to the process.
type ProcessSignal string

const (
	// ProcessSignalHUP requests a hangup signal.
	ProcessSignalHUP ProcessSignal = "HUP"
	// ProcessSignalTERM requests a termination signal.
	ProcessSignalTERM ProcessSignal = "TERM"
	// ProcessSignalKILL requests an immediate kill signal.
	ProcessSignalKILL ProcessSignal = "KILL"
)

// ShellCommandLine prefixes line with a directory change so the platform
// shell starts in dir.
func ShellCommandLine(goos, dir, line string) string {
	if goos == "windows" {
		return fmt.Sprintf(`cd /d "%s" && %s`, dir, line)
	}
	return "cd " + ShellQuote(dir) + " && " + line
}

// ShellQuote single-quotes value for a POSIX shell.
func ShellQuote(value string) string {
	if value == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}
