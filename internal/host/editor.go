// Package host implements the editor side of a console: opening files,
// tracking the current file and keeping the recent files list.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"pkt.systems/conch/core"
	"pkt.systems/conch/internal/prefs"
	"pkt.systems/conch/internal/sessionprefs"
	"pkt.systems/conch/schema"
	"pkt.systems/pslog"
)

// FilePlaceholder is replaced by the quoted file path in OpenCommand.
const FilePlaceholder = "{file}"

// Config configures an Editor.
type Config struct {
	// Profile is used when the request context carries no session profile.
	Profile string
	// OpenCommand, when set, is run through the runner for every opened
	// file. Without FilePlaceholder the quoted path is appended.
	OpenCommand string
	RecentMax   int
}

// Editor implements core.Host.
type Editor struct {
	cfg    Config
	prefs  *prefs.Store
	runner core.Runner
	log    pslog.Logger

	mu      sync.Mutex
	current string
}

// NewEditor constructs an editor host. prefs and runner may be nil.
func NewEditor(cfg Config, store *prefs.Store, runner core.Runner, logger pslog.Logger) *Editor {
	if cfg.RecentMax <= 0 {
		cfg.RecentMax = prefs.DefaultRecentMax
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Editor{cfg: cfg, prefs: store, runner: runner, log: logger.With("component", "host")}
}

// OpenFile makes path the current file.
func (e *Editor) OpenFile(ctx context.Context, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", schema.ErrFileNotFound, path)
	}
	profile := sessionprefs.ProfileFromContext(ctx, e.cfg.Profile)
	log := e.log.With("path", path, "profile", profile)

	e.mu.Lock()
	e.current = path
	e.mu.Unlock()

	if e.prefs != nil {
		if err := e.prefs.RecordRecent(profile, path, e.cfg.RecentMax); err != nil {
			log.Warn("host recent files update failed", "err", err)
		}
	}
	if strings.TrimSpace(e.cfg.OpenCommand) != "" {
		if err := e.launch(ctx, log, path); err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
	}
	log.Info("host file opened")
	return nil
}

// CurrentFile returns the most recently opened file.
func (e *Editor) CurrentFile() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// ReportError logs err against the session that raised it.
func (e *Editor) ReportError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	e.log.With("profile", sessionprefs.ProfileFromContext(ctx, e.cfg.Profile)).Warn("host error reported", "err", err)
}

// Recent returns the recent files of the session profile, newest first.
func (e *Editor) Recent(ctx context.Context) ([]string, error) {
	if e.prefs == nil {
		return nil, nil
	}
	p, _, err := e.prefs.Load(sessionprefs.ProfileFromContext(ctx, e.cfg.Profile))
	if err != nil {
		return nil, err
	}
	return p.RecentFiles, nil
}

// SaveTheme persists theme for the session profile.
func (e *Editor) SaveTheme(ctx context.Context, theme schema.ThemeName) error {
	if e.prefs == nil {
		return nil
	}
	return e.prefs.SetTheme(sessionprefs.ProfileFromContext(ctx, e.cfg.Profile), theme)
}

// SavedTheme returns the persisted theme of the session profile.
func (e *Editor) SavedTheme(ctx context.Context) (schema.ThemeName, bool) {
	if e.prefs == nil {
		return "", false
	}
	p, ok, err := e.prefs.Load(sessionprefs.ProfileFromContext(ctx, e.cfg.Profile))
	if err != nil || !ok || p.Theme == "" {
		return "", false
	}
	return p.Theme, true
}

func (e *Editor) launch(ctx context.Context, log pslog.Logger, path string) error {
	if e.runner == nil {
		return schema.ErrRunnerUnavailable
	}
	command := OpenCommandLine(runtime.GOOS, e.cfg.OpenCommand, path)
	log.Debug("host open command", "command", command)
	handle, err := e.runner.RunCommand(ctx, core.RunCommandRequest{Command: command, UseShell: true})
	if err != nil {
		return err
	}
	defer func() { _ = handle.Close() }()
	stream := handle.Outputs()
	for {
		out, err := stream.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("host open command output failed", "err", err)
			}
			break
		}
		log.Debug("host open command output", "stream", out.Stream, "text", out.Text)
	}
	result, err := handle.Wait(ctx)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("open command exited with status %d", result.ExitCode)
	}
	return nil
}

// OpenCommandLine substitutes the quoted path into template.
func OpenCommandLine(goos, template, path string) string {
	quoted := core.ShellQuote(path)
	if goos == "windows" {
		quoted = `"` + path + `"`
	}
	if strings.Contains(template, FilePlaceholder) {
		return strings.ReplaceAll(template, FilePlaceholder, quoted)
	}
	return strings.TrimSpace(template) + " " + quoted
}
