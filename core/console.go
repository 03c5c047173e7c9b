package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"pkt.systems/conch/schema"
	"pkt.systems/pslog"
)

// Console is an interactive shell bound to a document buffer. All state is
// guarded by mu; long-running work happens on goroutines that re-acquire it.
type Console struct {
	id     schema.ConsoleID
	cfg    schema.ConsoleConfig
	deps   ConsoleDeps
	logger pslog.Logger

	mu       sync.Mutex
	buf      *buffer
	history  *historyBuffer
	dir      *workingDir
	state    schema.ConsoleState
	editable bool
	theme    schema.ThemeName
	run      *activeRun
	closed   bool

	// cancels the context handed to a running built-in
	dispatchCancel  context.CancelFunc
	dispatchStopped bool
}

// NewConsole constructs a console, prints the banner and the first prompt.
func NewConsole(cfg schema.ConsoleConfig, deps ConsoleDeps) (*Console, error) {
	return NewConsoleWithID(newConsoleID(), cfg, deps)
}

// NewConsoleWithID constructs a console with a caller-chosen identifier.
func NewConsoleWithID(id schema.ConsoleID, cfg schema.ConsoleConfig, deps ConsoleDeps) (*Console, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, fmt.Errorf("%w: console id required", schema.ErrInvalidRequest)
	}
	cfg = schema.NormalizeConsoleConfig(cfg)
	theme, ok := schema.NormalizeThemeName(string(cfg.Theme))
	if !ok {
		return nil, fmt.Errorf("%w: %s", schema.ErrUnknownTheme, cfg.Theme)
	}
	dir, err := newWorkingDir(cfg.StartDir)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	c := &Console{
		id:       id,
		cfg:      cfg,
		deps:     deps,
		logger:   logger.With("console", id),
		buf:      newBufferWithMaxLines(cfg.BufferMaxLines),
		history:  newHistory(cfg.HistoryMax),
		dir:      dir,
		state:    schema.StateIdle,
		editable: true,
		theme:    theme,
	}
	c.mu.Lock()
	c.printBannerLocked()
	c.promptLocked()
	c.mu.Unlock()
	c.logger.Info("console created", "workdir", dir.Current(), "theme", theme)
	return c, nil
}

// ID returns the console identifier.
func (c *Console) ID() schema.ConsoleID {
	return c.id
}

// Host returns the embedding editor, which may be nil.
func (c *Console) Host() Host {
	return c.deps.Host
}

// Append writes a line of output to the frozen region.
func (c *Console) Append(text string, style schema.Style) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLocked(text, style)
}

// AppendLines writes each line with the same style.
func (c *Console) AppendLines(style schema.Style, lines ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, line := range lines {
		c.appendLocked(line, style)
	}
}

// PrintError writes err in the error style.
func (c *Console) PrintError(err error) {
	if err == nil {
		return
	}
	c.Append(err.Error(), schema.StyleStderr)
}

// PrintException writes err and its causes in the exception style.
func (c *Console) PrintException(err error) {
	if err == nil {
		return
	}
	c.AppendLines(schema.StyleException, exceptionLines(err)...)
}

// Prompt prints the prompt for the current directory.
func (c *Console) Prompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.promptLocked()
}

// Clear empties the buffer and reprints the banner.
func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Clear()
	c.emitLocked(schema.ConsoleEvent{Type: schema.EventClear})
	c.printBannerLocked()
}

// ClearScreen clears the buffer and, when idle, prints a fresh prompt.
func (c *Console) ClearScreen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Clear()
	c.emitLocked(schema.ConsoleEvent{Type: schema.EventClear})
	c.printBannerLocked()
	if c.state == schema.StateIdle {
		c.promptLocked()
	}
}

// WorkingDir returns the current directory.
func (c *Console) WorkingDir() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dir.Current()
}

// PreviousDir returns the directory "cd -" would switch to.
func (c *Console) PreviousDir() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dir.Previous()
}

// ChangeDir switches the working directory.
func (c *Console) ChangeDir(target string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dir, err := c.dir.Change(target)
	if err != nil {
		c.logger.Debug("console cd failed", "target", target, "err", err)
		return "", err
	}
	c.logger.Debug("console cd", "workdir", dir)
	return dir, nil
}

// History returns submitted lines, oldest first.
func (c *Console) History() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Entries()
}

// Theme returns the active theme.
func (c *Console) Theme() schema.ThemeName {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theme
}

// SetTheme switches the theme and notifies frontends.
func (c *Console) SetTheme(theme schema.ThemeName) error {
	normalized, ok := schema.NormalizeThemeName(string(theme))
	if !ok {
		return fmt.Errorf("%w: %s", schema.ErrUnknownTheme, theme)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.theme = normalized
	c.emitLocked(schema.ConsoleEvent{Type: schema.EventTheme, Theme: normalized})
	return nil
}

// State returns the lifecycle state.
func (c *Console) State() schema.ConsoleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Input returns the editable tail.
func (c *Console) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Input()
}

// Snapshot returns the console state for rendering.
func (c *Console) Snapshot() schema.ConsoleSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return schema.ConsoleSnapshot{
		ID:         c.id,
		State:      c.state,
		Editable:   c.editable,
		WorkingDir: c.dir.Current(),
		Theme:      c.theme,
		Buffer:     c.buf.Snapshot(),
	}
}

// InsertText types text at the caret.
func (c *Console) InsertText(text string) error {
	return c.edit("insert", func(b *buffer) error { return b.InsertText(text) })
}

// ReplaceSelection replaces the range [start,end) with text.
func (c *Console) ReplaceSelection(start, end int, text string) error {
	return c.edit("replace", func(b *buffer) error { return b.ReplaceSelection(start, end, text) })
}

// Backspace removes the rune before the caret.
func (c *Console) Backspace() error {
	return c.edit("backspace", func(b *buffer) error { return b.Backspace() })
}

// Delete removes the rune after the caret.
func (c *Console) Delete() error {
	return c.edit("delete", func(b *buffer) error { return b.Delete() })
}

// SetInput replaces the editable tail.
func (c *Console) SetInput(text string) error {
	return c.edit("set input", func(b *buffer) error {
		b.SetInput(text)
		return nil
	})
}

// MoveCaret moves the caret by delta runes.
func (c *Console) MoveCaret(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.buf.MoveCaret(delta) {
		c.emitLocked(schema.ConsoleEvent{Type: schema.EventBell})
	}
}

// MoveCaretHome moves the caret to the start of the input.
func (c *Console) MoveCaretHome() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.buf.SetCaret(c.buf.Boundary())
}

// MoveCaretEnd moves the caret to the end of the document.
func (c *Console) MoveCaretEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.buf.SetCaret(c.buf.Len())
}

// SetCaret places the caret at offset inside the input. Offsets in frozen
// output fail with schema.ErrReadOnlyRegion.
func (c *Console) SetCaret(offset int) error {
	return c.edit("caret", func(b *buffer) error {
		return b.SetCaret(offset)
	})
}

// RecallHistory replaces the input with an older (-1) or newer (+1) entry.
func (c *Console) RecallHistory(direction int) error {
	return c.edit("history", func(b *buffer) error {
		entry, err := c.history.Recall(direction)
		if err != nil {
			return err
		}
		b.SetInput(entry)
		return nil
	})
}

func (c *Console) edit(op string, fn func(*buffer) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return schema.ErrConsoleClosed
	}
	if !c.editable {
		c.emitLocked(schema.ConsoleEvent{Type: schema.EventBell})
		return schema.ErrConsoleBusy
	}
	if err := fn(c.buf); err != nil {
		c.logger.Trace("console edit rejected", "op", op, "err", err)
		c.emitLocked(schema.ConsoleEvent{Type: schema.EventBell})
		return err
	}
	c.emitLocked(schema.ConsoleEvent{Type: schema.EventInput, Segments: c.buf.InputSegments()})
	return nil
}

// Close stops any running process and rejects further input.
func (c *Console) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.editable = false
	run := c.run
	c.mu.Unlock()
	if run != nil {
		run.kill()
	}
	c.logger.Info("console closed")
	return nil
}

func (c *Console) appendLocked(text string, style schema.Style) {
	written := c.buf.Append(text, style)
	c.emitLocked(schema.ConsoleEvent{
		Type:     schema.EventAppend,
		Segments: []schema.Segment{{Text: written, Style: style}},
	})
}

func (c *Console) printBannerLocked() {
	for _, line := range c.cfg.Banner {
		c.appendLocked(line, schema.StyleBanner)
	}
}

func (c *Console) promptLocked() {
	prompt := expandPrompt(c.cfg.Prompt, c.dir.Current())
	c.buf.AppendPrompt(prompt)
	c.emitLocked(schema.ConsoleEvent{
		Type:     schema.EventPrompt,
		Segments: []schema.Segment{{Text: prompt, Style: schema.StylePrompt}},
	})
}

func (c *Console) setStateLocked(state schema.ConsoleState, editable bool) {
	c.state = state
	c.editable = editable && !c.closed
	c.emitLocked(schema.ConsoleEvent{Type: schema.EventState, State: state, Editable: c.editable})
}

func (c *Console) emitLocked(event schema.ConsoleEvent) {
	if c.deps.EventSink == nil {
		return
	}
	event.ConsoleID = c.id
	c.deps.EventSink.OnConsoleEvent(event)
}

func expandPrompt(template, dir string) string {
	base := filepath.Base(dir)
	replacer := strings.NewReplacer("{dir}", dir, "{base}", base)
	return replacer.Replace(template)
}

func exceptionLines(err error) []string {
	var pe *panicError
	if errors.As(err, &pe) {
		lines := []string{pe.Error()}
		for _, line := range strings.Split(strings.TrimRight(string(pe.stack), "\n"), "\n") {
			lines = append(lines, "    "+strings.TrimLeft(line, "\t"))
		}
		return lines
	}
	lines := []string{err.Error()}
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		lines = append(lines, "caused by: "+cause.Error())
	}
	return lines
}
