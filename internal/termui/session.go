// Package termui drives a console from a raw ANSI terminal: decoded keys
// become console edits and console events trigger repaints.
package termui

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"pkt.systems/conch/schema"
	"pkt.systems/pslog"
)

// Console is the subset of core.Console a terminal session drives.
type Console interface {
	InsertText(text string) error
	Backspace() error
	Delete() error
	SetInput(text string) error
	MoveCaret(delta int)
	MoveCaretHome()
	MoveCaretEnd()
	RecallHistory(direction int) error
	Submit(ctx context.Context) error
	Stop() bool
	ClearScreen()
	Input() string
	State() schema.ConsoleState
	Snapshot() schema.ConsoleSnapshot
}

// Size is a terminal size in cells.
type Size struct {
	Width  int
	Height int
}

// Options configures a Session.
type Options struct {
	Size Size
	// Profile forces a color profile; zero keeps the renderer's detection.
	Profile   *termenv.Profile
	AltScreen bool
}

// Session is one terminal attached to a console.
type Session struct {
	console  Console
	in       io.Reader
	screen   *screen
	renderer *lipgloss.Renderer
	theme    Theme
	events   <-chan schema.ConsoleEvent
	opts     Options

	width  int
	height int
	scroll int
	dirty  bool

	// submitting is set while a Submit runs off the input loop.
	submitting bool
	submitted  chan error
}

// NewSession attaches a terminal to console. events is the console's event
// subscription and may be nil.
func NewSession(console Console, in io.Reader, out io.Writer, events <-chan schema.ConsoleEvent, opts Options) *Session {
	renderer := lipgloss.NewRenderer(out)
	if opts.Profile != nil {
		renderer.SetColorProfile(*opts.Profile)
	}
	s := &Session{
		console:  console,
		in:       in,
		screen:   newScreen(out),
		renderer: renderer,
		events:   events,
		opts:     opts,

		submitted: make(chan error, 1),
	}
	s.theme = NewTheme(renderer, console.Snapshot().Theme)
	s.SetSize(opts.Size.Width, opts.Size.Height)
	return s
}

// SetSize updates the terminal size.
func (s *Session) SetSize(width, height int) {
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	s.width = width
	s.height = height
	s.dirty = true
}

// Run processes input until the reader ends, the user quits or ctx is done.
func (s *Session) Run(ctx context.Context, resize <-chan Size) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := pslog.Ctx(ctx)
	if s.opts.AltScreen {
		s.screen.EnterAltScreen()
		defer s.screen.ExitAltScreen()
	}
	keys := make(chan key, 16)
	go readKeys(s.in, keys)

	log.Info("tui session start", "width", s.width, "height", s.height)
	s.render(log)
	events := s.events
	for {
		select {
		case <-ctx.Done():
			return nil
		case k, ok := <-keys:
			if !ok {
				s.awaitSubmit(log)
				log.Info("tui session input closed")
				return nil
			}
			if s.handleKey(ctx, k) {
				log.Info("tui session quit")
				return nil
			}
		case err := <-s.submitted:
			s.submitDone(log, err)
		case size, ok := <-resize:
			if !ok {
				resize = nil
				break
			}
			s.SetSize(size.Width, size.Height)
			log.Debug("tui resize", "width", s.width, "height", s.height)
		case ev, ok := <-events:
			if !ok {
				events = nil
				break
			}
			s.handleEvent(ev)
		}
		s.drain(&events)
		s.render(log)
	}
}

// drain applies queued events so bursts of output repaint once.
func (s *Session) drain(events *<-chan schema.ConsoleEvent) {
	for *events != nil {
		select {
		case ev, ok := <-*events:
			if !ok {
				*events = nil
				return
			}
			s.handleEvent(ev)
		default:
			return
		}
	}
}

func (s *Session) handleEvent(ev schema.ConsoleEvent) {
	switch ev.Type {
	case schema.EventBell:
		s.screen.Bell()
		return
	case schema.EventTheme:
		s.theme = NewTheme(s.renderer, ev.Theme)
	case schema.EventClear:
		s.scroll = 0
	}
	s.dirty = true
}

// submit runs Submit off the input loop so Ctrl-C can still reach Stop
// while a built-in or macro is dispatching.
func (s *Session) submit(ctx context.Context) {
	s.submitting = true
	go func() {
		s.submitted <- s.console.Submit(ctx)
	}()
}

func (s *Session) submitDone(log pslog.Logger, err error) {
	s.submitting = false
	s.dirty = true
	if err == nil {
		return
	}
	if !errors.Is(err, schema.ErrConsoleBusy) {
		log.Warn("tui submit failed", "err", err)
	}
	s.screen.Bell()
}

func (s *Session) awaitSubmit(log pslog.Logger) {
	if s.submitting {
		s.submitDone(log, <-s.submitted)
	}
}

func (s *Session) handleKey(ctx context.Context, k key) bool {
	c := s.console
	s.dirty = true
	if s.submitting {
		switch k.kind {
		case keyCtrlC, keyPageUp, keyPageDown:
		default:
			s.screen.Bell()
			return false
		}
	}
	switch k.kind {
	case keyRune:
		s.scroll = 0
		_ = c.InsertText(string(k.r))
	case keyTab:
		_ = c.InsertText("\t")
	case keyEnter:
		s.scroll = 0
		s.submit(ctx)
	case keyBackspace:
		_ = c.Backspace()
	case keyDelete:
		_ = c.Delete()
	case keyLeft:
		c.MoveCaret(-1)
	case keyRight:
		c.MoveCaret(1)
	case keyHome, keyCtrlA:
		c.MoveCaretHome()
	case keyEnd, keyCtrlE:
		c.MoveCaretEnd()
	case keyUp:
		_ = c.RecallHistory(-1)
	case keyDown:
		_ = c.RecallHistory(1)
	case keyPageUp:
		s.scroll += s.page()
	case keyPageDown:
		s.scroll -= s.page()
		if s.scroll < 0 {
			s.scroll = 0
		}
	case keyCtrlU:
		_ = c.SetInput("")
	case keyCtrlW:
		_ = c.SetInput(trimLastWord(c.Input()))
	case keyCtrlL:
		c.ClearScreen()
	case keyCtrlC:
		if s.submitting || c.State() != schema.StateIdle {
			c.Stop()
			return false
		}
		_ = c.SetInput("")
	case keyCtrlD:
		if c.Input() == "" && c.State() == schema.StateIdle {
			return true
		}
		_ = c.Delete()
	}
	return false
}

func (s *Session) page() int {
	if s.height > 3 {
		return s.height - 2
	}
	return 1
}

func (s *Session) render(log pslog.Logger) {
	if !s.dirty {
		return
	}
	s.dirty = false
	f, scroll := layout(s.console.Snapshot(), s.theme, s.width, s.height, s.scroll)
	s.scroll = scroll
	if err := s.screen.Render(f); err != nil {
		log.Debug("tui render failed", "err", err)
	}
}

func trimLastWord(input string) string {
	runes := []rune(input)
	i := len(runes)
	for i > 0 && (runes[i-1] == ' ' || runes[i-1] == '\t') {
		i--
	}
	for i > 0 && runes[i-1] != ' ' && runes[i-1] != '\t' {
		i--
	}
	return string(runes[:i])
}
