// Package consoles builds fully wired consoles for frontends: one console
// per terminal, SSH session or websocket connection.
package consoles

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/conch/core"
	"pkt.systems/conch/internal/command"
	"pkt.systems/conch/internal/eventbus"
	"pkt.systems/conch/internal/host"
	"pkt.systems/conch/internal/logx"
	"pkt.systems/conch/internal/macro"
	"pkt.systems/conch/internal/prefs"
	"pkt.systems/conch/internal/sessionprefs"
	"pkt.systems/conch/internal/workspace"
	"pkt.systems/conch/schema"
	"pkt.systems/pslog"
)

// Config configures every console a Factory opens.
type Config struct {
	Console             schema.ConsoleConfig
	Host                host.Config
	TreeDepth           int
	DisableAuditLogging bool
}

// Deps carries the shared services consoles are wired to. Runner is
// required; the stores are optional.
type Deps struct {
	Runner    core.Runner
	Workspace *workspace.Store
	Macros    *macro.Manager
	Prefs     *prefs.Store
	// EventSink receives the events of every console next to the bus.
	EventSink core.EventSink
	Logger    pslog.Logger
}

// Factory opens consoles.
type Factory struct {
	cfg  Config
	deps Deps
	bus  *eventbus.Bus
	sink core.EventSink

	mu   sync.Mutex
	open map[schema.ConsoleID]*Session
}

// NewFactory constructs a factory.
func NewFactory(cfg Config, deps Deps) (*Factory, error) {
	if deps.Runner == nil {
		return nil, schema.ErrRunnerUnavailable
	}
	if deps.Logger == nil {
		deps.Logger = pslog.Ctx(context.Background())
	}
	bus := eventbus.New(deps.Logger)
	var sink core.EventSink = bus
	if deps.EventSink != nil {
		sink = eventFanout{sinks: []core.EventSink{bus, deps.EventSink}}
	}
	return &Factory{
		cfg:  cfg,
		deps: deps,
		bus:  bus,
		sink: sink,
		open: make(map[schema.ConsoleID]*Session),
	}, nil
}

// Bus returns the event bus all consoles publish to.
func (f *Factory) Bus() *eventbus.Bus {
	return f.bus
}

// Session is an opened console with its event subscription.
type Session struct {
	Console *core.Console
	Editor  *host.Editor
	// Events delivers the console's events until Close.
	Events <-chan schema.ConsoleEvent

	ctx         context.Context
	unsubscribe func()
	factory     *Factory
	closeOnce   sync.Once
}

// Context returns the session context: it carries the session logger and
// preferences and should be passed to Submit.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Close stops the console and releases the subscription.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		err = s.Console.Close()
		if s.factory != nil {
			s.factory.forget(s.Console.ID())
		}
	})
	return err
}

// Open builds a console for the session described by ctx. The profile and
// frontend come from sessionprefs; the console's theme is the profile's
// saved theme when there is one.
func (f *Factory) Open(ctx context.Context) (*Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	frontend := "local"
	if p := sessionprefs.FromContext(ctx); p != nil && p.Frontend != "" {
		frontend = p.Frontend
	}
	log := pslog.Ctx(ctx).With("frontend", frontend)

	editor := host.NewEditor(f.cfg.Host, f.deps.Prefs, f.deps.Runner, log)
	handlerCfg := command.HandlerConfig{
		Preferences:         editor,
		TreeDepth:           f.cfg.TreeDepth,
		DisableAuditLogging: f.cfg.DisableAuditLogging || f.cfg.Console.DisableAuditLogging,
	}
	if f.deps.Workspace != nil {
		handlerCfg.Workspace = f.deps.Workspace
	}
	if f.deps.Macros != nil {
		handlerCfg.Macros = f.deps.Macros
	}

	consoleCfg := f.cfg.Console
	if theme, ok := editor.SavedTheme(ctx); ok {
		consoleCfg.Theme = theme
	}
	console, err := core.NewConsole(consoleCfg, core.ConsoleDeps{
		Runner:     f.deps.Runner,
		Dispatcher: command.NewHandler(handlerCfg),
		Host:       editor,
		EventSink:  f.sink,
		Logger:     log,
	})
	if err != nil {
		log.Warn("console open failed", "err", err)
		return nil, err
	}
	events, unsubscribe := f.bus.Subscribe(console.ID())
	s := &Session{
		Console:     console,
		Editor:      editor,
		Events:      events,
		ctx:         logx.ContextWithConsoleLogger(ctx, log, console.ID()),
		unsubscribe: unsubscribe,
		factory:     f,
	}
	f.mu.Lock()
	f.open[console.ID()] = s
	f.mu.Unlock()
	log.Info("console session opened", "console", console.ID())
	return s, nil
}

// Lookup returns an open session by console id.
func (f *Factory) Lookup(id schema.ConsoleID) (*Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.open[id]
	return s, ok
}

// CloseAll closes every open session.
func (f *Factory) CloseAll() error {
	f.mu.Lock()
	sessions := make([]*Session, 0, len(f.open))
	for _, s := range f.open {
		sessions = append(sessions, s)
	}
	f.mu.Unlock()
	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Factory) forget(id schema.ConsoleID) {
	f.mu.Lock()
	delete(f.open, id)
	f.mu.Unlock()
}
