// Package macro loads named scripts from a macro directory and evaluates
// them with a script engine chosen by file extension.
package macro

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
	"pkt.systems/conch/internal/atomicfile"
	"pkt.systems/conch/schema"
	"pkt.systems/pslog"
)

// IndexFile is the name of the macro index inside the macro directory.
const IndexFile = "macros.yaml"

// Macro describes a registered script.
type Macro struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	File        string `yaml:"file"`
}

type index struct {
	Macros []Macro `yaml:"macros"`
}

// Output receives lines produced by a macro.
type Output interface {
	Stdout(line string)
	Stderr(line string)
}

// Engine evaluates macro source.
type Engine interface {
	Evaluate(ctx context.Context, source string, bindings map[string]string, out Output) error
}

// Manager owns the macro index.
type Manager struct {
	dir     string
	engines map[string]Engine
	log     pslog.Logger

	mu     sync.Mutex
	macros []Macro
}

// NewManager constructs a manager for dir. engines maps file extensions
// (".sh", ".lisp") to engines.
func NewManager(dir string, engines map[string]Engine, logger pslog.Logger) *Manager {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Manager{
		dir:     dir,
		engines: engines,
		log:     logger.With("macro_dir", dir),
	}
}

// Dir returns the macro directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Load reads the index. A missing index yields no macros.
func (m *Manager) Load() error {
	data, err := os.ReadFile(filepath.Join(m.dir, IndexFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.mu.Lock()
			m.macros = nil
			m.mu.Unlock()
			m.log.Debug("macro index missing")
			return nil
		}
		return err
	}
	var idx index
	if err := yaml.Unmarshal(data, &idx); err != nil {
		m.log.Warn("macro index invalid", "err", err)
		return fmt.Errorf("macro index: %w", err)
	}
	m.mu.Lock()
	m.macros = idx.Macros
	m.mu.Unlock()
	m.log.Debug("macro index loaded", "count", len(idx.Macros))
	return nil
}

// Save writes the index.
func (m *Manager) Save() error {
	m.mu.Lock()
	idx := index{Macros: append([]Macro(nil), m.macros...)}
	m.mu.Unlock()
	data, err := yaml.Marshal(idx)
	if err != nil {
		return err
	}
	return atomicfile.Write(filepath.Join(m.dir, IndexFile), data, 0o644)
}

// List returns the macros sorted by name.
func (m *Manager) List() []Macro {
	m.mu.Lock()
	out := append([]Macro(nil), m.macros...)
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the macro called name.
func (m *Manager) Get(name string) (Macro, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, macro := range m.macros {
		if macro.Name == name {
			return macro, true
		}
	}
	return Macro{}, false
}

// Add registers a macro.
func (m *Manager) Add(macro Macro) error {
	if strings.TrimSpace(macro.Name) == "" || strings.TrimSpace(macro.File) == "" {
		return fmt.Errorf("%w: macro name and file required", schema.ErrInvalidRequest)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.macros {
		if existing.Name == macro.Name {
			return fmt.Errorf("%w: macro %s already exists", schema.ErrInvalidRequest, macro.Name)
		}
	}
	m.macros = append(m.macros, macro)
	return nil
}

// Remove unregisters a macro.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, macro := range m.macros {
		if macro.Name == name {
			m.macros = append(m.macros[:i], m.macros[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", schema.ErrUnknownMacro, name)
}

// Run evaluates the named macro.
func (m *Manager) Run(ctx context.Context, name string, bindings map[string]string, out Output) error {
	macro, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", schema.ErrUnknownMacro, name)
	}
	path := macro.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.dir, path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	engine, ok := m.engines[ext]
	if !ok {
		return fmt.Errorf("%w: macro engine for %q", schema.ErrUnsupportedFormat, ext)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("macro %s: %w", name, err)
	}
	log := m.log.With("macro", name, "engine", ext)
	log.Info("macro run start")
	if err := engine.Evaluate(ctx, string(source), bindings, out); err != nil {
		log.Warn("macro run failed", "err", err)
		return fmt.Errorf("macro %s: %w", name, err)
	}
	log.Debug("macro run finished")
	return nil
}
