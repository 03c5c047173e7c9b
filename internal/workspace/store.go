package workspace

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pkt.systems/conch/internal/atomicfile"
	"pkt.systems/pslog"
)

// Store owns a workspace document on disk. Access is serialized; the last
// Save wins.
type Store struct {
	path string
	log  pslog.Logger

	mu sync.Mutex
	ws *Workspace
}

// Open loads the workspace at path. A missing file yields an empty
// workspace named after the file.
func Open(path string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("workspace path is required")
	}
	s := &Store{path: path, log: logger}
	if s.log != nil {
		s.log = s.log.With("workspace_path", path)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.ws = New(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
			s.debug("workspace load miss")
			return s, nil
		}
		return nil, err
	}
	defer f.Close()
	ws, err := Decode(f)
	if err != nil {
		s.warn("workspace load failed", "err", err)
		return nil, err
	}
	s.ws = ws
	s.debug("workspace load ok", "projects", len(ws.Projects))
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// View calls fn with the workspace while holding the lock.
func (s *Store) View(fn func(*Workspace)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.ws)
}

// Update calls fn with the workspace while holding the lock. Changes stay
// in memory until Save.
func (s *Store) Update(fn func(*Workspace) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.ws)
}

// Save writes the workspace atomically.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var buf bytes.Buffer
	if err := Encode(&buf, s.ws); err != nil {
		s.warn("workspace save failed", "err", err)
		return err
	}
	if err := atomicfile.Write(s.path, buf.Bytes(), 0o644); err != nil {
		s.warn("workspace save failed", "err", err)
		return err
	}
	s.debug("workspace save ok", "projects", len(s.ws.Projects))
	return nil
}

func (s *Store) debug(msg string, kv ...any) {
	if s.log != nil {
		s.log.Debug(msg, kv...)
	}
}

func (s *Store) warn(msg string, kv ...any) {
	if s.log != nil {
		s.log.Warn(msg, kv...)
	}
}
