package prefs

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"pkt.systems/conch/internal/atomicfile"
	"pkt.systems/conch/schema"
	"pkt.systems/pslog"
)

// DefaultRecentMax bounds the recent files list.
const DefaultRecentMax = 20

// Profile holds the preferences of one frontend profile.
type Profile struct {
	Theme       schema.ThemeName `json:"theme,omitempty"`
	RecentFiles []string         `json:"recent_files,omitempty"`
}

// Store persists profiles as JSON files in a directory.
type Store struct {
	dir string
	log pslog.Logger
	mu  sync.Mutex
}

// NewStore constructs a preferences store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a preferences store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Load reads a profile. A missing file yields an empty profile and ok=false.
func (s *Store) Load(profile string) (Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(profile)
}

// Save writes a profile.
func (s *Store) Save(profile string, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(profile, p)
}

// Update applies fn to the stored profile and saves the result.
func (s *Store) Update(profile string, fn func(*Profile)) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, _, err := s.load(profile)
	if err != nil {
		return Profile{}, err
	}
	fn(&p)
	if err := s.save(profile, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// RecordRecent moves path to the front of the recent files list.
func (s *Store) RecordRecent(profile, path string, max int) error {
	if max <= 0 {
		max = DefaultRecentMax
	}
	_, err := s.Update(profile, func(p *Profile) {
		p.RecentFiles = pushRecent(p.RecentFiles, path, max)
	})
	return err
}

// SetTheme persists the theme for profile.
func (s *Store) SetTheme(profile string, theme schema.ThemeName) error {
	_, err := s.Update(profile, func(p *Profile) {
		p.Theme = theme
	})
	return err
}

func (s *Store) load(profile string) (Profile, bool, error) {
	path := s.pathForProfile(profile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.debug("prefs load miss", "profile", profile)
			return Profile{}, false, nil
		}
		s.warn("prefs load failed", "profile", profile, "err", err)
		return Profile{}, false, err
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		s.warn("prefs load failed", "profile", profile, "err", err)
		return Profile{}, false, err
	}
	s.debug("prefs load ok", "profile", profile, "recent", len(p.RecentFiles))
	return p, true, nil
}

func (s *Store) save(profile string, p Profile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		s.warn("prefs save failed", "profile", profile, "err", err)
		return err
	}
	if err := atomicfile.Write(s.pathForProfile(profile), data, 0o600); err != nil {
		s.warn("prefs save failed", "profile", profile, "err", err)
		return err
	}
	if s.log != nil {
		s.log.Trace("prefs save ok", "profile", profile)
	}
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

func (s *Store) pathForProfile(profile string) string {
	name := sanitize(profile)
	if name == "" {
		name = "default"
	}
	return filepath.Join(s.dir, name+".json")
}

func pushRecent(list []string, path string, max int) []string {
	out := make([]string, 0, len(list)+1)
	out = append(out, path)
	for _, entry := range list {
		if entry == path {
			continue
		}
		out = append(out, entry)
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
