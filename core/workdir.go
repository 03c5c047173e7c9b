package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/conch/schema"
)

// workingDir tracks the console's current and previous directory. Both are
// canonical absolute paths.
type workingDir struct {
	current  string
	previous string
	home     func() (string, error)
}

func newWorkingDir(start string) (*workingDir, error) {
	if strings.TrimSpace(start) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("working directory: %w", err)
		}
		start = wd
	}
	w := &workingDir{home: os.UserHomeDir}
	resolved, err := w.resolve(start)
	if err != nil {
		return nil, err
	}
	canonical, err := canonicalDir(resolved, start)
	if err != nil {
		return nil, err
	}
	w.current = canonical
	return w, nil
}

// Current returns the current directory.
func (w *workingDir) Current() string {
	return w.current
}

// Previous returns the directory before the last change, or "".
func (w *workingDir) Previous() string {
	return w.previous
}

// Change resolves target against the current directory and switches to it.
// The previous directory is updated only on success.
func (w *workingDir) Change(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "-" {
		if w.previous == "" {
			return "", schema.ErrNoPreviousDir
		}
		target = w.previous
	}
	resolved, err := w.resolve(target)
	if err != nil {
		return "", err
	}
	canonical, err := canonicalDir(resolved, target)
	if err != nil {
		return "", err
	}
	w.previous, w.current = w.current, canonical
	return canonical, nil
}

func (w *workingDir) resolve(target string) (string, error) {
	switch {
	case target == "~" || strings.HasPrefix(target, "~/") || strings.HasPrefix(target, `~\`):
		home, err := w.home()
		if err != nil {
			return "", fmt.Errorf("home directory: %w", err)
		}
		return filepath.Join(home, target[1:]), nil
	case target == "/" || target == `\`:
		return filepath.VolumeName(w.current) + string(filepath.Separator), nil
	case filepath.IsAbs(target):
		return target, nil
	case w.current == "":
		return filepath.Abs(target)
	default:
		return filepath.Join(w.current, target), nil
	}
}

func canonicalDir(path, display string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", schema.ErrDirDoesNotExist, display)
		}
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", schema.ErrNotADirectory, display)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return filepath.Clean(resolved), nil
}
