// Package workspace models named projects of files, filtered folders and
// logical folders, persisted as XML.
package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"pkt.systems/conch/internal/ignorefile"
	"pkt.systems/conch/schema"
)

// Entry is a node in a project tree.
type Entry interface {
	// Label is the text shown for the entry.
	Label() string
	isEntry()
}

// FileEntry references a single file.
type FileEntry struct {
	Path string
}

// FolderEntry references a directory filtered by include globs and
// gitignore-style exclude patterns.
type FolderEntry struct {
	Path        string
	DisplayName string
	Include     []string
	Exclude     []string
}

// LogicalFolderEntry groups entries under a name without touching disk.
type LogicalFolderEntry struct {
	Name    string
	Entries []Entry
}

func (FileEntry) isEntry()          {}
func (FolderEntry) isEntry()        {}
func (LogicalFolderEntry) isEntry() {}

// Label returns the file base name.
func (e FileEntry) Label() string { return filepath.Base(e.Path) }

// Label returns the display name or the folder base name.
func (e FolderEntry) Label() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return filepath.Base(e.Path)
}

// Label returns the folder name.
func (e LogicalFolderEntry) Label() string { return e.Name }

// Project is a named list of entries.
type Project struct {
	Name    string
	Entries []Entry
}

// Workspace is a named list of projects.
type Workspace struct {
	Name     string
	Projects []*Project
}

// New returns an empty workspace.
func New(name string) *Workspace {
	return &Workspace{Name: name}
}

// Project returns the project called name.
func (w *Workspace) Project(name string) (*Project, bool) {
	for _, p := range w.Projects {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// AddProject appends an empty project.
func (w *Workspace) AddProject(name string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name required", schema.ErrInvalidRequest)
	}
	if _, ok := w.Project(name); ok {
		return nil, fmt.Errorf("%w: %s", schema.ErrProjectExists, name)
	}
	p := &Project{Name: name}
	w.Projects = append(w.Projects, p)
	return p, nil
}

// RemoveProject deletes the project called name.
func (w *Workspace) RemoveProject(name string) error {
	for i, p := range w.Projects {
		if p.Name == name {
			w.Projects = append(w.Projects[:i], w.Projects[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", schema.ErrUnknownProject, name)
}

// Add appends entry to the project.
func (p *Project) Add(entry Entry) {
	p.Entries = append(p.Entries, entry)
}

// Remove deletes every file or folder entry referencing path, descending
// into logical folders. It reports whether anything was removed.
func (p *Project) Remove(path string) bool {
	var removed bool
	p.Entries, removed = removeEntries(p.Entries, filepath.Clean(path))
	return removed
}

func removeEntries(entries []Entry, path string) ([]Entry, bool) {
	out := entries[:0]
	removed := false
	for _, entry := range entries {
		switch e := entry.(type) {
		case FileEntry:
			if filepath.Clean(e.Path) == path {
				removed = true
				continue
			}
		case FolderEntry:
			if filepath.Clean(e.Path) == path {
				removed = true
				continue
			}
		case LogicalFolderEntry:
			var inner bool
			e.Entries, inner = removeEntries(e.Entries, path)
			removed = removed || inner
			entry = e
		}
		out = append(out, entry)
	}
	return out, removed
}

// Files lists every file reachable from the project, in entry order.
func (p *Project) Files(ctx context.Context) ([]string, error) {
	return collectFiles(ctx, p.Entries)
}

func collectFiles(ctx context.Context, entries []Entry) ([]string, error) {
	var out []string
	for _, entry := range entries {
		switch e := entry.(type) {
		case FileEntry:
			out = append(out, e.Path)
		case FolderEntry:
			files, err := e.Files(ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, files...)
		case LogicalFolderEntry:
			files, err := collectFiles(ctx, e.Entries)
			if err != nil {
				return nil, err
			}
			out = append(out, files...)
		}
	}
	return out, nil
}

// EntryForPath returns a FileEntry or FolderEntry depending on what path is.
func EntryForPath(path string) (Entry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", schema.ErrFileNotFound, path)
	}
	if info.IsDir() {
		return FolderEntry{Path: abs}, nil
	}
	return FileEntry{Path: abs}, nil
}

// Files walks the folder and returns matching regular files, sorted.
func (e FolderEntry) Files(ctx context.Context) ([]string, error) {
	exclude := ignorefile.Load(e.Path, e.Exclude...)
	var out []string
	err := filepath.WalkDir(e.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, relErr := filepath.Rel(e.Path, path)
		if relErr != nil {
			return relErr
		}
		if exclude.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !matchesInclude(e.Include, d.Name()) {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func matchesInclude(patterns []string, name string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// SortEntries orders entries by label using locale-aware collation:
// logical folders first, then folders, then files.
func SortEntries(entries []Entry, tag language.Tag) {
	c := collate.New(tag, collate.IgnoreCase)
	rank := func(e Entry) int {
		switch e.(type) {
		case LogicalFolderEntry:
			return 0
		case FolderEntry:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		ri, rj := rank(entries[i]), rank(entries[j])
		if ri != rj {
			return ri < rj
		}
		return c.CompareString(entries[i].Label(), entries[j].Label()) < 0
	})
	for _, entry := range entries {
		if lf, ok := entry.(LogicalFolderEntry); ok {
			SortEntries(lf.Entries, tag)
		}
	}
}
