// Package tasks finds TODO style markers in source trees.
package tasks

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"pkt.systems/conch/internal/ignorefile"
	"pkt.systems/pslog"
)

// DefaultMarkers are the markers Scan looks for when none are configured.
var DefaultMarkers = []string{"TODO", "FIXME", "HACK", "XXX"}

const (
	defaultWorkers  = 8
	defaultMaxBytes = 2 << 20
	sniffLen        = 8000
)

// Task is one marker occurrence.
type Task struct {
	File   string
	Line   int
	Marker string
	Text   string
}

func (t Task) String() string {
	return fmt.Sprintf("%s:%d: %s %s", t.File, t.Line, t.Marker, t.Text)
}

// Options tunes a scan.
type Options struct {
	Markers []string
	// Workers bounds the number of files read concurrently.
	Workers int
	// MaxFileBytes skips larger files.
	MaxFileBytes int64
	Exclude      []string
}

// Scan walks root and returns marker occurrences sorted by file then line.
// File paths are relative to root and slash separated.
func Scan(ctx context.Context, root string, opts Options) ([]Task, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan %s: not a directory", root)
	}
	pattern, markers := markerPattern(opts.Markers)
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	maxBytes := opts.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	log := pslog.Ctx(ctx).With("root", root)
	matcher := ignorefile.Load(root, opts.Exclude...)

	var (
		mu    sync.Mutex
		found []Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Debug("tasks walk skipped", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if gctx.Err() != nil {
			return gctx.Err()
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if matcher.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if fi, err := d.Info(); err != nil || fi.Size() > maxBytes {
			return nil
		}
		rel = filepath.ToSlash(rel)
		g.Go(func() error {
			tasks, err := scanFile(gctx, path, rel, pattern)
			if err != nil {
				log.Debug("tasks file skipped", "path", rel, "err", err)
				return nil
			}
			if len(tasks) == 0 {
				return nil
			}
			mu.Lock()
			found = append(found, tasks...)
			mu.Unlock()
			return nil
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, walkErr
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].File != found[j].File {
			return found[i].File < found[j].File
		}
		return found[i].Line < found[j].Line
	})
	log.Debug("tasks scan complete", "markers", markers, "found", len(found))
	return found, nil
}

func markerPattern(markers []string) (*regexp.Regexp, []string) {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	quoted := make([]string, 0, len(markers))
	for _, m := range markers {
		if m = strings.TrimSpace(m); m != "" {
			quoted = append(quoted, regexp.QuoteMeta(m))
		}
	}
	return regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b[:\s(]?(.*)$`), markers
}

func scanFile(ctx context.Context, path, rel string, pattern *regexp.Regexp) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isBinary(data) {
		return nil, nil
	}
	var out []Task
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		if line%512 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m := pattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[2])
		text = strings.TrimLeft(text, ":)- ")
		out = append(out, Task{File: rel, Line: line, Marker: m[1], Text: strings.TrimSpace(text)})
	}
	return out, scanner.Err()
}

func isBinary(data []byte) bool {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}
