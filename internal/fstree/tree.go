// Package fstree builds and renders depth-limited directory trees.
package fstree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pkt.systems/conch/internal/ignorefile"
)

// DefaultDepth is used when Options.Depth is not positive.
const DefaultDepth = 2

// Node is a file or directory in a walked tree.
type Node struct {
	Name     string
	Path     string
	Dir      bool
	Children []*Node
	// Truncated marks a directory whose children were not walked.
	Truncated bool
}

// Options tunes Walk.
type Options struct {
	Depth      int
	ShowHidden bool
	Exclude    []string
}

// Walk reads root down to opts.Depth levels, skipping ignored entries.
// Directories sort before files, then by name.
func Walk(ctx context.Context, root string, opts Options) (*Node, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("tree %s: not a directory", abs)
	}
	depth := opts.Depth
	if depth <= 0 {
		depth = DefaultDepth
	}
	w := walker{root: abs, opts: opts, matcher: ignorefile.Load(abs, opts.Exclude...)}
	node := &Node{Name: filepath.Base(abs), Path: abs, Dir: true}
	if err := w.fill(ctx, node, depth); err != nil {
		return nil, err
	}
	return node, nil
}

type walker struct {
	root    string
	opts    Options
	matcher *ignorefile.Matcher
}

func (w walker) fill(ctx context.Context, node *Node, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == 0 {
		node.Truncated = true
		return nil
	}
	entries, err := os.ReadDir(node.Path)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if !w.opts.ShowHidden && strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(node.Path, name)
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			continue
		}
		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			if info, err := os.Stat(path); err == nil {
				isDir = info.IsDir()
			}
		}
		if w.matcher.Match(rel, isDir) {
			continue
		}
		child := &Node{Name: name, Path: path, Dir: isDir}
		if isDir && entry.Type()&os.ModeSymlink == 0 {
			if err := w.fill(ctx, child, depth-1); err != nil {
				return err
			}
		}
		node.Children = append(node.Children, child)
	}
	sort.SliceStable(node.Children, func(i, j int) bool {
		a, b := node.Children[i], node.Children[j]
		if a.Dir != b.Dir {
			return a.Dir
		}
		return a.Name < b.Name
	})
	return nil
}

// Render draws node with box-drawing connectors, one line per entry.
func Render(node *Node) []string {
	if node == nil {
		return nil
	}
	lines := []string{label(node)}
	renderChildren(node, "", &lines)
	return lines
}

func renderChildren(node *Node, prefix string, lines *[]string) {
	for i, child := range node.Children {
		last := i == len(node.Children)-1
		connector, next := "├── ", "│   "
		if last {
			connector, next = "└── ", "    "
		}
		*lines = append(*lines, prefix+connector+label(child))
		renderChildren(child, prefix+next, lines)
	}
}

func label(node *Node) string {
	switch {
	case node.Dir && node.Truncated:
		return node.Name + "/ …"
	case node.Dir:
		return node.Name + "/"
	default:
		return node.Name
	}
}

// Count returns the number of directories and files below node.
func Count(node *Node) (dirs, files int) {
	if node == nil {
		return 0, 0
	}
	for _, child := range node.Children {
		if child.Dir {
			dirs++
			d, f := Count(child)
			dirs += d
			files += f
			continue
		}
		files++
	}
	return dirs, files
}
