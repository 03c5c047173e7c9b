// Package ignorefile compiles .gitignore style rules for directory walks.
package ignorefile

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// alwaysIgnored is applied to every walk.
var alwaysIgnored = []string{".git/", ".hg/", ".svn/"}

// Matcher reports whether a slash separated relative path is ignored.
type Matcher struct {
	rules *ignore.GitIgnore
}

// Load reads root/.gitignore and adds extra patterns.
func Load(root string, extra ...string) *Matcher {
	lines := append([]string(nil), alwaysIgnored...)
	if rules, err := readIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		lines = append(lines, rules...)
	}
	lines = append(lines, extra...)
	return &Matcher{rules: ignore.CompileIgnoreLines(lines...)}
}

// Compile builds a matcher from explicit patterns only.
func Compile(patterns ...string) *Matcher {
	return &Matcher{rules: ignore.CompileIgnoreLines(patterns...)}
}

// Match reports whether rel is ignored. Directories are matched with a
// trailing slash so "dir/" patterns apply.
func (m *Matcher) Match(rel string, isDir bool) bool {
	if m == nil || m.rules == nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == "" {
		return false
	}
	if isDir && !strings.HasSuffix(rel, "/") {
		rel += "/"
	}
	return m.rules.MatchesPath(rel)
}

func readIgnoreFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
