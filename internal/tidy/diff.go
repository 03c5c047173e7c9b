package tidy

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Summary counts changed lines between two versions of a document.
type Summary struct {
	Added   int
	Removed int
}

// Changed reports whether any line differs.
func (s Summary) Changed() bool {
	return s.Added > 0 || s.Removed > 0
}

func (s Summary) String() string {
	if !s.Changed() {
		return "no changes"
	}
	return fmt.Sprintf("+%d -%d lines", s.Added, s.Removed)
}

// Summarize diffs old and new line by line.
func Summarize(old, new string) Summary {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(old, new)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var s Summary
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			s.Added += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			s.Removed += countLines(d.Text)
		}
	}
	return s
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
