package core

import (
	"fmt"
	"strings"

	"pkt.systems/conch/schema"
)

const defaultMaxLines = schema.DefaultBufferMaxLines

// buffer stores console text with a style per rune.
// Offsets below boundary are frozen output; the tail from boundary to the end
// of the document is the editable input line.
type buffer struct {
	text     []rune
	styles   []schema.Style
	boundary int
	caret    int
	maxLines int
}

// newBuffer returns a buffer with default limits applied.
func newBuffer() *buffer {
	return &buffer{maxLines: defaultMaxLines}
}

func newBufferWithMaxLines(maxLines int) *buffer {
	buf := newBuffer()
	if maxLines > 0 {
		buf.maxLines = maxLines
	}
	return buf
}

// Len returns the document length in runes.
func (b *buffer) Len() int {
	return len(b.text)
}

// Boundary returns the first editable offset.
func (b *buffer) Boundary() int {
	return b.boundary
}

// Caret returns the caret offset.
func (b *buffer) Caret() int {
	return b.caret
}

// Append inserts text at the end of the document, terminated by a newline,
// and freezes everything up to the new end.
func (b *buffer) Append(text string, style schema.Style) string {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	b.insert(len(b.text), text, style)
	b.boundary = len(b.text)
	b.caret = b.boundary
	b.trim()
	return text
}

// AppendPrompt inserts a prompt without a trailing newline and resets the
// boundary to the end of the document.
func (b *buffer) AppendPrompt(prompt string) {
	b.insert(len(b.text), prompt, schema.StylePrompt)
	b.boundary = len(b.text)
	b.caret = b.boundary
	b.trim()
}

// Commit freezes the editable tail followed by a newline and returns the
// submitted input.
func (b *buffer) Commit() string {
	input := b.Input()
	b.insert(len(b.text), "\n", schema.StyleInput)
	b.boundary = len(b.text)
	b.caret = b.boundary
	b.trim()
	return input
}

// Input returns the editable tail.
func (b *buffer) Input() string {
	if b.boundary >= len(b.text) {
		return ""
	}
	return string(b.text[b.boundary:])
}

// SetInput replaces the whole editable tail.
func (b *buffer) SetInput(text string) {
	if err := b.remove(b.boundary, len(b.text)); err != nil {
		return
	}
	b.insert(b.boundary, text, schema.StyleInput)
	b.caret = len(b.text)
	b.trim()
}

// ReplaceSelection replaces [start,end) with text styled as input. A
// selection that begins in the frozen region collapses to the end of the
// document first.
func (b *buffer) ReplaceSelection(start, end int, text string) error {
	if start > end {
		start, end = end, start
	}
	if start < 0 || end > len(b.text) {
		return fmt.Errorf("%w: selection %d-%d of %d", schema.ErrInvalidOffset, start, end, len(b.text))
	}
	if start < b.boundary {
		start = len(b.text)
		end = start
		b.caret = start
	}
	if err := b.remove(start, end); err != nil {
		return err
	}
	n := b.insert(start, text, schema.StyleInput)
	b.caret = start + n
	b.trim()
	return nil
}

// InsertText types text at the caret.
func (b *buffer) InsertText(text string) error {
	return b.ReplaceSelection(b.caret, b.caret, text)
}

// Backspace removes the rune before the caret.
func (b *buffer) Backspace() error {
	if b.caret <= b.boundary {
		return schema.ErrReadOnlyRegion
	}
	if err := b.remove(b.caret-1, b.caret); err != nil {
		return err
	}
	b.caret--
	return nil
}

// Delete removes the rune after the caret.
func (b *buffer) Delete() error {
	if b.caret < b.boundary {
		return schema.ErrReadOnlyRegion
	}
	if b.caret >= len(b.text) {
		return fmt.Errorf("%w: nothing after caret", schema.ErrInvalidOffset)
	}
	return b.remove(b.caret, b.caret+1)
}

// SetCaret moves the caret inside the editable tail.
func (b *buffer) SetCaret(offset int) error {
	if offset < 0 || offset > len(b.text) {
		return fmt.Errorf("%w: caret %d of %d", schema.ErrInvalidOffset, offset, len(b.text))
	}
	if offset < b.boundary {
		return fmt.Errorf("%w: caret %d before boundary %d", schema.ErrReadOnlyRegion, offset, b.boundary)
	}
	b.caret = offset
	return nil
}

// MoveCaret moves the caret by delta, clamped to [boundary, end]. It
// reports false when the move was clamped.
func (b *buffer) MoveCaret(delta int) bool {
	want := b.caret + delta
	b.caret = clamp(want, b.boundary, len(b.text))
	return b.caret == want
}

// Clear empties the document.
func (b *buffer) Clear() {
	b.text = nil
	b.styles = nil
	b.boundary = 0
	b.caret = 0
}

// Lines returns the number of lines in the document.
func (b *buffer) Lines() int {
	count := 1
	for _, r := range b.text {
		if r == '\n' {
			count++
		}
	}
	return count
}

// Text returns the whole document.
func (b *buffer) Text() string {
	return string(b.text)
}

// Segments groups the document into styled runs.
func (b *buffer) Segments() []schema.Segment {
	return segmentsOf(b.text, b.styles, 0, len(b.text))
}

// Snapshot returns a view of the buffer.
func (b *buffer) Snapshot() schema.BufferSnapshot {
	return schema.BufferSnapshot{
		Segments: b.Segments(),
		Boundary: b.boundary,
		Caret:    b.caret,
		Length:   len(b.text),
		Lines:    b.Lines(),
	}
}

// InputSegments returns the editable tail as styled runs.
func (b *buffer) InputSegments() []schema.Segment {
	return segmentsOf(b.text, b.styles, b.boundary, len(b.text))
}

func (b *buffer) insert(offset int, text string, style schema.Style) int {
	if text == "" {
		return 0
	}
	runes := []rune(text)
	styles := make([]schema.Style, len(runes))
	for i := range styles {
		styles[i] = style
	}
	b.text = append(b.text[:offset], append(runes, b.text[offset:]...)...)
	b.styles = append(b.styles[:offset], append(styles, b.styles[offset:]...)...)
	return len(runes)
}

func (b *buffer) remove(start, end int) error {
	if start < 0 || end > len(b.text) || start > end {
		return fmt.Errorf("%w: remove %d-%d of %d", schema.ErrInvalidOffset, start, end, len(b.text))
	}
	if start == end {
		return nil
	}
	b.text = append(b.text[:start], b.text[end:]...)
	b.styles = append(b.styles[:start], b.styles[end:]...)
	return nil
}

// trim drops the oldest lines in one batch once the cap is exceeded.
func (b *buffer) trim() {
	maxLines := b.maxLines
	if maxLines <= 0 {
		maxLines = defaultMaxLines
	}
	excess := b.Lines() - maxLines
	if excess <= 0 {
		return
	}
	cut := 0
	for i, r := range b.text {
		if r != '\n' {
			continue
		}
		excess--
		if excess == 0 {
			cut = i + 1
			break
		}
	}
	if cut == 0 {
		return
	}
	b.text = append([]rune(nil), b.text[cut:]...)
	b.styles = append([]schema.Style(nil), b.styles[cut:]...)
	b.boundary = clamp(b.boundary-cut, 0, len(b.text))
	b.caret = clamp(b.caret-cut, 0, len(b.text))
}

func segmentsOf(text []rune, styles []schema.Style, start, end int) []schema.Segment {
	if start >= end {
		return nil
	}
	var out []schema.Segment
	runStart := start
	for i := start + 1; i <= end; i++ {
		if i < end && styles[i] == styles[runStart] {
			continue
		}
		out = append(out, schema.Segment{Text: string(text[runStart:i]), Style: styles[runStart]})
		runStart = i
	}
	return out
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
