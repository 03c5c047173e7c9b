package core

import (
	"errors"
	"strings"
	"testing"

	"pkt.systems/conch/schema"
)

func TestBufferAppendFreezesOutput(t *testing.T) {
	b := newBuffer()
	b.Append("hello", schema.StyleStdout)
	b.AppendPrompt("> ")
	if b.Boundary() != b.Len() {
		t.Fatalf("expected boundary at end, got %d of %d", b.Boundary(), b.Len())
	}
	if err := b.InsertText("ls"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := b.Input(); got != "ls" {
		t.Fatalf("expected input ls, got %q", got)
	}
	if got := b.Text(); got != "hello\n> ls" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestBufferEditInFrozenRegionMovesToEnd(t *testing.T) {
	b := newBuffer()
	b.Append("output", schema.StyleStdout)
	b.AppendPrompt("> ")
	if err := b.InsertText("ab"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := b.ReplaceSelection(0, 3, "X"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := b.Text(); got != "output\n> abX" {
		t.Fatalf("frozen text changed: %q", got)
	}
	if b.Caret() != b.Len() {
		t.Fatalf("expected caret at end, got %d", b.Caret())
	}
}

func TestBufferBackspaceStopsAtBoundary(t *testing.T) {
	b := newBuffer()
	b.AppendPrompt("> ")
	if err := b.InsertText("a"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := b.Backspace(); err != nil {
		t.Fatalf("backspace: %v", err)
	}
	if err := b.Backspace(); !errors.Is(err, schema.ErrReadOnlyRegion) {
		t.Fatalf("expected read-only error, got %v", err)
	}
	if got := b.Text(); got != "> " {
		t.Fatalf("prompt damaged: %q", got)
	}
}

func TestBufferDeleteRespectsBoundary(t *testing.T) {
	b := newBuffer()
	b.AppendPrompt("> ")
	_ = b.InsertText("abc")
	if err := b.SetCaret(0); !errors.Is(err, schema.ErrReadOnlyRegion) {
		t.Fatalf("expected read-only error, got %v", err)
	}
	if err := b.SetCaret(b.Boundary()); err != nil {
		t.Fatalf("set caret: %v", err)
	}
	if err := b.Delete(); err != nil {
		t.Fatalf("delete at boundary: %v", err)
	}
	if got := b.Input(); got != "bc" {
		t.Fatalf("expected bc, got %q", got)
	}
	b.MoveCaret(10)
	if err := b.Delete(); !errors.Is(err, schema.ErrInvalidOffset) {
		t.Fatalf("expected invalid offset at end, got %v", err)
	}
}

func TestBufferTrimsOldestLines(t *testing.T) {
	b := newBufferWithMaxLines(3)
	for _, line := range []string{"one", "two", "three", "four"} {
		b.Append(line, schema.StyleStdout)
	}
	b.AppendPrompt("> ")
	if b.Lines() != 3 {
		t.Fatalf("expected 3 lines, got %d", b.Lines())
	}
	if got := b.Text(); got != "three\nfour\n> " {
		t.Fatalf("unexpected text %q", got)
	}
	if b.Boundary() != b.Len() || b.Caret() != b.Len() {
		t.Fatalf("boundary/caret not adjusted: %d/%d of %d", b.Boundary(), b.Caret(), b.Len())
	}
}

func TestBufferDefaultCapHoldsLargeOutput(t *testing.T) {
	b := newBuffer()
	for i := 0; i < 3000; i++ {
		b.Append("line", schema.StyleStdout)
	}
	if b.Lines() != defaultMaxLines {
		t.Fatalf("expected %d lines, got %d", defaultMaxLines, b.Lines())
	}
	if !strings.HasSuffix(b.Text(), "line\n") {
		t.Fatalf("expected newest output retained")
	}
}

func TestBufferSegmentsGroupStyles(t *testing.T) {
	b := newBuffer()
	b.Append("out", schema.StyleStdout)
	b.Append("err", schema.StyleStderr)
	b.AppendPrompt("> ")
	_ = b.InsertText("x")
	segs := b.Segments()
	if len(segs) != 4 {
		t.Fatalf("expected 4 segments, got %+v", segs)
	}
	if segs[0].Text != "out\n" || segs[0].Style != schema.StyleStdout {
		t.Fatalf("unexpected first segment %+v", segs[0])
	}
	if segs[3].Text != "x" || segs[3].Style != schema.StyleInput {
		t.Fatalf("unexpected input segment %+v", segs[3])
	}
	input := b.InputSegments()
	if len(input) != 1 || input[0].Text != "x" {
		t.Fatalf("unexpected input segments %+v", input)
	}
}

func TestBufferCommitFreezesInput(t *testing.T) {
	b := newBuffer()
	b.AppendPrompt("> ")
	_ = b.InsertText("echo hi")
	if got := b.Commit(); got != "echo hi" {
		t.Fatalf("expected committed line, got %q", got)
	}
	if b.Input() != "" {
		t.Fatalf("expected empty input after commit")
	}
	if err := b.Backspace(); !errors.Is(err, schema.ErrReadOnlyRegion) {
		t.Fatalf("expected committed text to be frozen, got %v", err)
	}
}

func TestBufferMoveCaretStaysInInput(t *testing.T) {
	b := newBuffer()
	b.Append("output", schema.StyleStdout)
	b.AppendPrompt("> ")
	_ = b.InsertText("ab")

	if b.MoveCaret(-5) {
		t.Fatalf("expected clamped move to report false")
	}
	if b.Caret() != b.Boundary() {
		t.Fatalf("caret %d moved before boundary %d", b.Caret(), b.Boundary())
	}
	if !b.MoveCaret(1) || b.Caret() != b.Boundary()+1 {
		t.Fatalf("expected caret one past boundary, got %d", b.Caret())
	}
	if b.MoveCaret(10) || b.Caret() != b.Len() {
		t.Fatalf("expected caret clamped to end, got %d of %d", b.Caret(), b.Len())
	}
	if err := b.SetCaret(b.Boundary() - 1); !errors.Is(err, schema.ErrReadOnlyRegion) {
		t.Fatalf("expected read-only error, got %v", err)
	}
	if err := b.InsertText("x"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := b.Input(); got != "abx" {
		t.Fatalf("expected abx, got %q", got)
	}
}
