package termui

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"pkt.systems/conch/schema"
)

const tabWidth = 4

// frame is one screen worth of styled rows plus the cursor position.
type frame struct {
	lines         []string
	cursorRow     int
	cursorCol     int
	cursorVisible bool
}

type cell struct {
	r     rune
	style schema.Style
}

type row struct {
	cells []cell
	width int
}

// layout wraps the buffer to width, keeps the rows that fit above the
// status bar and locates the caret. scroll counts rows hidden below the
// window; it is clamped and returned.
func layout(snap schema.ConsoleSnapshot, theme Theme, width, height, scroll int) (frame, int) {
	if width <= 0 {
		width = 80
	}
	if height <= 1 {
		height = 2
	}
	rows, caretRow, caretCol := wrap(snap.Buffer, width)
	view := height - 1
	maxScroll := len(rows) - view
	if maxScroll < 0 {
		maxScroll = 0
	}
	if scroll > maxScroll {
		scroll = maxScroll
	}
	if scroll < 0 {
		scroll = 0
	}
	end := len(rows) - scroll
	start := end - view
	if start < 0 {
		start = 0
	}

	f := frame{lines: make([]string, 0, height)}
	for _, r := range rows[start:end] {
		f.lines = append(f.lines, renderRow(r, theme))
	}
	for len(f.lines) < view {
		f.lines = append(f.lines, "")
	}
	f.lines = append(f.lines, theme.Status(statusLine(snap, width, scroll)))
	if caretRow >= start && caretRow < end {
		f.cursorRow = caretRow - start + 1
		f.cursorCol = caretCol + 1
		f.cursorVisible = snap.Editable
	} else {
		f.cursorRow = height
		f.cursorCol = 1
	}
	return f, scroll
}

// wrap splits the buffer into rows no wider than width, dropping terminal
// control sequences from process output.
func wrap(buf schema.BufferSnapshot, width int) ([]row, int, int) {
	rows := []row{{}}
	caretRow, caretCol := -1, 0
	offset := 0
	var esc escapeFilter
	place := func() {
		caretRow, caretCol = len(rows)-1, rows[len(rows)-1].width
		if caretCol >= width {
			caretCol = width - 1
		}
	}
	for _, seg := range buf.Segments {
		for _, r := range seg.Text {
			if offset == buf.Caret {
				place()
			}
			offset++
			if esc.skip(r) {
				continue
			}
			switch {
			case r == '\n':
				rows = append(rows, row{})
				continue
			case r == '\t':
				r = ' '
				for i := 0; i < tabWidth-1; i++ {
					appendCell(&rows, cell{r: r, style: seg.Style}, 1, width)
				}
			case r == '\r' || r < 0x20 || r == 0x7f:
				continue
			}
			w := runewidth.RuneWidth(r)
			if w == 0 {
				continue
			}
			appendCell(&rows, cell{r: r, style: seg.Style}, w, width)
		}
	}
	if caretRow < 0 {
		place()
	}
	return rows, caretRow, caretCol
}

func appendCell(rows *[]row, c cell, w, width int) {
	cur := &(*rows)[len(*rows)-1]
	if cur.width+w > width {
		*rows = append(*rows, row{})
		cur = &(*rows)[len(*rows)-1]
	}
	cur.cells = append(cur.cells, c)
	cur.width += w
}

func renderRow(r row, theme Theme) string {
	if len(r.cells) == 0 {
		return ""
	}
	var b strings.Builder
	var run strings.Builder
	style := r.cells[0].style
	for _, c := range r.cells {
		if c.style != style {
			b.WriteString(theme.Render(style, run.String()))
			run.Reset()
			style = c.style
		}
		run.WriteRune(c.r)
	}
	b.WriteString(theme.Render(style, run.String()))
	return b.String()
}

func statusLine(snap schema.ConsoleSnapshot, width, scroll int) string {
	left := " " + string(snap.State)
	if scroll > 0 {
		left += " [scroll]"
	}
	right := snap.WorkingDir + " "
	avail := width - runewidth.StringWidth(left) - 1
	if avail < 1 {
		return runewidth.FillRight(runewidth.Truncate(left, width, ""), width)
	}
	right = truncateLeft(right, avail)
	gap := width - runewidth.StringWidth(left) - runewidth.StringWidth(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// truncateLeft keeps the tail of s so that it fits width, marking the cut.
func truncateLeft(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	out := []rune{}
	w := 1
	for i := len(runes) - 1; i >= 0; i-- {
		rw := runewidth.RuneWidth(runes[i])
		if w+rw > width {
			break
		}
		out = append([]rune{runes[i]}, out...)
		w += rw
	}
	return "…" + string(out)
}

// escapeFilter tracks ANSI escape sequences across runes.
type escapeFilter struct {
	state int
}

const (
	escNone = iota
	escStart
	escCSI
	escOSC
	escOSCEsc
)

func (e *escapeFilter) skip(r rune) bool {
	switch e.state {
	case escStart:
		switch r {
		case '[':
			e.state = escCSI
		case ']':
			e.state = escOSC
		default:
			e.state = escNone
		}
		return true
	case escCSI:
		if r >= 0x40 && r <= 0x7e {
			e.state = escNone
		}
		return true
	case escOSC:
		switch r {
		case 0x07:
			e.state = escNone
		case 0x1b:
			e.state = escOSCEsc
		}
		return true
	case escOSCEsc:
		e.state = escNone
		return true
	}
	if r == 0x1b {
		e.state = escStart
		return true
	}
	return false
}
