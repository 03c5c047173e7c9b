package core

import (
	"strings"

	"pkt.systems/conch/schema"
)

const defaultHistoryMax = schema.DefaultHistoryMax

// historyBuffer is a bounded FIFO of submitted lines with a recall cursor.
// The cursor equals len(entries) after every Record.
type historyBuffer struct {
	entries []string
	max     int
	cursor  int
}

func newHistory(max int) *historyBuffer {
	if max <= 0 {
		max = defaultHistoryMax
	}
	return &historyBuffer{max: max}
}

// Record appends a non-blank entry, evicting the oldest when full.
func (h *historyBuffer) Record(entry string) bool {
	if h == nil {
		return false
	}
	if strings.TrimSpace(entry) == "" {
		h.cursor = len(h.entries)
		return false
	}
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.max {
		h.entries = append([]string(nil), h.entries[len(h.entries)-h.max:]...)
	}
	h.cursor = len(h.entries)
	return true
}

// Recall moves the cursor by direction (-1 older, +1 newer) and returns the
// entry under it. Moving outside the recorded entries leaves the cursor
// where it was.
func (h *historyBuffer) Recall(direction int) (string, error) {
	if h == nil {
		return "", schema.ErrHistoryBounds
	}
	next := h.cursor + direction
	if next < 0 || next >= len(h.entries) {
		return "", schema.ErrHistoryBounds
	}
	h.cursor = next
	return h.entries[next], nil
}

// Cursor returns the recall position.
func (h *historyBuffer) Cursor() int {
	if h == nil {
		return 0
	}
	return h.cursor
}

// Entries returns a copy of the recorded entries, oldest first.
func (h *historyBuffer) Entries() []string {
	if h == nil {
		return nil
	}
	return append([]string(nil), h.entries...)
}
