package termui

import (
	"strings"
	"testing"
)

func decode(t *testing.T, input string) []key {
	t.Helper()
	ch := make(chan key, 64)
	readKeys(strings.NewReader(input), ch)
	var keys []key
	for k := range ch {
		keys = append(keys, k)
	}
	return keys
}

func TestReadKeysRunesAndEnter(t *testing.T) {
	keys := decode(t, "aé\r\n\n")
	want := []key{
		{kind: keyRune, r: 'a'},
		{kind: keyRune, r: 'é'},
		{kind: keyEnter},
		{kind: keyEnter},
	}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d: %+v", len(want), len(keys), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("key %d: expected %+v, got %+v", i, want[i], keys[i])
		}
	}
}

func TestReadKeysEscapeSequences(t *testing.T) {
	input := "\x1b[A\x1b[B\x1b[C\x1b[D\x1b[H\x1b[F\x1b[3~\x1b[5~\x1b[6~\x1bOA\x1bOH"
	want := []keyKind{keyUp, keyDown, keyRight, keyLeft, keyHome, keyEnd, keyDelete, keyPageUp, keyPageDown, keyUp, keyHome}
	keys := decode(t, input)
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d: %+v", len(want), len(keys), keys)
	}
	for i, kind := range want {
		if keys[i].kind != kind {
			t.Fatalf("key %d: expected kind %d, got %d", i, kind, keys[i].kind)
		}
	}
}

func TestReadKeysControl(t *testing.T) {
	keys := decode(t, "\x01\x05\x03\x04\x0c\x15\x17\x7f\t\x02")
	want := []keyKind{keyCtrlA, keyCtrlE, keyCtrlC, keyCtrlD, keyCtrlL, keyCtrlU, keyCtrlW, keyBackspace, keyTab}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d: %+v", len(want), len(keys), keys)
	}
	for i, kind := range want {
		if keys[i].kind != kind {
			t.Fatalf("key %d: expected kind %d, got %d", i, kind, keys[i].kind)
		}
	}
}
