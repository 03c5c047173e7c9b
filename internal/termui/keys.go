package termui

import (
	"bufio"
	"io"
	"unicode"
	"unicode/utf8"
)

type keyKind int

const (
	keyRune keyKind = iota
	keyEnter
	keyBackspace
	keyDelete
	keyLeft
	keyRight
	keyHome
	keyEnd
	keyUp
	keyDown
	keyPageUp
	keyPageDown
	keyCtrlA
	keyCtrlE
	keyCtrlC
	keyCtrlD
	keyCtrlL
	keyCtrlU
	keyCtrlW
	keyTab
)

type key struct {
	kind keyKind
	r    rune
}

// readKeys decodes terminal input into keys until r fails.
func readKeys(r io.Reader, out chan<- key) {
	defer close(out)
	br := bufio.NewReader(r)
	lastWasCR := false
	for {
		b, err := br.ReadByte()
		if err != nil {
			return
		}
		if lastWasCR {
			lastWasCR = false
			if b == '\n' {
				continue
			}
		}
		switch b {
		case 0x1b:
			readEscape(br, out)
		case '\r':
			out <- key{kind: keyEnter}
			lastWasCR = true
		case '\n':
			out <- key{kind: keyEnter}
		case 0x7f, 0x08:
			out <- key{kind: keyBackspace}
		case 0x01:
			out <- key{kind: keyCtrlA}
		case 0x05:
			out <- key{kind: keyCtrlE}
		case 0x03:
			out <- key{kind: keyCtrlC}
		case 0x04:
			out <- key{kind: keyCtrlD}
		case 0x0c:
			out <- key{kind: keyCtrlL}
		case 0x15:
			out <- key{kind: keyCtrlU}
		case 0x17:
			out <- key{kind: keyCtrlW}
		case 0x09:
			out <- key{kind: keyTab}
		default:
			if b < 0x20 {
				continue
			}
			if b < utf8.RuneSelf {
				out <- key{kind: keyRune, r: rune(b)}
				continue
			}
			_ = br.UnreadByte()
			rn, _, err := br.ReadRune()
			if err != nil {
				return
			}
			out <- key{kind: keyRune, r: rn}
		}
	}
}

func readEscape(br *bufio.Reader, out chan<- key) {
	b, err := br.ReadByte()
	if err != nil {
		return
	}
	switch b {
	case '[':
		readCSI(br, out)
	case 'O':
		readSS3(br, out)
	}
}

func readCSI(br *bufio.Reader, out chan<- key) {
	seq := []byte{}
	for {
		b, err := br.ReadByte()
		if err != nil {
			return
		}
		seq = append(seq, b)
		if b == '~' || unicode.IsLetter(rune(b)) {
			break
		}
		if len(seq) > 8 {
			return
		}
	}
	switch string(seq) {
	case "A":
		out <- key{kind: keyUp}
	case "B":
		out <- key{kind: keyDown}
	case "C":
		out <- key{kind: keyRight}
	case "D":
		out <- key{kind: keyLeft}
	case "H", "1~", "7~":
		out <- key{kind: keyHome}
	case "F", "4~", "8~":
		out <- key{kind: keyEnd}
	case "5~":
		out <- key{kind: keyPageUp}
	case "6~":
		out <- key{kind: keyPageDown}
	case "3~":
		out <- key{kind: keyDelete}
	}
}

func readSS3(br *bufio.Reader, out chan<- key) {
	b, err := br.ReadByte()
	if err != nil {
		return
	}
	switch b {
	case 'A':
		out <- key{kind: keyUp}
	case 'B':
		out <- key{kind: keyDown}
	case 'C':
		out <- key{kind: keyRight}
	case 'D':
		out <- key{kind: keyLeft}
	case 'H':
		out <- key{kind: keyHome}
	case 'F':
		out <- key{kind: keyEnd}
	}
}
