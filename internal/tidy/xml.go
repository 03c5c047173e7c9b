package tidy

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// xmlWriter re-indents a raw token stream. Elements holding only text stay
// on one line and empty elements collapse to <name/>.
type xmlWriter struct {
	out   bytes.Buffer
	depth int
	open  bool
	text  bool
	lines int
}

func formatXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	w := &xmlWriter{}
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tidy xml: %w", err)
		}
		w.token(tok)
	}
	if w.depth != 0 {
		return nil, fmt.Errorf("tidy xml: %d unclosed element(s)", w.depth)
	}
	w.out.WriteByte('\n')
	return w.out.Bytes(), nil
}

func (w *xmlWriter) token(tok xml.Token) {
	switch t := tok.(type) {
	case xml.StartElement:
		w.closeStart()
		w.newline()
		w.out.WriteString("<" + qualified(t.Name))
		for _, attr := range t.Attr {
			w.out.WriteString(" " + qualified(attr.Name) + `="`)
			_ = xml.EscapeText(&w.out, []byte(attr.Value))
			w.out.WriteByte('"')
		}
		w.open = true
		w.text = false
		w.depth++
	case xml.EndElement:
		w.depth--
		switch {
		case w.open:
			w.out.WriteString("/>")
			w.open = false
		case w.text:
			w.out.WriteString("</" + qualified(t.Name) + ">")
		default:
			w.newline()
			w.out.WriteString("</" + qualified(t.Name) + ">")
		}
		w.text = false
	case xml.CharData:
		trimmed := strings.TrimSpace(string(t))
		if trimmed == "" {
			return
		}
		w.closeStart()
		_ = xml.EscapeText(&w.out, []byte(trimmed))
		w.text = true
	case xml.Comment:
		w.closeStart()
		w.newline()
		w.out.WriteString("<!--" + string(t) + "-->")
	case xml.ProcInst:
		w.closeStart()
		w.newline()
		w.out.WriteString("<?" + t.Target)
		if len(t.Inst) > 0 {
			w.out.WriteString(" " + string(t.Inst))
		}
		w.out.WriteString("?>")
	case xml.Directive:
		w.closeStart()
		w.newline()
		w.out.WriteString("<!" + string(t) + ">")
	}
}

func (w *xmlWriter) closeStart() {
	if w.open {
		w.out.WriteByte('>')
		w.open = false
	}
}

func (w *xmlWriter) newline() {
	if w.lines > 0 {
		w.out.WriteByte('\n')
	}
	w.lines++
	w.out.WriteString(strings.Repeat(indent, w.depth))
}

func qualified(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}
