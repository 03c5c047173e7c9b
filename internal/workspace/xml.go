package workspace

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	tagWorkspace     = "workspace"
	tagProjects      = "projects"
	tagProject       = "project"
	tagFile          = "file"
	tagFolder        = "folder"
	tagLogicalFolder = "logical-folder"
)

// Encode writes ws as indented XML.
func Encode(w io.Writer, ws *Workspace) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	root := start(tagWorkspace, "name", ws.Name)
	if err := enc.EncodeToken(root); err != nil {
		return err
	}
	projects := start(tagProjects)
	if err := enc.EncodeToken(projects); err != nil {
		return err
	}
	for _, p := range ws.Projects {
		el := start(tagProject, "name", p.Name)
		if err := enc.EncodeToken(el); err != nil {
			return err
		}
		if err := encodeEntries(enc, p.Entries); err != nil {
			return err
		}
		if err := enc.EncodeToken(el.End()); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(projects.End()); err != nil {
		return err
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func encodeEntries(enc *xml.Encoder, entries []Entry) error {
	for _, entry := range entries {
		var el xml.StartElement
		switch e := entry.(type) {
		case FileEntry:
			el = start(tagFile, "path", e.Path)
		case FolderEntry:
			el = start(tagFolder,
				"path", e.Path,
				"display-name", e.DisplayName,
				"filters", strings.Join(e.Include, ","),
				"exclude-filters", strings.Join(e.Exclude, ","))
		case LogicalFolderEntry:
			el = start(tagLogicalFolder, "name", e.Name)
			if err := enc.EncodeToken(el); err != nil {
				return err
			}
			if err := encodeEntries(enc, e.Entries); err != nil {
				return err
			}
			if err := enc.EncodeToken(el.End()); err != nil {
				return err
			}
			continue
		default:
			return fmt.Errorf("unknown entry type %T", entry)
		}
		if err := enc.EncodeToken(el); err != nil {
			return err
		}
		if err := enc.EncodeToken(el.End()); err != nil {
			return err
		}
	}
	return nil
}

// start builds an element, dropping empty attributes.
func start(name string, attrs ...string) xml.StartElement {
	el := xml.StartElement{Name: xml.Name{Local: name}}
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i+1] == "" {
			continue
		}
		el.Attr = append(el.Attr, xml.Attr{Name: xml.Name{Local: attrs[i]}, Value: attrs[i+1]})
	}
	return el
}

// Decode parses a workspace document.
func Decode(r io.Reader) (*Workspace, error) {
	p := &parser{dec: xml.NewDecoder(r)}
	el, err := p.nextStart()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("workspace: empty document")
		}
		return nil, err
	}
	if el.Name.Local != tagWorkspace {
		return nil, fmt.Errorf("workspace: unexpected root <%s>", el.Name.Local)
	}
	ws := &Workspace{Name: attr(el, "name")}
	err = p.children(func(child xml.StartElement) error {
		if child.Name.Local != tagProjects {
			return p.dec.Skip()
		}
		return p.children(func(pe xml.StartElement) error {
			if pe.Name.Local != tagProject {
				return p.dec.Skip()
			}
			project := &Project{Name: attr(pe, "name")}
			entries, err := p.entries()
			if err != nil {
				return err
			}
			project.Entries = entries
			ws.Projects = append(ws.Projects, project)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

type parser struct {
	dec *xml.Decoder
}

func (p *parser) nextStart() (xml.StartElement, error) {
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if el, ok := tok.(xml.StartElement); ok {
			return el, nil
		}
	}
}

// children calls fn for each child element until the enclosing end tag.
// fn must consume the child including its end tag.
func (p *parser) children(fn func(xml.StartElement) error) error {
	for {
		tok, err := p.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("workspace: unexpected end of document")
			}
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := fn(t); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (p *parser) entries() ([]Entry, error) {
	var out []Entry
	err := p.children(func(el xml.StartElement) error {
		switch el.Name.Local {
		case tagFile:
			out = append(out, FileEntry{Path: attr(el, "path")})
			return p.dec.Skip()
		case tagFolder:
			out = append(out, FolderEntry{
				Path:        attr(el, "path"),
				DisplayName: attr(el, "display-name"),
				Include:     splitList(attr(el, "filters")),
				Exclude:     splitList(attr(el, "exclude-filters")),
			})
			return p.dec.Skip()
		case tagLogicalFolder:
			inner, err := p.entries()
			if err != nil {
				return err
			}
			out = append(out, LogicalFolderEntry{Name: attr(el, "name"), Entries: inner})
			return nil
		default:
			return p.dec.Skip()
		}
	})
	return out, err
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
