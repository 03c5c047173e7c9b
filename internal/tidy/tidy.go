// Package tidy pretty-prints structured documents and summarizes the
// resulting change.
package tidy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
	"pkt.systems/conch/schema"
)

const indent = "  "

// Kind names a supported document format.
type Kind string

const (
	KindXML  Kind = "xml"
	KindJSON Kind = "json"
	KindYAML Kind = "yaml"
)

var extensions = map[string]Kind{
	".xml":     KindXML,
	".xsd":     KindXML,
	".xsl":     KindXML,
	".svg":     KindXML,
	".pom":     KindXML,
	".json":    KindJSON,
	".yaml":    KindYAML,
	".yml":     KindYAML,
	".project": KindXML,
}

// KindFor returns the format for a file name.
func KindFor(name string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(name))
	kind, ok := extensions[ext]
	if !ok {
		return "", fmt.Errorf("%w: %s", schema.ErrUnsupportedFormat, filepath.Base(name))
	}
	return kind, nil
}

// Format pretty-prints data according to the extension of name.
func Format(name string, data []byte) ([]byte, error) {
	kind, err := KindFor(name)
	if err != nil {
		return nil, err
	}
	return FormatKind(kind, data)
}

// FormatKind pretty-prints data as kind.
func FormatKind(kind Kind, data []byte) ([]byte, error) {
	switch kind {
	case KindXML:
		return formatXML(data)
	case KindJSON:
		return formatJSON(data)
	case KindYAML:
		return formatYAML(data)
	default:
		return nil, fmt.Errorf("%w: %s", schema.ErrUnsupportedFormat, kind)
	}
}

func formatJSON(data []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(data), "", indent); err != nil {
		return nil, fmt.Errorf("tidy json: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func formatYAML(data []byte) ([]byte, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var out bytes.Buffer
	enc := yaml.NewEncoder(&out)
	enc.SetIndent(len(indent))
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tidy yaml: %w", err)
		}
		if err := enc.Encode(&node); err != nil {
			return nil, fmt.Errorf("tidy yaml: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("tidy yaml: %w", err)
	}
	return out.Bytes(), nil
}
