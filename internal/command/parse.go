package command

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// Command represents a parsed built-in invocation.
type Command struct {
	Name      string
	Args      []string
	Raw       string
	Remainder string
}

// Parse splits a command line with shell quoting rules. The name is the
// lower-cased first token.
func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Command{}, nil
	}
	fields, err := shlex.Split(raw)
	if err != nil {
		return Command{Name: strings.ToLower(firstToken(raw)), Raw: raw}, fmt.Errorf("parse %q: %w", raw, err)
	}
	if len(fields) == 0 {
		return Command{Raw: raw}, nil
	}
	args := []string{}
	if len(fields) > 1 {
		args = fields[1:]
	}
	return Command{
		Name:      strings.ToLower(fields[0]),
		Args:      args,
		Raw:       raw,
		Remainder: remainderAfterTokens(raw, 1),
	}, nil
}

func firstToken(value string) string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func remainderAfterTokens(raw string, count int) string {
	i := 0
	remaining := count
	for remaining > 0 && i < len(raw) {
		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		for i < len(raw) && !isSpace(raw[i]) {
			i++
		}
		remaining--
	}
	if i >= len(raw) {
		return ""
	}
	return strings.TrimSpace(raw[i:])
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
