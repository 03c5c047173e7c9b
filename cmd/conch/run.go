package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/conch/internal/sessionprefs"
	"pkt.systems/conch/schema"
)

// errReportedErrors is returned when the console printed errors.
var errReportedErrors = errors.New("console reported errors")

func newRunCmd() *cobra.Command {
	var startDir string
	cmd := &cobra.Command{
		Use:   "run [line...]",
		Short: "Submit command lines to a headless console",
		Long:  "Each argument is submitted as one command line. Without arguments lines are read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			lines := args
			if len(lines) == 0 {
				var err error
				if lines, err = readLines(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			return runHeadless(cmd, startDir, lines)
		},
	}
	cmd.Flags().StringVarP(&startDir, "dir", "C", "", "working directory of the console")
	return cmd
}

// runHeadless opens a console without a terminal, submits lines one after
// the other and copies the output to the command's stdout and stderr.
func runHeadless(cmd *cobra.Command, startDir string, lines []string) error {
	ctx, cfg, closer, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()
	if startDir != "" {
		cfg.Console.StartDir = startDir
	}
	cfg.Console.Banner = nil

	factory, err := buildFactory(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = factory.CloseAll() }()

	ctx = sessionprefs.WithContext(ctx, sessionprefs.New(cfg.Host.Profile, "run"))
	session, err := factory.Open(ctx)
	if err != nil {
		return err
	}
	printed := make(chan bool)
	go func() {
		failed := false
		for ev := range session.Events {
			if printEvent(cmd.OutOrStdout(), cmd.ErrOrStderr(), ev) {
				failed = true
			}
		}
		printed <- failed
	}()
	runErr := submitAll(session.Context(), session.Console, lines)
	_ = session.Close()
	if failed := <-printed; failed && runErr == nil {
		runErr = errReportedErrors
	}
	return runErr
}

// builtinLine joins a built-in name and its arguments into one command line,
// quoting arguments the parser would otherwise split.
func builtinLine(name string, args ...string) string {
	parts := append([]string{name}, args...)
	for i, arg := range parts {
		if arg == "" || strings.ContainsAny(arg, " \t\"'\\") {
			parts[i] = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(arg) + `"`
		}
	}
	return strings.Join(parts, " ")
}

type lineSubmitter interface {
	SubmitLine(ctx context.Context, line string) error
	Wait(ctx context.Context) error
}

func submitAll(ctx context.Context, console lineSubmitter, lines []string) error {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := console.SubmitLine(ctx, line); err != nil {
			return fmt.Errorf("submit %q: %w", line, err)
		}
		if err := console.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// printEvent writes the output of an append event and reports whether any
// of it went to stderr. Prompts and echoed input are left out.
func printEvent(stdout, stderr io.Writer, ev schema.ConsoleEvent) bool {
	if ev.Type != schema.EventAppend {
		return false
	}
	wroteErr := false
	for _, seg := range ev.Segments {
		switch seg.Style {
		case schema.StyleStderr, schema.StyleException:
			_, _ = io.WriteString(stderr, seg.Text)
			wroteErr = true
		case schema.StylePrompt, schema.StyleInput:
		default:
			_, _ = io.WriteString(stdout, seg.Text)
		}
	}
	return wroteErr
}
