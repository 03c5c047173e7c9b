package macro

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"pkt.systems/conch/core"
)

// Standard bindings supplied to every macro.
const (
	BindingDir     = "conch-dir"
	BindingFile    = "conch-file"
	BindingConsole = "conch-console"
)

// ShellEngine runs macros through the platform shell. Bindings are exported
// as CONCH_<NAME> environment variables and BindingDir is the working
// directory.
type ShellEngine struct {
	Runner core.Runner
}

// Evaluate runs source and streams its output.
func (e ShellEngine) Evaluate(ctx context.Context, source string, bindings map[string]string, out Output) error {
	if e.Runner == nil {
		return errors.New("shell engine has no runner")
	}
	handle, err := e.Runner.RunCommand(ctx, core.RunCommandRequest{
		WorkingDir: bindings[BindingDir],
		Command:    source,
		UseShell:   true,
		Env:        bindingEnv(bindings),
	})
	if err != nil {
		return err
	}
	defer func() { _ = handle.Close() }()
	stream := handle.Outputs()
	for {
		line, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if line.Stream == core.CommandStreamStderr {
			out.Stderr(line.Text)
			continue
		}
		out.Stdout(line.Text)
	}
	result, err := handle.Wait(ctx)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("exit status %d", result.ExitCode)
	}
	return nil
}

func bindingEnv(bindings map[string]string) []string {
	env := make([]string, 0, len(bindings))
	for name, value := range bindings {
		name = strings.TrimPrefix(name, "conch-")
		key := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name))
		env = append(env, "CONCH_"+key+"="+value)
	}
	sort.Strings(env)
	return env
}

// DefaultEngines returns the engines keyed by macro file extension.
func DefaultEngines(runner core.Runner) map[string]Engine {
	lisp := LispEngine{}
	return map[string]Engine{
		".lsp":  lisp,
		".lisp": lisp,
		".scm":  lisp,
		".sh":   ShellEngine{Runner: runner},
	}
}
