package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"pkt.systems/conch/core"
	"pkt.systems/conch/internal/atomicfile"
	"pkt.systems/conch/internal/fstree"
	"pkt.systems/conch/internal/macro"
	"pkt.systems/conch/internal/tasks"
	"pkt.systems/conch/internal/tidy"
	"pkt.systems/conch/schema"
	"pkt.systems/pslog"
)

// shellOutput streams macro output into the console.
type shellOutput struct {
	shell core.Shell
}

func (o shellOutput) Stdout(line string) { o.shell.Append(line, schema.StyleStdout) }
func (o shellOutput) Stderr(line string) { o.shell.Append(line, schema.StyleStderr) }

func (h *Handler) handleMacro(ctx context.Context, shell core.Shell, cmd Command) error {
	if h.cfg.Macros == nil {
		return errors.New("no macro directory configured")
	}
	if len(cmd.Args) == 0 || (cmd.Args[0] == "list" && len(cmd.Args) == 1) {
		macros := h.cfg.Macros.List()
		if len(macros) == 0 {
			shell.Append("no macros", schema.StyleStdout)
			return nil
		}
		lines := make([]string, 0, len(macros))
		for _, m := range macros {
			line := m.Name
			if m.Description != "" {
				line += " - " + m.Description
			}
			lines = append(lines, line)
		}
		shell.AppendLines(schema.StyleStdout, lines...)
		return nil
	}
	if cmd.Args[0] != "run" || len(cmd.Args) != 2 {
		return usageError("macro [list|run <name>]")
	}
	name := cmd.Args[1]
	log := pslog.Ctx(ctx).With("macro", name)
	if err := h.cfg.Macros.Run(ctx, name, macroBindings(shell), shellOutput{shell: shell}); err != nil {
		log.Debug("command macro failed", "err", err)
		return err
	}
	log.Info("command macro completed")
	return nil
}

func macroBindings(shell core.Shell) map[string]string {
	bindings := map[string]string{
		macro.BindingDir:     shell.WorkingDir(),
		macro.BindingConsole: string(shell.ID()),
		macro.BindingFile:    "",
	}
	if host := shell.Host(); host != nil {
		bindings[macro.BindingFile] = host.CurrentFile()
	}
	return bindings
}

func (h *Handler) handleTasks(ctx context.Context, shell core.Shell, cmd Command) error {
	if len(cmd.Args) > 1 {
		return usageError("tasks [dir]")
	}
	root := shell.WorkingDir()
	if len(cmd.Args) == 1 {
		root = resolvePath(root, cmd.Args[0])
	}
	log := pslog.Ctx(ctx).With("root", root)
	found, err := tasks.Scan(ctx, root, tasks.Options{})
	if err != nil {
		log.Warn("command tasks failed", "err", err)
		return err
	}
	lines := make([]string, 0, len(found)+1)
	for _, task := range found {
		lines = append(lines, task.String())
	}
	lines = append(lines, fmt.Sprintf("%d task(s)", len(found)))
	shell.AppendLines(schema.StyleStdout, lines...)
	log.Info("command tasks completed", "found", len(found))
	return nil
}

func (h *Handler) handleTidy(ctx context.Context, shell core.Shell, cmd Command) error {
	var (
		file  string
		write bool
	)
	for _, arg := range cmd.Args {
		switch {
		case arg == "-w" || arg == "--write":
			write = true
		case file == "":
			file = arg
		default:
			return usageError("tidy <file> [-w]")
		}
	}
	if file == "" {
		return usageError("tidy <file> [-w]")
	}
	path := resolvePath(shell.WorkingDir(), file)
	log := pslog.Ctx(ctx).With("path", path, "write", write)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", schema.ErrFileNotFound, file)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	formatted, err := tidy.Format(path, data)
	if err != nil {
		log.Debug("command tidy failed", "err", err)
		return err
	}
	summary := tidy.Summarize(string(data), string(formatted))
	if !write {
		shell.AppendLines(schema.StyleStdout, splitLines(string(formatted))...)
		shell.Append(summary.String(), schema.StyleStdout)
		return nil
	}
	if summary.Changed() {
		if err := atomicfile.Write(path, formatted, info.Mode().Perm()); err != nil {
			log.Warn("command tidy write failed", "err", err)
			return err
		}
	}
	shell.Append(fmt.Sprintf("tidied %s: %s", file, summary), schema.StyleStdout)
	log.Info("command tidy completed", "added", summary.Added, "removed", summary.Removed)
	return nil
}

func (h *Handler) handleTree(ctx context.Context, shell core.Shell, cmd Command) error {
	if len(cmd.Args) > 2 {
		return usageError("tree [dir] [depth]")
	}
	root := shell.WorkingDir()
	depth := h.cfg.TreeDepth
	if len(cmd.Args) >= 1 {
		root = resolvePath(root, cmd.Args[0])
	}
	if len(cmd.Args) == 2 {
		n, err := strconv.Atoi(cmd.Args[1])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid depth %q", cmd.Args[1])
		}
		depth = n
	}
	node, err := fstree.Walk(ctx, root, fstree.Options{Depth: depth})
	if err != nil {
		pslog.Ctx(ctx).Debug("command tree failed", "root", root, "err", err)
		return err
	}
	lines := fstree.Render(node)
	dirs, files := fstree.Count(node)
	lines = append(lines, fmt.Sprintf("%d directories, %d files", dirs, files))
	shell.AppendLines(schema.StyleStdout, lines...)
	return nil
}

func splitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}
