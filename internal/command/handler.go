package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"pkt.systems/conch/core"
	"pkt.systems/conch/internal/logx"
	"pkt.systems/conch/internal/macro"
	"pkt.systems/conch/internal/version"
	"pkt.systems/conch/internal/workspace"
	"pkt.systems/conch/schema"
	"pkt.systems/pslog"
)

// HandlerConfig configures built-in command behavior. Every store is
// optional; the matching built-ins report that they are unavailable.
type HandlerConfig struct {
	Workspace           WorkspaceStore
	Macros              MacroRunner
	Preferences         PreferenceStore
	TreeDepth           int
	DisableAuditLogging bool
}

// WorkspaceStore is the persisted workspace used by the ws built-in.
type WorkspaceStore interface {
	Path() string
	View(fn func(*workspace.Workspace))
	Update(fn func(*workspace.Workspace) error) error
	Save() error
}

// MacroRunner lists and runs macros.
type MacroRunner interface {
	List() []macro.Macro
	Run(ctx context.Context, name string, bindings map[string]string, out macro.Output) error
}

// PreferenceStore exposes per-profile preferences.
type PreferenceStore interface {
	Recent(ctx context.Context) ([]string, error)
	SaveTheme(ctx context.Context, theme schema.ThemeName) error
}

// Handler routes built-in commands. Lines whose first token is not a
// built-in are left to the external runner.
type Handler struct {
	cfg HandlerConfig
}

var _ core.Dispatcher = (*Handler)(nil)

// NewHandler constructs a command handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{cfg: cfg}
}

// Builtins returns the recognized command names, aliases included.
func Builtins() []string {
	names := make([]string, 0, len(builtinNames))
	for name := range builtinNames {
		names = append(names, name)
	}
	return names
}

var builtinNames = map[string]struct{}{
	"cd": {}, "pwd": {}, "clear": {}, "cls": {}, "open": {}, "edit": {},
	"ws": {}, "macro": {}, "tasks": {}, "tidy": {}, "tree": {}, "heap": {},
	"recent": {}, "theme": {}, "help": {}, "history": {}, "version": {},
}

// IsBuiltin reports whether line starts with a built-in command name.
func IsBuiltin(line string) bool {
	_, ok := builtinNames[strings.ToLower(firstToken(line))]
	return ok
}

// Dispatch executes line when it names a built-in.
func (h *Handler) Dispatch(ctx context.Context, shell core.Shell, line string) (bool, error) {
	if ctx == nil {
		return false, errors.New("missing context")
	}
	if !IsBuiltin(line) {
		return false, nil
	}
	baseLog := logx.WithConsole(ctx, shell.ID())
	ctx = logx.ContextWithConsoleLogger(ctx, baseLog, shell.ID())
	log := baseLog.With("input_len", len(line))
	cmd, err := Parse(line)
	if err != nil {
		log.Warn("command builtin rejected", "reason", "parse", "err", err)
		return true, err
	}
	if !h.cfg.DisableAuditLogging {
		log.Debug("audit command", "command_type", "builtin", "command", strings.TrimSpace(line), "workdir", shell.WorkingDir())
	}
	log = log.With("command", cmd.Name, "args", len(cmd.Args))
	log.Info("command builtin request")
	switch cmd.Name {
	case "cd":
		return true, h.handleCd(ctx, shell, cmd)
	case "pwd":
		return true, h.handlePwd(ctx, shell, cmd)
	case "clear", "cls":
		return true, h.handleClear(ctx, shell, cmd)
	case "open", "edit":
		return true, h.handleOpen(ctx, shell, cmd)
	case "ws":
		return true, h.handleWorkspace(ctx, shell, cmd)
	case "macro":
		return true, h.handleMacro(ctx, shell, cmd)
	case "tasks":
		return true, h.handleTasks(ctx, shell, cmd)
	case "tidy":
		return true, h.handleTidy(ctx, shell, cmd)
	case "tree":
		return true, h.handleTree(ctx, shell, cmd)
	case "heap":
		return true, h.handleHeap(ctx, shell, cmd)
	case "recent":
		return true, h.handleRecent(ctx, shell, cmd)
	case "theme":
		return true, h.handleTheme(ctx, shell, cmd)
	case "help":
		return true, h.handleHelp(ctx, shell, cmd)
	case "history":
		return true, h.handleHistory(ctx, shell, cmd)
	case "version":
		return true, h.handleVersion(ctx, shell, cmd)
	default:
		log.Warn("command builtin rejected", "reason", "unknown")
		return true, fmt.Errorf("unknown command: %s", cmd.Name)
	}
}

func usageError(usage string) error {
	return fmt.Errorf("%w: usage: %s", schema.ErrIncorrectParamCount, usage)
}

func (h *Handler) handleCd(ctx context.Context, shell core.Shell, cmd Command) error {
	if len(cmd.Args) > 1 {
		return usageError("cd [path]")
	}
	target := "~"
	if len(cmd.Args) == 1 {
		target = cmd.Args[0]
	}
	log := pslog.Ctx(ctx).With("target", target)
	dir, err := shell.ChangeDir(target)
	if err != nil {
		log.Debug("command cd failed", "err", err)
		return err
	}
	log.Debug("command cd completed", "workdir", dir)
	return nil
}

func (h *Handler) handlePwd(ctx context.Context, shell core.Shell, cmd Command) error {
	if len(cmd.Args) != 0 {
		return usageError("pwd")
	}
	shell.Append(shell.WorkingDir(), schema.StyleStdout)
	return nil
}

func (h *Handler) handleClear(ctx context.Context, shell core.Shell, cmd Command) error {
	if len(cmd.Args) != 0 {
		return usageError(cmd.Name)
	}
	shell.Clear()
	pslog.Ctx(ctx).Debug("command clear completed")
	return nil
}

func (h *Handler) handleOpen(ctx context.Context, shell core.Shell, cmd Command) error {
	if len(cmd.Args) != 1 {
		return usageError(cmd.Name + " <path>")
	}
	log := pslog.Ctx(ctx)
	path := resolvePath(shell.WorkingDir(), cmd.Args[0])
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		log.Debug("command open rejected", "path", path)
		return fmt.Errorf("%w: %s", schema.ErrFileNotFound, cmd.Args[0])
	}
	host := shell.Host()
	if host == nil {
		return errors.New("no editor attached to this console")
	}
	if err := host.OpenFile(ctx, path); err != nil {
		log.Warn("command open failed", "path", path, "err", err)
		return err
	}
	log.Info("command open completed", "path", path)
	return nil
}

func (h *Handler) handleHeap(ctx context.Context, shell core.Shell, cmd Command) error {
	if len(cmd.Args) != 0 {
		return usageError("heap")
	}
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	shell.Append(formatHeap(stats.HeapAlloc, stats.HeapSys), schema.StyleStdout)
	return nil
}

func formatHeap(used, total uint64) string {
	percent := 0
	if total > 0 {
		percent = int(used * 100 / total)
	}
	return fmt.Sprintf("heap: %s / %s (%d%%)", formatBytes(used), formatBytes(total), percent)
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func (h *Handler) handleRecent(ctx context.Context, shell core.Shell, cmd Command) error {
	if len(cmd.Args) != 0 {
		return usageError("recent")
	}
	if h.cfg.Preferences == nil {
		return errors.New("preferences are not available")
	}
	files, err := h.cfg.Preferences.Recent(ctx)
	if err != nil {
		pslog.Ctx(ctx).Warn("command recent failed", "err", err)
		return err
	}
	if len(files) == 0 {
		shell.Append("no recent files", schema.StyleStdout)
		return nil
	}
	lines := make([]string, 0, len(files))
	for i, file := range files {
		lines = append(lines, fmt.Sprintf("%2d  %s", i+1, file))
	}
	shell.AppendLines(schema.StyleStdout, lines...)
	return nil
}

func (h *Handler) handleTheme(ctx context.Context, shell core.Shell, cmd Command) error {
	log := pslog.Ctx(ctx)
	if len(cmd.Args) > 1 {
		return usageError("theme [name]")
	}
	if len(cmd.Args) == 0 {
		shell.AppendLines(schema.StyleStdout,
			"theme: "+string(shell.Theme()),
			"available themes: "+strings.Join(formatThemes(schema.AvailableThemes()), ", "),
		)
		return nil
	}
	name, ok := schema.NormalizeThemeName(cmd.Args[0])
	if !ok {
		log.Warn("command theme rejected", "theme", cmd.Args[0])
		return fmt.Errorf("%w %q (available: %s)", schema.ErrUnknownTheme, cmd.Args[0], strings.Join(formatThemes(schema.AvailableThemes()), ", "))
	}
	if err := shell.SetTheme(name); err != nil {
		return err
	}
	if h.cfg.Preferences != nil {
		if err := h.cfg.Preferences.SaveTheme(ctx, name); err != nil {
			log.Warn("command theme persist failed", "err", err)
		}
	}
	shell.Append(fmt.Sprintf("theme set to %s", name), schema.StyleStdout)
	log.Info("command theme updated", "theme", name)
	return nil
}

func (h *Handler) handleHelp(ctx context.Context, shell core.Shell, cmd Command) error {
	shell.AppendLines(schema.StyleStdout, helpLines()...)
	return nil
}

func (h *Handler) handleHistory(ctx context.Context, shell core.Shell, cmd Command) error {
	if len(cmd.Args) != 0 {
		return usageError("history")
	}
	entries := shell.History()
	lines := make([]string, 0, len(entries))
	for i, entry := range entries {
		lines = append(lines, fmt.Sprintf("%4d  %s", i+1, entry))
	}
	shell.AppendLines(schema.StyleStdout, lines...)
	return nil
}

func (h *Handler) handleVersion(ctx context.Context, shell core.Shell, cmd Command) error {
	shell.Append(version.String(), schema.StyleStdout)
	return nil
}

func helpLines() []string {
	return []string{
		"Built-in commands:",
		"  cd [path]                 change directory (-, ~, / and relative paths)",
		"  pwd                       print the working directory",
		"  clear, cls                clear the console",
		"  open, edit <file>         open a file in the editor",
		"  ws [new-project|add|rm|files|save] ...",
		"                            manage the workspace",
		"  macro [list|run <name>]   list or run macros",
		"  tasks [dir]               list TODO, FIXME, HACK and XXX markers",
		"  tidy <file> [-w]          pretty-print XML, JSON or YAML",
		"  tree [dir] [depth]        show a directory tree",
		"  heap                      show heap usage",
		"  recent                    list recently opened files",
		"  theme [name]              show or set the theme (" + strings.Join(formatThemes(schema.AvailableThemes()), ", ") + ")",
		"  history                   list submitted commands",
		"  version                   show version information",
		"Anything else runs in the system shell. Prefix a line with " + core.ExternalPrefix + " to skip",
		"the built-ins, e.g. " + core.ExternalPrefix + "history runs the history executable.",
	}
}

func formatThemes(themes []schema.ThemeName) []string {
	out := make([]string, 0, len(themes))
	for _, theme := range themes {
		out = append(out, string(theme))
	}
	return out
}

// resolvePath makes arg absolute against dir, expanding a leading "~".
func resolvePath(dir, arg string) string {
	if arg == "~" || strings.HasPrefix(arg, "~/") || strings.HasPrefix(arg, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			arg = filepath.Join(home, arg[1:])
		}
	}
	if !filepath.IsAbs(arg) {
		arg = filepath.Join(dir, arg)
	}
	return filepath.Clean(arg)
}
