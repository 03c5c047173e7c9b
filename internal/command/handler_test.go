package command

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"pkt.systems/conch/core"
	"pkt.systems/conch/internal/macro"
	"pkt.systems/conch/internal/workspace"
	"pkt.systems/conch/schema"
)

type fakeHost struct {
	mu     sync.Mutex
	opened []string
	err    error
}

func (h *fakeHost) OpenFile(_ context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.opened = append(h.opened, path)
	return nil
}

func (h *fakeHost) CurrentFile() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.opened) == 0 {
		return ""
	}
	return h.opened[len(h.opened)-1]
}

func (h *fakeHost) ReportError(context.Context, error) {}

type fakeMacros struct {
	macros   []macro.Macro
	bindings map[string]string
}

func (m *fakeMacros) List() []macro.Macro { return m.macros }

func (m *fakeMacros) Run(_ context.Context, name string, bindings map[string]string, out macro.Output) error {
	if name != "hello" {
		return schema.ErrUnknownMacro
	}
	m.bindings = bindings
	out.Stdout("hello from " + bindings[macro.BindingDir])
	out.Stderr("warning")
	return nil
}

type fakePrefs struct {
	recent []string
	theme  schema.ThemeName
}

func (p *fakePrefs) Recent(context.Context) ([]string, error) { return p.recent, nil }

func (p *fakePrefs) SaveTheme(_ context.Context, theme schema.ThemeName) error {
	p.theme = theme
	return nil
}

func canonicalTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	return dir
}

func newTestConsole(t *testing.T, cfg HandlerConfig, host core.Host) (*core.Console, *Handler, string) {
	t.Helper()
	dir := canonicalTempDir(t)
	handler := NewHandler(cfg)
	console, err := core.NewConsole(schema.ConsoleConfig{StartDir: dir, Banner: []string{}}, core.ConsoleDeps{
		Dispatcher: handler,
		Host:       host,
	})
	if err != nil {
		t.Fatalf("new console: %v", err)
	}
	t.Cleanup(func() { _ = console.Close() })
	return console, handler, dir
}

func submit(t *testing.T, console *core.Console, line string) {
	t.Helper()
	if err := console.SubmitLine(context.Background(), line); err != nil {
		t.Fatalf("submit %q: %v", line, err)
	}
}

func styledLines(console *core.Console, style schema.Style) []string {
	var b strings.Builder
	for _, seg := range console.Snapshot().Buffer.Segments {
		if seg.Style == style {
			b.WriteString(seg.Text)
		}
	}
	text := strings.TrimSuffix(b.String(), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func TestPwdPrintsCanonicalDir(t *testing.T) {
	console, _, dir := newTestConsole(t, HandlerConfig{}, nil)
	submit(t, console, "pwd")
	out := styledLines(console, schema.StyleStdout)
	if len(out) != 1 || out[0] != dir {
		t.Fatalf("expected pwd output %q, got %v", dir, out)
	}
	if console.State() != schema.StateIdle {
		t.Fatalf("expected idle console, got %s", console.State())
	}
}

func TestPwdWithArgumentsIsIncorrectParamCount(t *testing.T) {
	console, handler, dir := newTestConsole(t, HandlerConfig{}, nil)
	handled, err := handler.Dispatch(context.Background(), console, "pwd extra")
	if !handled {
		t.Fatalf("expected pwd to be handled")
	}
	if !errors.Is(err, schema.ErrIncorrectParamCount) {
		t.Fatalf("expected ErrIncorrectParamCount, got %v", err)
	}

	submit(t, console, "pwd extra")
	stderr := styledLines(console, schema.StyleStderr)
	if len(stderr) != 1 || !strings.Contains(stderr[0], "incorrect parameter count") {
		t.Fatalf("expected incorrect parameter count error, got %v", stderr)
	}
	if console.WorkingDir() != dir {
		t.Fatalf("expected working dir unchanged")
	}
	if !strings.HasSuffix(console.Snapshot().Buffer.Segments[len(console.Snapshot().Buffer.Segments)-1].Text, "> ") {
		t.Fatalf("expected prompt after error")
	}
}

func TestCdMissingDirectoryKeepsState(t *testing.T) {
	console, _, dir := newTestConsole(t, HandlerConfig{}, nil)
	missing := filepath.Join(dir, "does", "not", "exist")
	submit(t, console, "cd "+missing)
	stderr := styledLines(console, schema.StyleStderr)
	if len(stderr) != 1 || stderr[0] != "directory does not exist: "+missing {
		t.Fatalf("unexpected error output: %v", stderr)
	}
	if console.WorkingDir() != dir {
		t.Fatalf("expected working dir unchanged, got %q", console.WorkingDir())
	}
}

func TestCdDashRoundTrip(t *testing.T) {
	console, _, dir := newTestConsole(t, HandlerConfig{}, nil)
	sub := filepath.Join(dir, "sub dir")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	submit(t, console, `cd "sub dir"`)
	if console.WorkingDir() != sub {
		t.Fatalf("expected %q, got %q", sub, console.WorkingDir())
	}
	submit(t, console, "cd -")
	if console.WorkingDir() != dir {
		t.Fatalf("expected round trip to %q, got %q", dir, console.WorkingDir())
	}
	submit(t, console, "cd -")
	if console.WorkingDir() != sub {
		t.Fatalf("expected toggle back to %q, got %q", sub, console.WorkingDir())
	}
}

func TestCdTooManyArguments(t *testing.T) {
	console, handler, _ := newTestConsole(t, HandlerConfig{}, nil)
	_, err := handler.Dispatch(context.Background(), console, "cd a b")
	if !errors.Is(err, schema.ErrIncorrectParamCount) {
		t.Fatalf("expected ErrIncorrectParamCount, got %v", err)
	}
}

func TestNonBuiltinNotHandled(t *testing.T) {
	console, handler, _ := newTestConsole(t, HandlerConfig{}, nil)
	for _, line := range []string{"echo hi", "pwdx", "ls -la"} {
		handled, err := handler.Dispatch(context.Background(), console, line)
		if handled || err != nil {
			t.Fatalf("expected %q to fall through, got handled=%v err=%v", line, handled, err)
		}
	}
}

func TestUnterminatedQuoteIsReported(t *testing.T) {
	console, handler, _ := newTestConsole(t, HandlerConfig{}, nil)
	handled, err := handler.Dispatch(context.Background(), console, `cd "unterminated`)
	if !handled || err == nil {
		t.Fatalf("expected parse error, got handled=%v err=%v", handled, err)
	}
}

func TestClearReprintsPrompt(t *testing.T) {
	console, _, _ := newTestConsole(t, HandlerConfig{}, nil)
	submit(t, console, "pwd")
	submit(t, console, "cls")
	snap := console.Snapshot()
	if len(snap.Buffer.Segments) != 1 || snap.Buffer.Segments[0].Style != schema.StylePrompt {
		t.Fatalf("expected only a prompt after clear, got %+v", snap.Buffer.Segments)
	}
}

func TestOpenDelegatesToHost(t *testing.T) {
	host := &fakeHost{}
	console, _, dir := newTestConsole(t, HandlerConfig{}, host)
	file := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	submit(t, console, "open notes.txt")
	if host.CurrentFile() != file {
		t.Fatalf("expected host to open %q, got %v", file, host.opened)
	}
}

func TestOpenMissingFile(t *testing.T) {
	host := &fakeHost{}
	console, handler, dir := newTestConsole(t, HandlerConfig{}, host)
	_, err := handler.Dispatch(context.Background(), console, "edit missing.txt")
	if !errors.Is(err, schema.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	_, err = handler.Dispatch(context.Background(), console, "open "+dir)
	if !errors.Is(err, schema.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound for directory, got %v", err)
	}
	if len(host.opened) != 0 {
		t.Fatalf("expected nothing opened")
	}
}

func TestWorkspaceCommands(t *testing.T) {
	wsPath := filepath.Join(t.TempDir(), "demo.xml")
	store, err := workspace.Open(wsPath, nil)
	if err != nil {
		t.Fatalf("open workspace: %v", err)
	}
	console, handler, dir := newTestConsole(t, HandlerConfig{Workspace: store}, nil)
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	for _, line := range []string{"ws new-project app", "ws add app main.go", "ws files app", "ws", "ws save"} {
		handled, err := handler.Dispatch(context.Background(), console, line)
		if !handled || err != nil {
			t.Fatalf("%q: handled=%v err=%v", line, handled, err)
		}
	}
	out := strings.Join(styledLines(console, schema.StyleStdout), "\n")
	for _, want := range []string{"project created: app", "added main.go to app", filepath.Join(dir, "main.go"), "workspace: demo", "workspace saved"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if _, err := os.Stat(wsPath); err != nil {
		t.Fatalf("expected workspace file: %v", err)
	}

	_, err = handler.Dispatch(context.Background(), console, "ws new-project app")
	if !errors.Is(err, schema.ErrProjectExists) {
		t.Fatalf("expected ErrProjectExists, got %v", err)
	}
	_, err = handler.Dispatch(context.Background(), console, "ws add nope main.go")
	if !errors.Is(err, schema.ErrUnknownProject) {
		t.Fatalf("expected ErrUnknownProject, got %v", err)
	}
	_, err = handler.Dispatch(context.Background(), console, "ws add app")
	if !errors.Is(err, schema.ErrIncorrectParamCount) {
		t.Fatalf("expected ErrIncorrectParamCount, got %v", err)
	}
}

func TestWorkspaceUnavailable(t *testing.T) {
	console, handler, _ := newTestConsole(t, HandlerConfig{}, nil)
	if _, err := handler.Dispatch(context.Background(), console, "ws"); err == nil {
		t.Fatalf("expected error without workspace")
	}
}

func TestMacroRunStreamsOutput(t *testing.T) {
	macros := &fakeMacros{macros: []macro.Macro{{Name: "hello", Description: "greets"}}}
	host := &fakeHost{opened: []string{"/tmp/current.txt"}}
	console, _, dir := newTestConsole(t, HandlerConfig{Macros: macros}, host)

	submit(t, console, "macro list")
	submit(t, console, "macro run hello")
	stdout := styledLines(console, schema.StyleStdout)
	if len(stdout) != 2 || stdout[0] != "hello - greets" || stdout[1] != "hello from "+dir {
		t.Fatalf("unexpected stdout: %v", stdout)
	}
	if stderr := styledLines(console, schema.StyleStderr); len(stderr) != 1 || stderr[0] != "warning" {
		t.Fatalf("unexpected stderr: %v", stderr)
	}
	if macros.bindings[macro.BindingFile] != "/tmp/current.txt" || macros.bindings[macro.BindingConsole] != string(console.ID()) {
		t.Fatalf("unexpected bindings: %v", macros.bindings)
	}

	submit(t, console, "macro run missing")
	if stderr := styledLines(console, schema.StyleStderr); len(stderr) != 2 || stderr[1] != schema.ErrUnknownMacro.Error() {
		t.Fatalf("expected unknown macro error, got %v", stderr)
	}
}

func TestThemeSetsAndPersists(t *testing.T) {
	prefs := &fakePrefs{}
	console, handler, _ := newTestConsole(t, HandlerConfig{Preferences: prefs}, nil)
	if _, err := handler.Dispatch(context.Background(), console, "theme muted"); err != nil {
		t.Fatalf("theme: %v", err)
	}
	if console.Theme() != "orca" || prefs.theme != "orca" {
		t.Fatalf("expected orca theme, got console=%q prefs=%q", console.Theme(), prefs.theme)
	}
	_, err := handler.Dispatch(context.Background(), console, "theme neon")
	if !errors.Is(err, schema.ErrUnknownTheme) {
		t.Fatalf("expected ErrUnknownTheme, got %v", err)
	}
}

func TestRecentListsFiles(t *testing.T) {
	prefs := &fakePrefs{recent: []string{"/a", "/b"}}
	console, _, _ := newTestConsole(t, HandlerConfig{Preferences: prefs}, nil)
	submit(t, console, "recent")
	stdout := styledLines(console, schema.StyleStdout)
	if len(stdout) != 2 || !strings.HasSuffix(stdout[0], "/a") || !strings.HasSuffix(stdout[1], "/b") {
		t.Fatalf("unexpected recent output: %v", stdout)
	}
}

func TestHistoryListsSubmittedCommands(t *testing.T) {
	console, _, _ := newTestConsole(t, HandlerConfig{}, nil)
	submit(t, console, "pwd")
	submit(t, console, "history")
	stdout := styledLines(console, schema.StyleStdout)
	if len(stdout) < 3 || stdout[1] != "   1  pwd" || stdout[2] != "   2  history" {
		t.Fatalf("unexpected history output: %v", stdout)
	}
}

type recordingRunner struct {
	mu       sync.Mutex
	commands []string
}

func (r *recordingRunner) RunCommand(_ context.Context, req core.RunCommandRequest) (core.CommandHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, req.Command)
	return nil, errors.New("runner disabled in test")
}

func TestExternalPrefixSkipsBuiltins(t *testing.T) {
	runner := &recordingRunner{}
	handler := NewHandler(HandlerConfig{})
	dir := canonicalTempDir(t)
	console, err := core.NewConsole(schema.ConsoleConfig{StartDir: dir, Banner: []string{}}, core.ConsoleDeps{
		Runner:     runner,
		Dispatcher: handler,
	})
	if err != nil {
		t.Fatalf("new console: %v", err)
	}
	t.Cleanup(func() { _ = console.Close() })

	submit(t, console, "!history")
	runner.mu.Lock()
	commands := append([]string(nil), runner.commands...)
	runner.mu.Unlock()
	if want := core.ShellCommandLine(runtime.GOOS, dir, "history"); len(commands) != 1 || commands[0] != want {
		t.Fatalf("expected history to reach the runner, got %v", commands)
	}
	if out := styledLines(console, schema.StyleStdout); len(out) != 0 {
		t.Fatalf("expected builtin history to be skipped, got %v", out)
	}

	submit(t, console, "help")
	help := strings.Join(styledLines(console, schema.StyleStdout), "\n")
	if !strings.Contains(help, core.ExternalPrefix+"history") {
		t.Fatalf("expected help to mention the %q prefix, got %q", core.ExternalPrefix, help)
	}
}

func TestTidyWritesFile(t *testing.T) {
	console, _, dir := newTestConsole(t, HandlerConfig{}, nil)
	path := filepath.Join(dir, "data.json")
	if err := os.WriteFile(path, []byte(`{"a":1}`), 0o640); err != nil {
		t.Fatalf("write: %v", err)
	}
	submit(t, console, "tidy data.json")
	data, _ := os.ReadFile(path)
	if string(data) != `{"a":1}` {
		t.Fatalf("expected dry run to keep file, got %q", data)
	}
	submit(t, console, "tidy data.json -w")
	data, _ = os.ReadFile(path)
	if string(data) != "{\n  \"a\": 1\n}\n" {
		t.Fatalf("unexpected tidied file: %q", data)
	}
	stdout := styledLines(console, schema.StyleStdout)
	if last := stdout[len(stdout)-1]; !strings.HasPrefix(last, "tidied data.json: +") {
		t.Fatalf("unexpected summary: %q", last)
	}
}

func TestTasksAndTree(t *testing.T) {
	console, _, dir := newTestConsole(t, HandlerConfig{TreeDepth: 3}, nil)
	if err := os.MkdirAll(filepath.Join(dir, "pkg"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pkg", "a.go"), []byte("// TODO: finish\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	submit(t, console, "tasks")
	submit(t, console, "tree")
	stdout := styledLines(console, schema.StyleStdout)
	want := []string{
		"pkg/a.go:1: TODO finish",
		"1 task(s)",
		filepath.Base(dir) + "/",
		"└── pkg/",
		"    └── a.go",
		"1 directories, 1 files",
	}
	if strings.Join(stdout, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected output:\n%s", strings.Join(stdout, "\n"))
	}
}

func TestHeapAndFormatBytes(t *testing.T) {
	if got := formatHeap(512*1024, 1024*1024); got != "heap: 512.0 KiB / 1.0 MiB (50%)" {
		t.Fatalf("unexpected heap line %q", got)
	}
	if got := formatBytes(12); got != "12 B" {
		t.Fatalf("unexpected bytes %q", got)
	}
	console, _, _ := newTestConsole(t, HandlerConfig{}, nil)
	submit(t, console, "heap")
	if out := styledLines(console, schema.StyleStdout); len(out) != 1 || !strings.HasPrefix(out[0], "heap: ") {
		t.Fatalf("unexpected heap output: %v", out)
	}
}

func TestParseQuotedArguments(t *testing.T) {
	cmd, err := Parse(`  CD "my dir"  `)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cmd.Name != "cd" || len(cmd.Args) != 1 || cmd.Args[0] != "my dir" || cmd.Remainder != `"my dir"` {
		t.Fatalf("unexpected command %+v", cmd)
	}
	cmd, err = Parse("")
	if err != nil || cmd.Name != "" {
		t.Fatalf("expected empty command, got %+v %v", cmd, err)
	}
}
