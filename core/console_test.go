package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/conch/schema"
)

type fakeRunner struct {
	mu       sync.Mutex
	requests []RunCommandRequest
	outputs  []CommandOutput
	block    bool
	startErr error
	handles  []*fakeHandle
}

func (r *fakeRunner) RunCommand(ctx context.Context, req RunCommandRequest) (CommandHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.startErr != nil {
		return nil, r.startErr
	}
	ch := make(chan CommandOutput, len(r.outputs))
	for _, out := range r.outputs {
		ch <- out
	}
	h := &fakeHandle{ch: ch}
	if !r.block {
		h.finish()
	}
	r.handles = append(r.handles, h)
	return h, nil
}

func (r *fakeRunner) Requests() []RunCommandRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RunCommandRequest(nil), r.requests...)
}

type fakeHandle struct {
	ch      chan CommandOutput
	once    sync.Once
	mu      sync.Mutex
	signals []ProcessSignal
}

func (h *fakeHandle) finish() {
	h.once.Do(func() { close(h.ch) })
}

func (h *fakeHandle) Outputs() CommandStream { return fakeStream{ch: h.ch} }

func (h *fakeHandle) Signal(_ context.Context, sig ProcessSignal) error {
	h.mu.Lock()
	h.signals = append(h.signals, sig)
	h.mu.Unlock()
	h.finish()
	return nil
}

func (h *fakeHandle) Wait(context.Context) (RunResult, error) { return RunResult{}, nil }

func (h *fakeHandle) Close() error { return nil }

type fakeStream struct {
	ch chan CommandOutput
}

func (s fakeStream) Next(ctx context.Context) (CommandOutput, error) {
	select {
	case out, ok := <-s.ch:
		if !ok {
			return CommandOutput{}, io.EOF
		}
		return out, nil
	case <-ctx.Done():
		return CommandOutput{}, ctx.Err()
	}
}

func (s fakeStream) Close() error { return nil }

type fakeDispatcher struct {
	handlers map[string]func(Shell, string) error
}

func (d fakeDispatcher) Dispatch(_ context.Context, shell Shell, line string) (bool, error) {
	name := strings.Fields(line)[0]
	fn, ok := d.handlers[name]
	if !ok {
		return false, nil
	}
	return true, fn(shell, line)
}

type recordingSink struct {
	mu     sync.Mutex
	events []schema.ConsoleEvent
}

func (s *recordingSink) OnConsoleEvent(event schema.ConsoleEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) Types() []schema.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.EventType, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, event.Type)
	}
	return out
}

func newTestConsole(t *testing.T, deps ConsoleDeps) *Console {
	t.Helper()
	con, err := NewConsole(schema.ConsoleConfig{
		StartDir: t.TempDir(),
		Banner:   []string{},
	}, deps)
	if err != nil {
		t.Fatalf("new console: %v", err)
	}
	t.Cleanup(func() { _ = con.Close() })
	return con
}

func styledText(snap schema.ConsoleSnapshot, style schema.Style) string {
	var b strings.Builder
	for _, seg := range snap.Buffer.Segments {
		if seg.Style == style {
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}

func waitIdle(t *testing.T, con *Console) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := con.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestConsoleStartsWithBannerAndPrompt(t *testing.T) {
	con, err := NewConsole(schema.ConsoleConfig{StartDir: t.TempDir()}, ConsoleDeps{})
	if err != nil {
		t.Fatalf("new console: %v", err)
	}
	snap := con.Snapshot()
	if !snap.Editable || snap.State != schema.StateIdle {
		t.Fatalf("expected idle editable console, got %+v", snap)
	}
	if styledText(snap, schema.StyleBanner) != strings.Join(schema.DefaultBanner, "\n")+"\n" {
		t.Fatalf("unexpected banner %q", styledText(snap, schema.StyleBanner))
	}
	if got := styledText(snap, schema.StylePrompt); got != snap.WorkingDir+"> " {
		t.Fatalf("unexpected prompt %q", got)
	}
	if snap.Buffer.Boundary != snap.Buffer.Length {
		t.Fatalf("expected boundary at end")
	}
}

func TestConsoleRunsExternalCommand(t *testing.T) {
	runner := &fakeRunner{outputs: []CommandOutput{
		{Stream: CommandStreamStdout, Text: "hello"},
		{Stream: CommandStreamStderr, Text: "oops"},
	}}
	con := newTestConsole(t, ConsoleDeps{Runner: runner})
	dir := con.WorkingDir()

	if err := con.SubmitLine(context.Background(), "echo hello"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitIdle(t, con)

	reqs := runner.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one request, got %d", len(reqs))
	}
	if want := ShellCommandLine(runtime.GOOS, dir, "echo hello"); reqs[0].Command != want {
		t.Fatalf("expected command %q, got %q", want, reqs[0].Command)
	}
	snap := con.Snapshot()
	if got := styledText(snap, schema.StyleStdout); got != "hello\n" {
		t.Fatalf("unexpected stdout %q", got)
	}
	if got := styledText(snap, schema.StyleStderr); got != "oops\n" {
		t.Fatalf("unexpected stderr %q", got)
	}
	if !strings.HasSuffix(snap.Buffer.Segments[len(snap.Buffer.Segments)-1].Text, "> ") {
		t.Fatalf("expected trailing prompt")
	}
	if snap.State != schema.StateIdle || !snap.Editable {
		t.Fatalf("expected idle console after run")
	}
	if hist := con.History(); len(hist) != 1 || hist[0] != "echo hello" {
		t.Fatalf("unexpected history %+v", hist)
	}
}

func TestConsoleRejectsInputWhileRunning(t *testing.T) {
	runner := &fakeRunner{block: true}
	con := newTestConsole(t, ConsoleDeps{Runner: runner})

	if err := con.SubmitLine(context.Background(), "sleep 10"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if con.State() != schema.StateRunning {
		t.Fatalf("expected running state, got %s", con.State())
	}
	if err := con.InsertText("x"); !errors.Is(err, schema.ErrConsoleBusy) {
		t.Fatalf("expected busy on edit, got %v", err)
	}
	if err := con.SubmitLine(context.Background(), "ls"); !errors.Is(err, schema.ErrConsoleBusy) {
		t.Fatalf("expected busy on submit, got %v", err)
	}
	if !con.Stop() {
		t.Fatalf("expected stop to find a process")
	}
	waitIdle(t, con)
	if len(runner.Requests()) != 1 {
		t.Fatalf("expected rejected submit not to run")
	}
	if !strings.Contains(styledText(con.Snapshot(), schema.StyleException), "process forcibly terminated") {
		t.Fatalf("expected termination message")
	}
	if runner.handles[0].signals[0] != ProcessSignalTERM {
		t.Fatalf("expected TERM first, got %v", runner.handles[0].signals)
	}
}

func TestConsoleStopWithoutProcess(t *testing.T) {
	con := newTestConsole(t, ConsoleDeps{})
	if con.Stop() {
		t.Fatalf("expected stop to report no process")
	}
}

func TestConsoleBuiltinErrorsUseErrorStyle(t *testing.T) {
	runner := &fakeRunner{}
	con := newTestConsole(t, ConsoleDeps{
		Runner: runner,
		Dispatcher: fakeDispatcher{handlers: map[string]func(Shell, string) error{
			"pwd": func(Shell, string) error { return schema.ErrIncorrectParamCount },
		}},
	})
	if err := con.SubmitLine(context.Background(), "pwd extra"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(runner.Requests()) != 0 {
		t.Fatalf("expected builtin not to reach runner")
	}
	snap := con.Snapshot()
	if got := styledText(snap, schema.StyleStderr); got != "incorrect parameter count\n" {
		t.Fatalf("unexpected stderr %q", got)
	}
	if snap.State != schema.StateIdle {
		t.Fatalf("expected idle after builtin")
	}
}

func TestConsoleBuiltinPanicIsReported(t *testing.T) {
	con := newTestConsole(t, ConsoleDeps{
		Dispatcher: fakeDispatcher{handlers: map[string]func(Shell, string) error{
			"boom": func(Shell, string) error { panic("kaput") },
		}},
	})
	if err := con.SubmitLine(context.Background(), "boom"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	snap := con.Snapshot()
	if !strings.HasPrefix(styledText(snap, schema.StyleException), "panic: kaput\n") {
		t.Fatalf("expected panic in exception style, got %q", styledText(snap, schema.StyleException))
	}
	if !snap.Editable {
		t.Fatalf("expected console to recover")
	}
}

func TestConsoleBuiltinCanChangeDir(t *testing.T) {
	con := newTestConsole(t, ConsoleDeps{
		Dispatcher: fakeDispatcher{handlers: map[string]func(Shell, string) error{
			"cd": func(shell Shell, line string) error {
				_, err := shell.ChangeDir(strings.TrimSpace(strings.TrimPrefix(line, "cd")))
				return err
			},
		}},
	})
	start := con.WorkingDir()
	if err := con.SubmitLine(context.Background(), "cd /does/not/exist"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if con.WorkingDir() != start {
		t.Fatalf("expected working dir unchanged")
	}
	if !strings.Contains(styledText(con.Snapshot(), schema.StyleStderr), "directory does not exist") {
		t.Fatalf("expected missing dir message")
	}
}

func TestConsoleBlankSubmitOnlyPrompts(t *testing.T) {
	runner := &fakeRunner{}
	con := newTestConsole(t, ConsoleDeps{Runner: runner})
	before := con.Snapshot().Buffer.Lines
	if err := con.SubmitLine(context.Background(), "   "); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(runner.Requests()) != 0 || len(con.History()) != 0 {
		t.Fatalf("expected blank line to be ignored")
	}
	if got := con.Snapshot().Buffer.Lines; got != before+1 {
		t.Fatalf("expected one new line, got %d -> %d", before, got)
	}
}

func TestConsoleRecallHistory(t *testing.T) {
	con := newTestConsole(t, ConsoleDeps{
		Dispatcher: fakeDispatcher{handlers: map[string]func(Shell, string) error{
			"a": func(Shell, string) error { return nil },
			"b": func(Shell, string) error { return nil },
		}},
	})
	_ = con.SubmitLine(context.Background(), "a")
	_ = con.SubmitLine(context.Background(), "b")
	if err := con.RecallHistory(-1); err != nil {
		t.Fatalf("recall: %v", err)
	}
	if con.Input() != "b" {
		t.Fatalf("expected b, got %q", con.Input())
	}
	_ = con.RecallHistory(-1)
	if err := con.RecallHistory(-1); !errors.Is(err, schema.ErrHistoryBounds) {
		t.Fatalf("expected bounds error, got %v", err)
	}
	if con.Input() != "a" {
		t.Fatalf("expected input unchanged at a, got %q", con.Input())
	}
}

func TestConsoleStartFailureIsException(t *testing.T) {
	runner := &fakeRunner{startErr: errors.New("no shell")}
	con := newTestConsole(t, ConsoleDeps{Runner: runner})
	if err := con.SubmitLine(context.Background(), "ls"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitIdle(t, con)
	if got := styledText(con.Snapshot(), schema.StyleException); got != "no shell\n" {
		t.Fatalf("unexpected exception text %q", got)
	}
	if con.State() != schema.StateIdle {
		t.Fatalf("expected idle")
	}
}

func TestConsoleWithoutRunnerReportsError(t *testing.T) {
	con := newTestConsole(t, ConsoleDeps{})
	_ = con.SubmitLine(context.Background(), "ls")
	if !strings.Contains(styledText(con.Snapshot(), schema.StyleStderr), schema.ErrRunnerUnavailable.Error()) {
		t.Fatalf("expected runner unavailable message")
	}
}

func TestConsoleEmitsEvents(t *testing.T) {
	sink := &recordingSink{}
	con := newTestConsole(t, ConsoleDeps{
		EventSink: sink,
		Runner:    &fakeRunner{outputs: []CommandOutput{{Stream: CommandStreamStdout, Text: "x"}}},
	})
	_ = con.SubmitLine(context.Background(), "echo x")
	waitIdle(t, con)

	types := sink.Types()
	want := []schema.EventType{schema.EventPrompt, schema.EventInput, schema.EventAppend, schema.EventState, schema.EventState, schema.EventAppend, schema.EventState, schema.EventPrompt}
	if len(types) != len(want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, types)
		}
	}
}

func TestConsoleClosedRejectsSubmit(t *testing.T) {
	con := newTestConsole(t, ConsoleDeps{})
	_ = con.Close()
	if err := con.SubmitLine(context.Background(), "ls"); !errors.Is(err, schema.ErrConsoleClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestConsoleClearReprintsBanner(t *testing.T) {
	con, err := NewConsole(schema.ConsoleConfig{StartDir: t.TempDir(), Banner: []string{"welcome"}}, ConsoleDeps{})
	if err != nil {
		t.Fatalf("new console: %v", err)
	}
	con.Append("noise", schema.StyleStdout)
	con.ClearScreen()
	snap := con.Snapshot()
	if styledText(snap, schema.StyleStdout) != "" {
		t.Fatalf("expected output cleared")
	}
	if styledText(snap, schema.StyleBanner) != "welcome\n" {
		t.Fatalf("expected banner after clear")
	}
	if snap.Buffer.Boundary != snap.Buffer.Length {
		t.Fatalf("expected fresh prompt")
	}
}

func TestShellCommandLine(t *testing.T) {
	if got := ShellCommandLine("linux", "/tmp/it's", "ls"); got != `cd '/tmp/it'"'"'s' && ls` {
		t.Fatalf("unexpected posix line %q", got)
	}
	if got := ShellCommandLine("windows", `C:\src`, "dir"); got != `cd /d "C:\src" && dir` {
		t.Fatalf("unexpected windows line %q", got)
	}
}

func TestConsoleConcurrentAppendsKeepPerWriterOrder(t *testing.T) {
	con := newTestConsole(t, ConsoleDeps{})
	const writers, lines = 4, 50

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range lines {
				con.Append(fmt.Sprintf("w%d-%d", w, n), schema.StyleStdout)
			}
		}()
	}
	wg.Wait()

	got := strings.Split(strings.TrimSuffix(styledText(con.Snapshot(), schema.StyleStdout), "\n"), "\n")
	if len(got) != writers*lines {
		t.Fatalf("expected %d lines, got %d", writers*lines, len(got))
	}
	next := make([]int, writers)
	for _, line := range got {
		var w, n int
		if _, err := fmt.Sscanf(line, "w%d-%d", &w, &n); err != nil {
			t.Fatalf("corrupted line %q: %v", line, err)
		}
		if n != next[w] {
			t.Fatalf("writer %d out of order: got %d, want %d", w, n, next[w])
		}
		next[w]++
	}
}

func TestConsoleCaretCannotEnterFrozenOutput(t *testing.T) {
	sink := &recordingSink{}
	con := newTestConsole(t, ConsoleDeps{EventSink: sink})
	if err := con.InsertText("ab"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	con.MoveCaret(-5)
	snap := con.Snapshot()
	if snap.Buffer.Caret != snap.Buffer.Boundary {
		t.Fatalf("caret %d left the input (boundary %d)", snap.Buffer.Caret, snap.Buffer.Boundary)
	}
	types := sink.Types()
	if len(types) == 0 || types[len(types)-1] != schema.EventBell {
		t.Fatalf("expected bell after clamped move, got %v", types)
	}
	if err := con.SetCaret(0); !errors.Is(err, schema.ErrReadOnlyRegion) {
		t.Fatalf("expected read-only error, got %v", err)
	}
}

func TestConsoleExternalPrefixBypassesBuiltins(t *testing.T) {
	runner := &fakeRunner{}
	var dispatched []string
	con := newTestConsole(t, ConsoleDeps{
		Runner: runner,
		Dispatcher: fakeDispatcher{handlers: map[string]func(Shell, string) error{
			"history": func(_ Shell, line string) error {
				dispatched = append(dispatched, line)
				return nil
			},
		}},
	})
	if err := con.SubmitLine(context.Background(), "! history -c"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := con.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(dispatched) != 0 {
		t.Fatalf("expected builtin to be skipped, got %v", dispatched)
	}
	reqs := runner.Requests()
	if want := ShellCommandLine(runtime.GOOS, con.WorkingDir(), "history -c"); len(reqs) != 1 || reqs[0].Command != want {
		t.Fatalf("expected runner to get history -c, got %+v", reqs)
	}
	if hist := con.History(); len(hist) != 1 || hist[0] != "! history -c" {
		t.Fatalf("expected history to keep the prefix, got %v", hist)
	}

	if err := con.SubmitLine(context.Background(), "!"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(runner.Requests()) != 1 {
		t.Fatalf("expected bare prefix not to reach the runner")
	}
	if !strings.Contains(styledText(con.Snapshot(), schema.StyleStderr), "nothing to run") {
		t.Fatalf("expected error for bare prefix")
	}
}

type blockingDispatcher struct {
	started chan struct{}
}

func (d blockingDispatcher) Dispatch(ctx context.Context, _ Shell, _ string) (bool, error) {
	close(d.started)
	<-ctx.Done()
	return true, ctx.Err()
}

func TestConsoleStopCancelsDispatchingBuiltin(t *testing.T) {
	started := make(chan struct{})
	con := newTestConsole(t, ConsoleDeps{Dispatcher: blockingDispatcher{started: started}})
	done := make(chan error, 1)
	go func() { done <- con.SubmitLine(context.Background(), "macro run loop") }()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatalf("builtin never started")
	}
	if !con.Stop() {
		t.Fatalf("expected stop to cancel the builtin")
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("builtin ignored stop")
	}
	snap := con.Snapshot()
	if snap.State != schema.StateIdle || !snap.Editable {
		t.Fatalf("expected idle editable console, got %s", snap.State)
	}
	if got := styledText(snap, schema.StyleException); got != schema.ErrProcessTerminated.Error()+"\n" {
		t.Fatalf("unexpected exception text %q", got)
	}
	if strings.Contains(styledText(snap, schema.StyleStderr), "context canceled") {
		t.Fatalf("expected cancellation not to be reported as a builtin error")
	}
}
