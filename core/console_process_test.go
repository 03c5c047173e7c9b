package core_test

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"pkt.systems/conch/core"
	"pkt.systems/conch/internal/localrunner"
	"pkt.systems/conch/schema"
)

func TestConsoleRunsRealShell(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	con, err := core.NewConsole(schema.ConsoleConfig{StartDir: t.TempDir(), Banner: []string{}}, core.ConsoleDeps{
		Runner: localrunner.NewRunner(localrunner.Config{}),
	})
	if err != nil {
		t.Fatalf("new console: %v", err)
	}
	defer func() { _ = con.Close() }()
	if err := con.SubmitLine(context.Background(), "echo hello"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := con.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	snap := con.Snapshot()
	var stdout strings.Builder
	for _, seg := range snap.Buffer.Segments {
		if seg.Style == schema.StyleStdout {
			stdout.WriteString(seg.Text)
		}
	}
	if stdout.String() != "hello\n" {
		t.Fatalf("expected hello, got %q", stdout.String())
	}
}

func TestConsoleStopInterruptsRealProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	con, err := core.NewConsole(schema.ConsoleConfig{StartDir: t.TempDir(), Banner: []string{}}, core.ConsoleDeps{
		Runner: localrunner.NewRunner(localrunner.Config{}),
	})
	if err != nil {
		t.Fatalf("new console: %v", err)
	}
	defer func() { _ = con.Close() }()
	if err := con.SubmitLine(context.Background(), "sleep 30"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if !con.Stop() {
		t.Fatalf("expected a running process")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := con.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	snap := con.Snapshot()
	if snap.State != schema.StateIdle || !snap.Editable {
		t.Fatalf("expected idle console after stop")
	}
	found := false
	for _, seg := range snap.Buffer.Segments {
		if seg.Style == schema.StyleException && strings.Contains(seg.Text, "process forcibly terminated") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected termination notice")
	}
}

func TestConsoleSurvivesOverlongOutputLine(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	con, err := core.NewConsole(schema.ConsoleConfig{StartDir: t.TempDir(), Banner: []string{}}, core.ConsoleDeps{
		Runner: localrunner.NewRunner(localrunner.Config{}),
	})
	if err != nil {
		t.Fatalf("new console: %v", err)
	}
	defer func() { _ = con.Close() }()
	line := `head -c 3000000 /dev/zero | tr '\000' a; echo; echo done`
	if err := con.SubmitLine(context.Background(), line); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := con.Wait(ctx); err != nil {
		t.Fatalf("wait: %v (state %s)", err, con.State())
	}
	snap := con.Snapshot()
	if snap.State != schema.StateIdle || !snap.Editable {
		t.Fatalf("expected idle editable console, got %s editable=%v", snap.State, snap.Editable)
	}
	var stdout strings.Builder
	for _, seg := range snap.Buffer.Segments {
		if seg.Style == schema.StyleStdout {
			stdout.WriteString(seg.Text)
		}
	}
	out := stdout.String()
	if !strings.HasSuffix(out, "done\n") {
		t.Fatalf("expected trailing done line, got ...%q", out[max(0, len(out)-40):])
	}
	if got := strings.Count(out, "a"); got != 3000000 {
		t.Fatalf("expected 3000000 bytes of output, got %d", got)
	}
}
