package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"pkt.systems/pslog"
)

func newCaptureLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

func TestWithWorkspaceAddsFields(t *testing.T) {
	capture := &logCapture{}
	log := WithWorkspace(newCaptureLogger(capture), "demo", "")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["workspace"] != "demo" {
		t.Fatalf("expected workspace field, got %+v", entry)
	}
	if _, ok := entry["workspace_path"]; ok {
		t.Fatalf("did not expect workspace_path for name-only workspace")
	}
}

func TestWithConsoleAddsField(t *testing.T) {
	capture := &logCapture{}
	ctx := pslog.ContextWithLogger(context.Background(), newCaptureLogger(capture))
	log := WithConsole(ctx, "c1")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["console"] != "c1" {
		t.Fatalf("expected console field, got %+v", entry)
	}
}

func TestCopyContextFields(t *testing.T) {
	src := ContextWithFrontendLogger(ContextWithConsole(context.Background(), "c1"), pslog.Ctx(context.Background()), "ssh")
	dst := CopyContextFields(context.Background(), src)
	if dst.Value(consoleKey) != src.Value(consoleKey) || dst.Value(frontendKey) != "ssh" {
		t.Fatalf("expected markers to be copied")
	}
}

func TestFileLoggerWritesStructuredLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conch.log")
	logger, closer := NewFileLogger(FileConfig{Path: path, Level: "debug"})
	logger.Debug("file entry", "k", "v")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	capture := &logCapture{}
	capture.buf.Write(data)
	entry := capture.firstEntry(t)
	if entry["k"] != "v" {
		t.Fatalf("expected field in file log, got %+v", entry)
	}
}

func TestWithLevel(t *testing.T) {
	if WithLevel(pslog.Options{}, "TRACE").MinLevel != pslog.TraceLevel || WithLevel(pslog.Options{}, "bogus").MinLevel != pslog.InfoLevel {
		t.Fatalf("unexpected level mapping")
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
