package appconfig

import (
	"testing"

	"pkt.systems/conch/schema"
)

func TestDefaultConfigConsoleSettings(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	settings := cfg.ConsoleSettings()
	if settings.HistoryMax != schema.DefaultHistoryMax {
		t.Fatalf("expected history max %d, got %d", schema.DefaultHistoryMax, settings.HistoryMax)
	}
	if settings.Theme != schema.DefaultTheme {
		t.Fatalf("expected default theme, got %q", settings.Theme)
	}
	if cfg.Runner.PTY {
		t.Fatalf("expected pipes by default")
	}
	if cfg.Logging.File.Path != "" {
		t.Fatalf("expected file logging to be off by default")
	}
}
