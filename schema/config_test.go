package schema

import "testing"

func TestNormalizeConsoleConfigDefaults(t *testing.T) {
	cfg := NormalizeConsoleConfig(ConsoleConfig{})
	if cfg.BufferMaxLines != DefaultBufferMaxLines {
		t.Fatalf("expected buffer max %d, got %d", DefaultBufferMaxLines, cfg.BufferMaxLines)
	}
	if cfg.HistoryMax != DefaultHistoryMax {
		t.Fatalf("expected history max %d, got %d", DefaultHistoryMax, cfg.HistoryMax)
	}
	if cfg.Prompt != DefaultPrompt {
		t.Fatalf("expected default prompt, got %q", cfg.Prompt)
	}
	if len(cfg.Banner) != len(DefaultBanner) {
		t.Fatalf("expected default banner, got %v", cfg.Banner)
	}
	if cfg.Theme != DefaultTheme {
		t.Fatalf("expected default theme, got %q", cfg.Theme)
	}
}

func TestNormalizeConsoleConfigKeepsEmptyBanner(t *testing.T) {
	cfg := NormalizeConsoleConfig(ConsoleConfig{Banner: []string{}, Theme: "Monochrome"})
	if len(cfg.Banner) != 0 {
		t.Fatalf("expected empty banner to be kept, got %v", cfg.Banner)
	}
	if cfg.Theme != "mono" {
		t.Fatalf("expected mono theme, got %q", cfg.Theme)
	}
}

func TestNormalizeThemeName(t *testing.T) {
	tests := []struct {
		in   string
		want ThemeName
		ok   bool
	}{
		{in: "default", want: "default", ok: true},
		{in: " ORCA ", want: "orca", ok: true},
		{in: "none", want: "mono", ok: true},
		{in: "outrun", want: "", ok: false},
	}
	for _, tc := range tests {
		got, ok := NormalizeThemeName(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("NormalizeThemeName(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
