package logx

import (
	"io"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
	"pkt.systems/pslog"
)

// FileConfig describes a rotating log file.
type FileConfig struct {
	Path       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewFileLogger returns a structured logger writing to a rotating file. The
// returned closer flushes and closes the file.
func NewFileLogger(cfg FileConfig) (pslog.Logger, io.Closer) {
	sink := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    orDefault(cfg.MaxSizeMB, 15),
		MaxBackups: orDefault(cfg.MaxBackups, 3),
		MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		Compress:   cfg.Compress,
	}
	logger := pslog.NewWithOptions(sink, WithLevel(pslog.Options{
		Mode:    pslog.ModeStructured,
		NoColor: true,
	}, cfg.Level))
	return logger, sink
}

// WithLevel sets opts.MinLevel from a level name, defaulting to info.
func WithLevel(opts pslog.Options, level string) pslog.Options {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		opts.MinLevel = pslog.TraceLevel
	case "debug":
		opts.MinLevel = pslog.DebugLevel
	case "warn", "warning":
		opts.MinLevel = pslog.WarnLevel
	case "error":
		opts.MinLevel = pslog.ErrorLevel
	default:
		opts.MinLevel = pslog.InfoLevel
	}
	return opts
}

func orDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
