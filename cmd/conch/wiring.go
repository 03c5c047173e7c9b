package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pkt.systems/conch/internal/appconfig"
	"pkt.systems/conch/internal/consoles"
	"pkt.systems/conch/internal/host"
	"pkt.systems/conch/internal/localrunner"
	"pkt.systems/conch/internal/logx"
	"pkt.systems/conch/internal/macro"
	"pkt.systems/conch/internal/prefs"
	"pkt.systems/conch/internal/workspace"
	"pkt.systems/pslog"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func currentDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}

// loadConfig reads the config named by --config and, when a log file is
// configured, moves the command logger onto it.
func loadConfig(cmd *cobra.Command) (context.Context, appconfig.Config, io.Closer, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := appconfig.Load(configPath(cmd))
	if err != nil {
		return ctx, appconfig.Config{}, nil, err
	}
	if cfg.Logging.File.Path == "" {
		return ctx, cfg, nopCloser{}, nil
	}
	logger, closer := logx.NewFileLogger(logx.FileConfig{
		Path:       cfg.Logging.File.Path,
		Level:      cfg.Logging.Level,
		MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
		MaxBackups: cfg.Logging.File.MaxBackups,
		MaxAgeDays: cfg.Logging.File.MaxAgeDays,
		Compress:   cfg.Logging.File.Compress,
	})
	return pslog.ContextWithLogger(ctx, logger), cfg, closer, nil
}

// buildFactory wires the runner and the stores described by cfg into a
// console factory.
func buildFactory(ctx context.Context, cfg appconfig.Config) (*consoles.Factory, error) {
	logger := pslog.Ctx(ctx)

	runner := localrunner.NewRunner(localrunner.Config{
		Shell:   cfg.Runner.Shell,
		Env:     cfg.Runner.Env,
		PTY:     cfg.Runner.PTY,
		PTYCols: uint16(max(cfg.Runner.PTYCols, 0)),
		PTYRows: uint16(max(cfg.Runner.PTYRows, 0)),
	})

	var ws *workspace.Store
	if cfg.Workspace.File != "" {
		store, err := workspace.Open(cfg.Workspace.File, logger)
		if err != nil {
			return nil, err
		}
		ws = store
	}

	var macros *macro.Manager
	if cfg.Macros.Dir != "" {
		macros = macro.NewManager(cfg.Macros.Dir, macro.DefaultEngines(runner), logger)
		if err := macros.Load(); err != nil {
			return nil, err
		}
	}

	if cfg.StateDir == "" {
		return nil, errors.New("state_dir is required")
	}
	prefStore, err := prefs.NewStoreWithLogger(filepath.Join(cfg.StateDir, "prefs"), logger)
	if err != nil {
		return nil, err
	}

	return consoles.NewFactory(consoles.Config{
		Console: cfg.ConsoleSettings(),
		Host: host.Config{
			Profile:     cfg.Host.Profile,
			OpenCommand: cfg.Host.OpenCommand,
			RecentMax:   cfg.Host.RecentMax,
		},
		TreeDepth:           cfg.Console.TreeDepth,
		DisableAuditLogging: cfg.Logging.DisableAuditTrails,
	}, consoles.Deps{
		Runner:    runner,
		Workspace: ws,
		Macros:    macros,
		Prefs:     prefStore,
		Logger:    logger,
	})
}
