package main

import (
	"io"

	"github.com/spf13/cobra"

	"pkt.systems/conch/internal/logx"
	"pkt.systems/conch/internal/sessionprefs"
	"pkt.systems/conch/internal/termui"
	"pkt.systems/pslog"
)

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Open an interactive console in this terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, closer, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()
			if cfg.Logging.File.Path == "" {
				// The terminal belongs to the console while it runs.
				ctx = pslog.ContextWithLogger(ctx, pslog.NewWithOptions(io.Discard, logx.WithLevel(pslog.Options{
					Mode:    pslog.ModeStructured,
					NoColor: true,
				}, "error")))
			}

			factory, err := buildFactory(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = factory.CloseAll() }()

			ctx = sessionprefs.WithContext(ctx, sessionprefs.New(cfg.Host.Profile, "local"))
			session, err := factory.Open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			return termui.RunLocal(session.Context(), session.Console, session.Events)
		},
	}
}
