package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/conch"
	"pkt.systems/conch/httpapi"
	"pkt.systems/conch/internal/appconfig"
	"pkt.systems/conch/sshserver"
	"pkt.systems/pslog"
)

func newServeCmd() *cobra.Command {
	var (
		enableHTTP bool
		enableSSH  bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve consoles over SSH and websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, closer, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()
			logger := pslog.Ctx(ctx)

			opts := serveOptions(enableHTTP, enableSSH)
			if len(opts) == 0 {
				return errors.New("nothing to serve; enable --http or --ssh")
			}
			factory, err := buildFactory(ctx, cfg)
			if err != nil {
				return err
			}
			server, err := conch.New(conch.ServerConfig{
				HTTP: toHTTPConfig(cfg.HTTP),
				SSH:  toSSHConfig(cfg.SSH),
			}, factory, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			if enableHTTP {
				logger.Info("http server listening", "addr", cfg.HTTP.Addr)
			}
			if enableSSH {
				logger.Info("ssh server listening", "addr", cfg.SSH.Addr)
			}
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().BoolVar(&enableHTTP, "http", true, "serve the websocket console")
	cmd.Flags().BoolVar(&enableSSH, "ssh", true, "serve the SSH console")
	return cmd
}

func serveOptions(enableHTTP, enableSSH bool) []conch.ServerOption {
	var opts []conch.ServerOption
	if enableHTTP {
		opts = append(opts, conch.WithHTTP())
	}
	if enableSSH {
		opts = append(opts, conch.WithSSH())
	}
	return opts
}

func toHTTPConfig(cfg appconfig.HTTPConfig) httpapi.Config {
	return httpapi.Config{
		Addr:           cfg.Addr,
		BaseURL:        cfg.BaseURL,
		BasePath:       cfg.BasePath,
		AllowedOrigins: cfg.AllowedOrigins,
	}
}

func toSSHConfig(cfg appconfig.SSHConfig) sshserver.Config {
	return sshserver.Config{
		Addr:               cfg.Addr,
		HostKeyPath:        cfg.HostKeyPath,
		AuthorizedKeysPath: cfg.AuthorizedKeysPath,
	}
}
