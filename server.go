// Package conch composes the network frontends that expose consoles.
package conch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"pkt.systems/conch/httpapi"
	"pkt.systems/conch/internal/consoles"
	"pkt.systems/conch/sshserver"
	"pkt.systems/pslog"
)

// Server composes the HTTP and SSH frontends.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	HTTP httpapi.Config
	SSH  sshserver.Config
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP bool
	enableSSH  bool
}

// WithHTTP enables the HTTP websocket server.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithSSH enables the SSH server.
func WithSSH() ServerOption {
	return func(o *serverOptions) { o.enableSSH = true }
}

type consoleCloser interface {
	CloseAll() error
}

// New constructs a composable conch server. Every frontend opens its
// consoles through factory.
func New(cfg ServerConfig, factory *consoles.Factory, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if !options.enableHTTP && !options.enableSSH {
		return nil, errors.New("no services enabled")
	}
	if factory == nil {
		return nil, errors.New("console factory is required")
	}

	var httpSrv *httpapi.Server
	var sshSrv *sshserver.Server
	if options.enableHTTP {
		httpSrv = httpapi.NewServer(cfg.HTTP, factory)
	}
	if options.enableSSH {
		sshSrv = sshserver.NewServer(cfg.SSH, factory)
	}
	return &compositeServer{
		cfg:      cfg,
		options:  options,
		httpSrv:  httpSrv,
		sshSrv:   sshSrv,
		consoles: factory,
	}, nil
}

type compositeServer struct {
	cfg      ServerConfig
	options  serverOptions
	httpSrv  *httpapi.Server
	sshSrv   *sshserver.Server
	consoles consoleCloser
	logger   pslog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	started bool
}

// Start launches the enabled frontends. A frontend that fails cancels the
// others; Wait reports its error.
func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	s.cancel = cancel
	s.group = group
	s.started = true
	s.logger = pslog.Ctx(ctx)

	s.logger.Info(
		"server start",
		"http", s.httpSrv != nil,
		"ssh", s.sshSrv != nil,
		"http_addr", s.cfg.HTTP.Addr,
		"http_base_path", s.cfg.HTTP.BasePath,
		"ssh_addr", s.cfg.SSH.Addr,
	)
	if s.httpSrv != nil {
		s.httpSrv.SetBaseContext(groupCtx)
		group.Go(func() error {
			if err := httpapi.ListenAndServe(groupCtx, s.cfg.HTTP.Addr, s.httpSrv.Handler()); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}
	if s.sshSrv != nil {
		group.Go(func() error {
			if err := s.sshSrv.ListenAndServe(groupCtx); err != nil {
				return fmt.Errorf("ssh server: %w", err)
			}
			return nil
		})
	}
	return nil
}

// Wait blocks until every frontend has returned.
func (s *compositeServer) Wait() error {
	s.mu.Lock()
	group := s.group
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started || group == nil {
		return errors.New("server not started")
	}
	if err := group.Wait(); err != nil {
		log.Error("server stopped", "err", err)
		_ = s.Stop(context.Background())
		return err
	}
	return nil
}

// Stop closes every console, cancels the frontends and waits for them until
// ctx is done.
func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	group := s.group
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if s.consoles != nil {
		if err := s.consoles.CloseAll(); err != nil {
			log.Warn("server console close failed", "err", err)
		}
	}
	if cancel != nil {
		cancel()
	}
	if group == nil || ctx == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-done:
		log.Info("server stopped")
		return nil
	}
}
