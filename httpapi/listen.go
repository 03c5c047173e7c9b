package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"pkt.systems/pslog"
)

const readHeaderTimeout = 10 * time.Second

// ListenAndServe binds addr and serves handler until ctx is done.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, handler)
}

// Serve serves handler on ln until ctx is done, then shuts down gracefully.
// Websocket connections are hijacked and end with their console context.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	logger := pslog.Ctx(ctx)
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          pslog.LogLoggerWithLevel(logger, pslog.ErrorLevel),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	logger.Info("http listener bound", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown incomplete", "err", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
