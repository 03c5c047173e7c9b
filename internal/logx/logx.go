package logx

import (
	"context"

	"pkt.systems/conch/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	consoleKey contextKey = iota
	frontendKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithConsole annotates the logger with the console id if present.
func WithConsole(ctx context.Context, id schema.ConsoleID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if id != "" {
		if current, ok := ctx.Value(consoleKey).(schema.ConsoleID); ok && current == id {
			return log
		}
		log = log.With("console", id)
	}
	return log
}

// WithFrontend annotates the logger with the frontend kind (local, ssh, ws).
func WithFrontend(ctx context.Context, frontend string) pslog.Logger {
	log := pslog.Ctx(ctx)
	if frontend != "" {
		if current, ok := ctx.Value(frontendKey).(string); ok && current == frontend {
			return log
		}
		log = log.With("frontend", frontend)
	}
	return log
}

// WithWorkspace annotates the logger with workspace metadata when available.
func WithWorkspace(log pslog.Logger, name, path string) pslog.Logger {
	if name != "" {
		log = log.With("workspace", name)
	}
	if path != "" {
		log = log.With("workspace_path", path)
	}
	return log
}

// ContextWithConsole stores the console marker on the context for log de-duplication.
func ContextWithConsole(ctx context.Context, id schema.ConsoleID) context.Context {
	if ctx == nil || id == "" {
		return ctx
	}
	return context.WithValue(ctx, consoleKey, id)
}

// ContextWithConsoleLogger attaches the logger and console marker to the context.
func ContextWithConsoleLogger(ctx context.Context, log pslog.Logger, id schema.ConsoleID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithConsole(ctx, id)
}

// ContextWithFrontendLogger attaches the logger and frontend marker to the context.
func ContextWithFrontendLogger(ctx context.Context, log pslog.Logger, frontend string) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	if frontend == "" {
		return ctx
	}
	return context.WithValue(ctx, frontendKey, frontend)
}

// CopyContextFields copies console/frontend markers from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if id, ok := src.Value(consoleKey).(schema.ConsoleID); ok && id != "" {
		dst = ContextWithConsole(dst, id)
	}
	if frontend, ok := src.Value(frontendKey).(string); ok && frontend != "" {
		dst = context.WithValue(dst, frontendKey, frontend)
	}
	return dst
}
