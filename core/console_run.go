package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"pkt.systems/conch/schema"
	"pkt.systems/pslog"
)

const defaultStopGrace = 2 * time.Second

// activeRun tracks the external process owned by the console.
type activeRun struct {
	line   string
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	handle  CommandHandle
	stopped bool
}

func (r *activeRun) setHandle(handle CommandHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handle = handle
}

func (r *activeRun) markStopped() (CommandHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	already := r.stopped
	r.stopped = true
	return r.handle, already
}

func (r *activeRun) wasStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func (r *activeRun) kill() {
	r.markStopped()
	r.cancel()
}

type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// ExternalPrefix on a submitted line skips the built-ins and hands the rest
// of the line to the runner, so "!history" runs the history executable.
const ExternalPrefix = "!"

// Submit commits the editable tail as a command line. Built-ins run
// synchronously; external commands are started and Submit returns while
// they run. A submission while the console is not idle fails with
// schema.ErrConsoleBusy.
func (c *Console) Submit(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if err := c.acceptLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	line := c.commitLocked()
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		c.history.Record(line)
		c.promptLocked()
		c.mu.Unlock()
		return nil
	}
	c.history.Record(trimmed)
	c.setStateLocked(schema.StateDispatching, false)
	dispatchCtx, cancel := context.WithCancel(ctx)
	c.dispatchCancel = cancel
	c.dispatchStopped = false
	workdir := c.dir.Current()
	c.mu.Unlock()

	log := c.logger.With("workdir", workdir)
	if !c.cfg.DisableAuditLogging {
		log.Debug("console command submitted", "line", trimmed)
	}

	var (
		handled bool
		err     error
	)
	command, bypass := strings.CutPrefix(trimmed, ExternalPrefix)
	command = strings.TrimSpace(command)
	switch {
	case !bypass:
		handled, err = c.dispatch(dispatchCtx, trimmed)
	case command == "":
		handled, err = true, fmt.Errorf("%w: nothing to run after %q", schema.ErrInvalidRequest, ExternalPrefix)
	}

	c.mu.Lock()
	c.dispatchCancel = nil
	stopped := c.dispatchStopped
	c.mu.Unlock()
	cancel()

	if handled {
		switch {
		case stopped:
			log.Info("console builtin interrupted", "err", err)
			c.Append(schema.ErrProcessTerminated.Error(), schema.StyleException)
		case err != nil:
			c.reportDispatchError(log, err)
		}
		c.finishDispatch()
		return nil
	}
	return c.runExternal(ctx, log, command)
}

// SubmitLine replaces the input with line and submits it.
func (c *Console) SubmitLine(ctx context.Context, line string) error {
	c.mu.Lock()
	if err := c.acceptLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.buf.SetInput(line)
	c.emitLocked(schema.ConsoleEvent{Type: schema.EventInput, Segments: c.buf.InputSegments()})
	c.mu.Unlock()
	return c.Submit(ctx)
}

// Stop interrupts the running process. It asks politely first and kills
// the process if it is still alive after a short grace period. A built-in
// that is still dispatching, such as a shell macro, has its context
// cancelled instead. Stop reports whether there was anything to interrupt.
func (c *Console) Stop() bool {
	c.mu.Lock()
	run := c.run
	var cancelDispatch context.CancelFunc
	if run == nil && c.state == schema.StateDispatching && c.dispatchCancel != nil {
		cancelDispatch = c.dispatchCancel
		c.dispatchStopped = true
	}
	c.mu.Unlock()
	if cancelDispatch != nil {
		c.logger.Info("console stop requested", "target", "builtin")
		cancelDispatch()
		return true
	}
	if run == nil {
		c.logger.Debug("console stop ignored", "reason", "no running process")
		return false
	}
	handle, already := run.markStopped()
	if already {
		run.cancel()
		return true
	}
	c.logger.Info("console stop requested", "line", run.line)
	if handle == nil {
		run.cancel()
		return true
	}
	if err := handle.Signal(context.Background(), ProcessSignalTERM); err != nil {
		c.logger.Warn("console stop signal failed", "signal", ProcessSignalTERM, "err", err)
		run.cancel()
		return true
	}
	go func() {
		timer := time.NewTimer(defaultStopGrace)
		defer timer.Stop()
		select {
		case <-run.done:
		case <-timer.C:
			c.logger.Info("console stop escalated", "signal", ProcessSignalKILL)
			run.cancel()
		}
	}()
	return true
}

// Wait blocks until the running process, if any, has finished and the
// prompt has been printed.
func (c *Console) Wait(ctx context.Context) error {
	c.mu.Lock()
	run := c.run
	c.mu.Unlock()
	if run == nil {
		return nil
	}
	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Console) acceptLocked() error {
	if c.closed {
		return schema.ErrConsoleClosed
	}
	if c.state != schema.StateIdle || !c.editable {
		return schema.ErrConsoleBusy
	}
	return nil
}

func (c *Console) commitLocked() string {
	line := c.buf.Commit()
	c.emitLocked(schema.ConsoleEvent{
		Type:     schema.EventAppend,
		Segments: []schema.Segment{{Text: line + "\n", Style: schema.StyleInput}},
	})
	return line
}

func (c *Console) dispatch(ctx context.Context, line string) (handled bool, err error) {
	if c.deps.Dispatcher == nil {
		return false, nil
	}
	defer func() {
		if r := recover(); r != nil {
			handled = true
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return c.deps.Dispatcher.Dispatch(ctx, c, line)
}

func (c *Console) reportDispatchError(log pslog.Logger, err error) {
	var pe *panicError
	if errors.As(err, &pe) {
		log.Error("console builtin panicked", "err", err)
		c.PrintException(err)
		return
	}
	log.Debug("console builtin failed", "err", err)
	c.PrintError(err)
}

func (c *Console) finishDispatch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStateLocked(schema.StateIdle, true)
	c.promptLocked()
}

func (c *Console) runExternal(ctx context.Context, log pslog.Logger, line string) error {
	c.mu.Lock()
	workdir := c.dir.Current()
	runner := c.deps.Runner
	c.mu.Unlock()

	if runner == nil {
		c.PrintError(schema.ErrRunnerUnavailable)
		c.finishDispatch()
		return nil
	}
	if _, err := os.Stat(workdir); err != nil {
		log.Warn("console workdir missing", "err", err)
		c.PrintError(fmt.Errorf("working directory is gone: %s", workdir))
		c.finishDispatch()
		return nil
	}

	runCtx, cancel := detachContext(ctx)
	run := &activeRun{line: line, cancel: cancel, done: make(chan struct{})}
	c.mu.Lock()
	c.run = run
	c.setStateLocked(schema.StateRunning, false)
	c.mu.Unlock()

	handle, err := runner.RunCommand(runCtx, RunCommandRequest{
		WorkingDir: workdir,
		Command:    ShellCommandLine(runtime.GOOS, workdir, line),
		UseShell:   true,
	})
	if err != nil {
		log.Warn("console process start failed", "err", err)
		cancel()
		c.PrintException(err)
		c.finishRun(run)
		return nil
	}
	run.setHandle(handle)
	log.Debug("console process started")
	go c.streamOutput(runCtx, log, run, handle)
	return nil
}

func (c *Console) streamOutput(ctx context.Context, log pslog.Logger, run *activeRun, handle CommandHandle) {
	defer c.finishRun(run)
	defer run.cancel()
	defer func() { _ = handle.Close() }()

	start := time.Now()
	stream := handle.Outputs()
	lines := 0
	for {
		output, err := stream.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.Warn("console output stream failed", "err", err)
			}
			break
		}
		style := schema.StyleStdout
		if output.Stream == CommandStreamStderr {
			style = schema.StyleStderr
		}
		c.Append(output.Text, style)
		lines++
	}

	result, err := handle.Wait(context.Background())
	switch {
	case run.wasStopped():
		log.Info("console process interrupted", "lines", lines, "duration", time.Since(start))
		c.Append(schema.ErrProcessTerminated.Error(), schema.StyleException)
	case err != nil:
		log.Warn("console process failed", "err", err, "exit_code", result.ExitCode, "duration", time.Since(start))
		var exitErr interface{ ExitCode() int }
		if !errors.As(err, &exitErr) {
			c.PrintException(err)
		}
	default:
		log.Debug("console process finished", "exit_code", result.ExitCode, "lines", lines, "duration", time.Since(start))
	}
}

func (c *Console) finishRun(run *activeRun) {
	c.mu.Lock()
	if c.run == run {
		c.run = nil
	}
	c.setStateLocked(schema.StateIdle, true)
	if !c.closed {
		c.promptLocked()
	}
	c.mu.Unlock()
	close(run.done)
}

func detachContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.Background()
	if ctx != nil {
		if logger := pslog.Ctx(ctx); logger != nil {
			base = pslog.ContextWithLogger(base, logger)
		}
	}
	return context.WithCancel(base)
}
