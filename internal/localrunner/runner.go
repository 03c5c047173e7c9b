// Package localrunner runs console commands as local child processes.
package localrunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/creack/pty"
	"github.com/google/shlex"
	"pkt.systems/conch/core"
	"pkt.systems/pslog"
)

const defaultWaitDelay = 2 * time.Second

// Config controls how commands are started.
type Config struct {
	// Shell overrides the platform shell ("sh" or "cmd").
	Shell string
	// Env is appended to the inherited environment.
	Env []string
	// PTY attaches commands to a pseudo terminal instead of pipes.
	PTY     bool
	PTYCols uint16
	PTYRows uint16
}

// Runner implements core.Runner.
type Runner struct {
	cfg Config
}

// NewRunner constructs a local runner.
func NewRunner(cfg Config) *Runner {
	if cfg.PTYCols == 0 {
		cfg.PTYCols = 120
	}
	if cfg.PTYRows == 0 {
		cfg.PTYRows = 40
	}
	return &Runner{cfg: cfg}
}

// RunCommand starts req and returns a handle streaming its output.
func (r *Runner) RunCommand(ctx context.Context, req core.RunCommandRequest) (core.CommandHandle, error) {
	if strings.TrimSpace(req.Command) == "" {
		return nil, errors.New("command is required")
	}
	log := pslog.Ctx(ctx)
	cmd, err := r.commandForRequest(ctx, req)
	if err != nil {
		log.Warn("runner command rejected", "err", err)
		return nil, err
	}
	if req.WorkingDir != "" {
		cmd.Dir = req.WorkingDir
	}
	cmd.Env = append(append(os.Environ(), r.cfg.Env...), req.Env...)
	cmd.WaitDelay = defaultWaitDelay
	log.Debug("runner command start", "workdir", req.WorkingDir, "shell", req.UseShell, "pty", r.cfg.PTY)
	log.Trace("runner command", "command", req.Command)

	if r.cfg.PTY && runtime.GOOS != "windows" {
		return r.startPTY(ctx, log, cmd)
	}
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Error("runner command stdout failed", "err", err)
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		log.Error("runner command stderr failed", "err", err)
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		log.Error("runner command start failed", "err", err)
		return nil, err
	}
	log.Debug("runner command started", "pid", cmd.Process.Pid)
	return &commandHandle{
		cmd:     cmd,
		stream:  newCombinedStream(log, stdout, stderr),
		log:     log,
		started: time.Now(),
	}, nil
}

func (r *Runner) startPTY(ctx context.Context, log pslog.Logger, cmd *exec.Cmd) (core.CommandHandle, error) {
	_ = ctx
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	tty, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: r.cfg.PTYCols, Rows: r.cfg.PTYRows})
	if err != nil {
		log.Error("runner pty start failed", "err", err)
		return nil, err
	}
	log.Debug("runner command started", "pid", cmd.Process.Pid, "pty", true)
	return &commandHandle{
		cmd:     cmd,
		stream:  newCombinedStream(log, tty, nil),
		closer:  tty,
		log:     log,
		started: time.Now(),
	}, nil
}

func (r *Runner) commandForRequest(ctx context.Context, req core.RunCommandRequest) (*exec.Cmd, error) {
	if req.UseShell {
		shell, flag := r.shell()
		return exec.CommandContext(ctx, shell, flag, req.Command), nil
	}
	args, err := shlex.Split(req.Command)
	if err != nil {
		return nil, fmt.Errorf("split command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("command is required")
	}
	return exec.CommandContext(ctx, args[0], args[1:]...), nil
}

func (r *Runner) shell() (string, string) {
	if runtime.GOOS == "windows" {
		if r.cfg.Shell != "" {
			return r.cfg.Shell, "/c"
		}
		return "cmd", "/c"
	}
	if r.cfg.Shell != "" {
		return r.cfg.Shell, "-c"
	}
	return "sh", "-c"
}

type commandHandle struct {
	cmd     *exec.Cmd
	stream  *combinedStream
	closer  io.Closer
	log     pslog.Logger
	started time.Time
}

func (h *commandHandle) Outputs() core.CommandStream {
	return h.stream
}

func (h *commandHandle) Signal(ctx context.Context, sig core.ProcessSignal) error {
	_ = ctx
	if h.cmd == nil || h.cmd.Process == nil {
		return fmt.Errorf("process not started")
	}
	return signalProcessGroup(h.cmd, sig)
}

func (h *commandHandle) Wait(ctx context.Context) (core.RunResult, error) {
	_ = ctx
	if h.cmd == nil {
		return core.RunResult{}, fmt.Errorf("process not started")
	}
	err := h.cmd.Wait()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			h.log.Error("runner command wait failed", "err", err)
			return core.RunResult{}, err
		}
		exitCode = exitErr.ExitCode()
	}
	h.log.Debug("runner command finished", "exit_code", exitCode, "duration_ms", time.Since(h.started).Milliseconds())
	return core.RunResult{ExitCode: exitCode}, nil
}

func (h *commandHandle) Close() error {
	if h.stream != nil {
		_ = h.stream.Close()
	}
	if h.closer != nil {
		return h.closer.Close()
	}
	return nil
}
