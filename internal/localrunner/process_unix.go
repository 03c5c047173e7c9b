//go:build unix

package localrunner

import (
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
	"pkt.systems/conch/core"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) error {
	return signalProcessGroup(cmd, core.ProcessSignalKILL)
}

// signalProcessGroup delivers sig to every process the shell spawned.
func signalProcessGroup(cmd *exec.Cmd, sig core.ProcessSignal) error {
	if cmd.Process == nil {
		return nil
	}
	var signal unix.Signal
	switch sig {
	case core.ProcessSignalHUP:
		signal = unix.SIGHUP
	case core.ProcessSignalTERM:
		signal = unix.SIGTERM
	case core.ProcessSignalKILL:
		signal = unix.SIGKILL
	default:
		return fmt.Errorf("unsupported signal: %s", sig)
	}
	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Signal(signal)
	}
	return unix.Kill(-pgid, signal)
}
