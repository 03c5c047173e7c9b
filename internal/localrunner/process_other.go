//go:build !unix

package localrunner

import (
	"os/exec"

	"pkt.systems/conch/core"
)

func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// signalProcessGroup kills the process; only KILL semantics exist here.
func signalProcessGroup(cmd *exec.Cmd, sig core.ProcessSignal) error {
	_ = sig
	return killProcessGroup(cmd)
}
