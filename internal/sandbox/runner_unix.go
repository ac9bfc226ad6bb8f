//go:build !windows

package sandbox

import (
	"os/exec"
	"syscall"
)

// setProcAttr enables process-group creation so the whole subtree a
// sandboxed command spawns can be killed together. It also makes context
// cancellation send SIGTERM to that group instead of exec's default
// immediate SIGKILL of the leader, so Run's grace period applies.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error { return terminateProcessGroup(cmd.Process.Pid) }
}

// killProcessGroup sends SIGKILL to an entire process group. A negative
// PID targets the group rather than the single leader process.
func killProcessGroup(pid int) error {
	if pid <= 0 {
		return nil
	}
	return syscall.Kill(-pid, syscall.SIGKILL)
}

// terminateProcessGroup sends SIGTERM to an entire process group, used
// for the grace period before killProcessGroup escalates to SIGKILL.
func terminateProcessGroup(pid int) error {
	if pid <= 0 {
		return nil
	}
	return syscall.Kill(-pid, syscall.SIGTERM)
}
