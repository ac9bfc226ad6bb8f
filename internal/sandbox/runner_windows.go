//go:build windows

package sandbox

import "os/exec"

// setProcAttr is a no-op on Windows; process groups are not used and the
// group signal helpers below do nothing. A cancelled command is stopped
// only by exec.CommandContext's default Process.Kill of the command's own
// process; processes it spawned are not killed.
func setProcAttr(cmd *exec.Cmd) {}

func killProcessGroup(pid int) error {
	return nil
}

func terminateProcessGroup(pid int) error {
	return nil
}
