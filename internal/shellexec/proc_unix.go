//go:build !windows

package shellexec

import (
	"errors"
	"os/exec"
	"syscall"
	"time"
)

func ptySupported() bool { return true }

func shellArgv(command string) []string {
	return []string{"/bin/sh", "-c", command}
}

// setProcAttr puts the pipe-strategy child in its own process group so the
// whole group can be signalled. The pty strategy gets its own session from
// pty.Start instead.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate sends SIGTERM to the process group and escalates to SIGKILL
// after the grace period. It returns the process wait error.
func terminate(cmd *exec.Cmd, grace time.Duration, waitDone <-chan error) error {
	pid := cmd.Process.Pid
	_ = syscall.Kill(-pid, syscall.SIGTERM)
	select {
	case err := <-waitDone:
		return err
	case <-time.After(grace):
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
	return <-waitDone
}

func exitStatus(err error) (int, string) {
	if err == nil {
		return 0, ""
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return -1, ws.Signal().String()
		}
		return exitErr.ExitCode(), ""
	}
	return -1, ""
}
