//go:build windows

package shellexec

import (
	"errors"
	"os/exec"
	"strconv"
	"time"
)

func ptySupported() bool { return false }

func shellArgv(command string) []string {
	return []string{"cmd", "/C", command}
}

func setProcAttr(cmd *exec.Cmd) {}

// terminate asks taskkill to end the process tree and escalates to a
// forced kill after the grace period. Observable contract matches the
// POSIX path: aborted result, no further output.
func terminate(cmd *exec.Cmd, grace time.Duration, waitDone <-chan error) error {
	pid := strconv.Itoa(cmd.Process.Pid)
	_ = exec.Command("taskkill", "/PID", pid, "/T").Run()
	select {
	case err := <-waitDone:
		return err
	case <-time.After(grace):
	}
	_ = exec.Command("taskkill", "/PID", pid, "/T", "/F").Run()
	return <-waitDone
}

func exitStatus(err error) (int, string) {
	if err == nil {
		return 0, ""
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), ""
	}
	return -1, ""
}
