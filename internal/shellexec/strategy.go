package shellexec

import (
	"io"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// startPTY launches the command behind a pseudo-terminal so interactive
// programs produce faithful output (color, paging). The returned channel
// closes when the output drain finishes.
func startPTY(cmd *exec.Cmd, out *collector) (<-chan struct{}, error) {
	f, err := pty.Start(cmd)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer f.Close()
		buf := make([]byte, 4096)
		for {
			n, readErr := f.Read(buf)
			if n > 0 {
				_, _ = out.Write(buf[:n])
			}
			if readErr != nil {
				// EIO here just means the child exited.
				return
			}
		}
	}()
	return done, nil
}

// startPipes launches the command with separate stdout/stderr pipes. Same
// output contract as the pty strategy.
func startPipes(cmd *exec.Cmd, out *collector) (<-chan struct{}, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	setProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(out, stdout)
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(out, stderr)
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done, nil
}
