// Package shellexec runs arbitrary shell commands as cancellable,
// output-streaming subprocesses.
package shellexec

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultGracePeriod is how long a terminated process group gets to
	// exit before it is force-killed.
	DefaultGracePeriod = 200 * time.Millisecond

	// DefaultMaxOutputBytes caps the accumulated output kept in the
	// final result. Streaming is not capped.
	DefaultMaxOutputBytes = 512 * 1024
)

// Config tunes one execution.
type Config struct {
	// Timeout ends the process like an external abort. Zero means no
	// timeout.
	Timeout time.Duration

	// GracePeriod between graceful termination and force kill. Zero
	// selects DefaultGracePeriod.
	GracePeriod time.Duration

	// MaxOutputBytes caps the retained output. Zero selects
	// DefaultMaxOutputBytes.
	MaxOutputBytes int

	// DisablePTY forces the plain-pipe strategy even where a
	// pseudo-terminal is available.
	DisablePTY bool
}

// Result is the final outcome of an execution. The shape is identical for
// both execution strategies. TotalBytes counts everything the process wrote;
// Output holds only the retained text, which is empty past the cap and stops
// growing once the stream is judged binary.
type Result struct {
	Output     string
	ExitCode   int
	Signal     string
	Err        error
	Aborted    bool
	Truncated  bool
	Binary     bool
	TotalBytes int
	PID        int
}

// Handle exposes the running process and its eventual result.
type Handle struct {
	PID    int
	result chan *Result
}

// Wait blocks until the process settles and returns its result. The result
// resolves exactly once; concurrent callers receive the same value.
func (h *Handle) Wait() *Result {
	res := <-h.result
	h.result <- res
	return res
}

// Service executes shell commands. It prefers a pseudo-terminal-backed
// process for faithful interactive output and falls back to plain pipes;
// both strategies emit the same output events and resolve the same Result
// shape.
type Service struct {
	log *zap.Logger
}

// NewService creates a Service. A nil logger disables logging.
func NewService(log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{log: log}
}

// Execute starts the command in cwd and returns immediately with a Handle.
// Output is streamed through onOutput until the output is judged binary,
// after which only byte-count progress events are emitted. Cancelling ctx
// and expiring cfg.Timeout route through the same termination path.
func (s *Service) Execute(ctx context.Context, command, cwd string, cfg Config, onOutput func(OutputEvent)) (*Handle, error) {
	if command == "" {
		return nil, fmt.Errorf("command cannot be empty")
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if onOutput == nil {
		onOutput = func(OutputEvent) {}
	}

	argv := shellArgv(command)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()

	collector := newCollector(cfg.MaxOutputBytes, onOutput)

	var readersDone <-chan struct{}
	var err error
	usePTY := !cfg.DisablePTY && ptySupported()
	if usePTY {
		readersDone, err = startPTY(cmd, collector)
		if err != nil {
			// Fall back to plain pipes, same observable contract.
			s.log.Debug("pty start failed, falling back to pipes", zap.Error(err))
			usePTY = false
			cmd = exec.Command(argv[0], argv[1:]...)
			cmd.Dir = cwd
			cmd.Env = os.Environ()
		}
	}
	if !usePTY {
		readersDone, err = startPipes(cmd, collector)
		if err != nil {
			return nil, err
		}
	}

	handle := &Handle{PID: cmd.Process.Pid, result: make(chan *Result, 1)}
	go s.supervise(ctx, cmd, cfg, collector, readersDone, handle)
	return handle, nil
}

// supervise waits for exit, abort, or timeout, terminating the process
// group when needed, and resolves the handle's result.
func (s *Service) supervise(ctx context.Context, cmd *exec.Cmd, cfg Config, collector *collector, readersDone <-chan struct{}, handle *Handle) {
	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	var timeoutC <-chan time.Time
	if cfg.Timeout > 0 {
		timer := time.NewTimer(cfg.Timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	var procErr, abortErr error
	aborted := false
	select {
	case procErr = <-waitDone:
	case <-ctx.Done():
		aborted = true
		abortErr = ctx.Err()
		procErr = terminate(cmd, cfg.GracePeriod, waitDone)
	case <-timeoutC:
		// Timeout expiry behaves exactly like an external abort.
		aborted = true
		abortErr = context.DeadlineExceeded
		procErr = terminate(cmd, cfg.GracePeriod, waitDone)
	}

	<-readersDone
	collector.close()

	exitCode, signal := exitStatus(procErr)
	res := &Result{
		Output:     collector.String(),
		ExitCode:   exitCode,
		Signal:     signal,
		Err:        abortErr,
		Aborted:    aborted,
		Truncated:  collector.Truncated(),
		Binary:     collector.Binary(),
		TotalBytes: collector.Total(),
		PID:        handle.PID,
	}

	s.log.Debug("command settled",
		zap.Int("pid", res.PID),
		zap.Int("exit_code", res.ExitCode),
		zap.Bool("aborted", res.Aborted))
	handle.result <- res
}
