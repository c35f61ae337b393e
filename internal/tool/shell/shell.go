// Package shell implements the bash tool over the shell execution service.
package shell

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/harklab/hark/internal/permission"
	"github.com/harklab/hark/internal/shellexec"
	"github.com/harklab/hark/internal/tool"
)

const maxTimeout = 10 * time.Minute

// Options tunes the bash tool.
type Options struct {
	// DefaultTimeout applies when a call specifies none. Zero selects two
	// minutes.
	DefaultTimeout time.Duration
	// MaxOutputBytes caps retained output per command. Zero selects the
	// shellexec default.
	MaxOutputBytes int
	// OnOutput receives streamed output events; may be nil.
	OnOutput func(shellexec.OutputEvent)
}

// Tool runs shell commands in the workspace. Every call passes the
// permission gate; the policy engine recognizes safe read-only commands and
// lets them through without a prompt.
type Tool struct {
	service *shellexec.Service
	cwd     string
	opts    Options
}

// New creates the bash tool.
func New(service *shellexec.Service, cwd string, opts Options) *Tool {
	if service == nil {
		panic("service is required")
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 2 * time.Minute
	}
	return &Tool{service: service, cwd: cwd, opts: opts}
}

type request struct {
	Command string `mapstructure:"command"`
	Timeout int    `mapstructure:"timeout"`
}

func (t *Tool) Name() string        { return "bash" }
func (t *Tool) DisplayName() string { return "Shell" }
func (t *Tool) Kind() tool.Kind     { return tool.KindExecute }

func (t *Tool) Schema() tool.Schema {
	return tool.Schema{
		Name:        "bash",
		Description: "Run a shell command in the workspace and return its combined output. Long-running commands are terminated when the timeout expires.",
		InputSchema: tool.InputSchema{
			Type: "object",
			Properties: map[string]tool.Property{
				"command": {Type: "string", Description: "The shell command to run"},
				"timeout": {Type: "integer", Description: "Timeout in seconds (default 120, max 600)"},
			},
			Required: []string{"command"},
		},
	}
}

func (t *Tool) Validate(params map[string]any) error {
	req, err := decodeRequest(params)
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.Command) == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if req.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	return nil
}

// Confirmation implements tool.Gated. The key carries the full command so
// exact rules match it; the root command seeds prefix rules.
func (t *Tool) Confirmation(params map[string]any) permission.ConfirmationDetails {
	req, _ := decodeRequest(params)
	command := strings.TrimSpace(req.Command)

	root := ""
	if fields := strings.Fields(command); len(fields) > 0 {
		root = fields[0]
	}
	return permission.ConfirmationDetails{
		Type:        permission.ConfirmExec,
		ToolName:    "bash",
		Key:         permission.Key("bash", command),
		Command:     command,
		RootCommand: root,
	}
}

func (t *Tool) Run(ctx context.Context, params map[string]any) (*tool.Result, error) {
	req, err := decodeRequest(params)
	if err != nil {
		return tool.Errorf(tool.ErrInvalidParams, "%v", err), nil
	}

	timeout := t.opts.DefaultTimeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Second
		if timeout > maxTimeout {
			timeout = maxTimeout
		}
	}

	handle, err := t.service.Execute(ctx, req.Command, t.cwd,
		shellexec.Config{Timeout: timeout, MaxOutputBytes: t.opts.MaxOutputBytes}, t.opts.OnOutput)
	if err != nil {
		return tool.Errorf(tool.ErrExecutionFailed, "start command: %v", err), nil
	}

	res := handle.Wait()
	if res.Aborted && ctx.Err() != nil {
		// The turn was cancelled; the engine discards this call entirely.
		return nil, ctx.Err()
	}

	content := formatOutput(res, timeout)
	if res.Aborted {
		return &tool.Result{
			LLMContent:    content,
			ReturnDisplay: content,
			Error: &tool.Error{
				Kind:    tool.ErrExecutionFailed,
				Message: fmt.Sprintf("command timed out after %s", timeout),
			},
		}, nil
	}
	if res.ExitCode != 0 {
		return &tool.Result{
			LLMContent:    content,
			ReturnDisplay: content,
			Error: &tool.Error{
				Kind:    tool.ErrExecutionFailed,
				Message: fmt.Sprintf("command exited with status %d", res.ExitCode),
			},
		}, nil
	}
	return tool.Text(content), nil
}

func formatOutput(res *shellexec.Result, timeout time.Duration) string {
	var b strings.Builder

	switch {
	case res.Binary:
		// Output stops accumulating at detection; TotalBytes is the real
		// stream size.
		fmt.Fprintf(&b, "(binary output, %d bytes suppressed)", res.TotalBytes)
	case res.Output == "":
		b.WriteString("(no output)")
	default:
		b.WriteString(res.Output)
	}

	if res.Truncated && !res.Binary {
		b.WriteString("\n(output truncated)")
	}
	if res.Aborted {
		fmt.Fprintf(&b, "\n(command timed out after %s)", timeout)
	} else if res.ExitCode != 0 {
		fmt.Fprintf(&b, "\n(exit status %d", res.ExitCode)
		if res.Signal != "" {
			fmt.Fprintf(&b, ", signal %s", res.Signal)
		}
		b.WriteString(")")
	}
	return b.String()
}

func decodeRequest(params map[string]any) (*request, error) {
	var req request
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &req,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(params); err != nil {
		return nil, err
	}
	return &req, nil
}
