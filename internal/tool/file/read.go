package file

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/harklab/hark/internal/tool"
)

// ReadTool reads workspace files.
type ReadTool struct {
	paths *resolver
}

// NewReadTool creates a ReadTool rooted at workspaceRoot.
func NewReadTool(workspaceRoot string) (*ReadTool, error) {
	paths, err := newResolver(workspaceRoot)
	if err != nil {
		return nil, err
	}
	return &ReadTool{paths: paths}, nil
}

type readRequest struct {
	Path   string `mapstructure:"path"`
	Offset int    `mapstructure:"offset"`
	Limit  int    `mapstructure:"limit"`
}

func (t *ReadTool) Name() string        { return "read_file" }
func (t *ReadTool) DisplayName() string { return "Read File" }
func (t *ReadTool) Kind() tool.Kind     { return tool.KindRead }

func (t *ReadTool) Schema() tool.Schema {
	return tool.Schema{
		Name:        "read_file",
		Description: "Read a file from the workspace. Supports reading a line range via offset and limit.",
		InputSchema: tool.InputSchema{
			Type: "object",
			Properties: map[string]tool.Property{
				"path":   {Type: "string", Description: "Path to the file, relative to the workspace root"},
				"offset": {Type: "integer", Description: "1-based line to start reading from"},
				"limit":  {Type: "integer", Description: "Maximum number of lines to return"},
			},
			Required: []string{"path"},
		},
	}
}

func (t *ReadTool) Validate(params map[string]any) error {
	var req readRequest
	if err := decode(params, &req); err != nil {
		return err
	}
	if req.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if req.Offset < 0 || req.Limit < 0 {
		return fmt.Errorf("offset and limit must be non-negative")
	}
	return nil
}

func (t *ReadTool) Run(ctx context.Context, params map[string]any) (*tool.Result, error) {
	var req readRequest
	if err := decode(params, &req); err != nil {
		return tool.Errorf(tool.ErrInvalidParams, "%v", err), nil
	}

	abs, err := t.paths.Abs(req.Path)
	if err != nil {
		return tool.Errorf(tool.ErrInvalidParams, "%v", err), nil
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return tool.Errorf(tool.ErrFileNotFound, "file not found: %s", req.Path), nil
		}
		return tool.Errorf(tool.ErrExecutionFailed, "stat %s: %v", req.Path, err), nil
	}
	if info.IsDir() {
		return tool.Errorf(tool.ErrInvalidParams, "%s is a directory", req.Path), nil
	}
	if info.Size() > maxFileSize {
		return tool.Errorf(tool.ErrExecutionFailed,
			"file too large: %s (%d bytes, limit %d)", req.Path, info.Size(), maxFileSize), nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return tool.Errorf(tool.ErrExecutionFailed, "read %s: %v", req.Path, err), nil
	}
	if isBinary(data) {
		return tool.Errorf(tool.ErrExecutionFailed, "cannot read binary file: %s", req.Path), nil
	}

	content := string(data)
	if req.Offset > 0 || req.Limit > 0 {
		content = sliceLines(content, req.Offset, req.Limit)
	}

	return &tool.Result{
		LLMContent:    content,
		ReturnDisplay: fmt.Sprintf("Read %s (%d bytes)", t.paths.Rel(abs), len(data)),
	}, nil
}

// sliceLines returns limit lines starting at the 1-based line offset. A zero
// offset starts at the beginning; a zero limit runs to the end.
func sliceLines(content string, offset, limit int) string {
	lines := strings.Split(content, "\n")
	start := 0
	if offset > 0 {
		start = offset - 1
	}
	if start >= len(lines) {
		return ""
	}
	end := len(lines)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return strings.Join(lines[start:end], "\n")
}
