package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harklab/hark/internal/permission"
	"github.com/harklab/hark/internal/tool"
)

// WriteTool creates or overwrites workspace files. Every call passes the
// permission gate.
type WriteTool struct {
	paths *resolver
}

// NewWriteTool creates a WriteTool rooted at workspaceRoot.
func NewWriteTool(workspaceRoot string) (*WriteTool, error) {
	paths, err := newResolver(workspaceRoot)
	if err != nil {
		return nil, err
	}
	return &WriteTool{paths: paths}, nil
}

type writeRequest struct {
	Path    string `mapstructure:"path"`
	Content string `mapstructure:"content"`
}

func (t *WriteTool) Name() string        { return "write_file" }
func (t *WriteTool) DisplayName() string { return "Write File" }
func (t *WriteTool) Kind() tool.Kind     { return tool.KindEdit }

func (t *WriteTool) Schema() tool.Schema {
	return tool.Schema{
		Name:        "write_file",
		Description: "Create a file or overwrite an existing one with the given content. Parent directories are created as needed.",
		InputSchema: tool.InputSchema{
			Type: "object",
			Properties: map[string]tool.Property{
				"path":    {Type: "string", Description: "Path to the file, relative to the workspace root"},
				"content": {Type: "string", Description: "Full content to write"},
			},
			Required: []string{"path", "content"},
		},
	}
}

func (t *WriteTool) Validate(params map[string]any) error {
	var req writeRequest
	if err := decode(params, &req); err != nil {
		return err
	}
	if req.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	_, err := t.paths.Abs(req.Path)
	return err
}

// Confirmation implements tool.Gated. The old snippet is the current file
// content when the write is an overwrite.
func (t *WriteTool) Confirmation(params map[string]any) permission.ConfirmationDetails {
	var req writeRequest
	_ = decode(params, &req)

	details := permission.ConfirmationDetails{
		Type:       permission.ConfirmEdit,
		ToolName:   "write_file",
		Key:        permission.Key("write_file", req.Path),
		Path:       req.Path,
		NewSnippet: snippet(req.Content),
	}
	if abs, err := t.paths.Abs(req.Path); err == nil {
		if data, err := os.ReadFile(abs); err == nil && !isBinary(data) {
			details.OldSnippet = snippet(string(data))
		}
	}
	return details
}

func (t *WriteTool) Run(ctx context.Context, params map[string]any) (*tool.Result, error) {
	var req writeRequest
	if err := decode(params, &req); err != nil {
		return tool.Errorf(tool.ErrInvalidParams, "%v", err), nil
	}

	abs, err := t.paths.Abs(req.Path)
	if err != nil {
		return tool.Errorf(tool.ErrInvalidParams, "%v", err), nil
	}

	perm := os.FileMode(0o644)
	existed := false
	if info, err := os.Stat(abs); err == nil {
		if info.IsDir() {
			return tool.Errorf(tool.ErrInvalidParams, "%s is a directory", req.Path), nil
		}
		perm = info.Mode().Perm()
		existed = true
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return tool.Errorf(tool.ErrExecutionFailed, "create parent directory: %v", err), nil
	}
	if err := writeFileAtomic(abs, []byte(req.Content), perm); err != nil {
		return tool.Errorf(tool.ErrExecutionFailed, "write %s: %v", req.Path, err), nil
	}

	verb := "Created"
	if existed {
		verb = "Overwrote"
	}
	rel := t.paths.Rel(abs)
	return &tool.Result{
		LLMContent:    fmt.Sprintf("Wrote %d bytes to %s", len(req.Content), rel),
		ReturnDisplay: fmt.Sprintf("%s %s (%d bytes)", verb, rel, len(req.Content)),
	}, nil
}
