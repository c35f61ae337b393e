package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/harklab/hark/internal/permission"
	"github.com/harklab/hark/internal/tool"
)

// EditTool performs exact-string replacement in an existing file. Every call
// passes the permission gate with a diff-style preview.
type EditTool struct {
	paths *resolver
}

// NewEditTool creates an EditTool rooted at workspaceRoot.
func NewEditTool(workspaceRoot string) (*EditTool, error) {
	paths, err := newResolver(workspaceRoot)
	if err != nil {
		return nil, err
	}
	return &EditTool{paths: paths}, nil
}

type editRequest struct {
	Path                 string `mapstructure:"path"`
	OldString            string `mapstructure:"old_string"`
	NewString            string `mapstructure:"new_string"`
	ExpectedReplacements int    `mapstructure:"expected_replacements"`
}

func (t *EditTool) Name() string        { return "edit_file" }
func (t *EditTool) DisplayName() string { return "Edit File" }
func (t *EditTool) Kind() tool.Kind     { return tool.KindEdit }

func (t *EditTool) Schema() tool.Schema {
	return tool.Schema{
		Name:        "edit_file",
		Description: "Replace an exact text snippet in an existing file. The old snippet must match the expected number of times (default 1). An empty old_string appends to the end of the file.",
		InputSchema: tool.InputSchema{
			Type: "object",
			Properties: map[string]tool.Property{
				"path":                  {Type: "string", Description: "Path to the file, relative to the workspace root"},
				"old_string":            {Type: "string", Description: "Exact text to replace"},
				"new_string":            {Type: "string", Description: "Replacement text"},
				"expected_replacements": {Type: "integer", Description: "How many occurrences must be replaced (default 1)"},
			},
			Required: []string{"path", "old_string", "new_string"},
		},
	}
}

func (t *EditTool) Validate(params map[string]any) error {
	var req editRequest
	if err := decode(params, &req); err != nil {
		return err
	}
	if req.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if req.ExpectedReplacements < 0 {
		return fmt.Errorf("expected_replacements must be non-negative")
	}
	if req.OldString == req.NewString {
		return fmt.Errorf("old_string and new_string are identical")
	}
	_, err := t.paths.Abs(req.Path)
	return err
}

// Confirmation implements tool.Gated.
func (t *EditTool) Confirmation(params map[string]any) permission.ConfirmationDetails {
	var req editRequest
	_ = decode(params, &req)
	return permission.ConfirmationDetails{
		Type:       permission.ConfirmEdit,
		ToolName:   "edit_file",
		Key:        permission.Key("edit_file", req.Path),
		Path:       req.Path,
		OldSnippet: snippet(req.OldString),
		NewSnippet: snippet(req.NewString),
	}
}

func (t *EditTool) Run(ctx context.Context, params map[string]any) (*tool.Result, error) {
	var req editRequest
	if err := decode(params, &req); err != nil {
		return tool.Errorf(tool.ErrInvalidParams, "%v", err), nil
	}
	if req.ExpectedReplacements == 0 {
		req.ExpectedReplacements = 1
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

	data, err := os.ReadFile(abs)
	if err != nil {
		return tool.Errorf(tool.ErrExecutionFailed, "read %s: %v", req.Path, err), nil
	}
	if isBinary(data) {
		return tool.Errorf(tool.ErrExecutionFailed, "cannot edit binary file: %s", req.Path), nil
	}

	raw := string(data)
	hasCRLF := strings.Contains(raw, "\r\n")
	oldContent := strings.ReplaceAll(raw, "\r\n", "\n")
	oldString := strings.ReplaceAll(req.OldString, "\r\n", "\n")
	newString := strings.ReplaceAll(req.NewString, "\r\n", "\n")

	var content string
	switch {
	case oldString == "":
		// Append; there is exactly one place to append to.
		if req.ExpectedReplacements > 1 {
			return tool.Errorf(tool.ErrExecutionFailed,
				"replacement count mismatch: append has 1 target, got %d", req.ExpectedReplacements), nil
		}
		content = oldContent + newString
	default:
		count := strings.Count(oldContent, oldString)
		if count == 0 {
			return tool.Errorf(tool.ErrExecutionFailed, "snippet not found in %s", req.Path), nil
		}
		if count != req.ExpectedReplacements {
			return tool.Errorf(tool.ErrExecutionFailed,
				"replacement count mismatch in %s: expected %d, found %d",
				req.Path, req.ExpectedReplacements, count), nil
		}
		content = strings.Replace(oldContent, oldString, newString, count)
	}

	final := content
	if hasCRLF {
		final = strings.ReplaceAll(content, "\n", "\r\n")
	}
	if int64(len(final)) > maxFileSize {
		return tool.Errorf(tool.ErrExecutionFailed,
			"file too large after edit: %s (%d bytes, limit %d)", req.Path, len(final), maxFileSize), nil
	}

	if err := writeFileAtomic(abs, []byte(final), info.Mode().Perm()); err != nil {
		return tool.Errorf(tool.ErrExecutionFailed, "write %s: %v", req.Path, err), nil
	}

	rel := t.paths.Rel(abs)
	diff, added, removed := unifiedDiff(filepath.Base(abs), oldContent, content)
	return &tool.Result{
		LLMContent:    fmt.Sprintf("Edited %s (+%d -%d lines)", rel, added, removed),
		ReturnDisplay: diff,
	}, nil
}

func unifiedDiff(filename, oldContent, newContent string) (diff string, added, removed int) {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldContent),
		B:        difflib.SplitLines(newContent),
		FromFile: "a/" + filename,
		ToFile:   "b/" + filename,
		Context:  3,
	}
	diff, _ = difflib.GetUnifiedDiffString(ud)

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			added++
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			removed++
		}
	}
	return diff, added, removed
}
