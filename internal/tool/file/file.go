// Package file implements the workspace file tools: read_file, write_file
// and edit_file. All paths resolve inside the workspace root; escapes are
// rejected before any filesystem access.
package file

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
)

const (
	// maxFileSize caps reads and post-edit writes.
	maxFileSize = 4 * 1024 * 1024

	// snippetLines bounds the preview shown in confirmation prompts.
	snippetLines = 12
)

// resolver confines tool paths to the workspace.
type resolver struct {
	root string
}

func newResolver(workspaceRoot string) (*resolver, error) {
	abs, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	return &resolver{root: abs}, nil
}

// Abs resolves p against the workspace root and rejects paths that land
// outside it.
func (r *resolver) Abs(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.root, abs)
	}
	abs = filepath.Clean(abs)
	if abs != r.root && !strings.HasPrefix(abs, r.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace: %s", p)
	}
	return abs, nil
}

// Rel is the workspace-relative form used in display output.
func (r *resolver) Rel(abs string) string {
	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return abs
	}
	return rel
}

// decode fills a typed request from the raw tool params.
func decode(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}

// writeFileAtomic writes via a sibling temp file and rename, so a crash
// mid-write never leaves a half-written target.
func writeFileAtomic(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func isBinary(data []byte) bool {
	return bytes.IndexByte(data, 0x00) >= 0
}

// snippet trims s to the first snippetLines lines for confirmation previews.
func snippet(s string) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= snippetLines {
		return s
	}
	return strings.Join(lines[:snippetLines], "\n") + "\n..."
}
