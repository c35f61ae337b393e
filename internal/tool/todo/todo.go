// Package todo implements the session task list and the todo_read and
// todo_write tools over it.
package todo

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/harklab/hark/internal/tool"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func validStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Item is one tracked task.
type Item struct {
	Content string `mapstructure:"content"`
	Status  Status `mapstructure:"status"`
}

// Store holds the session's task list. Writes replace the whole list.
type Store struct {
	mu    sync.RWMutex
	items []Item
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Read returns a copy of the current list.
func (s *Store) Read() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Write replaces the current list.
func (s *Store) Write(items []Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]Item, len(items))
	copy(s.items, items)
}

// render formats the list the same way for the model and the display.
func render(items []Item) string {
	if len(items) == 0 {
		return "No todos."
	}
	var b strings.Builder
	for i, item := range items {
		mark := " "
		switch item.Status {
		case StatusInProgress:
			mark = ">"
		case StatusCompleted:
			mark = "x"
		}
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, mark, item.Content)
		if i < len(items)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// ReadTool exposes the task list to the model.
type ReadTool struct {
	store *Store
}

// NewReadTool creates a ReadTool over store.
func NewReadTool(store *Store) *ReadTool {
	if store == nil {
		panic("store is required")
	}
	return &ReadTool{store: store}
}

func (t *ReadTool) Name() string        { return "todo_read" }
func (t *ReadTool) DisplayName() string { return "Read Todos" }
func (t *ReadTool) Kind() tool.Kind     { return tool.KindThink }

func (t *ReadTool) Schema() tool.Schema {
	return tool.Schema{
		Name:        "todo_read",
		Description: "Read the current task list.",
		InputSchema: tool.InputSchema{Type: "object", Properties: map[string]tool.Property{}},
	}
}

func (t *ReadTool) Validate(params map[string]any) error { return nil }

func (t *ReadTool) Run(ctx context.Context, params map[string]any) (*tool.Result, error) {
	return tool.Text(render(t.store.Read())), nil
}

// WriteTool replaces the task list.
type WriteTool struct {
	store *Store
}

// NewWriteTool creates a WriteTool over store.
func NewWriteTool(store *Store) *WriteTool {
	if store == nil {
		panic("store is required")
	}
	return &WriteTool{store: store}
}

type writeRequest struct {
	Todos []Item `mapstructure:"todos"`
}

func (t *WriteTool) Name() string        { return "todo_write" }
func (t *WriteTool) DisplayName() string { return "Write Todos" }
func (t *WriteTool) Kind() tool.Kind     { return tool.KindThink }

func (t *WriteTool) Schema() tool.Schema {
	return tool.Schema{
		Name:        "todo_write",
		Description: "Replace the task list. Pass the full list; omitted tasks are removed.",
		InputSchema: tool.InputSchema{
			Type: "object",
			Properties: map[string]tool.Property{
				"todos": {
					Type:        "array",
					Description: "The full task list",
					Items: &tool.Property{
						Type: "object",
					},
				},
			},
			Required: []string{"todos"},
		},
	}
}

func (t *WriteTool) Validate(params map[string]any) error {
	req, err := decodeWrite(params)
	if err != nil {
		return err
	}
	for i, item := range req.Todos {
		if strings.TrimSpace(item.Content) == "" {
			return fmt.Errorf("todo %d: content cannot be empty", i+1)
		}
		if !validStatus(item.Status) {
			return fmt.Errorf("todo %d: invalid status %q", i+1, item.Status)
		}
	}
	return nil
}

func (t *WriteTool) Run(ctx context.Context, params map[string]any) (*tool.Result, error) {
	req, err := decodeWrite(params)
	if err != nil {
		return tool.Errorf(tool.ErrInvalidParams, "%v", err), nil
	}
	t.store.Write(req.Todos)
	return tool.Text(render(req.Todos)), nil
}

func decodeWrite(params map[string]any) (*writeRequest, error) {
	var req writeRequest
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
