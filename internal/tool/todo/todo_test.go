package todo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEmptyStore(t *testing.T) {
	rt := NewReadTool(NewStore())

	res, err := rt.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "No todos.", res.LLMContent)
}

func TestWriteThenRead(t *testing.T) {
	store := NewStore()
	wt := NewWriteTool(store)
	rt := NewReadTool(store)

	params := map[string]any{
		"todos": []any{
			map[string]any{"content": "first task", "status": "completed"},
			map[string]any{"content": "second task", "status": "in_progress"},
			map[string]any{"content": "third task", "status": "pending"},
		},
	}
	require.NoError(t, wt.Validate(params))

	res, err := wt.Run(context.Background(), params)
	require.NoError(t, err)
	require.False(t, res.Failed())

	res, err = rt.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "1. [x] first task\n2. [>] second task\n3. [ ] third task", res.LLMContent)
}

func TestWriteReplacesWholeList(t *testing.T) {
	store := NewStore()
	wt := NewWriteTool(store)

	_, err := wt.Run(context.Background(), map[string]any{
		"todos": []any{
			map[string]any{"content": "a", "status": "pending"},
			map[string]any{"content": "b", "status": "pending"},
		},
	})
	require.NoError(t, err)

	_, err = wt.Run(context.Background(), map[string]any{
		"todos": []any{
			map[string]any{"content": "only", "status": "pending"},
		},
	})
	require.NoError(t, err)

	items := store.Read()
	require.Len(t, items, 1)
	assert.Equal(t, "only", items[0].Content)
}

func TestWriteValidation(t *testing.T) {
	wt := NewWriteTool(NewStore())

	err := wt.Validate(map[string]any{
		"todos": []any{map[string]any{"content": "  ", "status": "pending"}},
	})
	assert.ErrorContains(t, err, "content cannot be empty")

	err = wt.Validate(map[string]any{
		"todos": []any{map[string]any{"content": "task", "status": "done"}},
	})
	assert.ErrorContains(t, err, `invalid status "done"`)
}

func TestStoreReadReturnsCopy(t *testing.T) {
	store := NewStore()
	store.Write([]Item{{Content: "task", Status: StatusPending}})

	items := store.Read()
	items[0].Content = "mutated"

	assert.Equal(t, "task", store.Read()[0].Content)
}
