package tool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harklab/hark/internal/permission"
)

// mockTool is a function-field test double.
type mockTool struct {
	name         string
	kind         Kind
	schema       Schema
	validateFunc func(map[string]any) error
	runFunc      func(context.Context, map[string]any) (*Result, error)
	confirmation *permission.ConfirmationDetails
	runCount     atomic.Int64
}

func (m *mockTool) Name() string        { return m.name }
func (m *mockTool) DisplayName() string { return m.name }
func (m *mockTool) Kind() Kind          { return m.kind }
func (m *mockTool) Schema() Schema      { return m.schema }

func (m *mockTool) Validate(params map[string]any) error {
	if m.validateFunc != nil {
		return m.validateFunc(params)
	}
	return nil
}

func (m *mockTool) Run(ctx context.Context, params map[string]any) (*Result, error) {
	m.runCount.Add(1)
	if m.runFunc != nil {
		return m.runFunc(ctx, params)
	}
	return Text("ok"), nil
}

// gatedMockTool adds the Gated capability.
type gatedMockTool struct {
	mockTool
}

func (m *gatedMockTool) Confirmation(params map[string]any) permission.ConfirmationDetails {
	return *m.confirmation
}

func echoSchema(name string) Schema {
	return Schema{
		Name:        name,
		Description: "test tool",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"text": {Type: "string"},
			},
			Required: []string{"text"},
		},
	}
}

func newTestExecutor(t *testing.T, tools ...Tool) (*Executor, *permission.Broker) {
	t.Helper()
	registry := NewRegistry()
	for _, tl := range tools {
		require.NoError(t, registry.Register(tl))
	}
	broker := permission.NewBroker()
	policy, err := permission.NewEngine(permission.NewStore(t.TempDir()), broker, zap.NewNop())
	require.NoError(t, err)
	return NewExecutor(registry, policy, zap.NewNop()), broker
}

func TestRegistryDuplicateRegistrationFails(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&mockTool{name: "echo", schema: echoSchema("echo")}))
	err := registry.Register(&mockTool{name: "echo", schema: echoSchema("echo")})
	assert.ErrorContains(t, err, "already registered")
}

func TestRegistrySchemasSortedByName(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&mockTool{name: "zeta", schema: echoSchema("zeta")}))
	require.NoError(t, registry.Register(&mockTool{name: "alpha", schema: echoSchema("alpha")}))

	schemas := registry.Schemas()
	require.Len(t, schemas, 2)
	assert.Equal(t, "alpha", schemas[0].Name)
	assert.Equal(t, "zeta", schemas[1].Name)
}

func TestExecuteUnknownTool(t *testing.T) {
	known := &mockTool{name: "echo", schema: echoSchema("echo")}
	exec, _ := newTestExecutor(t, known)

	result, err := exec.Execute(context.Background(), "no_such_tool", nil)
	require.NoError(t, err)
	require.True(t, result.Failed())
	assert.Equal(t, ErrToolNotFound, result.Error.Kind)
	// The model is told which name was unknown so it can self-correct.
	assert.Contains(t, result.LLMContent, "no_such_tool")
	assert.Zero(t, known.runCount.Load())
}

func TestExecuteMissingRequiredParam(t *testing.T) {
	tl := &mockTool{name: "echo", schema: echoSchema("echo")}
	exec, _ := newTestExecutor(t, tl)

	result, err := exec.Execute(context.Background(), "echo", map[string]any{})
	require.NoError(t, err)
	require.True(t, result.Failed())
	assert.Equal(t, ErrInvalidParams, result.Error.Kind)
	assert.Zero(t, tl.runCount.Load(), "run must not be called on invalid params")
}

func TestExecuteWrongParamType(t *testing.T) {
	tl := &mockTool{name: "echo", schema: echoSchema("echo")}
	exec, _ := newTestExecutor(t, tl)

	result, err := exec.Execute(context.Background(), "echo", map[string]any{"text": 42})
	require.NoError(t, err)
	require.True(t, result.Failed())
	assert.Equal(t, ErrInvalidParams, result.Error.Kind)
	assert.Zero(t, tl.runCount.Load())
}

func TestExecuteToolSpecificValidator(t *testing.T) {
	tl := &mockTool{
		name:   "echo",
		schema: echoSchema("echo"),
		validateFunc: func(params map[string]any) error {
			return errors.New("text must not be shouty")
		},
	}
	exec, _ := newTestExecutor(t, tl)

	result, err := exec.Execute(context.Background(), "echo", map[string]any{"text": "HI"})
	require.NoError(t, err)
	require.True(t, result.Failed())
	assert.Equal(t, ErrInvalidParams, result.Error.Kind)
	assert.Zero(t, tl.runCount.Load())
}

func TestExecuteSuccess(t *testing.T) {
	tl := &mockTool{name: "echo", schema: echoSchema("echo")}
	exec, _ := newTestExecutor(t, tl)

	result, err := exec.Execute(context.Background(), "echo", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.False(t, result.Failed())
	assert.Equal(t, "ok", result.LLMContent)
	assert.Equal(t, int64(1), tl.runCount.Load())
}

func TestExecuteRunFaultIsWrapped(t *testing.T) {
	tl := &mockTool{
		name:   "echo",
		schema: echoSchema("echo"),
		runFunc: func(ctx context.Context, params map[string]any) (*Result, error) {
			return nil, errors.New("disk on fire")
		},
	}
	exec, _ := newTestExecutor(t, tl)

	result, err := exec.Execute(context.Background(), "echo", map[string]any{"text": "hi"})
	require.NoError(t, err)
	require.True(t, result.Failed())
	assert.Equal(t, ErrExecutionFailed, result.Error.Kind)
	assert.Contains(t, result.LLMContent, "disk on fire")
}

func TestExecutePanicIsWrapped(t *testing.T) {
	tl := &mockTool{
		name:   "echo",
		schema: echoSchema("echo"),
		runFunc: func(ctx context.Context, params map[string]any) (*Result, error) {
			panic("boom")
		},
	}
	exec, _ := newTestExecutor(t, tl)

	result, err := exec.Execute(context.Background(), "echo", map[string]any{"text": "hi"})
	require.NoError(t, err)
	require.True(t, result.Failed())
	assert.Equal(t, ErrExecutionFailed, result.Error.Kind)
}

func TestExecuteGatedToolDeclined(t *testing.T) {
	tl := &gatedMockTool{mockTool: mockTool{name: "bash", schema: echoSchema("bash")}}
	tl.confirmation = &permission.ConfirmationDetails{
		Type:     permission.ConfirmExec,
		ToolName: "bash",
		Key:      permission.Key("bash", "rm -rf /tmp/x"),
		Command:  "rm -rf /tmp/x",
	}
	exec, broker := newTestExecutor(t, tl)

	go func() {
		req := <-broker.Requests()
		broker.Respond(req.ID, permission.OutcomeCancel)
	}()

	result, err := exec.Execute(context.Background(), "bash", map[string]any{"text": "x"})
	require.NoError(t, err)
	// Rejection is a soft result, not an execution fault.
	assert.False(t, result.Failed())
	assert.Contains(t, result.LLMContent, "declined")
	assert.Zero(t, tl.runCount.Load())
}

func TestExecuteGatedToolApproved(t *testing.T) {
	tl := &gatedMockTool{mockTool: mockTool{name: "bash", schema: echoSchema("bash")}}
	tl.confirmation = &permission.ConfirmationDetails{
		Type:     permission.ConfirmExec,
		ToolName: "bash",
		Key:      permission.Key("bash", "make build"),
		Command:  "make build",
	}
	exec, broker := newTestExecutor(t, tl)

	go func() {
		req := <-broker.Requests()
		broker.Respond(req.ID, permission.OutcomeProceedOnce)
	}()

	result, err := exec.Execute(context.Background(), "bash", map[string]any{"text": "x"})
	require.NoError(t, err)
	assert.False(t, result.Failed())
	assert.Equal(t, int64(1), tl.runCount.Load())
}
