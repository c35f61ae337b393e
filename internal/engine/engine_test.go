package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harklab/hark/internal/history"
	"github.com/harklab/hark/internal/message"
	"github.com/harklab/hark/internal/provider"
	"github.com/harklab/hark/internal/tool"
)

type mockProvider struct {
	generateFunc func(ctx context.Context, req *provider.Request) (*provider.Response, error)
	calls        atomic.Int64
}

func (m *mockProvider) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	m.calls.Add(1)
	return m.generateFunc(ctx, req)
}

// scriptedProvider returns the given responses in order.
func scriptedProvider(responses ...*provider.Response) *mockProvider {
	var idx atomic.Int64
	return &mockProvider{
		generateFunc: func(ctx context.Context, req *provider.Request) (*provider.Response, error) {
			i := idx.Add(1) - 1
			if int(i) >= len(responses) {
				return textResponse("fallback"), nil
			}
			return responses[i], nil
		},
	}
}

type mockTools struct {
	executeFunc func(ctx context.Context, name string, params map[string]any) (*tool.Result, error)
	executed    []string
}

func (m *mockTools) Schemas() []tool.Schema { return nil }

func (m *mockTools) DisplayName(name string) string { return name }

func (m *mockTools) Execute(ctx context.Context, name string, params map[string]any) (*tool.Result, error) {
	m.executed = append(m.executed, name)
	if m.executeFunc != nil {
		return m.executeFunc(ctx, name, params)
	}
	return tool.Text("ok"), nil
}

func textResponse(text string) *provider.Response {
	return &provider.Response{
		Content:    []message.ContentBlock{message.TextBlock(text)},
		StopReason: provider.StopEndTurn,
	}
}

func toolResponse(text string, uses ...message.ContentBlock) *provider.Response {
	content := []message.ContentBlock{}
	if text != "" {
		content = append(content, message.TextBlock(text))
	}
	content = append(content, uses...)
	return &provider.Response{Content: content, StopReason: provider.StopToolUse}
}

func newTestEngine(p modelProvider, tools toolRunner, cfg Config) *Engine {
	return NewEngine(p, tools, history.NewValidator(zap.NewNop()), cfg, zap.NewNop())
}

// collect reads events until a CompleteEvent or ErrorEvent arrives, or the
// timeout expires.
func collect(t *testing.T, e *Engine) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-e.Events():
			events = append(events, ev)
			switch ev.(type) {
			case CompleteEvent, ErrorEvent:
				return events
			}
		case <-deadline:
			t.Fatalf("timed out waiting for terminal event; got %d events", len(events))
		}
	}
}

func waitIdle(t *testing.T, e *Engine) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for e.Busy() {
		if time.Now().After(deadline) {
			t.Fatal("engine never went idle")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTextOnlyTurn(t *testing.T) {
	e := newTestEngine(scriptedProvider(textResponse("hello there")), &mockTools{}, Config{})
	e.Send(context.Background(), "hi")

	events := collect(t, e)
	require.Len(t, events, 2)
	assert.Equal(t, ContentEvent{Text: "hello there"}, events[0])
	assert.IsType(t, CompleteEvent{}, events[1])
}

func TestToolFlowEventOrder(t *testing.T) {
	p := scriptedProvider(
		toolResponse("let me check", message.ToolUseBlock("t1", "bash", map[string]any{"command": "ls"})),
		textResponse("all done"),
	)
	tools := &mockTools{}
	e := newTestEngine(p, tools, Config{})
	e.Send(context.Background(), "list files")

	events := collect(t, e)
	require.Len(t, events, 6)
	assert.Equal(t, ContentEvent{Text: "let me check"}, events[0])

	executing, ok := events[1].(ToolExecutingEvent)
	require.True(t, ok)
	assert.Equal(t, "t1", executing.ID)
	assert.Equal(t, "bash", executing.Name)

	complete, ok := events[2].(ToolCompleteEvent)
	require.True(t, ok)
	assert.Equal(t, "t1", complete.ID)
	assert.Equal(t, "ok", complete.Result.LLMContent)

	assert.IsType(t, ThinkingEvent{}, events[3])
	assert.Equal(t, ContentEvent{Text: "all done"}, events[4])
	assert.IsType(t, CompleteEvent{}, events[5])

	assert.Equal(t, []string{"bash"}, tools.executed)
}

func TestToolResultsAggregatedIntoOneMessage(t *testing.T) {
	p := scriptedProvider(
		toolResponse("",
			message.ToolUseBlock("t1", "read_file", map[string]any{"path": "a"}),
			message.ToolUseBlock("t2", "read_file", map[string]any{"path": "b"})),
		textResponse("done"),
	)
	e := newTestEngine(p, &mockTools{}, Config{})
	e.Send(context.Background(), "read both")
	collect(t, e)
	waitIdle(t, e)

	// history: user, assistant(tool_use x2), user(tool_result x2), assistant.
	hist := e.History()
	require.Len(t, hist, 4)
	results := hist[2]
	assert.Equal(t, message.RoleUser, results.Role)
	require.Len(t, results.Content, 2)
	assert.Equal(t, "t1", results.Content[0].ToolUseID)
	assert.Equal(t, "t2", results.Content[1].ToolUseID)
}

func TestSequentialExecutionInModelOrder(t *testing.T) {
	p := scriptedProvider(
		toolResponse("",
			message.ToolUseBlock("t1", "first", nil),
			message.ToolUseBlock("t2", "second", nil),
			message.ToolUseBlock("t3", "third", nil)),
		textResponse("done"),
	)
	tools := &mockTools{}
	e := newTestEngine(p, tools, Config{})
	e.Send(context.Background(), "go")
	collect(t, e)

	assert.Equal(t, []string{"first", "second", "third"}, tools.executed)
}

func TestAbortMidToolsEmitsNothingFurther(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := scriptedProvider(
		toolResponse("",
			message.ToolUseBlock("t1", "slow", nil),
			message.ToolUseBlock("t2", "never", nil),
			message.ToolUseBlock("t3", "never", nil)),
	)
	tools := &mockTools{
		executeFunc: func(c context.Context, name string, params map[string]any) (*tool.Result, error) {
			cancel()
			return nil, c.Err()
		},
	}
	e := newTestEngine(p, tools, Config{})
	e.Send(ctx, "go")
	waitIdle(t, e)

	// Exactly one ToolExecuting for the started call, then silence: no
	// ToolComplete for it and no events for the unstarted calls.
	var events []Event
	for {
		select {
		case ev := <-e.Events():
			events = append(events, ev)
			continue
		default:
		}
		break
	}
	require.Len(t, events, 1)
	assert.IsType(t, ToolExecutingEvent{}, events[0])
	assert.Equal(t, []string{"slow"}, tools.executed)

	// The marker lands inside the assistant message, not as a new entry.
	hist := e.History()
	require.Len(t, hist, 2)
	last := hist[1]
	assert.Equal(t, message.RoleAssistant, last.Role)
	assert.Equal(t, "[interrupted]", last.Text())
}

func TestInterruptMarkerFoldsIntoLastMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &mockProvider{
		generateFunc: func(c context.Context, req *provider.Request) (*provider.Response, error) {
			cancel()
			return nil, c.Err()
		},
	}
	e := newTestEngine(p, &mockTools{}, Config{})
	e.Send(ctx, "go")
	waitIdle(t, e)

	// Aborting with only the user message in history must not create a
	// second user entry; the marker joins the existing one.
	hist := e.History()
	require.Len(t, hist, 1)
	assert.Equal(t, message.RoleUser, hist[0].Role)
	require.Len(t, hist[0].Content, 2)
	assert.Equal(t, "[interrupted]", hist[0].Content[1].Text)
}

func TestProviderErrorEmitsTerminalError(t *testing.T) {
	wantErr := errors.New("api exploded")
	p := &mockProvider{
		generateFunc: func(ctx context.Context, req *provider.Request) (*provider.Response, error) {
			return nil, wantErr
		},
	}
	e := newTestEngine(p, &mockTools{}, Config{})
	e.Send(context.Background(), "hi")

	events := collect(t, e)
	require.Len(t, events, 1)
	errEvent, ok := events[0].(ErrorEvent)
	require.True(t, ok)
	assert.ErrorIs(t, errEvent.Err, wantErr)
}

func TestTurnBudgetExhaustionIsSilent(t *testing.T) {
	// The model requests a tool on every turn, forever.
	p := &mockProvider{
		generateFunc: func(ctx context.Context, req *provider.Request) (*provider.Response, error) {
			return toolResponse("", message.ToolUseBlock("t", "loop", nil)), nil
		},
	}
	e := newTestEngine(p, &mockTools{}, Config{MaxTurns: 2})
	e.Send(context.Background(), "go")
	waitIdle(t, e)

	var thinking, complete int
	for {
		select {
		case ev := <-e.Events():
			switch ev.(type) {
			case ThinkingEvent:
				thinking++
			case CompleteEvent:
				complete++
			}
			continue
		default:
		}
		break
	}
	assert.Equal(t, 2, thinking, "two tool rounds before the budget runs out")
	assert.Zero(t, complete, "truncation must not look like completion")
	assert.Equal(t, int64(2), p.calls.Load())
}

func TestCompleteEventCarriesStopReason(t *testing.T) {
	p := scriptedProvider(&provider.Response{
		Content:    []message.ContentBlock{message.TextBlock("cut sho")},
		StopReason: provider.StopMaxTokens,
	})
	e := newTestEngine(p, &mockTools{}, Config{})
	e.Send(context.Background(), "hi")

	events := collect(t, e)
	complete, ok := events[len(events)-1].(CompleteEvent)
	require.True(t, ok)
	assert.Equal(t, provider.StopMaxTokens, complete.StopReason)
}

func TestAdjacentTextBlocksConsolidated(t *testing.T) {
	p := scriptedProvider(&provider.Response{
		Content: []message.ContentBlock{
			message.TextBlock("part one, "),
			message.TextBlock("part two"),
		},
		StopReason: provider.StopEndTurn,
	})
	e := newTestEngine(p, &mockTools{}, Config{})
	e.Send(context.Background(), "hi")

	events := collect(t, e)
	assert.Equal(t, ContentEvent{Text: "part one, part two"}, events[0])

	waitIdle(t, e)
	hist := e.History()
	require.Len(t, hist[1].Content, 1)
}

func TestQueuedInputCoalescesIntoOneMessage(t *testing.T) {
	release := make(chan struct{})
	var reqs []string
	p := &mockProvider{}
	p.generateFunc = func(ctx context.Context, req *provider.Request) (*provider.Response, error) {
		last := req.Messages[len(req.Messages)-1]
		reqs = append(reqs, last.Text())
		if p.calls.Load() == 1 {
			<-release
		}
		return textResponse("ok"), nil
	}

	e := newTestEngine(p, &mockTools{}, Config{})
	ctx := context.Background()
	e.Send(ctx, "first")

	// Wait for the first turn to be mid-flight, then pile on input.
	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, time.Millisecond)
	e.Send(ctx, "second")
	e.Send(ctx, "third")
	close(release)

	collect(t, e) // first turn
	collect(t, e) // coalesced turn
	waitIdle(t, e)

	require.Len(t, reqs, 2)
	assert.Equal(t, "first", reqs[0])
	assert.Equal(t, "- second\n- third", reqs[1])
}

func TestCoalesceFormatting(t *testing.T) {
	assert.Equal(t, "solo", coalesce([]string{"solo"}))
	assert.Equal(t, "- a\n- b", coalesce([]string{"a", "b"}))
	assert.Equal(t, "- one\n  two\n- three", coalesce([]string{"one\ntwo", "three"}))
}
