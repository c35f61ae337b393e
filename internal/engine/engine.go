// Package engine drives the multi-turn tool-calling loop: one user message
// in, a stream of events out, with tool calls executed sequentially between
// model round-trips.
package engine

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/harklab/hark/internal/history"
	"github.com/harklab/hark/internal/message"
	"github.com/harklab/hark/internal/provider"
	"github.com/harklab/hark/internal/tool"
)

const defaultMaxTurns = 24

// interruptedMarker is folded into the last history message when a turn is
// aborted, so the model sees that the previous exchange was cut short.
const interruptedMarker = "[interrupted]"

// modelProvider is the model API client the engine calls once per turn.
type modelProvider interface {
	Generate(ctx context.Context, req *provider.Request) (*provider.Response, error)
}

// toolRunner validates and executes tool calls.
type toolRunner interface {
	Schemas() []tool.Schema
	DisplayName(name string) string
	Execute(ctx context.Context, name string, params map[string]any) (*tool.Result, error)
}

// Config tunes an Engine.
type Config struct {
	// Model forwarded to the provider; empty selects its default.
	Model string
	// System prompt sent with every model call.
	System string
	// MaxTurns bounds tool-triggered recursion per user message. Zero
	// selects defaultMaxTurns.
	MaxTurns int
	// MaxTokens per model call; zero selects the provider default.
	MaxTokens int
}

// Engine is one conversation session. It is safe to call Send from any
// goroutine; turns never overlap. Input arriving while a turn is in progress
// queues and is coalesced into a single message when the turn finishes.
type Engine struct {
	provider  modelProvider
	tools     toolRunner
	validator *history.Validator
	cfg       Config
	log       *zap.Logger

	events chan Event

	mu      sync.Mutex
	busy    bool
	queue   []string
	history []message.Message
}

// NewEngine creates an Engine.
func NewEngine(p modelProvider, tools toolRunner, validator *history.Validator, cfg Config, log *zap.Logger) *Engine {
	if p == nil {
		panic("provider is required")
	}
	if tools == nil {
		panic("tools is required")
	}
	if validator == nil {
		panic("validator is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	return &Engine{
		provider:  p,
		tools:     tools,
		validator: validator,
		cfg:       cfg,
		log:       log,
		events:    make(chan Event, 64),
	}
}

// Events is the engine's output stream. It is never closed; CompleteEvent
// and ErrorEvent mark the end of each turn sequence.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Send submits one user message. If a turn is already in progress the text
// queues; queued messages are combined into one list-formatted message when
// the current turn finishes, rather than starting concurrent turns.
func (e *Engine) Send(ctx context.Context, text string) {
	e.mu.Lock()
	e.queue = append(e.queue, text)
	if e.busy {
		e.mu.Unlock()
		return
	}
	e.busy = true
	e.mu.Unlock()

	go e.work(ctx)
}

// Busy reports whether a turn is in progress.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// History returns a snapshot of the conversation so far.
func (e *Engine) History() []message.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]message.Message, len(e.history))
	copy(out, e.history)
	return out
}

// work drains the input queue, one coalesced message per turn sequence.
func (e *Engine) work(ctx context.Context) {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 || ctx.Err() != nil {
			e.busy = false
			e.mu.Unlock()
			return
		}
		text := coalesce(e.queue)
		e.queue = nil
		e.mu.Unlock()

		e.runTurns(ctx, text)
	}
}

// runTurns is one full user-message exchange: model calls and tool rounds
// until the model stops requesting tools, the turn budget runs out, an error
// surfaces, or ctx is cancelled.
func (e *Engine) runTurns(ctx context.Context, userText string) {
	e.append(message.UserText(userText))

	for turns := e.cfg.MaxTurns; ; {
		if ctx.Err() != nil {
			e.interrupt()
			return
		}

		resp, err := e.provider.Generate(ctx, &provider.Request{
			Model:     e.cfg.Model,
			System:    e.cfg.System,
			Messages:  e.validator.ExtractValidHistory(e.History()),
			Tools:     e.tools.Schemas(),
			MaxTokens: e.cfg.MaxTokens,
		})
		if err != nil {
			if ctx.Err() != nil {
				e.interrupt()
				return
			}
			e.log.Error("model call failed", zap.Error(err))
			e.events <- ErrorEvent{Err: err}
			return
		}

		content := history.ConsolidateTextBlocks(resp.Content)
		var assistant message.Message
		if len(content) > 0 {
			assistant = message.Assistant(content)
			e.append(assistant)
		}

		if text := strings.TrimSpace(assistant.Text()); text != "" {
			e.events <- ContentEvent{Text: assistant.Text()}
		}

		uses := assistant.ToolUses()
		if len(uses) == 0 {
			e.events <- CompleteEvent{StopReason: resp.StopReason}
			return
		}

		results, ok := e.runTools(ctx, uses)
		if !ok {
			return
		}
		e.append(message.Message{Role: message.RoleUser, Content: results})
		e.events <- ThinkingEvent{}

		turns--
		if turns <= 0 {
			// Silent truncation: the stream just ends, with no Complete,
			// so callers can tell "unfinished" from "finished".
			e.log.Warn("turn budget exhausted", zap.Int("max_turns", e.cfg.MaxTurns))
			return
		}
	}
}

// runTools executes the model's tool calls strictly in declaration order.
// It returns ok=false when the turn was aborted; unstarted calls get no
// events and no results.
func (e *Engine) runTools(ctx context.Context, uses []message.ContentBlock) ([]message.ContentBlock, bool) {
	results := make([]message.ContentBlock, 0, len(uses))
	for _, use := range uses {
		if ctx.Err() != nil {
			e.interrupt()
			return nil, false
		}

		e.events <- ToolExecutingEvent{
			ID:          use.ID,
			Name:        use.Name,
			DisplayName: e.tools.DisplayName(use.Name),
			Input:       use.Input,
		}

		res, err := e.tools.Execute(ctx, use.Name, use.Input)
		if err != nil {
			// Only cancellation surfaces as an error from the executor.
			e.interrupt()
			return nil, false
		}

		e.events <- ToolCompleteEvent{ID: use.ID, Name: use.Name, Result: res}
		results = append(results, message.ToolResultBlock(use.ID, res.LLMContent, res.Failed()))
	}
	return results, true
}

// interrupt marks the aborted turn by appending the marker to the last
// history message, rather than as a message of its own, which would pair two
// same-role entries. No further events are emitted; partial turns are not
// unwound.
func (e *Engine) interrupt() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.history) == 0 {
		return
	}
	last := &e.history[len(e.history)-1]
	last.Content = append(last.Content, message.TextBlock(interruptedMarker))
}

func (e *Engine) append(m message.Message) {
	e.mu.Lock()
	e.history = append(e.history, m)
	e.mu.Unlock()
}

// coalesce combines queued inputs into one message, formatted as a list when
// there is more than one.
func coalesce(queue []string) string {
	if len(queue) == 1 {
		return queue[0]
	}
	var b strings.Builder
	for i, text := range queue {
		b.WriteString("- ")
		b.WriteString(strings.ReplaceAll(text, "\n", "\n  "))
		if i < len(queue)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
