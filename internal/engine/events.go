package engine

import (
	"github.com/harklab/hark/internal/provider"
	"github.com/harklab/hark/internal/tool"
)

// Event is the engine's only output channel to the UI. Consumers type-switch
// on the concrete variants.
type Event interface {
	isEvent()
}

// ContentEvent carries the assistant's text for one model turn.
type ContentEvent struct {
	Text string
}

// ToolExecutingEvent announces that a tool call is about to run.
type ToolExecutingEvent struct {
	ID          string
	Name        string
	DisplayName string
	Input       map[string]any
}

// ToolCompleteEvent carries the settled result of a tool call.
type ToolCompleteEvent struct {
	ID     string
	Name   string
	Result *tool.Result
}

// ThinkingEvent marks the gap between tool completion and the next model
// call.
type ThinkingEvent struct{}

// CompleteEvent marks a finished turn sequence. StopReason tells consumers
// whether the model stopped cleanly or hit the token limit. Turn-budget
// exhaustion does not produce one; the stream just ends, so callers can tell
// "finished" from "truncated".
type CompleteEvent struct {
	StopReason provider.StopReason
}

// ErrorEvent is terminal: the model call failed and the turn is over.
type ErrorEvent struct {
	Err error
}

func (ContentEvent) isEvent()       {}
func (ToolExecutingEvent) isEvent() {}
func (ToolCompleteEvent) isEvent()  {}
func (ThinkingEvent) isEvent()      {}
func (CompleteEvent) isEvent()      {}
func (ErrorEvent) isEvent()         {}
