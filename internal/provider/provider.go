// Package provider defines the model API contract the conversation engine
// depends on.
package provider

import (
	"context"
	"fmt"

	"github.com/harklab/hark/internal/message"
	"github.com/harklab/hark/internal/tool"
)

// StopReason indicates why the model stopped generating.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopToolUse      StopReason = "tool_use"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
)

// Usage reports token accounting for one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Request is one model call.
type Request struct {
	Model     string
	System    string
	Messages  []message.Message
	Tools     []tool.Schema
	MaxTokens int
}

// Response is the model's reply.
type Response struct {
	Content    []message.ContentBlock
	StopReason StopReason
	Usage      Usage
}

// Provider is the model API client the engine calls once per turn.
type Provider interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// ErrorKind classifies a transport-level failure.
type ErrorKind string

const (
	ErrUnauthorized ErrorKind = "unauthorized"
	ErrRateLimited  ErrorKind = "rate_limited"
	ErrServer       ErrorKind = "server_error"
	ErrNetwork      ErrorKind = "network_error"
	ErrInvalid      ErrorKind = "invalid_request"
)

// APIError is a classified model-call failure.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("model api error (%s, status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("model api error (%s): %s", e.Kind, e.Message)
}

// Retryable reports whether the failure is transient. Unauthorized is
// never retried.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case ErrRateLimited, ErrServer, ErrNetwork:
		return true
	default:
		return false
	}
}
