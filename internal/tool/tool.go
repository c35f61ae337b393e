// Package tool defines the tool contract, the name-keyed registry, and the
// executor every tool call passes through.
package tool

import (
	"context"
	"fmt"

	"github.com/harklab/hark/internal/permission"
)

// Kind classifies a tool by its effect on the workspace.
type Kind string

const (
	KindRead    Kind = "read"
	KindEdit    Kind = "edit"
	KindExecute Kind = "execute"
	KindThink   Kind = "think"
)

// Schema is the contract advertised to the model. The executor validates
// incoming params against this same structure, so the two can never drift.
type Schema struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// InputSchema is a JSON-schema object definition.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes one input parameter.
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Items       *Property `json:"items,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
}

// Tool is a capability the agent can invoke. Implementations must be
// stateless and safe for concurrent use.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// DisplayName returns the human-facing name for UI rendering.
	DisplayName() string

	// Kind classifies the tool's side effects.
	Kind() Kind

	// Schema returns the contract advertised to the model.
	Schema() Schema

	// Validate performs tool-specific checks beyond the JSON schema.
	Validate(params map[string]any) error

	// Run executes the tool. Faults are reported via Result.Error; a
	// non-nil error return is reserved for context cancellation.
	Run(ctx context.Context, params map[string]any) (*Result, error)
}

// Gated is implemented by tools whose calls must pass the permission gate
// before running.
type Gated interface {
	// Confirmation derives the permission key and human-facing details
	// for a call with the given params.
	Confirmation(params map[string]any) permission.ConfirmationDetails
}

// ErrorKind classifies a tool failure.
type ErrorKind string

const (
	ErrToolNotFound     ErrorKind = "TOOL_NOT_FOUND"
	ErrInvalidParams    ErrorKind = "INVALID_PARAMS"
	ErrExecutionFailed  ErrorKind = "EXECUTION_FAILED"
	ErrPermissionDenied ErrorKind = "PERMISSION_DENIED"
	ErrFileNotFound     ErrorKind = "FILE_NOT_FOUND"
)

// Error is a tool failure carried inside a Result.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Result is the outcome of a tool call. LLMContent is always populated,
// even on failure, because it is fed back to the model. Error is present
// exactly when the call failed.
type Result struct {
	LLMContent    string
	ReturnDisplay string
	Error         *Error
}

// Failed reports whether the result carries an error.
func (r *Result) Failed() bool {
	return r != nil && r.Error != nil
}

// Errorf builds a failed Result whose message doubles as the model-visible
// content.
func Errorf(kind ErrorKind, format string, args ...any) *Result {
	msg := fmt.Sprintf(format, args...)
	return &Result{
		LLMContent:    "Error: " + msg,
		ReturnDisplay: msg,
		Error:         &Error{Kind: kind, Message: msg},
	}
}

// Text builds a successful Result with identical model and display content.
func Text(content string) *Result {
	return &Result{LLMContent: content, ReturnDisplay: content}
}
