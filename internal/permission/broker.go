package permission

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ConfirmationType tags a ConfirmationDetails variant.
type ConfirmationType string

const (
	ConfirmExec ConfirmationType = "exec"
	ConfirmEdit ConfirmationType = "edit"
	ConfirmInfo ConfirmationType = "info"
)

// ConfirmationDetails describes what the human is being asked to approve.
type ConfirmationDetails struct {
	Type     ConfirmationType
	ToolName string
	// Key is the permission key persisted on an always-style outcome.
	Key string

	// ConfirmExec
	Command string
	// RootCommand is the leading word of Command, persisted as a prefix
	// rule on OutcomeProceedAlwaysPrefix.
	RootCommand string

	// ConfirmEdit
	Path       string
	OldSnippet string
	NewSnippet string

	// ConfirmInfo
	Description string
}

// Outcome is a human decision on a confirmation request.
type Outcome string

const (
	OutcomeProceedOnce         Outcome = "proceed_once"
	OutcomeProceedSession      Outcome = "proceed_session"
	OutcomeProceedAlways       Outcome = "proceed_always"
	OutcomeProceedAlwaysPrefix Outcome = "proceed_always_prefix"
	OutcomeCancel              Outcome = "cancel"
)

// Request pairs confirmation details with the correlation id its response
// must carry.
type Request struct {
	ID      string
	Details ConfirmationDetails
}

// Rejection is published when the policy auto-denies a call, so observers
// can distinguish "auto-denied" from "user declined".
type Rejection struct {
	ToolName string
	Key      string
}

// Broker pairs confirmation requests with their eventual responses via
// correlation ids. Each request resolves exactly once; resolving removes it
// from the pending set. Multiple requests may be pending simultaneously and
// may resolve out of order.
type Broker struct {
	mu         sync.Mutex
	pending    map[string]chan Outcome
	requests   chan Request
	rejections chan Rejection
}

// NewBroker creates a Broker.
func NewBroker() *Broker {
	return &Broker{
		pending:    make(map[string]chan Outcome),
		requests:   make(chan Request, 8),
		rejections: make(chan Rejection, 8),
	}
}

// Requests is the stream of confirmation requests for the permission UI.
func (b *Broker) Requests() <-chan Request {
	return b.requests
}

// Rejections is the stream of auto-deny notifications.
func (b *Broker) Rejections() <-chan Rejection {
	return b.rejections
}

// Ask publishes a confirmation request and blocks until a matching response
// arrives or ctx is done.
func (b *Broker) Ask(ctx context.Context, details ConfirmationDetails) (Outcome, error) {
	id := uuid.NewString()
	ch := make(chan Outcome, 1)

	b.mu.Lock()
	b.pending[id] = ch
	b.mu.Unlock()

	select {
	case b.requests <- Request{ID: id, Details: details}:
	case <-ctx.Done():
		b.remove(id)
		return OutcomeCancel, ctx.Err()
	}

	select {
	case outcome := <-ch:
		return outcome, nil
	case <-ctx.Done():
		b.remove(id)
		return OutcomeCancel, ctx.Err()
	}
}

// Respond resolves the pending request with the given correlation id. It
// returns false if the id is unknown or already resolved.
func (b *Broker) Respond(id string, outcome Outcome) bool {
	b.mu.Lock()
	ch, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()

	if !ok {
		return false
	}
	ch <- outcome
	return true
}

// Reject publishes an auto-deny notification. Publication is best-effort:
// if no observer is draining the channel the notification is dropped rather
// than blocking the tool call.
func (b *Broker) Reject(toolName, key string) {
	select {
	case b.rejections <- Rejection{ToolName: toolName, Key: key}:
	default:
	}
}

func (b *Broker) remove(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}
