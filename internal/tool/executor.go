package tool

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/harklab/hark/internal/permission"
)

// Executor is the single chokepoint through which every tool call passes.
// It enforces schema validation and the permission gate; no caller may
// invoke a tool's Run directly.
type Executor struct {
	registry *Registry
	policy   *permission.Engine
	log      *zap.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(registry *Registry, policy *permission.Engine, log *zap.Logger) *Executor {
	if registry == nil {
		panic("registry is required")
	}
	if policy == nil {
		panic("policy is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{registry: registry, policy: policy, log: log}
}

// Schemas exposes the registry's schema list for the model request payload.
func (e *Executor) Schemas() []Schema {
	return e.registry.Schemas()
}

// DisplayName returns the human-facing name for a tool, or the raw name when
// the tool is unknown.
func (e *Executor) DisplayName(name string) string {
	if t, ok := e.registry.Get(name); ok {
		return t.DisplayName()
	}
	return name
}

// Execute runs one tool call end to end: lookup, validation, permission
// gate, run. Faults never propagate as Go errors; they are captured into
// the Result so the model can adapt. The returned error is non-nil only
// when ctx was cancelled before the call settled.
func (e *Executor) Execute(ctx context.Context, name string, params map[string]any) (*Result, error) {
	t, ok := e.registry.Get(name)
	if !ok {
		e.log.Warn("unknown tool requested", zap.String("tool", name))
		return Errorf(ErrToolNotFound, "tool %q does not exist; check the tool list and retry", name), nil
	}

	if err := e.registry.validateParams(name, params); err != nil {
		return Errorf(ErrInvalidParams, "invalid parameters for %q: %v", name, err), nil
	}
	if err := t.Validate(params); err != nil {
		return Errorf(ErrInvalidParams, "invalid parameters for %q: %v", name, err), nil
	}

	if gated, isGated := t.(Gated); isGated {
		allowed, err := e.policy.Authorize(ctx, gated.Confirmation(params))
		if err != nil {
			return nil, err
		}
		if !allowed {
			// A declined permission is not an execution fault: the call
			// simply did not run, and the model is told so.
			return &Result{
				LLMContent:    fmt.Sprintf("The user declined permission to run %q. The call was not executed.", name),
				ReturnDisplay: "Permission declined",
			}, nil
		}
	}

	result, err := e.run(ctx, t, params)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = Errorf(ErrExecutionFailed, "tool %q returned no result", name)
	}
	if result.Failed() {
		e.log.Info("tool call failed",
			zap.String("tool", name),
			zap.String("kind", string(result.Error.Kind)))
	}
	return result, nil
}

// run calls the tool body, converting panics and returned faults into an
// EXECUTION_FAILED result. Context cancellation passes through as an error.
func (e *Executor) run(ctx context.Context, t Tool, params map[string]any) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("tool panicked", zap.String("tool", t.Name()), zap.Any("panic", r))
			result = Errorf(ErrExecutionFailed, "tool %q panicked: %v", t.Name(), r)
			err = nil
		}
	}()

	result, err = t.Run(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return Errorf(ErrExecutionFailed, "tool %q failed: %v", t.Name(), err), nil
	}
	return result, nil
}
