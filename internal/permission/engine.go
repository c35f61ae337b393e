package permission

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// shellToolName is the tool whose argument keys are matched against the
// built-in safe-command allowlist.
const shellToolName = "bash"

// Decision is the outcome of a policy check.
type Decision int

const (
	DecisionAsk Decision = iota
	DecisionAllow
	DecisionDeny
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionDeny:
		return "deny"
	default:
		return "ask_user"
	}
}

// Engine evaluates permission keys against the persisted config, a
// session-scoped cache, and the safe-command allowlist, and brokers human
// decisions for everything else.
type Engine struct {
	store  *Store
	broker *Broker
	log    *zap.Logger

	mu      sync.RWMutex
	cfg     *Config
	session map[string]bool
}

// NewEngine creates an Engine over the given store and broker, loading the
// persisted config once.
func NewEngine(store *Store, broker *Broker, log *zap.Logger) (*Engine, error) {
	if store == nil {
		panic("store is required")
	}
	if broker == nil {
		panic("broker is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	cfg, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load permission config: %w", err)
	}

	return &Engine{
		store:   store,
		broker:  broker,
		log:     log,
		cfg:     cfg,
		session: make(map[string]bool),
	}, nil
}

// Broker returns the confirmation broker, for wiring the permission UI.
func (e *Engine) Broker() *Broker {
	return e.broker
}

// Check decides whether the key may proceed. Precedence: deny, exact allow,
// session allow, prefix allow, safe-command allowlist, ask. The result is a
// pure function of the key and the current stored state.
func (e *Engine) Check(key string) Decision {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if slices.Contains(e.cfg.Deny, key) {
		return DecisionDeny
	}
	if slices.Contains(e.cfg.Allow, key) {
		return DecisionAllow
	}
	if e.session[key] {
		return DecisionAllow
	}

	tool, arg, ok := splitKey(key)
	if !ok {
		return DecisionAsk
	}

	for _, entry := range e.cfg.Allow {
		if prefix, isPrefix := prefixOf(entry, tool); isPrefix && matchesPrefix(arg, prefix) {
			return DecisionAllow
		}
	}
	if tool == shellToolName && IsSafeCommand(arg) {
		return DecisionAllow
	}
	return DecisionAsk
}

// Authorize runs the full gate for one tool call: automatic decision where
// possible, otherwise a brokered human decision whose outcome is applied to
// session or persisted state. It returns false when the call must not run.
func (e *Engine) Authorize(ctx context.Context, details ConfirmationDetails) (bool, error) {
	switch e.Check(details.Key) {
	case DecisionAllow:
		return true, nil
	case DecisionDeny:
		e.log.Info("tool call denied by policy",
			zap.String("tool", details.ToolName),
			zap.String("key", details.Key))
		e.broker.Reject(details.ToolName, details.Key)
		return false, nil
	}

	outcome, err := e.broker.Ask(ctx, details)
	if err != nil {
		return false, err
	}

	switch outcome {
	case OutcomeProceedOnce:
		return true, nil
	case OutcomeProceedSession:
		e.mu.Lock()
		e.session[details.Key] = true
		e.mu.Unlock()
		return true, nil
	case OutcomeProceedAlways:
		return true, e.persist(details.Key)
	case OutcomeProceedAlwaysPrefix:
		root := details.RootCommand
		if root == "" {
			root = firstField(details.Command)
		}
		if root == "" {
			return true, e.persist(details.Key)
		}
		return true, e.persist(PrefixRule(details.ToolName, root))
	case OutcomeCancel:
		return false, nil
	default:
		return false, fmt.Errorf("unknown confirmation outcome %q", outcome)
	}
}

func (e *Engine) persist(entry string) error {
	cfg, err := e.store.AppendAllow(entry)
	if err != nil {
		return fmt.Errorf("persist permission %q: %w", entry, err)
	}
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	e.log.Info("permission persisted", zap.String("entry", entry))
	return nil
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
