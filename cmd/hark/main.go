// Command hark is an agentic command-line assistant: it holds a conversation
// with a model, lets it invoke local tools, and gates side-effecting calls
// behind a permission prompt.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/harklab/hark/internal/config"
	"github.com/harklab/hark/internal/engine"
	"github.com/harklab/hark/internal/history"
	"github.com/harklab/hark/internal/permission"
	"github.com/harklab/hark/internal/provider/anthropic"
	"github.com/harklab/hark/internal/shellexec"
	"github.com/harklab/hark/internal/tool"
	"github.com/harklab/hark/internal/tool/file"
	"github.com/harklab/hark/internal/tool/shell"
	"github.com/harklab/hark/internal/tool/todo"
	"github.com/harklab/hark/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hark: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\nUsing defaults.\n", err)
		cfg = config.DefaultConfig()
	}

	log, err := newLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer log.Sync()

	workspaceRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY environment variable is required")
	}

	// Permission layer: persisted workspace rules, a broker for human
	// decisions, and the policy engine over both.
	broker := permission.NewBroker()
	store := permission.NewStore(workspaceRoot)
	policy, err := permission.NewEngine(store, broker, log.Named("permission"))
	if err != nil {
		return fmt.Errorf("initialize permission engine: %w", err)
	}

	registry, err := buildRegistry(cfg, workspaceRoot, log)
	if err != nil {
		return fmt.Errorf("initialize tools: %w", err)
	}
	executor := tool.NewExecutor(registry, policy, log.Named("tool"))

	client, err := anthropic.New(anthropic.Config{
		APIKey:     apiKey,
		Model:      cfg.Provider.Model,
		MaxRetries: cfg.Provider.MaxRetries,
		RetryDelay: time.Duration(cfg.Provider.RetryDelayMs) * time.Millisecond,
		OnRateLimitEscalation: func() {
			log.Warn("persistent rate limiting; check plan limits or switch credentials")
		},
	}, log.Named("anthropic"))
	if err != nil {
		return fmt.Errorf("initialize model client: %w", err)
	}

	conv := engine.NewEngine(client, executor,
		history.NewValidator(log.Named("history")),
		engine.Config{
			Model:     cfg.Provider.Model,
			System:    systemPrompt(workspaceRoot),
			MaxTurns:  cfg.Engine.MaxTurns,
			MaxTokens: cfg.Engine.MaxTokens,
		},
		log.Named("engine"))

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("initialize renderer: %w", err)
	}

	return ui.Run(context.Background(), conv, broker, renderer)
}

// buildRegistry registers the built-in tool set. Registration fails fast on
// a duplicate name.
func buildRegistry(cfg *config.Config, workspaceRoot string, log *zap.Logger) (*tool.Registry, error) {
	registry := tool.NewRegistry()

	readTool, err := file.NewReadTool(workspaceRoot)
	if err != nil {
		return nil, err
	}
	writeTool, err := file.NewWriteTool(workspaceRoot)
	if err != nil {
		return nil, err
	}
	editTool, err := file.NewEditTool(workspaceRoot)
	if err != nil {
		return nil, err
	}

	shellService := shellexec.NewService(log.Named("shellexec"))
	bashTool := shell.New(shellService, workspaceRoot, shell.Options{
		DefaultTimeout: time.Duration(cfg.Shell.DefaultTimeoutSec) * time.Second,
		MaxOutputBytes: cfg.Shell.MaxOutputBytes,
	})

	todoStore := todo.NewStore()

	for _, t := range []tool.Tool{
		readTool,
		writeTool,
		editTool,
		bashTool,
		todo.NewReadTool(todoStore),
		todo.NewWriteTool(todoStore),
	} {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// newLogger writes structured logs to a state file rather than the terminal,
// which the TUI owns.
func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	logPath := filepath.Join(stateDir(), "hark.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{logPath}
	cfg.ErrorOutputPaths = []string{logPath}
	return cfg.Build()
}

func stateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "hark")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "hark")
	}
	return filepath.Join(home, ".local", "state", "hark")
}

func systemPrompt(workspaceRoot string) string {
	return fmt.Sprintf(`You are hark, a coding assistant running in a terminal.

You operate on the user's workspace through tools: read_file, write_file,
edit_file, bash, todo_read, and todo_write. Prefer edit_file over write_file
for changes to existing files. Use todo_write to track multi-step work.

Workspace root: %s
Platform: %s
Date: %s

Keep answers concise. When a command or edit needs approval the user will be
prompted; if they decline, respect the decision and continue without it.`,
		workspaceRoot, runtime.GOOS, time.Now().Format("2006-01-02"))
}
