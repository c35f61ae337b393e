// Package anthropic implements the provider contract over the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/harklab/hark/internal/message"
	"github.com/harklab/hark/internal/provider"
	"github.com/harklab/hark/internal/tool"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
)

// Config configures a Client.
type Config struct {
	// APIKey is required.
	APIKey string
	// BaseURL overrides the API endpoint, for proxies and tests.
	BaseURL string
	// Model used when the request leaves it empty.
	Model string
	// MaxRetries for transient failures. Default 3.
	MaxRetries int
	// RetryDelay is the backoff base; the delay doubles per attempt.
	// Default 1s.
	RetryDelay time.Duration
	// OnRateLimitEscalation fires after two consecutive calls exhaust
	// their retries on rate limits, instead of retrying silently forever.
	OnRateLimitEscalation func()
}

// Client calls the Anthropic Messages API with bounded exponential-backoff
// retries. It is the retry layer the conversation engine deliberately does
// not duplicate.
type Client struct {
	client     sdk.Client
	model      string
	maxRetries int
	retryDelay time.Duration
	escalate   func()
	log        *zap.Logger

	rateLimitStreak int
}

// New creates a Client.
func New(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	// The SDK's own retry layer is disabled; this client owns the retry
	// policy so the backoff and escalation behavior is in one place.
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:     sdk.NewClient(opts...),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		escalate:   cfg.OnRateLimitEscalation,
		log:        log,
	}, nil
}

// Generate implements provider.Provider.
func (c *Client) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	var lastErr *provider.APIError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		msg, err := c.client.Messages.New(ctx, params)
		if err == nil {
			c.rateLimitStreak = 0
			return convertResponse(msg), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = classify(err)
		if !lastErr.Retryable() {
			return nil, lastErr
		}
		if attempt < c.maxRetries {
			backoff := c.retryDelay * time.Duration(math.Pow(2, float64(attempt)))
			c.log.Warn("model call failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.String("kind", string(lastErr.Kind)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	if lastErr.Kind == provider.ErrRateLimited {
		c.rateLimitStreak++
		if c.rateLimitStreak >= 2 && c.escalate != nil {
			c.escalate()
		}
	}
	return nil, fmt.Errorf("anthropic: max retries exceeded: %w", lastErr)
}

func (c *Client) buildParams(req *provider.Request) (sdk.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		Messages:  convertMessages(req.Messages),
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return sdk.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

func convertMessages(messages []message.Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(messages))
	for _, msg := range messages {
		var blocks []sdk.ContentBlockParamUnion
		for _, b := range msg.Content {
			switch b.Type {
			case message.BlockText:
				blocks = append(blocks, sdk.NewTextBlock(b.Text))
			case message.BlockToolUse:
				blocks = append(blocks, sdk.NewToolUseBlock(b.ID, b.Input, b.Name))
			case message.BlockToolResult:
				blocks = append(blocks, sdk.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError))
			}
		}

		if msg.Role == message.RoleAssistant {
			out = append(out, sdk.NewAssistantMessage(blocks...))
		} else {
			out = append(out, sdk.NewUserMessage(blocks...))
		}
	}
	return out
}

func convertTools(schemas []tool.Schema) ([]sdk.ToolUnionParam, error) {
	out := make([]sdk.ToolUnionParam, 0, len(schemas))
	for _, s := range schemas {
		raw, err := json.Marshal(s.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("encode schema for %s: %w", s.Name, err)
		}
		var inputSchema sdk.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &inputSchema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", s.Name, err)
		}

		param := sdk.ToolUnionParamOfTool(inputSchema, s.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", s.Name)
		}
		param.OfTool.Description = sdk.String(s.Description)
		out = append(out, param)
	}
	return out, nil
}

func convertResponse(msg *sdk.Message) *provider.Response {
	resp := &provider.Response{
		StopReason: provider.StopReason(msg.StopReason),
		Usage: provider.Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}

	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case sdk.TextBlock:
			resp.Content = append(resp.Content, message.TextBlock(variant.Text))
		case sdk.ToolUseBlock:
			var input map[string]any
			if err := json.Unmarshal([]byte(variant.JSON.Input.Raw()), &input); err != nil {
				input = map[string]any{}
			}
			resp.Content = append(resp.Content, message.ToolUseBlock(variant.ID, variant.Name, input))
		}
	}
	return resp
}

// classify maps SDK and transport errors onto the provider error kinds.
func classify(err error) *provider.APIError {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		kind := provider.ErrInvalid
		switch {
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			kind = provider.ErrUnauthorized
		case apiErr.StatusCode == 429:
			kind = provider.ErrRateLimited
		case apiErr.StatusCode >= 500:
			kind = provider.ErrServer
		}
		return &provider.APIError{Kind: kind, Status: apiErr.StatusCode, Message: err.Error()}
	}
	return &provider.APIError{Kind: provider.ErrNetwork, Message: err.Error()}
}
