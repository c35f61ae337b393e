// Package history keeps the conversation payload well-formed for the model
// API. The validator runs immediately before every model call; it is the
// last line of defense against payloads the API would reject.
package history

import (
	"strings"

	"go.uber.org/zap"

	"github.com/harklab/hark/internal/message"
)

// Validator sanitizes conversation history before model calls.
type Validator struct {
	log *zap.Logger
}

// NewValidator creates a Validator. A nil logger disables warnings.
func NewValidator(log *zap.Logger) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{log: log}
}

// ConsolidateTextBlocks merges adjacent text blocks into one, preserving
// order. Non-text blocks act as merge barriers and pass through unchanged.
func ConsolidateTextBlocks(blocks []message.ContentBlock) []message.ContentBlock {
	if len(blocks) == 0 {
		return blocks
	}

	out := make([]message.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == message.BlockText && len(out) > 0 && out[len(out)-1].Type == message.BlockText {
			out[len(out)-1].Text += b.Text
			continue
		}
		out = append(out, b)
	}
	return out
}

// ExtractValidHistory returns the subsequence of messages safe to send to
// the model. User messages are always kept. Assistant messages are kept only
// if they contain at least one non-empty text block or a tool_use block;
// assistant messages whose entire content is empty or whitespace are dropped.
func (v *Validator) ExtractValidHistory(messages []message.Message) []message.Message {
	valid := make([]message.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role != message.RoleUser && !hasContent(m) {
			v.log.Warn("dropping empty assistant message from history")
			continue
		}
		if len(valid) > 0 && valid[len(valid)-1].Role == m.Role {
			// Permitted by the API, but a correctness smell worth surfacing.
			v.log.Warn("consecutive messages with same role", zap.String("role", string(m.Role)))
		}
		valid = append(valid, m)
	}
	return valid
}

func hasContent(m message.Message) bool {
	for _, b := range m.Content {
		switch b.Type {
		case message.BlockToolUse:
			return true
		case message.BlockText:
			if strings.TrimSpace(b.Text) != "" {
				return true
			}
		}
	}
	return false
}
