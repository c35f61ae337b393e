package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/harklab/hark/internal/engine"
	"github.com/harklab/hark/internal/permission"
	"github.com/harklab/hark/internal/provider"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 6 // input, status and prompt rows
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case engineEventMsg:
		m = m.applyEvent(msg.event)
		return m, listenEvents(m.conv.Events())

	case permRequestMsg:
		req := permission.Request(msg)
		m.pending = &req
		return m, listenPermRequests(m.broker.Requests())

	case rejectionMsg:
		m.push(entryNotice, fmt.Sprintf("Blocked by policy: %s", msg.Key))
		return m, listenRejections(m.broker.Rejections())
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// applyEvent folds one engine event into the transcript.
func (m Model) applyEvent(ev engine.Event) Model {
	switch ev := ev.(type) {
	case engine.ContentEvent:
		m.push(entryAssistant, ev.Text)
	case engine.ToolExecutingEvent:
		m.push(entryTool, fmt.Sprintf("⚙ %s ...", ev.DisplayName))
	case engine.ToolCompleteEvent:
		display := ev.Result.ReturnDisplay
		if ev.Result.Failed() {
			display = "✗ " + display
		}
		m.push(entryTool, display)
	case engine.ThinkingEvent:
		// Spinner already conveys this; nothing to add.
	case engine.CompleteEvent:
		m.busy = false
		m.cancelTurn = nil
		if ev.StopReason == provider.StopMaxTokens {
			m.push(entryNotice, "Response cut off at the token limit.")
		}
	case engine.ErrorEvent:
		m.busy = false
		m.cancelTurn = nil
		m.push(entryNotice, fmt.Sprintf("Error: %v", ev.Err))
	}
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.pending != nil {
		return m.handlePermissionKey(msg)
	}

	switch msg.String() {
	case "ctrl+c":
		if m.busy && m.cancelTurn != nil {
			// First ctrl+c aborts the turn; quitting needs a second one.
			m.cancelTurn()
			m.cancelTurn = nil
			m.busy = false
			m.push(entryNotice, "Interrupted.")
			return m, nil
		}
		return m, tea.Quit

	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.push(entryUser, text)
		m.input.SetValue("")

		// Always hand the engine a cancellable context. If a turn is in
		// flight the text just queues there, but when the busy flag is
		// stale this Send starts a fresh turn, so ctrl+c must cover both
		// the old context and the new one.
		ctx, cancel := context.WithCancel(m.baseCtx)
		if prev := m.cancelTurn; prev != nil {
			m.cancelTurn = func() {
				prev()
				cancel()
			}
		} else {
			m.cancelTurn = cancel
		}
		m.busy = true
		m.conv.Send(ctx, text)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handlePermissionKey maps a keypress onto a confirmation outcome.
func (m Model) handlePermissionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	outcome, ok := outcomeForKey(msg.String(), m.pending.Details.Type)
	if !ok {
		return m, nil
	}

	m.broker.Respond(m.pending.ID, outcome)
	if outcome == permission.OutcomeCancel {
		m.push(entryNotice, "Declined.")
	}
	m.pending = nil
	return m, nil
}

// outcomeForKey returns the outcome bound to key, if any. The prefix option
// only applies to shell confirmations, which carry a root command.
func outcomeForKey(key string, confType permission.ConfirmationType) (permission.Outcome, bool) {
	switch key {
	case "y":
		return permission.OutcomeProceedOnce, true
	case "s":
		return permission.OutcomeProceedSession, true
	case "a":
		return permission.OutcomeProceedAlways, true
	case "p":
		if confType == permission.ConfirmExec {
			return permission.OutcomeProceedAlwaysPrefix, true
		}
		return "", false
	case "n", "esc":
		return permission.OutcomeCancel, true
	}
	return "", false
}

func (m *Model) push(kind entryKind, text string) {
	m.entries = append(m.entries, chatEntry{kind: kind, text: text})
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderEntries())
	m.viewport.GotoBottom()
}
