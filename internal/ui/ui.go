// Package ui renders the interactive session: chat transcript, input line,
// spinner, and permission prompts. It consumes engine events and permission
// requests over channels and never mutates core state directly.
package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/harklab/hark/internal/engine"
	"github.com/harklab/hark/internal/permission"
)

// markdownRenderer renders assistant text for the terminal.
type markdownRenderer interface {
	Render(markdown string) (string, error)
}

// conversation is the engine surface the UI drives.
type conversation interface {
	Send(ctx context.Context, text string)
	Events() <-chan engine.Event
}

// confirmationBroker is the permission surface the UI serves.
type confirmationBroker interface {
	Requests() <-chan permission.Request
	Rejections() <-chan permission.Rejection
	Respond(id string, outcome permission.Outcome) bool
}

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryTool
	entryNotice
)

type chatEntry struct {
	kind entryKind
	text string
}

// Model is the bubbletea model for one session.
type Model struct {
	conv     conversation
	broker   confirmationBroker
	renderer markdownRenderer

	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model

	entries []chatEntry
	pending *permission.Request
	busy    bool
	width   int
	height  int

	// baseCtx parents each turn's context; cancelTurn aborts the turn in
	// flight.
	baseCtx    context.Context
	cancelTurn context.CancelFunc
}

// New creates the session UI.
func New(ctx context.Context, conv conversation, broker confirmationBroker, renderer markdownRenderer) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		conv:     conv,
		broker:   broker,
		renderer: renderer,
		input:    ti,
		viewport: viewport.New(80, 20),
		spin:     sp,
		baseCtx:  ctx,
	}
}

// Run starts the bubbletea program and blocks until the session ends.
func Run(ctx context.Context, conv conversation, broker confirmationBroker, renderer markdownRenderer) error {
	program := tea.NewProgram(New(ctx, conv, broker, renderer), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

// Messages delivered by the channel listeners.
type engineEventMsg struct{ event engine.Event }
type permRequestMsg permission.Request
type rejectionMsg permission.Rejection

func listenEvents(ch <-chan engine.Event) tea.Cmd {
	return func() tea.Msg {
		return engineEventMsg{event: <-ch}
	}
}

func listenPermRequests(ch <-chan permission.Request) tea.Cmd {
	return func() tea.Msg {
		return permRequestMsg(<-ch)
	}
}

func listenRejections(ch <-chan permission.Rejection) tea.Cmd {
	return func() tea.Msg {
		return rejectionMsg(<-ch)
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spin.Tick,
		listenEvents(m.conv.Events()),
		listenPermRequests(m.broker.Requests()),
		listenRejections(m.broker.Rejections()),
	)
}
