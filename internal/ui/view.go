package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/harklab/hark/internal/permission"
)

var (
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	promptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("11")).
			Padding(0, 1)
	snippetOld = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	snippetNew = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteByte('\n')

	if m.pending != nil {
		b.WriteString(renderPrompt(m.pending.Details))
		b.WriteByte('\n')
	} else if m.busy {
		b.WriteString(m.spin.View())
		b.WriteString(" working...\n")
	}

	b.WriteString(m.input.View())
	return b.String()
}

func (m Model) renderEntries() string {
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch e.kind {
		case entryUser:
			b.WriteString(userStyle.Render("> " + e.text))
		case entryAssistant:
			b.WriteString(m.renderMarkdown(e.text))
		case entryTool:
			b.WriteString(toolStyle.Render(e.text))
		case entryNotice:
			b.WriteString(noticeStyle.Render(e.text))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (m Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// renderPrompt formats the pending confirmation with its key bindings.
func renderPrompt(d permission.ConfirmationDetails) string {
	var b strings.Builder

	switch d.Type {
	case permission.ConfirmExec:
		fmt.Fprintf(&b, "Run command?\n  %s\n", d.Command)
	case permission.ConfirmEdit:
		fmt.Fprintf(&b, "Modify %s?\n", d.Path)
		if d.OldSnippet != "" {
			b.WriteString(snippetOld.Render(prefixLines(d.OldSnippet, "- ")))
			b.WriteByte('\n')
		}
		if d.NewSnippet != "" {
			b.WriteString(snippetNew.Render(prefixLines(d.NewSnippet, "+ ")))
			b.WriteByte('\n')
		}
	default:
		fmt.Fprintf(&b, "%s\n", d.Description)
	}

	b.WriteString("\n[y] once  [s] session  [a] always")
	if d.Type == permission.ConfirmExec && d.RootCommand != "" {
		fmt.Fprintf(&b, "  [p] always for %q", d.RootCommand)
	}
	b.WriteString("  [n] cancel")
	return promptStyle.Render(b.String())
}

func prefixLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
