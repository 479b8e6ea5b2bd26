package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hugemartyr/yellowbench/internal/review"
	"github.com/hugemartyr/yellowbench/internal/workspace"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("11"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	runStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	gateStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("11"))

	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderBottom(false).
			BorderLeft(false).
			BorderRight(false).
			BorderForeground(lipgloss.Color("240"))
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "starting yellowbench..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.transcript.View())
	b.WriteString("\n")
	b.WriteString(m.terminal.View())
	b.WriteString("\n")
	b.WriteString(inputStyle.Width(m.width).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	return b.String()
}

func (m Model) renderHeader() string {
	parts := []string{headerStyle.Render("yellowbench")}

	if run := m.store.ActiveRun(); run != "" {
		parts = append(parts, runStyle.Render("run "+run))
	}
	if m.consumer.Streaming() {
		parts = append(parts, runStyle.Render("streaming"))
	}

	state, _ := m.store.BuildStatus()
	if state != workspace.BuildIdle {
		parts = append(parts, statusStyle.Render("build: "+state.String()))
	}

	if len(m.editing) > 0 {
		paths := make([]string, 0, len(m.editing))
		for p := range m.editing {
			paths = append(paths, p)
		}
		parts = append(parts, toolStyle.Render("agent editing "+strings.Join(paths, ", ")))
	}

	return strings.Join(parts, statusStyle.Render("  |  "))
}

func (m Model) renderStatus() string {
	if m.err != nil {
		return errorStyle.Render("error: " + m.err.Error())
	}

	gate := m.store.Gate()
	if gate.Pending {
		return gateStyle.Render(fmt.Sprintf(
			" review %d file(s): y = apply all, n = discard all, tab = inspect ",
			len(gate.Files),
		))
	}

	open := m.store.OpenList()
	tabs := make([]string, 0, len(open))
	for _, p := range open {
		label := p
		if review.IsPath(p) {
			label = "[review] " + review.Source(p)
		}
		if p == m.store.Current() {
			label = "*" + label
		}
		if m.store.Dirty(p) {
			label += "+"
		}
		tabs = append(tabs, label)
	}

	hint := "enter = run agent, :run <cmd> = exec, tab = next file, ctrl+w = close, esc = cancel, ctrl+c = quit"
	if len(tabs) == 0 {
		return statusStyle.Render(hint)
	}
	return statusStyle.Render(strings.Join(tabs, "  ") + "   " + hint)
}

// renderTranscript builds the activity view: the tagged log, the current
// file or review unit, pending diffs, and the audit slot.
func (m Model) renderTranscript() string {
	var b strings.Builder

	for _, entry := range m.store.Log() {
		switch entry.Kind {
		case workspace.LogUser:
			b.WriteString(userStyle.Render("> " + entry.Text))
		case workspace.LogThought:
			b.WriteString(m.renderMarkdown(entry.Text))
		case workspace.LogTool:
			b.WriteString(toolStyle.Render("  " + entry.Text))
		case workspace.LogRun:
			b.WriteString(runStyle.Render(entry.Text))
		case workspace.LogError:
			b.WriteString(errorStyle.Render(entry.Text))
		default:
			b.WriteString(entry.Text)
		}
		b.WriteString("\n")
	}

	if cur := m.store.Current(); cur != "" {
		if review.IsPath(cur) {
			if d, ok := m.store.PendingDiff(review.Source(cur)); ok {
				b.WriteString("\n")
				b.WriteString(headerStyle.Render("proposed: " + d.File))
				b.WriteString("\n")
				b.WriteString(m.renderDiff(d))
			}
		} else {
			b.WriteString("\n")
			b.WriteString(headerStyle.Render(cur))
			b.WriteString("\n")
			b.WriteString(m.store.Draft(cur))
		}
	}

	if audit := m.store.Audit(); audit != "" {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("audit"))
		b.WriteString("\n")
		b.WriteString(m.renderMarkdown(audit))
		b.WriteString("\n")
	}

	return b.String()
}

// renderMarkdown renders transcript markdown, falling back to the raw text
// when the renderer is unavailable or fails.
func (m Model) renderMarkdown(text string) string {
	if m.markdown == nil {
		return text
	}
	rendered, err := m.markdown.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}

func (m Model) renderDiff(d workspace.PendingDiff) string {
	lines, truncated := review.Render(d)
	if truncated {
		return statusStyle.Render("(diff too large to render)")
	}

	var b strings.Builder
	for _, l := range lines {
		switch l.Type {
		case review.LineAdded:
			b.WriteString(addedStyle.Render("+" + l.Text))
		case review.LineRemoved:
			b.WriteString(removedStyle.Render("-" + l.Text))
		default:
			b.WriteString(" " + l.Text)
		}
		b.WriteString("\n")
	}
	return b.String()
}
