package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// editHintWindow is how long the "agent is editing" indicator stays lit
// after a canonical update.
const editHintWindow = 1200 * time.Millisecond

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		return m, nil

	case refreshMsg:
		m.syncViews()
		return m, nil

	case editHintMsg:
		m.editing[msg.path] = true
		path := msg.path
		return m, tea.Tick(editHintWindow, func(time.Time) tea.Msg {
			return editHintExpiredMsg{path: path}
		})

	case editHintExpiredMsg:
		delete(m.editing, msg.path)
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case resolvedMsg:
		m.err = nil
		m.syncViews()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	gate := m.store.Gate()
	if gate.Pending {
		// The gate resolves atomically with a single combined decision;
		// only the review keys are live while it is open.
		switch msg.String() {
		case "y":
			return m, m.resolveGate(true)
		case "n":
			return m, m.resolveGate(false)
		case "tab":
			m.cycleOpen()
			return m, nil
		}
		return m, nil
	}

	switch msg.Type {
	case tea.KeyEnter:
		prompt := strings.TrimSpace(m.input.Value())
		if prompt == "" {
			return m, nil
		}
		m.input.Reset()
		m.err = nil
		if cmd, ok := strings.CutPrefix(prompt, ":run "); ok {
			return m, m.execCommand(strings.TrimSpace(cmd))
		}
		return m, m.startRun(prompt)

	case tea.KeyEsc:
		if m.consumer.Streaming() {
			m.consumer.Cancel()
			return m, nil
		}

	case tea.KeyTab:
		m.cycleOpen()
		return m, nil

	case tea.KeyCtrlW:
		if cur := m.store.Current(); cur != "" {
			m.store.Close(cur)
			m.syncViews()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// startRun kicks off a new invocation. The consumer handles superseding any
// run still in flight.
func (m Model) startRun(prompt string) tea.Cmd {
	consumer := m.consumer
	return func() tea.Msg {
		if err := consumer.Start(context.Background(), prompt); err != nil {
			return errMsg{err: err}
		}
		return refreshMsg{}
	}
}

// execCommand runs a shell command in the sandbox and feeds its output into
// the terminal log alongside the streamed terminal events.
func (m Model) execCommand(command string) tea.Cmd {
	client := m.client
	store := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		store.AppendTerminal("$ " + command)
		resp, err := client.Exec(ctx, command)
		if err != nil {
			return errMsg{err: err}
		}
		for _, line := range resp.Stdout {
			store.AppendTerminal(line)
		}
		for _, line := range resp.Stderr {
			store.AppendTerminal(line)
		}
		if resp.ExitCode != 0 {
			store.AppendTerminal(fmt.Sprintf("exit %d", resp.ExitCode))
		}
		return refreshMsg{}
	}
}

// resolveGate carries out the combined review decision: resolve the staged
// diffs first (so operator edits win over the server's copies), then resume
// the paused run with the same verdict.
func (m Model) resolveGate(approved bool) tea.Cmd {
	resolver := m.resolver
	consumer := m.consumer
	return func() tea.Msg {
		ctx := context.Background()
		if err := resolver.ResolveAll(ctx, approved); err != nil {
			return errMsg{err: err}
		}
		if err := consumer.Resume(ctx, approved); err != nil {
			return errMsg{err: err}
		}
		return resolvedMsg{approved: approved}
	}
}

// cycleOpen advances the current tab through the open list.
func (m *Model) cycleOpen() {
	open := m.store.OpenList()
	if len(open) < 2 {
		return
	}
	cur := m.store.Current()
	for i, p := range open {
		if p == cur {
			m.store.Open(open[(i+1)%len(open)])
			return
		}
	}
	m.store.Open(open[0])
}

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	bodyHeight := m.height - 4 // header, input, status
	if bodyHeight < 4 {
		bodyHeight = 4
	}
	transcriptHeight := int(float64(bodyHeight) * m.prefs.Layout.Editor)
	terminalHeight := bodyHeight - transcriptHeight
	if terminalHeight < 2 {
		terminalHeight = 2
		transcriptHeight = bodyHeight - terminalHeight
	}

	m.transcript.Width = m.width
	m.transcript.Height = transcriptHeight
	m.terminal.Width = m.width
	m.terminal.Height = terminalHeight
	m.input.Width = m.width - 4
	m.syncViews()
}

// syncViews re-renders viewport contents from the store.
func (m *Model) syncViews() {
	m.transcript.SetContent(m.renderTranscript())
	m.transcript.GotoBottom()
	m.terminal.SetContent(strings.Join(m.store.Terminal(), "\n"))
	m.terminal.GotoBottom()
}
