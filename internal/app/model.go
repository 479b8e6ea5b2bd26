// Package app is the terminal UI shell over the workbench core. It renders
// from the workspace store and forwards operator actions to the stream
// consumer and diff resolver; it holds no workspace state of its own.
package app

import (
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/hugemartyr/yellowbench/internal/config"
	"github.com/hugemartyr/yellowbench/internal/review"
	"github.com/hugemartyr/yellowbench/internal/stream"
	"github.com/hugemartyr/yellowbench/internal/workspace"
	"github.com/hugemartyr/yellowbench/sdk/yellow"
)

// sharedState carries the program reference for callbacks that outlive
// model copies.
type sharedState struct {
	mu      sync.Mutex
	program *tea.Program
}

func (s *sharedState) setProgram(p *tea.Program) {
	s.mu.Lock()
	s.program = p
	s.mu.Unlock()
}

func (s *sharedState) send(msg tea.Msg) {
	s.mu.Lock()
	p := s.program
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Model is the root bubbletea model.
type Model struct {
	store    *workspace.Store
	consumer *stream.Consumer
	resolver *review.Resolver
	client   *yellow.Client
	prefs    *config.Preferences
	shared   *sharedState

	input      textinput.Model
	transcript viewport.Model
	terminal   viewport.Model
	markdown   *glamour.TermRenderer

	width   int
	height  int
	ready   bool
	err     error
	editing map[string]bool // paths with an active "agent editing" hint
}

// New assembles the UI over an already-constructed core.
func New(store *workspace.Store, consumer *stream.Consumer, resolver *review.Resolver, client *yellow.Client, prefs *config.Preferences) Model {
	input := textinput.New()
	input.Placeholder = "Describe the change you want the agent to make..."
	input.Focus()
	input.CharLimit = 0

	// A nil renderer makes the views fall back to plain text.
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		renderer = nil
	}

	return Model{
		store:    store,
		consumer: consumer,
		resolver: resolver,
		client:   client,
		prefs:    prefs,
		shared:   &sharedState{},
		input:    input,
		markdown: renderer,
		editing:  make(map[string]bool),
	}
}

// SetProgram wires the tea.Program so the consumer and the edit-hint
// callback can push refreshes from their own goroutines.
func (m *Model) SetProgram(p *tea.Program) {
	m.shared.setProgram(p)
	m.consumer.OnChange(func() {
		m.shared.send(refreshMsg{})
	})
	m.store.OnEditHint(func(path string) {
		m.shared.send(editHintMsg{path: path})
	})
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}
