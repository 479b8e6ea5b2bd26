// Package workspace holds the canonical client-side model of the sandbox:
// the file tree, per-file canonical and draft content, open tabs, pending
// diffs, the review gate, build status, and the activity/terminal logs. It
// performs no I/O; every other component reads through its accessors and
// mutates it only through the operations defined here.
package workspace

import (
	"sync"

	"github.com/hugemartyr/yellowbench/sdk/yellow"
)

// BuildState is the lifecycle of one build attempt.
type BuildState int

const (
	BuildIdle BuildState = iota
	BuildRunning
	BuildSuccess
	BuildError
)

// String returns the state name for display.
func (s BuildState) String() string {
	switch s {
	case BuildRunning:
		return "building"
	case BuildSuccess:
		return "success"
	case BuildError:
		return "error"
	default:
		return "idle"
	}
}

// LogKind tags an activity log entry with its origin. Entries are produced
// directly by the event dispatch, never reclassified from their text.
type LogKind int

const (
	LogUser LogKind = iota
	LogThought
	LogTool
	LogRun
	LogSystem
	LogError
)

// LogEntry is one line of the append-only activity log.
type LogEntry struct {
	Kind LogKind
	Text string
}

// PendingDiff is one agent-proposed change awaiting resolution, keyed by the
// real file path. A second proposal for the same path replaces the first.
type PendingDiff struct {
	File    string
	OldCode string
	NewCode string
}

// Gate is the suspended state of a run paused for combined review.
type Gate struct {
	Pending bool
	Files   []string
}

// fileState is the per-path content pair. dirty means the draft diverged
// from canonical through a local edit, not through an agent update.
type fileState struct {
	canonical string
	draft     string
	dirty     bool
}

// terminalCap bounds retained terminal history.
const terminalCap = 2000

// Store is the single source of truth for workspace state. One long-lived
// instance is constructed at startup; Reset returns it to the initial state.
// All operations are safe for use from the stream goroutine and the UI
// goroutine; there is a single writer at a time.
type Store struct {
	mu sync.Mutex

	tree         *yellow.FileNode
	files        map[string]*fileState
	open         []string
	current      string
	pending      map[string]PendingDiff
	pendingOrder []string
	gate         Gate
	build        BuildState
	buildOutput  string
	log          []LogEntry
	terminal     []string
	audit        string
	activeRun    string

	// editHint is observational only: it fires after a canonical update so a
	// UI can flash an "agent is editing" indicator. No invariant depends on it.
	editHint func(path string)
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		files:   make(map[string]*fileState),
		pending: make(map[string]PendingDiff),
	}
}

// Reset returns the store to its initial state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = nil
	s.files = make(map[string]*fileState)
	s.open = nil
	s.current = ""
	s.pending = make(map[string]PendingDiff)
	s.pendingOrder = nil
	s.gate = Gate{}
	s.build = BuildIdle
	s.buildOutput = ""
	s.log = nil
	s.terminal = nil
	s.audit = ""
	s.activeRun = ""
}

// OnEditHint registers the observational canonical-update callback.
func (s *Store) OnEditHint(fn func(path string)) {
	s.mu.Lock()
	s.editHint = fn
	s.mu.Unlock()
}

func (s *Store) state(path string) *fileState {
	fs, ok := s.files[path]
	if !ok {
		fs = &fileState{}
		s.files[path] = fs
	}
	return fs
}

// SetFileTree replaces the tree wholesale.
func (s *Store) SetFileTree(tree *yellow.FileNode) {
	s.mu.Lock()
	s.tree = tree
	s.mu.Unlock()
}

// Tree returns the current file tree.
func (s *Store) Tree() *yellow.FileNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

// ApplyCanonicalUpdate records agent-originated content for a path. The
// draft follows canonical only while the path is clean; a dirty draft is the
// operator's in-progress edit and is never overwritten here.
func (s *Store) ApplyCanonicalUpdate(path, content string) {
	s.mu.Lock()
	fs := s.state(path)
	fs.canonical = content
	if !fs.dirty {
		fs.draft = content
	}
	hint := s.editHint
	s.mu.Unlock()

	if hint != nil {
		hint(path)
	}
}

// ApplyLocalEdit records an operator edit to a path's draft.
func (s *Store) ApplyLocalEdit(path, content string) {
	s.mu.Lock()
	fs := s.state(path)
	fs.draft = content
	fs.dirty = true
	s.mu.Unlock()
}

// MarkSaved reconciles draft and canonical after an explicit persist.
func (s *Store) MarkSaved(path, content string) {
	s.mu.Lock()
	fs := s.state(path)
	fs.canonical = content
	fs.draft = content
	fs.dirty = false
	s.mu.Unlock()
}

// Canonical returns the last agent/server-known content for a path.
func (s *Store) Canonical(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fs, ok := s.files[path]; ok {
		return fs.canonical
	}
	return ""
}

// Draft returns the current editable content for a path.
func (s *Store) Draft(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fs, ok := s.files[path]; ok {
		return fs.draft
	}
	return ""
}

// Dirty reports whether a path has an unsaved local edit.
func (s *Store) Dirty(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fs, ok := s.files[path]; ok {
		return fs.dirty
	}
	return false
}

// Open adds a path to the open list (if absent) and makes it current.
func (s *Store) Open(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.open {
		if p == path {
			s.current = path
			return
		}
	}
	s.open = append(s.open, path)
	s.current = path
}

// Close removes a path from the open list and releases its content state.
// Closing the current entry selects the entry immediately before it, else
// the first remaining entry, else none.
func (s *Store) Close(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.open {
		if p == path {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	s.open = append(s.open[:idx], s.open[idx+1:]...)
	delete(s.files, path)

	if s.current != path {
		return
	}
	switch {
	case len(s.open) == 0:
		s.current = ""
	case idx > 0:
		s.current = s.open[idx-1]
	default:
		s.current = s.open[0]
	}
}

// OpenList returns the ordered open paths.
func (s *Store) OpenList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.open...)
}

// Current returns the currently selected open path, or "".
func (s *Store) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// UpsertPendingDiff stages or replaces the pending diff for a file.
// Last proposal wins, including its oldCode baseline.
func (s *Store) UpsertPendingDiff(d PendingDiff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[d.File]; !ok {
		s.pendingOrder = append(s.pendingOrder, d.File)
	}
	s.pending[d.File] = d
}

// PendingDiff returns the pending diff for a file, if any.
func (s *Store) PendingDiff(file string) (PendingDiff, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.pending[file]
	return d, ok
}

// PendingDiffs returns all pending diffs in staging order.
func (s *Store) PendingDiffs() []PendingDiff {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingDiff, 0, len(s.pendingOrder))
	for _, f := range s.pendingOrder {
		if d, ok := s.pending[f]; ok {
			out = append(out, d)
		}
	}
	return out
}

// RemovePendingDiff resolves (forgets) the pending diff for a file.
func (s *Store) RemovePendingDiff(file string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[file]; !ok {
		return
	}
	delete(s.pending, file)
	for i, f := range s.pendingOrder {
		if f == file {
			s.pendingOrder = append(s.pendingOrder[:i], s.pendingOrder[i+1:]...)
			break
		}
	}
}

// ClearPendingDiffs drops the whole pending set.
func (s *Store) ClearPendingDiffs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[string]PendingDiff)
	s.pendingOrder = nil
}

// SetGate opens the review gate with the given file set.
func (s *Store) SetGate(files []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = Gate{Pending: true, Files: append([]string(nil), files...)}
}

// ClearGate closes the review gate.
func (s *Store) ClearGate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = Gate{}
}

// Gate returns the current review gate state.
func (s *Store) Gate() Gate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Gate{Pending: s.gate.Pending, Files: append([]string(nil), s.gate.Files...)}
}

// SetBuildStatus advances the build state machine. A build attempt moves
// idle -> building -> success|error; a new attempt may restart from a
// terminal state back to building. Any other transition is dropped. The
// output is replaced whenever the transition (or no-op repeat) is accepted
// and output is non-empty.
func (s *Store) SetBuildStatus(state BuildState, output string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accepted := false
	switch state {
	case BuildRunning:
		accepted = true
	case BuildSuccess, BuildError:
		accepted = s.build == BuildRunning || s.build == state
	case BuildIdle:
		accepted = s.build == BuildIdle
	}
	if !accepted {
		return
	}
	s.build = state
	if output != "" {
		s.buildOutput = output
	}
}

// BuildStatus returns the build state and its captured output.
func (s *Store) BuildStatus() (BuildState, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.build, s.buildOutput
}

// AppendLog appends one tagged entry to the activity log.
func (s *Store) AppendLog(kind LogKind, text string) {
	s.mu.Lock()
	s.log = append(s.log, LogEntry{Kind: kind, Text: text})
	s.mu.Unlock()
}

// Log returns the activity log.
func (s *Store) Log() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogEntry(nil), s.log...)
}

// AppendTerminal appends one line to the terminal log, capping retention.
func (s *Store) AppendTerminal(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminal = append(s.terminal, line)
	if len(s.terminal) > terminalCap {
		s.terminal = s.terminal[len(s.terminal)-terminalCap:]
	}
}

// Terminal returns the retained terminal log.
func (s *Store) Terminal() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.terminal...)
}

// SetAudit replaces the single audit result slot.
func (s *Store) SetAudit(analysis string) {
	s.mu.Lock()
	s.audit = analysis
	s.mu.Unlock()
}

// Audit returns the current audit result.
func (s *Store) Audit() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audit
}

// SetActiveRun adopts a run identifier as the active one.
func (s *Store) SetActiveRun(runID string) {
	s.mu.Lock()
	s.activeRun = runID
	s.mu.Unlock()
}

// ClearActiveRun deactivates the current run.
func (s *Store) ClearActiveRun() {
	s.mu.Lock()
	s.activeRun = ""
	s.mu.Unlock()
}

// ActiveRun returns the active run identifier, or "".
func (s *Store) ActiveRun() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeRun
}
