package app

// refreshMsg is sent by the stream consumer whenever workspace state
// changed; the UI re-renders from the store.
type refreshMsg struct{}

// errMsg surfaces an operator-actionable failure in the status line.
type errMsg struct{ err error }

// resolvedMsg reports the outcome of a review decision.
type resolvedMsg struct{ approved bool }

// editHintMsg flashes the "agent is editing" indicator for a path.
type editHintMsg struct{ path string }

// editHintExpiredMsg clears the indicator after its display window.
type editHintExpiredMsg struct{ path string }
