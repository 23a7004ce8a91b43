package document

import "fmt"

// State is the ingestion lifecycle state of a document.
type State string

// Lifecycle: uploaded → chunking → embedding → indexing → ready; failed from any non-terminal state.
const (
	StateUploaded  State = "uploaded"
	StateChunking  State = "chunking"
	StateEmbedding State = "embedding"
	StateIndexing  State = "indexing"
	StateReady     State = "ready"
	StateFailed    State = "failed"
)

var transitions = map[State]State{
	StateUploaded:  StateChunking,
	StateChunking:  StateEmbedding,
	StateEmbedding: StateIndexing,
	StateIndexing:  StateReady,
}

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	switch s {
	case StateUploaded, StateChunking, StateEmbedding, StateIndexing, StateReady, StateFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s State) IsTerminal() bool { return s == StateReady || s == StateFailed }

// Next returns the successor of s on the happy path.
func (s State) Next() (State, bool) {
	n, ok := transitions[s]
	return n, ok
}

// CanTransition reports whether s → to is a legal lifecycle step.
func (s State) CanTransition(to State) bool {
	if s.IsTerminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	n, ok := transitions[s]
	return ok && n == to
}

// Transition returns to if s → to is legal.
func (s State) Transition(to State) (State, error) {
	if !s.CanTransition(to) {
		return s, fmt.Errorf("illegal transition %s -> %s", s, to)
	}
	return to, nil
}

// Previous returns the stage completed right before s was entered; empty for uploaded.
func (s State) Previous() State {
	for from, to := range transitions {
		if to == s {
			return from
		}
	}
	return ""
}

// ParseState parses a stored state string.
func ParseState(s string) (State, error) {
	st := State(s)
	if !st.IsValid() {
		return "", fmt.Errorf("unknown document state %q", s)
	}
	return st, nil
}
