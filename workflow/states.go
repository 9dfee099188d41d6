package workflow

// State is a planner workflow state.
type State string

// Planner states.
const (
	StateInit        State = "INIT"
	StateAnalyzing   State = "ANALYZING"
	StateQuestioning State = "QUESTIONING"
	StatePlanning    State = "PLANNING"
	StateValidating  State = "VALIDATING"
	StateRevising    State = "REVISING"
	StateComplete    State = "COMPLETE"
	StateFailed      State = "FAILED"
)

// transitions lists the legal forward edges of the planner state machine.
// FAILED is reachable from every non-terminal state and is handled in
// IsValidTransition rather than repeated per entry.
var transitions = map[State][]State{
	StateInit:        {StateAnalyzing},
	StateAnalyzing:   {StatePlanning, StateQuestioning},
	StateQuestioning: {StatePlanning},
	StatePlanning:    {StateValidating},
	StateValidating:  {StateComplete, StateRevising},
	StateRevising:    {StateValidating},
}

// IsTerminal reports whether s has no outgoing transitions.
func IsTerminal(s State) bool {
	return s == StateComplete || s == StateFailed
}

// IsKnown reports whether s is one of the defined planner states.
func IsKnown(s State) bool {
	switch s {
	case StateInit, StateAnalyzing, StateQuestioning, StatePlanning,
		StateValidating, StateRevising, StateComplete, StateFailed:
		return true
	}
	return false
}

// IsValidTransition reports whether from -> to is a legal edge.
// It is total: any pair outside the table is false, including edges
// originating at COMPLETE or FAILED.
func IsValidTransition(from, to State) bool {
	if !IsKnown(from) || !IsKnown(to) {
		return false
	}
	if IsTerminal(from) {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
