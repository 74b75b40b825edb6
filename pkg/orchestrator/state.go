package orchestrator

import (
	"encoding/json"
	"strings"
)

// State is an enum of the stages a repository's resolve-and-fetch pipeline
// goes through.
type State byte

const (
	// StateUnknown means no state has been set. This is an errornous state.
	StateUnknown State = iota
	// StatePending means the pipeline has not started yet.
	StatePending
	// StateSearching means the build history is being searched for builds.
	StateSearching
	// StateResolved means a build was found for every job.
	StateResolved
	// StateFetching means artifacts are being downloaded.
	StateFetching
	// StateDone means every job was resolved and every matching artifact
	// was downloaded.
	StateDone
	// StateFailed means some job was not resolved or some artifact failed
	// to download.
	StateFailed
)

// String implements the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateSearching:
		return "Searching"
	case StateResolved:
		return "Resolved"
	case StateFetching:
		return "Fetching"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// IsFinal reports whether no further transitions can happen from this
// state.
func (s State) IsFinal() bool {
	return s == StateDone || s == StateFailed
}

// ParseState parses a string as a state, or return StateUnknown if it cannot
// find a matching state value. This is the inverse of the State.String()
// method.
func ParseState(s string) State {
	switch strings.ToLower(s) {
	case "pending":
		return StatePending
	case "searching":
		return StateSearching
	case "resolved":
		return StateResolved
	case "fetching":
		return StateFetching
	case "done":
		return StateDone
	case "failed":
		return StateFailed
	default:
		return StateUnknown
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (s *State) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	*s = ParseState(str)
	return nil
}

// MarshalJSON implements json.Marshaler
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

var transitions = map[State][]State{
	StatePending:   {StateSearching},
	StateSearching: {StateResolved, StateFailed},
	StateResolved:  {StateFetching, StateDone},
	StateFetching:  {StateDone, StateFailed},
}

// CanTransitionTo reports whether moving from this state to next is allowed.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
