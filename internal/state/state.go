// Package state defines the per-user conversation states and the allowed moves between them.
package state

import "errors"

// State represents a conversation state stored on the user record.
type State string

const (
	// StateUnknown is the state of a user the bot has never seen.
	StateUnknown State = "unknown"
	// StateAwaitingPhone indicates the user has started and must share a phone number.
	StateAwaitingPhone State = "awaiting_phone"
	// StateRegistered indicates the phone number is stored and internal_id assigned.
	StateRegistered State = "registered"
)

// ErrInvalidTransition indicates that a requested transition is not allowed.
var ErrInvalidTransition = errors.New("invalid state transition")

// All lists every known state in flow order.
func All() []State {
	return []State{StateUnknown, StateAwaitingPhone, StateRegistered}
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	for _, known := range All() {
		if s == known {
			return true
		}
	}
	return false
}

func (s State) String() string {
	return string(s)
}

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// Transition validates from -> to and notifies the registered recorder.
func Transition(from, to State) error {
	if !IsTransitionAllowed(from, to) {
		return ErrInvalidTransition
	}

	if from != to {
		transitionRecorder(string(from), string(to))
	}

	return nil
}
