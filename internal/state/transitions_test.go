package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransitionAllowed(t *testing.T) {
	testCases := []struct {
		name     string
		from     State
		to       State
		expected bool
	}{
		{name: "unknown to awaiting phone", from: StateUnknown, to: StateAwaitingPhone, expected: true},
		{name: "awaiting phone to registered", from: StateAwaitingPhone, to: StateRegistered, expected: true},
		{name: "awaiting phone stays", from: StateAwaitingPhone, to: StateAwaitingPhone, expected: true},
		{name: "registered stays", from: StateRegistered, to: StateRegistered, expected: true},
		{name: "unknown straight to registered invalid", from: StateUnknown, to: StateRegistered, expected: false},
		{name: "registered back to awaiting phone invalid", from: StateRegistered, to: StateAwaitingPhone, expected: false},
		{name: "registered to unknown invalid", from: StateRegistered, to: StateUnknown, expected: false},
		{name: "garbage state invalid", from: State("buying"), to: State("buying"), expected: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if actual := IsTransitionAllowed(tc.from, tc.to); actual != tc.expected {
				t.Errorf("IsTransitionAllowed(%s -> %s) = %t, expected %t", tc.from, tc.to, actual, tc.expected)
			}
		})
	}
}

func TestTransition_RecordsOnlyRealMoves(t *testing.T) {
	var recorded [][2]string
	RegisterTransitionRecorder(func(from, to string) {
		recorded = append(recorded, [2]string{from, to})
	})
	t.Cleanup(func() { RegisterTransitionRecorder(nil) })

	require.NoError(t, Transition(StateUnknown, StateAwaitingPhone))
	require.NoError(t, Transition(StateAwaitingPhone, StateAwaitingPhone))
	require.ErrorIs(t, Transition(StateRegistered, StateUnknown), ErrInvalidTransition)

	assert.Equal(t, [][2]string{{"unknown", "awaiting_phone"}}, recorded)
}

func TestState_Valid(t *testing.T) {
	for _, s := range All() {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, State("").Valid())
}
