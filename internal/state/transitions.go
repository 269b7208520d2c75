package state

// validTransitions contains the permitted forward moves of the onboarding flow.
var validTransitions = map[State][]State{
	StateUnknown: {
		StateAwaitingPhone,
	},
	StateAwaitingPhone: {
		StateRegistered,
	},
}

// IsTransitionAllowed reports whether moving from one state to another is valid.
// Staying in the same known state is always allowed.
func IsTransitionAllowed(from, to State) bool {
	if from == to {
		return from.Valid()
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, state := range allowed {
		if state == to {
			return true
		}
	}

	return false
}
