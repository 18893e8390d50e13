package workflow

// State represents a voucher lifecycle state
type State string

const (
	StateActive    State = "active"
	StateUsed      State = "used"
	StateCancelled State = "cancelled"
	StateExpired   State = "expired"
)

var validStates = map[State]bool{
	StateActive:    true,
	StateUsed:      true,
	StateCancelled: true,
	StateExpired:   true,
}

var terminalStates = map[State]bool{
	StateUsed:      true,
	StateCancelled: true,
	StateExpired:   true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
