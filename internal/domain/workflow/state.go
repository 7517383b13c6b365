package workflow

// State represents the overall status of one expense's approval process
type State string

const (
	StatePending   State = "PENDING"
	StateInReview  State = "IN_REVIEW"
	StateApproved  State = "APPROVED"
	StateRejected  State = "REJECTED"
	StateCancelled State = "CANCELLED"
)

var validStates = map[State]bool{
	StatePending:   true,
	StateInReview:  true,
	StateApproved:  true,
	StateRejected:  true,
	StateCancelled: true,
}

var terminalStates = map[State]bool{
	StateApproved:  true,
	StateRejected:  true,
	StateCancelled: true,
}

// IsTerminal returns true if the state accepts no further transitions
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsValid returns true if the state is a valid approval state
func (s State) IsValid() bool {
	return validStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}
