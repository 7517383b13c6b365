package event

// Type identifies the type of domain event
type Type string

const (
	TypeSubmitted        Type = "approval.submitted"
	TypeAutoApproved     Type = "approval.auto_approved"
	TypeLevelActivated   Type = "level.activated"
	TypeResponseRecorded Type = "response.recorded"
	TypeLevelResolved    Type = "level.resolved"
	TypeEscalated        Type = "level.escalated"
	TypeStalled          Type = "level.stalled"
	TypeResolved         Type = "approval.resolved"
	TypeCancelled        Type = "approval.cancelled"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeSubmitted,
		TypeAutoApproved,
		TypeLevelActivated,
		TypeResponseRecorded,
		TypeLevelResolved,
		TypeEscalated,
		TypeStalled,
		TypeResolved,
		TypeCancelled:
		return true
	}
	return false
}
