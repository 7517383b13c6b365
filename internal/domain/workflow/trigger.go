package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerStart       Trigger = "START"
	TriggerAutoApprove Trigger = "AUTO_APPROVE"
	TriggerApprove     Trigger = "APPROVE"
	TriggerReject      Trigger = "REJECT"
	TriggerCancel      Trigger = "CANCEL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
