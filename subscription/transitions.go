package subscription

// Transition is a change of subscription status.
type Transition struct {
	From Status
	To   Status
}

var validTransitions = map[Transition]bool{
	{StatusActive, StatusSuspended}:  true, // grace window elapsed
	{StatusActive, StatusExpired}:    true, // validity period ended
	{StatusSuspended, StatusActive}:  true, // premium paid while suspended
	{StatusSuspended, StatusExpired}: true, // validity period ended while suspended
}

// CanTransition reports whether moving from one status to another is
// allowed. Keeping the same status is always allowed; nothing leaves
// expired.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	return validTransitions[Transition{from, to}]
}

// Allowed reports whether the change moves along a valid transition.
func (c StatusChange) Allowed() bool {
	return CanTransition(c.From.Status, c.To.Status)
}
