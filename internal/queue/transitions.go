package queue

// Action names a ticket state-machine operation.
type Action string

const (
	ActionCall     Action = "call"
	ActionStart    Action = "start_serving"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionNoShow   Action = "no_show"
	ActionRate     Action = "rate"
)

var transitionMap = map[Action][]TicketStatus{
	ActionCall:     {TicketWaiting},
	ActionStart:    {TicketCalled},
	ActionComplete: {TicketInService},
	ActionCancel:   {TicketWaiting, TicketCalled},
	ActionNoShow:   {TicketCalled},
	ActionRate:     {TicketDone},
}

// CanTransition reports whether the action is allowed from the status.
// Anything not listed in the table is rejected, never silently ignored.
func CanTransition(a Action, from TicketStatus) bool {
	for _, s := range transitionMap[a] {
		if s == from {
			return true
		}
	}
	return false
}
