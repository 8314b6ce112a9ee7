package booking

// Action names an appointment state-machine operation.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionStart    Action = "start_serving"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionNoShow   Action = "no_show"
	ActionRate     Action = "rate"
)

var transitionMap = map[Action][]AppointmentStatus{
	ActionConfirm:  {StatusBooked},
	ActionStart:    {StatusConfirmed},
	ActionComplete: {StatusInService},
	ActionCancel:   {StatusBooked, StatusConfirmed},
	ActionNoShow:   {StatusConfirmed},
	ActionRate:     {StatusDone},
}

// CanTransition reports whether the action is allowed from the status.
func CanTransition(a Action, from AppointmentStatus) bool {
	for _, s := range transitionMap[a] {
		if s == from {
			return true
		}
	}
	return false
}
