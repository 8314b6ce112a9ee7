package booking

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/qzero-app/scheduling-engine/internal/schedule"
)

var (
	ErrServiceInactive   = errors.New("service is not active")
	ErrOutsideHours      = errors.New("requested time is outside working hours")
	ErrSlotConflict      = errors.New("slot conflicts with an existing appointment")
	ErrDailyLimitReached = errors.New("daily booking limit reached")
	ErrInvalidTransition = errors.New("invalid appointment transition")
	ErrAlreadyRated      = errors.New("appointment already rated")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
)

// ComputeSlots generates the candidate start times for a service on one
// weekday window, in chronological order. Slots step by duration+buffer
// from the window start; a slot whose serviceable duration would touch
// the break is dropped and generation resumes at the break end. Slots
// that collide with an existing occupying appointment stay in the list,
// flagged unavailable, so callers can render them as disabled; once the
// service's daily cap is reached every slot is flagged unavailable.
//
// Each existing appointment blocks with its stored duration+buffer, not
// the service's current configuration.
func ComputeSlots(svc *Service, day schedule.DaySchedule, existing []Appointment) []Slot {
	if svc.Duration <= 0 || !day.Enabled || day.End <= day.Start {
		return nil
	}

	step := svc.Duration + svc.BufferTime
	// An inverted break from a legacy blob is treated as no break.
	hasBreak := day.HasBreak && day.BreakEnd > day.BreakStart
	breakLen := int(day.BreakEnd - day.BreakStart)
	atCap := svc.MaxDailySlots > 0 && CountOccupying(existing) >= svc.MaxDailySlots

	var starts []schedule.MinuteOfDay
	for cur := day.Start; int(cur)+svc.Duration <= int(day.End); cur += schedule.MinuteOfDay(step) {
		if hasBreak && schedule.Overlaps(cur, svc.Duration, day.BreakStart, breakLen) {
			continue
		}
		starts = append(starts, cur)
	}
	if hasBreak && int(day.BreakEnd)+svc.Duration <= int(day.End) {
		resumed := day.BreakEnd
		dup := false
		for _, s := range starts {
			if s == resumed {
				dup = true
				break
			}
		}
		if !dup {
			starts = append(starts, resumed)
			sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })
		}
	}

	slots := make([]Slot, 0, len(starts))
	for _, start := range starts {
		slots = append(slots, Slot{
			Start:     start,
			End:       start + schedule.MinuteOfDay(svc.Duration),
			Available: !atCap && findConflict(start, step, existing, nil) == nil,
		})
	}
	return slots
}

// SlotsForDate resolves the weekday window for a calendar date before
// computing slots. A disabled or absent day yields an empty list; that
// is the documented no-availability result, not an error.
func SlotsForDate(svc *Service, date time.Time, existing []Appointment) []Slot {
	return ComputeSlots(svc, svc.Hours.Day(date.Weekday()), existing)
}

// ValidateBooking re-runs the window and overlap checks for a concrete
// start time against the current occupying appointments, excluding the
// appointment being edited when exclude is set. It must run again inside
// the booking critical section: time passes between reading slots and
// writing the booking.
func ValidateBooking(svc *Service, day schedule.DaySchedule, start schedule.MinuteOfDay, existing []Appointment, exclude *uuid.UUID) (*Appointment, error) {
	if !svc.IsActive {
		return nil, ErrServiceInactive
	}
	if !day.Enabled || day.End <= day.Start {
		return nil, ErrOutsideHours
	}
	if start < day.Start || int(start)+svc.Duration > int(day.End) {
		return nil, ErrOutsideHours
	}
	if day.HasBreak && schedule.Overlaps(start, svc.Duration, day.BreakStart, int(day.BreakEnd-day.BreakStart)) {
		return nil, ErrOutsideHours
	}
	if conflict := findConflict(start, svc.Duration+svc.BufferTime, existing, exclude); conflict != nil {
		return conflict, ErrSlotConflict
	}
	return nil, nil
}

// CountOccupying counts the appointments that hold a slot on the day,
// the number compared against a service's daily cap.
func CountOccupying(existing []Appointment) int {
	n := 0
	for _, a := range existing {
		if a.Status.Occupying() {
			n++
		}
	}
	return n
}

func findConflict(start schedule.MinuteOfDay, length int, existing []Appointment, exclude *uuid.UUID) *Appointment {
	for i := range existing {
		a := &existing[i]
		if !a.Status.Occupying() {
			continue
		}
		if exclude != nil && a.ID == *exclude {
			continue
		}
		bStart, bLen := a.Interval()
		if schedule.Overlaps(start, length, bStart, bLen) {
			return a
		}
	}
	return nil
}

// NewAppointment builds an agendado appointment, snapshotting duration
// and buffer from the service at this instant.
func NewAppointment(svc *Service, date string, start schedule.MinuteOfDay, now time.Time) *Appointment {
	return &Appointment{
		ID:          uuid.New(),
		BusinessID:  svc.BusinessID,
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		Date:        date,
		Start:       start,
		Duration:    svc.Duration,
		BufferTime:  svc.BufferTime,
		Status:      StatusBooked,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Confirm moves agendado to confirmado.
func Confirm(a *Appointment, now time.Time) error {
	return transition(a, ActionConfirm, StatusConfirmed, now)
}

// Start moves confirmado to em_atendimento.
func Start(a *Appointment, now time.Time) error {
	return transition(a, ActionStart, StatusInService, now)
}

// Complete moves em_atendimento to concluido.
func Complete(a *Appointment, now time.Time) error {
	return transition(a, ActionComplete, StatusDone, now)
}

// Cancel is the client-initiated exit from agendado or confirmado.
// Cancelling a terminal appointment is an error, not a no-op.
func Cancel(a *Appointment, now time.Time) error {
	return transition(a, ActionCancel, StatusCancelled, now)
}

// MarkNoShow records a tolerance-based no-show on a confirmed booking.
func MarkNoShow(a *Appointment, now time.Time) error {
	return transition(a, ActionNoShow, StatusNoShow, now)
}

func transition(a *Appointment, action Action, to AppointmentStatus, now time.Time) error {
	if !CanTransition(action, a.Status) {
		return ErrInvalidTransition
	}
	a.Status = to
	a.UpdatedAt = now
	return nil
}

// Rate attaches a 1 to 5 rating and optional feedback to a completed
// booking.
func Rate(a *Appointment, rating int, feedback string) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	if !CanTransition(ActionRate, a.Status) {
		return ErrInvalidTransition
	}
	if a.Rating != nil {
		return ErrAlreadyRated
	}
	r := rating
	a.Rating = &r
	if feedback != "" {
		f := feedback
		a.Feedback = &f
	}
	return nil
}

// StartAt resolves the appointment's wall-clock start instant.
func (a *Appointment) StartAt() (time.Time, error) {
	day, err := schedule.ParseDate(a.Date)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(a.Start) * time.Minute), nil
}

// ExpireIfUnconfirmed flips a confirmed appointment to no-show once its
// start time plus the service tolerance has passed without service
// beginning. Idempotent: any other state reports no change.
func ExpireIfUnconfirmed(a *Appointment, toleranceMinutes int, now time.Time) (bool, error) {
	if a.Status != StatusConfirmed {
		return false, nil
	}
	startAt, err := a.StartAt()
	if err != nil {
		return false, err
	}
	if now.Sub(startAt) <= time.Duration(toleranceMinutes)*time.Minute {
		return false, nil
	}
	a.Status = StatusNoShow
	a.UpdatedAt = now
	return true, nil
}

// ReminderDue reports whether a reminder should fire now: the booking is
// occupying, still unsent, and starts within the lead window.
func ReminderDue(a *Appointment, lead time.Duration, now time.Time) bool {
	if a.ReminderSent || !a.Status.Occupying() {
		return false
	}
	startAt, err := a.StartAt()
	if err != nil {
		return false
	}
	until := startAt.Sub(now)
	return until > 0 && until <= lead
}
