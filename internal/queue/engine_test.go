package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

var baseTime = time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)

func openQueue() *Queue {
	return &Queue{
		ID:                 uuid.New(),
		BusinessID:         uuid.New(),
		Name:               "front desk",
		AverageServiceTime: 10,
		ToleranceTime:      15,
		Status:             StatusOpen,
		IsActive:           true,
	}
}

func waiting(number int) Ticket {
	return Ticket{ID: uuid.New(), Number: number, Status: TicketWaiting}
}

func calledAt(number int, at time.Time) Ticket {
	return Ticket{ID: uuid.New(), Number: number, Status: TicketCalled, CalledAt: &at}
}

func TestIssueNumbersAreSequential(t *testing.T) {
	q := openQueue()

	var active []Ticket
	for want := 1; want <= 5; want++ {
		tk, err := Issue(q, active, baseTime)
		if err != nil {
			t.Fatalf("Issue #%d: %v", want, err)
		}
		if tk.Number != want {
			t.Errorf("ticket number = %d, want %d", tk.Number, want)
		}
		if tk.Status != TicketWaiting {
			t.Errorf("new ticket status = %s, want %s", tk.Status, TicketWaiting)
		}
		if tk.Position != want {
			t.Errorf("ticket position = %d, want %d", tk.Position, want)
		}
		active = append(active, *tk)
	}
}

func TestIssueRejectsClosedOrPaused(t *testing.T) {
	for _, status := range []Status{StatusPaused, StatusClosed} {
		q := openQueue()
		q.Status = status
		if _, err := Issue(q, nil, baseTime); !errors.Is(err, ErrQueueClosed) {
			t.Errorf("status %s: want ErrQueueClosed, got %v", status, err)
		}
	}

	q := openQueue()
	q.IsActive = false
	if _, err := Issue(q, nil, baseTime); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("inactive queue: want ErrQueueClosed, got %v", err)
	}
}

func TestIssueCapacity(t *testing.T) {
	q := openQueue()
	q.MaxCapacity = 2

	active := []Ticket{waiting(1), waiting(2)}
	if _, err := Issue(q, active, baseTime); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("want ErrCapacityExceeded, got %v", err)
	}

	// Terminal tickets free their slot.
	active[0].Status = TicketDone
	tk, err := Issue(q, active, baseTime)
	if err != nil {
		t.Fatalf("Issue after completion: %v", err)
	}
	if tk.Number != 1 {
		t.Errorf("ticket number = %d, want 1", tk.Number)
	}

	// Zero capacity means unbounded.
	q = openQueue()
	many := make([]Ticket, 200)
	for i := range many {
		many[i] = waiting(i + 1)
	}
	if _, err := Issue(q, many, baseTime); err != nil {
		t.Errorf("unbounded queue rejected issue: %v", err)
	}
}

func TestCallNextPicksLowestWaiting(t *testing.T) {
	q := openQueue()
	tickets := []Ticket{waiting(3), waiting(1), waiting(2)}

	called, expired, err := CallNext(q, tickets, baseTime)
	if err != nil {
		t.Fatalf("CallNext: %v", err)
	}
	if expired != nil {
		t.Errorf("unexpected expired ticket %v", expired)
	}
	if called.Number != 1 {
		t.Errorf("called number = %d, want 1", called.Number)
	}
	if called.Status != TicketCalled || called.CalledAt == nil {
		t.Errorf("called ticket not marked: %+v", called)
	}
	if q.CurrentNumber != 1 {
		t.Errorf("queue current number = %d, want 1", q.CurrentNumber)
	}
}

func TestCallNextEmpty(t *testing.T) {
	q := openQueue()
	if _, _, err := CallNext(q, nil, baseTime); !errors.Is(err, ErrEmptyQueue) {
		t.Errorf("want ErrEmptyQueue, got %v", err)
	}
}

func TestCallNextBlocksOnPendingPrevious(t *testing.T) {
	q := openQueue() // tolerance 15 minutes

	// Called 10 minutes ago, still inside tolerance.
	tickets := []Ticket{calledAt(1, baseTime.Add(-10*time.Minute)), waiting(2)}
	if _, _, err := CallNext(q, tickets, baseTime); !errors.Is(err, ErrPreviousTicketPending) {
		t.Errorf("inside tolerance: want ErrPreviousTicketPending, got %v", err)
	}

	// A ticket being served always blocks, regardless of time.
	serving := Ticket{ID: uuid.New(), Number: 1, Status: TicketInService}
	if _, _, err := CallNext(q, []Ticket{serving, waiting(2)}, baseTime); !errors.Is(err, ErrPreviousTicketPending) {
		t.Errorf("in service: want ErrPreviousTicketPending, got %v", err)
	}
}

func TestCallNextExpiresOverduePrevious(t *testing.T) {
	q := openQueue() // tolerance 15 minutes

	tickets := []Ticket{calledAt(1, baseTime.Add(-16*time.Minute)), waiting(2)}
	called, expired, err := CallNext(q, tickets, baseTime)
	if err != nil {
		t.Fatalf("CallNext: %v", err)
	}
	if expired == nil || expired.Number != 1 || expired.Status != TicketNoShow {
		t.Errorf("expired = %+v, want ticket 1 as no-show", expired)
	}
	if called == nil || called.Number != 2 {
		t.Errorf("called = %+v, want ticket 2", called)
	}
}

func TestCallNextExpiresEvenWhenQueueEmpties(t *testing.T) {
	q := openQueue()

	tickets := []Ticket{calledAt(1, baseTime.Add(-time.Hour))}
	called, expired, err := CallNext(q, tickets, baseTime)
	if !errors.Is(err, ErrEmptyQueue) {
		t.Fatalf("want ErrEmptyQueue, got %v", err)
	}
	if called != nil {
		t.Errorf("unexpected called ticket %+v", called)
	}
	if expired == nil || expired.Status != TicketNoShow {
		t.Errorf("the overdue ticket must still expire: %+v", expired)
	}
}

func TestExpireIfOverdue(t *testing.T) {
	calledTime := baseTime

	tests := []struct {
		name    string
		ticket  Ticket
		now     time.Time
		changed bool
	}{
		{"exactly at tolerance stays", calledAt(1, calledTime), calledTime.Add(15 * time.Minute), false},
		{"one minute before stays", calledAt(1, calledTime), calledTime.Add(14 * time.Minute), false},
		{"one minute past expires", calledAt(1, calledTime), calledTime.Add(16 * time.Minute), true},
		{"waiting ticket untouched", waiting(1), calledTime.Add(time.Hour), false},
		{"done ticket untouched", Ticket{ID: uuid.New(), Number: 1, Status: TicketDone}, calledTime.Add(time.Hour), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tk := tc.ticket
			changed, err := ExpireIfOverdue(&tk, 15, tc.now)
			if err != nil {
				t.Fatalf("ExpireIfOverdue: %v", err)
			}
			if changed != tc.changed {
				t.Errorf("changed = %v, want %v", changed, tc.changed)
			}
			if tc.changed && tk.Status != TicketNoShow {
				t.Errorf("status = %s, want %s", tk.Status, TicketNoShow)
			}
			if !tc.changed && tk.Status != tc.ticket.Status {
				t.Errorf("status changed to %s without expiry", tk.Status)
			}

			// Running it again must be a no-op either way.
			again, err := ExpireIfOverdue(&tk, 15, tc.now)
			if err != nil || again {
				t.Errorf("second run: changed=%v err=%v, want no-op", again, err)
			}
		})
	}
}

func TestTicketLifecycle(t *testing.T) {
	now := baseTime
	tk := calledAt(1, now)

	if err := BeginService(&tk, now); err != nil {
		t.Fatalf("BeginService: %v", err)
	}
	if tk.Status != TicketInService || tk.AttendingStartedAt == nil {
		t.Errorf("after BeginService: %+v", tk)
	}

	if err := Complete(&tk, now); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if tk.Status != TicketDone || tk.CompletedAt == nil {
		t.Errorf("after Complete: %+v", tk)
	}

	if err := Complete(&tk, now); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double complete: want ErrInvalidTransition, got %v", err)
	}
	if err := Cancel(&tk); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("cancel after done: want ErrInvalidTransition, got %v", err)
	}
}

func TestRate(t *testing.T) {
	tk := Ticket{ID: uuid.New(), Number: 1, Status: TicketDone}

	if err := Rate(&tk, 5, "rapido e simpatico"); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if tk.Rating == nil || *tk.Rating != 5 {
		t.Errorf("rating = %v, want 5", tk.Rating)
	}
	if tk.Feedback == nil || *tk.Feedback != "rapido e simpatico" {
		t.Errorf("feedback = %v", tk.Feedback)
	}

	if err := Rate(&tk, 3, ""); !errors.Is(err, ErrAlreadyRated) {
		t.Errorf("second rating: want ErrAlreadyRated, got %v", err)
	}

	unrated := Ticket{ID: uuid.New(), Number: 3, Status: TicketDone}
	for _, bad := range []int{0, -1, 6, 42} {
		if err := Rate(&unrated, bad, ""); !errors.Is(err, ErrInvalidRating) {
			t.Errorf("rating %d: want ErrInvalidRating, got %v", bad, err)
		}
	}

	open := waiting(2)
	if err := Rate(&open, 5, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("rating an open ticket: want ErrInvalidTransition, got %v", err)
	}
}

func TestEstimatedPositionAndWait(t *testing.T) {
	mine := waiting(5)
	others := []Ticket{
		waiting(2),
		waiting(7),
		calledAt(1, baseTime),
		{ID: uuid.New(), Number: 3, Status: TicketDone},
		mine,
	}

	// One waiting ticket ahead plus the called one.
	if got := EstimatedPosition(&mine, others); got != 3 {
		t.Errorf("EstimatedPosition = %d, want 3", got)
	}

	if got := EstimatedWait(3, 10); got != 20*time.Minute {
		t.Errorf("EstimatedWait = %s, want 20m", got)
	}
	if got := EstimatedWait(1, 10); got != 0 {
		t.Errorf("EstimatedWait at front = %s, want 0", got)
	}
	if got := EstimatedWait(0, 10); got != 0 {
		t.Errorf("EstimatedWait with no position = %s, want 0", got)
	}
}

func TestResetForNewDay(t *testing.T) {
	q := openQueue()
	q.CurrentNumber = 12
	q.LastIssuedNumber = 17
	q.LastResetDate = "2025-03-02"

	if !ResetForNewDay(q, "2025-03-03") {
		t.Fatal("expected a reset on a new day")
	}
	if q.CurrentNumber != 0 || q.LastIssuedNumber != 0 {
		t.Errorf("counters not zeroed: %+v", q)
	}
	if q.LastResetDate != "2025-03-03" {
		t.Errorf("reset date = %q", q.LastResetDate)
	}

	if ResetForNewDay(q, "2025-03-03") {
		t.Error("second reset on the same day must be a no-op")
	}

	// Numbers restart at 1 after the reset.
	tk, err := Issue(q, nil, baseTime)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tk.Number != 1 {
		t.Errorf("first number after reset = %d, want 1", tk.Number)
	}
}
