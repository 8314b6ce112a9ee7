package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/qzero-app/scheduling-engine/internal/booking"
	"github.com/qzero-app/scheduling-engine/internal/memory"
	"github.com/qzero-app/scheduling-engine/internal/queue"
	"github.com/qzero-app/scheduling-engine/internal/schedule"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recorder collects emitted events; safe for concurrent publishers.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) ofType(eventType string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type denyAll struct{}

func (denyAll) SchedulingEnabled(context.Context, uuid.UUID) (bool, error) {
	return false, nil
}

type fixture struct {
	facade *Facade
	store  *memory.Store
	clock  *fakeClock
	events *recorder
}

// Monday morning; the test schedules all enable Monday.
var fixtureNow = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	clock := &fakeClock{now: fixtureNow}
	events := &recorder{}

	f := NewFacade(FacadeConfig{
		Queues:       store,
		Bookings:     store,
		Locker:       memory.NewLocker(),
		Entitlements: AllowAll{},
		Events:       events,
		Clock:        clock,
	})
	return &fixture{facade: f, store: store, clock: clock, events: events}
}

func (fx *fixture) addQueue(t *testing.T, mutate func(*queue.Queue)) *queue.Queue {
	t.Helper()
	q := &queue.Queue{
		ID:                 uuid.New(),
		BusinessID:         uuid.New(),
		Name:               "balcao",
		AverageServiceTime: 10,
		ToleranceTime:      15,
		Status:             queue.StatusOpen,
		IsActive:           true,
		LastResetDate:      fixtureNow.Format(schedule.DateLayout),
	}
	if mutate != nil {
		mutate(q)
	}
	fx.store.PutQueue(q)
	return q
}

func (fx *fixture) addService(t *testing.T, mutate func(*booking.Service)) *booking.Service {
	t.Helper()
	var hours schedule.WeekSchedule
	hours.SetDay(time.Monday, schedule.DaySchedule{Enabled: true, Start: 9 * 60, End: 18 * 60})
	svc := &booking.Service{
		ID:            uuid.New(),
		BusinessID:    uuid.New(),
		Name:          "consulta",
		Duration:      30,
		ToleranceTime: 15,
		IsActive:      true,
		Hours:         hours,
	}
	if mutate != nil {
		mutate(svc)
	}
	fx.store.PutService(svc)
	return svc
}

const mondayDate = "2025-03-03"

func TestIssueTicket(t *testing.T) {
	fx := newFixture(t)
	q := fx.addQueue(t, nil)
	ctx := context.Background()

	t1, err := fx.facade.IssueTicket(ctx, q.ID)
	if err != nil {
		t.Fatalf("IssueTicket: %v", err)
	}
	if t1.Number != 1 || t1.Status != queue.TicketWaiting {
		t.Errorf("first ticket = %+v", t1)
	}

	t2, err := fx.facade.IssueTicket(ctx, q.ID)
	if err != nil {
		t.Fatalf("IssueTicket: %v", err)
	}
	if t2.Number != 2 {
		t.Errorf("second number = %d, want 2", t2.Number)
	}

	if got := fx.events.ofType(EventTicketIssued); len(got) != 2 {
		t.Errorf("issued events = %d, want 2", len(got))
	}
}

func TestIssueTicketQueueGates(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	paused := fx.addQueue(t, func(q *queue.Queue) { q.Status = queue.StatusPaused })
	if _, err := fx.facade.IssueTicket(ctx, paused.ID); !errors.Is(err, queue.ErrQueueClosed) {
		t.Errorf("paused queue: want ErrQueueClosed, got %v", err)
	}

	// Working hours apply at issue time. 9:00 on a Monday against an
	// afternoon-only schedule.
	var afternoons schedule.WeekSchedule
	afternoons.SetDay(time.Monday, schedule.DaySchedule{Enabled: true, Start: 13 * 60, End: 18 * 60})
	closed := fx.addQueue(t, func(q *queue.Queue) { q.Hours = &afternoons })
	if _, err := fx.facade.IssueTicket(ctx, closed.ID); !errors.Is(err, queue.ErrQueueClosed) {
		t.Errorf("outside hours: want ErrQueueClosed, got %v", err)
	}

	capped := fx.addQueue(t, func(q *queue.Queue) { q.MaxCapacity = 1 })
	if _, err := fx.facade.IssueTicket(ctx, capped.ID); err != nil {
		t.Fatalf("first ticket: %v", err)
	}
	if _, err := fx.facade.IssueTicket(ctx, capped.ID); !errors.Is(err, queue.ErrCapacityExceeded) {
		t.Errorf("over capacity: want ErrCapacityExceeded, got %v", err)
	}

	if _, err := fx.facade.IssueTicket(ctx, uuid.New()); !errors.Is(err, queue.ErrQueueNotFound) {
		t.Errorf("unknown queue: want ErrQueueNotFound, got %v", err)
	}
}

func TestIssueTicketResetsCountersOnNewDay(t *testing.T) {
	fx := newFixture(t)
	q := fx.addQueue(t, func(q *queue.Queue) {
		q.LastResetDate = "2025-03-02"
		q.CurrentNumber = 41
		q.LastIssuedNumber = 44
	})

	tk, err := fx.facade.IssueTicket(context.Background(), q.ID)
	if err != nil {
		t.Fatalf("IssueTicket: %v", err)
	}
	if tk.Number != 1 {
		t.Errorf("first number of the day = %d, want 1", tk.Number)
	}
}

func TestIssueTicketConcurrentNumbersAreGapFree(t *testing.T) {
	fx := newFixture(t)
	q := fx.addQueue(t, nil)

	const n = 50
	numbers := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tk, err := fx.facade.IssueTicket(context.Background(), q.ID)
			if err != nil {
				t.Errorf("IssueTicket: %v", err)
				return
			}
			numbers <- tk.Number
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int]bool, n)
	for num := range numbers {
		if seen[num] {
			t.Fatalf("duplicate ticket number %d", num)
		}
		seen[num] = true
	}
	for want := 1; want <= n; want++ {
		if !seen[want] {
			t.Errorf("missing ticket number %d", want)
		}
	}
}

func TestEntitlementGate(t *testing.T) {
	fx := newFixture(t)
	q := fx.addQueue(t, nil)
	svc := fx.addService(t, nil)

	denied := NewFacade(FacadeConfig{
		Queues:       fx.store,
		Bookings:     fx.store,
		Locker:       memory.NewLocker(),
		Entitlements: denyAll{},
		Clock:        fx.clock,
	})
	ctx := context.Background()

	if _, err := denied.IssueTicket(ctx, q.ID); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("IssueTicket: want ErrAccessDenied, got %v", err)
	}
	if _, err := denied.BookAppointment(ctx, BookingRequest{
		ServiceID: svc.ID, Date: mondayDate, Time: "10:00",
	}); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("BookAppointment: want ErrAccessDenied, got %v", err)
	}

	// Reads stay open even without the entitlement.
	if _, err := denied.Slots(ctx, svc.ID, mondayDate); err != nil {
		t.Errorf("Slots should not be gated: %v", err)
	}
}

func TestCallNextFlow(t *testing.T) {
	fx := newFixture(t)
	q := fx.addQueue(t, nil)
	ctx := context.Background()

	if _, err := fx.facade.CallNext(ctx, q.ID); !errors.Is(err, queue.ErrEmptyQueue) {
		t.Fatalf("empty queue: want ErrEmptyQueue, got %v", err)
	}

	first, _ := fx.facade.IssueTicket(ctx, q.ID)
	second, _ := fx.facade.IssueTicket(ctx, q.ID)

	called, err := fx.facade.CallNext(ctx, q.ID)
	if err != nil {
		t.Fatalf("CallNext: %v", err)
	}
	if called.ID != first.ID || called.Status != queue.TicketCalled {
		t.Errorf("called = %+v, want first ticket chamado", called)
	}

	// The called client is still inside tolerance, so the next call is
	// rejected rather than skipping them.
	fx.clock.Advance(10 * time.Minute)
	if _, err := fx.facade.CallNext(ctx, q.ID); !errors.Is(err, queue.ErrPreviousTicketPending) {
		t.Fatalf("inside tolerance: want ErrPreviousTicketPending, got %v", err)
	}

	// Past tolerance the pending ticket expires and the next is called.
	fx.clock.Advance(6 * time.Minute)
	called, err = fx.facade.CallNext(ctx, q.ID)
	if err != nil {
		t.Fatalf("CallNext after expiry: %v", err)
	}
	if called.ID != second.ID {
		t.Errorf("called = %+v, want second ticket", called)
	}

	expired, err := fx.store.GetTicket(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if expired.Status != queue.TicketNoShow {
		t.Errorf("first ticket status = %s, want falta", expired.Status)
	}

	if got := fx.events.ofType(EventTicketNoShow); len(got) != 1 {
		t.Errorf("no-show events = %d, want 1", len(got))
	}
	if got := fx.events.ofType(EventTicketCalled); len(got) != 2 {
		t.Errorf("called events = %d, want 2", len(got))
	}
}

func TestTicketServiceLifecycle(t *testing.T) {
	fx := newFixture(t)
	q := fx.addQueue(t, nil)
	ctx := context.Background()

	tk, _ := fx.facade.IssueTicket(ctx, q.ID)
	if _, err := fx.facade.CallNext(ctx, q.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := fx.facade.BeginService(ctx, tk.ID); err != nil {
		t.Fatalf("BeginService: %v", err)
	}
	done, err := fx.facade.CompleteTicket(ctx, tk.ID)
	if err != nil {
		t.Fatalf("CompleteTicket: %v", err)
	}
	if done.Status != queue.TicketDone {
		t.Errorf("status = %s, want concluido", done.Status)
	}

	rated, err := fx.facade.RateTicket(ctx, tk.ID, 5, "excelente")
	if err != nil {
		t.Fatalf("RateTicket: %v", err)
	}
	if rated.Rating == nil || *rated.Rating != 5 {
		t.Errorf("rating = %v, want 5", rated.Rating)
	}
	if _, err := fx.facade.RateTicket(ctx, tk.ID, 1, ""); !errors.Is(err, queue.ErrAlreadyRated) {
		t.Errorf("second rating: want ErrAlreadyRated, got %v", err)
	}

	if _, err := fx.facade.CancelTicket(ctx, tk.ID); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Errorf("cancel after done: want ErrInvalidTransition, got %v", err)
	}
}

func TestTicketStatusExpiresLazily(t *testing.T) {
	fx := newFixture(t)
	q := fx.addQueue(t, nil)
	ctx := context.Background()

	tk, _ := fx.facade.IssueTicket(ctx, q.ID)
	if _, err := fx.facade.CallNext(ctx, q.ID); err != nil {
		t.Fatal(err)
	}

	fx.clock.Advance(16 * time.Minute)

	view, err := fx.facade.TicketStatus(ctx, tk.ID)
	if err != nil {
		t.Fatalf("TicketStatus: %v", err)
	}
	if view.Ticket.Status != queue.TicketNoShow {
		t.Errorf("status = %s, want falta", view.Ticket.Status)
	}

	// A second read does not expire or emit again.
	if _, err := fx.facade.TicketStatus(ctx, tk.ID); err != nil {
		t.Fatal(err)
	}
	if got := fx.events.ofType(EventTicketNoShow); len(got) != 1 {
		t.Errorf("no-show events = %d, want 1", len(got))
	}
}

func TestTicketStatusPositionAndWait(t *testing.T) {
	fx := newFixture(t)
	q := fx.addQueue(t, nil)
	ctx := context.Background()

	fx.facade.IssueTicket(ctx, q.ID)
	fx.facade.IssueTicket(ctx, q.ID)
	third, _ := fx.facade.IssueTicket(ctx, q.ID)

	view, err := fx.facade.TicketStatus(ctx, third.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.Position != 3 {
		t.Errorf("position = %d, want 3", view.Position)
	}
	if view.EstimatedWait != 20*time.Minute {
		t.Errorf("estimated wait = %s, want 20m", view.EstimatedWait)
	}
}

func TestBookAppointment(t *testing.T) {
	fx := newFixture(t)
	svc := fx.addService(t, nil)
	ctx := context.Background()

	appt, err := fx.facade.BookAppointment(ctx, BookingRequest{
		ServiceID: svc.ID, Date: mondayDate, Time: "10:00", Notes: "primeira vez",
	})
	if err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}
	if appt.Status != booking.StatusBooked || appt.Start != 10*60 {
		t.Errorf("appointment = %+v", appt)
	}
	if appt.Notes == nil || *appt.Notes != "primeira vez" {
		t.Errorf("notes = %v", appt.Notes)
	}

	// Overlapping attempt loses and learns who blocks it.
	_, err = fx.facade.BookAppointment(ctx, BookingRequest{
		ServiceID: svc.ID, Date: mondayDate, Time: "10:15",
	})
	if !errors.Is(err, booking.ErrSlotConflict) {
		t.Fatalf("want ErrSlotConflict, got %v", err)
	}
	var ce *ConflictError
	if !errors.As(err, &ce) || ce.EntityID != appt.ID {
		t.Errorf("conflict error = %v, want EntityID of the winner", err)
	}

	if _, err := fx.facade.BookAppointment(ctx, BookingRequest{
		ServiceID: svc.ID, Date: mondayDate, Time: "08:00",
	}); !errors.Is(err, booking.ErrOutsideHours) {
		t.Errorf("before opening: want ErrOutsideHours, got %v", err)
	}

	if _, err := fx.facade.BookAppointment(ctx, BookingRequest{
		ServiceID: svc.ID, Date: "03-03-2025", Time: "10:00",
	}); !errors.Is(err, schedule.ErrBadDate) {
		t.Errorf("bad date: want ErrBadDate, got %v", err)
	}

	if got := fx.events.ofType(EventAppointmentBooked); len(got) != 1 {
		t.Errorf("booked events = %d, want 1", len(got))
	}
}

func TestBookAppointmentDailyLimit(t *testing.T) {
	fx := newFixture(t)
	svc := fx.addService(t, func(s *booking.Service) { s.MaxDailySlots = 2 })
	ctx := context.Background()

	for _, at := range []string{"09:00", "10:00"} {
		if _, err := fx.facade.BookAppointment(ctx, BookingRequest{
			ServiceID: svc.ID, Date: mondayDate, Time: at,
		}); err != nil {
			t.Fatalf("booking at %s: %v", at, err)
		}
	}

	_, err := fx.facade.BookAppointment(ctx, BookingRequest{
		ServiceID: svc.ID, Date: mondayDate, Time: "11:00",
	})
	if !errors.Is(err, booking.ErrDailyLimitReached) {
		t.Fatalf("want ErrDailyLimitReached, got %v", err)
	}

	// At the cap the slot list still renders, every slot unavailable.
	slots, err := fx.facade.Slots(ctx, svc.ID, mondayDate)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("slots must still render at the daily cap")
	}
	for _, s := range slots {
		if s.Available {
			t.Errorf("slot %s advertised available at the daily cap", s.Start)
		}
	}
}

func TestBookAppointmentConcurrentSameSlot(t *testing.T) {
	fx := newFixture(t)
	svc := fx.addService(t, nil)

	const n = 10
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.facade.BookAppointment(context.Background(), BookingRequest{
				ServiceID: svc.ID, Date: mondayDate, Time: "10:00",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, booking.ErrSlotConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != n-1 {
		t.Errorf("wins=%d conflicts=%d, want exactly one winner", wins, conflicts)
	}
}

func TestSlotsReflectBookings(t *testing.T) {
	fx := newFixture(t)
	svc := fx.addService(t, nil)
	ctx := context.Background()

	if _, err := fx.facade.BookAppointment(ctx, BookingRequest{
		ServiceID: svc.ID, Date: mondayDate, Time: "10:00",
	}); err != nil {
		t.Fatal(err)
	}

	slots, err := fx.facade.Slots(ctx, svc.ID, mondayDate)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected slots")
	}
	for _, s := range slots {
		wantAvailable := s.Start != 10*60
		if s.Available != wantAvailable {
			t.Errorf("slot %s available = %v, want %v", s.Start, s.Available, wantAvailable)
		}
	}

	// Tuesday is disabled: empty list, not an error.
	slots, err = fx.facade.Slots(ctx, svc.ID, "2025-03-04")
	if err != nil {
		t.Fatalf("Slots on disabled day: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("disabled day slots = %d, want 0", len(slots))
	}

	// Inactive services read as no availability.
	inactive := fx.addService(t, func(s *booking.Service) { s.IsActive = false })
	slots, err = fx.facade.Slots(ctx, inactive.ID, mondayDate)
	if err != nil || len(slots) != 0 {
		t.Errorf("inactive service: slots=%d err=%v, want empty and nil", len(slots), err)
	}
}

func TestRescheduleAppointment(t *testing.T) {
	fx := newFixture(t)
	svc := fx.addService(t, nil)
	ctx := context.Background()

	appt, err := fx.facade.BookAppointment(ctx, BookingRequest{
		ServiceID: svc.ID, Date: mondayDate, Time: "10:00",
	})
	if err != nil {
		t.Fatal(err)
	}
	blocker, err := fx.facade.BookAppointment(ctx, BookingRequest{
		ServiceID: svc.ID, Date: mondayDate, Time: "11:00",
	})
	if err != nil {
		t.Fatal(err)
	}

	// Moving onto the blocker fails and names it.
	_, err = fx.facade.RescheduleAppointment(ctx, appt.ID, mondayDate, "11:15")
	if !errors.Is(err, booking.ErrSlotConflict) {
		t.Fatalf("want ErrSlotConflict, got %v", err)
	}
	var ce *ConflictError
	if !errors.As(err, &ce) || ce.EntityID != blocker.ID {
		t.Errorf("conflict = %v, want blocker id", err)
	}

	// Shifting within its own span is allowed: the appointment does not
	// conflict with itself.
	moved, err := fx.facade.RescheduleAppointment(ctx, appt.ID, mondayDate, "10:15")
	if err != nil {
		t.Fatalf("RescheduleAppointment: %v", err)
	}
	if moved.Start != 10*60+15 {
		t.Errorf("moved start = %s", moved.Start)
	}

	// Terminal appointments cannot move.
	if _, err := fx.facade.CancelAppointment(ctx, appt.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.facade.RescheduleAppointment(ctx, appt.ID, mondayDate, "12:00"); !errors.Is(err, booking.ErrInvalidTransition) {
		t.Errorf("reschedule after cancel: want ErrInvalidTransition, got %v", err)
	}
}

func TestAppointmentLifecycleAndEvents(t *testing.T) {
	fx := newFixture(t)
	svc := fx.addService(t, nil)
	ctx := context.Background()

	appt, err := fx.facade.BookAppointment(ctx, BookingRequest{
		ServiceID: svc.ID, Date: mondayDate, Time: "10:00",
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := fx.facade.ConfirmAppointment(ctx, appt.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if _, err := fx.facade.ConfirmAppointment(ctx, appt.ID); !errors.Is(err, booking.ErrInvalidTransition) {
		t.Errorf("double confirm: want ErrInvalidTransition, got %v", err)
	}
	if _, err := fx.facade.StartAppointment(ctx, appt.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	done, err := fx.facade.CompleteAppointment(ctx, appt.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != booking.StatusDone {
		t.Errorf("status = %s", done.Status)
	}

	rated, err := fx.facade.RateAppointment(ctx, appt.ID, 4, "")
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if rated.Rating == nil || *rated.Rating != 4 {
		t.Errorf("rating = %v", rated.Rating)
	}

	if got := fx.events.ofType(EventAppointmentConfirmed); len(got) != 1 {
		t.Errorf("confirmed events = %d, want 1", len(got))
	}
}

func TestExpirySweep(t *testing.T) {
	fx := newFixture(t)
	q := fx.addQueue(t, nil)
	svc := fx.addService(t, nil)
	ctx := context.Background()

	tk, _ := fx.facade.IssueTicket(ctx, q.ID)
	if _, err := fx.facade.CallNext(ctx, q.ID); err != nil {
		t.Fatal(err)
	}

	// 10:00 booking, confirmed. Service tolerance is 15 minutes.
	appt, err := fx.facade.BookAppointment(ctx, BookingRequest{
		ServiceID: svc.ID, Date: mondayDate, Time: "10:00",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fx.facade.ConfirmAppointment(ctx, appt.ID); err != nil {
		t.Fatal(err)
	}

	// Nothing is overdue yet.
	if err := fx.facade.RunExpirySweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if got := fx.events.ofType(EventAppointmentNoShow); len(got) != 0 {
		t.Errorf("premature appointment no-show events: %d", len(got))
	}

	// Jump past the ticket tolerance and the appointment start plus
	// tolerance (fixture starts at 09:00).
	fx.clock.Advance(90 * time.Minute)

	if err := fx.facade.RunExpirySweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	expiredTicket, _ := fx.store.GetTicket(ctx, tk.ID)
	if expiredTicket.Status != queue.TicketNoShow {
		t.Errorf("ticket status = %s, want falta", expiredTicket.Status)
	}
	expiredAppt, _ := fx.store.GetAppointment(ctx, appt.ID)
	if expiredAppt.Status != booking.StatusNoShow {
		t.Errorf("appointment status = %s, want falta", expiredAppt.Status)
	}

	// Second sweep finds nothing new and emits nothing new.
	if err := fx.facade.RunExpirySweep(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if got := fx.events.ofType(EventTicketNoShow); len(got) != 1 {
		t.Errorf("ticket no-show events = %d, want 1", len(got))
	}
	if got := fx.events.ofType(EventAppointmentNoShow); len(got) != 1 {
		t.Errorf("appointment no-show events = %d, want 1", len(got))
	}
}

func TestReminderFiresOnce(t *testing.T) {
	fx := newFixture(t)
	svc := fx.addService(t, nil)
	ctx := context.Background()

	// 10:00 booking; the fixture clock starts at 09:00 and the default
	// reminder lead is an hour, so the reminder is due within the first
	// sweep window.
	appt, err := fx.facade.BookAppointment(ctx, BookingRequest{
		ServiceID: svc.ID, Date: mondayDate, Time: "10:00",
	})
	if err != nil {
		t.Fatal(err)
	}

	fx.clock.Advance(10 * time.Minute)
	if err := fx.facade.RunExpirySweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if err := fx.facade.RunExpirySweep(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}

	got := fx.events.ofType(EventAppointmentReminderDue)
	if len(got) != 1 {
		t.Fatalf("reminder events = %d, want exactly 1", len(got))
	}
	if got[0].EntityID != appt.ID {
		t.Errorf("reminder for %s, want %s", got[0].EntityID, appt.ID)
	}

	stored, _ := fx.store.GetAppointment(ctx, appt.ID)
	if !stored.ReminderSent {
		t.Error("reminder_sent flag not set")
	}
}
