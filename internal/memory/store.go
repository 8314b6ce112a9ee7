// Package memory is an in-process implementation of the queue and
// booking repositories, with the same compare-and-swap semantics as the
// Postgres ones. The facade tests and the simulator run against it, so
// the engines can be exercised under real goroutine concurrency with no
// database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/google/uuid"

	"github.com/qzero-app/scheduling-engine/internal/booking"
	"github.com/qzero-app/scheduling-engine/internal/queue"
)

type Store struct {
	mu sync.Mutex

	queues   map[uuid.UUID]*queue.Queue
	tickets  map[uuid.UUID]*queue.Ticket
	services map[uuid.UUID]*booking.Service

	// Tickets per queue ordered by ticket number, so ListActiveTickets
	// returns them the way the SQL ORDER BY would.
	byQueue map[uuid.UUID]*treemap.Map

	// Appointments per (service, date) in insertion order.
	byAgenda     map[agendaKey]*linkedhashmap.Map
	appointments map[uuid.UUID]*booking.Appointment
}

type agendaKey struct {
	serviceID uuid.UUID
	date      string
}

func NewStore() *Store {
	return &Store{
		queues:       make(map[uuid.UUID]*queue.Queue),
		tickets:      make(map[uuid.UUID]*queue.Ticket),
		services:     make(map[uuid.UUID]*booking.Service),
		byQueue:      make(map[uuid.UUID]*treemap.Map),
		byAgenda:     make(map[agendaKey]*linkedhashmap.Map),
		appointments: make(map[uuid.UUID]*booking.Appointment),
	}
}

// PutQueue seeds or replaces a queue.
func (s *Store) PutQueue(q *queue.Queue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *q
	s.queues[q.ID] = &cp
	if _, ok := s.byQueue[q.ID]; !ok {
		s.byQueue[q.ID] = treemap.NewWith(utils.IntComparator)
	}
}

// PutService seeds or replaces a service.
func (s *Store) PutService(svc *booking.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *svc
	s.services[svc.ID] = &cp
}

// queue.Repository

func (s *Store) GetQueue(_ context.Context, id uuid.UUID) (*queue.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[id]
	if !ok {
		return nil, queue.ErrQueueNotFound
	}
	cp := *q
	return &cp, nil
}

func (s *Store) GetTicket(_ context.Context, id uuid.UUID) (*queue.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, queue.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) ListActiveTickets(_ context.Context, queueID uuid.UUID) ([]queue.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ordered, ok := s.byQueue[queueID]
	if !ok {
		return nil, nil
	}
	var result []queue.Ticket
	it := ordered.Iterator()
	for it.Next() {
		t := it.Value().(*queue.Ticket)
		if t.Status.Occupying() {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (s *Store) CreateTicket(_ context.Context, q *queue.Queue, prevIssued int, t *queue.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.queues[q.ID]
	if !ok {
		return queue.ErrQueueNotFound
	}
	if stored.LastIssuedNumber != prevIssued {
		return queue.ErrConcurrentWrite
	}
	stored.CurrentNumber = q.CurrentNumber
	stored.LastIssuedNumber = q.LastIssuedNumber
	stored.LastResetDate = q.LastResetDate
	stored.UpdatedAt = time.Now()

	cp := *t
	s.tickets[t.ID] = &cp
	ordered, ok := s.byQueue[t.QueueID]
	if !ok {
		ordered = treemap.NewWith(utils.IntComparator)
		s.byQueue[t.QueueID] = ordered
	}
	ordered.Put(t.Number, &cp)
	return nil
}

func (s *Store) AdvanceQueue(_ context.Context, q *queue.Queue, called, expired *queue.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expired != nil {
		if err := s.casTicket(expired, queue.TicketCalled); err != nil {
			return err
		}
	}
	if called != nil {
		if err := s.casTicket(called, queue.TicketWaiting); err != nil {
			return err
		}
	}
	stored, ok := s.queues[q.ID]
	if !ok {
		return queue.ErrQueueNotFound
	}
	stored.CurrentNumber = q.CurrentNumber
	stored.UpdatedAt = time.Now()
	return nil
}

func (s *Store) UpdateTicket(_ context.Context, t *queue.Ticket, expect queue.TicketStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.casTicket(t, expect)
}

func (s *Store) casTicket(t *queue.Ticket, expect queue.TicketStatus) error {
	stored, ok := s.tickets[t.ID]
	if !ok {
		return queue.ErrTicketNotFound
	}
	if stored.Status != expect {
		return queue.ErrConcurrentWrite
	}
	*stored = *t
	return nil
}

func (s *Store) ListOverdueCalled(_ context.Context, now time.Time) ([]queue.CalledTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []queue.CalledTicket
	for _, t := range s.tickets {
		if t.Status != queue.TicketCalled || t.CalledAt == nil {
			continue
		}
		q, ok := s.queues[t.QueueID]
		if !ok {
			continue
		}
		if now.Sub(*t.CalledAt) > time.Duration(q.ToleranceTime)*time.Minute {
			result = append(result, queue.CalledTicket{Ticket: *t, ToleranceTime: q.ToleranceTime})
		}
	}
	return result, nil
}

// booking.Repository

func (s *Store) GetService(_ context.Context, id uuid.UUID) (*booking.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, booking.ErrServiceNotFound
	}
	cp := *svc
	return &cp, nil
}

func (s *Store) GetAppointment(_ context.Context, id uuid.UUID) (*booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, booking.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) ListForDate(_ context.Context, serviceID uuid.UUID, date string) ([]booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agenda, ok := s.byAgenda[agendaKey{serviceID, date}]
	if !ok {
		return nil, nil
	}
	var result []booking.Appointment
	it := agenda.Iterator()
	for it.Next() {
		result = append(result, *it.Value().(*booking.Appointment))
	}
	return result, nil
}

func (s *Store) InsertAppointment(_ context.Context, a *booking.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.appointments[a.ID] = &cp
	key := agendaKey{a.ServiceID, a.Date}
	agenda, ok := s.byAgenda[key]
	if !ok {
		agenda = linkedhashmap.New()
		s.byAgenda[key] = agenda
	}
	agenda.Put(a.ID, &cp)
	return nil
}

func (s *Store) UpdateAppointment(_ context.Context, a *booking.Appointment, expect booking.AppointmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.appointments[a.ID]
	if !ok {
		return booking.ErrAppointmentNotFound
	}
	if stored.Status != expect {
		return booking.ErrConcurrentWrite
	}
	oldKey := agendaKey{stored.ServiceID, stored.Date}
	newKey := agendaKey{a.ServiceID, a.Date}
	*stored = *a
	if oldKey != newKey {
		if agenda, ok := s.byAgenda[oldKey]; ok {
			agenda.Remove(a.ID)
		}
		agenda, ok := s.byAgenda[newKey]
		if !ok {
			agenda = linkedhashmap.New()
			s.byAgenda[newKey] = agenda
		}
		agenda.Put(a.ID, stored)
	}
	return nil
}

func (s *Store) ListOverdueConfirmed(_ context.Context, now time.Time) ([]booking.ConfirmedAppointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []booking.ConfirmedAppointment
	for _, a := range s.appointments {
		if a.Status != booking.StatusConfirmed {
			continue
		}
		svc, ok := s.services[a.ServiceID]
		if !ok {
			continue
		}
		startAt, err := a.StartAt()
		if err != nil {
			continue
		}
		if now.Sub(startAt) > time.Duration(svc.ToleranceTime)*time.Minute {
			result = append(result, booking.ConfirmedAppointment{Appointment: *a, ToleranceTime: svc.ToleranceTime})
		}
	}
	return result, nil
}

func (s *Store) ListUnsentReminders(_ context.Context, date string) ([]booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []booking.Appointment
	for _, a := range s.appointments {
		if a.Date == date && a.Status.Occupying() && !a.ReminderSent {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (s *Store) MarkReminderSent(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return false, booking.ErrAppointmentNotFound
	}
	if a.ReminderSent {
		return false, nil
	}
	a.ReminderSent = true
	return true, nil
}
