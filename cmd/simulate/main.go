// The simulate binary hammers the scheduling facade with concurrent
// workers against the in-memory store and then audits the results: ticket
// numbers must come out gap-free and no two occupying appointments may
// overlap. It needs no Postgres or Redis, so it doubles as a quick local
// check of the locking and conflict paths.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/qzero-app/scheduling-engine/internal/booking"
	"github.com/qzero-app/scheduling-engine/internal/memory"
	"github.com/qzero-app/scheduling-engine/internal/queue"
	"github.com/qzero-app/scheduling-engine/internal/schedule"
	"github.com/qzero-app/scheduling-engine/internal/scheduling"
)

type SimConfig struct {
	Workers      int
	OpsPerWorker int
	BookingRatio float64
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Issue   OperationMetrics
	Booking OperationMetrics
	Slots   OperationMetrics
}

type Simulator struct {
	config    SimConfig
	facade    *scheduling.Facade
	store     *memory.Store
	queueID   uuid.UUID
	serviceID uuid.UUID
	date      string
	metrics   Metrics

	mu            sync.Mutex
	issuedNumbers []int
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := SimConfig{
		Workers:      getInt("SIM_WORKERS", 16),
		OpsPerWorker: getInt("SIM_OPS_PER_WORKER", 50),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.4),
	}
	log.Printf("config: workers=%d ops_per_worker=%d booking=%.2f",
		cfg.Workers, cfg.OpsPerWorker, cfg.BookingRatio)

	sim := newSimulator(cfg)
	sim.Run()
	sim.PrintReport()

	if err := sim.Audit(); err != nil {
		log.Fatalf("audit failed: %v", err)
	}
	log.Println("audit passed")
}

func newSimulator(cfg SimConfig) *Simulator {
	store := memory.NewStore()

	allDay := schedule.DaySchedule{Enabled: true, Start: 0, End: 0}
	business := schedule.DaySchedule{Enabled: true, Start: 8 * 60, End: 20 * 60}

	var queueHours, serviceHours schedule.WeekSchedule
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		queueHours.SetDay(wd, allDay)
		serviceHours.SetDay(wd, business)
	}

	q := &queue.Queue{
		ID:                 uuid.New(),
		BusinessID:         uuid.New(),
		Name:               "simulated walk-in line",
		AverageServiceTime: 10,
		ToleranceTime:      10,
		Status:             queue.StatusOpen,
		IsActive:           true,
		Hours:              &queueHours,
	}
	store.PutQueue(q)

	svc := &booking.Service{
		ID:            uuid.New(),
		BusinessID:    q.BusinessID,
		Name:          "simulated service",
		Duration:      30,
		BufferTime:    0,
		ToleranceTime: 15,
		IsActive:      true,
		Hours:         serviceHours,
	}
	store.PutService(svc)

	facade := scheduling.NewFacade(scheduling.FacadeConfig{
		Queues:       store,
		Bookings:     store,
		Locker:       memory.NewLocker(),
		Entitlements: scheduling.AllowAll{},
	})

	return &Simulator{
		config:    cfg,
		facade:    facade,
		store:     store,
		queueID:   q.ID,
		serviceID: svc.ID,
		date:      time.Now().AddDate(0, 0, 1).Format(schedule.DateLayout),
	}
}

func (s *Simulator) Run() {
	log.Printf("running %d workers", s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(workerID int) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for i := 0; i < s.config.OpsPerWorker; i++ {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+0.1:
			s.doSlots(ctx)
		default:
			s.doIssue(ctx)
		}
	}
}

func (s *Simulator) doIssue(ctx context.Context) {
	start := time.Now()
	t, err := s.facade.IssueTicket(ctx, s.queueID)
	latency := time.Since(start)

	if err != nil {
		s.metrics.Issue.Record(latency, false, isConflict(err))
		return
	}

	s.mu.Lock()
	s.issuedNumbers = append(s.issuedNumbers, t.Number)
	s.mu.Unlock()
	s.metrics.Issue.Record(latency, true, false)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	// Random slot on the service's 30-minute grid between 08:00 and 19:30.
	minute := 8*60 + 30*rng.Intn(23)

	start := time.Now()
	_, err := s.facade.BookAppointment(ctx, scheduling.BookingRequest{
		ServiceID: s.serviceID,
		Date:      s.date,
		Time:      schedule.MinuteOfDay(minute).String(),
	})
	latency := time.Since(start)

	s.metrics.Booking.Record(latency, err == nil, isConflict(err))
}

func (s *Simulator) doSlots(ctx context.Context) {
	start := time.Now()
	_, err := s.facade.Slots(ctx, s.serviceID, s.date)
	s.metrics.Slots.Record(time.Since(start), err == nil, false)
}

func isConflict(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, booking.ErrSlotConflict) ||
		errors.Is(err, queue.ErrConcurrentWrite) ||
		errors.Is(err, booking.ErrConcurrentWrite)
}

// Audit verifies the two invariants the locks exist for: issued ticket
// numbers form the exact sequence 1..N, and no two occupying
// appointments on the simulated day overlap.
func (s *Simulator) Audit() error {
	s.mu.Lock()
	numbers := make([]int, len(s.issuedNumbers))
	copy(numbers, s.issuedNumbers)
	s.mu.Unlock()

	sort.Ints(numbers)
	for i, n := range numbers {
		if n != i+1 {
			return fmt.Errorf("ticket numbering has a gap or duplicate at index %d: got %d, want %d", i, n, i+1)
		}
	}

	appts, err := s.store.ListForDate(context.Background(), s.serviceID, s.date)
	if err != nil {
		return err
	}
	for i := range appts {
		if !appts[i].Status.Occupying() {
			continue
		}
		aStart, aLen := appts[i].Interval()
		for j := i + 1; j < len(appts); j++ {
			if !appts[j].Status.Occupying() {
				continue
			}
			bStart, bLen := appts[j].Interval()
			if schedule.Overlaps(aStart, aLen, bStart, bLen) {
				return fmt.Errorf("appointments %s and %s overlap", appts[i].ID, appts[j].ID)
			}
		}
	}

	log.Printf("audited %d tickets and %d appointments", len(numbers), len(appts))
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Ops per worker: %d\n", s.config.OpsPerWorker)
	fmt.Println()

	printOperationReport("Issue ticket", &s.metrics.Issue)
	printOperationReport("Book appointment", &s.metrics.Booking)
	printOperationReport("Read slots", &s.metrics.Slots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg, min, max, p50, p95)
	fmt.Println()
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
