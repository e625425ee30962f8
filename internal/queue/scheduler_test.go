package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func waitTicket(t *testing.T, ticket *Ticket) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ticket.Wait(ctx)
}

func TestEnqueueRunsJob(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	ran := make(chan struct{})
	ticket, err := s.Enqueue(context.Background(), "e1", func(context.Context) error {
		close(ran)
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := waitTicket(t, ticket); err != nil {
		t.Fatalf("job error: %v", err)
	}
	select {
	case <-ran:
	default:
		t.Fatal("job never ran")
	}
	if s.IsQueuedOrRunning("e1") {
		t.Fatal("event still marked busy after completion")
	}
}

func TestEnqueueRejectsDuplicateEvent(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	release := make(chan struct{})
	first, err := s.Enqueue(context.Background(), "e1", func(context.Context) error {
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := s.Enqueue(context.Background(), "e1", func(context.Context) error { return nil }); !errors.Is(err, ErrMatchingInProgress) {
		t.Fatalf("expected ErrMatchingInProgress, got %v", err)
	}

	close(release)
	if err := waitTicket(t, first); err != nil {
		t.Fatalf("first job error: %v", err)
	}

	// The slot frees up once the first job resolves.
	second, err := s.Enqueue(context.Background(), "e1", func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("re-enqueue after completion: %v", err)
	}
	if err := waitTicket(t, second); err != nil {
		t.Fatalf("second job error: %v", err)
	}
}

func TestJobsRunOneAtATimeInOrder(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	var mu sync.Mutex
	var order []string
	running := 0

	job := func(id string) Job {
		return func(context.Context) error {
			mu.Lock()
			running++
			if running > 1 {
				mu.Unlock()
				t.Error("two jobs running concurrently")
				return nil
			}
			order = append(order, id)
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
			return nil
		}
	}

	var tickets []*Ticket
	for _, id := range []string{"e1", "e2", "e3"} {
		ticket, err := s.Enqueue(context.Background(), id, job(id))
		if err != nil {
			t.Fatalf("Enqueue %s: %v", id, err)
		}
		tickets = append(tickets, ticket)
	}

	for _, ticket := range tickets {
		if err := waitTicket(t, ticket); err != nil {
			t.Fatalf("job %s error: %v", ticket.EventID, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "e1" || order[1] != "e2" || order[2] != "e3" {
		t.Fatalf("jobs ran out of order: %v", order)
	}
}

func TestCancelQueuedJob(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	release := make(chan struct{})
	first, err := s.Enqueue(context.Background(), "e1", func(context.Context) error {
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue e1: %v", err)
	}

	e2Ran := false
	second, err := s.Enqueue(context.Background(), "e2", func(context.Context) error {
		e2Ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue e2: %v", err)
	}

	if !s.CancelQueued("e2") {
		t.Fatal("expected e2 to be cancellable while queued")
	}
	if err := waitTicket(t, second); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if s.IsQueuedOrRunning("e2") {
		t.Fatal("cancelled event still marked busy")
	}

	// The running job is untouched by the cancellation.
	close(release)
	if err := waitTicket(t, first); err != nil {
		t.Fatalf("first job error: %v", err)
	}
	if e2Ran {
		t.Fatal("cancelled job still executed")
	}
}

func TestCancelQueuedMissesRunningJob(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	started := make(chan struct{})
	release := make(chan struct{})
	ticket, err := s.Enqueue(context.Background(), "e1", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	<-started
	if s.CancelQueued("e1") {
		t.Fatal("a running job must not be cancellable from the queue")
	}

	close(release)
	if err := waitTicket(t, ticket); err != nil {
		t.Fatalf("job error: %v", err)
	}
}

func TestQueueAdvancesAfterJobError(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	jobErr := errors.New("run exploded")
	first, err := s.Enqueue(context.Background(), "e1", func(context.Context) error {
		return jobErr
	})
	if err != nil {
		t.Fatalf("Enqueue e1: %v", err)
	}
	second, err := s.Enqueue(context.Background(), "e2", func(context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue e2: %v", err)
	}

	if err := waitTicket(t, first); !errors.Is(err, jobErr) {
		t.Fatalf("expected job error, got %v", err)
	}
	if err := waitTicket(t, second); err != nil {
		t.Fatalf("queue stalled after a failed job: %v", err)
	}
}

func TestQueueAdvancesAfterJobPanic(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	first, err := s.Enqueue(context.Background(), "e1", func(context.Context) error {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("Enqueue e1: %v", err)
	}
	second, err := s.Enqueue(context.Background(), "e2", func(context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue e2: %v", err)
	}

	if err := waitTicket(t, first); err == nil {
		t.Fatal("expected an error from the panicked job")
	}
	if err := waitTicket(t, second); err != nil {
		t.Fatalf("queue stalled after a panicked job: %v", err)
	}
	if s.IsQueuedOrRunning("e1") {
		t.Fatal("panicked event still marked busy")
	}
}

func TestWaitHonorsCallerContext(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	release := make(chan struct{})
	defer close(release)
	ticket, err := s.Enqueue(context.Background(), "e1", func(context.Context) error {
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := ticket.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
