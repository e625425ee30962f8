// Package queue serializes matching runs: one job executes at a time, in
// arrival order, with at most one queued or running job per event.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrMatchingInProgress is returned by Enqueue when the event already
	// has a queued or running job.
	ErrMatchingInProgress = errors.New("matching already in progress for this event")
	// ErrCancelled resolves tickets whose job was cancelled while still
	// queued.
	ErrCancelled = errors.New("matching job cancelled before it started")
)

// Job is one unit of matching work.
type Job func(ctx context.Context) error

// Ticket tracks one enqueued job until it finishes, fails or is cancelled.
type Ticket struct {
	EventID string

	ctx  context.Context
	job  Job
	done chan struct{}
	err  error
}

// Done is closed once the job has finished, failed or been cancelled.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Err reports the job outcome. Only valid after Done is closed.
func (t *Ticket) Err() error { return t.err }

// Wait blocks until the job resolves or the caller's context expires.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Scheduler is a single-flight FIFO job queue. Jobs run strictly one at a
// time in enqueue order; the queue always advances, even when a job fails or
// panics.
type Scheduler struct {
	mu      sync.Mutex
	pending []*Ticket
	active  map[string]*Ticket
	working bool
	logger  *zap.Logger
}

func NewScheduler(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		active: map[string]*Ticket{},
		logger: log,
	}
}

// Enqueue admits a job for the event. The rejection for an event that is
// already queued or running is synchronous; the caller never gets a ticket
// for a job that was not admitted.
func (s *Scheduler) Enqueue(ctx context.Context, eventID string, job Job) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.active[eventID]; busy {
		return nil, fmt.Errorf("event %s: %w", eventID, ErrMatchingInProgress)
	}

	ticket := &Ticket{
		EventID: eventID,
		ctx:     ctx,
		job:     job,
		done:    make(chan struct{}),
	}
	s.active[eventID] = ticket
	s.pending = append(s.pending, ticket)

	s.logger.Debug("job enqueued",
		zap.String("event_id", eventID),
		zap.Int("queue_depth", len(s.pending)),
	)

	s.maybeStartLocked()

	return ticket, nil
}

// CancelQueued removes the event's job if it is still waiting its turn. A
// job that has already started cannot be cancelled here; its run is flagged
// in the store instead and the orchestrator stops between attendees.
func (s *Scheduler) CancelQueued(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, ticket := range s.pending {
		if ticket.EventID != eventID {
			continue
		}
		s.pending = append(s.pending[:i], s.pending[i+1:]...)
		delete(s.active, eventID)

		ticket.err = ErrCancelled
		close(ticket.done)

		s.logger.Info("queued job cancelled", zap.String("event_id", eventID))
		return true
	}

	return false
}

// IsQueuedOrRunning reports whether the event currently holds the
// single-flight slot.
func (s *Scheduler) IsQueuedOrRunning(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.active[eventID]
	return busy
}

// maybeStartLocked launches the queue head when no job is running. Callers
// must hold the lock.
func (s *Scheduler) maybeStartLocked() {
	if s.working || len(s.pending) == 0 {
		return
	}

	ticket := s.pending[0]
	s.pending = s.pending[1:]
	s.working = true

	go s.execute(ticket)
}

func (s *Scheduler) execute(ticket *Ticket) {
	defer func() {
		if r := recover(); r != nil {
			ticket.err = fmt.Errorf("matching job panic: %v", r)
			s.logger.Error("matching job panicked",
				zap.String("event_id", ticket.EventID),
				zap.Any("panic", r),
			)
		}

		s.mu.Lock()
		delete(s.active, ticket.EventID)
		s.working = false
		s.maybeStartLocked()
		s.mu.Unlock()

		close(ticket.done)
	}()

	s.logger.Info("job started", zap.String("event_id", ticket.EventID))
	ticket.err = ticket.job(ticket.ctx)
	s.logger.Info("job finished",
		zap.String("event_id", ticket.EventID),
		zap.Bool("failed", ticket.err != nil),
	)
}
