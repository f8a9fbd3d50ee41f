package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Lifecycle event types published after state machine writes are committed.
const (
	TypeCertificateIssued       = "certificate.issued"
	TypeCertificateRevoked      = "certificate.revoked"
	TypeEnrollmentCreated       = "enrollment.created"
	TypeEnrollmentStatusChanged = "enrollment.status_changed"
	TypeEnrollmentProgress      = "enrollment.progress_updated"
	TypeStudentStatusChanged    = "student.status_changed"
	TypeStudentDeleted          = "student.deleted"
)

// Event is a committed domain change waiting for its side effects.
type Event struct {
	ID         string
	Type       string
	ActorID    string
	ResourceID string
	Payload    interface{}
	Attempt    int
	OccurredAt time.Time
}

// Handler processes one event. Returning an error schedules a retry.
type Handler func(context.Context, Event) error

// Config sizes the worker pool.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Dispatcher fans events out to a pool of goroutines. Events accepted by
// Publish are always handed to the handler before Stop returns.
type Dispatcher struct {
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu is held for reading while an event is sent so Stop never closes the
	// channel under an in-flight Publish.
	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewDispatcher builds a dispatcher around handler.
func NewDispatcher(handler Handler, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Dispatcher{
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		events:     make(chan Event, cfg.BufferSize),
	}
}

// Start launches the workers. ctx is passed to the handler and should outlive
// the HTTP server; cancelling it abandons retries of events still queued.
// Calling Start twice, or after Stop, is a no-op.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.started = true
	d.logger.Sugar().Infow("event dispatcher started", "workers", d.workers)
}

// Stop closes intake, lets the workers drain every queued event and waits for
// them to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started || d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	pending := len(d.events)
	close(d.events)
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
	d.logger.Sugar().Infow("event dispatcher stopped", "drained", pending)
}

// Publish queues an event, blocking while the buffer is full.
func (d *Dispatcher) Publish(evt Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return fmt.Errorf("event dispatcher stopped")
	}
	if !d.started {
		return fmt.Errorf("event dispatcher not started")
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	select {
	case <-d.ctx.Done():
		return fmt.Errorf("event dispatcher cancelled: %w", d.ctx.Err())
	case d.events <- evt:
		return nil
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for evt := range d.events {
		d.deliver(evt)
	}
}

// deliver runs the handler, retrying in place so a draining Stop still waits
// for the final attempt.
func (d *Dispatcher) deliver(evt Event) {
	for {
		err := d.handler(d.ctx, evt)
		if err == nil {
			return
		}
		evt.Attempt++
		if evt.Attempt > d.maxRetries {
			d.logger.Sugar().Errorw("event dropped after retries", "event_id", evt.ID, "type", evt.Type, "error", err)
			return
		}
		d.logger.Sugar().Warnw("event handler failed, retrying", "event_id", evt.ID, "type", evt.Type, "attempt", evt.Attempt, "error", err)

		timer := time.NewTimer(d.retryDelay)
		select {
		case <-d.ctx.Done():
			timer.Stop()
			d.logger.Sugar().Errorw("event abandoned on cancel", "event_id", evt.ID, "type", evt.Type, "error", err)
			return
		case <-timer.C:
		}
	}
}
