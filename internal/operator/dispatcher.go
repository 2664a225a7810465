package operator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/trigg3rX/pumpkit-operator/internal/operator/events"
	"github.com/trigg3rX/pumpkit-operator/internal/operator/ledger"
	"github.com/trigg3rX/pumpkit-operator/internal/operator/registration"
	"github.com/trigg3rX/pumpkit-operator/internal/operator/responder"
	"github.com/trigg3rX/pumpkit-operator/pkg/logging"
)

var (
	ErrNotRegistered   = errors.New("operator is not registered with the AVS")
	ErrShutdownTimeout = errors.New("task handlers still running after shutdown timeout")
)

// Handler answers one task. responder.TaskResponder satisfies it.
type Handler interface {
	Handle(ctx context.Context, event events.TaskEvent) responder.Result
}

// Metrics is the subset of metrics.OperatorMetrics the dispatcher reports to
type Metrics interface {
	ObserveEvent(kind string)
	ObserveTask(kind, outcome string, elapsed time.Duration)
	TaskStarted()
	TaskFinished()
}

type DispatcherConfig struct {
	MaxConcurrentTasks int
	TaskTimeout        time.Duration
	ShutdownTimeout    time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		MaxConcurrentTasks: 8,
		TaskTimeout:        5 * time.Minute,
		ShutdownTimeout:    30 * time.Second,
	}
}

// Stats is a snapshot of the dispatcher counters
type Stats struct {
	Received uint64            `json:"received"`
	InFlight int64             `json:"in_flight"`
	Outcomes map[string]uint64 `json:"outcomes"`
}

// Dispatcher runs one handler goroutine per event, bounded by a semaphore.
// Handlers run on a context detached from the event stream, so cancelling
// the stream stops intake without aborting transactions already broadcast.
type Dispatcher struct {
	op      *Operator
	handler Handler
	ledger  ledger.Ledger
	metrics Metrics
	cfg     DispatcherConfig
	logger  logging.Logger

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	// root is the parent of every task context, cancelled only when the
	// shutdown drain times out
	root  context.Context
	abort context.CancelFunc

	received atomic.Uint64
	inFlight atomic.Int64

	mu       sync.Mutex
	outcomes map[string]uint64
}

// NewDispatcher builds a dispatcher; l may be nil to disable deduplication.
func NewDispatcher(op *Operator, handler Handler, l ledger.Ledger, cfg DispatcherConfig, logger logging.Logger) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.MaxConcurrentTasks <= 0 {
		cfg.MaxConcurrentTasks = def.MaxConcurrentTasks
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = def.TaskTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	root, abort := context.WithCancel(context.Background())
	return &Dispatcher{
		op:       op,
		handler:  handler,
		ledger:   l,
		cfg:      cfg,
		logger:   logger,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrentTasks)),
		root:     root,
		abort:    abort,
		outcomes: make(map[string]uint64),
	}
}

func (d *Dispatcher) WithMetrics(m Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// Run consumes the stream until it closes or ctx is cancelled, then waits
// for in-flight handlers up to the shutdown timeout.
func (d *Dispatcher) Run(ctx context.Context, stream <-chan events.TaskEvent) error {
	if d.op.Status() != registration.Registered {
		return ErrNotRegistered
	}

	d.logger.Info("Dispatching task events", "max_concurrent_tasks", d.cfg.MaxConcurrentTasks)

	for {
		select {
		case <-ctx.Done():
			return d.drain()
		case event, ok := <-stream:
			if !ok {
				return d.drain()
			}
			if err := d.Dispatch(ctx, event); err != nil {
				return d.drain()
			}
		}
	}
}

// Dispatch blocks until a handler slot is free, then handles event in its
// own goroutine. It only fails when ctx ends while waiting for a slot.
func (d *Dispatcher) Dispatch(ctx context.Context, event events.TaskEvent) error {
	d.received.Add(1)
	if d.metrics != nil {
		d.metrics.ObserveEvent(event.Kind.String())
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.logger.Warn("Dropping task event during shutdown", event.LogFields()...)
		return err
	}

	d.wg.Add(1)
	d.inFlight.Add(1)
	if d.metrics != nil {
		d.metrics.TaskStarted()
	}

	go func() {
		defer func() {
			d.inFlight.Add(-1)
			if d.metrics != nil {
				d.metrics.TaskFinished()
			}
			d.sem.Release(1)
			d.wg.Done()
		}()
		d.handle(event)
	}()
	return nil
}

func (d *Dispatcher) handle(event events.TaskEvent) {
	start := time.Now()
	logger := d.logger.With(event.LogFields()...)

	ctx, cancel := context.WithTimeout(d.root, d.cfg.TaskTimeout)
	defer cancel()

	var result responder.Result
	defer func() {
		if r := recover(); r != nil {
			result = responder.Result{
				Outcome: responder.OutcomeFailed,
				Err:     fmt.Errorf("task handler panicked: %v", r),
				Elapsed: time.Since(start),
			}
			logger.Error("Recovered from task handler panic", "panic", r, "stack", string(debug.Stack()))
			responder.LogOutcome(logger, result)
		}
		d.record(event, result)
	}()

	if d.seen(ctx, event, logger) {
		result = responder.Result{Outcome: responder.OutcomeDuplicate, Elapsed: time.Since(start)}
		responder.LogOutcome(logger, result)
		return
	}

	result = d.handler.Handle(ctx, event)

	if result.Outcome == responder.OutcomeSubmitted && d.ledger != nil {
		if err := d.ledger.Mark(ctx, event.Key()); err != nil {
			logger.Warn("Failed to mark task as handled", "error", err)
		}
	}
}

// seen treats ledger errors as not seen, since redelivery is tolerated
func (d *Dispatcher) seen(ctx context.Context, event events.TaskEvent, logger logging.Logger) bool {
	if d.ledger == nil {
		return false
	}
	seen, err := d.ledger.Seen(ctx, event.Key())
	if err != nil {
		logger.Warn("Failed to read task ledger", "error", err)
		return false
	}
	return seen
}

func (d *Dispatcher) record(event events.TaskEvent, result responder.Result) {
	outcome := string(result.Outcome)
	if outcome == "" {
		outcome = string(responder.OutcomeFailed)
	}

	d.mu.Lock()
	d.outcomes[outcome]++
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.ObserveTask(event.Kind.String(), outcome, result.Elapsed)
	}
}

func (d *Dispatcher) drain() error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	if n := d.inFlight.Load(); n > 0 {
		d.logger.Info("Waiting for in-flight tasks", "in_flight", n, "timeout", d.cfg.ShutdownTimeout)
	}

	select {
	case <-done:
		d.abort()
		return nil
	case <-time.After(d.cfg.ShutdownTimeout):
		n := d.inFlight.Load()
		d.abort()
		d.logger.Warn("Aborting in-flight tasks", "in_flight", n)
		return fmt.Errorf("%w: %d running", ErrShutdownTimeout, n)
	}
}

func (d *Dispatcher) InFlight() int64 {
	return d.inFlight.Load()
}

func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	outcomes := make(map[string]uint64, len(d.outcomes))
	for k, v := range d.outcomes {
		outcomes[k] = v
	}
	return Stats{
		Received: d.received.Load(),
		InFlight: d.inFlight.Load(),
		Outcomes: outcomes,
	}
}
