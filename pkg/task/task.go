package task

import (
	"context"
	"sync"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/errors"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/log"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/metrics"
)

var logger = log.GetLogger("task")

// State is the lifecycle state of a Task.
type State int

const (
	Idle State = iota
	Running
	Completed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is the outcome of one run.
type Result[T any] struct {
	Value T
	Err   error
}

// Work is the function executed by a run. It should check ctx at its
// cancellation points.
type Work[T any] func(ctx context.Context) (T, error)

// run is one execution and its single-use result slot.
type run[T any] struct {
	cancel context.CancelFunc
	result chan Result[T]
	done   chan struct{}
}

// Task owns at most one in-flight run and one pending result. It can be
// run again once the previous run completed or was killed.
type Task[T any] struct {
	name    string
	pool    *Pool
	metrics *metrics.SlicerMetrics

	mu      sync.Mutex
	state   State
	current *run[T]
}

// Option configures a Task.
type Option func(*options)

type options struct {
	pool    *Pool
	metrics *metrics.SlicerMetrics
}

// WithPool runs work on p instead of the default pool.
func WithPool(p *Pool) Option {
	return func(o *options) { o.pool = p }
}

// WithMetrics reports run counts to m.
func WithMetrics(m *metrics.SlicerMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// New creates an idle task. The name only appears in errors and logs.
func New[T any](name string, opts ...Option) *Task[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pool == nil {
		o.pool = DefaultPool()
	}
	return &Task[T]{name: name, pool: o.pool, metrics: o.metrics}
}

// Name returns the task name.
func (t *Task[T]) Name() string {
	return t.name
}

// State returns the current state.
func (t *Task[T]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Run starts work on the pool with a fresh result slot. It fails with
// TASK_BUSY while a previous run is in flight. A completed result that
// was never collected is discarded.
func (t *Task[T]) Run(work Work[T]) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Running {
		return errors.TaskBusyError(t.name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run[T]{
		cancel: cancel,
		result: make(chan Result[T], 1),
		done:   make(chan struct{}),
	}
	slot := r.result
	if !t.pool.Submit(func() { t.execute(ctx, r, slot, work) }) {
		cancel()
		return errors.New(errors.ErrTaskCancelled, "worker pool closed").
			SetContext("task", t.name)
	}

	t.current = r
	t.state = Running
	t.metrics.TaskStarted()
	return nil
}

func (t *Task[T]) execute(ctx context.Context, r *run[T], slot chan<- Result[T], work Work[T]) {
	outcome := "completed"
	defer close(r.done)
	defer func() {
		r.cancel()
		t.mu.Lock()
		if t.current == r && t.state == Running {
			t.state = Completed
		}
		t.mu.Unlock()
		t.metrics.TaskFinished(outcome)
	}()

	res := t.call(ctx, work)
	switch {
	case ctx.Err() != nil:
		outcome = "cancelled"
	case errors.Is(res.Err, errors.ErrTaskPanic):
		outcome = "panic"
		logger.WithError(res.Err).Error("task %s panicked", t.name)
	case res.Err != nil:
		outcome = "failed"
	}
	slot <- res
}

// call runs work and converts a panic into a TASK_PANIC result.
func (t *Task[T]) call(ctx context.Context, work Work[T]) (res Result[T]) {
	defer func() {
		if p := recover(); p != nil {
			res = Result[T]{Err: errors.FromPanic(p).SetContext("task", t.name)}
		}
	}()
	v, err := work(ctx)
	return Result[T]{Value: v, Err: err}
}

// Result returns the outcome of the current run without blocking. It
// reports true exactly once per run, and never for a killed run.
func (t *Task[T]) Result() (Result[T], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil || t.state == Cancelled {
		return Result[T]{}, false
	}
	select {
	case res := <-t.current.result:
		t.current.result = nil
		t.state = Completed
		return res, true
	default:
		return Result[T]{}, false
	}
}

// Kill cancels the current run and discards its result slot. Work that
// is past its last cancellation check still runs to completion, but its
// result is dropped.
func (t *Task[T]) Kill() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil || t.state == Cancelled {
		return
	}
	t.current.cancel()
	t.current.result = nil
	t.state = Cancelled
	logger.Debug("task %s killed", t.name)
}

// Done returns a channel closed when the current run's work returns. With
// no run it returns a closed channel.
func (t *Task[T]) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return t.current.done
}
