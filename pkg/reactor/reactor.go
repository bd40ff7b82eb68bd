// Package reactor provides the interactive loop: timers that fire on a
// single dispatch goroutine, callbacks handed over from workers, and a
// frame timer that polls background tasks without ever blocking on them.
package reactor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/log"
)

// Constants
const (
	NOW   = 0.0
	NEVER = 9999999999999999.0
)

// Common errors
var (
	ErrReactorClosed = errors.New("reactor: reactor closed")
)

var logger = log.GetLogger("reactor")

// TimerCallback is called when a timer fires.
// The callback receives the event time and returns the next wake time.
// Return NEVER to stop firing.
type TimerCallback func(eventtime float64) float64

// Timer represents a registered timer.
type Timer struct {
	id       uint64
	callback TimerCallback

	mu       sync.Mutex
	waketime float64
}

// Completion is a one-shot result handed from the dispatch goroutine to a
// waiter.
type Completion struct {
	reactor *Reactor
	result  any
	done    chan struct{}
	once    sync.Once
}

// Complete sets the completion result and wakes any waiters.
func (c *Completion) Complete(result any) {
	c.once.Do(func() {
		c.result = result
		close(c.done)
	})
}

// WaitContext blocks until the completion is done or ctx ends.
func (c *Completion) WaitContext(ctx context.Context) (any, error) {
	select {
	case <-c.done:
		return c.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.reactor.ctx.Done():
		return nil, ErrReactorClosed
	}
}

// Reactor manages timers and callbacks on one dispatch goroutine.
type Reactor struct {
	mu          sync.Mutex
	timers      []*Timer
	nextTimerID atomic.Uint64
	nextWake    float64

	asyncQueue chan func()
	wake       chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	running atomic.Bool
	wg      sync.WaitGroup

	startTime time.Time
}

// New creates a new Reactor.
func New() *Reactor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reactor{
		nextWake:   NEVER,
		asyncQueue: make(chan func(), 1000),
		wake:       make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
		startTime:  time.Now(),
	}
}

// Monotonic returns the seconds elapsed since the reactor was created.
func (r *Reactor) Monotonic() float64 {
	return time.Since(r.startTime).Seconds()
}

// RegisterTimer registers a new timer with the given callback and wake time.
func (r *Reactor) RegisterTimer(callback TimerCallback, waketime float64) *Timer {
	timer := &Timer{
		id:       r.nextTimerID.Add(1),
		callback: callback,
		waketime: waketime,
	}

	r.mu.Lock()
	r.timers = append(r.timers, timer)
	if waketime < r.nextWake {
		r.nextWake = waketime
	}
	r.mu.Unlock()

	r.signal()
	return timer
}

// UnregisterTimer removes a timer.
func (r *Reactor) UnregisterTimer(timer *Timer) {
	timer.mu.Lock()
	timer.waketime = NEVER
	timer.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, t := range r.timers {
		if t.id == timer.id {
			r.timers = append(r.timers[:i], r.timers[i+1:]...)
			break
		}
	}
}

// Completion creates a new Completion object.
func (r *Reactor) Completion() *Completion {
	return &Completion{
		reactor: r,
		done:    make(chan struct{}),
	}
}

// RegisterAsyncCallback hands a callback from another goroutine to the
// dispatch goroutine. If the queue is full the completion is completed
// with nil and the callback is dropped.
func (r *Reactor) RegisterAsyncCallback(callback func(eventtime float64) any) *Completion {
	completion := r.Completion()
	select {
	case r.asyncQueue <- func() {
		completion.Complete(callback(r.Monotonic()))
	}:
		r.signal()
	default:
		logger.Warn("async queue full, dropping callback")
		completion.Complete(nil)
	}
	return completion
}

// Run starts the dispatch loop.
func (r *Reactor) Run() {
	if r.running.Swap(true) {
		return
	}
	r.wg.Add(1)
	go r.dispatchLoop()
}

// End signals the reactor to stop.
func (r *Reactor) End() {
	r.running.Store(false)
	r.cancel()
}

// Wait waits for the reactor to stop.
func (r *Reactor) Wait() {
	r.wg.Wait()
}

func (r *Reactor) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Reactor) dispatchLoop() {
	defer r.wg.Done()

	for r.running.Load() {
		eventtime := r.Monotonic()
		r.processAsyncCallbacks()
		timeout := r.checkTimers(eventtime)
		if timeout <= 0 {
			continue
		}

		delay := time.Duration(timeout * float64(time.Second))
		if delay > time.Second {
			delay = time.Second
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-r.wake:
		case <-r.ctx.Done():
			timer.Stop()
			return
		}
		timer.Stop()
	}
}

func (r *Reactor) processAsyncCallbacks() {
	for {
		select {
		case fn := <-r.asyncQueue:
			fn()
		default:
			return
		}
	}
}

// checkTimers fires due timers and returns the time until the next one.
func (r *Reactor) checkTimers(eventtime float64) float64 {
	r.mu.Lock()
	if eventtime < r.nextWake {
		delay := r.nextWake - eventtime
		r.mu.Unlock()
		return delay
	}
	timers := make([]*Timer, len(r.timers))
	copy(timers, r.timers)
	r.nextWake = NEVER
	r.mu.Unlock()

	soonest := NEVER
	for _, timer := range timers {
		timer.mu.Lock()
		if eventtime >= timer.waketime {
			timer.waketime = NEVER
			timer.mu.Unlock()

			next := timer.callback(eventtime)

			timer.mu.Lock()
			timer.waketime = next
		}
		if timer.waketime < soonest {
			soonest = timer.waketime
		}
		timer.mu.Unlock()
	}

	r.mu.Lock()
	if soonest < r.nextWake {
		r.nextWake = soonest
	}
	delay := r.nextWake - eventtime
	r.mu.Unlock()

	if delay < 0 {
		delay = 0
	}
	return delay
}
