package reactor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/process"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/task"
)

// DefaultFrameInterval is the frame period of the interactive loop.
const DefaultFrameInterval = 16 * time.Millisecond

// Poller is called once per frame on the dispatch goroutine. Returning
// true drops it.
type Poller func(eventtime float64) bool

// Frame is a repeating timer that polls background work and sweeps the
// process tracker. Pollers must not block.
type Frame struct {
	reactor  *Reactor
	interval float64
	tracker  *process.Tracker
	timer    *Timer

	mu      sync.Mutex
	pollers []Poller

	frames atomic.Uint64
}

// NewFrame registers a frame timer on r. tracker may be nil.
func NewFrame(r *Reactor, interval time.Duration, tracker *process.Tracker) *Frame {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	f := &Frame{
		reactor:  r,
		interval: interval.Seconds(),
		tracker:  tracker,
	}
	f.timer = r.RegisterTimer(f.tick, NOW)
	return f
}

// Poll adds a poller. It is safe to call from any goroutine, including
// from inside another poller.
func (f *Frame) Poll(p Poller) {
	f.mu.Lock()
	f.pollers = append(f.pollers, p)
	f.mu.Unlock()
}

// Pending returns the number of active pollers.
func (f *Frame) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pollers)
}

// Frames returns how many frames have run.
func (f *Frame) Frames() uint64 {
	return f.frames.Load()
}

// Stop unregisters the frame timer.
func (f *Frame) Stop() {
	f.reactor.UnregisterTimer(f.timer)
}

func (f *Frame) tick(eventtime float64) float64 {
	f.mu.Lock()
	pollers := f.pollers
	f.pollers = nil
	f.mu.Unlock()

	kept := pollers[:0]
	for _, p := range pollers {
		if !p(eventtime) {
			kept = append(kept, p)
		}
	}

	f.mu.Lock()
	f.pollers = append(kept, f.pollers...)
	f.mu.Unlock()

	if f.tracker != nil {
		f.tracker.Update()
	}
	f.frames.Add(1)
	return eventtime + f.interval
}

// PollTask polls t every frame and calls fn on the dispatch goroutine
// once its result arrives. Polling stops without calling fn if the run
// is killed.
func PollTask[T any](f *Frame, t *task.Task[T], fn func(task.Result[T])) {
	f.Poll(func(float64) bool {
		if res, ok := t.Result(); ok {
			fn(res)
			return true
		}
		return t.State() == task.Cancelled
	})
}
