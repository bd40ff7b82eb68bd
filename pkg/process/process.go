// Package process tracks progress handles shared between background
// workers and the interactive loop.
package process

import (
	"math"
	"sync"
	"sync/atomic"
)

// Process is the progress handle of one background operation. Each field
// is independently synchronized; readers must not assume the fields are
// consistent with each other.
type Process struct {
	taskMu sync.RWMutex
	task   string

	progress atomic.Uint64 // float64 bits
	finished atomic.Bool
	closed   atomic.Bool
}

// New returns a process with zero progress.
func New() *Process {
	return &Process{}
}

// Task returns the current task label.
func (p *Process) Task() string {
	p.taskMu.RLock()
	defer p.taskMu.RUnlock()
	return p.task
}

// SetTask replaces the task label.
func (p *Process) SetTask(task string) {
	p.taskMu.Lock()
	p.task = task
	p.taskMu.Unlock()
}

// Get returns the progress in [0, 1].
func (p *Process) Get() float64 {
	return math.Float64frombits(p.progress.Load())
}

// SetProgress stores v clamped to [0, 1]. NaN is stored as 0.
func (p *Process) SetProgress(v float64) {
	switch {
	case math.IsNaN(v) || v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	p.progress.Store(math.Float64bits(v))
}

// Finish marks the operation as done. It does not touch progress.
func (p *Process) Finish() {
	p.finished.Store(true)
}

// IsFinished reports whether Finish was called.
func (p *Process) IsFinished() bool {
	return p.finished.Load()
}

// Close marks the process as acknowledged by its consumer. The tracker
// removes closed processes on its next Update.
func (p *Process) Close() {
	p.closed.Store(true)
}

// IsClosed reports whether Close was called.
func (p *Process) IsClosed() bool {
	return p.closed.Load()
}

// Snapshot is a point-in-time copy of a process, read field by field.
type Snapshot struct {
	Kind     string  `json:"kind"`
	Name     string  `json:"name"`
	Task     string  `json:"task"`
	Progress float64 `json:"progress"`
	Finished bool    `json:"finished"`
	Closed   bool    `json:"closed"`
}

// Snapshot reads every field once.
func (p *Process) Snapshot() Snapshot {
	return Snapshot{
		Task:     p.Task(),
		Progress: p.Get(),
		Finished: p.IsFinished(),
		Closed:   p.IsClosed(),
	}
}

// Reporter returns a callback that maps done/total counts onto the
// progress of p.
func (p *Process) Reporter() func(done, total int) {
	return func(done, total int) {
		if total > 0 {
			p.SetProgress(float64(done) / float64(total))
		}
	}
}
