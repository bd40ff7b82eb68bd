package process

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/errors"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/log"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/metrics"
)

var logger = log.GetLogger("process")

// Kind identifies the kind of operation a process reports on.
type Kind int

const (
	KindSlice Kind = iota + 1
	KindGCode
	KindLoad
	KindToolpath
	KindSend
)

func (k Kind) String() string {
	switch k {
	case KindSlice:
		return "slice"
	case KindGCode:
		return "gcode"
	case KindLoad:
		return "load"
	case KindToolpath:
		return "toolpath"
	case KindSend:
		return "send"
	default:
		return "kind" + strconv.Itoa(int(k))
	}
}

// ParseKind resolves a kind name as returned by Kind.String.
func ParseKind(name string) (Kind, bool) {
	for k := KindSlice; k <= KindSend; k++ {
		if k.String() == name {
			return k, true
		}
	}
	if n, err := strconv.Atoi(strings.TrimPrefix(name, "kind")); err == nil && strings.HasPrefix(name, "kind") {
		return Kind(n), true
	}
	return 0, false
}

// Event asks the presentation layer to show a progress indicator.
type Event struct {
	Kind Kind
	Name string
}

const eventBuffer = 64

// Tracker is the registry of live processes, keyed by kind then name.
// All methods are safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	processes map[Kind]map[string]*Process

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int

	metrics *metrics.SlicerMetrics
}

// NewTracker returns an empty tracker. m may be nil.
func NewTracker(m *metrics.SlicerMetrics) *Tracker {
	return &Tracker{
		processes: make(map[Kind]map[string]*Process),
		subs:      make(map[int]chan Event),
		metrics:   m,
	}
}

// Add registers a new process under (kind, name) and notifies
// subscribers. An existing entry with the same key is replaced.
func (t *Tracker) Add(kind Kind, name string) *Process {
	p := New()

	t.mu.Lock()
	byName, ok := t.processes[kind]
	if !ok {
		byName = make(map[string]*Process)
		t.processes[kind] = byName
	}
	byName[name] = p
	n := len(byName)
	t.mu.Unlock()

	t.metrics.SetProcesses(kind.String(), n)
	logger.WithFields(log.Fields{"kind": kind, "name": name}).Debug("process added")
	t.publish(Event{Kind: kind, Name: name})
	return p
}

// Get looks up a process. A missing entry is a REGISTRY_MISS error.
func (t *Tracker) Get(kind Kind, name string) (*Process, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.processes[kind][name]; ok {
		return p, nil
	}
	return nil, errors.RegistryMissError(kind, name)
}

// Update removes every closed process. It is the only cleanup path.
func (t *Tracker) Update() int {
	t.mu.Lock()
	removed := 0
	counts := make(map[Kind]int, len(t.processes))
	for kind, byName := range t.processes {
		for name, p := range byName {
			if p.IsClosed() {
				delete(byName, name)
				removed++
			}
		}
		counts[kind] = len(byName)
		if len(byName) == 0 {
			delete(t.processes, kind)
		}
	}
	t.mu.Unlock()

	for kind, n := range counts {
		t.metrics.SetProcesses(kind.String(), n)
	}
	if removed > 0 {
		logger.Debug("swept %d closed processes", removed)
	}
	return removed
}

// Len returns the number of registered processes.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, byName := range t.processes {
		n += len(byName)
	}
	return n
}

// Snapshot returns every registered process ordered by kind and name.
func (t *Tracker) Snapshot() []Snapshot {
	t.mu.Lock()
	out := make([]Snapshot, 0, len(t.processes))
	for kind, byName := range t.processes {
		for name, p := range byName {
			s := p.Snapshot()
			s.Kind = kind.String()
			s.Name = name
			out = append(out, s)
		}
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Subscribe returns a channel receiving an Event for every Add. Delivery
// never blocks Add: events are dropped when the channel is full. The
// cancel function unsubscribes and closes the channel.
func (t *Tracker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBuffer)

	t.subMu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch
	t.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.subMu.Lock()
			delete(t.subs, id)
			t.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (t *Tracker) publish(ev Event) {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
			logger.Warn("dropping progress event %s/%s for slow subscriber", ev.Kind, ev.Name)
		}
	}
}
