// Package hk is a generic, heap-scheduled periodic-callback registrar.
// corebus's Server registers a named log-flush callback with it; any
// other embedding daemon with its own periodic task (config reload,
// metrics scrape, cache eviction) registers one the same way, by name,
// with an initial interval. A callback returns the delay until its own
// next run, so a hot task can self-accelerate and a quiet one can
// self-throttle. Grounded on the teacher's single-purpose stream idle
// collector (transport/collect.go), generalized here from "one stream,
// one timer" to "N named callbacks, one min-heap, one ticker".
package hk

import (
	"container/heap"
	"sync"
	"time"

	"github.com/aws-greengrass-lite/corebus/cmn/nlog"
)

const minInterval = 100 * time.Millisecond

// Callback is run by the housekeeper at or after its due time. The
// returned duration schedules the next run; returning 0 unregisters it.
type Callback func() time.Duration

type job struct {
	name  string
	due   time.Time
	fn    Callback
	index int
}

type jobHeap []*job

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return h[i].due.Before(h[j].due) }
func (h jobHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *jobHeap) Push(x any)         { j := x.(*job); j.index = len(*h); *h = append(*h, j) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return j
}

// Housekeeper runs registered callbacks on their own schedule, driven
// by a single background goroutine and a min-heap ordered by due time.
type Housekeeper struct {
	mu      sync.Mutex
	heap    jobHeap
	byName  map[string]*job
	wake    chan struct{}
	stop    chan struct{}
	started chan struct{}
	once    sync.Once
}

// DefaultHK is the process-wide housekeeper corebus.Server registers
// its periodic tasks against, unless a test substitutes its own
// instance via TestInit.
var DefaultHK = New()

func New() *Housekeeper {
	return &Housekeeper{
		byName:  make(map[string]*job),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		started: make(chan struct{}),
	}
}

// Reg schedules fn to first run after initialInterval, and thereafter
// at whatever interval fn itself returns. Re-registering an existing
// name replaces its schedule.
func (h *Housekeeper) Reg(name string, fn Callback, initialInterval time.Duration) {
	if initialInterval < minInterval {
		initialInterval = minInterval
	}
	h.mu.Lock()
	if old, ok := h.byName[name]; ok {
		heap.Remove(&h.heap, old.index)
	}
	j := &job{name: name, due: timeNow().Add(initialInterval), fn: fn}
	h.byName[name] = j
	heap.Push(&h.heap, j)
	h.mu.Unlock()
	h.nudge()
}

// Unreg cancels a named callback if present.
func (h *Housekeeper) Unreg(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if j, ok := h.byName[name]; ok {
		heap.Remove(&h.heap, j.index)
		delete(h.byName, name)
	}
}

func (h *Housekeeper) nudge() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Run drives the housekeeper until Stop is called. It is meant to run
// in its own goroutine for the lifetime of the process.
func (h *Housekeeper) Run() {
	h.once.Do(func() { close(h.started) })
	for {
		d := h.nextDelay()
		t := time.NewTimer(d)
		select {
		case <-t.C:
			h.runDue()
		case <-h.wake:
			t.Stop()
		case <-h.stop:
			t.Stop()
			return
		}
	}
}

// WaitStarted blocks until Run has begun, for tests that register a
// callback before the housekeeper goroutine is known to be live.
func (h *Housekeeper) WaitStarted() { <-h.started }

func (h *Housekeeper) Stop() {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
}

func (h *Housekeeper) nextDelay() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.heap) == 0 {
		return time.Hour
	}
	d := time.Until(h.heap[0].due)
	if d < 0 {
		return 0
	}
	return d
}

func (h *Housekeeper) runDue() {
	now := timeNow()
	for {
		h.mu.Lock()
		if len(h.heap) == 0 || h.heap[0].due.After(now) {
			h.mu.Unlock()
			return
		}
		j := heap.Pop(&h.heap).(*job)
		delete(h.byName, j.name)
		h.mu.Unlock()

		next := j.fn()
		if next <= 0 {
			continue
		}
		h.Reg(j.name, j.fn, next)
	}
}

func timeNow() time.Time { return time.Now() }

// TestInit resets the default housekeeper and starts it in a fresh
// goroutine; tests call this instead of relying on process init order.
func TestInit() {
	DefaultHK.Stop()
	DefaultHK = New()
	go DefaultHK.Run()
	DefaultHK.WaitStarted()
	nlog.Infof("hk: test-initialized")
}
