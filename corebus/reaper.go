package corebus

import (
	"container/heap"
	"time"

	"github.com/aws-greengrass-lite/corebus/cmn/mono"
)

func nowNano() int64 { return mono.NanoTime() }

// reaper is the per-server idle-connection collector: it gives every
// accepted Connection its own idle timer (measured in ticks, as the
// teacher's stream collector does for streams) and closes connections
// that go quiet for too long. Grounded directly on
// transport/collect.go's container/heap idle-stream collector,
// generalized from "one stream, one timeout" to "one connection, one
// timeout".
type reaper struct {
	tick        time.Duration
	idleTicks   int
	heap        connHeap
	addCh       chan *Connection
	removeCh    chan *Connection
	stopCh      chan struct{}
}

func newReaper(tick time.Duration, idleTicks int) *reaper {
	return &reaper{
		tick:      tick,
		idleTicks: idleTicks,
		addCh:     make(chan *Connection, 64),
		removeCh:  make(chan *Connection, 64),
		stopCh:    make(chan struct{}),
	}
}

func (r *reaper) add(c *Connection)    { r.addCh <- c }
func (r *reaper) remove(c *Connection) { r.removeCh <- c }
func (r *reaper) stop()                { close(r.stopCh) }

func (r *reaper) run() {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case c := <-r.addCh:
			c.idleTicks = r.idleTicks
			heap.Push(&r.heap, c)
		case c := <-r.removeCh:
			r.heap.removeConn(c)
		case <-ticker.C:
			r.sweep()
		case <-r.stopCh:
			return
		}
	}
}

// sweep decrements every connection's idle budget once per tick,
// resetting it on any connection that has seen activity since the
// last sweep, and closes any connection whose budget reaches zero.
func (r *reaper) sweep() {
	var dead []*Connection
	for i := range r.heap {
		c := r.heap[i]
		if time.Duration(deltaSinceTouch(c)) < r.tick {
			c.idleTicks = r.idleTicks
			continue
		}
		c.idleTicks--
		if c.idleTicks <= 0 {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		r.heap.removeConn(c)
		c.Close()
	}
	heap.Init(&r.heap)
}

func deltaSinceTouch(c *Connection) int64 {
	return nowNano() - c.lastActivity.Load()
}

// connHeap is a trivial min-heap on idleTicks; reaper.sweep() always
// walks the whole slice (connection counts here are small — local
// daemons, not a cluster), so Less/ordering mainly keeps heap.Fix/Push
// bookkeeping consistent rather than driving a priority queue proper.
type connHeap []*Connection

func (h connHeap) Len() int           { return len(h) }
func (h connHeap) Less(i, j int) bool { return h[i].idleTicks < h[j].idleTicks }
func (h connHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}
func (h *connHeap) Push(x any) {
	c := x.(*Connection)
	c.heapIndex = len(*h)
	*h = append(*h, c)
}
func (h *connHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}

func (h *connHeap) removeConn(c *Connection) {
	idx := c.heapIndex
	if idx < 0 || idx >= len(*h) || (*h)[idx] != c {
		return
	}
	heap.Remove(h, idx)
}
