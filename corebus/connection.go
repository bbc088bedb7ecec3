package corebus

import (
	"net"
	"sync"
	"time"

	"github.com/aws-greengrass-lite/corebus/cmn/atomic"
	"github.com/aws-greengrass-lite/corebus/cmn/cos"
	"github.com/aws-greengrass-lite/corebus/cmn/mono"
	"github.com/aws-greengrass-lite/corebus/ipc"
)

// Connection is the server-side per-client state described by §3: a
// file descriptor, the peer's credentials, the handle it authenticated
// as (if any), and the set of streams it currently has open. A
// Connection has exactly one reader goroutine and serialises writers
// behind sendMu, matching §9's "single reader, single writer" proof
// assumption.
type Connection struct {
	id          string // log-correlation id only, cos.GenID (xxhash-seeded)
	conn        net.Conn
	peerUID     uint32
	peerPID     int32
	sendTimeout time.Duration

	sendMu sync.Mutex

	authed   atomic.Bool
	handle   ipc.Handle
	handleMu sync.Mutex

	streamsMu sync.Mutex
	streams   map[int64]*Stream

	lastActivity atomic.Int64 // mono.NanoTime() of last successful read
	closed       atomic.Bool

	// idleTicks and heapIndex are owned exclusively by the reaper's
	// goroutine; see reaper.go.
	idleTicks int
	heapIndex int
}

func newConnection(c net.Conn, uid uint32, pid int32, sendTimeout time.Duration) *Connection {
	conn := &Connection{
		id:          cos.GenID(),
		conn:        c,
		peerUID:     uid,
		peerPID:     pid,
		sendTimeout: sendTimeout,
		streams:     make(map[int64]*Stream),
	}
	conn.touch()
	return conn
}

func (c *Connection) touch() { c.lastActivity.Store(mono.NanoTime()) }

func (c *Connection) setHandle(h ipc.Handle) {
	c.handleMu.Lock()
	c.handle = h
	c.handleMu.Unlock()
	c.authed.Store(true)
}

func (c *Connection) Handle() ipc.Handle {
	c.handleMu.Lock()
	defer c.handleMu.Unlock()
	return c.handle
}

func (c *Connection) Authenticated() bool { return c.authed.Load() }

// send writes one fully-encoded frame, serialised against concurrent
// writers by sendMu and bounded by the connection's send timeout
// (§4.4 rule 4): a slow peer that cannot drain its socket within the
// deadline is treated as dead and its connection is torn down.
func (c *Connection) send(buf []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.sendTimeout)); err != nil {
			return NewError(KindIoError, err.Error())
		}
	}
	_, err := c.conn.Write(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return NewError(KindTimeout, "send timed out")
		}
		return NewError(KindIoError, err.Error())
	}
	return nil
}

func (c *Connection) addStream(s *Stream) {
	c.streamsMu.Lock()
	c.streams[s.corrID] = s
	c.streamsMu.Unlock()
}

func (c *Connection) removeStream(corrID int64) {
	c.streamsMu.Lock()
	delete(c.streams, corrID)
	c.streamsMu.Unlock()
}

// Close tears the connection down: §4.3's "destroyed on fatal error"
// path. All pending streams are marked closed; their allocations are
// released simply by becoming unreachable (arenas are owned by the
// request that created them, not by the Connection).
func (c *Connection) Close() error {
	if !c.closed.CAS(false, true) {
		return nil
	}
	c.streamsMu.Lock()
	for _, s := range c.streams {
		s.markClosed()
	}
	c.streams = nil
	c.streamsMu.Unlock()
	return c.conn.Close()
}

func (c *Connection) isClosed() bool { return c.closed.Load() }

// Stream is the handle returned by sub_accept (§4.4): a request that
// has been upgraded into a series of stream-event frames terminated by
// exactly one stream-close.
type Stream struct {
	conn    *Connection
	corrID  int64
	closed  atomic.Bool
	srv     *Server
}

func (s *Stream) markClosed() { s.closed.Store(true) }

// Send emits one stream-event frame carrying payload.
func (s *Stream) Send(payload []byte) error {
	if s.closed.Load() || s.conn.isClosed() {
		return NewError(KindInternal, "stream already closed")
	}
	return s.srv.sendStreamEvent(s.conn, s.corrID, payload)
}

// Close sends a stream-close frame carrying the given error (nil means
// a clean Ok close) and releases the stream's correlation slot.
func (s *Stream) Close(cause error) error {
	if !s.closed.CAS(false, true) {
		return nil
	}
	s.conn.removeStream(s.corrID)
	return s.srv.sendStreamClose(s.conn, s.corrID, cause)
}
