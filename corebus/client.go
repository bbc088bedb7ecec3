package corebus

import (
	"fmt"
	"net"
	"sync"

	"github.com/aws-greengrass-lite/corebus/cmn/atomic"
	"github.com/aws-greengrass-lite/corebus/cmn/nlog"
	"github.com/aws-greengrass-lite/corebus/eventstream"
	"github.com/aws-greengrass-lite/corebus/memsys"
	"github.com/aws-greengrass-lite/corebus/object"
)

// SubHandler receives stream events and the terminating stream-close
// for a subscription, as returned by Client.Subscribe.
type SubHandler struct {
	OnEvent func(o object.Object)
	OnClose func(cause error)
}

type pendingCall struct {
	replyCh chan callReply
}

type callReply struct {
	obj object.Object
	err error
}

// Client is a core-bus connection from the caller's side (§4.5): it
// multiplexes a single reader goroutine across blocking Call waiters
// and active Subscriptions, demultiplexed by correlation id.
type Client struct {
	conn        net.Conn
	maxMsgLen   int
	arenaSize   int

	nextCorrID atomic.Int64

	mu       sync.Mutex
	pending  map[int64]*pendingCall
	subs     map[int64]*SubHandler

	sendMu sync.Mutex
	closed atomic.Bool
}

// Dial connects to a core-bus listening socket at path.
func Dial(path string, maxMsgLen, arenaSize int) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("corebus: dial %s: %w", path, err)
	}
	if maxMsgLen <= 0 {
		maxMsgLen = 10_000
	}
	if arenaSize <= 0 {
		arenaSize = maxMsgLen
	}
	c := &Client{
		conn:      conn,
		maxMsgLen: maxMsgLen,
		arenaSize: arenaSize,
		pending:   make(map[int64]*pendingCall),
		subs:      make(map[int64]*SubHandler),
	}
	go c.readLoop()
	return c, nil
}

// AuthByName performs the first-request auth exchange using a claimed
// component name, returning the SVCUID the server assigned (or the
// existing one, if the name was already registered).
func (c *Client) AuthByName(name string) ([16]byte, error) {
	corrID := c.nextCorrID.Add(1)
	pc := c.registerPending(corrID)
	headers := []eventstream.Header{
		strHeader(hMessageType, msgRequest),
		int64Header(hCorrelationID, corrID),
		strHeader(hMethod, AuthMethod),
		strHeader(hComponentName, name),
	}
	if err := c.writeFrame(headers, nil); err != nil {
		c.dropPending(corrID)
		return [16]byte{}, err
	}
	reply := <-pc.replyCh
	if reply.err != nil {
		return [16]byte{}, reply.err
	}
	var tok [16]byte
	if reply.obj.Kind == object.KindBuf {
		copy(tok[:], reply.obj.Buf)
	}
	return tok, nil
}

// AuthBySVCUID performs the first-request auth exchange presenting an
// existing token (the common case for a component restarted by the
// parent daemon with SVCUID already in its environment).
func (c *Client) AuthBySVCUID(tok [16]byte) error {
	corrID := c.nextCorrID.Add(1)
	pc := c.registerPending(corrID)
	headers := []eventstream.Header{
		strHeader(hMessageType, msgRequest),
		int64Header(hCorrelationID, corrID),
		strHeader(hMethod, AuthMethod),
		bytesHeader(hSVCUID, tok[:]),
	}
	if err := c.writeFrame(headers, nil); err != nil {
		c.dropPending(corrID)
		return err
	}
	reply := <-pc.replyCh
	return reply.err
}

// Call issues a blocking request and waits for its response.
func (c *Client) Call(method string, params object.Object) (object.Object, error) {
	corrID := c.nextCorrID.Add(1)
	pc := c.registerPending(corrID)
	payload := encodeParams(params)
	headers := []eventstream.Header{
		strHeader(hMessageType, msgRequest),
		int64Header(hCorrelationID, corrID),
		strHeader(hMethod, method),
	}
	if err := c.writeFrame(headers, payload); err != nil {
		c.dropPending(corrID)
		return object.Object{}, err
	}
	reply := <-pc.replyCh
	return reply.obj, reply.err
}

// Notify issues a fire-and-forget request: no reply is awaited.
func (c *Client) Notify(method string, params object.Object) error {
	corrID := c.nextCorrID.Add(1)
	payload := encodeParams(params)
	headers := []eventstream.Header{
		strHeader(hMessageType, msgRequest),
		int64Header(hCorrelationID, corrID),
		strHeader(hMethod, method),
	}
	return c.writeFrame(headers, payload)
}

// Subscribe issues a streaming request; on_event/on_close in h are
// invoked from the client's single reader goroutine as stream-event and
// stream-close frames arrive for the returned correlation id.
func (c *Client) Subscribe(method string, params object.Object, h *SubHandler) (int64, error) {
	corrID := c.nextCorrID.Add(1)
	c.mu.Lock()
	c.subs[corrID] = h
	c.mu.Unlock()

	payload := encodeParams(params)
	headers := []eventstream.Header{
		strHeader(hMessageType, msgRequest),
		int64Header(hCorrelationID, corrID),
		strHeader(hMethod, method),
	}
	if err := c.writeFrame(headers, payload); err != nil {
		c.mu.Lock()
		delete(c.subs, corrID)
		c.mu.Unlock()
		return 0, err
	}
	return corrID, nil
}

// CloseSub cancels a subscription by discarding its local handler. The
// server is not told: it keeps sending stream events, which the client
// drops, until the stream closes or the connection itself is closed (§5).
func (c *Client) CloseSub(subHandle int64) {
	c.mu.Lock()
	delete(c.subs, subHandle)
	c.mu.Unlock()
}

func (c *Client) Close() error {
	c.closed.Store(true)
	return c.conn.Close()
}

func (c *Client) registerPending(corrID int64) *pendingCall {
	pc := &pendingCall{replyCh: make(chan callReply, 1)}
	c.mu.Lock()
	c.pending[corrID] = pc
	c.mu.Unlock()
	return pc
}

func (c *Client) dropPending(corrID int64) {
	c.mu.Lock()
	delete(c.pending, corrID)
	c.mu.Unlock()
}

// encodeParams encodes params as a request payload. A Null params object
// is sent as no payload at all, which the server hands to the handler as
// the zero Object.
func encodeParams(params object.Object) []byte {
	if params.Kind == object.KindNull {
		return nil
	}
	return object.Encode(nil, params)
}

func (c *Client) writeFrame(headers []eventstream.Header, payload []byte) error {
	n, err := frameLen(headers, payload)
	if err != nil {
		return err
	}
	buf := make([]byte, n)
	if _, err := encodeFrame(buf, headers, payload); err != nil {
		return err
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	_, err = c.conn.Write(buf)
	if err != nil {
		return NewError(KindIoError, err.Error())
	}
	return nil
}

// readLoop is the client's single reader (§4.5): it demultiplexes
// every inbound frame by correlation id into either a blocking Call
// waiter or a Subscribe handler.
func (c *Client) readLoop() {
	buf := make([]byte, 0, 4096)
	for {
		msg, _, err := readFrame(c.conn, &buf, c.maxMsgLen)
		if err != nil {
			c.failAllPending(err)
			return
		}
		f, err := parseFrame(msg)
		if err != nil {
			continue
		}
		c.handleInbound(f)
	}
}

func (c *Client) handleInbound(f *frame) {
	switch f.messageType {
	case msgResponse:
		c.completeCall(f.corrID, f.payload, f.svcuid, nil)
	case msgError:
		c.completeCall(f.corrID, nil, nil, NewError(ErrKind(f.errorCode), f.errorMsg))
	case msgStreamEvent:
		c.mu.Lock()
		h := c.subs[f.corrID]
		c.mu.Unlock()
		if h == nil || h.OnEvent == nil {
			return
		}
		arena := memsys.NewArena(make([]byte, c.arenaSize))
		o, _, err := object.Decode(arena, f.payload)
		if err != nil {
			nlog.Warningf("corebus: client: bad stream-event payload: %v", err)
			return
		}
		h.OnEvent(o)
	case msgStreamClose:
		c.mu.Lock()
		h := c.subs[f.corrID]
		delete(c.subs, f.corrID)
		c.mu.Unlock()
		if h == nil || h.OnClose == nil {
			return
		}
		var cause error
		if f.errorCode != "" && f.errorCode != string(KindOk) {
			cause = NewError(ErrKind(f.errorCode), f.errorMsg)
		}
		h.OnClose(cause)
	}
}

func (c *Client) completeCall(corrID int64, payload []byte, svcuidBytes []byte, callErr error) {
	c.mu.Lock()
	pc := c.pending[corrID]
	delete(c.pending, corrID)
	c.mu.Unlock()
	if pc == nil {
		return
	}
	if callErr != nil {
		pc.replyCh <- callReply{err: callErr}
		return
	}
	if len(svcuidBytes) == 16 {
		pc.replyCh <- callReply{obj: object.Buf(object.Buffer(svcuidBytes))}
		return
	}
	if len(payload) == 0 {
		pc.replyCh <- callReply{}
		return
	}
	arena := memsys.NewArena(make([]byte, c.arenaSize))
	o, _, err := object.Decode(arena, payload)
	pc.replyCh <- callReply{obj: o, err: err}
}

func (c *Client) failAllPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, pc := range c.pending {
		pc.replyCh <- callReply{err: NewError(KindIoError, err.Error())}
		delete(c.pending, id)
	}
	for id, h := range c.subs {
		delete(c.subs, id)
		if h.OnClose != nil {
			h.OnClose(NewError(KindIoError, err.Error()))
		}
	}
}
