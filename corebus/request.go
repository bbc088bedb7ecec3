package corebus

import (
	"github.com/aws-greengrass-lite/corebus/cmn/atomic"
	"github.com/aws-greengrass-lite/corebus/memsys"
	"github.com/aws-greengrass-lite/corebus/object"
)

// Request is handed to a Handler: the decoded params (an Object of
// kind Map, or the zero Object if the request carried no payload), the
// arena it was decoded into, and the response operations a handler
// must call exactly one of (§4.4 rule 2).
type Request struct {
	srv    *Server
	conn   *Connection
	arena  *memsys.Arena
	corrID int64

	Params object.Object

	state atomic.Bool // true once Respond/RespondError/SubAccept has been called
}

// Arena is the request-scoped allocator backing Params; handlers may
// also use it to build a response Object.
func (r *Request) Arena() *memsys.Arena { return r.arena }

// Connection identifies the peer that sent this request, e.g. for a
// handler that wants the authenticated component's handle.
func (r *Request) Connection() *Connection { return r.conn }

func (r *Request) settled() bool { return r.state.Load() }

func (r *Request) claim() bool { return r.state.CAS(false, true) }

// Respond sends a single successful response and closes the
// correlation. It is an error to call it more than once, or after
// RespondError/SubAccept.
func (r *Request) Respond(o object.Object) error {
	if !r.claim() {
		return NewError(KindInternal, "response already sent")
	}
	return r.srv.sendResponse(r.conn, r.corrID, o)
}

// RespondError sends an error response and closes the correlation.
func (r *Request) RespondError(kind ErrKind, msg string) error {
	if !r.claim() {
		return NewError(KindInternal, "response already sent")
	}
	r.srv.ctx.Metrics.incError(kind)
	return r.srv.sendError(r.conn, r.corrID, kind, msg)
}

// SubAccept upgrades the call into a stream: subsequent Stream.Send
// calls deliver stream-event frames under this request's correlation
// id until Stream.Close sends the terminating stream-close frame.
func (r *Request) SubAccept() (*Stream, error) {
	if !r.claim() {
		return nil, NewError(KindInternal, "response already sent")
	}
	s := &Stream{conn: r.conn, corrID: r.corrID, srv: r.srv}
	r.conn.addStream(s)
	return s, nil
}
