// Package corebus implements the length-prefixed request/response/
// notification/stream RPC described by §4.3–§4.5: Event-Stream framing
// over a Unix-domain listening socket, a server-side dispatch table,
// and a client that multiplexes replies and stream events by
// correlation id.
package corebus

import (
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/aws-greengrass-lite/corebus/cmn/cos"
	"github.com/aws-greengrass-lite/corebus/cmn/nlog"
	"github.com/aws-greengrass-lite/corebus/eventstream"
	"github.com/aws-greengrass-lite/corebus/hk"
	"github.com/aws-greengrass-lite/corebus/memsys"
	"github.com/aws-greengrass-lite/corebus/object"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// startHKOnce ensures the process-wide housekeeper goroutine is started
// at most once, regardless of how many Server instances a process (or a
// test) creates.
var startHKOnce sync.Once

const hkFlushJobName = "corebus-log-flush"

// Handler is invoked once per request. It must call exactly one of
// Request.Respond, Request.RespondError, or Request.SubAccept before
// returning (§4.4 rule 2); failing to do so is a protocol violation
// the server converts into a synthesized InternalError and a closed
// connection.
type Handler func(req *Request) error

// MethodSpec describes one registered bus method.
type MethodSpec struct {
	Name           string
	IsNotification bool
	Handler        Handler
}

// Server is a listening core-bus endpoint: one accept loop, a pool of
// per-connection reader goroutines supervised by an errgroup (so a
// panic or fatal error in one connection never takes down its
// siblings), a method dispatch table, and an idle-connection reaper.
type Server struct {
	ctx     *Context
	methods map[string]MethodSpec

	listener net.Listener
	reaper   *reaper

	connsMu sync.Mutex
	conns   map[*Connection]struct{}
}

// NewServer builds a Server from a process Context and a method
// table. AuthMethod may not be registered directly; the server handles
// it.
func NewServer(ctx *Context, methods []MethodSpec) (*Server, error) {
	tbl := make(map[string]MethodSpec, len(methods))
	for _, m := range methods {
		if m.Name == AuthMethod {
			return nil, fmt.Errorf("corebus: method name %q is reserved", AuthMethod)
		}
		tbl[m.Name] = m
	}
	return &Server{
		ctx:     ctx,
		methods: tbl,
		reaper:  newReaper(5*time.Second, 12), // ~60s idle budget, teacher's dfltTick-style cadence
		conns:   make(map[*Connection]struct{}),
	}, nil
}

// Listen creates the socket at path with mode 0700 and serves until the
// listener is closed (see Close) or an accept fails. An accept failure
// returns a non-nil error at once; after Close, Listen waits for the
// connections already accepted to finish and then returns nil.
func (s *Server) Listen(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("corebus: clearing stale socket %s: %w", path, err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("corebus: listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o700); err != nil {
		ln.Close()
		return fmt.Errorf("corebus: chmod %s: %w", path, err)
	}
	s.listener = ln

	startHKOnce.Do(func() { go hk.DefaultHK.Run() })
	hk.DefaultHK.Reg(hkFlushJobName, func() time.Duration {
		nlog.Flush()
		return 10 * time.Second
	}, 10*time.Second)
	defer hk.DefaultHK.Unreg(hkFlushJobName)

	go s.reaper.run()
	defer s.reaper.stop()

	group := new(errgroup.Group)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if isClosedListener(err) {
				break
			}
			return fmt.Errorf("corebus: accept: %w", err)
		}
		uid, pid, err := peerCreds(conn)
		if err != nil {
			nlog.Warningf("corebus: SO_PEERCRED failed, closing connection: %v", err)
			conn.Close()
			continue
		}
		c := newConnection(conn, uid, pid, s.ctx.Config.SendTimeout)
		s.trackConn(c)
		s.reaper.add(c)
		s.ctx.Metrics.connOpened()
		group.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					nlog.Errorf("corebus: conn %s: panic: %v", c.id, r)
				}
			}()
			s.serveConn(c)
			return nil
		})
	}
	return group.Wait()
}

// Close stops accepting new connections; connections already accepted
// continue to be served until their own teardown condition fires.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func isClosedListener(err error) bool {
	ne, ok := err.(*net.OpError)
	return ok && ne.Err.Error() == "use of closed network connection"
}

func peerCreds(conn net.Conn) (uid uint32, pid int32, err error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return 0, 0, fmt.Errorf("corebus: not a unix socket connection")
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return 0, 0, err
	}
	var cred *unix.Ucred
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		cred, sockErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if ctrlErr != nil {
		return 0, 0, ctrlErr
	}
	if sockErr != nil {
		return 0, 0, sockErr
	}
	return cred.Uid, cred.Pid, nil
}

func (s *Server) trackConn(c *Connection) {
	s.connsMu.Lock()
	s.conns[c] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrackConn(c *Connection) {
	s.connsMu.Lock()
	delete(s.conns, c)
	s.connsMu.Unlock()
	s.reaper.remove(c)
	s.ctx.Metrics.connClosed()
}

// serveConn is the connection's single reader: it accumulates bytes
// until one full frame (by total_len) is available, decodes, dispatches,
// and repeats until a fatal error, EOF, or the connection is closed
// (e.g. by the idle reaper) (§4.3).
func (s *Server) serveConn(c *Connection) {
	defer func() {
		c.Close()
		s.untrackConn(c)
	}()

	maxMsgLen := s.ctx.Config.MaxMsgLen
	if maxMsgLen <= 0 {
		maxMsgLen = 10_000
	}
	buf := make([]byte, 0, 4096)

	for {
		msg, n, err := readFrame(c.conn, &buf, maxMsgLen)
		if err != nil {
			if err != errGracefulEOF {
				nlog.Infof("corebus: conn %s: closing: %v", c.id, err)
			}
			return
		}
		c.touch()
		s.ctx.Metrics.observeFrame(n)

		if err := s.dispatch(c, msg); err != nil {
			nlog.Warningf("corebus: conn %s: dispatch error, closing: %v", c.id, err)
			return
		}
	}
}

var errGracefulEOF = fmt.Errorf("corebus: connection closed by peer")

// readFrame reads exactly one Event-Stream frame off conn into buf,
// rejecting (without ever invoking a handler) any frame whose
// advertised total_len exceeds maxMsgLen — the oversize-rejection
// scenario from §8.
func readFrame(conn net.Conn, buf *[]byte, maxMsgLen int) (*eventstream.Message, int, error) {
	const preludeLen = 12
	hdr := make([]byte, preludeLen)
	if _, err := readFull(conn, hdr); err != nil {
		return nil, 0, translateReadErr(err)
	}
	totalLen := beUint32(hdr[0:4])
	if int(totalLen) > maxMsgLen {
		return nil, 0, fmt.Errorf("corebus: frame length %d exceeds max %d", totalLen, maxMsgLen)
	}
	if int(totalLen) < preludeLen {
		return nil, 0, fmt.Errorf("corebus: frame length %d smaller than prelude", totalLen)
	}
	*buf = grow(*buf, int(totalLen))
	copy(*buf, hdr)
	if _, err := readFull(conn, (*buf)[preludeLen:totalLen]); err != nil {
		return nil, 0, translateReadErr(err)
	}
	msg, err := eventstream.Decode((*buf)[:totalLen])
	if err != nil {
		return nil, 0, fmt.Errorf("corebus: decode: %w", err)
	}
	return msg, int(totalLen), nil
}

func grow(buf []byte, n int) []byte {
	if cap(buf) < n {
		return make([]byte, n)
	}
	return buf[:n]
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func readFull(conn net.Conn, b []byte) (int, error) {
	n := 0
	for n < len(b) {
		m, err := conn.Read(b[n:])
		if err != nil {
			return n, err
		}
		n += m
	}
	return n, nil
}

func translateReadErr(err error) error {
	if err == nil {
		return nil
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return fmt.Errorf("corebus: %w", err)
	}
	if err == io.EOF || cos.IsRetriableConnErr(err) {
		// peer went away (clean EOF, RST, or EPIPE): expected, so
		// serveConn closes the connection without logging it.
		return errGracefulEOF
	}
	return fmt.Errorf("corebus: %w", err)
}

// dispatch implements §4.4's rules 1-3 plus the auth exchange of
// §4.3/§4.6. A returned error is always fatal to the connection; a
// recoverable per-request failure is instead turned into an error
// response frame and nil is returned.
func (s *Server) dispatch(c *Connection, msg *eventstream.Message) error {
	f, err := parseFrame(msg)
	if err != nil {
		return s.replyErrorAndKeep(c, 0, KindMalformedRequest, err.Error())
	}
	if f.messageType != msgRequest {
		return s.replyErrorAndKeep(c, f.corrID, KindInvalidArg, "unexpected message-type on server")
	}

	if !c.Authenticated() {
		return s.handleAuth(c, f)
	}

	s.ctx.Metrics.incRequests()

	if f.method == AuthMethod {
		// already authenticated: re-auth is a no-op success, echoing the
		// existing handle's name back.
		return s.respondAuthOK(c, f.corrID)
	}

	spec, ok := s.methods[f.method]
	if !ok {
		return s.replyErrorAndKeep(c, f.corrID, KindMethodNotFound, f.method)
	}

	arena := memsys.NewArena(make([]byte, s.paramsArenaSize()))
	var params object.Object
	if len(f.payload) > 0 {
		params, _, err = object.Decode(arena, f.payload)
		if err != nil {
			return s.replyErrorAndKeep(c, f.corrID, KindParse, err.Error())
		}
	}
	if params.Kind != object.KindMap && len(f.payload) > 0 {
		return s.replyErrorAndKeep(c, f.corrID, KindMalformedRequest, "params did not decode as a Map")
	}

	req := &Request{
		srv:    s,
		conn:   c,
		arena:  arena,
		corrID: f.corrID,
		Params: params,
	}

	if spec.IsNotification {
		if err := spec.Handler(req); err != nil {
			nlog.Warningf("corebus: notification handler %q returned error: %v", f.method, err)
		}
		return nil
	}

	if err := spec.Handler(req); err != nil {
		return s.replyErrorAndKeep(c, f.corrID, KindInternal, err.Error())
	}
	if !req.settled() {
		// §4.4 rule 2: handler returned without responding or streaming.
		s.replyErrorAndKeep(c, f.corrID, KindInternal, "handler did not respond")
		return fmt.Errorf("corebus: method %q violated the respond-exactly-once contract", f.method)
	}
	return nil
}

func (s *Server) paramsArenaSize() int {
	n := s.ctx.Config.MaxMsgLen
	if n <= 0 {
		n = 10_000
	}
	return n
}

func (s *Server) handleAuth(c *Connection, f *frame) error {
	if f.method != AuthMethod {
		return s.replyErrorAndKeep(c, f.corrID, KindNotAuthenticated, "first request must be the auth exchange")
	}
	if len(f.svcuid) == 16 {
		var tok [16]byte
		copy(tok[:], f.svcuid)
		h, err := s.ctx.Registry.LookupHandle(tok)
		if err != nil {
			s.ctx.Metrics.incError(KindNotAuthenticated)
			s.sendError(c, f.corrID, KindNotAuthenticated, "unknown svcuid")
			return fmt.Errorf("corebus: auth failed: %w", err)
		}
		c.setHandle(h)
		s.ctx.Registry.BindOwner(h, int(c.peerPID))
		return s.respondAuthOK(c, f.corrID)
	}
	if f.compName != "" {
		h, tok, err := s.ctx.Authenticator.Authenticate(int(c.peerPID), f.compName)
		if err != nil {
			s.ctx.Metrics.incError(KindNotAuthenticated)
			s.sendError(c, f.corrID, KindNotAuthenticated, err.Error())
			return fmt.Errorf("corebus: auth failed for %q: %w", f.compName, err)
		}
		c.setHandle(h)
		return s.respondAuthIssued(c, f.corrID, tok)
	}
	s.ctx.Metrics.incError(KindMalformedRequest)
	s.sendError(c, f.corrID, KindMalformedRequest, "auth exchange needs :svcuid or :component-name")
	return fmt.Errorf("corebus: malformed auth exchange")
}
