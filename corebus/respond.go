package corebus

import (
	"github.com/aws-greengrass-lite/corebus/eventstream"
	"github.com/aws-greengrass-lite/corebus/object"
)

func (s *Server) sendResponse(c *Connection, corrID int64, o object.Object) error {
	payload := object.Encode(nil, o)
	headers := []eventstream.Header{
		strHeader(hMessageType, msgResponse),
		int64Header(hCorrelationID, corrID),
	}
	return s.sendFrame(c, headers, payload)
}

func (s *Server) sendError(c *Connection, corrID int64, kind ErrKind, msg string) error {
	headers := []eventstream.Header{
		strHeader(hMessageType, msgError),
		int64Header(hCorrelationID, corrID),
		strHeader(hErrorCode, string(kind)),
		strHeader(hMessageText, msg),
	}
	return s.sendFrame(c, headers, nil)
}

// replyErrorAndKeep sends an error response for a per-request failure
// that does not itself mandate tearing down the connection (e.g.
// MethodNotFound); it returns nil so the caller's reader loop
// continues, except for kinds whose §7 Recovery column says otherwise.
func (s *Server) replyErrorAndKeep(c *Connection, corrID int64, kind ErrKind, msg string) error {
	s.ctx.Metrics.incError(kind)
	if err := s.sendError(c, corrID, kind, msg); err != nil {
		return err
	}
	if kind.fatal() {
		return NewError(kind, msg)
	}
	return nil
}

func (s *Server) sendStreamEvent(c *Connection, corrID int64, payload []byte) error {
	headers := []eventstream.Header{
		strHeader(hMessageType, msgStreamEvent),
		int64Header(hCorrelationID, corrID),
	}
	return s.sendFrame(c, headers, payload)
}

func (s *Server) sendStreamClose(c *Connection, corrID int64, cause error) error {
	headers := []eventstream.Header{
		strHeader(hMessageType, msgStreamClose),
		int64Header(hCorrelationID, corrID),
	}
	if cause != nil {
		headers = append(headers, strHeader(hErrorCode, string(KindInternal)), strHeader(hMessageText, cause.Error()))
	} else {
		headers = append(headers, strHeader(hErrorCode, string(KindOk)))
	}
	return s.sendFrame(c, headers, nil)
}

func (s *Server) respondAuthOK(c *Connection, corrID int64) error {
	name, _ := s.ctx.Registry.NameOf(c.Handle())
	o := object.MkMap([]object.MapEntry{
		{Key: object.Buffer("component-name"), Val: object.Buf(object.Buffer(name))},
	})
	return s.sendResponse(c, corrID, o)
}

func (s *Server) respondAuthIssued(c *Connection, corrID int64, tok [16]byte) error {
	headers := []eventstream.Header{
		strHeader(hMessageType, msgResponse),
		int64Header(hCorrelationID, corrID),
		bytesHeader(hSVCUID, tok[:]),
	}
	return s.sendFrame(c, headers, nil)
}

func (s *Server) sendFrame(c *Connection, headers []eventstream.Header, payload []byte) error {
	n, err := frameLen(headers, payload)
	if err != nil {
		return err
	}
	buf := make([]byte, n)
	if _, err := encodeFrame(buf, headers, payload); err != nil {
		return err
	}
	return c.send(buf)
}
