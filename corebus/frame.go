package corebus

import (
	"github.com/aws-greengrass-lite/corebus/eventstream"
)

// Reserved header names on every core-bus frame (§6).
const (
	hMessageType   = ":message-type"
	hCorrelationID = ":correlation-id"
	hMethod        = ":method"
	hErrorCode     = ":error-code"
	hMessageText   = ":message"
	hComponentName = ":component-name"
	hSVCUID        = ":svcuid"
)

// Message-type values (§6).
const (
	msgRequest      = "request"
	msgResponse     = "response"
	msgError        = "error"
	msgStreamEvent  = "stream-event"
	msgStreamClose  = "stream-close"
)

// AuthMethod is the reserved method name for the zero-argument
// get-auth exchange that must be the first request on every
// connection (§4.3/§4.6). User methods may not register this name.
const AuthMethod = "$auth"

// frame is the decoded view of one core-bus message, independent of
// whether the payload bytes have been turned into an Object yet —
// callers decode Payload lazily against the arena they intend to use.
type frame struct {
	messageType string
	corrID      int64
	method      string
	errorCode   string
	errorMsg    string
	compName    string
	svcuid      []byte
	payload     []byte
}

func parseFrame(msg *eventstream.Message) (*frame, error) {
	f := &frame{payload: msg.Payload}
	it := msg.Headers()
	for {
		h, ok := it.Next()
		if !ok {
			break
		}
		switch h.Name {
		case hMessageType:
			f.messageType = h.Str
		case hCorrelationID:
			f.corrID = h.Int64
		case hMethod:
			f.method = h.Str
		case hErrorCode:
			f.errorCode = h.Str
		case hMessageText:
			f.errorMsg = h.Str
		case hComponentName:
			f.compName = h.Str
		case hSVCUID:
			f.svcuid = h.Bytes
		}
	}
	if f.messageType == "" {
		return nil, NewError(KindMalformedRequest, "missing :message-type header")
	}
	return f, nil
}

func encodeFrame(dst []byte, headers []eventstream.Header, payload []byte) (int, error) {
	enc := eventstream.NewEncoder().SetPayload(payload)
	for _, h := range headers {
		enc.AddHeader(h)
	}
	return enc.Encode(dst)
}

func frameLen(headers []eventstream.Header, payload []byte) (int, error) {
	enc := eventstream.NewEncoder().SetPayload(payload)
	for _, h := range headers {
		enc.AddHeader(h)
	}
	return enc.EncodedLen()
}

func strHeader(name, val string) eventstream.Header {
	return eventstream.Header{Name: name, Type: eventstream.String, Str: val}
}

func int64Header(name string, val int64) eventstream.Header {
	return eventstream.Header{Name: name, Type: eventstream.Int64, Int64: val}
}

func bytesHeader(name string, val []byte) eventstream.Header {
	return eventstream.Header{Name: name, Type: eventstream.ByteBuffer, Bytes: val}
}
