package eventstream

import (
	"encoding/binary"
	"hash/crc32"
)

const (
	preludeLen  = 12 // total_len(4) + headers_len(4) + prelude_crc(4)
	trailerLen  = 4  // message_crc
	minFrameLen = preludeLen + trailerLen
)

// Message is a decoded, non-owning view over a byte slice: Decode
// performs no copies, so a Message (and every Header read from its
// iterator, and its Payload) is only valid as long as the source buffer
// is not reused.
type Message struct {
	buf        []byte // the full validated frame
	headersBuf []byte // sub-slice: the headers region only
	Payload    []byte // sub-slice: the payload region only
}

// Decode validates the Event-Stream prelude, total-length and checksum
// fields, bounds-checks every header in the headers region, and returns
// a Message borrowing from buf. It never reads past TotalLen, and never
// panics on malformed input — see eventstream's Error values for the
// taxonomy.
func Decode(buf []byte) (*Message, error) {
	if len(buf) < minFrameLen {
		return nil, ErrTruncated
	}
	totalLen := binary.BigEndian.Uint32(buf[0:4])
	headersLen := binary.BigEndian.Uint32(buf[4:8])
	preludeCRC := binary.BigEndian.Uint32(buf[8:12])

	if crc32.ChecksumIEEE(buf[0:8]) != preludeCRC {
		return nil, ErrBadPrelude
	}
	if uint64(totalLen) > uint64(len(buf)) || uint64(totalLen) < uint64(preludeLen)+uint64(headersLen)+uint64(trailerLen) {
		return nil, ErrTruncated
	}

	frame := buf[:totalLen]
	msgCRC := binary.BigEndian.Uint32(frame[totalLen-4:])
	if crc32.ChecksumIEEE(frame[:totalLen-4]) != msgCRC {
		return nil, ErrBadChecksum
	}

	headersEnd := preludeLen + uint64(headersLen)
	headersBuf := frame[preludeLen:headersEnd]
	payload := frame[headersEnd : totalLen-4]

	// Walk (but do not retain) every header once, purely to validate
	// that the headers region is well-formed before handing the caller
	// a lazy iterator over it (§4.2 step 4): a header_next() call after
	// this point cannot fail.
	rest := headersBuf
	for len(rest) > 0 {
		_, next, err := readHeader(rest)
		if err != nil {
			return nil, err
		}
		rest = next
	}

	return &Message{buf: frame, headersBuf: headersBuf, Payload: payload}, nil
}

// Headers returns a fresh iterator over the message's headers.
func (m *Message) Headers() *HeaderIter { return &HeaderIter{buf: m.headersBuf} }

// HeaderIter is the lazy header iterator mandated by §4.2: after Decode
// has validated the message, Next cannot fail.
type HeaderIter struct {
	buf []byte
}

// Next advances the iterator. ok is false once the headers are
// exhausted (the "End" case in spec terms).
func (it *HeaderIter) Next() (h Header, ok bool) {
	if len(it.buf) == 0 {
		return Header{}, false
	}
	h, rest, err := readHeader(it.buf)
	if err != nil {
		// unreachable if Decode validated this message; treat as end
		// rather than panicking, per the "never panics" robustness law.
		return Header{}, false
	}
	it.buf = rest
	return h, true
}

// Find is a convenience to pull one named header (e.g.
// ":message-type") without hand-rolling a loop.
func (m *Message) Find(name string) (Header, bool) {
	it := m.Headers()
	for {
		h, ok := it.Next()
		if !ok {
			return Header{}, false
		}
		if h.Name == name {
			return h, true
		}
	}
}

// Encoder builds an Event-Stream message into a caller-provided buffer.
type Encoder struct {
	headers []Header
	payload []byte
}

func NewEncoder() *Encoder { return &Encoder{} }

func (e *Encoder) AddHeader(h Header) *Encoder {
	e.headers = append(e.headers, h)
	return e
}

func (e *Encoder) SetPayload(p []byte) *Encoder {
	e.payload = p
	return e
}

// Encode writes the full framed message into dst[:n] and returns n, or
// ErrNoSpace if dst is too small. dst's capacity is never exceeded; the
// function never grows dst itself, matching the arena-friendly
// "caller-provided buffer" contract used throughout this core.
func (e *Encoder) Encode(dst []byte) (int, error) {
	var hb []byte
	var err error
	for _, h := range e.headers {
		hb, err = appendHeader(hb, h)
		if err != nil {
			return 0, err
		}
	}
	totalLen := preludeLen + len(hb) + len(e.payload) + trailerLen
	if len(dst) < totalLen {
		return 0, ErrNoSpace
	}
	binary.BigEndian.PutUint32(dst[0:4], uint32(totalLen))
	binary.BigEndian.PutUint32(dst[4:8], uint32(len(hb)))
	binary.BigEndian.PutUint32(dst[8:12], crc32.ChecksumIEEE(dst[0:8]))
	off := preludeLen
	off += copy(dst[off:], hb)
	off += copy(dst[off:], e.payload)
	binary.BigEndian.PutUint32(dst[off:off+4], crc32.ChecksumIEEE(dst[:off]))
	return totalLen, nil
}

// EncodedLen reports how large a buffer Encode will need, without
// writing anything — callers typically size an arena allocation with
// this before calling Encode.
func (e *Encoder) EncodedLen() (int, error) {
	var hb []byte
	var err error
	for _, h := range e.headers {
		hb, err = appendHeader(hb, h)
		if err != nil {
			return 0, err
		}
	}
	return preludeLen + len(hb) + len(e.payload) + trailerLen, nil
}
