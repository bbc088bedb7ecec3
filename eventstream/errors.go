package eventstream

import "errors"

// Error kinds that are visible at the wire boundary — every decode
// failure maps to exactly one of these (§7's malformed-input row).
var (
	ErrTruncated   = errors.New("eventstream: truncated message")
	ErrBadPrelude  = errors.New("eventstream: bad prelude crc")
	ErrBadChecksum = errors.New("eventstream: bad message checksum")
	ErrBadHeader   = errors.New("eventstream: malformed header")
	ErrNoSpace     = errors.New("eventstream: destination buffer too small")
)

func errBadHeader(reason string) error {
	return &headerError{reason}
}

type headerError struct{ reason string }

func (e *headerError) Error() string { return "eventstream: malformed header: " + e.reason }
func (e *headerError) Unwrap() error { return ErrBadHeader }
