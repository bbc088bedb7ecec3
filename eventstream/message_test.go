package eventstream_test

import (
	"testing"

	"github.com/aws-greengrass-lite/corebus/eventstream"
)

func buildSample(t *testing.T) []byte {
	t.Helper()
	enc := eventstream.NewEncoder().
		AddHeader(eventstream.Header{Name: ":message-type", Type: eventstream.String, Str: "request"}).
		AddHeader(eventstream.Header{Name: ":correlation-id", Type: eventstream.Int64, Int64: 42}).
		AddHeader(eventstream.Header{Name: ":method", Type: eventstream.String, Str: "echo"}).
		SetPayload([]byte("payload-bytes"))
	n, err := enc.EncodedLen()
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, n)
	got, err := enc.Encode(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != n {
		t.Fatalf("EncodedLen() = %d, Encode wrote %d", n, got)
	}
	return buf
}

func TestRoundTrip(t *testing.T) {
	buf := buildSample(t)
	msg, err := eventstream.Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(msg.Payload) != "payload-bytes" {
		t.Fatalf("payload = %q", msg.Payload)
	}
	h, ok := msg.Find(":method")
	if !ok || h.Str != "echo" {
		t.Fatalf(":method = %+v, %v", h, ok)
	}
	h, ok = msg.Find(":correlation-id")
	if !ok || h.Int64 != 42 {
		t.Fatalf(":correlation-id = %+v, %v", h, ok)
	}
}

func TestBitFlipFailsChecksum(t *testing.T) {
	buf := buildSample(t)
	for i := range buf {
		mutated := append([]byte(nil), buf...)
		mutated[i] ^= 0x01
		if _, err := eventstream.Decode(mutated); err == nil {
			t.Fatalf("bit flip at byte %d decoded without error", i)
		}
	}
}

func TestTruncatedNeverPanics(t *testing.T) {
	buf := buildSample(t)
	for i := 0; i <= len(buf); i++ {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("decode panicked on truncated input len=%d: %v", i, r)
				}
			}()
			_, _ = eventstream.Decode(buf[:i])
		}()
	}
}

func TestRandomBytesNeverPanic(t *testing.T) {
	garbage := [][]byte{
		nil,
		{0},
		make([]byte, 16),
		{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	}
	for _, g := range garbage {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("decode panicked on %x: %v", g, r)
				}
			}()
			_, _ = eventstream.Decode(g)
		}()
	}
}

func TestEncodeNoSpace(t *testing.T) {
	enc := eventstream.NewEncoder().SetPayload([]byte("hello"))
	_, err := enc.Encode(make([]byte, 4))
	if err != eventstream.ErrNoSpace {
		t.Fatalf("expected ErrNoSpace, got %v", err)
	}
}

func TestHeaderIterExhaustion(t *testing.T) {
	buf := buildSample(t)
	msg, err := eventstream.Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	it := msg.Headers()
	count := 0
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		count++
	}
	if count != 3 {
		t.Fatalf("expected 3 headers, got %d", count)
	}
	if _, ok := it.Next(); ok {
		t.Fatalf("iterator should be exhausted")
	}
}
