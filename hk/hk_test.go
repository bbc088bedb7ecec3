package hk_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws-greengrass-lite/corebus/hk"
)

func TestRegRunsAfterInterval(t *testing.T) {
	h := hk.New()
	go h.Run()
	defer h.Stop()
	h.WaitStarted()

	var n int32
	h.Reg("probe", func() time.Duration {
		atomic.AddInt32(&n, 1)
		return 0
	}, 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&n) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if atomic.LoadInt32(&n) == 0 {
		t.Fatal("callback never ran")
	}
}

func TestRegReschedulesUntilZero(t *testing.T) {
	h := hk.New()
	go h.Run()
	defer h.Stop()
	h.WaitStarted()

	var n int32
	h.Reg("repeat", func() time.Duration {
		v := atomic.AddInt32(&n, 1)
		if v >= 3 {
			return 0
		}
		return 10 * time.Millisecond
	}, 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&n) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if atomic.LoadInt32(&n) < 3 {
		t.Fatalf("expected >= 3 runs, got %d", n)
	}
}

func TestUnregCancels(t *testing.T) {
	h := hk.New()
	go h.Run()
	defer h.Stop()
	h.WaitStarted()

	var n int32
	h.Reg("cancel-me", func() time.Duration {
		atomic.AddInt32(&n, 1)
		return 10 * time.Millisecond
	}, 10*time.Millisecond)
	h.Unreg("cancel-me")

	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&n) != 0 {
		t.Fatalf("expected unregistered callback to never run, ran %d times", n)
	}
}
