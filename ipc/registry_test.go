package ipc_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/aws-greengrass-lite/corebus/ipc"
)

func fakeEntropy(seed byte) func([]byte) error {
	n := seed
	return func(b []byte) error {
		for i := range b {
			n++
			b[i] = n
		}
		return nil
	}
}

func TestRegisterIsIdempotentByName(t *testing.T) {
	r := ipc.New(4, fakeEntropy(0))
	h1, tok1, err := r.Register("com.example.A")
	if err != nil {
		t.Fatal(err)
	}
	h2, tok2, err := r.Register("com.example.A")
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 || tok1 != tok2 {
		t.Fatalf("register not idempotent: (%v,%v) vs (%v,%v)", h1, tok1, h2, tok2)
	}
}

func TestRegisterAssignsDistinctHandles(t *testing.T) {
	r := ipc.New(4, fakeEntropy(0))
	h1, _, _ := r.Register("a")
	h2, _, _ := r.Register("b")
	if h1 == h2 {
		t.Fatalf("expected distinct handles, got %v == %v", h1, h2)
	}
	if h1 == ipc.Unauthenticated || h2 == ipc.Unauthenticated {
		t.Fatalf("handle 0 must never be assigned to a real component")
	}
}

func TestRegisterCapacityExceeded(t *testing.T) {
	r := ipc.New(2, fakeEntropy(0))
	if _, _, err := r.Register("a"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.Register("b"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.Register("c"); err != ipc.ErrCapacityExceeded {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestLookupHandleUnknownSVCUID(t *testing.T) {
	r := ipc.New(4, fakeEntropy(0))
	r.Register("a")
	var bogus ipc.SVCUID
	if _, err := r.LookupHandle(bogus); err != ipc.ErrNotAuthenticated {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestLookupHandleRoundTrip(t *testing.T) {
	r := ipc.New(4, fakeEntropy(0))
	h, tok, err := r.Register("a")
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.LookupHandle(tok)
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Fatalf("lookup_handle = %v, want %v", got, h)
	}
}

func TestNameOfStableAfterMoreRegistrations(t *testing.T) {
	r := ipc.New(4, fakeEntropy(0))
	h, _, _ := r.Register("a")
	r.Register("b")
	r.Register("c")
	name, ok := r.NameOf(h)
	if !ok || name != "a" {
		t.Fatalf("name_of(%v) = %q, %v", h, name, ok)
	}
}

func TestRegisterConcurrentDistinctNames(t *testing.T) {
	r := ipc.New(50, fakeEntropy(0))
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register(fmt.Sprintf("component-%d", i))
		}()
	}
	wg.Wait()
	if r.Len() != 32 {
		t.Fatalf("expected 32 distinct entries, got %d", r.Len())
	}
}
