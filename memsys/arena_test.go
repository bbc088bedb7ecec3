package memsys_test

import (
	"testing"

	"github.com/aws-greengrass-lite/corebus/memsys"
)

func TestAllocNonOverlappingAligned(t *testing.T) {
	a := memsys.NewArena(make([]byte, 64))

	b1, err := a.Alloc(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := a.Alloc(8, 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(b1) != 3 || len(b2) != 8 {
		t.Fatalf("unexpected lengths %d %d", len(b1), len(b2))
	}
	// b2 must start at an 8-byte boundary strictly after b1
	off := a.Used() - 8
	if off%8 != 0 {
		t.Fatalf("b2 not 8-byte aligned, used=%d", a.Used())
	}
	// writing into b1 must not clobber b2
	for i := range b1 {
		b1[i] = 0xAA
	}
	for _, c := range b2 {
		if c == 0xAA {
			t.Fatalf("allocations overlap")
		}
	}
}

func TestAllocOutOfMemoryLeavesStateUnchanged(t *testing.T) {
	a := memsys.NewArena(make([]byte, 16))
	if _, err := a.Alloc(10, 1); err != nil {
		t.Fatal(err)
	}
	used := a.Used()
	if _, err := a.Alloc(10, 1); err != memsys.ErrOutOfMemory {
		t.Fatalf("expected ErrOutOfMemory, got %v", err)
	}
	if a.Used() != used {
		t.Fatalf("arena state changed on failed alloc: %d != %d", a.Used(), used)
	}
}

func TestResetReclaimsSpace(t *testing.T) {
	a := memsys.NewArena(make([]byte, 16))
	if _, err := a.Alloc(16, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Alloc(1, 1); err != memsys.ErrOutOfMemory {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	a.Reset()
	if b, err := a.Alloc(16, 1); err != nil || len(b) != 16 {
		t.Fatalf("expected fresh allocation after reset, got %v %v", b, err)
	}
}

func TestAllocAlignment(t *testing.T) {
	a := memsys.NewArena(make([]byte, 128))
	if _, err := a.Alloc(1, 1); err != nil {
		t.Fatal(err)
	}
	for _, align := range []int{2, 4, 8, 16} {
		b, err := a.Alloc(align, align)
		if err != nil {
			t.Fatal(err)
		}
		_ = b
		used := a.Used()
		if used%align != 0 {
			t.Fatalf("offset %d not aligned to %d", used, align)
		}
	}
}
