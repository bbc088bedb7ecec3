// Package memsys provides a fixed-capacity bump (arena) allocator: the
// allocator every Object in package object is carried in. Grounded on
// the teacher's scatter-gather slab-allocator idiom (a fixed backing
// buffer handed out at increasing offsets, released only in bulk) —
// simplified here from a pooled multi-slab system down to the single
// fixed arena the spec calls for, since this core targets devices
// without virtual memory and therefore never grows a backing store.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package memsys

import (
	"errors"

	"github.com/aws-greengrass-lite/corebus/cmn/debug"
)

// ErrOutOfMemory is returned by Alloc when the arena cannot satisfy a
// request; the arena is left exactly as it was (no partial commit).
var ErrOutOfMemory = errors.New("memsys: arena out of memory")

// ErrNesting is returned by parsers (package object) when a value tree
// exceeds the maximum allowed nesting depth.
var ErrNesting = errors.New("memsys: object nesting depth exceeded")

// MaxDepth bounds Object nesting (§4.1 invariant i).
const MaxDepth = 15

// Arena is a single fixed-size bump allocator. It never frees
// individual allocations; the owner resets or abandons it as a whole.
// Arena is not safe for concurrent use — ownership of a message and its
// arena transfers by value, never shared across goroutines (§5).
type Arena struct {
	buf  []byte
	woff int
}

// NewArena wraps a caller-provided buffer. The buffer's capacity is the
// arena's entire lifetime budget; NewArena never allocates more memory.
func NewArena(buf []byte) *Arena {
	return &Arena{buf: buf}
}

// Cap reports the arena's total capacity in bytes.
func (a *Arena) Cap() int { return len(a.buf) }

// Used reports the high-water mark.
func (a *Arena) Used() int { return a.woff }

// Reset releases all allocations made from the arena in bulk. The
// caller must have already dropped every Object that borrowed from it
// (§4.1 invariant iii) — Reset performs no dynamic check, matching the
// spec's "enforced by scoping, not dynamic checks".
func (a *Arena) Reset() { a.woff = 0 }

// Alloc rounds the current offset up to align (which must be a power of
// two) and returns a slice of size bytes backed by the arena, or
// ErrOutOfMemory if it does not fit. On failure the arena's state is
// unchanged.
func (a *Arena) Alloc(size, align int) ([]byte, error) {
	debug.Assert(align > 0 && align&(align-1) == 0, "alignment must be a power of two")
	start := alignUp(a.woff, align)
	end := start + size
	if end > len(a.buf) || end < start { // end < start guards int overflow
		return nil, ErrOutOfMemory
	}
	a.woff = end
	return a.buf[start:end:end], nil
}

// AllocBytes is a convenience for the common case of copying bytes
// into the arena (e.g. a decoded Buffer that must outlive its source).
func (a *Arena) AllocBytes(src []byte) ([]byte, error) {
	dst, err := a.Alloc(len(src), 1)
	if err != nil {
		return nil, err
	}
	copy(dst, src)
	return dst, nil
}

func alignUp(off, align int) int {
	return (off + align - 1) &^ (align - 1)
}
