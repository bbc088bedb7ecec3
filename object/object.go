// Package object implements the self-describing value tree ("Object")
// carried as the payload of every core-bus frame: a tagged union over
// Null/Bool/I64/F64/Buf/List/Map, parsed directly out of an arena
// (package memsys) rather than the Go heap — the property that keeps
// this core usable on devices without virtual memory (see DESIGN NOTES
// in SPEC_FULL.md: "allocator as a capability, not a global").
//
// Grounded on the teacher's tagged-type-in-struct convention (see e.g.
// cmn/objattrs.go's enum-plus-union style) generalized here to a true
// sum type via a Kind discriminant and per-kind accessor methods —
// matching SPEC_FULL §9's "tagged variant, not virtual dispatch" note.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package object

import "bytes"

// Kind discriminates the Object union.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindI64
	KindF64
	KindBuf
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindI64:
		return "i64"
	case KindF64:
		return "f64"
	case KindBuf:
		return "buf"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Buffer is a borrowed, never-owning byte slice. Equality is byte-wise.
type Buffer []byte

func (b Buffer) Equal(o Buffer) bool { return bytes.Equal(b, o) }
func (b Buffer) String() string      { return string(b) }

// MapEntry is one (key, value) pair of a Map. Keys are unique by
// byte-equality; a parser does not itself detect duplicates (spec
// §4.1: "a programming error but not detected").
type MapEntry struct {
	Key Buffer
	Val Object
}

// Object is the tagged union. Only the field matching Kind is valid;
// readers must switch on Kind rather than probe fields directly.
type Object struct {
	Kind Kind
	B    bool
	I    int64
	F    float64
	Buf  Buffer
	List []Object
	Map  []MapEntry
}

func Null() Object              { return Object{Kind: KindNull} }
func Bool(v bool) Object        { return Object{Kind: KindBool, B: v} }
func I64(v int64) Object        { return Object{Kind: KindI64, I: v} }
func F64(v float64) Object      { return Object{Kind: KindF64, F: v} }
func Buf(v Buffer) Object       { return Object{Kind: KindBuf, Buf: v} }
func List(v []Object) Object    { return Object{Kind: KindList, List: v} }
func MkMap(v []MapEntry) Object { return Object{Kind: KindMap, Map: v} }

// Depth reports the maximum nesting depth of o (a leaf is depth 1).
func (o Object) Depth() int {
	switch o.Kind {
	case KindList:
		max := 0
		for _, e := range o.List {
			if d := e.Depth(); d > max {
				max = d
			}
		}
		return max + 1
	case KindMap:
		max := 0
		for _, e := range o.Map {
			if d := e.Val.Depth(); d > max {
				max = d
			}
		}
		return max + 1
	default:
		return 1
	}
}

// MapGet performs the linear scan the spec mandates (designed for small
// maps, at most a few dozen entries): first match wins, no shortcut for
// duplicate keys.
func MapGet(m []MapEntry, key Buffer) (Object, bool) {
	for _, e := range m {
		if e.Key.Equal(key) {
			return e.Val, true
		}
	}
	return Object{}, false
}

// BufferEquals is the free-function form of Buffer.Equal, for raw
// []byte values that are not typed as Buffer.
func BufferEquals(a, b []byte) bool { return bytes.Equal(a, b) }
