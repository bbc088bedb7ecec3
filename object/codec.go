// Canonical Object wire encoding: MessagePack, via the teacher's own
// `tinylib/msgp` dependency used here as a hand-driven TLV writer/reader
// rather than through its usual code-generation path, since Object is a
// dynamic tagged union and not a fixed struct. This resolves SPEC_FULL
// §3/§6's Open Question: the payload of every core-bus frame (and any
// nested value within it) is encoded exactly this way, recursively.
//
// Every Buf and every map key is copied into the caller-supplied arena.
// The backing arrays of List and Map values are allocated on the Go
// heap, not in the arena; their size is charged to the arena first, so
// the arena's capacity still bounds what one Decode may allocate.
// msgp's zero-copy `ReadXxxZC` readers avoid an
// extra intermediate allocation: they hand back a subslice of the wire
// buffer, which is immediately copied once into the arena.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package object

import (
	"fmt"
	"unsafe"

	"github.com/tinylib/msgp/msgp"

	"github.com/aws-greengrass-lite/corebus/memsys"
)

// Encode appends the MessagePack encoding of o to dst and returns the
// extended slice.
func Encode(dst []byte, o Object) []byte {
	switch o.Kind {
	case KindNull:
		return msgp.AppendNil(dst)
	case KindBool:
		return msgp.AppendBool(dst, o.B)
	case KindI64:
		return msgp.AppendInt64(dst, o.I)
	case KindF64:
		return msgp.AppendFloat64(dst, o.F)
	case KindBuf:
		return msgp.AppendBytes(dst, o.Buf)
	case KindList:
		dst = msgp.AppendArrayHeader(dst, uint32(len(o.List)))
		for _, e := range o.List {
			dst = Encode(dst, e)
		}
		return dst
	case KindMap:
		dst = msgp.AppendMapHeader(dst, uint32(len(o.Map)))
		for _, e := range o.Map {
			dst = msgp.AppendBytes(dst, e.Key)
			dst = Encode(dst, e.Val)
		}
		return dst
	default:
		panic(fmt.Sprintf("object: encode: unknown kind %d", o.Kind))
	}
}

// Decode parses one Object (and everything it nests) out of buf,
// borrowing all backing memory from arena, and returns the unconsumed
// remainder of buf. Returns memsys.ErrNesting if depth exceeds
// memsys.MaxDepth, memsys.ErrOutOfMemory if the arena is exhausted, or a
// decode error for malformed MessagePack.
func Decode(arena *memsys.Arena, buf []byte) (Object, []byte, error) {
	return decode(arena, buf, 1)
}

func decode(arena *memsys.Arena, buf []byte, depth int) (Object, []byte, error) {
	if depth > memsys.MaxDepth {
		return Object{}, nil, memsys.ErrNesting
	}
	typ, err := msgp.NextType(buf)
	if err != nil {
		return Object{}, nil, err
	}
	switch typ {
	case msgp.NilType:
		rest, err := msgp.ReadNilBytes(buf)
		return Null(), rest, err
	case msgp.BoolType:
		v, rest, err := msgp.ReadBoolBytes(buf)
		return Bool(v), rest, err
	case msgp.IntType, msgp.UintType:
		v, rest, err := msgp.ReadInt64Bytes(buf)
		return I64(v), rest, err
	case msgp.Float64Type, msgp.Float32Type:
		v, rest, err := msgp.ReadFloat64Bytes(buf)
		return F64(v), rest, err
	case msgp.BinType, msgp.StrType:
		return decodeBuf(arena, buf)
	case msgp.ArrayType:
		return decodeList(arena, buf, depth)
	case msgp.MapType:
		return decodeMap(arena, buf, depth)
	default:
		return Object{}, nil, fmt.Errorf("object: unsupported msgpack type %v", typ)
	}
}

func decodeBuf(arena *memsys.Arena, buf []byte) (Object, []byte, error) {
	zc, rest, err := msgp.ReadBytesZC(buf)
	if err != nil {
		return Object{}, nil, err
	}
	b, err := arena.AllocBytes(zc)
	if err != nil {
		return Object{}, nil, err
	}
	return Buf(b), rest, nil
}

func decodeList(arena *memsys.Arena, buf []byte, depth int) (Object, []byte, error) {
	sz, rest, err := msgp.ReadArrayHeaderBytes(buf)
	if err != nil {
		return Object{}, nil, err
	}
	list, err := allocObjects(arena, int(sz))
	if err != nil {
		return Object{}, nil, err
	}
	for i := range list {
		var elem Object
		elem, rest, err = decode(arena, rest, depth+1)
		if err != nil {
			return Object{}, nil, err
		}
		list[i] = elem
	}
	return List(list), rest, nil
}

func decodeMap(arena *memsys.Arena, buf []byte, depth int) (Object, []byte, error) {
	sz, rest, err := msgp.ReadMapHeaderBytes(buf)
	if err != nil {
		return Object{}, nil, err
	}
	entries, err := allocEntries(arena, int(sz))
	if err != nil {
		return Object{}, nil, err
	}
	for i := range entries {
		// keys are always written via AppendBytes (bin type) by Encode
		keyZC, r2, err := msgp.ReadBytesZC(rest)
		if err != nil {
			return Object{}, nil, err
		}
		key, err := arena.AllocBytes(keyZC)
		if err != nil {
			return Object{}, nil, err
		}
		var val Object
		val, rest, err = decode(arena, r2, depth+1)
		if err != nil {
			return Object{}, nil, err
		}
		entries[i] = MapEntry{Key: key, Val: val}
	}
	return MkMap(entries), rest, nil
}

// allocObjects/allocEntries allocate a List's or Map's backing array on
// the Go heap, after charging its size to the arena; every nested Buf
// and map key is still copied into the arena by the decoders above.
func allocObjects(arena *memsys.Arena, n int) ([]Object, error) {
	if n == 0 {
		return nil, nil
	}
	// charge the arena first so a pathologically large array header
	// fails with ErrOutOfMemory instead of exceeding the arena's budget.
	if _, err := arena.Alloc(n*int(unsafe.Sizeof(Object{})), 8); err != nil {
		return nil, err
	}
	return make([]Object, n), nil
}

func allocEntries(arena *memsys.Arena, n int) ([]MapEntry, error) {
	if n == 0 {
		return nil, nil
	}
	if _, err := arena.Alloc(n*int(unsafe.Sizeof(MapEntry{})), 8); err != nil {
		return nil, err
	}
	return make([]MapEntry, n), nil
}
