package object_test

import (
	"testing"

	"github.com/aws-greengrass-lite/corebus/memsys"
	"github.com/aws-greengrass-lite/corebus/object"
)

func roundTrip(t *testing.T, o object.Object) object.Object {
	t.Helper()
	buf := object.Encode(nil, o)
	arena := memsys.NewArena(make([]byte, 4096))
	got, rest, err := object.Decode(arena, buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("unconsumed bytes: %d", len(rest))
	}
	return got
}

func TestRoundTripScalars(t *testing.T) {
	cases := []object.Object{
		object.Null(),
		object.Bool(true),
		object.Bool(false),
		object.I64(-12345),
		object.F64(3.5),
		object.Buf(object.Buffer("hello")),
	}
	for _, c := range cases {
		got := roundTrip(t, c)
		if got.Kind != c.Kind {
			t.Fatalf("kind mismatch: %v != %v", got.Kind, c.Kind)
		}
	}
}

func TestRoundTripNestedMapAndList(t *testing.T) {
	o := object.MkMap([]object.MapEntry{
		{Key: object.Buffer("ping"), Val: object.Buf(object.Buffer("hi"))},
		{Key: object.Buffer("nums"), Val: object.List([]object.Object{
			object.I64(1), object.I64(2), object.I64(3),
		})},
	})
	got := roundTrip(t, o)
	if got.Kind != object.KindMap || len(got.Map) != 2 {
		t.Fatalf("unexpected decoded map: %+v", got)
	}
	v, ok := object.MapGet(got.Map, object.Buffer("ping"))
	if !ok || string(v.Buf) != "hi" {
		t.Fatalf("map_get(ping) = %v, %v", v, ok)
	}
	nums, ok := object.MapGet(got.Map, object.Buffer("nums"))
	if !ok || len(nums.List) != 3 {
		t.Fatalf("map_get(nums) = %v, %v", nums, ok)
	}
}

func TestDepthExceededFails(t *testing.T) {
	arena := memsys.NewArena(make([]byte, 8192))
	leaf := object.I64(1)
	for i := 0; i < memsys.MaxDepth+2; i++ {
		leaf = object.List([]object.Object{leaf})
	}
	buf := object.Encode(nil, leaf)
	_, _, err := object.Decode(arena, buf)
	if err != memsys.ErrNesting {
		t.Fatalf("expected ErrNesting, got %v", err)
	}
}

func TestMapGetFirstMatchWins(t *testing.T) {
	m := []object.MapEntry{
		{Key: object.Buffer("k"), Val: object.I64(1)},
		{Key: object.Buffer("k"), Val: object.I64(2)},
	}
	v, ok := object.MapGet(m, object.Buffer("k"))
	if !ok || v.I != 1 {
		t.Fatalf("expected first match (1), got %v", v)
	}
}

func TestArenaResetLeaksNoBytesAcrossCalls(t *testing.T) {
	buf := object.Encode(nil, object.MkMap([]object.MapEntry{
		{Key: object.Buffer("ping"), Val: object.Buf(object.Buffer("hi"))},
	}))
	arena := memsys.NewArena(make([]byte, 256))

	if _, _, err := object.Decode(arena, buf); err != nil {
		t.Fatal(err)
	}
	used1 := arena.Used()
	arena.Reset()
	if arena.Used() != 0 {
		t.Fatalf("reset did not zero high-water mark")
	}
	if _, _, err := object.Decode(arena, buf); err != nil {
		t.Fatal(err)
	}
	if arena.Used() != used1 {
		t.Fatalf("second decode used different space: %d != %d", arena.Used(), used1)
	}
}
