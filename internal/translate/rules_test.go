package translate

import (
	"testing"

	"github.com/flowmesh-dev/flowmesh/internal/typeexpr"
)

func TestCompatibleIdentityAndAny(t *testing.T) {
	intT := typeexpr.MustParse("int")
	anyT := typeexpr.MustParse("any")
	if !Compatible(intT, anyT) {
		t.Fatalf("T -> any must be compatible")
	}
	if !Compatible(intT, intT) {
		t.Fatalf("T -> T must be compatible (structural equality)")
	}
}

func TestCompatibleNumericWidening(t *testing.T) {
	intT := typeexpr.MustParse("int")
	floatT := typeexpr.MustParse("float")
	if !Compatible(intT, floatT) {
		t.Fatalf("int -> float must be compatible")
	}
	if Compatible(floatT, intT) {
		t.Fatalf("float -> int must not be compatible (narrowing not a rule)")
	}
}

func TestCompatibleOptionalUnion(t *testing.T) {
	intT := typeexpr.MustParse("int")
	optFloat := typeexpr.MustParse("optional<float>")
	if !Compatible(intT, optFloat) {
		t.Fatalf("int -> optional<float> should hold via int->float coercion inside the union")
	}
}

func TestTranslateIntToFloat(t *testing.T) {
	cache := NewCache(4)
	out, err := Translate(cache, 3, typeexpr.MustParse("int"), typeexpr.MustParse("float"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f, ok := out.(float64); !ok || f != 3.0 {
		t.Fatalf("got %#v, want float64(3)", out)
	}
}

func TestTranslateStrBytesRoundTrip(t *testing.T) {
	cache := NewCache(4)
	b, err := Translate(cache, "hello", typeexpr.MustParse("str"), typeexpr.MustParse("bytes"))
	if err != nil {
		t.Fatalf("str->bytes: %v", err)
	}
	s, err := Translate(cache, b, typeexpr.MustParse("bytes"), typeexpr.MustParse("str"))
	if err != nil {
		t.Fatalf("bytes->str: %v", err)
	}
	if s != "hello" {
		t.Fatalf("got %v, want hello", s)
	}
}

func TestTranslateBytesInvalidUTF8(t *testing.T) {
	cache := NewCache(4)
	_, err := Translate(cache, []byte{0xff, 0xfe}, typeexpr.MustParse("bytes"), typeexpr.MustParse("str"))
	if err == nil {
		t.Fatalf("expected TranslationFailure for invalid UTF-8")
	}
	if _, ok := err.(*Failure); !ok {
		t.Fatalf("expected *Failure, got %T", err)
	}
}

func TestTranslateWrapSingleton(t *testing.T) {
	cache := NewCache(4)
	out, err := Translate(cache, 7, typeexpr.MustParse("int"), typeexpr.MustParse("list<int>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, ok := out.([]any)
	if !ok || len(list) != 1 || list[0] != 7 {
		t.Fatalf("got %#v, want [7]", out)
	}
}

func TestTranslateListToSetOrdering(t *testing.T) {
	cache := NewCache(4)
	out, err := Translate(cache, []any{1, 2, 1, 3}, typeexpr.MustParse("list<int>"), typeexpr.MustParse("set<int>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	set, ok := out.(*OrderedSet)
	if !ok {
		t.Fatalf("got %T, want *OrderedSet", out)
	}
	items := set.Items()
	want := []any{1, 2, 3}
	if len(items) != len(want) {
		t.Fatalf("got %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("got %v, want %v", items, want)
		}
	}
}

func TestTranslateListElementWise(t *testing.T) {
	cache := NewCache(4)
	out, err := Translate(cache, []any{1, 2, 3}, typeexpr.MustParse("list<int>"), typeexpr.MustParse("list<float>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list := out.([]any)
	for i, v := range list {
		if f, ok := v.(float64); !ok || f != float64(i+1) {
			t.Fatalf("element %d = %#v", i, v)
		}
	}
}

func TestTranslateNoRuleFails(t *testing.T) {
	cache := NewCache(4)
	_, err := Translate(cache, "not-an-int", typeexpr.MustParse("str"), typeexpr.MustParse("int"))
	if err == nil {
		t.Fatalf("expected failure for str -> int (no rule)")
	}
	var failure *Failure
	if f, ok := err.(*Failure); ok {
		failure = f
	} else {
		t.Fatalf("expected *Failure, got %T", err)
	}
	if failure.Src != "str" || failure.Dst != "int" {
		t.Fatalf("unexpected failure: %+v", failure)
	}
}

func TestTranslateAnyAcceptsEverything(t *testing.T) {
	cache := NewCache(4)
	out, err := Translate(cache, "not-an-int", typeexpr.MustParse("str"), typeexpr.MustParse("any"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "not-an-int" {
		t.Fatalf("got %v", out)
	}
}

func TestTranslateOptionalAcceptsNil(t *testing.T) {
	cache := NewCache(4)
	out, err := Translate(cache, nil, typeexpr.MustParse("int"), typeexpr.MustParse("optional<int>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Fatalf("got %v, want nil", out)
	}
}

func TestTranslateAnyToAnyRoundTrip(t *testing.T) {
	// Translating v : T -> any -> T yields a value equal to v.
	cache := NewCache(4)
	v := 42
	intT := typeexpr.MustParse("int")
	anyT := typeexpr.MustParse("any")
	mid, err := Translate(cache, v, intT, anyT)
	if err != nil {
		t.Fatalf("T->any: %v", err)
	}
	back, err := Translate(cache, mid, anyT, intT)
	if err != nil {
		t.Fatalf("any->T: %v", err)
	}
	if back != v {
		t.Fatalf("round trip got %v, want %v", back, v)
	}
}

func TestCacheLRUEviction(t *testing.T) {
	cache := NewCache(2)
	cache.Put(CacheKey{Src: "a", Dst: "b"}, func(v any) (any, error) { return v, nil })
	cache.Put(CacheKey{Src: "c", Dst: "d"}, func(v any) (any, error) { return v, nil })
	// touch "a.b" so "c.d" becomes least-recently-used
	cache.Get(CacheKey{Src: "a", Dst: "b"})
	cache.Put(CacheKey{Src: "e", Dst: "f"}, func(v any) (any, error) { return v, nil })

	if _, ok := cache.Get(CacheKey{Src: "c", Dst: "d"}); ok {
		t.Fatalf("expected c->d to have been evicted")
	}
	if _, ok := cache.Get(CacheKey{Src: "a", Dst: "b"}); !ok {
		t.Fatalf("expected a->b to remain cached")
	}
	if cache.Len() != 2 {
		t.Fatalf("cache len = %d, want 2", cache.Len())
	}
}

func TestDictToListOfTuples(t *testing.T) {
	cache := NewCache(4)
	d := NewOrderedDict([][2]any{{"a", 1}, {"b", 2}})
	out, err := Translate(cache, d, typeexpr.MustParse("dict<str,int>"), typeexpr.MustParse("list<tuple<str,int>>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list := out.([]any)
	if len(list) != 2 {
		t.Fatalf("got %d entries, want 2", len(list))
	}
	pair0 := list[0].([2]any)
	if pair0[0] != "a" || pair0[1] != 1 {
		t.Fatalf("unexpected first pair: %v", pair0)
	}
}
