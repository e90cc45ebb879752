// Package translate implements the Translation Layer (C4): the
// coercion rule table that bridges small type mismatches between a
// producer's declared output type and a subscriber's declared input
// type, plus an LRU-memoised strategy dispatcher for the hot path.
package translate

import (
	"fmt"
	"unicode/utf8"

	"github.com/flowmesh-dev/flowmesh/internal/typeexpr"
)

// Failure is returned when a payload cannot be coerced from src to dst.
type Failure struct {
	Src    string
	Dst    string
	Reason string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("translation failure: %s -> %s: %s", f.Src, f.Dst, f.Reason)
}

// strategy is a pre-selected coercion function for one (src, dst) pair.
type strategy func(v any) (any, error)

// Compatible implements the static compatibility relation of spec §4.4:
// T_out is compatible with T_in iff (1) T_in = any, (2) T_out
// structurally equals T_in, (3) a coercion rule covers (T_out, T_in),
// or (4) T_in is a union containing a type for which (1)-(3) holds.
func Compatible(out, in *typeexpr.Expr) bool {
	if in.Kind == typeexpr.KindPrimitive && in.Name == typeexpr.Any {
		return true
	}
	if out.Equal(in) {
		return true
	}
	if resolve(out, in) != nil {
		return true
	}
	if in.Kind == typeexpr.KindUnion {
		for _, member := range in.Items {
			if Compatible(out, member) {
				return true
			}
		}
	}
	return false
}

// resolve returns the coercion strategy for (out, in), or nil if the
// pair is not directly covered by a rule (identity and union-membership
// are handled separately by Compatible/Translate).
func resolve(out, in *typeexpr.Expr) strategy {
	// T -> any: identity.
	if in.Kind == typeexpr.KindPrimitive && in.Name == typeexpr.Any {
		return func(v any) (any, error) { return v, nil }
	}

	// numeric widening: int -> float.
	if isPrimitive(out, typeexpr.Int) && isPrimitive(in, typeexpr.Float) {
		return func(v any) (any, error) {
			switch n := v.(type) {
			case int:
				return float64(n), nil
			case int64:
				return float64(n), nil
			case float64:
				return n, nil
			default:
				return nil, fmt.Errorf("value is not an int: %T", v)
			}
		}
	}

	// str -> bytes, bytes -> str.
	if isPrimitive(out, typeexpr.Str) && isPrimitive(in, typeexpr.Bytes) {
		return func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("value is not a str: %T", v)
			}
			return []byte(s), nil
		}
	}
	if isPrimitive(out, typeexpr.Bytes) && isPrimitive(in, typeexpr.Str) {
		return func(v any) (any, error) {
			b, ok := v.([]byte)
			if !ok {
				return nil, fmt.Errorf("value is not bytes: %T", v)
			}
			if !utf8.Valid(b) {
				return nil, fmt.Errorf("bytes are not valid UTF-8")
			}
			return string(b), nil
		}
	}

	// T -> list<T>, T -> set<T>: wrap-singleton.
	if in.Kind == typeexpr.KindList && out.Equal(in.Elem) {
		return func(v any) (any, error) { return []any{v}, nil }
	}
	if in.Kind == typeexpr.KindSet && out.Equal(in.Elem) {
		return func(v any) (any, error) { return newOrderedSet([]any{v}), nil }
	}

	// list<T> -> set<T>, set<T> -> list<T>: re-container.
	if out.Kind == typeexpr.KindList && in.Kind == typeexpr.KindSet && out.Elem.Equal(in.Elem) {
		return func(v any) (any, error) {
			items, ok := v.([]any)
			if !ok {
				return nil, fmt.Errorf("value is not a list: %T", v)
			}
			return newOrderedSet(items), nil
		}
	}
	if out.Kind == typeexpr.KindSet && in.Kind == typeexpr.KindList && out.Elem.Equal(in.Elem) {
		return func(v any) (any, error) {
			set, ok := v.(*OrderedSet)
			if !ok {
				return nil, fmt.Errorf("value is not a set: %T", v)
			}
			return append([]any(nil), set.items...), nil
		}
	}

	// dict<K,V> -> list<tuple<K,V>>.
	if out.Kind == typeexpr.KindDict && in.Kind == typeexpr.KindList &&
		in.Elem.Kind == typeexpr.KindTuple && len(in.Elem.Items) == 2 &&
		out.Key.Equal(in.Elem.Items[0]) && out.Value.Equal(in.Elem.Items[1]) {
		return func(v any) (any, error) {
			d, ok := v.(*OrderedDict)
			if !ok {
				return nil, fmt.Errorf("value is not a dict: %T", v)
			}
			out := make([]any, 0, len(d.keys))
			for _, k := range d.keys {
				out = append(out, [2]any{k, d.values[k]})
			}
			return out, nil
		}
	}

	// tuple<T,...,T> -> list<T> when all elements share type T.
	if out.Kind == typeexpr.KindTuple && in.Kind == typeexpr.KindList && tupleHomogeneous(out, in.Elem) {
		return func(v any) (any, error) {
			items, ok := v.([]any)
			if !ok {
				return nil, fmt.Errorf("value is not a tuple: %T", v)
			}
			return append([]any(nil), items...), nil
		}
	}

	// list<T> -> list<U> when T -> U is coercible (element-wise).
	if out.Kind == typeexpr.KindList && in.Kind == typeexpr.KindList {
		if elemStrategy := elementStrategy(out.Elem, in.Elem); elemStrategy != nil {
			return func(v any) (any, error) {
				items, ok := v.([]any)
				if !ok {
					return nil, fmt.Errorf("value is not a list: %T", v)
				}
				result := make([]any, len(items))
				for i, item := range items {
					translated, err := elemStrategy(item)
					if err != nil {
						return nil, fmt.Errorf("element %d: %w", i, err)
					}
					result[i] = translated
				}
				return result, nil
			}
		}
	}

	return nil
}

// elementStrategy returns identity for equal element types, or a
// resolved coercion, never nil when elements structurally match.
func elementStrategy(out, in *typeexpr.Expr) strategy {
	if out.Equal(in) {
		return func(v any) (any, error) { return v, nil }
	}
	return resolve(out, in)
}

func tupleHomogeneous(t *typeexpr.Expr, elem *typeexpr.Expr) bool {
	if len(t.Items) == 0 {
		return false
	}
	for _, it := range t.Items {
		if !it.Equal(elem) {
			return false
		}
	}
	return true
}

func isPrimitive(e *typeexpr.Expr, name string) bool {
	return e.Kind == typeexpr.KindPrimitive && e.Name == name
}

// Translate coerces v, declared as src, into dst. It consults the
// caller-supplied cache first; on a cache miss it resolves a strategy
// and memoises it. optional<T> destinations accept either a value of
// the unwrapped member type, or null (nil).
func Translate(cache *Cache, v any, src, dst *typeexpr.Expr) (any, error) {
	if dst.Kind == typeexpr.KindPrimitive && dst.Name == typeexpr.Any {
		return v, nil
	}
	// A value declared any still carries its original runtime value, so
	// any -> T passes it through unchanged and T -> any -> T round-trips.
	if src.Kind == typeexpr.KindPrimitive && src.Name == typeexpr.Any {
		return v, nil
	}
	if src.Equal(dst) {
		return v, nil
	}
	if members, isOptional := dst.IsOptional(); isOptional {
		if v == nil {
			return nil, nil
		}
		for _, m := range members {
			if out, err := Translate(cache, v, src, m); err == nil {
				return out, nil
			}
		}
		return nil, &Failure{Src: src.String(), Dst: dst.String(), Reason: "value satisfies no member of the optional union"}
	}
	if dst.Kind == typeexpr.KindUnion {
		for _, m := range dst.Items {
			if out, err := Translate(cache, v, src, m); err == nil {
				return out, nil
			}
		}
		return nil, &Failure{Src: src.String(), Dst: dst.String(), Reason: "value satisfies no member of the union"}
	}

	key := CacheKey{Src: src.String(), Dst: dst.String()}
	strat, ok := cache.Get(key)
	if !ok {
		strat = resolve(src, dst)
		if strat == nil {
			return nil, &Failure{Src: src.String(), Dst: dst.String(), Reason: "no coercion rule covers this pair"}
		}
		cache.Put(key, strat)
	}
	out, err := strat(v)
	if err != nil {
		return nil, &Failure{Src: src.String(), Dst: dst.String(), Reason: err.Error()}
	}
	return out, nil
}

// OrderedSet preserves insertion order of first occurrence, matching
// the spec's deterministic set<->list re-containing rule.
type OrderedSet struct {
	items []any
	seen  map[any]struct{}
}

func newOrderedSet(items []any) *OrderedSet {
	s := &OrderedSet{seen: make(map[any]struct{}, len(items))}
	for _, it := range items {
		s.Add(it)
	}
	return s
}

// Add inserts v if not already present, preserving first-seen order.
func (s *OrderedSet) Add(v any) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

// Items returns the set members in insertion order.
func (s *OrderedSet) Items() []any { return append([]any(nil), s.items...) }

// OrderedDict preserves deterministic (insertion-order) iteration for
// the dict<K,V> -> list<tuple<K,V>> coercion.
type OrderedDict struct {
	keys   []any
	values map[any]any
}

// NewOrderedDict builds an OrderedDict from key/value pairs in order.
func NewOrderedDict(pairs [][2]any) *OrderedDict {
	d := &OrderedDict{values: make(map[any]any, len(pairs))}
	for _, p := range pairs {
		d.Set(p[0], p[1])
	}
	return d
}

// Set inserts or updates a key, preserving first-insertion order.
func (d *OrderedDict) Set(k, v any) {
	if _, ok := d.values[k]; !ok {
		d.keys = append(d.keys, k)
	}
	d.values[k] = v
}
