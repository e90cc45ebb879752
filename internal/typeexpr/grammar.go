// Package typeexpr parses the declared-type grammar used in module
// manifests (str, int, float, bool, bytes, any, list<T>, set<T>,
// dict<K,V>, tuple<T1,...,Tn>, unions T1|T2|..., and optional<T>).
package typeexpr

import (
	"fmt"
	"strings"
)

// Kind identifies the shape of a parsed type expression.
type Kind int

const (
	KindPrimitive Kind = iota
	KindList
	KindSet
	KindDict
	KindTuple
	KindUnion
)

// Primitive names recognised by the grammar.
const (
	Str   = "str"
	Int   = "int"
	Float = "float"
	Bool  = "bool"
	Bytes = "bytes"
	Any   = "any"
	Null  = "null"
)

var primitives = map[string]struct{}{
	Str: {}, Int: {}, Float: {}, Bool: {}, Bytes: {}, Any: {}, Null: {},
}

// Expr is a parsed declared type expression.
type Expr struct {
	Kind  Kind
	Name  string  // primitive name, only set when Kind == KindPrimitive
	Elem  *Expr   // list<T>, set<T>
	Key   *Expr   // dict<K,V>
	Value *Expr   // dict<K,V>
	Items []*Expr // tuple<...>, union members (flattened)
}

// String renders the expression back to its manifest-grammar form.
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case KindPrimitive:
		return e.Name
	case KindList:
		return fmt.Sprintf("list<%s>", e.Elem.String())
	case KindSet:
		return fmt.Sprintf("set<%s>", e.Elem.String())
	case KindDict:
		return fmt.Sprintf("dict<%s,%s>", e.Key.String(), e.Value.String())
	case KindTuple:
		parts := make([]string, len(e.Items))
		for i, it := range e.Items {
			parts[i] = it.String()
		}
		return fmt.Sprintf("tuple<%s>", strings.Join(parts, ","))
	case KindUnion:
		parts := make([]string, len(e.Items))
		for i, it := range e.Items {
			parts[i] = it.String()
		}
		return strings.Join(parts, "|")
	}
	return "?"
}

// Equal reports structural equality between two type expressions.
func (e *Expr) Equal(other *Expr) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.Kind != other.Kind {
		return false
	}
	switch e.Kind {
	case KindPrimitive:
		return e.Name == other.Name
	case KindList, KindSet:
		return e.Elem.Equal(other.Elem)
	case KindDict:
		return e.Key.Equal(other.Key) && e.Value.Equal(other.Value)
	case KindTuple:
		if len(e.Items) != len(other.Items) {
			return false
		}
		for i := range e.Items {
			if !e.Items[i].Equal(other.Items[i]) {
				return false
			}
		}
		return true
	case KindUnion:
		if len(e.Items) != len(other.Items) {
			return false
		}
		// union member order is significant to manifest authors but not
		// to compatibility, so compare as a set.
		used := make([]bool, len(other.Items))
		for _, a := range e.Items {
			matched := false
			for i, b := range other.Items {
				if used[i] {
					continue
				}
				if a.Equal(b) {
					used[i] = true
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
		return true
	}
	return false
}

// Optional builds `T|null`, the canonical desugaring of optional<T>.
func Optional(t *Expr) *Expr {
	return &Expr{Kind: KindUnion, Items: []*Expr{t, {Kind: KindPrimitive, Name: Null}}}
}

// IsOptional reports whether e is a union containing null, and returns
// the non-null members.
func (e *Expr) IsOptional() (members []*Expr, ok bool) {
	if e == nil || e.Kind != KindUnion {
		return nil, false
	}
	hasNull := false
	for _, it := range e.Items {
		if it.Kind == KindPrimitive && it.Name == Null {
			hasNull = true
			continue
		}
		members = append(members, it)
	}
	return members, hasNull
}

// Parse parses a declared type expression string per the manifest grammar.
func Parse(s string) (*Expr, error) {
	p := &parser{s: strings.TrimSpace(s)}
	e, err := p.parseUnion()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, fmt.Errorf("typeexpr: unexpected trailing input %q in %q", p.s[p.pos:], s)
	}
	return e, nil
}

// MustParse panics on a malformed expression; used for built-in constants.
func MustParse(s string) *Expr {
	e, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return e
}

type parser struct {
	s   string
	pos int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.s) && p.s[p.pos] == ' ' {
		p.pos++
	}
}

// parseUnion := parseOptional ('|' parseOptional)*
func (p *parser) parseUnion() (*Expr, error) {
	first, err := p.parseAtomOrOptional()
	if err != nil {
		return nil, err
	}
	members := []*Expr{first}
	for {
		p.skipSpace()
		if p.pos < len(p.s) && p.s[p.pos] == '|' {
			p.pos++
			p.skipSpace()
			next, err := p.parseAtomOrOptional()
			if err != nil {
				return nil, err
			}
			members = append(members, next)
			continue
		}
		break
	}
	if len(members) == 1 {
		return members[0], nil
	}
	return flattenUnion(members), nil
}

func flattenUnion(members []*Expr) *Expr {
	var flat []*Expr
	for _, m := range members {
		if m.Kind == KindUnion {
			flat = append(flat, m.Items...)
		} else {
			flat = append(flat, m)
		}
	}
	return &Expr{Kind: KindUnion, Items: flat}
}

// parseAtomOrOptional handles optional<T> sugar, which desugars to T|null.
func (p *parser) parseAtomOrOptional() (*Expr, error) {
	name, ok := p.peekIdent()
	if ok && name == "optional" {
		p.consumeIdent()
		p.skipSpace()
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		inner, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		return Optional(inner), nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (*Expr, error) {
	name, ok := p.peekIdent()
	if !ok {
		return nil, fmt.Errorf("typeexpr: expected identifier at position %d in %q", p.pos, p.s)
	}
	p.consumeIdent()

	switch name {
	case "list", "set":
		p.skipSpace()
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		elem, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		kind := KindList
		if name == "set" {
			kind = KindSet
		}
		return &Expr{Kind: kind, Elem: elem}, nil
	case "dict":
		p.skipSpace()
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		key, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if err := p.expect(','); err != nil {
			return nil, err
		}
		p.skipSpace()
		val, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		return &Expr{Kind: KindDict, Key: key, Value: val}, nil
	case "tuple":
		p.skipSpace()
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		var items []*Expr
		for {
			p.skipSpace()
			item, err := p.parseUnion()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			p.skipSpace()
			if p.pos < len(p.s) && p.s[p.pos] == ',' {
				p.pos++
				continue
			}
			break
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		return &Expr{Kind: KindTuple, Items: items}, nil
	default:
		if _, ok := primitives[name]; !ok {
			return nil, fmt.Errorf("typeexpr: unknown type %q", name)
		}
		return &Expr{Kind: KindPrimitive, Name: name}, nil
	}
}

func (p *parser) peekIdent() (string, bool) {
	p.skipSpace()
	start := p.pos
	for start < len(p.s) && isIdentRune(p.s[start]) {
		start++
	}
	if start == p.pos {
		return "", false
	}
	return p.s[p.pos:start], true
}

func (p *parser) consumeIdent() {
	for p.pos < len(p.s) && isIdentRune(p.s[p.pos]) {
		p.pos++
	}
}

func isIdentRune(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b == '_'
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.s) || p.s[p.pos] != c {
		return fmt.Errorf("typeexpr: expected %q at position %d in %q", c, p.pos, p.s)
	}
	p.pos++
	return nil
}
