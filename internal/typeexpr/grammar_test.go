package typeexpr

import "testing"

func TestParsePrimitives(t *testing.T) {
	for _, name := range []string{"str", "int", "float", "bool", "bytes", "any"} {
		e, err := Parse(name)
		if err != nil {
			t.Fatalf("Parse(%q): %v", name, err)
		}
		if e.Kind != KindPrimitive || e.Name != name {
			t.Fatalf("Parse(%q) = %+v, want primitive %q", name, e, name)
		}
	}
}

func TestParseParametric(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"list<int>", "list<int>"},
		{"set<str>", "set<str>"},
		{"dict<str,int>", "dict<str,int>"},
		{"tuple<int,str>", "tuple<int,str>"},
		{"optional<int>", "int|null"},
		{"int|float", "int|float"},
		{"list<dict<str,int>>", "list<dict<str,int>>"},
	}
	for _, c := range cases {
		e, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.in, err)
		}
		if got := e.String(); got != c.want {
			t.Errorf("Parse(%q).String() = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "frobnicate", "list<int", "dict<str>", "list<>"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q): expected error, got nil", in)
		}
	}
}

func TestIsOptional(t *testing.T) {
	e := MustParse("optional<int>")
	members, ok := e.IsOptional()
	if !ok {
		t.Fatalf("expected optional")
	}
	if len(members) != 1 || members[0].String() != "int" {
		t.Fatalf("unexpected members: %+v", members)
	}

	nonOptional := MustParse("int")
	if _, ok := nonOptional.IsOptional(); ok {
		t.Fatalf("plain int should not be optional")
	}
}

func TestEqualUnionOrderIndependent(t *testing.T) {
	a := MustParse("int|str")
	b := MustParse("str|int")
	if !a.Equal(b) {
		t.Fatalf("unions should compare equal regardless of member order")
	}
}

func TestEqualStructural(t *testing.T) {
	a := MustParse("list<dict<str,int>>")
	b := MustParse("list<dict<str,int>>")
	c := MustParse("list<dict<str,float>>")
	if !a.Equal(b) {
		t.Fatalf("expected structural equality")
	}
	if a.Equal(c) {
		t.Fatalf("expected structural inequality")
	}
}
