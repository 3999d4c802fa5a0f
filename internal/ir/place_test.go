package ir

import "testing"

func TestPlaceConflicts(t *testing.T) {
	x := PlaceOf(0)
	xa := x.Field("a")
	xb := x.Field("b")
	xab := xa.Field("b")
	xi := x.Index(NoLocalID)
	y := PlaceOf(1)

	cases := []struct {
		name string
		p, q Place
		want bool
	}{
		{"local vs itself", x, x, true},
		{"local vs its field", x, xa, true},
		{"field vs whole local", xa, x, true},
		{"disjoint fields", xa, xb, false},
		{"field vs nested path under it", xa, xab, true},
		{"sibling field vs nested path", xb, xab, false},
		{"index vs index", xi, x.Index(NoLocalID), true},
		{"different locals", x, y, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.p.ConflictsWith(tc.q); got != tc.want {
				t.Fatalf("%s vs %s: got %v, want %v", tc.p.Key(), tc.q.Key(), got, tc.want)
			}
			if got := tc.q.ConflictsWith(tc.p); got != tc.want {
				t.Fatalf("conflict must be symmetric for %s vs %s", tc.p.Key(), tc.q.Key())
			}
		})
	}
}

func TestPlacePrefix(t *testing.T) {
	x := PlaceOf(0)
	xa := x.Field("a")
	if !x.IsPrefixOf(xa) {
		t.Fatal("whole local must cover its fields")
	}
	if xa.IsPrefixOf(x) {
		t.Fatal("a field does not cover the whole local")
	}
	if !xa.IsPrefixOf(xa) {
		t.Fatal("prefix must be reflexive")
	}
}

func TestPlaceKeyCollapsesIndices(t *testing.T) {
	x := PlaceOf(3)
	if x.Index(4).Key() != x.Index(5).Key() {
		t.Fatal("index projections must share a key")
	}
	if x.Field("a").Key() == x.Field("b").Key() {
		t.Fatal("distinct fields must not share a key")
	}
}

func TestValidateCatchesDanglingTarget(t *testing.T) {
	f := &Func{
		Name:   "broken",
		Locals: []Local{{Name: "x"}},
		Blocks: []Block{
			{ID: 0, Term: GotoTo(7)},
		},
		Entry: 0,
	}
	if err := Validate(f); err == nil {
		t.Fatal("expected validation error for dangling goto target")
	}
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	f := &Func{
		Name:   "ok",
		Locals: []Local{{Name: "x"}},
		Blocks: []Block{
			{ID: 0, Instrs: []Instr{Assign(PlaceOf(0)), Read(PlaceOf(0))}, Term: Ret()},
		},
		Entry: 0,
	}
	if err := Validate(f); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
