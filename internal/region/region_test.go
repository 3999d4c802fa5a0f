package region

import (
	"errors"
	"testing"

	"rill/internal/diag"
	"rill/internal/ir"
)

func TestOutlivesTransitive(t *testing.T) {
	table := NewTable([]ir.Bound{
		{Longer: "'a", Shorter: "'b"},
		{Longer: "'b", Shorter: "'c"},
	})
	if !table.Outlives("'a", "'b") {
		t.Fatal("direct bound 'a: 'b must hold")
	}
	if !table.Outlives("'a", "'c") {
		t.Fatal("transitive bound 'a: 'c must hold")
	}
	if table.Outlives("'c", "'a") {
		t.Fatal("'c: 'a was never declared")
	}
	if !table.Outlives("'a", "'a") {
		t.Fatal("outlives is reflexive")
	}
}

func TestElideSingleRefInput(t *testing.T) {
	sig := ir.Signature{
		Name: "first",
		Params: []ir.Param{
			{Name: "items", IsRef: true},
			{Name: "limit"},
		},
		HasResult: true,
		Result:    ir.Result{IsRef: true},
	}
	out, err := Elide(sig)
	if err != nil {
		t.Fatalf("elide: %v", err)
	}
	if out.Params[0].Region == "" {
		t.Fatal("elided param must receive a region")
	}
	if out.Result.Region != out.Params[0].Region {
		t.Fatalf("output must tie to the single ref input, got %q vs %q", out.Result.Region, out.Params[0].Region)
	}
}

func TestElideReceiverWins(t *testing.T) {
	sig := ir.Signature{
		Name: "name",
		Params: []ir.Param{
			{Name: "self", IsRef: true, Receiver: true},
			{Name: "other", IsRef: true},
		},
		HasResult: true,
		Result:    ir.Result{IsRef: true},
	}
	out, err := Elide(sig)
	if err != nil {
		t.Fatalf("elide: %v", err)
	}
	if out.Result.Region != "'self" {
		t.Fatalf("output must tie to the receiver, got %q", out.Result.Region)
	}
}

func TestElideAmbiguousFails(t *testing.T) {
	sig := ir.Signature{
		Name: "pick",
		Params: []ir.Param{
			{Name: "a", IsRef: true},
			{Name: "b", IsRef: true},
		},
		HasResult: true,
		Result:    ir.Result{IsRef: true},
	}
	_, err := Elide(sig)
	if !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("expected ErrAmbiguous, got %v", err)
	}
}

func TestElideExplicitAnnotationKept(t *testing.T) {
	sig := ir.Signature{
		Name: "pick",
		Params: []ir.Param{
			{Name: "a", IsRef: true, Region: "'a"},
			{Name: "b", IsRef: true, Region: "'b"},
		},
		HasResult: true,
		Result:    ir.Result{IsRef: true, Region: "'a"},
	}
	out, err := Elide(sig)
	if err != nil {
		t.Fatalf("explicit annotations must not trip ambiguity: %v", err)
	}
	if out.Result.Region != "'a" {
		t.Fatalf("explicit output region must be preserved, got %q", out.Result.Region)
	}
}

// returnRef builds: fn pick(a: &'a T, b: &'b T) -> &'ret T { return <param> }
func returnRef(retParam string) (*ir.Func, ir.Signature) {
	f := &ir.Func{
		Name: "pick",
		Locals: []ir.Local{
			{Name: "a", Flags: ir.LocalFlagRef | ir.LocalFlagParam, Region: "'a"},
			{Name: "b", Flags: ir.LocalFlagRef | ir.LocalFlagParam, Region: "'b"},
		},
		Blocks: []ir.Block{
			{ID: 0, Term: ir.RetValue(ir.PlaceOf(0))},
		},
		Entry: 0,
	}
	if retParam == "b" {
		f.Blocks[0].Term = ir.RetValue(ir.PlaceOf(1))
	}
	sig := ir.Signature{
		Name:    "pick",
		Regions: []string{"'a", "'b"},
		Params: []ir.Param{
			{Name: "a", IsRef: true, Region: "'a"},
			{Name: "b", IsRef: true, Region: "'b"},
		},
		HasResult: true,
		Result:    ir.Result{IsRef: true, Region: "'a"},
	}
	return f, sig
}

func TestCheckFuncReportsEscape(t *testing.T) {
	f, sig := returnRef("b")
	bag := diag.NewBag(10)
	ok := CheckFunc(f, sig, diag.BagReporter{Bag: bag})
	if ok {
		t.Fatal("returning 'b as 'a without a bound must fail")
	}
	if bag.Len() != 1 || bag.Items()[0].Code != diag.BorrowRegionEscape {
		t.Fatalf("expected one E106, got %v", bag.Items())
	}
}

func TestCheckFuncHonoursDeclaredBound(t *testing.T) {
	f, sig := returnRef("b")
	sig.Bounds = []ir.Bound{{Longer: "'b", Shorter: "'a"}}
	bag := diag.NewBag(10)
	if !CheckFunc(f, sig, diag.BagReporter{Bag: bag}) {
		t.Fatalf("declared bound 'b: 'a must make the return valid, got %v", bag.Items())
	}
}

func TestCheckFuncSameRegionOK(t *testing.T) {
	f, sig := returnRef("a")
	bag := diag.NewBag(10)
	if !CheckFunc(f, sig, diag.BagReporter{Bag: bag}) {
		t.Fatalf("returning the declared region must pass, got %v", bag.Items())
	}
}
