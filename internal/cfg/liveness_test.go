package cfg

import (
	"testing"

	"rill/internal/ir"
)

// straightLine builds: x = ..; r = &x; read(*r); write(x); return
// The holder r is last read at instruction 2, so it must be dead before
// instruction 3.
func straightLine() *ir.Func {
	x := ir.LocalID(0)
	r := ir.LocalID(1)
	return &ir.Func{
		Name: "straight",
		Locals: []ir.Local{
			{Name: "x"},
			{Name: "r", Flags: ir.LocalFlagRef},
		},
		Blocks: []ir.Block{
			{
				ID: 0,
				Instrs: []ir.Instr{
					ir.Assign(ir.PlaceOf(x)),
					ir.Borrow(ir.PlaceOf(x), ir.BorrowShared, r),
					ir.Read(ir.PlaceOf(r).Deref()),
					ir.Write(ir.PlaceOf(x)),
				},
				Term: ir.Ret(),
			},
		},
		Entry: 0,
	}
}

func TestLivenessUsageBasedExpiry(t *testing.T) {
	f := straightLine()
	g, _, err := Build(f)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	lv := ComputeLiveness(g)
	points := lv.BlockPoints(f, 0)

	r := ir.LocalID(1)
	if !points[2].Has(r) {
		t.Fatal("r must be live before its read at index 2")
	}
	if points[3].Has(r) {
		t.Fatal("r must be dead before index 3: its last read was at index 2")
	}
}

func TestLivenessAcrossBranches(t *testing.T) {
	// bb0: x = ..; branch on c
	// bb1: read(x); goto bb3
	// bb2: goto bb3
	// bb3: return
	x := ir.LocalID(0)
	c := ir.LocalID(1)
	f := &ir.Func{
		Name: "branchy",
		Locals: []ir.Local{
			{Name: "x"},
			{Name: "c", Flags: ir.LocalFlagCopy},
		},
		Blocks: []ir.Block{
			{ID: 0, Instrs: []ir.Instr{ir.Assign(ir.PlaceOf(x))}, Term: ir.IfThen(c, 1, 2)},
			{ID: 1, Instrs: []ir.Instr{ir.Read(ir.PlaceOf(x))}, Term: ir.GotoTo(3)},
			{ID: 2, Term: ir.GotoTo(3)},
			{ID: 3, Term: ir.Ret()},
		},
		Entry: 0,
	}
	g, _, err := Build(f)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	lv := ComputeLiveness(g)

	if !lv.LiveOut(0).Has(x) {
		t.Fatal("x is read in bb1, so it must be live out of bb0")
	}
	if !lv.LiveIn(1).Has(x) {
		t.Fatal("x must be live into bb1")
	}
	if lv.LiveIn(2).Has(x) {
		t.Fatal("x is not read on the bb2 path")
	}
	if lv.LiveOut(3) != nil && lv.LiveOut(3).Has(x) {
		t.Fatal("nothing is live out of the exit block")
	}
}

func TestLivenessLoopKeepsCarriedLocalAlive(t *testing.T) {
	// bb0: x = .. -> bb1
	// bb1: read(x); branch c -> bb1 | bb2
	// bb2: return
	x := ir.LocalID(0)
	c := ir.LocalID(1)
	f := &ir.Func{
		Name: "loopy",
		Locals: []ir.Local{
			{Name: "x"},
			{Name: "c", Flags: ir.LocalFlagCopy},
		},
		Blocks: []ir.Block{
			{ID: 0, Instrs: []ir.Instr{ir.Assign(ir.PlaceOf(x))}, Term: ir.GotoTo(1)},
			{ID: 1, Instrs: []ir.Instr{ir.Read(ir.PlaceOf(x))}, Term: ir.IfThen(c, 1, 2)},
			{ID: 2, Term: ir.Ret()},
		},
		Entry: 0,
	}
	g, _, err := Build(f)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	lv := ComputeLiveness(g)
	if !lv.LiveOut(1).Has(x) {
		t.Fatal("x is read on the back edge, so it must be live out of bb1")
	}
}
