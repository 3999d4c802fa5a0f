package borrow

import (
	"testing"

	"rill/internal/ir"
)

func TestJoinMovesWorstStateWins(t *testing.T) {
	x := ir.PlaceOf(0)
	a := newBlockState()
	a.moves[x.Key()] = moveEntry{Place: x, State: Moved, At: ir.Point{Block: 1}}
	b := newBlockState()

	got := b.clone()
	got.join(a, false)
	if got.moves[x.Key()].State != Moved {
		t.Fatal("a place moved on one edge is moved after the join")
	}

	a.moves[x.Key()] = moveEntry{Place: x, State: PartiallyMoved, At: ir.Point{Block: 1}}
	b.moves[x.Key()] = moveEntry{Place: x, State: Dropped, At: ir.Point{Block: 2}}
	got = a.clone()
	got.join(b, false)
	if got.moves[x.Key()].State != Dropped {
		t.Fatalf("dropped beats partially moved, got %v", got.moves[x.Key()].State)
	}
}

func TestJoinLoansIntersectByDefault(t *testing.T) {
	a := newBlockState()
	a.loans[1] = struct{}{}
	a.loans[2] = struct{}{}
	a.holders[0] = 1
	b := newBlockState()
	b.loans[2] = struct{}{}

	got := a.clone()
	got.join(b, false)
	if got.hasLoan(1) {
		t.Fatal("loan 1 is not live on every edge")
	}
	if !got.hasLoan(2) {
		t.Fatal("loan 2 is live on both edges")
	}
	if _, ok := got.holders[0]; ok {
		t.Fatal("holder of an expired loan must be pruned")
	}
}

func TestJoinLoansUnionInStrictMode(t *testing.T) {
	a := newBlockState()
	a.loans[1] = struct{}{}
	a.holders[0] = 1
	b := newBlockState()
	b.loans[2] = struct{}{}

	got := a.clone()
	got.join(b, true)
	if !got.hasLoan(1) || !got.hasLoan(2) {
		t.Fatalf("strict join keeps loans from any edge, got %v", got.loans)
	}
	if got.holders[0] != 1 {
		t.Fatal("strict join keeps the holder binding")
	}
}

func TestJoinActivationIsSticky(t *testing.T) {
	a := newBlockState()
	a.loans[1] = struct{}{}
	b := newBlockState()
	b.loans[1] = struct{}{}
	b.activated[1] = struct{}{}

	got := a.clone()
	got.join(b, false)
	if !got.isActivated(1) {
		t.Fatal("activation on one edge survives the join")
	}
}

func TestStateEqualAndClone(t *testing.T) {
	x := ir.PlaceOf(0)
	a := newBlockState()
	a.moves[x.Key()] = moveEntry{Place: x, State: Moved}
	a.loans[3] = struct{}{}
	a.holders[1] = 3

	c := a.clone()
	if !a.equal(c) {
		t.Fatal("clone must compare equal")
	}
	c.loans[4] = struct{}{}
	if a.equal(c) {
		t.Fatal("diverged states must not compare equal")
	}
}
