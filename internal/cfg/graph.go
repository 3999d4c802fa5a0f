// Package cfg builds a navigable control-flow graph from a function body and
// computes the liveness facts the borrow engine consumes.
package cfg

import (
	"errors"
	"fmt"

	"rill/internal/ir"
)

// ErrMalformed signals structurally invalid IR: a terminator referencing a
// non-existent block, a missing terminator, or an undeclared local. This is
// an internal compiler error, never a user-facing diagnostic.
var ErrMalformed = errors.New("malformed CFG")

// Graph is the navigable form of a function's basic blocks: explicit
// predecessor/successor edges, a single entry, and a deterministic traversal
// order over the reachable blocks.
type Graph struct {
	fn        *ir.Func
	succs     [][]ir.BlockID
	preds     [][]ir.BlockID
	order     []ir.BlockID // reverse postorder from entry
	reachable []bool
}

// Build validates f and constructs its graph. Unreachable blocks are not an
// error: they are excluded from the graph and returned so the caller can warn
// about them.
func Build(f *ir.Func) (*Graph, []ir.BlockID, error) {
	if err := ir.Validate(f); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}

	n := len(f.Blocks)
	g := &Graph{
		fn:        f,
		succs:     make([][]ir.BlockID, n),
		preds:     make([][]ir.BlockID, n),
		reachable: make([]bool, n),
	}
	for i := range f.Blocks {
		g.succs[i] = f.Blocks[i].Term.Targets()
	}

	g.order = postorderFrom(f.Entry, g.succs, g.reachable)
	reverse(g.order)

	// Predecessor edges only between reachable blocks.
	for _, id := range g.order {
		for _, succ := range g.succs[id] {
			g.preds[succ] = append(g.preds[succ], id)
		}
	}

	var unreachable []ir.BlockID
	for i := range f.Blocks {
		if !g.reachable[i] {
			unreachable = append(unreachable, ir.BlockID(i)) //nolint:gosec // bounded by block count
		}
	}
	return g, unreachable, nil
}

func postorderFrom(entry ir.BlockID, succs [][]ir.BlockID, seen []bool) []ir.BlockID {
	var order []ir.BlockID
	var visit func(id ir.BlockID)
	visit = func(id ir.BlockID) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, succ := range succs[id] {
			visit(succ)
		}
		order = append(order, id)
	}
	visit(entry)
	return order
}

func reverse(ids []ir.BlockID) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}

// Func returns the underlying function body.
func (g *Graph) Func() *ir.Func {
	return g.fn
}

// Entry returns the entry block.
func (g *Graph) Entry() ir.BlockID {
	return g.fn.Entry
}

// Order returns the reachable blocks in reverse postorder.
func (g *Graph) Order() []ir.BlockID {
	return g.order
}

// Succs returns the successors of id.
func (g *Graph) Succs(id ir.BlockID) []ir.BlockID {
	if int(id) >= len(g.succs) {
		return nil
	}
	return g.succs[id]
}

// Preds returns the reachable predecessors of id.
func (g *Graph) Preds(id ir.BlockID) []ir.BlockID {
	if int(id) >= len(g.preds) {
		return nil
	}
	return g.preds[id]
}

// Reachable reports whether id is reachable from entry.
func (g *Graph) Reachable(id ir.BlockID) bool {
	return int(id) < len(g.reachable) && g.reachable[id]
}
