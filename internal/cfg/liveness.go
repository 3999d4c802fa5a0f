package cfg

import "rill/internal/ir"

// Liveness holds per-block live-in/live-out sets computed by a backward
// fixpoint: live-out = union of successors' live-in; live-in = use ∪
// (live-out − def). The borrow engine consults it to expire loans at the last
// read of their holder instead of at lexical scope exit.
type Liveness struct {
	use []LocalSet
	def []LocalSet
	in  []LocalSet
	out []LocalSet
}

// ComputeLiveness runs the backward dataflow over the reachable blocks of g.
func ComputeLiveness(g *Graph) *Liveness {
	f := g.Func()
	n := len(f.Blocks)
	lv := &Liveness{
		use: make([]LocalSet, n),
		def: make([]LocalSet, n),
		in:  make([]LocalSet, n),
		out: make([]LocalSet, n),
	}
	for _, id := range g.Order() {
		use, def := blockUseDef(f, &f.Blocks[id])
		lv.use[id] = use
		lv.def[id] = def
	}

	changed := true
	for changed {
		changed = false
		// Postorder visit converges fastest for a backward problem.
		order := g.Order()
		for i := len(order) - 1; i >= 0; i-- {
			id := order[i]
			out := LocalSet{}
			for _, succ := range g.Succs(id) {
				out = unionSet(out, lv.in[succ])
			}
			in := unionSet(lv.use[id].Clone(), subtractSet(out, lv.def[id]))

			if !setEqual(out, lv.out[id]) || !setEqual(in, lv.in[id]) {
				lv.out[id] = out
				lv.in[id] = in
				changed = true
			}
		}
	}
	return lv
}

// LiveIn returns the set of locals live on entry to block id.
func (lv *Liveness) LiveIn(id ir.BlockID) LocalSet {
	if int(id) >= len(lv.in) {
		return nil
	}
	return lv.in[id]
}

// LiveOut returns the set of locals live on exit from block id.
func (lv *Liveness) LiveOut(id ir.BlockID) LocalSet {
	if int(id) >= len(lv.out) {
		return nil
	}
	return lv.out[id]
}

// BlockPoints returns, for block id, the set live immediately before each
// program point: index i for instruction i, index len(Instrs) for the
// terminator. This is the intra-block refinement that lets a loan end
// mid-block once its holder is last read.
func (lv *Liveness) BlockPoints(f *ir.Func, id ir.BlockID) []LocalSet {
	bb := f.Block(id)
	if bb == nil {
		return nil
	}
	points := make([]LocalSet, len(bb.Instrs)+1)

	live := lv.LiveOut(id).Clone()
	termUse, _ := pointUseDef(f, nil, &bb.Term)
	live = unionSet(live, termUse)
	points[len(bb.Instrs)] = live

	for i := len(bb.Instrs) - 1; i >= 0; i-- {
		use, def := pointUseDef(f, &bb.Instrs[i], nil)
		live = unionSet(unionSet(LocalSet{}, use), subtractSet(live, def))
		points[i] = live
	}
	return points
}

// blockUseDef computes upward-exposed uses and definitions for one block.
func blockUseDef(f *ir.Func, bb *ir.Block) (use, def LocalSet) {
	use = LocalSet{}
	def = LocalSet{}
	addUse := func(id ir.LocalID) {
		if id == ir.NoLocalID || def.Has(id) {
			return
		}
		use.Add(id)
	}
	addDef := func(id ir.LocalID) {
		if id == ir.NoLocalID {
			return
		}
		def.Add(id)
	}
	for i := range bb.Instrs {
		u, d := pointUseDef(f, &bb.Instrs[i], nil)
		for id := range u {
			addUse(id)
		}
		for id := range d {
			addDef(id)
		}
	}
	u, _ := pointUseDef(f, nil, &bb.Term)
	for id := range u {
		addUse(id)
	}
	return use, def
}

// pointUseDef computes the use and def sets of a single instruction or
// terminator. Writing through a projection or a reference reads the root
// local; only a whole-local assignment is a definition.
func pointUseDef(f *ir.Func, ins *ir.Instr, term *ir.Terminator) (use, def LocalSet) {
	use = LocalSet{}
	def = LocalSet{}

	addPlaceUse := func(p ir.Place) {
		if !p.IsValid() {
			return
		}
		use.Add(p.Local)
		for _, proj := range p.Proj {
			if proj.Kind == ir.ProjIndex && proj.Index != ir.NoLocalID {
				use.Add(proj.Index)
			}
		}
	}
	addPlaceWrite := func(p ir.Place) {
		if !p.IsValid() {
			return
		}
		throughRef := false
		if l := f.Local(p.Local); l != nil && l.IsRef() {
			throughRef = true
		}
		if len(p.Proj) > 0 || throughRef {
			addPlaceUse(p)
			return
		}
		def.Add(p.Local)
	}

	if term != nil {
		switch term.Kind {
		case ir.TermIf:
			use.Add(term.If.Cond)
		case ir.TermReturn:
			if term.Return.HasValue {
				addPlaceUse(term.Return.Value)
			}
		}
		return use, def
	}

	switch ins.Kind {
	case ir.InstrAssign:
		if ins.HasFrom {
			addPlaceUse(ins.From)
		}
		addPlaceWrite(ins.Place)
	case ir.InstrMove:
		addPlaceUse(ins.Place)
		if ins.Dest != ir.NoLocalID {
			def.Add(ins.Dest)
		}
	case ir.InstrBorrow:
		addPlaceUse(ins.Place)
		if ins.Dest != ir.NoLocalID {
			def.Add(ins.Dest)
		}
	case ir.InstrRead:
		addPlaceUse(ins.Place)
	case ir.InstrWrite:
		addPlaceWrite(ins.Place)
	case ir.InstrDrop:
		addPlaceUse(ins.Place)
		def.Add(ins.Place.Local)
	}
	return use, def
}
