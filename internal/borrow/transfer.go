package borrow

import (
	"fmt"

	"rill/internal/cfg"
	"rill/internal/diag"
	"rill/internal/ir"
)

// transferBlock pushes st through every instruction of block id, expiring
// loans whose holder is no longer live before each point. The same function
// serves both the fixpoint (emit=false, diagnostics suppressed) and the final
// reporting walk (emit=true).
func (e *engine) transferBlock(id ir.BlockID, st *blockState, emit bool) *blockState {
	bb := e.fn.Block(id)
	points := e.lv.BlockPoints(e.fn, id)
	for i := range bb.Instrs {
		e.expire(st, points[i])
		e.transfer(st, &bb.Instrs[i], ir.Point{Block: id, Index: i}, emit)
	}
	e.expire(st, points[len(bb.Instrs)])
	e.transferTerm(st, &bb.Term, ir.Point{Block: id, Index: len(bb.Instrs)}, emit)
	return st
}

// expire removes loans whose holder local is dead before the current point.
// This is the usage-based end of a borrow: past its holder's last use the
// loan no longer restricts anything.
func (e *engine) expire(st *blockState, live cfg.LocalSet) {
	for _, id := range st.liveLoanIDs() {
		loan := e.table.get(id)
		if loan.Holder == ir.NoLocalID || !live.Has(loan.Holder) {
			st.dropLoan(id)
		}
	}
}

func (e *engine) transfer(st *blockState, ins *ir.Instr, at ir.Point, emit bool) {
	switch ins.Kind {
	case ir.InstrNop:
	case ir.InstrAssign:
		e.applyAssign(st, ins, at, emit)
	case ir.InstrMove:
		e.applyMove(st, ins, at, emit)
	case ir.InstrBorrow:
		e.applyBorrow(st, ins, at, emit)
	case ir.InstrRead:
		e.applyRead(st, ins.Place, at, emit)
	case ir.InstrWrite:
		e.applyWrite(st, ins, at, emit)
	case ir.InstrDrop:
		e.applyDrop(st, ins, at, emit)
	}
}

func (e *engine) transferTerm(st *blockState, term *ir.Terminator, at ir.Point, emit bool) {
	switch term.Kind {
	case ir.TermIf:
		e.checkDirectRead(st, ir.PlaceOf(term.If.Cond), at, emit)
	case ir.TermReturn:
		if !term.Return.HasValue {
			return
		}
		value := term.Return.Value
		e.checkMoveAccess(st, value, at, "return", emit)
		if l := e.fn.Local(value.Local); l != nil && !l.IsCopy() && !l.IsRef() {
			// Returning by value moves the place out.
			e.checkMoveLoanConflict(st, value, at, emit)
		}
	}
}

// applyAssign (re)initializes ins.Place. Any recorded move or drop of the
// place (and of its sub-places) is cleared, and loans referencing the old
// value are invalidated so later uses of their holders surface E102.
func (e *engine) applyAssign(st *blockState, ins *ir.Instr, at ir.Point, emit bool) {
	if ins.HasFrom {
		e.checkDirectRead(st, ins.From, at, emit)
	}

	place := ins.Place
	if root := e.fn.Local(place.Local); root != nil && root.IsRef() && len(place.Proj) > 0 && place.Proj[0].Kind == ir.ProjDeref {
		e.applyRefWrite(st, place, at, emit)
		return
	}

	e.clearMoved(st, place)
	e.killLoansOn(st, place, at)
	if len(place.Proj) == 0 {
		// Rebinding the whole local also retires any loan it held.
		delete(st.holders, place.Local)
	}
}

func (e *engine) applyMove(st *blockState, ins *ir.Instr, at ir.Point, emit bool) {
	place := ins.Place
	root := e.fn.Local(place.Local)
	if root != nil && root.IsCopy() {
		// Copy types duplicate instead of moving; this is just a read.
		e.checkDirectRead(st, place, at, emit)
		e.initDest(st, ins.Dest, at)
		return
	}

	e.checkMoveAccess(st, place, at, "move", emit)
	e.checkMoveLoanConflict(st, place, at, emit)
	e.recordMove(st, place, at, Moved)
	e.initDest(st, ins.Dest, at)
}

func (e *engine) applyBorrow(st *blockState, ins *ir.Instr, at ir.Point, emit bool) {
	place := ins.Place
	e.checkMoveAccess(st, place, at, "borrow", emit)
	e.checkBorrowConflict(st, place, ins.Borrow, at, emit)

	id := e.table.create(ins.Borrow, place, ins.Dest, at, ins.Span)
	st.loans[id] = struct{}{}
	if ins.Dest != ir.NoLocalID {
		st.holders[ins.Dest] = id
		e.lastHeld[ins.Dest] = id
	}
	e.initDest(st, ins.Dest, at)
}

func (e *engine) applyRead(st *blockState, place ir.Place, at ir.Point, emit bool) {
	root := e.fn.Local(place.Local)
	if root != nil && root.IsRef() && len(place.Proj) > 0 && place.Proj[0].Kind == ir.ProjDeref {
		e.checkRefAccess(st, place, at, emit)
		return
	}
	e.checkDirectRead(st, place, at, emit)
}

func (e *engine) applyWrite(st *blockState, ins *ir.Instr, at ir.Point, emit bool) {
	place := ins.Place
	root := e.fn.Local(place.Local)
	if root != nil && root.IsRef() && len(place.Proj) > 0 && place.Proj[0].Kind == ir.ProjDeref {
		e.applyRefWrite(st, place, at, emit)
		return
	}

	e.checkMoveAccess(st, place, at, "write to", emit)
	for _, id := range st.liveLoanIDs() {
		loan := e.table.get(id)
		if !loan.Place.ConflictsWith(place) {
			continue
		}
		switch {
		case loan.Kind == ir.BorrowShared:
			e.reportf(emit, diag.BorrowSharedConflict, at,
				"cannot write to `%s` while it is borrowed", place.DisplayName(e.fn)).
				WithNote(loan.Span, "shared borrow occurs here").Emit()
		default:
			e.reportf(emit, diag.BorrowUniqueConflict, at,
				"cannot write to `%s` while an exclusive borrow is active", place.DisplayName(e.fn)).
				WithNote(loan.Span, "exclusive borrow occurs here").Emit()
		}
		return
	}
}

// applyRefWrite handles a write through the reference at the root of place.
// The first write through a reserved loan activates it, which is the moment
// it starts conflicting with shared loans.
func (e *engine) applyRefWrite(st *blockState, place ir.Place, at ir.Point, emit bool) {
	id, loan := e.checkRefAccess(st, place, at, emit)
	if loan == nil {
		return
	}
	switch loan.Kind {
	case ir.BorrowShared:
		e.reportf(emit, diag.BorrowSharedConflict, at,
			"cannot write through shared borrow of `%s`", loan.Place.DisplayName(e.fn)).
			WithNote(loan.Span, "shared borrow created here").Emit()
	case ir.BorrowReserved:
		if !st.isActivated(id) {
			e.activateReserved(st, id, loan, at, emit)
		}
	}
}

// activateReserved promotes a reserved loan to exclusive. Activation fails
// when an overlapping shared loan created after the reservation is still
// live.
func (e *engine) activateReserved(st *blockState, id LoanID, loan *Loan, at ir.Point, emit bool) {
	for _, other := range st.liveLoanIDs() {
		if other == id {
			continue
		}
		ol := e.table.get(other)
		if ol.Kind != ir.BorrowShared || !ol.Place.ConflictsWith(loan.Place) {
			continue
		}
		e.reportf(emit, diag.BorrowUniqueConflict, at,
			"cannot activate reserved borrow of `%s` while it is shared", loan.Place.DisplayName(e.fn)).
			WithNote(ol.Span, "shared borrow occurs here").Emit()
		break
	}
	st.activated[id] = struct{}{}
}

func (e *engine) applyDrop(st *blockState, ins *ir.Instr, at ir.Point, emit bool) {
	place := ins.Place
	root := e.fn.Local(place.Local)
	if root != nil && root.IsCopy() {
		return
	}

	key := place.Key()
	if entry, ok := st.moves[key]; ok {
		switch entry.State {
		case Dropped:
			e.reportf(emit, diag.BorrowDoubleDrop, at,
				"`%s` dropped twice", place.DisplayName(e.fn)).
				WithNote(e.fn.SpanAt(entry.At), "first dropped here").Emit()
			return
		case Moved:
			// Dropping a moved-out place is a no-op: ownership already left.
			return
		}
	}

	e.killLoansOn(st, place, at)
	e.recordMove(st, place, at, Dropped)
}

// checkDirectRead validates a by-value read of place: the place must be
// initialized and not exclusively borrowed elsewhere.
func (e *engine) checkDirectRead(st *blockState, place ir.Place, at ir.Point, emit bool) {
	if !place.IsValid() {
		return
	}
	if root := e.fn.Local(place.Local); root != nil && root.IsRef() && len(place.Proj) > 0 && place.Proj[0].Kind == ir.ProjDeref {
		e.checkRefAccess(st, place, at, emit)
		return
	}

	e.checkMoveAccess(st, place, at, "read", emit)
	for _, id := range st.liveLoanIDs() {
		loan := e.table.get(id)
		if !loan.Place.ConflictsWith(place) {
			continue
		}
		exclusive := loan.Kind == ir.BorrowUnique ||
			(loan.Kind == ir.BorrowReserved && st.isActivated(id))
		if !exclusive {
			continue
		}
		e.reportf(emit, diag.BorrowSharedConflict, at,
			"cannot read `%s` while an exclusive borrow is active", place.DisplayName(e.fn)).
			WithNote(loan.Span, "exclusive borrow occurs here").Emit()
		return
	}
}

// checkRefAccess resolves the loan behind a deref access and reports E102
// when the loan has expired or been invalidated. It returns the loan when it
// is still live.
func (e *engine) checkRefAccess(st *blockState, place ir.Place, at ir.Point, emit bool) (LoanID, *Loan) {
	holder := place.Local
	id, ok := st.holders[holder]
	if !ok || !st.hasLoan(id) {
		e.reportExpired(holder, at, emit)
		return NoLoanID, nil
	}
	if emit {
		e.used[id] = struct{}{}
	}
	return id, e.table.get(id)
}

// reportExpired emits E102 for an access through a reference whose loan is no
// longer live, pointing at the borrow site and, when known, the statement
// that invalidated it.
func (e *engine) reportExpired(holder ir.LocalID, at ir.Point, emit bool) {
	name := "%" + fmt.Sprint(holder)
	if l := e.fn.Local(holder); l != nil && l.Name != "" {
		name = l.Name
	}
	b := e.reportf(emit, diag.BorrowExpiredLoan, at,
		"use of `%s` after its borrow expired", name)
	if id, ok := e.lastHeld[holder]; ok {
		if loan := e.table.get(id); loan != nil {
			b.WithNote(loan.Span, "borrow created here")
		}
		if killAt, ok := e.killed[id]; ok {
			b.WithNote(e.fn.SpanAt(killAt), "borrowed value invalidated here")
		}
	}
	b.Emit()
}

// checkMoveAccess reports E100/E102 when place overlaps a moved or dropped
// place. verb names the attempted access for the message.
func (e *engine) checkMoveAccess(st *blockState, place ir.Place, at ir.Point, verb string, emit bool) bool {
	for _, key := range st.sortedMoveKeys() {
		entry := st.moves[key]
		if !entry.State.blocksAccess() || !entry.Place.ConflictsWith(place) {
			continue
		}
		name := place.DisplayName(e.fn)
		if entry.State == Dropped {
			e.reportf(emit, diag.BorrowExpiredLoan, at,
				"cannot %s `%s`: value was dropped", verb, name).
				WithNote(e.fn.SpanAt(entry.At), "dropped here").Emit()
			return false
		}
		b := e.reportf(emit, diag.BorrowUseAfterMove, at,
			"cannot %s `%s`: value was moved", verb, name)
		if entry.Place.Key() != place.Key() {
			b.WithNote(e.fn.SpanAt(entry.At),
				fmt.Sprintf("`%s` moved here", entry.Place.DisplayName(e.fn)))
		} else {
			b.WithNote(e.fn.SpanAt(entry.At), "value moved here")
		}
		b.Emit()
		return false
	}
	return true
}

// checkMoveLoanConflict reports E105 when place is moved out while a live
// loan still references it.
func (e *engine) checkMoveLoanConflict(st *blockState, place ir.Place, at ir.Point, emit bool) {
	for _, id := range st.liveLoanIDs() {
		loan := e.table.get(id)
		if !loan.Place.ConflictsWith(place) {
			continue
		}
		e.reportf(emit, diag.BorrowMoveWhileLoan, at,
			"cannot move `%s` while it is borrowed", place.DisplayName(e.fn)).
			WithNote(loan.Span, "borrow occurs here").Emit()
		return
	}
}

// checkBorrowConflict applies the loan compatibility matrix for a new borrow
// of the given kind against every live overlapping loan. Reservations do not
// conflict with shared loans until activated.
func (e *engine) checkBorrowConflict(st *blockState, place ir.Place, kind ir.BorrowKind, at ir.Point, emit bool) {
	name := place.DisplayName(e.fn)
	for _, id := range st.liveLoanIDs() {
		loan := e.table.get(id)
		if loan.CreatedAt == at || !loan.Place.ConflictsWith(place) {
			continue
		}
		exclusive := loan.Kind == ir.BorrowUnique ||
			(loan.Kind == ir.BorrowReserved && st.isActivated(id))

		switch kind {
		case ir.BorrowShared:
			if exclusive {
				e.reportf(emit, diag.BorrowSharedConflict, at,
					"cannot borrow `%s` as shared while an exclusive borrow is active", name).
					WithNote(loan.Span, "exclusive borrow occurs here").Emit()
				return
			}
		case ir.BorrowUnique, ir.BorrowReserved:
			if loan.Kind == ir.BorrowShared {
				if kind == ir.BorrowReserved {
					// A reservation coexists with shared loans until its
					// first write.
					continue
				}
				e.reportf(emit, diag.BorrowSharedConflict, at,
					"cannot borrow `%s` as exclusive while it is shared", name).
					WithNote(loan.Span, "shared borrow occurs here").Emit()
				return
			}
			e.reportf(emit, diag.BorrowUniqueConflict, at,
				"cannot borrow `%s` as exclusive more than once", name).
				WithNote(loan.Span, "previous exclusive borrow occurs here").Emit()
			return
		}
	}
}

// recordMove marks place with state and its proper prefixes PartiallyMoved.
func (e *engine) recordMove(st *blockState, place ir.Place, at ir.Point, state MoveState) {
	st.moves[place.Key()] = moveEntry{Place: place, State: state, At: at}
	for i := 0; i < len(place.Proj); i++ {
		prefix := ir.Place{Local: place.Local, Proj: place.Proj[:i]}
		key := prefix.Key()
		if cur, ok := st.moves[key]; !ok || cur.State < PartiallyMoved {
			st.moves[key] = moveEntry{Place: prefix, State: PartiallyMoved, At: at}
		}
	}
}

// clearMoved removes move entries covered by the reassigned place and any
// PartiallyMoved ancestors left without a deinitialized descendant.
func (e *engine) clearMoved(st *blockState, place ir.Place) {
	for key, entry := range st.moves {
		if place.IsPrefixOf(entry.Place) {
			delete(st.moves, key)
		}
	}
	for key, entry := range st.moves {
		if entry.State != PartiallyMoved {
			continue
		}
		keep := false
		for _, other := range st.moves {
			if other.State.blocksAccess() && entry.Place.IsPrefixOf(other.Place) {
				keep = true
				break
			}
		}
		if !keep {
			delete(st.moves, key)
		}
	}
}

// killLoansOn invalidates loans referencing a place whose value is going
// away (drop or reassignment). The loan leaves the live set immediately;
// later uses of its holder report E102.
func (e *engine) killLoansOn(st *blockState, place ir.Place, at ir.Point) {
	for _, id := range st.liveLoanIDs() {
		loan := e.table.get(id)
		if !loan.Place.ConflictsWith(place) {
			continue
		}
		st.dropLoan(id)
		if _, ok := e.killed[id]; !ok {
			e.killed[id] = at
		}
	}
}

// initDest marks dest as freshly initialized, clearing stale move entries.
func (e *engine) initDest(st *blockState, dest ir.LocalID, at ir.Point) {
	if dest == ir.NoLocalID {
		return
	}
	e.clearMoved(st, ir.PlaceOf(dest))
	e.killLoansOn(st, ir.PlaceOf(dest), at)
}
