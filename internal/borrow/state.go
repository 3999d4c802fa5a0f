package borrow

import (
	"sort"

	"rill/internal/ir"
)

// MoveState is the ownership status of one tracked place. Absence of an
// entry in the flow state means Unmoved.
type MoveState uint8

const (
	Unmoved MoveState = iota
	// PartiallyMoved marks a place with at least one moved sub-place; the
	// whole place is unusable but untouched siblings remain accessible.
	PartiallyMoved
	// Moved marks a place whose value was transferred out.
	Moved
	// Dropped marks an explicitly released place.
	Dropped
)

func (s MoveState) String() string {
	switch s {
	case Unmoved:
		return "unmoved"
	case PartiallyMoved:
		return "partially moved"
	case Moved:
		return "moved"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// blocksAccess reports whether a place in this state may not be read, moved,
// borrowed, or written until reassigned.
func (s MoveState) blocksAccess() bool {
	return s == Moved || s == Dropped
}

// moveEntry records the deinitialization of one place and where it happened.
type moveEntry struct {
	Place ir.Place
	State MoveState
	At    ir.Point
}

// blockState is the dataflow fact flowing along CFG edges: per-place move
// status, the set of live loans, which ref local currently holds which loan,
// and which reserved loans have been activated. The zero value is not usable;
// call newBlockState.
type blockState struct {
	// moves holds only places with non-Unmoved status, keyed by ir.Place.Key.
	moves map[string]moveEntry
	// loans is the set of loans live at this point.
	loans map[LoanID]struct{}
	// holders maps a reference local to the loan it currently holds.
	holders map[ir.LocalID]LoanID
	// activated is the subset of loans (Reserved kind) promoted to
	// exclusive by a write through their holder.
	activated map[LoanID]struct{}
}

func newBlockState() *blockState {
	return &blockState{
		moves:     make(map[string]moveEntry),
		loans:     make(map[LoanID]struct{}),
		holders:   make(map[ir.LocalID]LoanID),
		activated: make(map[LoanID]struct{}),
	}
}

func (s *blockState) clone() *blockState {
	out := &blockState{
		moves:     make(map[string]moveEntry, len(s.moves)),
		loans:     make(map[LoanID]struct{}, len(s.loans)),
		holders:   make(map[ir.LocalID]LoanID, len(s.holders)),
		activated: make(map[LoanID]struct{}, len(s.activated)),
	}
	for k, v := range s.moves {
		out.moves[k] = v
	}
	for id := range s.loans {
		out.loans[id] = struct{}{}
	}
	for l, id := range s.holders {
		out.holders[l] = id
	}
	for id := range s.activated {
		out.activated[id] = struct{}{}
	}
	return out
}

func (s *blockState) equal(o *blockState) bool {
	if o == nil {
		return false
	}
	if len(s.moves) != len(o.moves) || len(s.loans) != len(o.loans) ||
		len(s.holders) != len(o.holders) || len(s.activated) != len(o.activated) {
		return false
	}
	for k, v := range s.moves {
		ov, ok := o.moves[k]
		if !ok || ov.State != v.State || ov.At != v.At {
			return false
		}
	}
	for id := range s.loans {
		if _, ok := o.loans[id]; !ok {
			return false
		}
	}
	for l, id := range s.holders {
		if o.holders[l] != id {
			return false
		}
	}
	for id := range s.activated {
		if _, ok := o.activated[id]; !ok {
			return false
		}
	}
	return true
}

func (s *blockState) hasLoan(id LoanID) bool {
	_, ok := s.loans[id]
	return ok
}

func (s *blockState) isActivated(id LoanID) bool {
	_, ok := s.activated[id]
	return ok
}

func (s *blockState) dropLoan(id LoanID) {
	delete(s.loans, id)
	delete(s.activated, id)
	for l, held := range s.holders {
		if held == id {
			delete(s.holders, l)
		}
	}
}

// liveLoanIDs returns the live loans in ascending id order, for deterministic
// conflict reporting.
func (s *blockState) liveLoanIDs() []LoanID {
	ids := make([]LoanID, 0, len(s.loans))
	for id := range s.loans {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// sortedMoveKeys returns the move entry keys in lexical order, for
// deterministic blocking-entry selection.
func (s *blockState) sortedMoveKeys() []string {
	keys := make([]string, 0, len(s.moves))
	for k := range s.moves {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// join merges the exit state of one more predecessor into s.
//
// Move entries union with the worst status winning: a place moved on any
// incoming edge is unusable after the merge. Loans intersect by default (a
// loan survives only when live on every edge); strict mode unions them
// instead, surfacing conflicts that exist on only some paths. Activation is
// sticky: a loan activated on any edge stays activated.
func (s *blockState) join(o *blockState, strict bool) {
	for k, ov := range o.moves {
		cur, ok := s.moves[k]
		if !ok || ov.State > cur.State {
			s.moves[k] = ov
		}
	}

	if strict {
		for id := range o.loans {
			s.loans[id] = struct{}{}
		}
		for l, id := range o.holders {
			if _, ok := s.holders[l]; !ok {
				s.holders[l] = id
			}
		}
	} else {
		for id := range s.loans {
			if _, ok := o.loans[id]; !ok {
				delete(s.loans, id)
			}
		}
		for l, id := range s.holders {
			if o.holders[l] != id {
				delete(s.holders, l)
			}
		}
	}

	for id := range o.activated {
		s.activated[id] = struct{}{}
	}

	// Prune holder and activation records whose loan did not survive.
	for l, id := range s.holders {
		if !s.hasLoan(id) {
			delete(s.holders, l)
		}
	}
	for id := range s.activated {
		if !s.hasLoan(id) {
			delete(s.activated, id)
		}
	}
}
