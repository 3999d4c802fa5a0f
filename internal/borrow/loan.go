package borrow

import (
	"rill/internal/ir"
	"rill/internal/source"
)

// LoanID identifies one loan for the duration of a function's analysis.
// Zero is the invalid id.
type LoanID uint32

const NoLoanID LoanID = 0

// Loan records one borrow: what was borrowed, how, by whom, and where.
// Loans are immutable after creation; activation and expiry live in the
// per-block flow state instead.
type Loan struct {
	ID        LoanID
	Kind      ir.BorrowKind
	Place     ir.Place
	Holder    ir.LocalID
	CreatedAt ir.Point
	Span      source.Span
}

// loanTable is the per-function loan arena. The borrow instruction at a
// given program point always denotes the same loan, no matter how many times
// the fixpoint revisits it; keying by creation point keeps loan identity
// stable across iterations, which is what lets intersection joins converge.
type loanTable struct {
	infos   []Loan
	byPoint map[ir.Point]LoanID
}

func newLoanTable() *loanTable {
	return &loanTable{
		infos:   make([]Loan, 1), // index 0 is the invalid loan
		byPoint: make(map[ir.Point]LoanID),
	}
}

func (t *loanTable) create(kind ir.BorrowKind, place ir.Place, holder ir.LocalID, at ir.Point, span source.Span) LoanID {
	if id, ok := t.byPoint[at]; ok {
		return id
	}
	id := LoanID(len(t.infos)) //nolint:gosec // bounded by instruction count
	t.infos = append(t.infos, Loan{
		ID:        id,
		Kind:      kind,
		Place:     place,
		Holder:    holder,
		CreatedAt: at,
		Span:      span,
	})
	t.byPoint[at] = id
	return id
}

func (t *loanTable) get(id LoanID) *Loan {
	if id == NoLoanID || int(id) >= len(t.infos) {
		return nil
	}
	return &t.infos[id]
}

// all returns every loan created during analysis, in creation order.
func (t *loanTable) all() []Loan {
	return t.infos[1:]
}
