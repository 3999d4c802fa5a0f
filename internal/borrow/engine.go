package borrow

import (
	"errors"
	"fmt"

	"rill/internal/cfg"
	"rill/internal/diag"
	"rill/internal/ir"
	"rill/internal/source"
)

// ErrDivergence signals that the dataflow fixpoint did not stabilize within
// the iteration cap. The function's state space is finite so this indicates
// an engine bug, not a property of the analyzed program.
var ErrDivergence = errors.New("borrow analysis diverged")

// defaultIterationCap bounds worklist iterations per function.
const defaultIterationCap = 1000

type engine struct {
	fn    *ir.Func
	g     *cfg.Graph
	lv    *cfg.Liveness
	table *loanTable

	strict bool
	cap    int

	// killed maps each invalidated loan to the statement that killed it.
	killed map[LoanID]ir.Point
	// lastHeld remembers the most recent loan bound to each reference
	// local, for expired-borrow messages after the loan left the flow state.
	lastHeld map[ir.LocalID]LoanID
	// used collects loans accessed through their holder during the
	// reporting walk; the remainder are flagged in strict mode.
	used map[LoanID]struct{}

	entryState []*blockState
	exitState  []*blockState
	visited    []bool

	reporter diag.Reporter
}

func newEngine(fn *ir.Func, g *cfg.Graph, lv *cfg.Liveness, strict bool, iterCap int, reporter diag.Reporter) *engine {
	if iterCap <= 0 {
		iterCap = defaultIterationCap
	}
	n := len(fn.Blocks)
	return &engine{
		fn:         fn,
		g:          g,
		lv:         lv,
		table:      newLoanTable(),
		strict:     strict,
		cap:        iterCap,
		killed:     make(map[LoanID]ir.Point),
		lastHeld:   make(map[ir.LocalID]LoanID),
		used:       make(map[LoanID]struct{}),
		entryState: make([]*blockState, n),
		exitState:  make([]*blockState, n),
		visited:    make([]bool, n),
		reporter:   reporter,
	}
}

// run iterates the forward dataflow to a fixpoint, then re-walks every
// reachable block from its converged entry state with reporting enabled.
// Splitting the phases keeps diagnostics deduplicated by construction: each
// program point is visited exactly once with emit on.
func (e *engine) run() error {
	worklist := []ir.BlockID{e.g.Entry()}
	queued := map[ir.BlockID]bool{e.g.Entry(): true}

	iterations := 0
	for len(worklist) > 0 {
		iterations++
		if iterations > e.cap {
			return fmt.Errorf("%w: no fixpoint after %d iterations", ErrDivergence, e.cap)
		}

		id := worklist[0]
		worklist = worklist[1:]
		queued[id] = false

		in := e.joinPreds(id)
		if e.visited[id] && in.equal(e.entryState[id]) {
			continue
		}
		e.entryState[id] = in

		out := e.transferBlock(id, in.clone(), false)
		changed := !e.visited[id] || !out.equal(e.exitState[id])
		e.visited[id] = true
		e.exitState[id] = out

		if changed {
			for _, succ := range e.g.Succs(id) {
				if !queued[succ] {
					worklist = append(worklist, succ)
					queued[succ] = true
				}
			}
		}
	}

	for _, id := range e.g.Order() {
		e.transferBlock(id, e.entryState[id].clone(), true)
	}
	return nil
}

// joinPreds merges the exit states of id's visited predecessors. The entry
// block, and any block reached before its predecessors, starts from the
// initial state where every local is unmoved and no loan exists.
func (e *engine) joinPreds(id ir.BlockID) *blockState {
	var acc *blockState
	for _, pred := range e.g.Preds(id) {
		if !e.visited[pred] {
			continue
		}
		if acc == nil {
			acc = e.exitState[pred].clone()
			continue
		}
		acc.join(e.exitState[pred], e.strict)
	}
	if acc == nil {
		return newBlockState()
	}
	return acc
}

// reportf starts a diagnostic when emitting is enabled. Builder methods
// tolerate the nil returned during the silent fixpoint phase.
func (e *engine) reportf(emit bool, code diag.Code, at ir.Point, format string, args ...any) *diag.ReportBuilder {
	if !emit || e.reporter == nil {
		return nil
	}
	sev := diag.SevError
	if code.IsWarning() {
		sev = diag.SevWarning
	}
	return diag.NewReportBuilder(e.reporter, sev, code, e.spanAt(at), fmt.Sprintf(format, args...))
}

func (e *engine) spanAt(at ir.Point) source.Span {
	return e.fn.SpanAt(at)
}

// warnUnusedLoans flags loans that were created but never accessed through
// their holder. Only meaningful after the reporting walk.
func (e *engine) warnUnusedLoans() {
	for _, loan := range e.table.all() {
		if _, ok := e.used[loan.ID]; ok {
			continue
		}
		diag.ReportWarning(e.reporter, diag.WarnUnusedLoan, loan.Span,
			fmt.Sprintf("borrow of `%s` is never used", loan.Place.DisplayName(e.fn))).Emit()
	}
}
