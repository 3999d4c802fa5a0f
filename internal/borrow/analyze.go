package borrow

import (
	"fmt"

	"rill/internal/cfg"
	"rill/internal/diag"
	"rill/internal/ir"
	"rill/internal/region"
)

// Options configures one function analysis.
type Options struct {
	// Strict enables the audit join (loans survive a merge when live on any
	// incoming edge) and unused-loan warnings.
	Strict bool
	// IterationCap bounds the dataflow worklist; zero uses the default.
	IterationCap int
	// Signatures supplies declared signatures for region checking. When the
	// analyzed function has no entry the region pass is skipped.
	Signatures *ir.SigTable
}

// Result is the outcome of analyzing one function.
type Result struct {
	// Pass is true when no error-severity diagnostic was produced.
	Pass bool
	// Bag holds every diagnostic, sorted and deduplicated.
	Bag *diag.Bag
	// Loans is a snapshot of every loan created during analysis, in
	// creation order, for tooling output.
	Loans []Loan
}

// Analyze runs the full borrow and region analysis over f. Structural errors
// in the IR and a diverging fixpoint are returned as errors, not
// diagnostics; the caller decides how to surface them.
func Analyze(f *ir.Func, opts Options) (Result, error) {
	bag := diag.NewBag(0)
	reporter := diag.BagReporter{Bag: bag}

	g, unreachable, err := cfg.Build(f)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", f.Name, err)
	}
	for _, id := range unreachable {
		bb := f.Block(id)
		diag.ReportWarning(reporter, diag.WarnUnreachableBlock, bb.Term.Span,
			fmt.Sprintf("block bb%d is unreachable", id)).Emit()
	}

	lv := cfg.ComputeLiveness(g)

	e := newEngine(f, g, lv, opts.Strict, opts.IterationCap, reporter)
	if err := e.run(); err != nil {
		return Result{}, fmt.Errorf("%s: %w", f.Name, err)
	}

	if sig, ok := opts.Signatures.Lookup(f.Name); ok {
		region.CheckFunc(f, sig, reporter)
	}

	if opts.Strict {
		e.warnUnusedLoans()
	}

	bag.Sort()
	bag.Dedup()
	return Result{
		Pass:  !bag.HasErrors(),
		Bag:   bag,
		Loans: e.table.all(),
	}, nil
}
