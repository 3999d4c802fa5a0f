package region

import (
	"errors"
	"fmt"

	"rill/internal/diag"
	"rill/internal/ir"
)

// CheckFunc validates the region obligations of one function body against
// its signature: elision is applied first, then every returned reference
// must come from a region proven to outlive the result region. Violations
// are reported as E106 diagnostics; the return value is false when any were
// emitted.
func CheckFunc(f *ir.Func, sig ir.Signature, reporter diag.Reporter) bool {
	elided, err := Elide(sig)
	if err != nil {
		msg := fmt.Sprintf("cannot infer output lifetime of '%s'", sig.Name)
		if errors.Is(err, ErrAmbiguous) {
			msg = err.Error()
		}
		diag.ReportError(reporter, diag.BorrowRegionEscape, sig.Span, msg).Emit()
		return false
	}

	if !elided.HasResult || !elided.Result.IsRef {
		return true
	}

	table := NewTable(elided.Bounds)
	ok := true
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		if bb.Term.Kind != ir.TermReturn || !bb.Term.Return.HasValue {
			continue
		}
		src := regionOf(f, elided, bb.Term.Return.Value.Local)
		if src == "" {
			continue
		}
		if table.Outlives(src, elided.Result.Region) {
			continue
		}
		ok = false
		label := bb.Term.Return.Value.DisplayName(f)
		msg := fmt.Sprintf("returned reference %s has region %s, which is not proven to outlive result region %s",
			label, src, elided.Result.Region)
		diag.ReportError(reporter, diag.BorrowRegionEscape, bb.Term.Span, msg).
			WithNote(sig.Span, fmt.Sprintf("consider declaring the bound %s: %s", src, elided.Result.Region)).
			Emit()
	}
	return ok
}

// regionOf resolves the region of a reference-typed local: an explicit
// annotation wins, otherwise a parameter inherits the (possibly elided)
// region of the matching signature parameter.
func regionOf(f *ir.Func, sig ir.Signature, id ir.LocalID) string {
	l := f.Local(id)
	if l == nil || !l.IsRef() {
		return ""
	}
	if l.Region != "" {
		return l.Region
	}
	if !l.IsParam() {
		return ""
	}
	for _, p := range sig.Params {
		if p.Name == l.Name {
			return p.Region
		}
	}
	return ""
}
