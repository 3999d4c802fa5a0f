// Package driver fans the borrow analysis out over a module's functions:
// bounded parallelism with context cancellation, a per-function verdict
// cache, and deterministic report ordering regardless of completion order.
package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"rill/internal/borrow"
	"rill/internal/bundle"
	"rill/internal/cfg"
	"rill/internal/diag"
	"rill/internal/ir"
	"rill/internal/source"
)

// Status is the lifecycle of one function's analysis, for progress UIs.
type Status uint8

const (
	StatusQueued Status = iota
	StatusRunning
	StatusCached
	StatusPass
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "checking"
	case StatusCached:
		return "cached"
	case StatusPass:
		return "ok"
	case StatusFail:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one progress update, keyed by function name.
type Event struct {
	Func   string
	Status Status
}

// Options configures a module check.
type Options struct {
	Strict       bool
	IterationCap int
	// Jobs limits concurrent analyses; 0 means GOMAXPROCS.
	Jobs int
	// MaxDiagnostics caps the diagnostics kept per function; 0 means no cap.
	MaxDiagnostics int
	// Cache, when non-nil, is consulted before analyzing and updated after.
	Cache *DiskCache
	// Events, when non-nil, receives progress updates. The consumer must
	// keep draining until CheckModule returns.
	Events chan<- Event
}

// LoanInfo is a rendered loan snapshot for tooling output.
type LoanInfo struct {
	Kind   string
	Place  string
	Holder string
	Span   source.Span
}

// FuncReport is the verdict for one function.
type FuncReport struct {
	Name   string
	Pass   bool
	Cached bool
	Bag    *diag.Bag
	Loans  []LoanInfo
}

// ModuleReport aggregates per-function verdicts in input order.
type ModuleReport struct {
	Module string
	Path   string
	FileID source.FileID
	Funcs  []FuncReport
}

// Pass reports whether every function passed.
func (r *ModuleReport) Pass() bool {
	for i := range r.Funcs {
		if !r.Funcs[i].Pass {
			return false
		}
	}
	return true
}

// Merged returns all diagnostics of the module in one sorted bag.
func (r *ModuleReport) Merged() *diag.Bag {
	out := diag.NewBag(0)
	for i := range r.Funcs {
		out.Merge(r.Funcs[i].Bag)
	}
	out.Sort()
	return out
}

// CheckModule analyzes every function of m. Function order in the report
// matches m.Funcs; a context cancellation aborts outstanding work and is
// returned as the error.
func CheckModule(ctx context.Context, m *bundle.Module, opts Options) (*ModuleReport, error) {
	report := &ModuleReport{
		Module: m.Name,
		Path:   m.Path,
		FileID: m.FileID,
		Funcs:  make([]FuncReport, len(m.Funcs)),
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	if len(m.Funcs) == 0 {
		return report, nil
	}

	for _, fn := range m.Funcs {
		emit(ctx, opts.Events, Event{Func: fn.Name, Status: StatusQueued})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(m.Funcs)))

	for i, fn := range m.Funcs {
		i, fn := i, fn
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			emit(gctx, opts.Events, Event{Func: fn.Name, Status: StatusRunning})

			// Slot i is owned by this goroutine, no lock needed.
			report.Funcs[i] = checkFunc(fn, m.Sigs, opts)

			status := StatusPass
			switch {
			case !report.Funcs[i].Pass:
				status = StatusFail
			case report.Funcs[i].Cached:
				status = StatusCached
			}
			emit(gctx, opts.Events, Event{Func: fn.Name, Status: status})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

func checkFunc(fn *ir.Func, sigs *ir.SigTable, opts Options) FuncReport {
	sig, hasSig := sigs.Lookup(fn.Name)
	key := verdictKey(fn, sig, hasSig, opts.Strict, opts.IterationCap)

	if opts.Cache != nil {
		var cached Payload
		if hit, err := opts.Cache.Get(key, &cached); err == nil && hit {
			rep := fromPayload(fn, &cached)
			rep.Cached = true
			return rep
		}
	}

	rep := analyzeFunc(fn, sigs, opts)

	if opts.Cache != nil && rep.Bag.Cap() > uint16(rep.Bag.Len()) { //nolint:gosec // Len is capped
		// Never cache a truncated bag: a rerun with a higher cap must not
		// see the clipped verdict.
		_ = opts.Cache.Put(key, toPayload(&rep))
	}
	return rep
}

func analyzeFunc(fn *ir.Func, sigs *ir.SigTable, opts Options) FuncReport {
	res, err := borrow.Analyze(fn, borrow.Options{
		Strict:       opts.Strict,
		IterationCap: opts.IterationCap,
		Signatures:   sigs,
	})
	if err != nil {
		bag := diag.NewBag(opts.MaxDiagnostics)
		code := diag.InternalMalformedIR
		if errors.Is(err, borrow.ErrDivergence) {
			code = diag.InternalDivergence
		} else if !errors.Is(err, cfg.ErrMalformed) {
			code = diag.InternalLoadFailed
		}
		bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     code,
			Message:  fmt.Sprintf("internal: %v", err),
			Primary:  fn.Span,
		})
		return FuncReport{Name: fn.Name, Pass: false, Bag: bag}
	}

	bag := res.Bag
	if opts.MaxDiagnostics > 0 {
		capped := diag.NewBag(opts.MaxDiagnostics)
		capped.Merge(res.Bag)
		bag = capped
	}

	loans := make([]LoanInfo, 0, len(res.Loans))
	for _, loan := range res.Loans {
		info := LoanInfo{
			Kind:  loan.Kind.String(),
			Place: loan.Place.DisplayName(fn),
			Span:  loan.Span,
		}
		if l := fn.Local(loan.Holder); l != nil {
			info.Holder = l.Name
		}
		loans = append(loans, info)
	}

	return FuncReport{
		Name:  fn.Name,
		Pass:  res.Pass,
		Bag:   bag,
		Loans: loans,
	}
}

func emit(ctx context.Context, ch chan<- Event, ev Event) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}

func toPayload(rep *FuncReport) *Payload {
	p := &Payload{Schema: cacheSchemaVersion, Pass: rep.Pass}
	for _, d := range rep.Bag.Items() {
		pd := PayloadDiag{
			Code:     uint16(d.Code),
			Severity: uint8(d.Severity),
			Message:  d.Message,
			Start:    d.Primary.Start,
			End:      d.Primary.End,
		}
		for _, n := range d.Notes {
			pd.Notes = append(pd.Notes, PayloadNote{Message: n.Msg, Start: n.Span.Start, End: n.Span.End})
		}
		p.Diags = append(p.Diags, pd)
	}
	for _, l := range rep.Loans {
		p.Loans = append(p.Loans, PayloadLoan{
			Kind:   l.Kind,
			Place:  l.Place,
			Holder: l.Holder,
			Start:  l.Span.Start,
			End:    l.Span.End,
		})
	}
	return p
}

func fromPayload(fn *ir.Func, p *Payload) FuncReport {
	file := fn.Span.File
	bag := diag.NewBag(0)
	for _, pd := range p.Diags {
		d := diag.Diagnostic{
			Severity: diag.Severity(pd.Severity),
			Code:     diag.Code(pd.Code),
			Message:  pd.Message,
			Primary:  source.Span{File: file, Start: pd.Start, End: pd.End},
		}
		for _, n := range pd.Notes {
			d.Notes = append(d.Notes, diag.Note{
				Span: source.Span{File: file, Start: n.Start, End: n.End},
				Msg:  n.Message,
			})
		}
		bag.Add(d)
	}
	loans := make([]LoanInfo, 0, len(p.Loans))
	for _, l := range p.Loans {
		loans = append(loans, LoanInfo{
			Kind:   l.Kind,
			Place:  l.Place,
			Holder: l.Holder,
			Span:   source.Span{File: file, Start: l.Start, End: l.End},
		})
	}
	return FuncReport{Name: fn.Name, Pass: p.Pass, Bag: bag, Loans: loans}
}
