package diagfmt

import (
	"encoding/json"
	"io"

	"rill/internal/diag"
	"rill/internal/driver"
	"rill/internal/source"
)

// LocationJSON is a span rendered for machine consumption.
type LocationJSON struct {
	File      string `json:"file"`
	StartByte uint32 `json:"start_byte"`
	EndByte   uint32 `json:"end_byte"`
	StartLine uint32 `json:"start_line,omitempty"`
	StartCol  uint32 `json:"start_col,omitempty"`
	EndLine   uint32 `json:"end_line,omitempty"`
	EndCol    uint32 `json:"end_col,omitempty"`
}

type NoteJSON struct {
	Message  string       `json:"message"`
	Location LocationJSON `json:"location"`
}

type DiagnosticJSON struct {
	Severity string       `json:"severity"`
	Code     string       `json:"code"`
	Message  string       `json:"message"`
	Location LocationJSON `json:"location"`
	Notes    []NoteJSON   `json:"notes,omitempty"`
}

// LoanJSON is one loan snapshot from the analysis, for tooling.
type LoanJSON struct {
	Kind     string       `json:"kind"`
	Place    string       `json:"place"`
	Holder   string       `json:"holder,omitempty"`
	Location LocationJSON `json:"location"`
}

// FunctionJSON is the per-function verdict.
type FunctionJSON struct {
	Name        string           `json:"name"`
	Pass        bool             `json:"pass"`
	Cached      bool             `json:"cached,omitempty"`
	Diagnostics []DiagnosticJSON `json:"diagnostics,omitempty"`
	Loans       []LoanJSON       `json:"loans,omitempty"`
}

// ReportJSON is the root document of `check --format json`.
type ReportJSON struct {
	Module    string         `json:"module"`
	Path      string         `json:"path,omitempty"`
	Pass      bool           `json:"pass"`
	Functions []FunctionJSON `json:"functions"`
	Count     int            `json:"count"`
}

func makeLocation(span source.Span, fs *source.FileSet, includePositions bool) LocationJSON {
	loc := LocationJSON{
		StartByte: span.Start,
		EndByte:   span.End,
	}
	f := fs.Get(span.File)
	if f == nil {
		return loc
	}
	loc.File = f.Path
	if includePositions && len(f.Content) > 0 {
		start, end := fs.Resolve(span)
		loc.StartLine = start.Line
		loc.StartCol = start.Col
		loc.EndLine = end.Line
		loc.EndCol = end.Col
	}
	return loc
}

func makeDiagnostic(d diag.Diagnostic, fs *source.FileSet, opts JSONOpts) DiagnosticJSON {
	out := DiagnosticJSON{
		Severity: d.Severity.String(),
		Code:     d.Code.String(),
		Message:  d.Message,
		Location: makeLocation(d.Primary, fs, opts.IncludePositions),
	}
	for _, n := range d.Notes {
		out.Notes = append(out.Notes, NoteJSON{
			Message:  n.Msg,
			Location: makeLocation(n.Span, fs, opts.IncludePositions),
		})
	}
	return out
}

// BuildReport converts a module report into its JSON document.
func BuildReport(rep *driver.ModuleReport, fs *source.FileSet, opts JSONOpts) ReportJSON {
	out := ReportJSON{
		Module: rep.Module,
		Path:   rep.Path,
		Pass:   rep.Pass(),
	}
	for i := range rep.Funcs {
		fr := &rep.Funcs[i]
		fj := FunctionJSON{Name: fr.Name, Pass: fr.Pass, Cached: fr.Cached}
		for _, d := range fr.Bag.Items() {
			if opts.Max > 0 && out.Count >= opts.Max {
				break
			}
			fj.Diagnostics = append(fj.Diagnostics, makeDiagnostic(d, fs, opts))
			out.Count++
		}
		for _, loan := range fr.Loans {
			fj.Loans = append(fj.Loans, LoanJSON{
				Kind:     loan.Kind,
				Place:    loan.Place,
				Holder:   loan.Holder,
				Location: makeLocation(loan.Span, fs, opts.IncludePositions),
			})
		}
		out.Functions = append(out.Functions, fj)
	}
	return out
}

// WriteReport renders the module report as JSON to w.
func WriteReport(w io.Writer, rep *driver.ModuleReport, fs *source.FileSet, opts JSONOpts) error {
	doc := BuildReport(rep, fs, opts)
	enc := json.NewEncoder(w)
	if opts.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(doc)
}

// WriteDiagnostics renders a bare diagnostic list as JSON to w.
func WriteDiagnostics(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts JSONOpts) error {
	type document struct {
		Diagnostics []DiagnosticJSON `json:"diagnostics"`
		Count       int              `json:"count"`
	}
	doc := document{Diagnostics: make([]DiagnosticJSON, 0, bag.Len())}
	for _, d := range bag.Items() {
		if opts.Max > 0 && doc.Count >= opts.Max {
			break
		}
		doc.Diagnostics = append(doc.Diagnostics, makeDiagnostic(d, fs, opts))
		doc.Count++
	}
	enc := json.NewEncoder(w)
	if opts.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(doc)
}
