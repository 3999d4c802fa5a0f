// Package diagfmt renders diagnostic bags and analysis reports for humans
// (colored, with source context) and for tools (JSON).
package diagfmt

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color bool
	// Context is the number of source lines shown around the primary span.
	Context int
	// ShowNotes includes secondary locations.
	ShowNotes bool
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	// IncludePositions adds line/col to every location.
	IncludePositions bool
	// Max truncates the rendered list (the bag itself is untouched); 0
	// means no limit.
	Max int
	// Indent pretty-prints the JSON when true.
	Indent bool
}
