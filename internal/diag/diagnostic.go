package diag

import (
	"rill/internal/source"
)

// Note is a secondary location attached to a diagnostic, e.g. the point where
// a conflicting loan was created.
type Note struct {
	Span source.Span
	Msg  string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  source.Span
	Notes    []Note
}
