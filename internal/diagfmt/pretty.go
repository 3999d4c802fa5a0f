package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"rill/internal/diag"
	"rill/internal/source"
)

var (
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	infoColor = color.New(color.FgCyan, color.Bold)
	noteColor = color.New(color.FgBlue)
	lineColor = color.New(color.Faint)
	markColor = color.New(color.FgRed)
)

// Pretty renders the bag in human-readable form. Bags are expected to be
// sorted already. Each diagnostic prints as
//
//	<path>:<line>:<col>: <SEV> <CODE>: <message>
//
// followed by the source line with a ^~~~ underline for the span and the
// notes in the same layout.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	for _, d := range bag.Items() {
		printHeader(w, fs, d, opts)
		printContext(w, fs, d.Primary, markColor, opts)
		if opts.ShowNotes {
			for _, n := range d.Notes {
				printNote(w, fs, n, opts)
			}
		}
	}
}

func printHeader(w io.Writer, fs *source.FileSet, d diag.Diagnostic, opts PrettyOpts) {
	sev := severityPaint(d.Severity)
	label := fmt.Sprintf("%s %s", d.Severity, d.Code)
	if opts.Color {
		label = sev.Sprintf("%s %s", d.Severity, d.Code)
	}
	fmt.Fprintf(w, "%s: %s: %s\n", location(fs, d.Primary), label, d.Message)
}

func printNote(w io.Writer, fs *source.FileSet, n diag.Note, opts PrettyOpts) {
	label := "note"
	if opts.Color {
		label = noteColor.Sprint("note")
	}
	fmt.Fprintf(w, "  %s: %s: %s\n", location(fs, n.Span), label, n.Msg)
	printContext(w, fs, n.Span, noteColor, opts)
}

func severityPaint(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return errColor
	case diag.SevWarning:
		return warnColor
	default:
		return infoColor
	}
}

func location(fs *source.FileSet, span source.Span) string {
	f := fs.Get(span.File)
	if f == nil {
		return "<unknown>"
	}
	if len(f.Content) == 0 {
		return f.Path
	}
	start, _ := fs.Resolve(span)
	return fmt.Sprintf("%s:%d:%d", f.Path, start.Line, start.Col)
}

// printContext shows the source line of the span with an underline. Skipped
// silently when the file carries no text (bare bundles).
func printContext(w io.Writer, fs *source.FileSet, span source.Span, paint *color.Color, opts PrettyOpts) {
	f := fs.Get(span.File)
	if f == nil || len(f.Content) == 0 || span.Empty() {
		return
	}
	start, end := fs.Resolve(span)

	lines := strings.Split(string(f.Content), "\n")
	if int(start.Line) > len(lines) {
		return
	}
	text := lines[start.Line-1]

	printLine := func(num int) {
		g := fmt.Sprintf("%5d | ", num)
		if opts.Color {
			fmt.Fprintf(w, "%s%s\n", lineColor.Sprint(g), lines[num-1])
		} else {
			fmt.Fprintf(w, "%s%s\n", g, lines[num-1])
		}
	}
	for n := int(start.Line) - opts.Context; n < int(start.Line); n++ {
		if n >= 1 {
			printLine(n)
		}
	}

	gutter := fmt.Sprintf("%5d | ", start.Line)
	if opts.Color {
		fmt.Fprintf(w, "%s%s\n", lineColor.Sprint(gutter), text)
	} else {
		fmt.Fprintf(w, "%s%s\n", gutter, text)
	}

	markLen := 1
	if end.Line == start.Line && end.Col > start.Col {
		markLen = int(end.Col - start.Col)
	}
	marker := strings.Repeat(" ", int(start.Col)-1) + "^" + strings.Repeat("~", max(markLen-1, 0))
	pad := strings.Repeat(" ", len(gutter))
	if opts.Color {
		marker = paint.Sprint(marker)
	}
	fmt.Fprintf(w, "%s%s\n", pad, marker)

	for n := int(start.Line) + 1; n <= int(start.Line)+opts.Context; n++ {
		if n <= len(lines) {
			printLine(n)
		}
	}
}

// Summary prints the closing pass/fail line.
func Summary(w io.Writer, errs, warns int, opts PrettyOpts) {
	switch {
	case errs > 0:
		msg := fmt.Sprintf("%d error(s), %d warning(s)", errs, warns)
		if opts.Color {
			msg = errColor.Sprint(msg)
		}
		fmt.Fprintln(w, msg)
	case warns > 0:
		msg := fmt.Sprintf("ok, %d warning(s)", warns)
		if opts.Color {
			msg = warnColor.Sprint(msg)
		}
		fmt.Fprintln(w, msg)
	default:
		msg := "ok"
		if opts.Color {
			msg = color.New(color.FgGreen, color.Bold).Sprint(msg)
		}
		fmt.Fprintln(w, msg)
	}
}
