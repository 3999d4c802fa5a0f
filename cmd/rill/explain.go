package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"rill/internal/diag"
)

// explanation is the long-form documentation behind a diagnostic code.
type explanation struct {
	Code    diag.Code
	Title   string
	Details string
}

var explanations = []explanation{
	{
		Code:  diag.BorrowUseAfterMove,
		Title: "use of a moved value",
		Details: `A place was read, written, borrowed, moved, or dropped after its value
had already been moved out. Moving transfers ownership: the source is
left uninitialized and every later access through it is invalid.

Moving a single field poisons the whole aggregate: the struct becomes
partially moved and cannot be used as a whole until the moved field is
reassigned.

Fix it by reordering the accesses, by moving a copyable value instead
(copy moves behave as reads), or by reassigning the place before the
later use. Reassignment fully restores the place, including a
partially moved one when the missing field is written back.`,
	},
	{
		Code:  diag.BorrowDoubleDrop,
		Title: "double drop",
		Details: `An explicit drop ran on a place whose value was already dropped on
every path reaching it. Dropping an already-moved place is a no-op
and does not raise this error; only drop-after-drop does.

If the two drops live on different branches that rejoin, the analysis
still reports the later drop: after the join the value is considered
dropped when any incoming path dropped it.`,
	},
	{
		Code:  diag.BorrowExpiredLoan,
		Title: "access through an expired reference",
		Details: `A reference was dereferenced after its loan ended. Loans end in two
ways: the referent was dropped or reassigned (the loan is invalidated
at that point, which the diagnostic notes show), or control flow
merged paths on which the loan did not exist on every edge.

In default mode a loan survives a join only when it is live on every
incoming edge. Run with --strict to keep any-edge loans alive and
surface the overlap as a conflict instead.`,
	},
	{
		Code:  diag.BorrowUniqueConflict,
		Title: "conflicting exclusive borrows",
		Details: `Two exclusive loans overlapped, or a place was written directly while
an exclusive loan on it was live. An exclusive loan grants its holder
sole access: no other loan, read, or write may touch the place until
the holder's last use.

Reserved (two-phase) exclusive loans also report this code when their
first write activates while an overlapping shared loan is still live.

Fix it by shortening one of the loans: the analysis ends a loan at
the holder's last use, so moving the conflicting access after that
point resolves the error.`,
	},
	{
		Code:  diag.BorrowSharedConflict,
		Title: "shared/exclusive borrow conflict",
		Details: `A shared loan and an exclusive access collided: reading a place with
a live exclusive loan, writing a place with a live shared loan,
writing through a shared reference, or creating one kind of loan
while the other kind is live on an overlapping place.

Any number of shared loans may coexist; exclusivity is only required
for mutation. Reserved exclusive loans tolerate shared reads until
their first write.`,
	},
	{
		Code:  diag.BorrowMoveWhileLoan,
		Title: "move of a borrowed value",
		Details: `A place was moved while a loan on it (or an overlapping place) was
still live. Moving would leave every outstanding reference dangling,
so the move itself is the error; subsequent uses of the references
are not re-reported.

The loan ends at its holder's last use. If the move can be reordered
after that use, no conflict remains.`,
	},
	{
		Code:  diag.BorrowRegionEscape,
		Title: "reference outlives its region",
		Details: `A function signature requires a returned or stored reference to
outlive a region that the analysis cannot prove it outlives. Region
relationships come from the signature table: explicit outlives
constraints plus the elided ones (a single reference parameter
donates its region to reference results).

Fix it by tightening the signature (declare the outlives relation the
body actually provides) or by returning an owned value instead.`,
	},
	{
		Code:  diag.WarnUnusedLoan,
		Title: "unused borrow (strict mode)",
		Details: `Strict mode only. A loan was created but nothing was ever read or
written through its holder. The borrow is dead weight and usually a
leftover from a refactor; delete it or use it.`,
	},
	{
		Code:  diag.WarnUnreachableBlock,
		Title: "unreachable block",
		Details: `A basic block cannot be reached from the function entry. The block is
skipped by the analysis entirely, so violations inside it are not
reported. Unreachable code after lowering usually indicates a
front-end bug or dead branches worth deleting.`,
	},
	{
		Code:  diag.InternalMalformedIR,
		Title: "malformed IR",
		Details: `The function's IR failed structural validation: a terminator targets
a block that does not exist, an instruction names an undeclared
local, or a projection is inconsistent. The function was skipped.
This is a bug in the tool that produced the bundle, not in the
analyzed program.`,
	},
	{
		Code:  diag.InternalDivergence,
		Title: "analysis divergence",
		Details: `The dataflow fixpoint did not converge within the iteration cap and
the function was skipped. This should not happen on well-formed IR;
raising --iteration-cap works around it, and a reproducing bundle is
worth a bug report.`,
	},
	{
		Code:  diag.InternalLoadFailed,
		Title: "bundle load failure",
		Details: `An IR bundle could not be read or decoded: the file is missing,
truncated, or contains fields the current schema does not know.
Re-running the lowering stage that produced the bundle usually
resolves it.`,
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain <code>",
	Short: "Explain a diagnostic code in detail",
	Long: `Explain what a diagnostic code means, why the analysis reports it, and
how to resolve it. Codes look like E100 (errors), W900 (warnings), or
X950 (internal failures). Run without arguments to list every code.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExplain,
}

func runExplain(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		listExplanations(out)
		return nil
	}

	raw := strings.ToUpper(strings.TrimSpace(args[0]))
	code, ok := diag.ParseCode(raw)
	if !ok {
		return fmt.Errorf("unknown diagnostic code %q (try E100..E106, W900, W901, X950..X960)", args[0])
	}
	for _, e := range explanations {
		if e.Code == code {
			printExplanation(out, e)
			return nil
		}
	}
	return fmt.Errorf("no explanation recorded for %s", code)
}

func listExplanations(out io.Writer) {
	sorted := make([]explanation, len(explanations))
	copy(sorted, explanations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	bold := color.New(color.Bold)
	for _, e := range sorted {
		fmt.Fprintf(out, "%s  %s\n", bold.Sprint(e.Code.String()), e.Title)
	}
	fmt.Fprintln(out, "\nrun `rill explain <code>` for the full story")
}

func printExplanation(out io.Writer, e explanation) {
	header := color.New(color.Bold)
	fmt.Fprintf(out, "%s: %s\n\n", header.Sprint(e.Code.String()), e.Title)
	fmt.Fprintln(out, e.Details)
}
