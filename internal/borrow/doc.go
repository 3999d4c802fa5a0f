// Package borrow implements the forward dataflow analysis that tracks
// ownership and loans across a function body. For every reachable program
// point it maintains which places have been moved or dropped and which loans
// are live, iterating a worklist to a fixpoint before walking the body once
// more to emit diagnostics from the converged entry states.
//
// Loan lifetimes are usage-based: a loan dies at the last use of the local
// holding it, as computed by cfg.ComputeLiveness, not at lexical scope exit.
// Joins are conservative: a place moved on any incoming edge is moved after
// the merge, and a loan survives a merge only when live on every incoming
// edge (strict mode keeps loans live on any edge instead, surfacing more
// conflicts).
package borrow
