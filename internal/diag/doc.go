// Package diag defines the diagnostic model shared by all analysis phases.
//
// Diagnostic is the central record: a severity, a stable code (E100..E106 for
// the user-facing borrow taxonomy, W-codes for warnings, X-codes for internal
// compiler errors), a message, a primary span, and optional notes pointing at
// related locations ("value moved here", "previous borrow occurs here").
//
// Producers emit through a Reporter so they stay decoupled from storage and
// formatting. BagReporter aggregates into a Bag, which supports sorting,
// deduplication and a hard cap. Rendering lives in internal/diagfmt.
//
// The model is deliberately data-only and deterministic: a fixed input always
// yields an identical bag, which the driver relies on for caching.
package diag
