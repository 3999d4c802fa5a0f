package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Borrow/lifetime violations. These are the user-facing compile errors;
	// the numeric value matches the published E-code.
	BorrowUseAfterMove   Code = 100 // use of a place after it was moved
	BorrowDoubleDrop     Code = 101 // explicit drop of an already-dropped place
	BorrowExpiredLoan    Code = 102 // access through an expired or killed loan
	BorrowUniqueConflict Code = 103 // second exclusive loan on an overlapping place
	BorrowSharedConflict Code = 104 // shared loan vs exclusive loan on overlapping places
	BorrowMoveWhileLoan  Code = 105 // move of a place with a live loan
	BorrowRegionEscape   Code = 106 // region not proven to outlive its required scope

	// Warnings (strict/audit mode and structural cleanups).
	WarnUnusedLoan       Code = 900 // loan created but never read through
	WarnUnreachableBlock Code = 901 // block unreachable from entry, dropped

	// Internal failures. These abort analysis of one function and are never
	// part of the user-facing E1xx taxonomy.
	InternalMalformedIR  Code = 950 // terminator targets a non-existent block, etc.
	InternalDivergence   Code = 951 // fixpoint exceeded the iteration cap
	InternalLoadFailed   Code = 960 // IR bundle could not be read or decoded
)

// String returns the stable printable form of the code: E1xx for user-facing
// borrow errors, W9xx for warnings, X9xx for internal failures.
func (c Code) String() string {
	switch {
	case c == UnknownCode:
		return "E000"
	case c >= 100 && c < 900:
		return fmt.Sprintf("E%03d", uint16(c))
	case c >= 900 && c < 950:
		return fmt.Sprintf("W%03d", uint16(c))
	default:
		return fmt.Sprintf("X%03d", uint16(c))
	}
}

// IsInternal reports whether the code marks an internal compiler error rather
// than a user-facing diagnostic.
func (c Code) IsInternal() bool {
	return c >= 950
}

// IsWarning reports whether the code is in the warning range.
func (c Code) IsWarning() bool {
	return c >= 900 && c < 950
}

// ParseCode maps a printable form ("E100", "W900") back to a Code.
func ParseCode(s string) (Code, bool) {
	if len(s) != 4 {
		return UnknownCode, false
	}
	var n uint16
	if _, err := fmt.Sscanf(s[1:], "%03d", &n); err != nil {
		return UnknownCode, false
	}
	c := Code(n)
	switch s[0] {
	case 'E':
		if n >= 100 && n < 900 {
			return c, true
		}
	case 'W':
		if n >= 900 && n < 950 {
			return c, true
		}
	case 'X':
		if n >= 950 {
			return c, true
		}
	}
	return UnknownCode, false
}
