package ir

import "rill/internal/source"

type FuncID int32
type BlockID int32
type LocalID int32

const (
	NoFuncID  FuncID  = -1
	NoBlockID BlockID = -1
	NoLocalID LocalID = -1
)

type LocalFlags uint8

const (
	// LocalFlagCopy marks a duplicable value: moves degrade to reads.
	LocalFlagCopy LocalFlags = 1 << iota
	// LocalFlagRef marks a local holding a shared reference.
	LocalFlagRef
	// LocalFlagRefMut marks a local holding an exclusive reference.
	LocalFlagRefMut
	// LocalFlagParam marks a function parameter.
	LocalFlagParam
	// LocalFlagReceiver marks the implicit method receiver parameter.
	LocalFlagReceiver
)

// Local is a declared variable of the function being analyzed.
// Region is the lifetime name attached to reference-typed locals; empty means
// elided (region inference will assign one) or not a reference at all.
type Local struct {
	Name   string
	Flags  LocalFlags
	Region string
	Span   source.Span
}

func (l Local) IsCopy() bool {
	return l.Flags&LocalFlagCopy != 0
}

func (l Local) IsRef() bool {
	return l.Flags&(LocalFlagRef|LocalFlagRefMut) != 0
}

func (l Local) IsRefMut() bool {
	return l.Flags&LocalFlagRefMut != 0
}

func (l Local) IsParam() bool {
	return l.Flags&LocalFlagParam != 0
}

func (l Local) IsReceiver() bool {
	return l.Flags&LocalFlagReceiver != 0
}

// BorrowKind differentiates the three loan flavours.
type BorrowKind uint8

const (
	// BorrowShared is a read-only loan; many may coexist.
	BorrowShared BorrowKind = iota
	// BorrowUnique is an exclusive read/write loan; at most one live at a time.
	BorrowUnique
	// BorrowReserved is a two-phase mutable loan: reserved at creation,
	// promoted to Unique semantics on the first write through it.
	BorrowReserved
)

func (k BorrowKind) String() string {
	switch k {
	case BorrowShared:
		return "shared"
	case BorrowUnique:
		return "unique"
	case BorrowReserved:
		return "reserved"
	default:
		return "unknown"
	}
}
