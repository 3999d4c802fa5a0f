package ir

import "rill/internal/source"

// InstrKind enumerates statement effects in the lowered IR. The lowering
// stage tags every statement with the place it touches and the effect kind;
// the analyzer never re-derives effects from expressions.
type InstrKind uint8

const (
	// InstrNop has no effect.
	InstrNop InstrKind = iota
	// InstrAssign (re)initializes Place, clearing Moved/Dropped and
	// invalidating loans of the old value. When HasFrom is set the source
	// place is read with copy semantics first.
	InstrAssign
	// InstrMove transfers ownership out of Place (e.g. a by-value call
	// argument). Dest, when valid, is initialized by the moved value.
	InstrMove
	// InstrBorrow creates a loan of kind Borrow on Place, held in Dest.
	InstrBorrow
	// InstrRead reads Place. When the root local holds a reference the read
	// goes through that reference's loan.
	InstrRead
	// InstrWrite writes Place, or writes through the reference held at the
	// root local. The first write through a reserved loan activates it.
	InstrWrite
	// InstrDrop releases Place explicitly.
	InstrDrop
)

func (k InstrKind) String() string {
	switch k {
	case InstrNop:
		return "nop"
	case InstrAssign:
		return "assign"
	case InstrMove:
		return "move"
	case InstrBorrow:
		return "borrow"
	case InstrRead:
		return "read"
	case InstrWrite:
		return "write"
	case InstrDrop:
		return "drop"
	default:
		return "unknown"
	}
}

type Instr struct {
	Kind InstrKind

	// Place is the location the effect applies to.
	Place Place

	// Dest receives a borrow result or a moved value; NoLocalID when unused.
	Dest LocalID

	// Borrow is the loan kind for InstrBorrow.
	Borrow BorrowKind

	// From is the optional copy-read source of InstrAssign.
	From    Place
	HasFrom bool

	Span source.Span
}

// Nop returns a no-op instruction.
func Nop() Instr {
	return Instr{Kind: InstrNop, Dest: NoLocalID}
}

// Assign builds a reassignment of dst with no read source.
func Assign(dst Place) Instr {
	return Instr{Kind: InstrAssign, Place: dst, Dest: NoLocalID}
}

// AssignFrom builds a reassignment of dst copying from src.
func AssignFrom(dst, src Place) Instr {
	return Instr{Kind: InstrAssign, Place: dst, From: src, HasFrom: true, Dest: NoLocalID}
}

// Move builds a move out of src into dest (NoLocalID for a consumed value).
func Move(src Place, dest LocalID) Instr {
	return Instr{Kind: InstrMove, Place: src, Dest: dest}
}

// Borrow builds a loan of kind on src held in dest.
func Borrow(src Place, kind BorrowKind, dest LocalID) Instr {
	return Instr{Kind: InstrBorrow, Place: src, Borrow: kind, Dest: dest}
}

// Read builds a read of src.
func Read(src Place) Instr {
	return Instr{Kind: InstrRead, Place: src, Dest: NoLocalID}
}

// Write builds a write to dst.
func Write(dst Place) Instr {
	return Instr{Kind: InstrWrite, Place: dst, Dest: NoLocalID}
}

// Drop builds an explicit drop of target.
func Drop(target Place) Instr {
	return Instr{Kind: InstrDrop, Place: target, Dest: NoLocalID}
}
