package ir

import "rill/internal/source"

type TermKind uint8

const (
	TermNone TermKind = iota
	TermGoto
	TermIf
	TermReturn
	TermUnreachable
)

type Terminator struct {
	Kind TermKind

	Goto   GotoTerm
	If     IfTerm
	Return ReturnTerm

	Span source.Span
}

type GotoTerm struct {
	Target BlockID
}

type IfTerm struct {
	// Cond is read when the branch executes.
	Cond LocalID
	Then BlockID
	Else BlockID
}

type ReturnTerm struct {
	HasValue bool
	// Value is moved out by the return for non-Copy values.
	Value Place
}

// Targets returns the successor blocks this terminator can jump to.
func (t Terminator) Targets() []BlockID {
	switch t.Kind {
	case TermGoto:
		return []BlockID{t.Goto.Target}
	case TermIf:
		return []BlockID{t.If.Then, t.If.Else}
	default:
		return nil
	}
}

// Goto builds an unconditional jump.
func GotoTo(target BlockID) Terminator {
	return Terminator{Kind: TermGoto, Goto: GotoTerm{Target: target}}
}

// IfThen builds a conditional branch on cond.
func IfThen(cond LocalID, then, els BlockID) Terminator {
	return Terminator{Kind: TermIf, If: IfTerm{Cond: cond, Then: then, Else: els}}
}

// Ret builds a valueless return.
func Ret() Terminator {
	return Terminator{Kind: TermReturn}
}

// RetValue builds a return moving out value.
func RetValue(value Place) Terminator {
	return Terminator{Kind: TermReturn, Return: ReturnTerm{HasValue: true, Value: value}}
}

// Unreachable marks a block that control flow never reaches at runtime.
func Unreachable() Terminator {
	return Terminator{Kind: TermUnreachable}
}
