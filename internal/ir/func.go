package ir

import "rill/internal/source"

type Block struct {
	ID     BlockID
	Instrs []Instr
	Term   Terminator
}

func (b *Block) Terminated() bool {
	if b == nil {
		return true
	}
	return b.Term.Kind != TermNone
}

// Func is one function body as produced by the lowering stage. It is
// read-only for the analyzer; all mutable analysis state lives elsewhere.
type Func struct {
	ID   FuncID
	Name string
	Span source.Span

	Locals []Local
	Blocks []Block
	Entry  BlockID
}

// Local returns the local for id, or nil when out of range.
func (f *Func) Local(id LocalID) *Local {
	if f == nil || id < 0 || int(id) >= len(f.Locals) {
		return nil
	}
	return &f.Locals[id]
}

// Block returns the block for id, or nil when out of range.
func (f *Func) Block(id BlockID) *Block {
	if f == nil || id < 0 || int(id) >= len(f.Blocks) {
		return nil
	}
	return &f.Blocks[id]
}

// LocalByName returns the first local with the given name.
func (f *Func) LocalByName(name string) LocalID {
	if f == nil {
		return NoLocalID
	}
	for i := range f.Locals {
		if f.Locals[i].Name == name {
			return LocalID(i) //nolint:gosec // bounded by local count
		}
	}
	return NoLocalID
}

// Instr returns the instruction at point p, or nil for terminator points.
func (f *Func) Instr(p Point) *Instr {
	b := f.Block(p.Block)
	if b == nil || p.Index < 0 || p.Index >= len(b.Instrs) {
		return nil
	}
	return &b.Instrs[p.Index]
}

// SpanAt returns the span of the statement or terminator at p.
func (f *Func) SpanAt(p Point) source.Span {
	if ins := f.Instr(p); ins != nil {
		return ins.Span
	}
	if b := f.Block(p.Block); b != nil && p.Index == len(b.Instrs) {
		return b.Term.Span
	}
	return f.Span
}
