package ir

import (
	"errors"
	"fmt"
)

// Validate checks structural invariants of a function body: every block
// terminated, every terminator target in range, every referenced local
// declared, and a valid entry block. A violation means the lowering stage
// produced malformed IR; it is an internal error, not a user diagnostic.
func Validate(f *Func) error {
	if f == nil {
		return errors.New("nil function")
	}

	var errs []error

	if f.Block(f.Entry) == nil {
		errs = append(errs, fmt.Errorf("entry block bb%d does not exist", f.Entry))
	}

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		if !bb.Terminated() {
			errs = append(errs, fmt.Errorf("bb%d: missing terminator", bb.ID))
		}
		for _, target := range bb.Term.Targets() {
			if f.Block(target) == nil {
				errs = append(errs, fmt.Errorf("bb%d: terminator targets non-existent bb%d", bb.ID, target))
			}
		}
		if bb.Term.Kind == TermIf && f.Local(bb.Term.If.Cond) == nil {
			errs = append(errs, fmt.Errorf("bb%d: branch condition %%%d not declared", bb.ID, bb.Term.If.Cond))
		}
		if bb.Term.Kind == TermReturn && bb.Term.Return.HasValue {
			if err := validatePlace(f, bb.Term.Return.Value); err != nil {
				errs = append(errs, fmt.Errorf("bb%d: return value: %w", bb.ID, err))
			}
		}
		for j := range bb.Instrs {
			if err := validateInstr(f, &bb.Instrs[j]); err != nil {
				errs = append(errs, fmt.Errorf("bb%d:%d: %w", bb.ID, j, err))
			}
		}
	}

	return errors.Join(errs...)
}

func validateInstr(f *Func, ins *Instr) error {
	if ins.Kind == InstrNop {
		return nil
	}
	if err := validatePlace(f, ins.Place); err != nil {
		return err
	}
	if ins.Dest != NoLocalID && f.Local(ins.Dest) == nil {
		return fmt.Errorf("destination %%%d not declared", ins.Dest)
	}
	if ins.Kind == InstrBorrow && ins.Dest == NoLocalID {
		return errors.New("borrow without destination local")
	}
	if ins.HasFrom {
		if err := validatePlace(f, ins.From); err != nil {
			return fmt.Errorf("assign source: %w", err)
		}
	}
	return nil
}

func validatePlace(f *Func, p Place) error {
	if !p.IsValid() {
		return errors.New("invalid place")
	}
	if f.Local(p.Local) == nil {
		return fmt.Errorf("place root %%%d not declared", p.Local)
	}
	for _, proj := range p.Proj {
		if proj.Kind == ProjIndex && proj.Index != NoLocalID && f.Local(proj.Index) == nil {
			return fmt.Errorf("index local %%%d not declared", proj.Index)
		}
	}
	return nil
}
