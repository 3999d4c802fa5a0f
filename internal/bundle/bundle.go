// Package bundle loads analysis inputs: JSON documents carrying the lowered
// IR of one module (functions plus declared signatures) as produced by the
// external lowering stage. The surface source text travels with the bundle so
// diagnostics can resolve spans to line:col without the original file on
// disk.
package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"rill/internal/ir"
	"rill/internal/source"
)

// File is the top-level bundle document.
type File struct {
	Module     string      `json:"module"`
	Source     SourceRef   `json:"source"`
	Functions  []Function  `json:"functions"`
	Signatures []Signature `json:"signatures,omitempty"`
}

// SourceRef names the surface file the IR was lowered from and, optionally,
// embeds its text for span resolution.
type SourceRef struct {
	Path string `json:"path"`
	Text string `json:"text,omitempty"`
}

type Function struct {
	Name   string  `json:"name"`
	Entry  int     `json:"entry"`
	Locals []Local `json:"locals"`
	Blocks []Block `json:"blocks"`
	Span   []int   `json:"span,omitempty"`
}

type Local struct {
	Name   string   `json:"name"`
	Flags  []string `json:"flags,omitempty"`
	Region string   `json:"region,omitempty"`
	Span   []int    `json:"span,omitempty"`
}

type Block struct {
	Instrs []Instr    `json:"instrs,omitempty"`
	Term   Terminator `json:"term"`
}

type Instr struct {
	Op    string `json:"op"`
	Place *Place `json:"place,omitempty"`
	From  *Place `json:"from,omitempty"`
	Dest  string `json:"dest,omitempty"`
	Kind  string `json:"kind,omitempty"`
	Span  []int  `json:"span,omitempty"`
}

type Terminator struct {
	Op     string `json:"op"`
	Target int    `json:"target,omitempty"`
	Cond   string `json:"cond,omitempty"`
	Then   int    `json:"then,omitempty"`
	Else   int    `json:"else,omitempty"`
	Value  *Place `json:"value,omitempty"`
	Span   []int  `json:"span,omitempty"`
}

type Place struct {
	Local string `json:"local"`
	Proj  []Proj `json:"proj,omitempty"`
}

type Proj struct {
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
	Index string `json:"index,omitempty"`
}

type Signature struct {
	Name    string     `json:"name"`
	Regions []string   `json:"regions,omitempty"`
	Params  []SigParam `json:"params,omitempty"`
	Result  *SigResult `json:"result,omitempty"`
	Bounds  [][]string `json:"bounds,omitempty"`
}

type SigParam struct {
	Name     string `json:"name"`
	Ref      bool   `json:"ref,omitempty"`
	Mut      bool   `json:"mut,omitempty"`
	Region   string `json:"region,omitempty"`
	Receiver bool   `json:"receiver,omitempty"`
}

type SigResult struct {
	Ref    bool   `json:"ref,omitempty"`
	Mut    bool   `json:"mut,omitempty"`
	Region string `json:"region,omitempty"`
}

// Module is the decoded, IR-level form of one bundle.
type Module struct {
	Name   string
	FileID source.FileID
	Path   string
	Funcs  []*ir.Func
	Sigs   *ir.SigTable
}

// Load reads and builds the bundle at path, registering its source text in
// fset for span resolution.
func Load(fset *source.FileSet, path string) (*Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	m, err := Decode(fset, f)
	if err != nil {
		return nil, fmt.Errorf("bundle %s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// Decode parses a bundle document from r and lowers it into IR.
func Decode(fset *source.FileSet, r io.Reader) (*Module, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var doc File
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return doc.Build(fset)
}

// Build lowers the document into IR functions and a signature table. All
// local and block references are resolved and range-checked here so the
// analyzer can trust the result structurally.
func (doc *File) Build(fset *source.FileSet) (*Module, error) {
	name := doc.Source.Path
	if name == "" {
		name = doc.Module + ".rl"
	}
	fileID := fset.AddVirtual(name, []byte(doc.Source.Text))

	m := &Module{
		Name:   doc.Module,
		FileID: fileID,
	}

	var errs []error
	for i := range doc.Functions {
		fn, err := buildFunc(&doc.Functions[i], ir.FuncID(i), fileID) //nolint:gosec // bounded by function count
		if err != nil {
			errs = append(errs, fmt.Errorf("function %q: %w", doc.Functions[i].Name, err))
			continue
		}
		m.Funcs = append(m.Funcs, fn)
	}

	sigs := make([]ir.Signature, 0, len(doc.Signatures))
	for i := range doc.Signatures {
		sig, err := buildSig(&doc.Signatures[i], fileID)
		if err != nil {
			errs = append(errs, fmt.Errorf("signature %q: %w", doc.Signatures[i].Name, err))
			continue
		}
		sigs = append(sigs, sig)
	}
	m.Sigs = ir.NewSigTable(sigs...)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return m, nil
}

func buildFunc(in *Function, id ir.FuncID, file source.FileID) (*ir.Func, error) {
	fn := &ir.Func{
		ID:    id,
		Name:  in.Name,
		Span:  spanOf(in.Span, file),
		Entry: ir.BlockID(in.Entry), //nolint:gosec // validated below
	}
	if in.Name == "" {
		return nil, errors.New("missing name")
	}

	byName := make(map[string]ir.LocalID, len(in.Locals))
	for i, l := range in.Locals {
		flags, err := localFlags(l.Flags)
		if err != nil {
			return nil, fmt.Errorf("local %q: %w", l.Name, err)
		}
		fn.Locals = append(fn.Locals, ir.Local{
			Name:   l.Name,
			Flags:  flags,
			Region: l.Region,
			Span:   spanOf(l.Span, file),
		})
		if l.Name != "" {
			if _, dup := byName[l.Name]; dup {
				return nil, fmt.Errorf("local %q: duplicate name", l.Name)
			}
			byName[l.Name] = ir.LocalID(i) //nolint:gosec // bounded by local count
		}
	}

	for bi := range in.Blocks {
		bb := ir.Block{ID: ir.BlockID(bi)} //nolint:gosec // bounded by block count
		for ii := range in.Blocks[bi].Instrs {
			instr, err := buildInstr(&in.Blocks[bi].Instrs[ii], byName, file)
			if err != nil {
				return nil, fmt.Errorf("bb%d:%d: %w", bi, ii, err)
			}
			bb.Instrs = append(bb.Instrs, instr)
		}
		term, err := buildTerm(&in.Blocks[bi].Term, byName, file)
		if err != nil {
			return nil, fmt.Errorf("bb%d terminator: %w", bi, err)
		}
		bb.Term = term
		fn.Blocks = append(fn.Blocks, bb)
	}

	if err := ir.Validate(fn); err != nil {
		return nil, err
	}
	return fn, nil
}

func buildInstr(in *Instr, locals map[string]ir.LocalID, file source.FileID) (ir.Instr, error) {
	out := ir.Instr{Dest: ir.NoLocalID, Span: spanOf(in.Span, file)}

	switch in.Op {
	case "nop":
		out.Kind = ir.InstrNop
		return out, nil
	case "assign":
		out.Kind = ir.InstrAssign
	case "move":
		out.Kind = ir.InstrMove
	case "borrow":
		out.Kind = ir.InstrBorrow
	case "read":
		out.Kind = ir.InstrRead
	case "write":
		out.Kind = ir.InstrWrite
	case "drop":
		out.Kind = ir.InstrDrop
	default:
		return out, fmt.Errorf("unknown op %q", in.Op)
	}

	if in.Place == nil {
		return out, fmt.Errorf("%s: missing place", in.Op)
	}
	place, err := buildPlace(in.Place, locals)
	if err != nil {
		return out, err
	}
	out.Place = place

	if in.From != nil {
		if out.Kind != ir.InstrAssign {
			return out, fmt.Errorf("%s: from is only valid on assign", in.Op)
		}
		from, err := buildPlace(in.From, locals)
		if err != nil {
			return out, err
		}
		out.From = from
		out.HasFrom = true
	}

	if in.Dest != "" {
		id, ok := locals[in.Dest]
		if !ok {
			return out, fmt.Errorf("%s: unknown dest local %q", in.Op, in.Dest)
		}
		out.Dest = id
	}

	if out.Kind == ir.InstrBorrow {
		kind, err := borrowKind(in.Kind)
		if err != nil {
			return out, err
		}
		out.Borrow = kind
	}
	return out, nil
}

func buildTerm(in *Terminator, locals map[string]ir.LocalID, file source.FileID) (ir.Terminator, error) {
	span := spanOf(in.Span, file)
	switch in.Op {
	case "goto":
		t := ir.GotoTo(ir.BlockID(in.Target)) //nolint:gosec // validated by ir.Validate
		t.Span = span
		return t, nil
	case "if":
		cond, ok := locals[in.Cond]
		if !ok {
			return ir.Terminator{}, fmt.Errorf("unknown cond local %q", in.Cond)
		}
		t := ir.IfThen(cond, ir.BlockID(in.Then), ir.BlockID(in.Else)) //nolint:gosec // validated by ir.Validate
		t.Span = span
		return t, nil
	case "return":
		if in.Value == nil {
			t := ir.Ret()
			t.Span = span
			return t, nil
		}
		value, err := buildPlace(in.Value, locals)
		if err != nil {
			return ir.Terminator{}, err
		}
		t := ir.RetValue(value)
		t.Span = span
		return t, nil
	case "unreachable":
		t := ir.Unreachable()
		t.Span = span
		return t, nil
	default:
		return ir.Terminator{}, fmt.Errorf("unknown terminator %q", in.Op)
	}
}

func buildPlace(in *Place, locals map[string]ir.LocalID) (ir.Place, error) {
	root, ok := locals[in.Local]
	if !ok {
		return ir.Place{}, fmt.Errorf("unknown local %q", in.Local)
	}
	p := ir.PlaceOf(root)
	for _, proj := range in.Proj {
		switch proj.Kind {
		case "field":
			if proj.Field == "" {
				return ir.Place{}, errors.New("field projection without a name")
			}
			p = p.Field(proj.Field)
		case "index":
			idx := ir.NoLocalID
			if proj.Index != "" {
				id, ok := locals[proj.Index]
				if !ok {
					return ir.Place{}, fmt.Errorf("unknown index local %q", proj.Index)
				}
				idx = id
			}
			p = p.Index(idx)
		case "deref":
			p = p.Deref()
		default:
			return ir.Place{}, fmt.Errorf("unknown projection %q", proj.Kind)
		}
	}
	return p, nil
}

func buildSig(in *Signature, file source.FileID) (ir.Signature, error) {
	sig := ir.Signature{
		Name:    in.Name,
		Regions: in.Regions,
	}
	if in.Name == "" {
		return sig, errors.New("missing name")
	}
	for _, p := range in.Params {
		sig.Params = append(sig.Params, ir.Param{
			Name:     p.Name,
			IsRef:    p.Ref,
			IsMut:    p.Mut,
			Region:   p.Region,
			Receiver: p.Receiver,
		})
	}
	if in.Result != nil {
		sig.HasResult = true
		sig.Result = ir.Result{IsRef: in.Result.Ref, IsMut: in.Result.Mut, Region: in.Result.Region}
	}
	for _, b := range in.Bounds {
		if len(b) != 2 {
			return sig, fmt.Errorf("bound %v: want [longer, shorter]", b)
		}
		sig.Bounds = append(sig.Bounds, ir.Bound{Longer: b[0], Shorter: b[1]})
	}
	sig.Span = source.Span{File: file}
	return sig, nil
}

func localFlags(names []string) (ir.LocalFlags, error) {
	var flags ir.LocalFlags
	for _, n := range names {
		switch n {
		case "copy":
			flags |= ir.LocalFlagCopy
		case "ref":
			flags |= ir.LocalFlagRef
		case "refmut":
			flags |= ir.LocalFlagRefMut
		case "param":
			flags |= ir.LocalFlagParam
		case "receiver":
			flags |= ir.LocalFlagReceiver
		default:
			return 0, fmt.Errorf("unknown flag %q", n)
		}
	}
	return flags, nil
}

func borrowKind(name string) (ir.BorrowKind, error) {
	switch name {
	case "shared":
		return ir.BorrowShared, nil
	case "unique":
		return ir.BorrowUnique, nil
	case "reserved":
		return ir.BorrowReserved, nil
	default:
		return 0, fmt.Errorf("unknown borrow kind %q", name)
	}
}

func spanOf(raw []int, file source.FileID) source.Span {
	if len(raw) != 2 || raw[0] < 0 || raw[1] < raw[0] {
		return source.Span{File: file}
	}
	return source.Span{
		File:  file,
		Start: uint32(raw[0]), //nolint:gosec // bounds checked above
		End:   uint32(raw[1]),
	}
}
