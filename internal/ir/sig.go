package ir

import "rill/internal/source"

// Param describes one parameter of a declared signature.
type Param struct {
	Name     string
	IsRef    bool
	IsMut    bool
	Region   string // lifetime name, empty when elided
	Receiver bool   // implicit method receiver
}

// Result describes a signature's return type, if it is a reference.
type Result struct {
	IsRef  bool
	IsMut  bool
	Region string
}

// Bound is one declared outlives constraint: Longer outlives Shorter
// ('longer: 'shorter).
type Bound struct {
	Longer  string
	Shorter string
}

// Signature carries the region-relevant shape of a function declaration:
// region parameters, reference params/result, and declared outlives bounds.
type Signature struct {
	Name      string
	Regions   []string
	Params    []Param
	HasResult bool
	Result    Result
	Bounds    []Bound
	Span      source.Span
}

// Receiver returns the receiver parameter if the signature has one.
func (s Signature) Receiver() (Param, bool) {
	for _, p := range s.Params {
		if p.Receiver {
			return p, true
		}
	}
	return Param{}, false
}

// RefParams returns the reference-typed parameters in declaration order.
func (s Signature) RefParams() []Param {
	var out []Param
	for _, p := range s.Params {
		if p.IsRef {
			out = append(out, p)
		}
	}
	return out
}

// SigTable is the read-only symbol table the analyzer may query for declared
// reference types. It is shared across concurrent per-function analyses and
// must never be mutated after construction.
type SigTable struct {
	sigs map[string]Signature
}

// NewSigTable builds a table from the given signatures.
func NewSigTable(sigs ...Signature) *SigTable {
	t := &SigTable{sigs: make(map[string]Signature, len(sigs))}
	for _, s := range sigs {
		t.sigs[s.Name] = s
	}
	return t
}

// Lookup returns the signature declared under name.
func (t *SigTable) Lookup(name string) (Signature, bool) {
	if t == nil {
		return Signature{}, false
	}
	s, ok := t.sigs[name]
	return s, ok
}

// Len returns the number of signatures in the table.
func (t *SigTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.sigs)
}
