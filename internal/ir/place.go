package ir

import (
	"fmt"
	"strings"
)

type ProjKind uint8

const (
	// ProjField selects a named field of the base.
	ProjField ProjKind = iota
	// ProjIndex selects an element; distinct indices are not distinguished,
	// so any two index projections overlap.
	ProjIndex
	// ProjDeref follows a reference.
	ProjDeref
)

type Proj struct {
	Kind  ProjKind
	Field string
	// Index is the local supplying the index expression, NoLocalID when the
	// index is a constant. Only used for liveness, not for disambiguation.
	Index LocalID
}

// Place is a path to a storage location: a root local optionally narrowed by
// field and index projections. Places are the unit of borrowing.
type Place struct {
	Local LocalID
	Proj  []Proj
}

// PlaceOf returns the whole-local place for id.
func PlaceOf(id LocalID) Place {
	return Place{Local: id}
}

func (p Place) IsValid() bool {
	return p.Local != NoLocalID
}

// Field returns p narrowed to the named field.
func (p Place) Field(name string) Place {
	return p.extend(Proj{Kind: ProjField, Field: name})
}

// Index returns p narrowed to an element.
func (p Place) Index(idx LocalID) Place {
	return p.extend(Proj{Kind: ProjIndex, Index: idx})
}

// Deref returns the place behind the reference held at p.
func (p Place) Deref() Place {
	return p.extend(Proj{Kind: ProjDeref})
}

func (p Place) extend(proj Proj) Place {
	out := make([]Proj, 0, len(p.Proj)+1)
	out = append(out, p.Proj...)
	out = append(out, proj)
	return Place{Local: p.Local, Proj: out}
}

// Key is the canonical map key for this place: stable, independent of any
// function context. Index projections collapse to "[*]" so that x[i] and x[j]
// share a key (the analyzer treats all indices as overlapping).
func (p Place) Key() string {
	if len(p.Proj) == 0 {
		return fmt.Sprintf("%%%d", p.Local)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%%%d", p.Local)
	for _, proj := range p.Proj {
		switch proj.Kind {
		case ProjField:
			sb.WriteByte('.')
			sb.WriteString(proj.Field)
		case ProjIndex:
			sb.WriteString("[*]")
		case ProjDeref:
			sb.WriteByte('*')
		}
	}
	return sb.String()
}

// ConflictsWith reports whether the two places may denote overlapping memory:
// same root local and one projection path is a prefix of the other.
func (p Place) ConflictsWith(q Place) bool {
	if p.Local != q.Local {
		return false
	}
	n := min(len(p.Proj), len(q.Proj))
	for i := 0; i < n; i++ {
		if !projOverlap(p.Proj[i], q.Proj[i]) {
			return false
		}
	}
	return true
}

// IsPrefixOf reports whether p covers q: every location q names is also named
// by p. A whole local is a prefix of all its sub-places.
func (p Place) IsPrefixOf(q Place) bool {
	if p.Local != q.Local || len(p.Proj) > len(q.Proj) {
		return false
	}
	for i := range p.Proj {
		if !projOverlap(p.Proj[i], q.Proj[i]) {
			return false
		}
	}
	return true
}

func projOverlap(a, b Proj) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == ProjField {
		return a.Field == b.Field
	}
	// Index and deref projections always overlap.
	return true
}

// DisplayName renders the place with local names from f, for diagnostics.
func (p Place) DisplayName(f *Func) string {
	root := fmt.Sprintf("%%%d", p.Local)
	if l := f.Local(p.Local); l != nil && l.Name != "" {
		root = l.Name
	}
	var sb strings.Builder
	sb.WriteString(root)
	for _, proj := range p.Proj {
		switch proj.Kind {
		case ProjField:
			sb.WriteByte('.')
			sb.WriteString(proj.Field)
		case ProjIndex:
			sb.WriteString("[..]")
		case ProjDeref:
			sb.WriteString(".*")
		}
	}
	return sb.String()
}
