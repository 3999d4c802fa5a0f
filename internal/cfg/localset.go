package cfg

import "rill/internal/ir"

// LocalSet is a set of locals, used for liveness facts.
type LocalSet map[ir.LocalID]struct{}

func (s LocalSet) Add(id ir.LocalID) {
	s[id] = struct{}{}
}

func (s LocalSet) Has(id ir.LocalID) bool {
	_, ok := s[id]
	return ok
}

// Clone creates a copy of the set.
func (s LocalSet) Clone() LocalSet {
	out := make(LocalSet, len(s))
	for id := range s {
		out.Add(id)
	}
	return out
}

// Union merges src into dst and returns dst.
func unionSet(dst, src LocalSet) LocalSet {
	if dst == nil {
		dst = LocalSet{}
	}
	for id := range src {
		dst.Add(id)
	}
	return dst
}

// subtractSet returns src minus sub.
func subtractSet(src, sub LocalSet) LocalSet {
	if len(src) == 0 {
		return nil
	}
	out := LocalSet{}
	for id := range src {
		if sub.Has(id) {
			continue
		}
		out.Add(id)
	}
	return out
}

// setEqual checks if two sets contain the same elements.
func setEqual(a, b LocalSet) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b.Has(id) {
			return false
		}
	}
	return true
}
