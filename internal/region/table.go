// Package region implements lifetime-parameter inference and validation:
// elision defaults for unannotated references and the outlives partial order
// declared bounds induce.
package region

import (
	"sort"

	"rill/internal/ir"
)

// Table is the outlives relation among named regions: Outlives(a, b) means
// 'a is valid at least as long as 'b. The relation is reflexive and closed
// under transitivity.
type Table struct {
	outlives map[string]map[string]struct{}
}

// NewTable builds a table from declared bounds and closes it transitively.
func NewTable(bounds []ir.Bound) *Table {
	t := &Table{outlives: make(map[string]map[string]struct{})}
	for _, b := range bounds {
		t.add(b.Longer, b.Shorter)
	}
	t.close()
	return t
}

func (t *Table) add(longer, shorter string) {
	set, ok := t.outlives[longer]
	if !ok {
		set = make(map[string]struct{})
		t.outlives[longer] = set
	}
	set[shorter] = struct{}{}
}

// close computes the transitive closure: if a: b and b: c then a: c.
func (t *Table) close() {
	names := make([]string, 0, len(t.outlives))
	for name := range t.outlives {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, k := range names {
		for _, i := range names {
			if _, ok := t.outlives[i][k]; !ok {
				continue
			}
			for j := range t.outlives[k] {
				t.add(i, j)
			}
		}
	}
}

// Outlives reports whether longer is proven to outlive shorter.
func (t *Table) Outlives(longer, shorter string) bool {
	if longer == shorter {
		return true
	}
	if t == nil {
		return false
	}
	set, ok := t.outlives[longer]
	if !ok {
		return false
	}
	_, ok = set[shorter]
	return ok
}
