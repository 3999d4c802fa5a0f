package ir

import "fmt"

// Point is a program point: a block plus a statement index within it.
// Index == len(Instrs) designates the terminator.
type Point struct {
	Block BlockID
	Index int
}

func (p Point) String() string {
	return fmt.Sprintf("bb%d:%d", p.Block, p.Index)
}

// Before reports whether p precedes q in block-major order. Within a block
// this is program order; across blocks it is only a stable total order used
// for deterministic message layout, not a dominance relation.
func (p Point) Before(q Point) bool {
	if p.Block != q.Block {
		return p.Block < q.Block
	}
	return p.Index < q.Index
}
