package region

import (
	"errors"
	"fmt"

	"rill/internal/ir"
)

// ErrAmbiguous signals that elision cannot pick a region for the output
// reference: several distinct input regions exist and none is a receiver.
// The signature needs an explicit annotation.
var ErrAmbiguous = errors.New("ambiguous lifetime")

// Elide fills in elided regions on a signature. Each unannotated reference
// parameter receives a fresh region named after it. The output region, when
// elided, is resolved in priority order:
//
//  1. exactly one reference input: the output ties to it;
//  2. a receiver parameter exists: the output ties to the receiver's region;
//  3. otherwise elision fails with ErrAmbiguous.
//
// The returned signature is a copy; the input is never mutated.
func Elide(sig ir.Signature) (ir.Signature, error) {
	out := sig
	out.Params = make([]ir.Param, len(sig.Params))
	copy(out.Params, sig.Params)
	out.Regions = append([]string(nil), sig.Regions...)

	for i := range out.Params {
		p := &out.Params[i]
		if !p.IsRef || p.Region != "" {
			continue
		}
		p.Region = freshName(p, i)
		out.Regions = append(out.Regions, p.Region)
	}

	if !out.HasResult || !out.Result.IsRef || out.Result.Region != "" {
		return out, nil
	}

	refs := out.RefParams()
	switch {
	case len(refs) == 1:
		out.Result.Region = refs[0].Region
	default:
		if recv, ok := out.Receiver(); ok && recv.IsRef {
			out.Result.Region = recv.Region
			break
		}
		if len(refs) == 0 {
			return out, fmt.Errorf("%w: %s returns a reference but has no reference inputs", ErrAmbiguous, sig.Name)
		}
		return out, fmt.Errorf("%w: %s has %d reference inputs; annotate the output region explicitly", ErrAmbiguous, sig.Name, len(refs))
	}
	return out, nil
}

func freshName(p *ir.Param, idx int) string {
	if p.Receiver {
		return "'self"
	}
	if p.Name != "" {
		return "'" + p.Name
	}
	return fmt.Sprintf("'p%d", idx)
}
