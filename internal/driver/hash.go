package driver

import (
	"crypto/sha256"
	"encoding/binary"

	"rill/internal/ir"
	"rill/internal/project"
)

// FuncDigest computes a deterministic content hash of one function body. Any
// change to locals, instructions, spans or terminators produces a new digest,
// so cached verdicts (whose messages embed spans and names) can never go
// stale.
func FuncDigest(f *ir.Func) project.Digest {
	h := sha256.New()
	buf := make([]byte, 8)

	writeU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(buf, v)
		_, _ = h.Write(buf[:4])
	}
	writeStr := func(s string) {
		writeU32(uint32(len(s))) //nolint:gosec // length is bounded
		_, _ = h.Write([]byte(s))
	}
	writePlace := func(p ir.Place) {
		writeU32(uint32(p.Local)) //nolint:gosec // ids are non-negative in valid IR
		writeStr(p.Key())
	}

	writeStr(f.Name)
	writeU32(uint32(f.Entry)) //nolint:gosec // validated
	writeU32(uint32(len(f.Locals)))
	for _, l := range f.Locals {
		writeStr(l.Name)
		writeU32(uint32(l.Flags))
		writeStr(l.Region)
		writeU32(l.Span.Start)
		writeU32(l.Span.End)
	}

	writeU32(uint32(len(f.Blocks)))
	for _, bb := range f.Blocks {
		writeU32(uint32(len(bb.Instrs)))
		for _, ins := range bb.Instrs {
			writeU32(uint32(ins.Kind))
			writePlace(ins.Place)
			writeU32(uint32(ins.Dest)) //nolint:gosec // NoLocalID hashes consistently
			writeU32(uint32(ins.Borrow))
			if ins.HasFrom {
				writeU32(1)
				writePlace(ins.From)
			} else {
				writeU32(0)
			}
			writeU32(ins.Span.Start)
			writeU32(ins.Span.End)
		}
		writeU32(uint32(bb.Term.Kind))
		switch bb.Term.Kind {
		case ir.TermGoto:
			writeU32(uint32(bb.Term.Goto.Target)) //nolint:gosec // validated
		case ir.TermIf:
			writeU32(uint32(bb.Term.If.Cond)) //nolint:gosec // validated
			writeU32(uint32(bb.Term.If.Then)) //nolint:gosec // validated
			writeU32(uint32(bb.Term.If.Else)) //nolint:gosec // validated
		case ir.TermReturn:
			if bb.Term.Return.HasValue {
				writeU32(1)
				writePlace(bb.Term.Return.Value)
			} else {
				writeU32(0)
			}
		}
		writeU32(bb.Term.Span.Start)
		writeU32(bb.Term.Span.End)
	}

	var out project.Digest
	copy(out[:], h.Sum(nil))
	return out
}

// SigDigest hashes the region-relevant shape of a declared signature.
func SigDigest(sig ir.Signature) project.Digest {
	h := sha256.New()
	buf := make([]byte, 4)
	writeU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(buf, v)
		_, _ = h.Write(buf)
	}
	writeStr := func(s string) {
		writeU32(uint32(len(s))) //nolint:gosec // length is bounded
		_, _ = h.Write([]byte(s))
	}
	writeBool := func(b bool) {
		if b {
			writeU32(1)
		} else {
			writeU32(0)
		}
	}

	writeStr(sig.Name)
	writeU32(uint32(len(sig.Regions)))
	for _, r := range sig.Regions {
		writeStr(r)
	}
	writeU32(uint32(len(sig.Params)))
	for _, p := range sig.Params {
		writeStr(p.Name)
		writeBool(p.IsRef)
		writeBool(p.IsMut)
		writeStr(p.Region)
		writeBool(p.Receiver)
	}
	writeBool(sig.HasResult)
	writeBool(sig.Result.IsRef)
	writeBool(sig.Result.IsMut)
	writeStr(sig.Result.Region)
	writeU32(uint32(len(sig.Bounds)))
	for _, b := range sig.Bounds {
		writeStr(b.Longer)
		writeStr(b.Shorter)
	}

	var out project.Digest
	copy(out[:], h.Sum(nil))
	return out
}

// verdictKey mixes the analysis settings and the declared signature into the
// function digest: a strict run and a default run must never share cache
// slots, and a changed bound must invalidate the verdict.
func verdictKey(f *ir.Func, sig ir.Signature, hasSig bool, strict bool, iterationCap int) project.Digest {
	h := sha256.New()
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint16(buf, cacheSchemaVersion)
	if strict {
		buf[2] = 1
	} else {
		buf[2] = 0
	}
	binary.LittleEndian.PutUint32(buf[3:7], uint32(iterationCap)) //nolint:gosec // validated by manifest
	_, _ = h.Write(buf[:7])

	var salt project.Digest
	copy(salt[:], h.Sum(nil))

	if hasSig {
		return project.Combine(FuncDigest(f), salt, SigDigest(sig))
	}
	return project.Combine(FuncDigest(f), salt)
}
