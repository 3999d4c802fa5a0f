package bundle

import (
	"strings"
	"testing"

	"rill/internal/ir"
	"rill/internal/source"
)

const demoBundle = `{
  "module": "demo",
  "source": {"path": "demo.rl", "text": "fn take(x) { consume(x); use(x); }"},
  "functions": [
    {
      "name": "take",
      "entry": 0,
      "locals": [
        {"name": "x", "span": [8, 9]},
        {"name": "y"}
      ],
      "blocks": [
        {
          "instrs": [
            {"op": "assign", "place": {"local": "x"}, "span": [8, 9]},
            {"op": "move", "place": {"local": "x"}, "dest": "y", "span": [13, 24]},
            {"op": "read", "place": {"local": "x"}, "span": [25, 31]}
          ],
          "term": {"op": "return"}
        }
      ]
    }
  ],
  "signatures": [
    {
      "name": "pick",
      "regions": ["'a", "'b"],
      "params": [
        {"name": "a", "ref": true, "region": "'a"},
        {"name": "b", "ref": true, "region": "'b"}
      ],
      "result": {"ref": true, "region": "'a"},
      "bounds": [["'b", "'a"]]
    }
  ]
}`

func TestDecodeBundle(t *testing.T) {
	fset := source.NewFileSet()
	m, err := Decode(fset, strings.NewReader(demoBundle))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Name != "demo" || len(m.Funcs) != 1 {
		t.Fatalf("unexpected module shape: %+v", m)
	}

	fn := m.Funcs[0]
	if fn.Name != "take" || len(fn.Locals) != 2 || len(fn.Blocks) != 1 {
		t.Fatalf("unexpected function shape: %+v", fn)
	}
	if fn.Blocks[0].Instrs[1].Kind != ir.InstrMove {
		t.Fatalf("instr 1 must be a move, got %v", fn.Blocks[0].Instrs[1].Kind)
	}
	if fn.Blocks[0].Instrs[1].Dest != 1 {
		t.Fatalf("move dest must resolve to local y, got %d", fn.Blocks[0].Instrs[1].Dest)
	}

	// Spans resolve into the embedded source text.
	start, _ := fset.Resolve(fn.Blocks[0].Instrs[2].Span)
	if start.Line != 1 {
		t.Fatalf("span must resolve inside the virtual file, got line %d", start.Line)
	}

	sig, ok := m.Sigs.Lookup("pick")
	if !ok {
		t.Fatal("signature pick must be in the table")
	}
	if len(sig.Bounds) != 1 || sig.Bounds[0].Longer != "'b" {
		t.Fatalf("unexpected bounds: %+v", sig.Bounds)
	}
}

func TestDecodeRejectsUnknownLocal(t *testing.T) {
	doc := `{
  "module": "bad",
  "source": {"path": "bad.rl"},
  "functions": [{
    "name": "f",
    "entry": 0,
    "locals": [{"name": "x"}],
    "blocks": [{"instrs": [{"op": "read", "place": {"local": "ghost"}}], "term": {"op": "return"}}]
  }]
}`
	if _, err := Decode(source.NewFileSet(), strings.NewReader(doc)); err == nil {
		t.Fatal("unknown local must be rejected")
	}
}

func TestDecodeRejectsDanglingTarget(t *testing.T) {
	doc := `{
  "module": "bad",
  "source": {"path": "bad.rl"},
  "functions": [{
    "name": "f",
    "entry": 0,
    "locals": [],
    "blocks": [{"term": {"op": "goto", "target": 7}}]
  }]
}`
	if _, err := Decode(source.NewFileSet(), strings.NewReader(doc)); err == nil {
		t.Fatal("dangling block target must be rejected")
	}
}

func TestDecodeRejectsUnknownField(t *testing.T) {
	doc := `{"module": "bad", "sourcery": {}}`
	if _, err := Decode(source.NewFileSet(), strings.NewReader(doc)); err == nil {
		t.Fatal("unknown top-level fields must be rejected")
	}
}

func TestDecodePlaceProjections(t *testing.T) {
	doc := `{
  "module": "proj",
  "source": {"path": "proj.rl"},
  "functions": [{
    "name": "f",
    "entry": 0,
    "locals": [{"name": "p"}, {"name": "i", "flags": ["copy"]}],
    "blocks": [{
      "instrs": [
        {"op": "read", "place": {"local": "p", "proj": [{"kind": "field", "field": "items"}, {"kind": "index", "index": "i"}]}}
      ],
      "term": {"op": "return"}
    }]
  }]
}`
	m, err := Decode(source.NewFileSet(), strings.NewReader(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	p := m.Funcs[0].Blocks[0].Instrs[0].Place
	if p.Key() != "%0.items[*]" {
		t.Fatalf("unexpected place key %q", p.Key())
	}
}
