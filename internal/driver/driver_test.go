package driver

import (
	"context"
	"strings"
	"testing"

	"rill/internal/bundle"
	"rill/internal/diag"
	"rill/internal/source"
)

const twoFuncBundle = `{
  "module": "demo",
  "source": {"path": "demo.rl", "text": "fn ok() {}\nfn bad(x) { consume(x); use(x); }"},
  "functions": [
    {
      "name": "ok",
      "entry": 0,
      "locals": [{"name": "x"}],
      "blocks": [{
        "instrs": [
          {"op": "assign", "place": {"local": "x"}},
          {"op": "read", "place": {"local": "x"}}
        ],
        "term": {"op": "return"}
      }]
    },
    {
      "name": "bad",
      "entry": 0,
      "locals": [{"name": "x"}, {"name": "y"}],
      "blocks": [{
        "instrs": [
          {"op": "assign", "place": {"local": "x"}, "span": [14, 15]},
          {"op": "move", "place": {"local": "x"}, "dest": "y", "span": [22, 32]},
          {"op": "read", "place": {"local": "x"}, "span": [34, 40]}
        ],
        "term": {"op": "return"}
      }]
    }
  ]
}`

func loadModule(t *testing.T, doc string) *bundle.Module {
	t.Helper()
	m, err := bundle.Decode(source.NewFileSet(), strings.NewReader(doc))
	if err != nil {
		t.Fatalf("decode bundle: %v", err)
	}
	return m
}

func TestCheckModule(t *testing.T) {
	m := loadModule(t, twoFuncBundle)
	report, err := CheckModule(context.Background(), m, Options{Jobs: 2})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(report.Funcs) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(report.Funcs))
	}
	// Report order matches input order, not completion order.
	if report.Funcs[0].Name != "ok" || report.Funcs[1].Name != "bad" {
		t.Fatalf("report order broken: %q, %q", report.Funcs[0].Name, report.Funcs[1].Name)
	}
	if !report.Funcs[0].Pass {
		t.Fatalf("ok must pass, got %v", report.Funcs[0].Bag.Items())
	}
	if report.Funcs[1].Pass {
		t.Fatal("bad must fail")
	}
	if report.Pass() {
		t.Fatal("module with a failing function must not pass")
	}
	if got := report.Funcs[1].Bag.Items()[0].Code; got != diag.BorrowUseAfterMove {
		t.Fatalf("expected E100, got %v", got)
	}
}

func TestCheckModuleCacheRoundTrip(t *testing.T) {
	cache, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}

	m := loadModule(t, twoFuncBundle)
	opts := Options{Cache: cache}

	first, err := CheckModule(context.Background(), m, opts)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	for i := range first.Funcs {
		if first.Funcs[i].Cached {
			t.Fatalf("first run must not hit the cache: %+v", first.Funcs[i])
		}
	}

	second, err := CheckModule(context.Background(), loadModule(t, twoFuncBundle), opts)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for i := range second.Funcs {
		if !second.Funcs[i].Cached {
			t.Fatalf("second run must hit the cache for %q", second.Funcs[i].Name)
		}
		if second.Funcs[i].Pass != first.Funcs[i].Pass {
			t.Fatalf("cached verdict differs for %q", second.Funcs[i].Name)
		}
		if second.Funcs[i].Bag.Len() != first.Funcs[i].Bag.Len() {
			t.Fatalf("cached diagnostics differ for %q", second.Funcs[i].Name)
		}
	}

	// A strict run must not reuse the default-mode slot.
	strict, err := CheckModule(context.Background(), loadModule(t, twoFuncBundle), Options{Cache: cache, Strict: true})
	if err != nil {
		t.Fatalf("strict run: %v", err)
	}
	for i := range strict.Funcs {
		if strict.Funcs[i].Cached {
			t.Fatalf("strict run must not hit default-mode cache for %q", strict.Funcs[i].Name)
		}
	}
}

func TestCheckModuleEvents(t *testing.T) {
	m := loadModule(t, twoFuncBundle)
	events := make(chan Event, 64)
	_, err := CheckModule(context.Background(), m, Options{Events: events})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	close(events)

	final := make(map[string]Status)
	for ev := range events {
		final[ev.Func] = ev.Status
	}
	if final["ok"] != StatusPass {
		t.Fatalf("ok must end as pass, got %v", final["ok"])
	}
	if final["bad"] != StatusFail {
		t.Fatalf("bad must end as fail, got %v", final["bad"])
	}
}

func TestCheckModuleDivergenceBecomesInternalDiag(t *testing.T) {
	loop := `{
  "module": "loopy",
  "source": {"path": "loopy.rl"},
  "functions": [{
    "name": "spin",
    "entry": 0,
    "locals": [{"name": "x"}, {"name": "y"}, {"name": "c", "flags": ["copy"]}],
    "blocks": [
      {"instrs": [
        {"op": "assign", "place": {"local": "x"}},
        {"op": "assign", "place": {"local": "c"}}
      ], "term": {"op": "goto", "target": 1}},
      {"term": {"op": "if", "cond": "c", "then": 2, "else": 3}},
      {"instrs": [{"op": "move", "place": {"local": "x"}, "dest": "y"}], "term": {"op": "goto", "target": 1}},
      {"term": {"op": "return"}}
    ]
  }]
}`
	m := loadModule(t, loop)
	report, err := CheckModule(context.Background(), m, Options{IterationCap: 1})
	if err != nil {
		t.Fatalf("a diverging function must not fail the whole run: %v", err)
	}
	rep := report.Funcs[0]
	if rep.Pass {
		t.Fatal("diverged analysis must not pass")
	}
	if got := rep.Bag.Items()[0].Code; got != diag.InternalDivergence {
		t.Fatalf("expected X951, got %v", got)
	}
}

func TestFuncDigestSensitivity(t *testing.T) {
	m := loadModule(t, twoFuncBundle)
	a := FuncDigest(m.Funcs[0])
	b := FuncDigest(m.Funcs[1])
	if a == b {
		t.Fatal("different bodies must hash differently")
	}
	if a != FuncDigest(m.Funcs[0]) {
		t.Fatal("digest must be deterministic")
	}
}
