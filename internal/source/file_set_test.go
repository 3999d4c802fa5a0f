package source

import "testing"

func TestResolveLineCol(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("demo.rir.json", []byte("first\nsecond\nthird\n"))

	cases := []struct {
		name   string
		offset uint32
		want   LineCol
	}{
		{"start of file", 0, LineCol{Line: 1, Col: 1}},
		{"middle of first line", 3, LineCol{Line: 1, Col: 4}},
		{"start of second line", 6, LineCol{Line: 2, Col: 1}},
		{"start of third line", 13, LineCol{Line: 3, Col: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, _ := fs.Resolve(Span{File: id, Start: tc.offset, End: tc.offset})
			if start != tc.want {
				t.Fatalf("offset %d: got %+v, want %+v", tc.offset, start, tc.want)
			}
		})
	}
}

func TestGetByPath(t *testing.T) {
	fs := NewFileSet()
	fs.AddVirtual("a.rir.json", []byte("{}"))
	if _, ok := fs.GetByPath("a.rir.json"); !ok {
		t.Fatalf("expected file to be found by path")
	}
	if _, ok := fs.GetByPath("missing.rir.json"); ok {
		t.Fatalf("did not expect missing path to resolve")
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 10, End: 20}
	b := Span{File: 1, Start: 5, End: 15}
	got := a.Cover(b)
	if got.Start != 5 || got.End != 20 {
		t.Fatalf("cover mismatch: %+v", got)
	}
	other := Span{File: 2, Start: 0, End: 100}
	if got := a.Cover(other); got != a {
		t.Fatalf("cover across files must be a no-op, got %+v", got)
	}
}
