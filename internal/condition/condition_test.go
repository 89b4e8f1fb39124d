package condition

import (
	"context"
	"strings"
	"testing"
)

type fakeEvaluator struct {
	files   map[string]bool
	dirs    map[string][]string
	active  map[string]bool
	crcs    map[string]uint32
	vers    map[string]string
	touches int
}

func newFakeEvaluator() *fakeEvaluator {
	return &fakeEvaluator{
		files:  map[string]bool{},
		dirs:   map[string][]string{},
		active: map[string]bool{},
		crcs:   map[string]uint32{},
		vers:   map[string]string{},
	}
}

func (f *fakeEvaluator) FileExists(ctx context.Context, path string) (bool, error) {
	f.touches++
	return f.files[strings.ToLower(path)], nil
}
func (f *fakeEvaluator) ListDir(ctx context.Context, dir string) ([]string, error) {
	return f.dirs[strings.ToLower(dir)], nil
}
func (f *fakeEvaluator) IsActive(ctx context.Context, path string) (bool, error) {
	return f.active[strings.ToLower(path)], nil
}
func (f *fakeEvaluator) Checksum(ctx context.Context, path string) (uint32, error) {
	return f.crcs[strings.ToLower(path)], nil
}
func (f *fakeEvaluator) ExtractVersion(ctx context.Context, path string) (string, error) {
	return f.vers[strings.ToLower(path)], nil
}
func (f *fakeEvaluator) IsPluginPath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".esp") || strings.HasSuffix(strings.ToLower(path), ".esm")
}

func TestParseNoGameBoundSyntaxOnly(t *testing.T) {
	node, err := Parse(`file("Z.esp") and not active("Y.esp")`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if node == nil {
		t.Fatal("expected non-nil node")
	}
}

func TestParseRejectsUnknownFunction(t *testing.T) {
	if _, err := Parse(`bogus("x")`); err == nil {
		t.Fatal("expected error for unknown function")
	}
}

func TestEvalFileAndActive(t *testing.T) {
	ev := newFakeEvaluator()
	ev.files["z.esp"] = true
	ev.active["y.esp"] = false

	node, err := Parse(`file("Z.esp") and not active("Y.esp")`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ok, err := Eval(context.Background(), node, ev)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !ok {
		t.Errorf("expected true")
	}
}

func TestEvalOrPrecedence(t *testing.T) {
	ev := newFakeEvaluator()
	ev.active["a.esp"] = true

	node, err := Parse(`active("a.esp") or active("b.esp") and active("c.esp")`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// or binds loosest: true or (false and ...) == true
	ok, err := Eval(context.Background(), node, ev)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !ok {
		t.Errorf("expected true via or-short-circuit on left operand")
	}
}

func TestVersionAbsentFileComparators(t *testing.T) {
	ev := newFakeEvaluator() // Z.esp absent

	cases := []struct {
		cmp  string
		want bool
	}{
		{"!=", true},
		{"<", true},
		{"<=", true},
		{"==", false},
		{">", false},
		{">=", false},
	}
	for _, tc := range cases {
		node, err := Parse(`version("Z.esp", "1.0", ` + tc.cmp + `)`)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		ok, err := Eval(context.Background(), node, ev)
		if err != nil {
			t.Fatalf("Eval: %v", err)
		}
		if ok != tc.want {
			t.Errorf("cmp=%q: got %v want %v", tc.cmp, ok, tc.want)
		}
	}
}

func TestManyAndManyActive(t *testing.T) {
	ev := newFakeEvaluator()
	ev.dirs["."] = []string{"Foo1.esp", "Foo2.esp", "Bar.esp"}
	ev.active["foo1.esp"] = true
	ev.active["foo2.esp"] = true

	manyNode, _ := Parse(`many("Foo.*\.esp")`)
	ok, err := Eval(context.Background(), manyNode, ev)
	if err != nil || !ok {
		t.Errorf("expected many() true, got %v err=%v", ok, err)
	}

	manyActiveNode, _ := Parse(`many_active("Foo.*\.esp")`)
	ok, err = Eval(context.Background(), manyActiveNode, ev)
	if err != nil || !ok {
		t.Errorf("expected many_active() true, got %v err=%v", ok, err)
	}
}

func TestIsSafePathRejectsTraversal(t *testing.T) {
	if IsSafePath("../../etc/passwd") {
		t.Error("expected traversal path to be rejected")
	}
	if !IsSafePath("Data/Foo.esp") {
		t.Error("expected ordinary path to be accepted")
	}
}

func TestCacheDoesNotReTouchFilesystem(t *testing.T) {
	ev := newFakeEvaluator()
	ev.files["z.esp"] = true

	cache := NewCache()
	ctx := context.Background()
	const src = `file("Z.esp")`

	if _, err := cache.Evaluate(ctx, src, ev); err != nil {
		t.Fatalf("first Evaluate: %v", err)
	}
	if _, err := cache.Evaluate(ctx, src, ev); err != nil {
		t.Fatalf("second Evaluate: %v", err)
	}
	if ev.touches != 1 {
		t.Errorf("expected exactly one filesystem touch, got %d", ev.touches)
	}
}
