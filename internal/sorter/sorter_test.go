package sorter

import (
	"context"
	"log/slog"
	"testing"

	"github.com/pluginsort/core/internal/gamestate"
	"github.com/pluginsort/core/internal/gametype"
	"github.com/pluginsort/core/internal/pluginfile"
)

type fakeReader struct {
	files map[string]*pluginfile.PluginFile
}

func (r *fakeReader) Open(ctx context.Context, path string, gt gametype.Type, headersOnly bool) (*pluginfile.PluginFile, error) {
	pf, ok := r.files[path]
	if !ok {
		return nil, errNotFound(path)
	}
	cp := *pf
	return &cp, nil
}

type notFoundError string

func (e notFoundError) Error() string { return "not found: " + string(e) }
func errNotFound(path string) error   { return notFoundError(path) }

type fakeLoadOrder struct {
	order  []string
	active map[string]bool
}

func (f *fakeLoadOrder) Initialize(ctx context.Context, gt gametype.Type, gamePath, localPath string) error {
	return nil
}
func (f *fakeLoadOrder) GetLoadOrder(ctx context.Context) ([]string, error) { return f.order, nil }
func (f *fakeLoadOrder) SetLoadOrder(ctx context.Context, order []string) error {
	f.order = order
	return nil
}
func (f *fakeLoadOrder) IsActive(ctx context.Context, name string) (bool, error) {
	return f.active[name], nil
}

func newTestGame() *gamestate.Game {
	plugin := func(name string, isMaster bool, masters ...string) *pluginfile.PluginFile {
		t := pluginfile.TypeESP
		if isMaster {
			t = pluginfile.TypeESM
		}
		return &pluginfile.PluginFile{
			Filename:   name,
			Lowercased: name,
			IsMaster:   isMaster,
			Type:       t,
			Masters:    masters,
			RecordIDs:  map[pluginfile.RecordID]struct{}{},
		}
	}

	reader := &fakeReader{files: map[string]*pluginfile.PluginFile{
		"Skyrim.esm": plugin("skyrim.esm", true),
		"Dawnguard.esm": plugin("dawnguard.esm", true, "Skyrim.esm"),
		"ModA.esp": plugin("moda.esp", false, "Skyrim.esm"),
		"ModB.esp": plugin("modb.esp", false, "Skyrim.esm", "Dawnguard.esm"),
	}}
	loh := &fakeLoadOrder{
		order:  []string{"Skyrim.esm", "Dawnguard.esm", "ModA.esp", "ModB.esp"},
		active: map[string]bool{"Skyrim.esm": true, "Dawnguard.esm": true, "ModA.esp": true, "ModB.esp": true},
	}

	return gamestate.New(gametype.TES5, "/game", "/game/Data", "/local", reader, loh, slog.Default())
}

func TestSortOrdersMastersBeforeDependents(t *testing.T) {
	ctx := context.Background()
	g := newTestGame()

	result, err := Sort(ctx, g, Options{})
	if err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	if len(result.Order) != 4 {
		t.Fatalf("Sort() order = %v, want 4 entries", result.Order)
	}

	pos := make(map[string]int, len(result.Order))
	for i, name := range result.Order {
		pos[name] = i
	}
	if pos["skyrim.esm"] > pos["dawnguard.esm"] {
		t.Errorf("Skyrim.esm should load before Dawnguard.esm: %v", result.Order)
	}
	if pos["skyrim.esm"] > pos["moda.esp"] || pos["skyrim.esm"] > pos["modb.esp"] {
		t.Errorf("Skyrim.esm should load before its dependents: %v", result.Order)
	}
	if pos["dawnguard.esm"] > pos["modb.esp"] {
		t.Errorf("Dawnguard.esm should load before ModB.esp: %v", result.Order)
	}

	if result.CorrelationID == "" {
		t.Error("Sort() result has no CorrelationID")
	}
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	g := newTestGame()
	result, err := Sort(ctx, g, Options{})
	if err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	if s := Summary(result); s == "" {
		t.Error("Summary() is empty")
	}
}

func TestApplyLoadOrder(t *testing.T) {
	ctx := context.Background()
	g := newTestGame()
	result, err := Sort(ctx, g, Options{})
	if err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	if err := ApplyLoadOrder(ctx, g, result); err != nil {
		t.Fatalf("ApplyLoadOrder() error = %v", err)
	}
}
