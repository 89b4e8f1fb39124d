package gamestate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pluginsort/core/internal/gametype"
	"github.com/pluginsort/core/internal/headercache"
	"github.com/pluginsort/core/internal/pluginfile"
)

type fakeReader struct {
	files     map[string]*pluginfile.PluginFile
	openCalls int
}

func (f *fakeReader) Open(ctx context.Context, path string, gt gametype.Type, headersOnly bool) (*pluginfile.PluginFile, error) {
	f.openCalls++
	pf, ok := f.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	cp := *pf
	if headersOnly {
		cp.RecordIDs = nil
		cp.CRC = 0
	}
	return &cp, nil
}

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

func newTestGame(t *testing.T) (*Game, *fakeReader, *fakeLoadOrder) {
	t.Helper()
	reader := &fakeReader{files: map[string]*pluginfile.PluginFile{
		"M.esm": {Filename: "M.esm", Lowercased: "m.esm", IsMaster: true, Type: pluginfile.TypeESM, CRC: 111},
		"A.esp": {Filename: "A.esp", Lowercased: "a.esp", Type: pluginfile.TypeESP, Masters: []string{"M.esm"}, CRC: 222},
	}}
	loh := &fakeLoadOrder{order: []string{"M.esm", "A.esp"}, active: map[string]bool{"M.esm": true, "A.esp": true}}
	g := New(gametype.TES5, "game", "data", "local", reader, loh, nil)
	return g, reader, loh
}

func TestLoadPluginsPopulatesGameAndCRCCache(t *testing.T) {
	g, _, _ := newTestGame(t)
	if err := g.RefreshActivePlugins(context.Background()); err != nil {
		t.Fatalf("RefreshActivePlugins: %v", err)
	}
	if err := g.LoadPlugins(context.Background(), []string{"M.esm", "A.esp"}, false); err != nil {
		t.Fatalf("LoadPlugins: %v", err)
	}

	p, ok := g.Plugin("a.esp")
	if !ok {
		t.Fatal("expected A.esp to be loaded")
	}
	if !p.Active {
		t.Error("expected A.esp to be marked active")
	}

	active, err := g.IsActive(context.Background(), "m.esm")
	if err != nil || !active {
		t.Errorf("expected M.esm active, got active=%v err=%v", active, err)
	}

	crc, err := g.Checksum(context.Background(), "A.esp")
	if err != nil || crc != 222 {
		t.Errorf("expected A.esp CRC 222 from the CRC cache, got crc=%d err=%v", crc, err)
	}
}

func TestLoadPluginsAggregatesPerPluginErrorsWithoutAborting(t *testing.T) {
	g, _, _ := newTestGame(t)
	err := g.LoadPlugins(context.Background(), []string{"M.esm", "Missing.esp"}, true)
	if err == nil {
		t.Fatal("expected an aggregated error for the missing plugin")
	}
	if _, ok := g.Plugin("m.esm"); !ok {
		t.Error("expected M.esm to still load despite Missing.esp failing")
	}
}

func TestFileExistsHandlesLootSentinelAndGhost(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Real.esp.ghost"), []byte{0}, 0o644); err != nil {
		t.Fatal(err)
	}
	g := New(gametype.TES5, "game", dir, "local", &fakeReader{files: map[string]*pluginfile.PluginFile{}}, &fakeLoadOrder{}, nil)

	ok, err := g.FileExists(context.Background(), "LOOT")
	if err != nil || !ok {
		t.Errorf("expected LOOT sentinel to always exist, got ok=%v err=%v", ok, err)
	}

	ok, err = g.FileExists(context.Background(), "Real.esp")
	if err != nil || !ok {
		t.Errorf("expected ghosted Real.esp to be found via .ghost fallback, got ok=%v err=%v", ok, err)
	}

	ok, err = g.FileExists(context.Background(), "Nonexistent.esp")
	if err != nil || ok {
		t.Errorf("expected Nonexistent.esp to be absent, got ok=%v err=%v", ok, err)
	}
}

func TestChecksumCachesAndHandlesLootSentinel(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "X.esp"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	g := New(gametype.TES5, "game", dir, "local", &fakeReader{files: map[string]*pluginfile.PluginFile{}}, &fakeLoadOrder{}, nil)

	crc, err := g.Checksum(context.Background(), "LOOT")
	if err != nil || crc != lootSelfCRC {
		t.Errorf("expected LOOT sentinel CRC, got %x err=%v", crc, err)
	}

	crc1, err := g.Checksum(context.Background(), "X.esp")
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	crc2, err := g.Checksum(context.Background(), "X.esp")
	if err != nil || crc1 != crc2 {
		t.Errorf("expected stable cached checksum, got %x then %x", crc1, crc2)
	}
}

func TestIsValidPluginRejectsBadExtensionAndUnreadable(t *testing.T) {
	g, _, _ := newTestGame(t)
	if g.IsValidPlugin(context.Background(), "readme.txt") {
		t.Error("expected non-plugin extension to be invalid")
	}
	if !g.IsValidPlugin(context.Background(), "M.esm") {
		t.Error("expected M.esm to be a valid plugin")
	}
	if g.IsValidPlugin(context.Background(), "Missing.esp") {
		t.Error("expected unreadable plugin to be invalid")
	}
}

func TestLoadPluginsSkipsReaderOnHeaderCacheHit(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "A.esp"), []byte("plugin contents"), 0o644); err != nil {
		t.Fatal(err)
	}

	reader := &fakeReader{files: map[string]*pluginfile.PluginFile{
		"A.esp": {Filename: "A.esp", Lowercased: "a.esp", Type: pluginfile.TypeESP, CRC: 999},
	}}
	hc, err := headercache.New(headercache.Config{DBPath: filepath.Join(t.TempDir(), "headers.db")})
	if err != nil {
		t.Fatalf("headercache.New: %v", err)
	}
	defer hc.Close()

	g := New(gametype.TES5, "game", dir, "local", reader, &fakeLoadOrder{}, nil)
	g.HeaderCache = hc

	if err := g.LoadPlugins(context.Background(), []string{"A.esp"}, false); err != nil {
		t.Fatalf("first LoadPlugins: %v", err)
	}
	if reader.openCalls != 1 {
		t.Fatalf("expected exactly 1 reader.Open call on cold cache, got %d", reader.openCalls)
	}

	if err := g.LoadPlugins(context.Background(), []string{"A.esp"}, false); err != nil {
		t.Fatalf("second LoadPlugins: %v", err)
	}
	if reader.openCalls != 1 {
		t.Errorf("expected reader.Open to stay at 1 after a warm header-cache hit, got %d", reader.openCalls)
	}

	p, ok := g.Plugin("a.esp")
	if !ok || p.CRC != 999 {
		t.Errorf("expected cached plugin data to still be installed, got %+v ok=%v", p, ok)
	}
}
