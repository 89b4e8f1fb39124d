package loadorderio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pluginsort/core/internal/gametype"
)

func TestTextFileBasedRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	gamePath := filepath.Join(dir, "game")
	localPath := filepath.Join(dir, "local")
	if err := os.MkdirAll(filepath.Join(gamePath, "Data"), 0o755); err != nil {
		t.Fatal(err)
	}

	h := New()
	if err := h.Initialize(ctx, gametype.TES5, gamePath, localPath); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	order := []string{"Skyrim.esm", "Dawnguard.esm", "MyMod.esp"}
	if err := h.SetLoadOrder(ctx, order); err != nil {
		t.Fatalf("SetLoadOrder() error = %v", err)
	}

	got, err := h.GetLoadOrder(ctx)
	if err != nil {
		t.Fatalf("GetLoadOrder() error = %v", err)
	}
	if len(got) != len(order) {
		t.Fatalf("GetLoadOrder() = %v, want %v", got, order)
	}
	for i := range order {
		if got[i] != order[i] {
			t.Errorf("GetLoadOrder()[%d] = %q, want %q", i, got[i], order[i])
		}
	}

	if err := os.WriteFile(filepath.Join(localPath, "plugins.txt"), []byte("*Skyrim.esm\nDawnguard.esm\n*MyMod.esp\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	active, err := h.IsActive(ctx, "MyMod.esp")
	if err != nil {
		t.Fatalf("IsActive() error = %v", err)
	}
	if !active {
		t.Error("IsActive(MyMod.esp) = false, want true")
	}
	active, err = h.IsActive(ctx, "Dawnguard.esm")
	if err != nil {
		t.Fatalf("IsActive() error = %v", err)
	}
	if active {
		t.Error("IsActive(Dawnguard.esm) = true, want false")
	}
}

func TestTimestampBasedRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	gamePath := filepath.Join(dir, "game")
	localPath := filepath.Join(dir, "local")
	dataDir := filepath.Join(gamePath, "Data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"Oblivion.esm", "MyMod.esp"} {
		if err := os.WriteFile(filepath.Join(dataDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	h := New()
	if err := h.Initialize(ctx, gametype.TES4, gamePath, localPath); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if err := h.SetLoadOrder(ctx, []string{"MyMod.esp", "Oblivion.esm"}); err != nil {
		t.Fatalf("SetLoadOrder() error = %v", err)
	}

	got, err := h.GetLoadOrder(ctx)
	if err != nil {
		t.Fatalf("GetLoadOrder() error = %v", err)
	}
	if len(got) != 2 || got[0] != "MyMod.esp" || got[1] != "Oblivion.esm" {
		t.Errorf("GetLoadOrder() = %v, want [MyMod.esp Oblivion.esm]", got)
	}
}

func TestGetLoadOrderMissingFileIsEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	gamePath := filepath.Join(dir, "game")
	localPath := filepath.Join(dir, "local")
	if err := os.MkdirAll(filepath.Join(gamePath, "Data"), 0o755); err != nil {
		t.Fatal(err)
	}

	h := New()
	if err := h.Initialize(ctx, gametype.TES5, gamePath, localPath); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	got, err := h.GetLoadOrder(ctx)
	if err != nil {
		t.Fatalf("GetLoadOrder() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("GetLoadOrder() on fresh install = %v, want empty", got)
	}
}
