package masterlistupdate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestUpdateCopiesAndReportsChange(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	srcDir := filepath.Join(dir, "src")
	if err := os.MkdirAll(filepath.Join(srcDir, "master"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "master", "masterlist.yaml"), []byte("globals: []\nplugins: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "local", "masterlist.yaml")
	u := New(map[string]string{"https://example.test/masterlist.git": srcDir})

	updated, err := u.Update(ctx, dst, "https://example.test/masterlist.git", "master")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !updated {
		t.Error("Update() on first call should report updated = true")
	}

	updated, err = u.Update(ctx, dst, "https://example.test/masterlist.git", "master")
	if err != nil {
		t.Fatalf("second Update() error = %v", err)
	}
	if updated {
		t.Error("Update() with unchanged content should report updated = false")
	}
}

func TestUpdateUnknownRemote(t *testing.T) {
	u := New(nil)
	_, err := u.Update(context.Background(), "/tmp/whatever.yaml", "https://unknown.test/x.git", "master")
	if err == nil {
		t.Error("Update() with unconfigured remote should error")
	}
}

func TestRevision(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "masterlist.yaml")
	if err := os.WriteFile(path, []byte("globals: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	u := New(nil)
	hash, date, edited, err := u.Revision(context.Background(), path, true)
	if err != nil {
		t.Fatalf("Revision() error = %v", err)
	}
	if len(hash) != 7 {
		t.Errorf("short Revision() hash len = %d, want 7", len(hash))
	}
	if date == "" {
		t.Error("Revision() date is empty")
	}
	if edited {
		t.Error("Revision() edited = true, want false for a fresh file")
	}
}
