// Package loadorderio is the concrete LoadOrderHandler collaborator
// gamestate.Game depends on. It is grounded on
// original_source/src/api/game/load_order_handler.h, which wraps libloadorder:
// newer games keep an explicit loadorder.txt, a separate plugins.txt marks
// which of those are active, and older games instead infer order from each
// plugin file's on-disk modification time and list only active plugins in
// plugins.txt. This package reimplements both conventions as plain file I/O,
// in the same style as the teacher's own plugin-header reader: no
// third-party parsing library, just bufio.Scanner over a known line format.
package loadorderio

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pluginsort/core/internal/apperr"
	"github.com/pluginsort/core/internal/gametype"
)

// activePrefix marks an active plugin in plugins.txt for the text-file-based
// games; games that infer order from timestamps list only active plugins,
// unprefixed, one per line.
const activePrefix = "*"

// textFileBased reports whether gt keeps an explicit loadorder.txt separate
// from plugins.txt, per libloadorder's per-game load order method.
func textFileBased(gt gametype.Type) bool {
	switch gt {
	case gametype.TES5, gametype.FO4, gametype.FONV:
		return true
	default: // TES4, FO3
		return false
	}
}

// Handler implements gamestate.LoadOrderHandler against the two on-disk
// conventions real libloadorder-backed games use.
type Handler struct {
	gameType gametype.Type
	gamePath string
	dataDir  string
	localDir string
}

// New constructs a Handler; call Initialize before using it.
func New() *Handler {
	return &Handler{}
}

// Initialize records the game's paths and type, creating localPath if it
// does not already exist so GetLoadOrder/SetLoadOrder have somewhere to
// read and write plugins.txt (and loadorder.txt, for games that keep one).
func (h *Handler) Initialize(ctx context.Context, gt gametype.Type, gamePath, localPath string) error {
	if err := os.MkdirAll(localPath, 0o755); err != nil {
		return apperr.Wrap(apperr.PathWriteFail, "create local app data directory", err)
	}
	h.gameType = gt
	h.gamePath = gamePath
	h.dataDir = filepath.Join(gamePath, "Data")
	h.localDir = localPath
	return nil
}

func (h *Handler) pluginsTxtPath() string {
	return filepath.Join(h.localDir, "plugins.txt")
}

func (h *Handler) loadOrderTxtPath() string {
	return filepath.Join(h.localDir, "loadorder.txt")
}

// GetLoadOrder returns every plugin in load-order position as the
// underlying convention records it, without moving masters ahead of
// non-masters: the explicit loadorder.txt for text-file-based games, or the
// Data directory's entries sorted by modification time for timestamp-based
// games.
func (h *Handler) GetLoadOrder(ctx context.Context) ([]string, error) {
	if textFileBased(h.gameType) {
		names, err := readLines(h.loadOrderTxtPath())
		if err != nil {
			return nil, apperr.Wrap(apperr.LoadOrderLibrary, "read loadorder.txt", err)
		}
		return names, nil
	}
	return h.loadOrderFromTimestamps()
}

// SetLoadOrder persists order as the new load order. For text-file-based
// games that means rewriting loadorder.txt; for timestamp-based games it
// means touching each plugin's modification time in order, one second
// apart, mirroring libloadorder's own timestamp-rewriting strategy.
func (h *Handler) SetLoadOrder(ctx context.Context, order []string) error {
	if textFileBased(h.gameType) {
		if err := writeLines(h.loadOrderTxtPath(), order); err != nil {
			return apperr.Wrap(apperr.PathWriteFail, "write loadorder.txt", err)
		}
		return nil
	}
	return h.stampTimestamps(order)
}

// IsActive reports whether name is marked active in plugins.txt.
func (h *Handler) IsActive(ctx context.Context, name string) (bool, error) {
	active, err := h.activeSet()
	if err != nil {
		return false, err
	}
	_, ok := active[strings.ToLower(name)]
	return ok, nil
}

func (h *Handler) activeSet() (map[string]struct{}, error) {
	lines, err := readLines(h.pluginsTxtPath())
	if err != nil {
		return nil, apperr.Wrap(apperr.LoadOrderLibrary, "read plugins.txt", err)
	}
	set := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		name := line
		if textFileBased(h.gameType) {
			if !strings.HasPrefix(line, activePrefix) {
				continue
			}
			name = strings.TrimPrefix(line, activePrefix)
		}
		set[strings.ToLower(name)] = struct{}{}
	}
	return set, nil
}

// loadOrderFromTimestamps lists the Data directory's plugin files ordered by
// modification time, oldest first, as libloadorder does for games without
// an explicit loadorder.txt.
func (h *Handler) loadOrderFromTimestamps() ([]string, error) {
	entries, err := os.ReadDir(h.dataDir)
	if err != nil {
		return nil, apperr.Wrap(apperr.PathReadFail, "list data directory", err)
	}
	type timed struct {
		name  string
		mtime int64
	}
	var files []timed
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".esm" && ext != ".esp" && ext != ".esl" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, timed{name: e.Name(), mtime: info.ModTime().UnixNano()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mtime < files[j].mtime })
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.name
	}
	return out, nil
}

// stampTimestamps sets each plugin's modification time to base+i seconds,
// preserving order through the filesystem's own mtime field, the same
// trick libloadorder uses for games with no explicit loadorder.txt.
func (h *Handler) stampTimestamps(order []string) error {
	base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range order {
		path := filepath.Join(h.dataDir, name)
		t := base.Add(time.Duration(i) * time.Second)
		if err := os.Chtimes(path, t, t); err != nil {
			return apperr.Wrap(apperr.PathWriteFail, fmt.Sprintf("stamp timestamp for %s", name), err)
		}
	}
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

func writeLines(path string, lines []string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
