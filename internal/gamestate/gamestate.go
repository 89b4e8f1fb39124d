// Package gamestate is the owner of everything the condition evaluator and
// the plugin graph need at once: installed plugins, the active-plugin set,
// the CRC and condition caches, and the parsed masterlist/userlist. It is
// C5 from the component design, grounded on the teacher's
// internal/loadorder.Analyzer for its plain-goroutine load pattern and on
// original_source/src/backend/game.cpp for the plugin-loading and
// validity-check contract.
package gamestate

import (
	"context"
	"hash/crc32"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/go-multierror"

	"github.com/pluginsort/core/internal/apperr"
	"github.com/pluginsort/core/internal/condition"
	"github.com/pluginsort/core/internal/gametype"
	"github.com/pluginsort/core/internal/headercache"
	"github.com/pluginsort/core/internal/metadata"
	"github.com/pluginsort/core/internal/metadatalist"
	"github.com/pluginsort/core/internal/pluginfile"
	"github.com/pluginsort/core/internal/version"
)

// crcCacheSize is sized well above any realistic installed-plugin count
// (a few hundred for the largest modlists in the wild), so eviction in
// practice never happens; golang-lru/v2 still bounds worst-case memory.
const crcCacheSize = 8192

// lootSelfCRC is the fixed CRC reported for the reserved "LOOT" path, which
// refers to the running application's own executable rather than a file in
// the data directory.
const lootSelfCRC = 0xDEADBEEF

// LoadOrderHandler is the §6 collaborator giving access to each game's
// on-disk active-plugins list and load-order file.
type LoadOrderHandler interface {
	Initialize(ctx context.Context, gameType gametype.Type, gamePath, localPath string) error
	GetLoadOrder(ctx context.Context) ([]string, error)
	SetLoadOrder(ctx context.Context, order []string) error
	IsActive(ctx context.Context, name string) (bool, error)
}

// Plugin is an installed plugin together with the effective metadata C6
// computes for it.
type Plugin struct {
	*pluginfile.PluginFile

	Active       bool
	LoadsArchive bool

	Effective metadata.PluginMetadata
}

// Game is the process-scoped state for one game installation.
type Game struct {
	GameType        gametype.Type
	GameDir         string
	DataDir         string
	LocalAppDataDir string
	MasterlistPath  string
	UserlistPath    string
	MainMasterFile  string

	Reader    pluginfile.Reader
	LoadOrder LoadOrderHandler
	Logger    *slog.Logger

	// HeaderCache, when set, lets LoadPlugins skip re-parsing a plugin
	// whose (path, size, mtime) triple hasn't changed since the cache last
	// saw it — a cross-run optimization on top of the in-memory CRC and
	// condition caches, which are process-scoped only.
	HeaderCache *headercache.Cache

	Masterlist *metadatalist.MetadataList
	Userlist   *metadatalist.MetadataList

	ConditionCache *condition.Cache

	mu        sync.RWMutex
	plugins   map[string]*Plugin
	active    map[string]struct{}
	crcCache  *lru.Cache[string, uint32]
	loadOrder []string
}

// New constructs a Game bound to dataDir, with the fixed caches it owns for
// its whole lifetime.
func New(gt gametype.Type, gameDir, dataDir, localAppDataDir string, reader pluginfile.Reader, loh LoadOrderHandler, logger *slog.Logger) *Game {
	crcCache, _ := lru.New[string, uint32](crcCacheSize)
	if logger == nil {
		logger = slog.Default()
	}
	return &Game{
		GameType:        gt,
		GameDir:         gameDir,
		DataDir:         dataDir,
		LocalAppDataDir: localAppDataDir,
		MainMasterFile:  gt.MainMasterFile(),
		Reader:          reader,
		LoadOrder:       loh,
		Logger:          logger,
		ConditionCache:  condition.NewCache(),
		plugins:         make(map[string]*Plugin),
		active:          make(map[string]struct{}),
		crcCache:        crcCache,
	}
}

// RefreshActivePlugins re-reads the active-plugins set from the load-order
// handler and clears the condition cache, per invariant P7 (condition
// results are deterministic functions of installed state).
func (g *Game) RefreshActivePlugins(ctx context.Context) error {
	order, err := g.LoadOrder.GetLoadOrder(ctx)
	if err != nil {
		return apperr.Wrap(apperr.LoadOrderLibrary, "get load order", err)
	}

	g.mu.Lock()
	g.loadOrder = order
	g.active = make(map[string]struct{})
	g.mu.Unlock()

	for _, name := range order {
		isActive, err := g.LoadOrder.IsActive(ctx, name)
		if err != nil {
			return apperr.Wrap(apperr.LoadOrderLibrary, "check active state of "+name, err)
		}
		if isActive {
			g.mu.Lock()
			g.active[strings.ToLower(name)] = struct{}{}
			g.mu.Unlock()
		}
	}
	g.ConditionCache.Clear()
	return nil
}

// LoadOrderNames returns the game's current load order, as last refreshed.
func (g *Game) LoadOrderNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.loadOrder))
	copy(out, g.loadOrder)
	return out
}

// Plugins returns every loaded plugin, unordered.
func (g *Game) Plugins() []*Plugin {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Plugin, 0, len(g.plugins))
	for _, p := range g.plugins {
		out = append(out, p)
	}
	return out
}

// Plugin looks up a loaded plugin by name, case-insensitively.
func (g *Game) Plugin(name string) (*Plugin, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.plugins[strings.ToLower(name)]
	return p, ok
}

// IsValidPlugin reports whether name has a recognized plugin extension and
// the plugin reader can parse its header.
func (g *Game) IsValidPlugin(ctx context.Context, name string) bool {
	if !pluginfile.IsPluginExtension(name) {
		return false
	}
	_, err := g.Reader.Open(ctx, name, g.GameType, true)
	return err == nil
}

// LoadPlugins loads every named plugin, partitioning work by file size: any
// plugin larger than the mean size of the batch gets its own worker
// goroutine, and the rest share a single worker — the "size-partitioned
// worker pool" §4.5 calls for. A failure loading one plugin is aggregated
// into the returned error via go-multierror; it never aborts the batch. No
// Plugin entry and no message is created for a plugin that failed to load.
func (g *Game) LoadPlugins(ctx context.Context, names []string, headersOnly bool) error {
	sizes := make(map[string]int64, len(names))
	var total int64
	for _, n := range names {
		sz := g.fileSize(n)
		sizes[n] = sz
		total += sz
	}
	var mean int64
	if len(names) > 0 {
		mean = total / int64(len(names))
	}

	var big, small []string
	for _, n := range names {
		if sizes[n] > mean {
			big = append(big, n)
		} else {
			small = append(small, n)
		}
	}

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var errs error

	loadOne := func(name string) {
		ho := headersOnly
		if strings.EqualFold(name, g.MainMasterFile) {
			ho = true
		}

		var cacheKey string
		if g.HeaderCache != nil {
			if size, mtime, ok := g.fileStat(name); ok {
				cacheKey = headercache.Key(name, size, mtime)
				if cached, err := g.HeaderCache.Get(ctx, cacheKey); err == nil {
					g.installLoadedPlugin(cached)
					return
				}
			}
		}

		pf, err := g.Reader.Open(ctx, name, g.GameType, ho)
		if err != nil {
			errMu.Lock()
			errs = multierror.Append(errs, apperr.Wrap(apperr.PathReadFail, "load plugin "+name, err))
			errMu.Unlock()
			return
		}
		if cacheKey != "" && !ho {
			if err := g.HeaderCache.Set(ctx, cacheKey, pf); err != nil {
				g.Logger.WarnContext(ctx, "failed to populate header cache", "plugin", name, "error", err)
			}
		}

		g.installLoadedPlugin(pf)
	}

	for _, n := range big {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			loadOne(name)
		}(n)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, name := range small {
			loadOne(name)
		}
	}()

	wg.Wait()
	return errs
}

func (g *Game) fileSize(name string) int64 {
	size, _, _ := g.fileStat(name)
	return size
}

// fileStat resolves name's size and modification time, following the
// ghosted-plugin (.ghost) fallback, for use as a HeaderCache key.
func (g *Game) fileStat(name string) (size int64, modTime time.Time, ok bool) {
	path := filepath.Join(g.DataDir, name)
	if info, err := os.Stat(path); err == nil {
		return info.Size(), info.ModTime(), true
	}
	if info, err := os.Stat(path + ".ghost"); err == nil {
		return info.Size(), info.ModTime(), true
	}
	return 0, time.Time{}, false
}

// installLoadedPlugin records a successfully obtained PluginFile (freshly
// parsed or served from the header cache) into the plugins map, active
// flag and CRC cache.
func (g *Game) installLoadedPlugin(pf *pluginfile.PluginFile) {
	plugin := &Plugin{PluginFile: pf}
	g.mu.RLock()
	_, plugin.Active = g.active[pf.Lowercased]
	g.mu.RUnlock()
	plugin.LoadsArchive = g.loadsArchive(pf)

	if pf.CRC != 0 {
		g.crcCache.Add(pf.Lowercased, pf.CRC)
	}

	g.mu.Lock()
	g.plugins[pf.Lowercased] = plugin
	g.mu.Unlock()
}

// loadsArchive applies the game-dependent archive auto-load rule from §3:
// a real implementation would probe the data directory for a sibling
// archive matching the plugin's basename (or prefix, for Fallout 4); this
// repository implements exactly that probe.
func (g *Game) loadsArchive(pf *pluginfile.PluginFile) bool {
	rule := g.GameType.ArchiveLoadRule()
	if pf.Type != pluginfile.TypeESP && pf.Type != pluginfile.TypeESM {
		return false
	}
	if pf.Type == pluginfile.TypeESP && !rule.EspCanLoadArchive {
		return false
	}
	base := strings.TrimSuffix(strings.TrimSuffix(pf.Filename, filepath.Ext(pf.Filename)), ".ghost")
	entries, err := os.ReadDir(g.DataDir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() || strings.ToLower(filepath.Ext(e.Name())) != ".ba2" && strings.ToLower(filepath.Ext(e.Name())) != ".bsa" {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if rule.PrefixMatch {
			if strings.HasPrefix(strings.ToLower(name), strings.ToLower(base)) {
				return true
			}
		} else if strings.EqualFold(name, base) {
			return true
		}
	}
	return false
}

// The following methods implement condition.Evaluator, bridging the
// condition language back to this game's installed state.

const lootSelfPath = "LOOT"

func (g *Game) FileExists(ctx context.Context, path string) (bool, error) {
	if strings.EqualFold(path, lootSelfPath) {
		return true, nil
	}
	full := filepath.Join(g.DataDir, path)
	if _, err := os.Stat(full); err == nil {
		return true, nil
	}
	if pluginfile.IsPluginExtension(path) {
		if _, err := os.Stat(full + ".ghost"); err == nil {
			return true, nil
		}
	}
	return false, nil
}

func (g *Game) ListDir(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(g.DataDir, dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.PathReadFail, "list directory "+dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (g *Game) IsActive(ctx context.Context, path string) (bool, error) {
	if strings.EqualFold(path, lootSelfPath) {
		return false, nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.active[strings.ToLower(path)]
	return ok, nil
}

func (g *Game) Checksum(ctx context.Context, path string) (uint32, error) {
	if strings.EqualFold(path, lootSelfPath) {
		return lootSelfCRC, nil
	}
	key := strings.ToLower(path)
	if v, ok := g.crcCache.Get(key); ok {
		return v, nil
	}
	data, err := os.ReadFile(filepath.Join(g.DataDir, path))
	if err != nil {
		return 0, apperr.Wrap(apperr.PathReadFail, "checksum "+path, err)
	}
	crc := crc32.ChecksumIEEE(data)
	g.crcCache.Add(key, crc)
	return crc, nil
}

func (g *Game) ExtractVersion(ctx context.Context, path string) (string, error) {
	if g.IsPluginPath(path) {
		if p, ok := g.Plugin(path); ok {
			return p.Version, nil
		}
		pf, err := g.Reader.Open(ctx, path, g.GameType, true)
		if err != nil {
			return "", apperr.Wrap(apperr.PathReadFail, "extract version of "+path, err)
		}
		return pf.Version, nil
	}

	// Non-plugin files have no equivalent of a Windows PE version
	// resource available portably; fall back to scanning the file's
	// leading bytes as text, same extractor as plugin descriptions.
	f, err := os.Open(filepath.Join(g.DataDir, path))
	if err != nil {
		return "", apperr.Wrap(apperr.PathReadFail, "extract version of "+path, err)
	}
	defer f.Close()
	buf := make([]byte, 4096)
	n, _ := f.Read(buf)
	return version.Extract(string(buf[:n])), nil
}

func (g *Game) IsPluginPath(path string) bool {
	return pluginfile.IsPluginExtension(path)
}
