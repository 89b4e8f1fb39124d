// Package headercache persists parsed plugin headers keyed by (path, size,
// mtime) so repeated sorts of an unchanged load order skip re-parsing every
// binary plugin header. It is adapted from the teacher's internal/cache
// package (same SQLite TTL-table shape via modernc.org/sqlite), repurposed
// from FOMOD-analysis-result caching to plugin-header caching; it is a
// distinct, additive cross-run optimization layered on top of the
// process-scoped, in-memory CRC/condition caches §5 requires gamestate.Game
// to own directly.
package headercache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pluginsort/core/internal/pluginfile"
)

// ErrNotFound is returned when no cached header matches the given key.
var ErrNotFound = errors.New("headercache: entry not found")

// Config controls where the cache database lives and how long entries
// remain valid once their backing plugin stops changing.
type Config struct {
	DBPath string
	TTL    time.Duration
}

// Cache is a SQLite-backed store of parsed plugin headers.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
}

// New opens (or creates) the cache database at cfg.DBPath.
func New(cfg Config) (*Cache, error) {
	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create headercache directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open headercache database: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize headercache schema: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Cache{db: db, ttl: ttl}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS plugin_headers (
			cache_key  TEXT PRIMARY KEY,
			data       TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_plugin_headers_expires ON plugin_headers(expires_at);
	`)
	return err
}

// Key derives a cache key from the installed file's path, size and mod
// time — any one of the three changing invalidates the cached header.
func Key(path string, size int64, modTime time.Time) string {
	return fmt.Sprintf("%s:%d:%d", path, size, modTime.UnixNano())
}

// Get retrieves a cached header, or ErrNotFound if absent or expired.
func (c *Cache) Get(ctx context.Context, key string) (*pluginfile.PluginFile, error) {
	var data string
	var expiresAt int64
	err := c.db.QueryRowContext(ctx, `SELECT data, expires_at FROM plugin_headers WHERE cache_key = ?`, key).
		Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query headercache: %w", err)
	}
	if time.Now().UnixMilli() > expiresAt {
		_, _ = c.db.ExecContext(ctx, `DELETE FROM plugin_headers WHERE cache_key = ?`, key)
		return nil, ErrNotFound
	}

	var pf pluginfile.PluginFile
	if err := json.Unmarshal([]byte(data), &pf); err != nil {
		return nil, fmt.Errorf("unmarshal cached header: %w", err)
	}
	return &pf, nil
}

// Set stores a parsed header under key, good for the cache's configured TTL.
func (c *Cache) Set(ctx context.Context, key string, pf *pluginfile.PluginFile) error {
	data, err := json.Marshal(pf)
	if err != nil {
		return fmt.Errorf("marshal header for cache: %w", err)
	}
	now := time.Now()
	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO plugin_headers (cache_key, data, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, key, string(data), now.UnixMilli(), now.Add(c.ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("insert headercache entry: %w", err)
	}
	return nil
}

// Cleanup removes every expired entry.
func (c *Cache) Cleanup(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM plugin_headers WHERE expires_at < ?`, time.Now().UnixMilli())
	return err
}

// Close closes the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}
