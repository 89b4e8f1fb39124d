// Package config loads the Config struct that every pluginsort entry point
// builds a Game and a logger from. Env+.env-file loading idiom kept
// verbatim from the teacher's own internal/config/config.go (same
// Load/Validate/loadEnvFile/getEnv/getEnvInt shape); fields replaced with
// this domain's game/data/masterlist/log/worker settings.
package config

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds everything an entry point needs to construct a gamestate.Game.
type Config struct {
	// GameType is one of tes4, tes5, fo3, fonv, fo4.
	GameType string

	// GameDir is the game's install directory.
	GameDir string
	// DataDir is the game's plugin data directory (usually GameDir/Data).
	DataDir string
	// LocalAppDataDir is the per-game local-app-data directory holding the
	// masterlist, userlist and load-order state.
	LocalAppDataDir string

	// MasterlistFile and UserlistFile are filenames resolved relative to
	// LocalAppDataDir.
	MasterlistFile string
	UserlistFile   string

	// Language is the preferred message-content language (falls back to
	// English per invariant M1).
	Language string

	// LogDir is where rotated log files are written; empty disables file
	// logging.
	LogDir string
	// Verbose enables DEBUG-level logging.
	Verbose bool

	// WorkerPoolSize is read from PLUGINSORT_WORKER_POOL_SIZE. It is not
	// passed to LoadPlugins and does not limit its parallelism.
	WorkerPoolSize int

	// Port is the internal/httpapi listen port.
	Port string
	// CORSOrigins are the allowed origins for the read-only data API.
	CORSOrigins []string
}

// Load reads configuration from environment variables and an optional .env
// file, in the same precedence order as the teacher's loader: the .env file
// is loaded first, then real environment variables take priority.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		GameType:        getEnv("PLUGINSORT_GAME_TYPE", "tes5"),
		GameDir:         getEnv("PLUGINSORT_GAME_DIR", ""),
		DataDir:         getEnv("PLUGINSORT_DATA_DIR", ""),
		LocalAppDataDir: getEnv("PLUGINSORT_LOCAL_APPDATA_DIR", "./pluginsort-data"),
		MasterlistFile:  getEnv("PLUGINSORT_MASTERLIST_FILE", "masterlist.yaml"),
		UserlistFile:    getEnv("PLUGINSORT_USERLIST_FILE", "userlist.yaml"),
		Language:        getEnv("PLUGINSORT_LANGUAGE", "en"),
		LogDir:          getEnv("PLUGINSORT_LOG_DIR", ""),
		Verbose:         getEnvBool("PLUGINSORT_VERBOSE", false),
		WorkerPoolSize:  getEnvInt("PLUGINSORT_WORKER_POOL_SIZE", 0),
		Port:            getEnv("PORT", "8080"),
	}
	cfg.CORSOrigins = parseCSV(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MasterlistPath and UserlistPath join the configured filenames onto
// LocalAppDataDir.
func (c *Config) MasterlistPath() string { return filepath.Join(c.LocalAppDataDir, c.MasterlistFile) }
func (c *Config) UserlistPath() string   { return filepath.Join(c.LocalAppDataDir, c.UserlistFile) }

// Validate checks that the fields every Game construction needs are
// present, collecting every problem into one aggregate error, matching the
// teacher's own single-aggregate-error style.
func (c *Config) Validate() error {
	var problems []string
	if c.GameDir == "" {
		problems = append(problems, "PLUGINSORT_GAME_DIR is required")
	}
	if c.DataDir == "" {
		problems = append(problems, "PLUGINSORT_DATA_DIR is required")
	}
	switch c.GameType {
	case "tes4", "tes5", "fo3", "fonv", "fo4":
	default:
		problems = append(problems, "PLUGINSORT_GAME_TYPE must be one of tes4, tes5, fo3, fonv, fo4, got "+strconv.Quote(c.GameType))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// loadEnvFile attempts to load a .env file from the current directory or a
// parent directory.
func loadEnvFile() {
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if err := loadEnvFromPath(path); err == nil {
			return
		}
	}
}

func loadEnvFromPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	file, err := os.Open(absPath)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := trimQuotes(strings.TrimSpace(parts[1]))

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

func trimQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result int
	for _, c := range value {
		if c < '0' || c > '9' {
			return defaultValue
		}
		result = result*10 + int(c-'0')
	}
	return result
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
