package condition

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/pluginsort/core/internal/apperr"
	"github.com/pluginsort/core/internal/version"
)

// Evaluator is the game-state-facing surface the condition functions need.
// It is deliberately narrow so that this package never imports the game
// state package — C5 implements this interface, C2 only consumes it.
type Evaluator interface {
	// FileExists reports whether path is a regular file in the data
	// directory, applying the ghosted-plugin (.ghost) fallback when path
	// has a plugin extension. The literal path "LOOT" refers to the
	// running application's own executable and is handled specially.
	FileExists(ctx context.Context, path string) (bool, error)
	// ListDir lists the entries of dir (relative to the data directory).
	ListDir(ctx context.Context, dir string) ([]string, error)
	// IsActive reports whether the lowercased path is in the active-plugin
	// set. The literal path "LOOT" is never active.
	IsActive(ctx context.Context, path string) (bool, error)
	// Checksum returns the CRC-32 of path, using and populating the CRC
	// cache. The literal path "LOOT" has a fixed, special-cased CRC.
	Checksum(ctx context.Context, path string) (uint32, error)
	// ExtractVersion returns the version string for path: from its
	// description if path is a plugin, else from file metadata.
	ExtractVersion(ctx context.Context, path string) (string, error)
	// IsPluginPath reports whether path has a recognized plugin extension.
	IsPluginPath(path string) bool
}

// IsSafePath rejects paths containing a directory-traversal attempt. The
// computed parent directory is rejected if its cleaned form contains the
// literal "../..", mirroring the original condition grammar's traversal
// check.
func IsSafePath(p string) bool {
	clean := path.Clean(path.Dir(p))
	return !strings.Contains(clean, "../..")
}

// Eval walks node, calling back into ev for every leaf function. It
// performs no caching of its own; see Cache for the memoized entry point
// used by merge+evaluate.
func Eval(ctx context.Context, node *Node, ev Evaluator) (bool, error) {
	switch node.Op {
	case OpAnd:
		for _, c := range node.Children {
			ok, err := Eval(ctx, c, ev)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case OpOr:
		for _, c := range node.Children {
			ok, err := Eval(ctx, c, ev)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case OpNot:
		ok, err := Eval(ctx, node.Children[0], ev)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case OpLeaf:
		return evalFunc(ctx, node.Func, ev)
	default:
		return false, apperr.New(apperr.ConditionEvalFail, "malformed condition node")
	}
}

func evalFunc(ctx context.Context, fc *FunctionCall, ev Evaluator) (bool, error) {
	switch fc.Name {
	case "file":
		if !IsSafePath(fc.Path) {
			return false, apperr.New(apperr.ConditionEvalFail, "unsafe path in file(): "+fc.Path)
		}
		return ev.FileExists(ctx, fc.Path)

	case "regex":
		if !IsSafePath(fc.Path) {
			return false, apperr.New(apperr.ConditionEvalFail, "unsafe path in regex(): "+fc.Path)
		}
		dir, pattern := splitRegexPath(fc.Path)
		entries, err := ev.ListDir(ctx, dir)
		if err != nil {
			return false, err
		}
		re, err := compileFullMatch(pattern)
		if err != nil {
			return false, apperr.Wrap(apperr.RegexEvalFail, "compile regex() pattern "+pattern, err)
		}
		for _, e := range entries {
			if re.MatchString(e) {
				return true, nil
			}
		}
		return false, nil

	case "active":
		return ev.IsActive(ctx, fc.Path)

	case "checksum":
		if !IsSafePath(fc.Path) {
			return false, apperr.New(apperr.ConditionEvalFail, "unsafe path in checksum(): "+fc.Path)
		}
		crc, err := ev.Checksum(ctx, fc.Path)
		if err != nil {
			return false, err
		}
		return crc == fc.Hex, nil

	case "version":
		exists, err := ev.FileExists(ctx, fc.Path)
		if err != nil {
			return false, err
		}
		if !exists {
			// Absent file: only true for != and < and <=, matching "no
			// version is smaller than any version".
			switch fc.Comparator {
			case "!=", "<", "<=":
				return true, nil
			default:
				return false, nil
			}
		}
		actual, err := ev.ExtractVersion(ctx, fc.Path)
		if err != nil {
			return false, err
		}
		return compareVersion(actual, fc.Version, fc.Comparator), nil

	case "many":
		dir, pattern := splitRegexPath(fc.Path)
		entries, err := ev.ListDir(ctx, dir)
		if err != nil {
			return false, err
		}
		re, err := compileFullMatch(pattern)
		if err != nil {
			return false, apperr.Wrap(apperr.RegexEvalFail, "compile many() pattern "+pattern, err)
		}
		count := 0
		for _, e := range entries {
			if re.MatchString(e) {
				count++
				if count >= 2 {
					return true, nil
				}
			}
		}
		return false, nil

	case "many_active":
		dir, pattern := splitRegexPath(fc.Path)
		entries, err := ev.ListDir(ctx, dir)
		if err != nil {
			return false, err
		}
		re, err := compileFullMatch(pattern)
		if err != nil {
			return false, apperr.Wrap(apperr.RegexEvalFail, "compile many_active() pattern "+pattern, err)
		}
		count := 0
		for _, e := range entries {
			if !re.MatchString(e) {
				continue
			}
			active, err := ev.IsActive(ctx, e)
			if err != nil {
				return false, err
			}
			if active {
				count++
				if count >= 2 {
					return true, nil
				}
			}
		}
		return false, nil

	default:
		return false, apperr.New(apperr.ConditionEvalFail, "unknown condition function "+fc.Name)
	}
}

func compareVersion(actual, want, cmp string) bool {
	c := version.Compare(actual, want)
	switch cmp {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	default:
		return false
	}
}

// Cache memoizes evaluation results keyed by the lowercased textual form
// of the condition, as owned by the game state (§4.2/§4.5). It is written
// only from the single-threaded evaluation pass, so a plain mutex
// suffices.
type Cache struct {
	mu sync.RWMutex
	m  map[string]bool
}

func NewCache() *Cache {
	return &Cache{m: make(map[string]bool)}
}

// Clear drops every cached result; called whenever installed state changes
// (invariant P7).
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[string]bool)
}

// Evaluate parses (or reuses a cached parse is not kept here — callers that
// evaluate the same source repeatedly should pre-parse with Parse and call
// Eval directly) and evaluates source, memoizing the boolean result.
func (c *Cache) Evaluate(ctx context.Context, source string, ev Evaluator) (bool, error) {
	key := strings.ToLower(source)

	c.mu.RLock()
	if v, ok := c.m[key]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	node, err := Parse(source)
	if err != nil {
		return false, err
	}
	result, err := Eval(ctx, node, ev)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.m[key] = result
	c.mu.Unlock()

	return result, nil
}

func splitRegexPath(p string) (dir, pattern string) {
	idx := strings.LastIndexAny(p, "/\\")
	if idx < 0 {
		return ".", p
	}
	return p[:idx], p[idx+1:]
}
