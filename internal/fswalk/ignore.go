package fswalk

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultIgnorePatterns are always applied regardless of config or a
// root-local ignore file: the ignore file itself should never end up
// being backed up as an ordinary data file.
var defaultIgnorePatterns = []string{".obnamignore"}

type ignorePattern struct {
	pattern   string
	matchPath bool // true = match against relative path; false = basename only
}

// IgnoreMatcher checks candidate paths against a set of glob patterns.
// Patterns containing '/' match against the full path relative to the
// backup root; patterns without one match against the basename only,
// mirroring gitignore's own convention.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher builds a matcher from raw pattern lines. Blank
// lines and '#'-prefixed comment lines are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	patterns := make([]ignorePattern, 0, len(rawPatterns)+len(defaultIgnorePatterns))
	for _, raw := range append(append([]string{}, defaultIgnorePatterns...), rawPatterns...) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether relPath (relative to a backup root, forward
// slashes) should be excluded from the backup.
func (m *IgnoreMatcher) Match(relPath string) bool {
	normalized := filepath.ToSlash(relPath)
	basename := filepath.Base(relPath)

	for _, p := range m.patterns {
		var matched bool
		var err error
		if p.matchPath {
			matched, err = filepath.Match(p.pattern, normalized)
		} else {
			matched, err = filepath.Match(p.pattern, basename)
		}
		if err != nil {
			continue // malformed pattern; skip rather than abort the walk
		}
		if matched {
			return true
		}
	}
	return false
}

// ParseIgnoreFile reads a root-local ignore file. A missing file is
// not an error: it just means no root-specific patterns apply.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
