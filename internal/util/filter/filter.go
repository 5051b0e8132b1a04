// Package filter selects files and folders by glob, substring and path
// pattern. It is shared by the ls and find commands.
package filter

import (
	"path"
	"strings"
)

// Config holds filter configuration. The zero value matches everything.
type Config struct {
	// Include patterns (glob-style) matched against the name. Empty means
	// include all.
	// Example: []string{"*.png", "*.jpg"}
	Include []string

	// Exclude patterns (glob-style). Takes precedence over Include.
	// Example: []string{"thumb*", "tmp*"}
	Exclude []string

	// Search terms (case-insensitive substring match). The name must
	// contain ALL of them.
	Search []string

	// PathInclude patterns match against the key relative to the listed
	// folder. A "**" segment matches any number of folders:
	// "**/index.html" matches "site/docs/index.html".
	PathInclude []string
}

// IsEmpty reports whether the configuration filters nothing.
func (c Config) IsEmpty() bool {
	return len(c.Include) == 0 && len(c.Exclude) == 0 && len(c.Search) == 0 && len(c.PathInclude) == 0
}

// Apply returns the items that pass config, in their original order. path
// may be nil, in which case PathInclude is matched against the name.
func Apply[T any](items []T, name, path func(T) string, config Config) []T {
	if config.IsEmpty() {
		return items
	}

	filtered := make([]T, 0, len(items))
	for _, item := range items {
		n := name(item)
		p := n
		if path != nil {
			if full := path(item); full != "" {
				p = full
			}
		}
		if Match(n, p, config) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// Match reports whether a single name/path pair passes config.
func Match(name, relPath string, config Config) bool {
	if len(config.PathInclude) > 0 && !matchesAnyPath(relPath, config.PathInclude) {
		return false
	}

	for _, pattern := range config.Exclude {
		if globMatch(pattern, name) {
			return false
		}
	}

	if len(config.Include) > 0 {
		included := false
		for _, pattern := range config.Include {
			if globMatch(pattern, name) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}

	lower := strings.ToLower(name)
	for _, term := range config.Search {
		if !strings.Contains(lower, strings.ToLower(term)) {
			return false
		}
	}
	return true
}

// globMatch matches a single-segment pattern. Malformed patterns match
// nothing.
func globMatch(pattern, name string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

func matchesAnyPath(relPath string, patterns []string) bool {
	segs := splitPath(relPath)
	for _, pattern := range patterns {
		if matchSegments(splitPath(pattern), segs) {
			return true
		}
	}
	return false
}

// matchSegments matches pattern segments against path segments, where a
// "**" pattern segment consumes zero or more path segments.
func matchSegments(pattern, segs []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			for i := 0; i <= len(segs); i++ {
				if matchSegments(rest, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 || !globMatch(pattern[0], segs[0]) {
			return false
		}
		pattern, segs = pattern[1:], segs[1:]
	}
	return len(segs) == 0
}

// splitPath splits on either separator so Windows-style patterns work too.
func splitPath(p string) []string {
	p = strings.Trim(strings.ReplaceAll(p, `\`, "/"), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// ParsePatternList parses a comma-separated list of patterns into a slice.
// Example: "*.png,*.jpg" -> []string{"*.png", "*.jpg"}
func ParsePatternList(patternStr string) []string {
	if patternStr == "" {
		return nil
	}
	parts := strings.Split(patternStr, ",")
	patterns := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	return patterns
}
