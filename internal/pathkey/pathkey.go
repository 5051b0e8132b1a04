// Package pathkey parses and joins storage object keys.
//
// A key is a Separator-delimited string identifying an object's full logical
// path in a bucket ("photos/2024/cat.jpg"). A key ending in Separator is a
// folder marker ("photos/2024/"). Object stores treat every other byte of a
// key literally, so "a//b" and "/a" name objects distinct from "a/b" and "a":
// empty segments are kept, never collapsed. The package holds no state.
package pathkey

import "strings"

// Separator delimits key segments.
const Separator = "/"

// Split breaks a key into its segments and reports whether the key denotes a
// folder marker. Only the single trailing separator of a folder marker is
// consumed; leading and repeated separators yield empty segments, so
// "a//b" splits to ["a", "", "b"] and "/a" to ["", "a"]. The empty key has
// no segments.
func Split(key string) (segments []string, isFolder bool) {
	if key == "" {
		return nil, false
	}
	isFolder = IsFolderKey(key)
	if isFolder {
		key = key[:len(key)-len(Separator)]
	}
	return strings.Split(key, Separator), isFolder
}

// Join concatenates segments with Separator. It is the inverse of Split for
// keys that are not folder markers.
func Join(segments ...string) string {
	return strings.Join(segments, Separator)
}

// IsFolderKey reports whether key is a folder marker.
func IsFolderKey(key string) bool {
	return strings.HasSuffix(key, Separator)
}

// Base returns the last segment of key, or "" for an empty key.
func Base(key string) string {
	segs, _ := Split(key)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}
