// Package pathutil provides path resolution and display utilities shared
// by the CLI and the engine.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveAbsolutePath converts a relative path to an absolute path.
// Symlinks/junctions in the EXISTING portion of the path are resolved,
// then any non-existent components are appended. This handles the case
// where user folders (like Downloads) are junction points but the target
// subdirectory doesn't exist yet.
func ResolveAbsolutePath(path string) (string, error) {
	if path == "" {
		return os.Getwd()
	}

	// Expand ~ to home directory
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = home + path[1:]
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	// Try to resolve the full path first (fast path if it exists)
	resolved, err := filepath.EvalSymlinks(absPath)
	if err == nil {
		return resolved, nil
	}

	// Path doesn't fully exist - find the deepest existing ancestor
	// and resolve junctions there, then append the rest
	current := absPath
	var remainder []string

	for {
		if _, err := os.Stat(current); err == nil {
			// Found an existing directory - resolve it
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				resolved = current // fallback if resolution fails
			}
			// Append the non-existent remainder
			if len(remainder) > 0 {
				// Reverse remainder (we collected bottom-up)
				for i := len(remainder) - 1; i >= 0; i-- {
					resolved = filepath.Join(resolved, remainder[i])
				}
			}
			return resolved, nil
		}

		// Move up one directory
		parent := filepath.Dir(current)
		if parent == current {
			// Reached root without finding existing dir
			return absPath, nil
		}
		remainder = append(remainder, filepath.Base(current))
		current = parent
	}
}

// ShortenForDisplay compresses a long path for status lines and
// notification bodies, keeping the first element and the last two:
// "/very/long/nested/path/file.txt" becomes "/very/.../path/file.txt".
// Paths at or under maxLen are returned unchanged.
func ShortenForDisplay(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}

	sep := string(filepath.Separator)
	// Normalize forward slashes so Windows paths shorten too
	normalized := path
	if sep == "/" && strings.Contains(path, "\\") {
		normalized = strings.ReplaceAll(path, "\\", "/")
	}

	parts := strings.Split(normalized, sep)
	if len(parts) <= 3 {
		// Too few components to elide; hard truncate from the left
		return "..." + path[len(path)-maxLen+3:]
	}

	head := parts[0]
	if head == "" {
		// Absolute unix path: keep the leading separator with the first element
		head = sep + parts[1]
	}
	tail := filepath.Join(parts[len(parts)-2], parts[len(parts)-1])
	short := head + sep + "..." + sep + tail
	if len(short) > maxLen {
		return "..." + sep + tail
	}
	return short
}
