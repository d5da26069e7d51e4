package scanner

import (
	"os"
	"path/filepath"
	"strings"
)

// NormalizeRoot canonicalizes a search root for prefix matching: any
// "provider::" qualifier is stripped, the path is cleaned, and exactly
// one trailing separator is appended so the root always denotes a
// directory prefix. An empty root normalizes to "".
func NormalizeRoot(root string) string {
	if root == "" {
		return ""
	}
	if idx := strings.LastIndex(root, "::"); idx >= 0 {
		root = root[idx+2:]
	}
	root = filepath.Clean(root)
	if !strings.HasSuffix(root, string(os.PathSeparator)) {
		root += string(os.PathSeparator)
	}
	return root
}

// RelativeToRoot strips the normalized root from path, comparing the
// prefix case-insensitively. A path equal to the root itself (a file
// passed directly as a search root) reduces to its base name. When the
// root is not a prefix of path at all, the full path is returned
// unchanged.
func RelativeToRoot(path, root string) string {
	normalized := NormalizeRoot(root)
	if normalized == "" {
		return path
	}
	trimmed := strings.TrimSuffix(normalized, string(os.PathSeparator))
	if strings.EqualFold(filepath.Clean(path), trimmed) {
		return filepath.Base(path)
	}
	if len(path) < len(normalized) || !strings.EqualFold(path[:len(normalized)], normalized) {
		return path
	}
	return path[len(normalized):]
}
