package ignore

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Rule file names recognized at the root of a watched directory.
const (
	ProjectIgnoreFile = ".contextignore"
	VCSIgnoreFile     = ".gitignore"
)

// Filter answers "is this path ignored?" for a single watch root. It loads
// both recognized rule files once at construction and is safe for concurrent
// reads afterward; it carries no mutable state past New.
type Filter struct {
	root    string
	matcher *Matcher
}

// NewFilter constructs a Filter for root, loading .contextignore and .gitignore
// from root if present. Missing files are not an error. A file that exists
// but fails to parse is logged via logger (or discarded silently if logger
// is nil) and the rule set continues with whatever loaded from the other
// file.
func NewFilter(root string, logger *slog.Logger) *Filter {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}

	m := New()
	for _, name := range []string{ProjectIgnoreFile, VCSIgnoreFile} {
		path := filepath.Join(absRoot, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := m.AddFromFile(path, ""); err != nil {
			if logger != nil {
				logger.Warn("failed to load ignore rule file",
					"path", path, "error", err)
			}
		}
	}

	return &Filter{root: absRoot, matcher: m}
}

// IsIgnored reports whether path should be excluded from indexing. path may
// be absolute or already relative to the filter's root. Every ancestor
// directory of path is also checked; a directory-level ignore match excludes
// all of its descendants even if the descendant path itself matches no rule.
func (f *Filter) IsIgnored(path string, isDir bool) bool {
	rel := f.relativize(path)
	if rel == "" || rel == "." {
		return false
	}

	if f.matcher.Match(rel, isDir) {
		return true
	}

	for _, ancestor := range ancestors(rel) {
		if f.matcher.Match(ancestor, true) {
			return true
		}
	}

	return false
}

// relativize converts path to a slash-separated path relative to the
// filter's root when possible, leaving it unchanged if it cannot be made
// relative (e.g. it already is).
func (f *Filter) relativize(path string) string {
	candidate := path
	if filepath.IsAbs(path) {
		if rel, err := filepath.Rel(f.root, path); err == nil {
			candidate = rel
		}
	}
	return filepath.ToSlash(candidate)
}

// ancestors returns every proper parent directory of a slash-separated
// relative path, nearest-first, excluding "." and the path itself.
func ancestors(rel string) []string {
	parts := strings.Split(rel, "/")
	if len(parts) <= 1 {
		return nil
	}
	result := make([]string, 0, len(parts)-1)
	for i := len(parts) - 1; i > 0; i-- {
		result = append(result, strings.Join(parts[:i], "/"))
	}
	return result
}
