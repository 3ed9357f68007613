// Package ignore provides gitignore-syntax pattern matching for per-root file
// exclusion.
//
// It implements the gitignore pattern syntax as documented at:
// https://git-scm.com/docs/gitignore
//
// Features:
//   - Basic pattern matching (*.log, temp/)
//   - Wildcard patterns (*, ?, **)
//   - Rooted patterns (/build)
//   - Negation patterns (!important.log)
//   - Directory-only patterns (build/)
//   - Nested ignore file support
//   - Thread-safe matching
//
// Usage:
//
//	m := ignore.New()
//	m.AddPattern("*.log")
//	m.AddPattern("!important.log")
//	m.AddPattern("/build/")
//
//	if m.Match("error.log", false) {
//	    // File is ignored
//	}
//
// Filter combines a Matcher with the two rule files a root may carry
// (.contextignore and .gitignore) and applies "a directory's rules ignore its
// children too" semantics on top of raw pattern matching.
package ignore
