// Package watcher watches a set of roots recursively and delivers coalesced
// batches of changed paths, per spec.md §4.5.
//
// fsnotify is the primary mechanism; a polling fallback takes over when
// fsnotify's OS handle cannot be created (network mounts, some container
// runtimes). Neither mechanism reports what kind of change occurred — every
// delivered path is "requires decision," consulted against the filesystem
// and the Store by the caller.
//
// Usage:
//
//	h, err := watcher.Watch([]string{"/path/to/project"}, func(paths []string) {
//	    // submit each path as an index task
//	}, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
package watcher
