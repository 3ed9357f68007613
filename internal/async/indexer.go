package async

import (
	"os"
	"path/filepath"
	"time"
)

// indexLockFile marks that an indexing pass is in flight. A leftover lock
// file after a crash (process killed mid-scan, OOM during embedding) is the
// signal HasIncompleteLock surfaces to `contextd doctor`.
const indexLockFile = "indexing.lock"

// WriteIndexLock records that indexing has started in dataDir.
func WriteIndexLock(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dataDir, indexLockFile)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// RemoveIndexLock clears the lock written by WriteIndexLock. Call it once
// indexing finishes, whether it succeeded or stopped because its context was
// canceled — only a hard crash should leave the lock behind.
func RemoveIndexLock(dataDir string) error {
	err := os.Remove(filepath.Join(dataDir, indexLockFile))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// HasIncompleteLock reports whether a previous indexing run left its lock
// file behind, meaning it never reached RemoveIndexLock.
func HasIncompleteLock(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, indexLockFile))
	return err == nil
}
