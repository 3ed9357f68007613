package store

import (
	"database/sql"

	cderrors "github.com/sandy-sachin7/contextd/internal/errors"
)

// UpsertFile inserts or updates the file row for path. On update,
// last_indexed is reset to NULL per spec.md §3's invariant that it is NULL
// immediately after any mtime-changing update. Returns the stable id.
func (s *Store) UpsertFile(path string, lastModified int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT INTO files(path, last_modified, last_indexed)
		VALUES (?, ?, NULL)
		ON CONFLICT(path) DO UPDATE SET
			last_modified = excluded.last_modified,
			last_indexed = NULL
	`, path, lastModified)
	if err != nil {
		return 0, cderrors.StorageUnavailable("upsert file", err)
	}

	// ON CONFLICT upserts don't report the existing row's id via LastInsertId
	// on all drivers, so look it up explicitly.
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		var existed bool
		_ = s.db.QueryRow(`SELECT 1 FROM files WHERE id = ? AND path = ?`, id, path).Scan(&existed)
		if existed {
			return id, nil
		}
	}

	var id int64
	if err := s.db.QueryRow(`SELECT id FROM files WHERE path = ?`, path).Scan(&id); err != nil {
		return 0, cderrors.StorageUnavailable("read upserted file id", err)
	}
	return id, nil
}

// NeedsReindex reports whether path has no row, has never finished an index
// pass, or has been modified since its last successful pass.
func (s *Store) NeedsReindex(path string, currentModified int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastIndexed sql.NullInt64
	err := s.db.QueryRow(`SELECT last_indexed FROM files WHERE path = ?`, path).Scan(&lastIndexed)
	switch {
	case err == sql.ErrNoRows:
		return true, nil
	case err != nil:
		return false, cderrors.StorageUnavailable("read file for reindex check", err)
	}
	if !lastIndexed.Valid {
		return true, nil
	}
	return currentModified > lastIndexed.Int64, nil
}

// markIndexed sets last_indexed to at for fileID. Callers use this only as
// the final step of the transactional re-index rewrite (see ReindexFile).
func (s *Store) markIndexed(tx *sql.Tx, fileID int64, at int64) error {
	if _, err := tx.Exec(`UPDATE files SET last_indexed = ? WHERE id = ?`, at, fileID); err != nil {
		return cderrors.StorageUnavailable("mark file indexed", err)
	}
	return nil
}

// FileByPath looks up a file's current row, or (nil, nil) if absent.
func (s *Store) FileByPath(path string) (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var f File
	var lastIndexed sql.NullInt64
	err := s.db.QueryRow(`SELECT id, path, last_modified, last_indexed FROM files WHERE path = ?`, path).
		Scan(&f.ID, &f.Path, &f.LastModified, &lastIndexed)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, cderrors.StorageUnavailable("read file", err)
	}
	if lastIndexed.Valid {
		f.LastIndexed = &lastIndexed.Int64
	}
	return &f, nil
}
