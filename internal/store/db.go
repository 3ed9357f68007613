package store

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"

	cderrors "github.com/sandy-sachin7/contextd/internal/errors"
)

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE,
	last_modified INTEGER NOT NULL,
	last_indexed INTEGER
);
CREATE INDEX IF NOT EXISTS idx_files_path ON files(path);

CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	start_offset INTEGER NOT NULL,
	end_offset INTEGER NOT NULL,
	content TEXT NOT NULL,
	embedding BLOB,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_chunks_file_id ON chunks(file_id);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	content,
	tokenize = 'porter unicode61'
);

CREATE TABLE IF NOT EXISTS schema_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store owns the single SQLite connection and FTS shadow backing the
// daemon's corpus. All mutation is funneled through it; the connection is
// guarded by mu, the store's single serialization point for durability per
// spec.md §5.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex

	cacheMu sync.Mutex
	cache   *lru.Cache[string, []SearchResult]
}

// Open opens or creates the database at path, enabling foreign-key
// enforcement and WAL journaling, and creates the schema if absent. Fails
// with StorageUnavailable on I/O error, or SchemaMismatch when the stored
// schema version differs from the expected one.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, cderrors.StorageUnavailable(fmt.Sprintf("open %s", path), err)
	}
	db.SetMaxOpenConns(1) // one physical connection; mu is the real serializer

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, cderrors.StorageUnavailable("create schema", err)
	}
	if err := checkOrStampSchemaVersion(db); err != nil {
		db.Close()
		return nil, err
	}

	cache, err := lru.New[string, []SearchResult](DefaultQueryCacheSize)
	if err != nil {
		db.Close()
		return nil, cderrors.StorageUnavailable("init query cache", err)
	}

	return &Store{path: path, db: db, cache: cache}, nil
}

func checkOrStampSchemaVersion(db *sql.DB) error {
	var value string
	err := db.QueryRow(`SELECT value FROM schema_meta WHERE key = 'version'`).Scan(&value)
	switch {
	case err == sql.ErrNoRows:
		_, err := db.Exec(`INSERT INTO schema_meta(key, value) VALUES('version', ?)`, fmt.Sprintf("%d", schemaVersion))
		if err != nil {
			return cderrors.StorageUnavailable("stamp schema version", err)
		}
		return nil
	case err != nil:
		return cderrors.StorageUnavailable("read schema version", err)
	}
	if value != fmt.Sprintf("%d", schemaVersion) {
		return cderrors.SchemaMismatch(fmt.Sprintf("database schema version %s does not match expected %d", value, schemaVersion), nil)
	}
	return nil
}

// DB returns the underlying connection, for auxiliary read-only tooling
// (telemetry queries) that shares the store's database file but owns no
// schema of its own.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Stats reports file/chunk counts and the on-disk database size.
func (s *Store) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&st.FileCount); err != nil {
		return Stats{}, cderrors.StorageUnavailable("count files", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&st.ChunkCount); err != nil {
		return Stats{}, cderrors.StorageUnavailable("count chunks", err)
	}
	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}
	return st, nil
}
