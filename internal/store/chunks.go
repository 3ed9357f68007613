package store

import (
	"database/sql"
	"encoding/binary"
	"math"

	cderrors "github.com/sandy-sachin7/contextd/internal/errors"
)

// NewChunk describes a chunk to be inserted as part of a re-index pass.
type NewChunk struct {
	StartOffset  int
	EndOffset    int
	Content      string
	Embedding    []float32 // nil if embedding failed or chunk has none
	MetadataJSON string    // "" if absent
}

// ReindexFile atomically replaces fileID's chunk set: clear_chunks, insert
// all of chunks, then mark_indexed, all in one transaction, per spec.md
// §3/§4.1's atomicity rule. On any failure the prior chunk set remains
// visible and last_indexed stays unset so the next pass retries.
func (s *Store) ReindexFile(fileID int64, chunks []NewChunk, indexedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return cderrors.StorageUnavailable("begin reindex transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := clearChunksTx(tx, fileID); err != nil {
		return err
	}
	for _, c := range chunks {
		if err := insertChunkTx(tx, fileID, c); err != nil {
			return err
		}
	}
	if err := s.markIndexed(tx, fileID, indexedAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return cderrors.StorageUnavailable("commit reindex transaction", err)
	}
	committed = true
	return nil
}

// ClearChunks deletes FTS rows for all of fileID's chunks, then the chunk
// rows themselves, outside of any caller-managed transaction.
func (s *Store) ClearChunks(fileID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return cderrors.StorageUnavailable("begin clear_chunks transaction", err)
	}
	if err := clearChunksTx(tx, fileID); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return cderrors.StorageUnavailable("commit clear_chunks transaction", err)
	}
	return nil
}

func clearChunksTx(tx *sql.Tx, fileID int64) error {
	// FTS rows first, then chunk rows, per spec.md §3's ownership rule.
	if _, err := tx.Exec(`
		DELETE FROM chunks_fts WHERE rowid IN (SELECT id FROM chunks WHERE file_id = ?)
	`, fileID); err != nil {
		return cderrors.StorageUnavailable("clear fts rows", err)
	}
	if _, err := tx.Exec(`DELETE FROM chunks WHERE file_id = ?`, fileID); err != nil {
		return cderrors.StorageUnavailable("clear chunk rows", err)
	}
	return nil
}

// InsertChunk persists one chunk outside of a caller-managed transaction and
// synchronously inserts its FTS row keyed by the same id.
func (s *Store) InsertChunk(fileID int64, c NewChunk) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, cderrors.StorageUnavailable("begin insert_chunk transaction", err)
	}
	id, err := insertChunkTxID(tx, fileID, c)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, cderrors.StorageUnavailable("commit insert_chunk transaction", err)
	}
	return id, nil
}

func insertChunkTx(tx *sql.Tx, fileID int64, c NewChunk) error {
	_, err := insertChunkTxID(tx, fileID, c)
	return err
}

func insertChunkTxID(tx *sql.Tx, fileID int64, c NewChunk) (int64, error) {
	var blob []byte
	if c.Embedding != nil {
		blob = encodeEmbedding(c.Embedding)
	}
	var metadata sql.NullString
	if c.MetadataJSON != "" {
		metadata = sql.NullString{String: c.MetadataJSON, Valid: true}
	}

	res, err := tx.Exec(`
		INSERT INTO chunks(file_id, start_offset, end_offset, content, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`, fileID, c.StartOffset, c.EndOffset, c.Content, nullableBlob(blob), metadata)
	if err != nil {
		return 0, cderrors.StorageUnavailable("insert chunk", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, cderrors.StorageUnavailable("read inserted chunk id", err)
	}

	if _, err := tx.Exec(`INSERT INTO chunks_fts(rowid, content) VALUES (?, ?)`, id, c.Content); err != nil {
		return 0, cderrors.StorageUnavailable("insert fts row", err)
	}
	return id, nil
}

func nullableBlob(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return b
}

// encodeEmbedding writes v as little-endian 32-bit floats with no header,
// per spec.md §6's embedding blob format.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeEmbedding reads a little-endian float32 blob. The dimension is
// implicit from the byte length.
func decodeEmbedding(b []byte) []float32 {
	n := len(b) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
