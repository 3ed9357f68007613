package store

import (
	"database/sql"
	"encoding/binary"
	"math"
	"path/filepath"
	"sort"
	"strings"

	cderrors "github.com/sandy-sachin7/contextd/internal/errors"
)

// VectorSearch streams every chunk with a non-null embedding inside the
// time window, scores it by cosine similarity (a dot product, since
// embeddings are pre-normalized), applies post-filters and recency
// re-weighting, and returns the top opts.Limit results. Rows whose decoded
// embedding length differs from len(queryVec) are silently skipped (the
// dimension-drift protection from spec.md §4.1).
func (s *Store) VectorSearch(queryVec []float32, opts SearchOptions) ([]SearchResult, error) {
	opts = normalizeOptions(opts)

	if cached, ok := s.cacheLookup(queryVec, opts); ok {
		return cached, nil
	}

	rows, err := s.queryVectorRows(opts)
	if err != nil {
		return nil, err
	}

	// Cached entries must be valid regardless of the min_score a later
	// caller passes, so the min_score cutoff is applied only on return, not
	// before the cache store (spec.md §3's Query cache invariant).
	scored := make([]SearchResult, 0, len(rows))
	for _, r := range rows {
		vec := decodeEmbedding(r.embeddingBlob)
		if len(vec) != len(queryVec) {
			continue // dimension drift protection
		}
		if !matchesPathAndType(r.path, opts) {
			continue
		}
		cos := dot(queryVec, vec)
		final := applyRecency(cos, r.lastModified, *opts.RecencyWeight)
		scored = append(scored, SearchResult{
			ChunkID:      r.id,
			Content:      r.content,
			Score:        final,
			FilePath:     r.path,
			FileType:     fileExt(r.path),
			LastModified: r.lastModified,
			MetadataJSON: r.metadata,
		})
	}

	sortByScoreDesc(scored)
	if len(scored) > intermediateCap {
		scored = scored[:intermediateCap]
	}

	if !opts.hasFilters() {
		s.cacheStore(queryVec, scored)
	}

	return truncateWithMinScore(scored, opts), nil
}

// FTSSearch runs the full-text query against the FTS shadow, ordered by the
// underlying relevance score, capped at 50 intermediate results before the
// caller's limit is applied.
func (s *Store) FTSSearch(queryText string, opts SearchOptions) ([]SearchResult, error) {
	opts = normalizeOptions(opts)

	s.mu.Lock()
	query := `
		SELECT c.id, c.content, c.metadata, f.path, f.last_modified, bm25(chunks_fts) AS rank
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.rowid
		JOIN files f ON f.id = c.file_id
		WHERE chunks_fts MATCH ?
		  AND f.last_modified >= ? AND (? = 0 OR f.last_modified <= ?)
		ORDER BY rank ASC
		LIMIT ?
	`
	rows, err := s.db.Query(query, queryText, opts.StartTime, opts.EndTime, opts.EndTime, intermediateCap)
	s.mu.Unlock()
	if err != nil {
		return nil, cderrors.StorageUnavailable("fts search", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var id int64
		var content, path string
		var metadata sql.NullString
		var lastModified int64
		var rank float64
		if err := rows.Scan(&id, &content, &metadata, &path, &lastModified, &rank); err != nil {
			return nil, cderrors.StorageUnavailable("scan fts row", err)
		}
		if !matchesPathAndType(path, opts) {
			continue
		}
		// bm25() is negative-is-better in SQLite's convention; flip the sign
		// so higher is always more relevant, matching vector_search's scale.
		score := -rank
		if score < opts.MinScore {
			continue
		}
		results = append(results, SearchResult{
			ChunkID:      id,
			Content:      content,
			Score:        score,
			FilePath:     path,
			FileType:     fileExt(path),
			LastModified: lastModified,
			MetadataJSON: metadata.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, cderrors.StorageUnavailable("iterate fts rows", err)
	}

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// HybridSearch runs vector and FTS search with limit=50 each, fuses them by
// Reciprocal Rank Fusion (contribution 1/(k+rank), k=60, rank 1-indexed,
// summed per chunk id across both lists), and returns the top opts.Limit
// results by summed score.
func (s *Store) HybridSearch(queryText string, queryVec []float32, opts SearchOptions) ([]SearchResult, error) {
	fusionOpts := opts
	fusionOpts.Limit = intermediateCap
	fusionOpts.MinScore = 0 // filters are applied again after fusion

	vecResults, err := s.VectorSearch(queryVec, fusionOpts)
	if err != nil {
		return nil, err
	}
	ftsResults, err := s.FTSSearch(queryText, fusionOpts)
	if err != nil {
		return nil, err
	}

	type fused struct {
		result SearchResult
		score  float64
	}
	byID := make(map[int64]*fused)
	order := make([]int64, 0, len(vecResults)+len(ftsResults))

	contribute := func(list []SearchResult) {
		for i, r := range list {
			rank := i + 1
			contribution := 1.0 / float64(rrfK+rank)
			if f, ok := byID[r.ChunkID]; ok {
				f.score += contribution
				continue
			}
			byID[r.ChunkID] = &fused{result: r, score: contribution}
			order = append(order, r.ChunkID)
		}
	}
	contribute(vecResults)
	contribute(ftsResults)

	merged := make([]SearchResult, 0, len(order))
	for _, id := range order {
		f := byID[id]
		r := f.result
		r.Score = f.score
		merged = append(merged, r)
	}

	sortByScoreDesc(merged)
	merged = applyMinScore(merged, opts.MinScore)
	if opts.Limit > 0 && len(merged) > opts.Limit {
		merged = merged[:opts.Limit]
	}
	return merged, nil
}

// --- shared helpers ---

type vectorRow struct {
	id            int64
	content       string
	metadata      string
	embeddingBlob []byte
	path          string
	lastModified  int64
}

func (s *Store) queryVectorRows(opts SearchOptions) ([]vectorRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		SELECT c.id, c.content, c.metadata, c.embedding, f.path, f.last_modified
		FROM chunks c
		JOIN files f ON f.id = c.file_id
		WHERE c.embedding IS NOT NULL
		  AND f.last_modified >= ? AND (? = 0 OR f.last_modified <= ?)
	`
	rows, err := s.db.Query(query, opts.StartTime, opts.EndTime, opts.EndTime)
	if err != nil {
		return nil, cderrors.StorageUnavailable("vector search", err)
	}
	defer rows.Close()

	var out []vectorRow
	for rows.Next() {
		var r vectorRow
		var metadata sql.NullString
		if err := rows.Scan(&r.id, &r.content, &metadata, &r.embeddingBlob, &r.path, &r.lastModified); err != nil {
			return nil, cderrors.StorageUnavailable("scan vector row", err)
		}
		r.metadata = metadata.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, cderrors.StorageUnavailable("iterate vector rows", err)
	}
	return out, nil
}

func normalizeOptions(opts SearchOptions) SearchOptions {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.RecencyWeight == nil {
		w := DefaultRecencyWeight
		opts.RecencyWeight = &w
	}
	return opts
}

// matchesPathAndType applies the file-type and path-substring post-filters,
// per spec.md §4.8.
func matchesPathAndType(path string, opts SearchOptions) bool {
	if len(opts.FileTypes) > 0 {
		ext := strings.TrimPrefix(fileExt(path), ".")
		ok := false
		for _, ft := range opts.FileTypes {
			if strings.EqualFold(ext, strings.TrimPrefix(ft, ".")) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(opts.Paths) > 0 {
		ok := false
		for _, p := range opts.Paths {
			if strings.Contains(path, p) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func fileExt(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// applyRecency blends cosine similarity with a recency boost:
// boost = 1/(1+age_hours/24), final = score*(1-w) + boost*w.
func applyRecency(score float64, lastModified int64, w float64) float64 {
	ageHours := float64(nowUnix()-lastModified) / 3600
	if ageHours < 0 {
		ageHours = 0
	}
	boost := 1 / (1 + ageHours/24)
	return score*(1-w) + boost*w
}

func sortByScoreDesc(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

func applyMinScore(results []SearchResult, minScore float64) []SearchResult {
	if minScore == 0 {
		return results
	}
	out := results[:0]
	for _, r := range results {
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	return out
}

func truncateWithMinScore(results []SearchResult, opts SearchOptions) []SearchResult {
	filtered := applyMinScore(results, opts.MinScore)
	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}
	return filtered
}

// --- query cache ---

// cacheKey fingerprints the raw embedding bytes plus an "unfiltered" marker,
// per spec.md §3's Query cache entity.
func cacheKey(v []float32) string {
	buf := make([]byte, len(v)*4+len("|unfiltered"))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	copy(buf[len(v)*4:], "|unfiltered")
	return string(buf)
}

func (s *Store) cacheLookup(v []float32, opts SearchOptions) ([]SearchResult, bool) {
	if opts.hasFilters() {
		return nil, false
	}
	s.cacheMu.Lock()
	cached, ok := s.cache.Get(cacheKey(v))
	s.cacheMu.Unlock()
	if !ok {
		return nil, false
	}
	clone := make([]SearchResult, len(cached))
	copy(clone, cached)
	return truncateWithMinScore(clone, opts), true
}

func (s *Store) cacheStore(v []float32, results []SearchResult) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	clone := make([]SearchResult, len(results))
	copy(clone, results)
	s.cache.Add(cacheKey(v), clone)
}
