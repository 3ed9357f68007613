// Package store provides the persistent hybrid store: a single SQLite
// database holding files, content chunks with vectors, a full-text shadow,
// and the hybrid ranker (vector + FTS via Reciprocal Rank Fusion) over it,
// per spec.md §3, §4.1 and §4.8.
package store

import "time"

// File is a tracked filesystem path. Identity is a monotonic integer id;
// the natural key is the canonicalized absolute path.
type File struct {
	ID           int64
	Path         string
	LastModified int64 // seconds since epoch, filesystem mtime
	LastIndexed  *int64 // nil until the chunk set has been fully rewritten
}

// Chunk is a contiguous byte range of a file with its extracted text,
// optional embedding, and optional metadata.
type Chunk struct {
	ID           int64
	FileID       int64
	StartOffset  int
	EndOffset    int
	Content      string
	Embedding    []float32 // nil if the chunk has no vector
	MetadataJSON string    // opaque JSON, "" if absent
}

// Stats summarizes the store's current size.
type Stats struct {
	FileCount    int64
	ChunkCount   int64
	DBSizeBytes  int64
}

// SearchResult is the shared shape returned by all three retrieval modes.
type SearchResult struct {
	ChunkID      int64   `json:"chunk_id"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
	FilePath     string  `json:"file_path"`
	FileType     string  `json:"file_type"`
	LastModified int64   `json:"last_modified"`
	MetadataJSON string  `json:"metadata,omitempty"`
}

// SearchOptions filters and shapes a retrieval call, corresponding to the
// Query request fields in spec.md §6.
type SearchOptions struct {
	Limit         int
	StartTime     int64
	EndTime       int64 // 0 means "no upper bound"
	FileTypes     []string
	Paths         []string
	MinScore      float64
	// RecencyWeight is a pointer so an explicit 0 (no recency bias) is
	// distinguishable from "unset" (apply DefaultRecencyWeight). See
	// spec.md §6's recency_weight: float? and normalizeOptions below.
	RecencyWeight *float64
}

// hasFilters reports whether any filter beyond Limit/MinScore is set, which
// determines query-cache eligibility per spec.md §3's Query cache invariant.
func (o SearchOptions) hasFilters() bool {
	return o.StartTime != 0 || o.EndTime != 0 || len(o.FileTypes) > 0 || len(o.Paths) > 0
}

const (
	// DefaultLimit is applied when SearchOptions.Limit is unset.
	DefaultLimit = 10
	// DefaultRecencyWeight is applied when SearchOptions.RecencyWeight is nil.
	DefaultRecencyWeight = 0.1
	// DefaultQueryCacheSize is the LRU capacity for the query cache.
	DefaultQueryCacheSize = 100
	// rrfK is Reciprocal Rank Fusion's rank-damping constant.
	rrfK = 60
	// intermediateCap bounds FTS and per-mode vector result lists before
	// fusion or truncation, per spec.md §4.8.
	intermediateCap = 50
)

func nowUnix() int64 { return time.Now().Unix() }
