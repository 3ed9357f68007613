package mcp

// QueryInput defines the input schema for the query tool. Field names mirror
// the daemon's JSON-RPC query method so the same request shape works whether
// a caller goes through MCP or dials the daemon socket directly.
type QueryInput struct {
	Query         string   `json:"query" jsonschema:"the search query to execute"`
	Limit         int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	StartTime     int64    `json:"start_time,omitempty" jsonschema:"unix timestamp, only include chunks indexed at or after this time"`
	EndTime       int64    `json:"end_time,omitempty" jsonschema:"unix timestamp, only include chunks indexed at or before this time"`
	FileTypes     []string `json:"file_types,omitempty" jsonschema:"restrict results to these file extensions, e.g. go, md"`
	Paths         []string `json:"paths,omitempty" jsonschema:"restrict results to files whose path contains at least one of these strings"`
	MinScore float64 `json:"min_score,omitempty" jsonschema:"drop results scoring below this threshold"`
	// RecencyWeight is a pointer so a caller can pass 0 (no recency bias)
	// without it being mistaken for "not provided, use the default".
	RecencyWeight *float64 `json:"recency_weight,omitempty" jsonschema:"0-1, how strongly to favor recently modified files"`
}

// QueryOutput defines the output schema for the query tool.
type QueryOutput struct {
	Results []QueryResultOutput `json:"results" jsonschema:"ranked list of matching chunks"`
}

// QueryResultOutput is a single ranked match.
type QueryResultOutput struct {
	Content      string  `json:"content" jsonschema:"matched chunk content"`
	Score        float64 `json:"score" jsonschema:"fused relevance score"`
	FilePath     string  `json:"file_path,omitempty" jsonschema:"file path relative to the watched root"`
	FileType     string  `json:"file_type,omitempty" jsonschema:"MIME type of the source file"`
	LastModified int64   `json:"last_modified,omitempty" jsonschema:"unix timestamp of the file's last modification"`
}

// StatsInput defines the input schema for the stats tool (no parameters).
type StatsInput struct{}

// StatsOutput defines the output schema for the stats tool.
type StatsOutput struct {
	Project     ProjectInfo `json:"project"`
	FileCount   int64       `json:"file_count" jsonschema:"number of indexed files"`
	ChunkCount  int64       `json:"chunk_count" jsonschema:"number of indexed chunks"`
	DBSizeBytes int64       `json:"db_size_bytes" jsonschema:"on-disk size of the index database"`
}

// ProjectInfo contains information about the indexed project.
type ProjectInfo struct {
	Name     string `json:"name"`
	RootPath string `json:"root_path"`
	Type     string `json:"type"`
}
