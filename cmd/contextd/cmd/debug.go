package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandy-sachin7/contextd/internal/config"
	"github.com/sandy-sachin7/contextd/internal/embed"
	"github.com/sandy-sachin7/contextd/internal/output"
	"github.com/sandy-sachin7/contextd/internal/store"
)

// DebugInfo summarizes a project's index for troubleshooting.
type DebugInfo struct {
	ProjectRoot      string             `json:"project_root"`
	IndexPath        string             `json:"index_path"`
	FileCount        int                `json:"file_count"`
	ChunkCount       int                `json:"chunk_count"`
	DBSizeBytes      int64              `json:"db_size_bytes"`
	LastIndexed      time.Time          `json:"last_indexed"`
	Languages        map[string]float64 `json:"languages"`
	EmbedderProvider string             `json:"embedder_provider"`
	EmbedderModel    string             `json:"embedder_model"`
	EmbedderDims     int                `json:"embedder_dimensions"`
}

func newDebugCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Show diagnostic information about the current project's index",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := config.FindProjectRoot(".")
			if err != nil {
				root, _ = os.Getwd()
			}
			dataDir := filepath.Join(root, ".contextd")

			info, err := collectDebugInfo(cmd.Context(), root, dataDir)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			printDebugInfo(cmd, info)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

// collectDebugInfo opens the project's store (read-only from this
// command's point of view) and summarizes its contents: file/chunk counts,
// database size, the most recent index timestamp, and a language breakdown
// derived from each file's extension.
func collectDebugInfo(_ context.Context, root, dataDir string) (DebugInfo, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return DebugInfo{}, fmt.Errorf("load config: %w", err)
	}

	if _, statErr := os.Stat(cfg.Store.Path); os.IsNotExist(statErr) {
		return DebugInfo{}, fmt.Errorf("no index found. Run 'contextd index' first")
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return DebugInfo{}, fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	stats, err := st.Stats()
	if err != nil {
		return DebugInfo{}, fmt.Errorf("read stats: %w", err)
	}

	languages, lastIndexed, err := languageBreakdown(st)
	if err != nil {
		return DebugInfo{}, fmt.Errorf("read file paths: %w", err)
	}

	embedderModel := cfg.Embeddings.Model
	embedderProvider := "onnx"
	if os.Getenv("CONTEXTD_EMBEDDER") == "static" {
		embedderProvider = "static"
		embedderModel = "static"
	}
	dims := cfg.Embeddings.Dimensions
	if dims <= 0 {
		if d, ok := knownModelDimensions[cfg.Embeddings.Model]; ok {
			dims = d
		} else {
			dims = embed.DefaultModelDimensions
		}
	}

	return DebugInfo{
		ProjectRoot:      root,
		IndexPath:        dataDir,
		FileCount:        int(stats.FileCount),
		ChunkCount:       int(stats.ChunkCount),
		DBSizeBytes:      stats.DBSizeBytes,
		LastIndexed:      lastIndexed,
		Languages:        languages,
		EmbedderProvider: embedderProvider,
		EmbedderModel:    embedderModel,
		EmbedderDims:     dims,
	}, nil
}

// languageBreakdown queries the files table directly for each path's
// extension and the most recent last_indexed timestamp, returning the
// fraction of files per normalized language.
func languageBreakdown(st *store.Store) (map[string]float64, time.Time, error) {
	rows, err := st.DB().Query(`SELECT path, last_indexed FROM files`)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer rows.Close()

	counts := map[string]int{}
	total := 0
	var lastIndexed int64
	for rows.Next() {
		var path string
		var indexedAt *int64
		if err := rows.Scan(&path, &indexedAt); err != nil {
			return nil, time.Time{}, err
		}
		ext := normalizeExtension(strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")))
		if ext == "" {
			ext = "unknown"
		}
		counts[ext]++
		total++
		if indexedAt != nil && *indexedAt > lastIndexed {
			lastIndexed = *indexedAt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}

	languages := make(map[string]float64, len(counts))
	for ext, n := range counts {
		languages[ext] = float64(n) / float64(max(total, 1))
	}

	var lastIndexedTime time.Time
	if lastIndexed > 0 {
		lastIndexedTime = time.Unix(lastIndexed, 0)
	}
	return languages, lastIndexedTime, nil
}

func printDebugInfo(cmd *cobra.Command, info DebugInfo) {
	out := output.New(cmd.OutOrStdout())

	out.Status("", "contextd Debug Info")
	out.Status("", fmt.Sprintf("Project root: %s", info.ProjectRoot))
	out.Status("", fmt.Sprintf("Index path:   %s", info.IndexPath))
	out.Status("", "")

	out.Status("", "FILES & CHUNKS")
	out.Status("", fmt.Sprintf("  Files:  %s", formatNumber(info.FileCount)))
	out.Status("", fmt.Sprintf("  Chunks: %s", formatNumber(info.ChunkCount)))
	out.Status("", fmt.Sprintf("  Last indexed: %s", formatAge(info.LastIndexed)))
	out.Status("", fmt.Sprintf("  Languages: %s", formatLanguages(info.Languages)))
	out.Status("", "")

	out.Status("", "EMBEDDER")
	out.Status("", fmt.Sprintf("  Provider:   %s", info.EmbedderProvider))
	out.Status("", fmt.Sprintf("  Model:      %s", info.EmbedderModel))
	out.Status("", fmt.Sprintf("  Dimensions: %d", info.EmbedderDims))
	out.Status("", "")

	out.Status("", "STORAGE")
	out.Status("", fmt.Sprintf("  Size: %.2f MB", float64(info.DBSizeBytes)/(1024*1024)))
}

// formatAge renders t as a coarse relative-time phrase, per the minute /
// hour / day thresholds a CLI status line typically shows.
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < 2*time.Minute:
		return "1 minute ago"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(d/time.Minute))
	case d < 2*time.Hour:
		return "1 hour ago"
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d/time.Hour))
	case d < 48*time.Hour:
		return "1 day ago"
	default:
		return fmt.Sprintf("%d days ago", int(d/(24*time.Hour)))
	}
}

// formatNumber renders n with thousands separators.
func formatNumber(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return s
	}
	var groups []string
	for len(s) > 3 {
		groups = append([]string{s[len(s)-3:]}, groups...)
		s = s[:len(s)-3]
	}
	groups = append([]string{s}, groups...)
	return strings.Join(groups, ",")
}

// formatLanguages renders a language->fraction map as a sorted,
// human-readable percentage breakdown.
func formatLanguages(langs map[string]float64) string {
	if len(langs) == 0 {
		return "none"
	}
	type pair struct {
		lang string
		pct  float64
	}
	pairs := make([]pair, 0, len(langs))
	for lang, pct := range langs {
		pairs = append(pairs, pair{lang, pct})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].pct != pairs[j].pct {
			return pairs[i].pct > pairs[j].pct
		}
		return pairs[i].lang < pairs[j].lang
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%s (%d%%)", p.lang, int(p.pct*100))
	}
	return strings.Join(parts, ", ")
}

// normalizeExtension maps extension aliases to a single canonical language
// tag (tsx/ts -> ts, jsx/mjs/js -> js, yml -> yaml, htm -> html).
func normalizeExtension(ext string) string {
	switch ext {
	case "tsx":
		return "ts"
	case "jsx", "mjs":
		return "js"
	case "yml":
		return "yaml"
	case "htm":
		return "html"
	default:
		return ext
	}
}
