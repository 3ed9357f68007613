package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sandy-sachin7/contextd/internal/config"
	"github.com/sandy-sachin7/contextd/internal/daemon"
	"github.com/sandy-sachin7/contextd/internal/output"
	"github.com/sandy-sachin7/contextd/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit     int
	fileTypes []string
	format    string // "text", "json"
	paths     []string
	ftsOnly   bool // skip vector search, use FTS only
	local     bool // force local search, bypassing the daemon
	offline   bool // use static embeddings for local search
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Long: `Search the indexed codebase using hybrid search.

Combines full-text (FTS5) and semantic (embedding) search with
Reciprocal Rank Fusion for a single ranked result list.

Examples:
  contextd search "authentication middleware"
  contextd search "handleRequest" --type go --limit 5
  contextd search "error handling" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringSliceVarP(&opts.fileTypes, "type", "t", nil, "Filter by file extension (repeatable, e.g., --type go)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringSliceVarP(&opts.paths, "scope", "s", nil, "Filter by path substring (repeatable)")
	cmd.Flags().BoolVar(&opts.ftsOnly, "fts-only", false, "Use full-text search only (skip semantic search)")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Force local search (bypass the daemon)")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Use static embeddings for local search")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	out := output.New(cmd.OutOrStdout())

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if _, statErr := os.Stat(cfg.Store.Path); os.IsNotExist(statErr) {
		return fmt.Errorf("no index found. Run 'contextd index' first")
	}

	if !opts.local {
		daemonCfg := daemon.DefaultConfig()
		client := daemon.NewClient(daemonCfg)
		if client.IsRunning() {
			slog.Debug("search_using_daemon", slog.String("query", query))
			results, err := client.Query(ctx, daemon.QueryParams{
				Query:     query,
				Limit:     opts.limit,
				FileTypes: opts.fileTypes,
				Paths:     opts.paths,
			})
			if err != nil {
				return fmt.Errorf("daemon query failed: %w", err)
			}
			return printQueryResults(cmd, out, query, opts.format, results)
		}
	}

	slog.Debug("search_using_local_store", slog.String("query", query))
	return runSearchLocal(ctx, cmd, out, root, query, opts)
}

// runSearchLocal performs a search by opening the store (and, unless
// --fts-only, the embedder) directly — used when no daemon is reachable or
// --local was requested.
func runSearchLocal(ctx context.Context, cmd *cobra.Command, out *output.Writer, root, query string, opts searchOptions) error {
	searchOpts := store.SearchOptions{
		Limit:     opts.limit,
		FileTypes: opts.fileTypes,
		Paths:     opts.paths,
	}

	if opts.ftsOnly {
		comps, err := openComponents(ctx, root, true)
		if err != nil {
			return err
		}
		defer comps.Close()

		results, err := comps.store.FTSSearch(query, searchOpts)
		if err != nil {
			return fmt.Errorf("fts search failed: %w", err)
		}
		return printStoreResults(cmd, out, opts.format, results)
	}

	comps, err := openComponents(ctx, root, opts.offline)
	if err != nil {
		return err
	}
	defer comps.Close()

	queryVec, err := comps.embedder.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	results, err := comps.store.HybridSearch(query, queryVec, searchOpts)
	if err != nil {
		return fmt.Errorf("hybrid search failed: %w", err)
	}
	return printStoreResults(cmd, out, opts.format, results)
}

func printQueryResults(cmd *cobra.Command, out *output.Writer, query, format string, results []daemon.QueryResult) error {
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		out.Status("", fmt.Sprintf("No results for %q", query))
		return nil
	}
	for i, r := range results {
		out.Statusf("", "%d. %s (score: %.4f)", i+1, r.FilePath, r.Score)
		out.Code(truncateContent(r.Content))
	}
	return nil
}

func printStoreResults(cmd *cobra.Command, out *output.Writer, format string, results []store.SearchResult) error {
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		out.Status("", "No results found")
		return nil
	}
	for i, r := range results {
		out.Statusf("", "%d. %s (score: %.4f)", i+1, r.FilePath, r.Score)
		out.Code(truncateContent(r.Content))
	}
	return nil
}

func truncateContent(content string) string {
	const maxLen = 300
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen] + "..."
}
