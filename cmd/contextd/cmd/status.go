package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandy-sachin7/contextd/internal/config"
	"github.com/sandy-sachin7/contextd/internal/daemon"
	"github.com/sandy-sachin7/contextd/internal/store"
	"github.com/sandy-sachin7/contextd/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long: `Display information about the current index including:
  - Number of indexed files and chunks
  - Last indexing time
  - Storage size
  - Embedder status (type, model)
  - Watcher status (if the daemon is running)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		cwd, _ := os.Getwd()
		root = cwd
	}

	dataDir := filepath.Join(root, ".contextd")

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !fileExists(cfg.Store.Path) {
		return fmt.Errorf("no index found in %s\nRun 'contextd index' to create one", root)
	}

	info, err := collectStatus(ctx, root, dataDir, cfg)
	if err != nil {
		return fmt.Errorf("failed to collect status: %w", err)
	}

	noColor := ui.DetectNoColor()
	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor)

	if jsonOutput {
		return renderer.RenderJSON(info)
	}

	return renderer.Render(info)
}

func collectStatus(_ context.Context, root, _ string, cfg *config.Config) (ui.StatusInfo, error) {
	info := ui.StatusInfo{
		ProjectName: filepath.Base(root),
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return info, fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	stats, err := st.Stats()
	if err != nil {
		return info, fmt.Errorf("read stats: %w", err)
	}

	info.TotalFiles = int(stats.FileCount)
	info.TotalChunks = int(stats.ChunkCount)
	info.DBSize = stats.DBSizeBytes
	if lastIndexed := latestIndexTime(st); !lastIndexed.IsZero() {
		info.LastIndexed = lastIndexed
	}

	info.EmbedderType = "onnx"
	info.EmbedderModel = cfg.Embeddings.Model
	info.EmbedderStatus = "ready"
	if os.Getenv("CONTEXTD_EMBEDDER") == "static" {
		info.EmbedderType = "static"
		info.EmbedderModel = "static"
	}

	daemonCfg := daemon.DefaultConfig()
	client := daemon.NewClient(daemonCfg)
	if client.IsRunning() {
		info.WatcherStatus = "running"
	} else {
		info.WatcherStatus = "stopped"
	}

	return info, nil
}

// latestIndexTime returns the most recent last_indexed timestamp across all
// tracked files, or the zero time if none have been indexed yet.
func latestIndexTime(st *store.Store) time.Time {
	var latest int64
	row := st.DB().QueryRow(`SELECT MAX(last_indexed) FROM files`)
	var maxIndexed *int64
	if err := row.Scan(&maxIndexed); err != nil || maxIndexed == nil {
		return time.Time{}
	}
	latest = *maxIndexed
	if latest == 0 {
		return time.Time{}
	}
	return time.Unix(latest, 0)
}

// getFileSize returns the size of a file in bytes.
func getFileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
