package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandy-sachin7/contextd/internal/store"
	"github.com/sandy-sachin7/contextd/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var offline bool
	var force bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build or refresh the search index for a project",
		Long: `Scans the given directory (current directory by default), chunks every
indexable file, embeds each chunk, and stores the result in the hybrid
vector+FTS store so 'contextd search' and the MCP server can query it.

Indexing is incremental: files unchanged since their last index pass are
skipped. Use --force to discard the existing index and rebuild from scratch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runIndex(cmd.Context(), cmd, path, offline, force)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (skip model download)")
	cmd.Flags().BoolVar(&force, "force", false, "Discard the existing index and rebuild from scratch")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string, offline, force bool) error {
	root, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("path does not exist or is not a directory: %s", path)
	}

	if force {
		comps, err := openComponents(ctx, root, offline)
		if err != nil {
			return err
		}
		storePath := comps.cfg.Store.Path
		comps.Close()

		if err := clearIndexData(filepath.Dir(storePath)); err != nil {
			return fmt.Errorf("clear existing index: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cleared existing index data")
	}

	comps, err := openComponents(ctx, root, offline)
	if err != nil {
		return err
	}
	defer comps.Close()

	if err := os.MkdirAll(filepath.Dir(comps.cfg.Store.Path), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(!ui.IsTTY(cmd.OutOrStdout())),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithProjectDir(root),
	))
	_ = renderer.Start(ctx)

	p := comps.newPipeline(root)
	start := time.Now()
	runErr := p.RunOnce(ctx)
	elapsed := time.Since(start)

	stats, statErr := comps.store.Stats()
	if statErr != nil {
		stats = store.Stats{}
	}

	embedderName, embedderModel := "static", "static"
	if !offline {
		embedderName = "onnx"
		embedderModel = comps.embedder.ModelName()
	}

	renderer.Complete(ui.CompletionStats{
		Files:    int(stats.FileCount),
		Chunks:   int(stats.ChunkCount),
		Duration: elapsed,
		Embedder: ui.EmbedderInfo{
			Backend:    embedderName,
			Model:      embedderModel,
			Dimensions: comps.embedder.Dimensions(),
		},
	})
	_ = renderer.Stop()

	if runErr != nil {
		return fmt.Errorf("indexing failed: %w", runErr)
	}
	return nil
}

// clearIndexData removes a previously built index so the next run starts
// from scratch. Tolerant of a directory that doesn't exist yet.
func clearIndexData(dataDir string) error {
	for _, name := range []string{"index.db", "index.db-wal", "index.db-shm"} {
		path := filepath.Join(dataDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}
