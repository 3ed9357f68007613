package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sandy-sachin7/contextd/internal/chunk"
	"github.com/sandy-sachin7/contextd/internal/config"
	"github.com/sandy-sachin7/contextd/internal/embed"
	"github.com/sandy-sachin7/contextd/internal/pipeline"
	"github.com/sandy-sachin7/contextd/internal/store"
)

// knownModelDimensions resolves a configured model identifier to its
// encoder's hidden size when EmbeddingsConfig.Dimensions is left at its
// auto-detect zero value. A model outside this table falls back to
// embed.DefaultModelDimensions, matching the bge-small-en-v1.5 export the
// downloader fetches by default.
var knownModelDimensions = map[string]int{
	"all-MiniLM-L6-v2":  384,
	"bge-small-en-v1.5": embed.DefaultModelDimensions,
	"bge-base-en-v1.5":  768,
	"all-mpnet-base-v2": 768,
}

// components bundles the config/store/embedder/chunker quartet that every
// CLI command running the pipeline or serving queries needs to construct,
// per spec.md §4's component wiring.
type components struct {
	cfg      *config.Config
	store    *store.Store
	embedder embed.Embedder
	chunker  *chunk.Dispatcher
}

// openComponents loads configuration for root, opens its store, and
// constructs an embedder and chunk dispatcher. offline forces the
// hash-based static embedder, skipping model resolution entirely — used by
// --offline and by tests that don't want a model directory dependency.
func openComponents(_ context.Context, root string, offline bool) (*components, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	embCfg := embed.Config{
		Provider:   embed.ProviderONNX,
		ModelDir:   cfg.Embeddings.ModelPath,
		ModelID:    cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		NumThreads: cfg.Embeddings.Threads,
	}
	if offline {
		embCfg.Provider = embed.ProviderStatic
	}
	if embCfg.Dimensions <= 0 {
		if d, ok := knownModelDimensions[cfg.Embeddings.Model]; ok {
			embCfg.Dimensions = d
		} else {
			embCfg.Dimensions = embed.DefaultModelDimensions
		}
	}

	emb, err := embed.NewEmbedder(context.Background(), embCfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("construct embedder: %w", err)
	}

	return &components{
		cfg:      cfg,
		store:    st,
		embedder: emb,
		chunker:  chunk.NewDispatcher(),
	}, nil
}

// Close releases the chunker, embedder, and store in turn, returning the
// embedder's error if any, else the store's.
func (c *components) Close() error {
	c.chunker.Close()
	embErr := c.embedder.Close()
	storeErr := c.store.Close()
	if embErr != nil {
		return embErr
	}
	return storeErr
}

// pipelineConfig builds a pipeline.Config for root from the loaded
// configuration's paths, chunker plugins, and pipeline knobs.
func (c *components) pipelineConfig(root string) pipeline.Config {
	roots := c.cfg.Paths.Roots
	if len(roots) == 0 {
		roots = []string{root}
	}

	debounce, _ := time.ParseDuration(c.cfg.Pipeline.WatchDebounce)

	return pipeline.Config{
		Roots:         roots,
		Plugins:       c.cfg.Chunker.Plugins,
		Concurrency:   c.cfg.Pipeline.Concurrency,
		WatchDebounce: debounce,
	}
}

// newPipeline constructs a Pipeline wired to this set of components,
// logging through the ambient slog default logger.
func (c *components) newPipeline(root string) *pipeline.Pipeline {
	return pipeline.New(c.pipelineConfig(root), c.store, c.embedder, c.chunker, slog.Default())
}
