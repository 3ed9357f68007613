package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/sandy-sachin7/contextd/internal/store"
)

// indexFile is the per-file task algorithm of spec.md §4.7: stat, check
// whether a reindex is needed, chunk (plugin/pdf/text), embed each chunk
// with failure tolerance, and atomically rewrite the file's chunk set.
//
// Failure model: a chunking error is logged and the file is skipped, its
// prior chunks left in place; a Store error is logged and the task exits,
// leaving last_indexed unset so the next pass retries.
func (p *Pipeline) indexFile(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		return // vanished between submission and execution; nothing to do
	}
	if info.IsDir() {
		return
	}
	mtime := info.ModTime().Unix()

	fileID, err := p.store.UpsertFile(path, mtime)
	if err != nil {
		p.logger.Error("upsert file failed", "path", path, "error", err)
		return
	}

	needs, err := p.store.NeedsReindex(path, mtime)
	if err != nil {
		p.logger.Error("needs_reindex check failed", "path", path, "error", err)
		return
	}
	if !needs {
		return
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	rawContent, textExt, err := p.readContent(ctx, path, ext)
	if err != nil {
		p.logger.Warn("chunking skipped: could not obtain content", "path", path, "error", err)
		return
	}

	chunks, err := p.chunker.Chunk(ctx, rawContent, textExt)
	if err != nil {
		p.logger.Warn("chunking failed, prior chunks retained", "path", path, "error", err)
		return
	}

	fileMeta := map[string]any{
		"size":      info.Size(),
		"created":   info.ModTime().Unix(), // birth time is not portably available; approximated by mtime
		"modified":  mtime,
		"extension": ext,
	}

	newChunks := make([]store.NewChunk, 0, len(chunks))
	for _, c := range chunks {
		merged := mergeMetadata(fileMeta, c.Metadata)
		metadataJSON, err := json.Marshal(merged)
		if err != nil {
			metadataJSON = nil
		}

		var embedding []float32
		if vec, err := p.embedder.Embed(ctx, c.Content); err != nil {
			p.logger.Warn("embedding failed, chunk kept FTS-only", "path", path, "error", err)
		} else {
			embedding = vec
		}

		newChunks = append(newChunks, store.NewChunk{
			StartOffset:  c.Start,
			EndOffset:    c.End,
			Content:      c.Content,
			Embedding:    embedding,
			MetadataJSON: string(metadataJSON),
		})
	}

	if err := p.store.ReindexFile(fileID, newChunks, mtime); err != nil {
		p.logger.Error("reindex failed, will retry on next pass", "path", path, "error", err)
	}
}

// readContent returns the content to chunk and the extension to chunk it
// with: plugin output (keyed to the original extension) if one is
// configured for ext, the raw bytes for "pdf" (the PDF chunker does its own
// extraction), or the file's UTF-8 content (best-effort, empty on read
// error) for everything else.
func (p *Pipeline) readContent(ctx context.Context, path, ext string) ([]byte, string, error) {
	if argv, ok := p.cfg.Plugins[ext]; ok {
		out, err := p.runner.Run(ctx, argv, path)
		if err != nil {
			return nil, ext, err
		}
		return []byte(out), ext, nil
	}
	if ext == "pdf" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, ext, err
		}
		return data, ext, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return []byte{}, ext, nil // lossy fallback to empty content on read error
	}
	return data, ext, nil
}

// mergeMetadata overlays chunk-level metadata over the file-level metadata;
// chunk keys win on conflict, per spec.md §4.7 step 4.
func mergeMetadata(file map[string]any, chunkMeta map[string]any) map[string]any {
	merged := make(map[string]any, len(file)+len(chunkMeta))
	for k, v := range file {
		merged[k] = v
	}
	for k, v := range chunkMeta {
		merged[k] = v
	}
	return merged
}
