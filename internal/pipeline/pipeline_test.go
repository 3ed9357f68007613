package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sandy-sachin7/contextd/internal/chunk"
	"github.com/sandy-sachin7/contextd/internal/embed"
	"github.com/sandy-sachin7/contextd/internal/store"
)

func newTestPipeline(t *testing.T, root string) (*Pipeline, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	emb := embed.NewStaticEmbedder()
	t.Cleanup(func() { emb.Close() })
	chunker := chunk.NewDispatcher()
	t.Cleanup(chunker.Close)

	p := New(Config{Roots: []string{root}, Concurrency: 2}, st, emb, chunker, slog.Default())
	return p, st
}

func TestScanRoot_IndexesRegularFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.md"), []byte("# Title\n\nSome body text."), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.md"), []byte("# Other\n\nMore body text."), 0o644); err != nil {
		t.Fatal(err)
	}

	p, st := newTestPipeline(t, dir)
	ctx := context.Background()
	if err := p.scanRoot(ctx, dir); err != nil {
		t.Fatalf("scanRoot: %v", err)
	}
	p.wg.Wait()

	stats, err := st.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.FileCount != 2 {
		t.Fatalf("FileCount = %d, want 2", stats.FileCount)
	}
	if stats.ChunkCount == 0 {
		t.Fatal("expected at least one chunk to be indexed")
	}
}

func TestScanRoot_SkipsIgnoredFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("ignored.md\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignored.md"), []byte("# x\n\nbody"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "kept.md"), []byte("# y\n\nbody"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, st := newTestPipeline(t, dir)
	ctx := context.Background()
	if err := p.scanRoot(ctx, dir); err != nil {
		t.Fatalf("scanRoot: %v", err)
	}
	p.wg.Wait()

	f, err := st.FileByPath(filepath.Join(dir, "ignored.md"))
	if err != nil {
		t.Fatalf("FileByPath: %v", err)
	}
	if f != nil {
		t.Fatal("expected ignored.md to not be indexed")
	}
	f, err = st.FileByPath(filepath.Join(dir, "kept.md"))
	if err != nil {
		t.Fatalf("FileByPath: %v", err)
	}
	if f == nil {
		t.Fatal("expected kept.md to be indexed")
	}
}

func TestIndexFile_NoReindexWhenUnchanged(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.md")
	if err := os.WriteFile(target, []byte("# Title\n\nbody text"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, st := newTestPipeline(t, dir)
	ctx := context.Background()
	p.indexFile(ctx, target)

	first, err := st.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	p.indexFile(ctx, target) // same mtime, must be a no-op
	second, err := st.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if first.ChunkCount != second.ChunkCount {
		t.Fatalf("ChunkCount changed across a no-op reindex: %d -> %d", first.ChunkCount, second.ChunkCount)
	}
}

func TestIndexFile_ReindexesAfterModification(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.md")
	if err := os.WriteFile(target, []byte("# Title\n\nbody text"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, st := newTestPipeline(t, dir)
	ctx := context.Background()
	p.indexFile(ctx, target)

	future := time.Now().Add(2 * time.Second)
	if err := os.WriteFile(target, []byte("# Title\n\nupdated body text, much longer now"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(target, future, future); err != nil {
		t.Fatal(err)
	}
	p.indexFile(ctx, target)

	f, err := st.FileByPath(target)
	if err != nil {
		t.Fatalf("FileByPath: %v", err)
	}
	if f == nil || f.LastIndexed == nil {
		t.Fatal("expected file to be marked indexed after reindex")
	}
	if *f.LastIndexed < future.Unix() {
		t.Fatalf("LastIndexed = %d, want >= %d", *f.LastIndexed, future.Unix())
	}
}

func TestOnBatch_SkipsVCSIgnoreFileItself(t *testing.T) {
	dir := t.TempDir()
	gitignorePath := filepath.Join(dir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("*.tmp\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, st := newTestPipeline(t, dir)
	p.filterFor(dir) // seed the filter for this root
	p.onBatch([]string{gitignorePath})
	p.wg.Wait()

	f, err := st.FileByPath(gitignorePath)
	if err != nil {
		t.Fatalf("FileByPath: %v", err)
	}
	if f != nil {
		t.Fatal("expected the VCS ignore file itself to never be indexed")
	}
}
