package chunk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RoutesGoToCodeChunker(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	chunks, err := d.Chunk(context.Background(), []byte("package main\n\nfunc Hello() {}\n"), "go")

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "func Hello")
}

func TestDispatcher_RoutesMarkdownToMarkdownChunker(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	chunks, err := d.Chunk(context.Background(), []byte("# Title\n\nBody.\n"), "md")

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"Title"}, chunks[0].Metadata["headers"])
}

func TestDispatcher_FallsBackToTextWhenMarkdownHasNoHeadings(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	chunks, err := d.Chunk(context.Background(), []byte("Para 1\n\nPara 2"), "md")

	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Para 1", chunks[0].Content)
	assert.Equal(t, "Para 2", chunks[1].Content)
}

func TestDispatcher_FallsBackToTextWhenCodeParseYieldsNoNodes(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	// A Go file with only a package clause has no top-level target nodes, so
	// the code strategy yields zero chunks and the dispatcher falls back to
	// splitting the same content on blank lines.
	chunks, err := d.Chunk(context.Background(), []byte("package main\n\nMore notes about this package."), "go")

	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "package main", chunks[0].Content)
	assert.Equal(t, "More notes about this package.", chunks[1].Content)
}

func TestDispatcher_RoutesUnknownExtensionToTextChunker(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	chunks, err := d.Chunk(context.Background(), []byte("Note 1\n\nNote 2"), "txt")

	require.NoError(t, err)
	require.Len(t, chunks, 2)
}

func TestDispatcher_NormalizesExtensionCaseAndLeadingDot(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	chunks, err := d.Chunk(context.Background(), []byte("package main\n\nfunc Hello() {}\n"), ".GO")

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "func Hello")
}

func TestDispatcher_EmptyContent_ReturnsNoChunks(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	chunks, err := d.Chunk(context.Background(), []byte(""), "txt")

	require.NoError(t, err)
	assert.Empty(t, chunks)
}
