// Package chunk splits file content into retrievable chunks, dispatching on
// file extension to a structural code parser, a Markdown heading splitter,
// a PDF text extractor, or the default paragraph splitter.
package chunk

import (
	"context"
	"strings"
)

// Dispatcher selects and runs the chunking strategy for a file extension.
// It is the package's entry point, implementing the chunk(content, ext)
// contract: source code for registered languages goes through the
// structural parser, "pdf" goes through the PDF extractor, "md"/"markdown"/
// "mdx" go through the heading splitter, and everything else falls to the
// default paragraph splitter. A language-aware path that yields no chunks
// for non-whitespace content falls back to the default strategy too.
type Dispatcher struct {
	code     *CodeChunker
	markdown *MarkdownChunker
	pdf      *PDFChunker
	text     *TextChunker
}

// NewDispatcher builds a Dispatcher wired to the default language registry.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		code:     NewCodeChunker(),
		markdown: NewMarkdownChunker(),
		pdf:      NewPDFChunker(),
		text:     NewTextChunker(),
	}
}

// Close releases any resources held by the dispatcher's chunkers.
func (d *Dispatcher) Close() {
	d.code.Close()
}

// Chunk splits content according to ext, dispatching to the appropriate
// strategy.
func (d *Dispatcher) Chunk(ctx context.Context, content []byte, ext string) ([]Chunk, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))

	switch {
	case ext == "pdf":
		return d.pdf.Chunk(ctx, content, ext)

	case ext == "md" || ext == "markdown" || ext == "mdx":
		chunks, err := d.markdown.Chunk(ctx, content, ext)
		if err != nil {
			return nil, err
		}
		if len(chunks) == 0 && len(strings.TrimSpace(string(content))) > 0 {
			return d.text.Chunk(ctx, content, ext)
		}
		return chunks, nil

	case d.code.Supports(ext):
		chunks, err := d.code.Chunk(ctx, content, ext)
		if err != nil {
			return nil, err
		}
		if len(chunks) == 0 && len(strings.TrimSpace(string(content))) > 0 {
			return d.text.Chunk(ctx, content, ext)
		}
		return chunks, nil

	default:
		return d.text.Chunk(ctx, content, ext)
	}
}
