package chunk

import (
	"bytes"
	"context"
)

// paragraphSeparator is the two-byte sequence the default text strategy
// splits on.
const paragraphSeparator = "\n\n"

// TextChunker is the default chunking strategy: split on blank-line
// paragraphs. It is also the fallback used when a language-aware path
// yields no chunks for non-whitespace content.
type TextChunker struct{}

// NewTextChunker creates a new text chunker. It is stateless.
func NewTextChunker() *TextChunker {
	return &TextChunker{}
}

// Chunk splits content on "\n\n". Empty pieces are skipped but still
// advance the running offset by the separator length, so offsets stay
// truthful even across runs of blank lines.
func (c *TextChunker) Chunk(ctx context.Context, content []byte, ext string) ([]Chunk, error) {
	if len(content) == 0 {
		return nil, nil
	}

	chunks := make([]Chunk, 0)
	sep := []byte(paragraphSeparator)
	offset := 0

	for {
		idx := bytes.Index(content[offset:], sep)
		var piece []byte
		pieceEnd := len(content)
		if idx >= 0 {
			pieceEnd = offset + idx
		}
		piece = content[offset:pieceEnd]

		if len(piece) > 0 {
			chunks = append(chunks, Chunk{
				Start:   offset,
				End:     pieceEnd,
				Content: string(piece),
			})
		}

		if idx < 0 {
			break
		}
		offset = pieceEnd + len(sep)
		if offset >= len(content) {
			break
		}
	}

	return chunks, nil
}
