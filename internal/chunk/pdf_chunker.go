package chunk

import (
	"bytes"
	"context"
	"strings"

	"github.com/ledongthuc/pdf"

	contexterrors "github.com/sandy-sachin7/contextd/internal/errors"
)

// PDFChunker extracts text from PDF bytes, normalizes page breaks to
// paragraph breaks, then splits on blank-line paragraphs with each
// paragraph's surrounding whitespace trimmed.
type PDFChunker struct{}

// NewPDFChunker creates a new PDF chunker. It is stateless.
func NewPDFChunker() *PDFChunker {
	return &PDFChunker{}
}

// Chunk extracts text from raw PDF bytes and splits it into trimmed
// paragraph chunks. Form-feed page breaks are normalized to blank lines
// before splitting. Offsets are byte offsets into the extracted text, not
// the original PDF bytes, since the PDF container format carries no
// byte-for-byte correspondence to its rendered text. Empty paragraphs are
// skipped but their byte span still advances the running offset.
func (c *PDFChunker) Chunk(ctx context.Context, content []byte, ext string) ([]Chunk, error) {
	text, err := extractPDFText(content)
	if err != nil {
		return nil, contexterrors.ChunkingFailedErr("failed to extract pdf text", err)
	}

	normalized := []byte(strings.ReplaceAll(text, "\f", "\n\n"))
	return splitTrimmedParagraphs(normalized), nil
}

// splitTrimmedParagraphs splits content on "\n\n", trimming each piece's
// leading/trailing whitespace before emitting it as a chunk.
func splitTrimmedParagraphs(content []byte) []Chunk {
	chunks := make([]Chunk, 0)
	sep := []byte(paragraphSeparator)
	offset := 0

	for {
		idx := bytes.Index(content[offset:], sep)
		pieceEnd := len(content)
		if idx >= 0 {
			pieceEnd = offset + idx
		}

		trimmed := bytes.TrimSpace(content[offset:pieceEnd])
		if len(trimmed) > 0 {
			chunks = append(chunks, Chunk{
				Start:   offset,
				End:     pieceEnd,
				Content: string(trimmed),
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

	return chunks
}

func extractPDFText(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		buf.WriteString(pageText)
		buf.WriteString("\f")
	}

	return buf.String(), nil
}
