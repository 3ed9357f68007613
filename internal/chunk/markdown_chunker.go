package chunk

import (
	"context"
	"regexp"
)

// atxHeadingPattern matches ATX-style Markdown headings: "#" through "######"
// followed by at least one space and the heading text.
var atxHeadingPattern = regexp.MustCompile(`(?m)^(#{1,6})[ \t]+(.+?)[ \t]*$`)

// codeFencePattern matches a line that opens or closes a ``` code fence.
var codeFencePattern = regexp.MustCompile("(?m)^[ \t]*```")

// MarkdownChunker splits content at ATX headings, accumulating the lines
// between headings into one chunk each and attaching the current heading
// stack as metadata.
type MarkdownChunker struct{}

// NewMarkdownChunker creates a new markdown chunker. It is stateless.
func NewMarkdownChunker() *MarkdownChunker {
	return &MarkdownChunker{}
}

// SupportedExtensions returns the file extensions this chunker handles.
func (c *MarkdownChunker) SupportedExtensions() []string {
	return []string{"md", "markdown", "mdx"}
}

// Chunk splits content into one chunk per heading section (plus a leading
// chunk for any content before the first heading). Each chunk's metadata
// carries the heading stack active at that point: pushed one level deeper
// per heading encountered, truncated back to the current level on a
// shallower or equal heading. Heading-like lines inside ``` code fences are
// not treated as headings.
func (c *MarkdownChunker) Chunk(ctx context.Context, content []byte, ext string) ([]Chunk, error) {
	matches := atxHeadingPattern.FindAllSubmatchIndex(content, -1)
	kept := matches[:0]
	for _, m := range matches {
		if len(codeFencePattern.FindAllIndex(content[:m[0]], -1))%2 == 0 {
			kept = append(kept, m)
		}
	}
	matches = kept
	if len(matches) == 0 {
		return nil, nil
	}

	chunks := make([]Chunk, 0, len(matches))
	headerStack := make([]string, 6)

	if matches[0][0] > 0 {
		chunks = append(chunks, Chunk{
			Start:   0,
			End:     matches[0][0],
			Content: string(content[0:matches[0][0]]),
		})
	}

	for i, m := range matches {
		level := m[3] - m[2] // length of the "#"+ run
		title := string(content[m[4]:m[5]])

		headerStack[level-1] = title
		for i := level; i < len(headerStack); i++ {
			headerStack[i] = ""
		}

		sectionStart := m[0]
		sectionEnd := len(content)
		if i+1 < len(matches) {
			sectionEnd = matches[i+1][0]
		}

		stack := make([]string, 0, level)
		for i := 0; i < level; i++ {
			if headerStack[i] != "" {
				stack = append(stack, headerStack[i])
			}
		}

		chunks = append(chunks, Chunk{
			Start:   sectionStart,
			End:     sectionEnd,
			Content: string(content[sectionStart:sectionEnd]),
			Metadata: map[string]any{
				"headers": stack,
			},
		})
	}

	return chunks, nil
}
