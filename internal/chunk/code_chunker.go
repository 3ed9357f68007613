package chunk

import (
	"context"

	contexterrors "github.com/sandy-sachin7/contextd/internal/errors"
)

// CodeChunker implements the structural, tree-sitter-backed chunking
// strategy for source code. It emits one chunk per top-level node from a
// language-specific allow-list, extending each chunk backward to absorb an
// immediately preceding contiguous run of comment (or, for Rust,
// attribute) nodes.
type CodeChunker struct {
	parser   *Parser
	registry *LanguageRegistry
}

// NewCodeChunker creates a code chunker using the default language registry.
func NewCodeChunker() *CodeChunker {
	registry := DefaultRegistry()
	return &CodeChunker{
		parser:   NewParserWithRegistry(registry),
		registry: registry,
	}
}

// Close releases parser resources.
func (c *CodeChunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// SupportedExtensions returns the file extensions handled by this chunker.
func (c *CodeChunker) SupportedExtensions() []string {
	return c.registry.SupportedExtensions()
}

// Supports reports whether ext has a registered structural language.
func (c *CodeChunker) Supports(ext string) bool {
	_, ok := c.registry.GetByExtension(ext)
	return ok
}

// Chunk parses content as the language registered for ext and emits one
// chunk per top-level allow-listed node. Returns an empty slice (not an
// error) when the language path finds no target nodes, such as a file
// containing only comments; the caller falls back to the default text
// strategy in that case.
func (c *CodeChunker) Chunk(ctx context.Context, content []byte, ext string) ([]Chunk, error) {
	config, ok := c.registry.GetByExtension(ext)
	if !ok {
		return nil, nil
	}

	tree, err := c.parser.Parse(ctx, content, config.Name)
	if err != nil {
		return nil, contexterrors.ChunkingFailedErr("failed to parse "+config.Name+" source", err)
	}

	return chunkTopLevelNodes(tree, content, config), nil
}

// chunkTopLevelNodes walks the direct children of the parsed root, emitting
// one chunk per node whose type is in config.TopLevelTypes. A contiguous run
// of config.CommentTypes nodes immediately preceding a target node is
// absorbed into that chunk's start offset. Any other node type (an
// unrelated top-level statement) clears the pending absorption so comments
// never attach across it. An export_statement wrapping a target node is
// chunked as that target, spanning the whole statement.
func chunkTopLevelNodes(tree *Tree, source []byte, config *LanguageConfig) []Chunk {
	isComment := toSet(config.CommentTypes)
	isTarget := toSet(config.TopLevelTypes)

	chunks := make([]Chunk, 0)
	pendingStart := -1

	for _, n := range tree.Root.Children {
		nodeType := n.Type
		if nodeType == "export_statement" {
			for _, child := range n.Children {
				if isTarget[child.Type] {
					nodeType = child.Type
					break
				}
			}
		}
		switch {
		case isTarget[nodeType]:
			start := int(n.StartByte)
			if pendingStart >= 0 {
				start = pendingStart
			}
			end := int(n.EndByte)
			chunks = append(chunks, Chunk{
				Start:   start,
				End:     end,
				Content: string(source[start:end]),
			})
			pendingStart = -1
		case isComment[nodeType]:
			if pendingStart < 0 {
				pendingStart = int(n.StartByte)
			}
		default:
			pendingStart = -1
		}
	}

	return chunks
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
