package chunk

import "context"

// Chunk is a contiguous byte range of a file's content, with the extracted
// text view and optional metadata. Offsets are byte offsets into the
// original content, not codepoint or line positions, so they slice the
// on-disk bytes exactly.
type Chunk struct {
	Start    int
	End      int
	Content  string
	Metadata map[string]any
}

// Chunker splits file content into chunks. ext is the file extension
// (without the leading dot, e.g. "go", "md", "pdf") used to select the
// chunking strategy.
type Chunker interface {
	Chunk(ctx context.Context, content []byte, ext string) ([]Chunk, error)
}

// Tree represents a parsed AST.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node represents a node in the AST.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point represents a position in the source code.
type Point struct {
	Row    uint32 // 0-indexed line number
	Column uint32
}

// LanguageConfig holds the tree-sitter node types relevant to chunking a
// single source language.
type LanguageConfig struct {
	Name       string
	Extensions []string

	// TopLevelTypes are the node types chunked one-per-node: functions,
	// methods, classes/interfaces/traits, type/struct/enum declarations,
	// and decorated top-level definitions.
	TopLevelTypes []string

	// CommentTypes are the node types treated as absorbable leading
	// documentation/comment nodes.
	CommentTypes []string
}
