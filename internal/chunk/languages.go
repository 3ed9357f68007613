package chunk

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageRegistry manages the source languages supported by the structural
// code chunker and their tree-sitter bindings.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig // keyed by language name
	extToLang   map[string]string          // extension -> language name
	tsLanguages map[string]*sitter.Language
}

// NewLanguageRegistry creates a new registry with the default language set.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}

	r.registerGo()
	r.registerRust()
	r.registerTypeScript()
	r.registerJavaScript()
	r.registerPython()

	return r
}

// GetByExtension returns the language configuration for a file extension.
func (r *LanguageRegistry) GetByExtension(ext string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	langName, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}

	config, ok := r.configs[langName]
	return config, ok
}

// GetByName returns the language configuration by name.
func (r *LanguageRegistry) GetByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	config, ok := r.configs[name]
	return config, ok
}

// GetTreeSitterLanguage returns the tree-sitter language for a language name.
func (r *LanguageRegistry) GetTreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lang, ok := r.tsLanguages[name]
	return lang, ok
}

// SupportedExtensions returns all supported file extensions.
func (r *LanguageRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	return exts
}

func (r *LanguageRegistry) registerLanguage(config *LanguageConfig, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[config.Name] = config
	r.tsLanguages[config.Name] = tsLang

	for _, ext := range config.Extensions {
		r.extToLang[ext] = config.Name
	}
}

func (r *LanguageRegistry) registerGo() {
	config := &LanguageConfig{
		Name:       "go",
		Extensions: []string{"go"},
		TopLevelTypes: []string{
			"function_declaration",
			"method_declaration",
			"type_declaration",
		},
		CommentTypes: []string{"comment"},
	}
	r.registerLanguage(config, golang.GetLanguage())
}

func (r *LanguageRegistry) registerRust() {
	config := &LanguageConfig{
		Name:       "rust",
		Extensions: []string{"rs"},
		TopLevelTypes: []string{
			"function_item",
			"struct_item",
			"enum_item",
			"trait_item",
			"impl_item",
		},
		// attribute_item covers #[derive(...)]-style decorations, which
		// tree-sitter-rust parses as a sibling preceding the item it
		// decorates rather than wrapping it; absorbed the same way as a
		// comment so the decoration stays with its definition.
		CommentTypes: []string{"line_comment", "block_comment", "attribute_item"},
	}
	r.registerLanguage(config, rust.GetLanguage())
}

func (r *LanguageRegistry) registerTypeScript() {
	tsConfig := &LanguageConfig{
		Name:       "typescript",
		Extensions: []string{"ts"},
		TopLevelTypes: []string{
			"function_declaration",
			"class_declaration",
			"interface_declaration",
			"type_alias_declaration",
		},
		CommentTypes: []string{"comment"},
	}
	r.registerLanguage(tsConfig, typescript.GetLanguage())

	tsxConfig := &LanguageConfig{
		Name:          "tsx",
		Extensions:    []string{"tsx"},
		TopLevelTypes: tsConfig.TopLevelTypes,
		CommentTypes:  tsConfig.CommentTypes,
	}
	r.registerLanguage(tsxConfig, tsx.GetLanguage())
}

func (r *LanguageRegistry) registerJavaScript() {
	jsConfig := &LanguageConfig{
		Name:       "javascript",
		Extensions: []string{"js", "mjs"},
		TopLevelTypes: []string{
			"function_declaration",
			"class_declaration",
		},
		CommentTypes: []string{"comment"},
	}
	r.registerLanguage(jsConfig, javascript.GetLanguage())

	jsxConfig := &LanguageConfig{
		Name:          "jsx",
		Extensions:    []string{"jsx"},
		TopLevelTypes: jsConfig.TopLevelTypes,
		CommentTypes:  jsConfig.CommentTypes,
	}
	r.registerLanguage(jsxConfig, javascript.GetLanguage())
}

func (r *LanguageRegistry) registerPython() {
	config := &LanguageConfig{
		Name:       "python",
		Extensions: []string{"py"},
		TopLevelTypes: []string{
			"function_definition",
			"class_definition",
			"decorated_definition",
		},
		CommentTypes: []string{"comment"},
	}
	r.registerLanguage(config, python.GetLanguage())
}

var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the package-wide language registry.
func DefaultRegistry() *LanguageRegistry {
	return defaultRegistry
}
