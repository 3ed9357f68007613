package embed

import (
	"context"
	"fmt"
	"os"
)

// ProviderType selects which Embedder implementation NewEmbedder constructs.
type ProviderType string

const (
	// ProviderONNX runs a local sentence-transformer encoder through
	// onnxruntime, per spec.md §4.2. This is the production default.
	ProviderONNX ProviderType = "onnx"

	// ProviderStatic uses a hash-based deterministic embedder with no model
	// file and no inference runtime. Used in tests and in environments
	// without a configured model directory.
	ProviderStatic ProviderType = "static"
)

// Config selects and configures an Embedder.
type Config struct {
	Provider   ProviderType
	ModelDir   string
	ModelID    string
	Dimensions int
	NumThreads int
	OrtLibPath string
}

// NewEmbedder constructs the Embedder described by cfg. The
// CONTEXTD_EMBEDDER environment variable, when set to "static", forces the
// hash-based fallback regardless of cfg.Provider — useful for CI and for
// running without a downloaded model.
func NewEmbedder(_ context.Context, cfg Config) (Embedder, error) {
	provider := cfg.Provider
	if override := os.Getenv("CONTEXTD_EMBEDDER"); override == string(ProviderStatic) {
		provider = ProviderStatic
	}

	switch provider {
	case ProviderStatic:
		return NewStaticEmbedder(), nil
	case ProviderONNX, "":
		return NewONNXEmbedder(ONNXConfig{
			ModelDir:   cfg.ModelDir,
			ModelID:    cfg.ModelID,
			Dimensions: cfg.Dimensions,
			NumThreads: cfg.NumThreads,
			OrtLibPath: cfg.OrtLibPath,
		})
	default:
		return nil, fmt.Errorf("embed: unknown provider %q", provider)
	}
}

// ValidProviders returns all recognized provider names.
func ValidProviders() []string {
	return []string{string(ProviderONNX), string(ProviderStatic)}
}
