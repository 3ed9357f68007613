package embed

import (
	"context"
	"os"
	"testing"
)

func TestNewEmbedder_Static(t *testing.T) {
	e, err := NewEmbedder(context.Background(), Config{Provider: ProviderStatic})
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	defer e.Close()
	if e.ModelName() != "static" {
		t.Fatalf("ModelName() = %q", e.ModelName())
	}
}

func TestNewEmbedder_EnvOverride(t *testing.T) {
	os.Setenv("CONTEXTD_EMBEDDER", "static")
	defer os.Unsetenv("CONTEXTD_EMBEDDER")

	e, err := NewEmbedder(context.Background(), Config{Provider: ProviderONNX, ModelDir: "/nonexistent"})
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	defer e.Close()
	if e.ModelName() != "static" {
		t.Fatalf("expected env override to force static, got %q", e.ModelName())
	}
}

func TestNewEmbedder_ONNXMissingModel(t *testing.T) {
	_, err := NewEmbedder(context.Background(), Config{
		Provider:   ProviderONNX,
		ModelDir:   "/nonexistent/path",
		Dimensions: 384,
	})
	if err == nil {
		t.Fatal("expected error for missing model directory")
	}
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(context.Background(), Config{Provider: "bogus"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
