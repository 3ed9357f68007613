package embed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/daulet/tokenizers"
	ort "github.com/yalue/onnxruntime_go"
)

// maxSeqLen bounds the tokenized input length. Longer chunks are truncated;
// the attention mask still only covers the real tokens so mean-pooling stays
// correct over whatever survives.
const maxSeqLen = 384

// ONNXEmbedder runs a local sentence-transformer encoder graph through
// onnxruntime and pools its last_hidden_state into a single unit vector per
// call, per spec.md §4.2's tokenize -> forward pass -> mean-pool -> L2
// normalize pipeline. The ONNX session is process-wide and single-writer:
// concurrent Embed calls serialize on mu, matching "the model session is
// process-wide; concurrent callers are serialized at the session."
type ONNXEmbedder struct {
	mu        sync.Mutex
	session   *ort.DynamicAdvancedSession
	tokenizer *tokenizers.Tokenizer
	dims      int
	modelID   string
}

// ONNXConfig describes where to find the model artifacts and how to size the
// inference session.
type ONNXConfig struct {
	// ModelDir must contain model.onnx and tokenizer.json.
	ModelDir string
	// ModelID is the configured model identifier (e.g. "bge-small-en-v1.5").
	ModelID string
	// Dimensions is the encoder's hidden size (commonly 384 or 768).
	Dimensions int
	// NumThreads is the intra-op thread count; 0 selects min(4, NumCPU).
	NumThreads int
	// OrtLibPath optionally overrides the onnxruntime shared library path.
	OrtLibPath string
}

// NewONNXEmbedder loads the tokenizer and ONNX graph described by cfg.
func NewONNXEmbedder(cfg ONNXConfig) (*ONNXEmbedder, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embed: ONNXConfig.Dimensions must be positive")
	}
	modelPath := filepath.Join(cfg.ModelDir, "model.onnx")
	tokenPath := filepath.Join(cfg.ModelDir, "tokenizer.json")
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("embed: model not found at %s: %w", modelPath, err)
	}
	if _, err := os.Stat(tokenPath); err != nil {
		return nil, fmt.Errorf("embed: tokenizer not found at %s: %w", tokenPath, err)
	}

	if cfg.OrtLibPath != "" {
		ort.SetSharedLibraryPath(cfg.OrtLibPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("embed: init onnxruntime: %w", err)
	}

	threads := cfg.NumThreads
	if threads <= 0 {
		threads = runtime.NumCPU()
		if threads > 4 {
			threads = 4
		}
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("embed: session options: %w", err)
	}
	defer opts.Destroy()
	if err := opts.SetIntraOpNumThreads(threads); err != nil {
		return nil, fmt.Errorf("embed: set intra-op threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("embed: set inter-op threads: %w", err)
	}

	inputNames := []string{"input_ids", "attention_mask", "token_type_ids"}
	outputNames := []string{"last_hidden_state"}
	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("embed: create session: %w", err)
	}

	tk, err := tokenizers.FromFile(tokenPath)
	if err != nil {
		session.Destroy()
		return nil, fmt.Errorf("embed: load tokenizer: %w", err)
	}

	return &ONNXEmbedder{
		session:   session,
		tokenizer: tk,
		dims:      cfg.Dimensions,
		modelID:   cfg.ModelID,
	}, nil
}

// Dimensions returns d.
func (e *ONNXEmbedder) Dimensions() int { return e.dims }

// ModelName returns the configured model identifier.
func (e *ONNXEmbedder) ModelName() string { return e.modelID }

// Close destroys the ONNX session and tokenizer.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if e.tokenizer != nil {
		e.tokenizer.Close()
		e.tokenizer = nil
	}
	return nil
}

// Embed runs the full tokenize -> forward-pass -> mean-pool -> L2-normalize
// pipeline for a single text. Concurrent calls serialize on e.mu since the
// session is a single mutable handle.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, fmt.Errorf("embed: EmbeddingFailed: session closed")
	}

	enc := e.tokenizer.EncodeWithOptions(text, true, tokenizers.WithReturnAttentionMask())
	ids := enc.IDs
	if len(ids) > maxSeqLen {
		ids = ids[:maxSeqLen]
	}
	l := len(ids)
	if l == 0 {
		return make([]float32, e.dims), nil
	}

	inputIDs := make([]int64, l)
	attnMask := make([]int64, l)
	tokenType := make([]int64, l)
	for i, v := range ids {
		inputIDs[i] = int64(v)
		attnMask[i] = 1
	}
	if len(enc.AttentionMask) >= l {
		for i := range attnMask {
			attnMask[i] = int64(enc.AttentionMask[i])
		}
	}

	shape := ort.NewShape(1, int64(l))
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("embed: EmbeddingFailed: input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, attnMask)
	if err != nil {
		return nil, fmt.Errorf("embed: EmbeddingFailed: attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	typeTensor, err := ort.NewTensor(shape, tokenType)
	if err != nil {
		return nil, fmt.Errorf("embed: EmbeddingFailed: token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, outputs); err != nil {
		return nil, fmt.Errorf("embed: EmbeddingFailed: inference: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	hiddenTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("embed: EmbeddingFailed: unexpected output tensor type")
	}
	hidden := hiddenTensor.GetData()
	outShape := hiddenTensor.GetShape()
	seqLen := int(outShape[1])
	dim := int(outShape[2])
	if dim != e.dims {
		return nil, fmt.Errorf("embed: EmbeddingFailed: model hidden size %d does not match configured dimensions %d", dim, e.dims)
	}

	vec := meanPool(hidden, seqLen, dim, attnMask)
	return normalizeVector(vec), nil
}

// meanPool sums hidden-state rows where mask==1 and divides by the count of
// unmasked positions, per spec.md §4.2 step 3. hidden is laid out as
// [1, seqLen, dim] row-major.
func meanPool(hidden []float32, seqLen, dim int, mask []int64) []float32 {
	sum := make([]float32, dim)
	var count float32
	for t := 0; t < seqLen && t < len(mask); t++ {
		if mask[t] == 0 {
			continue
		}
		base := t * dim
		for d := 0; d < dim; d++ {
			sum[d] += hidden[base+d]
		}
		count++
	}
	if count == 0 {
		return sum
	}
	for d := range sum {
		sum[d] /= count
	}
	return sum
}
