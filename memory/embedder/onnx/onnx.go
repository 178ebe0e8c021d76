//go:build onnx

// Package onnx provides a local ONNX Runtime embedder for real semantic
// similarity without network calls. The default model is
// all-MiniLM-L6-v2 exported to ONNX with its tokenizer.json alongside.
package onnx

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

// Config configures the ONNX embedder.
type Config struct {
	// ModelPath is the path to the ONNX model file. Required.
	ModelPath string

	// TokenizerPath is the path to the tokenizer.json vocabulary.
	TokenizerPath string

	// LibraryPath is the onnxruntime shared library location. Empty
	// uses the ORT default lookup.
	LibraryPath string

	// Dimensions is the embedding size (default 384 for MiniLM).
	Dimensions int

	// MaxSequenceLength caps tokenized input (default 128).
	MaxSequenceLength int
}

// Embedder generates embeddings with ONNX Runtime.
type Embedder struct {
	session    *ort.DynamicAdvancedSession
	vocab      map[string]int64
	maxSeqLen  int
	dimensions int
}

const (
	clsToken = "[CLS]"
	sepToken = "[SEP]"
	unkToken = "[UNK]"
)

// New creates an ONNX embedder from config.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("ModelPath is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}
	if cfg.MaxSequenceLength == 0 {
		cfg.MaxSequenceLength = 128
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", err)
	}

	vocab, err := loadVocab(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer vocab: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &Embedder{
		session:    session,
		vocab:      vocab,
		maxSeqLen:  cfg.MaxSequenceLength,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed tokenizes text, runs the model, and mean-pools the hidden
// states into a normalized vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids := e.tokenize(text)

	inputIDs := make([]int64, e.maxSeqLen)
	attentionMask := make([]int64, e.maxSeqLen)
	tokenTypeIDs := make([]int64, e.maxSeqLen)

	inputIDs[0] = e.vocab[clsToken]
	attentionMask[0] = 1

	n := len(ids)
	if n > e.maxSeqLen-2 {
		n = e.maxSeqLen - 2
	}
	for i := 0; i < n; i++ {
		inputIDs[i+1] = ids[i]
		attentionMask[i+1] = 1
	}
	inputIDs[n+1] = e.vocab[sepToken]
	attentionMask[n+1] = 1

	shape := ort.NewShape(1, int64(e.maxSeqLen))
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	typeTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, outputs); err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}

	return meanPool(tensor.GetData(), tensor.GetShape(), attentionMask, e.dimensions)
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close releases the ONNX session.
func (e *Embedder) Close() error {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	return nil
}

// tokenize performs greedy WordPiece tokenization against the vocab.
func (e *Embedder) tokenize(text string) []int64 {
	var ids []int64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		start := 0
		for start < len(word) {
			end := len(word)
			var id int64 = -1
			for end > start {
				piece := word[start:end]
				if start > 0 {
					piece = "##" + piece
				}
				if v, ok := e.vocab[piece]; ok {
					id = v
					break
				}
				end--
			}
			if id < 0 {
				ids = append(ids, e.vocab[unkToken])
				break
			}
			ids = append(ids, id)
			start = end
		}
	}
	return ids
}

// meanPool averages hidden states over attended positions and
// normalizes to a unit vector. Accepts pooled [1,d] or raw [1,s,d]
// output shapes.
func meanPool(data []float32, shape ort.Shape, mask []int64, dims int) ([]float32, error) {
	embedding := make([]float32, dims)

	switch len(shape) {
	case 2:
		if len(data) < dims {
			return nil, fmt.Errorf("output dimension mismatch: got %d, want %d", len(data), dims)
		}
		copy(embedding, data[:dims])
	case 3:
		seqLen, hidden := int(shape[1]), int(shape[2])
		if hidden != dims {
			return nil, fmt.Errorf("hidden size mismatch: got %d, want %d", hidden, dims)
		}
		var attended float32
		for i := 0; i < seqLen; i++ {
			if mask[i] == 0 {
				continue
			}
			attended++
			for j := 0; j < dims; j++ {
				embedding[j] += data[i*hidden+j]
			}
		}
		if attended == 0 {
			return nil, fmt.Errorf("no attended tokens")
		}
		for j := range embedding {
			embedding[j] /= attended
		}
	default:
		return nil, fmt.Errorf("unexpected output shape: %v", shape)
	}

	var norm float64
	for _, v := range embedding {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range embedding {
			embedding[i] *= scale
		}
	}
	return embedding, nil
}

// loadVocab reads the vocab map out of a HuggingFace tokenizer.json.
func loadVocab(path string) (map[string]int64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Model struct {
			Vocab map[string]int64 `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if len(doc.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer vocab is empty")
	}
	return doc.Model.Vocab, nil
}
