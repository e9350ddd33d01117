package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms/ollama"

	"KnowledgeAgent/internal/capability"
	"KnowledgeAgent/internal/ports"
)

// OllamaEmbedder implements ports.Embedder against an Ollama embedding
// model. The dimensionality is fixed per deployment; every produced vector
// is checked against it so the knowledge store stays schema-consistent.
type OllamaEmbedder struct {
	client     *ollama.LLM
	dimensions int
	policy     capability.Policy
}

var _ ports.Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder builds an embedder for the given server and model.
func NewOllamaEmbedder(baseURL, model string, dimensions int, policy capability.Policy) (*OllamaEmbedder, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensionality must be positive, got %d", dimensions)
	}

	client, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("initialize ollama client: %w", err)
	}

	return &OllamaEmbedder{client: client, dimensions: dimensions, policy: policy}, nil
}

// Dimensions returns the fixed deployment dimensionality.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

// Embed returns the vector for a single text. Newlines are flattened first;
// embedding models treat them as semantic noise.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.ReplaceAll(text, "\n", " ")

	var vector []float32
	err := e.policy.Do(ctx, func(ctx context.Context) error {
		vectors, err := e.client.CreateEmbedding(ctx, []string{text})
		if err != nil {
			return capability.Transient(fmt.Errorf("create embedding: %w", err))
		}
		if len(vectors) == 0 {
			return capability.Transient(fmt.Errorf("embedding response was empty"))
		}
		if len(vectors[0]) != e.dimensions {
			// A dimensionality mismatch is a deployment misconfiguration,
			// not a flake; retrying cannot fix it.
			return fmt.Errorf("embedding has %d dimensions, want %d", len(vectors[0]), e.dimensions)
		}
		vector = vectors[0]
		return nil
	})
	if err != nil {
		return nil, err
	}

	return vector, nil
}
