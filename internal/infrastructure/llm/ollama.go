package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"KnowledgeAgent/internal/capability"
	"KnowledgeAgent/internal/ports"
)

// OllamaCompleter implements ports.Completer against a local Ollama server.
type OllamaCompleter struct {
	model  llms.Model
	policy capability.Policy
}

var _ ports.Completer = (*OllamaCompleter)(nil)

// NewOllamaCompleter builds a completer for the given server and model. The
// policy bounds every call with a per-attempt timeout and backoff retries.
func NewOllamaCompleter(baseURL, model string, policy capability.Policy) (*OllamaCompleter, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}

	client, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("initialize ollama client: %w", err)
	}

	return &OllamaCompleter{model: client, policy: policy}, nil
}

// Complete sends the prompt and returns the generated text. Failures from
// the model server are treated as transient and retried under the policy.
func (c *OllamaCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var result string

	err := c.policy.Do(ctx, func(ctx context.Context) error {
		out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt)
		if err != nil {
			return capability.Transient(fmt.Errorf("ollama completion: %w", err))
		}
		result = out
		return nil
	})
	if err != nil {
		return "", err
	}

	return result, nil
}
