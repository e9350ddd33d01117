package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"KnowledgeAgent/internal/capability"
	"KnowledgeAgent/internal/ports"
)

// OpenAICompleter implements ports.Completer against OpenAI-compatible chat
// completion APIs (OpenAI, OpenRouter, and friends).
type OpenAICompleter struct {
	endpoint   string
	model      string
	apiKey     string
	policy     capability.Policy
	httpClient *http.Client
}

var _ ports.Completer = (*OpenAICompleter)(nil)

// NewOpenAICompleter builds a client from configuration. The endpoint is the
// full chat-completions URL.
func NewOpenAICompleter(endpoint, model, apiKey string, policy capability.Policy) *OpenAICompleter {
	return &OpenAICompleter{
		endpoint:   endpoint,
		model:      model,
		apiKey:     apiKey,
		policy:     policy,
		httpClient: &http.Client{},
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete posts the prompt as a single user message and returns the first
// choice. Rate limits and server errors are retried; client errors are not.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("openai completer misconfigured")
	}

	var result string
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		out, err := c.complete(ctx, prompt)
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		return "", err
	}

	return result, nil
}

func (c *OpenAICompleter) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", capability.Transient(fmt.Errorf("send chat request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", capability.Transient(fmt.Errorf("chat api %s: %s", resp.Status, strings.TrimSpace(string(payload))))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat api %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat api returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}
