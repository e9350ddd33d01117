package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"KnowledgeAgent/internal/ports"
)

// Direct answers questions in a single model call without touching the
// knowledge store. It shares the safety policy with the synthesis engine.
type Direct struct {
	completer ports.Completer
	synthesis *Synthesis
	logger    *slog.Logger
}

// NewDirect constructs the direct engine.
func NewDirect(completer ports.Completer, synthesis *Synthesis, logger *slog.Logger) *Direct {
	return &Direct{completer: completer, synthesis: synthesis, logger: logger}
}

// Answer responds from the mentor persona's general knowledge. Always
// returns a non-empty string.
func (d *Direct) Answer(ctx context.Context, query string) string {
	if d.synthesis.Refuses(query) {
		return adviceDisclaimer
	}

	answer, err := d.completer.Complete(ctx, fmt.Sprintf(directPromptTemplate, query))
	if err != nil {
		d.logger.Error("direct call", "error", err)
		return exhaustedAnswer
	}
	if strings.TrimSpace(answer) == "" {
		return exhaustedAnswer
	}
	return answer
}
