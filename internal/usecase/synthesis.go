package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"KnowledgeAgent/internal/domain"
	"KnowledgeAgent/internal/ports"
)

// defaultAdvicePhrases trip the refusal check before any model call. The
// list is overridable through configuration.
var defaultAdvicePhrases = []string{
	"should i buy",
	"should i sell",
	"should i invest",
	"what should i trade",
	"guaranteed profit",
	"price prediction",
	"predict the price",
	"which pair will go up",
	"financial advice",
	"investment advice",
}

// Synthesis produces the final answer text. It never returns an error to
// its caller; every failure mode maps to a fixed user-safe message.
type Synthesis struct {
	completer     ports.Completer
	advicePhrases []string
	logger        *slog.Logger
}

// NewSynthesis constructs the synthesis engine. An empty phrase list keeps
// the built-in safety defaults.
func NewSynthesis(completer ports.Completer, advicePhrases []string, logger *slog.Logger) *Synthesis {
	if len(advicePhrases) == 0 {
		advicePhrases = defaultAdvicePhrases
	}
	return &Synthesis{completer: completer, advicePhrases: advicePhrases, logger: logger}
}

// Synthesize answers the query. Questions asking for trade or investment
// decisions get the fixed disclaimer without touching the model. With
// context the answer is grounded in it; without context the model answers
// from general knowledge and says so. Always returns a non-empty string.
func (s *Synthesis) Synthesize(ctx context.Context, query string, qctx domain.QueryContext) string {
	if s.Refuses(query) {
		return adviceDisclaimer
	}

	var prompt string
	if qctx.Empty() {
		prompt = fmt.Sprintf(fallbackPromptTemplate, query)
	} else {
		prompt = fmt.Sprintf(groundedPromptTemplate, renderContext(qctx), query)
	}

	answer, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		s.logger.Error("synthesis call", "grounded", !qctx.Empty(), "error", err)
		return exhaustedAnswer
	}
	if strings.TrimSpace(answer) == "" {
		return exhaustedAnswer
	}
	return answer
}

// Refuses reports whether the query trips the advice safety policy.
func (s *Synthesis) Refuses(query string) bool {
	lowered := strings.ToLower(query)
	for _, phrase := range s.advicePhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}
