package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/deepresearch/pkg/llm"
	"github.com/codeready-toolchain/deepresearch/pkg/models"
)

const (
	quickMaxTokens = 1500
	quickTemp      = 0.7
)

// runQuick executes the single-phase Quick mode: one LLM call with the
// Quick prompt, no citations.
func (o *Orchestrator) runQuick(ctx context.Context, sessionID, query string) (string, []models.Citation, models.Tokens, error) {
	start := time.Now()
	resp, err := o.llm.Chat(ctx, llm.Request{
		SystemPrompt: llm.QuickPrompt,
		UserPrompt:   query,
		Mode:         models.ModeQuick,
		MaxTokens:    quickMaxTokens,
		Temperature:  quickTemp,
	})
	if err != nil {
		return "", nil, models.Tokens{}, fmt.Errorf("quick synthesis: %w", err)
	}

	durationMs := time.Since(start).Milliseconds()
	if err := o.store.AppendPhase(ctx, sessionID, models.PhaseQuickSynthesis, 1, durationMs, resp.Tokens.Total, nil); err != nil {
		return "", nil, models.Tokens{}, fmt.Errorf("append phase: %w", err)
	}

	return resp.Content, []models.Citation{}, resp.Tokens, nil
}
