package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/deepresearch/pkg/llm"
	"github.com/codeready-toolchain/deepresearch/pkg/models"
	"github.com/codeready-toolchain/deepresearch/pkg/search"
)

const (
	standardMaxResults = 5
	standardMaxTokens  = 2500
	standardTemp       = 0.7
)

// runStandard executes the two-phase Standard mode: source_discovery
// followed by structured_synthesis, citing the discovered sources.
func (o *Orchestrator) runStandard(ctx context.Context, sessionID, query string) (string, []models.Citation, models.Tokens, error) {
	discoveryStart := time.Now()
	results := o.search.Search(ctx, search.Query{Text: query, MaxResults: standardMaxResults, Depth: search.DepthBasic})
	discoveryMs := time.Since(discoveryStart).Milliseconds()

	if err := o.store.AppendPhase(ctx, sessionID, models.PhaseSourceDiscovery, 1, discoveryMs, 0,
		map[string]any{"sourcesFound": len(results)}); err != nil {
		return "", nil, models.Tokens{}, fmt.Errorf("append phase: %w", err)
	}

	citations := make([]models.Citation, 0, len(results))
	var sourceList strings.Builder
	for i, r := range results {
		citations = append(citations, models.Citation{ID: i + 1, Title: r.Title, URL: r.URL, Relevance: r.Score})
		fmt.Fprintf(&sourceList, "[%d] %s (%s)\n%s\n\n", i+1, r.Title, r.URL, r.Snippet)
	}

	userPrompt := fmt.Sprintf("Research query: %s\n\nDiscovered sources:\n%s", query, sourceList.String())

	synthesisStart := time.Now()
	resp, err := o.llm.Chat(ctx, llm.Request{
		SystemPrompt: llm.StandardPrompt,
		UserPrompt:   userPrompt,
		Mode:         models.ModeStandard,
		MaxTokens:    standardMaxTokens,
		Temperature:  standardTemp,
	})
	if err != nil {
		return "", nil, models.Tokens{}, fmt.Errorf("structured synthesis: %w", err)
	}
	synthesisMs := time.Since(synthesisStart).Milliseconds()

	if err := o.store.AppendPhase(ctx, sessionID, models.PhaseStructuredSynth, 2, synthesisMs, resp.Tokens.Total, nil); err != nil {
		return "", nil, models.Tokens{}, fmt.Errorf("append phase: %w", err)
	}

	return resp.Content, citations, resp.Tokens, nil
}
