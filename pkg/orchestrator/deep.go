package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/deepresearch/pkg/llm"
	"github.com/codeready-toolchain/deepresearch/pkg/logging"
	"github.com/codeready-toolchain/deepresearch/pkg/models"
	"github.com/codeready-toolchain/deepresearch/pkg/search"
)

type queryAnalysis struct {
	CoreQuestion string   `json:"coreQuestion"`
	SubQuestions []string `json:"subQuestions"`
	Domain       string   `json:"domain"`
	OutputType   string   `json:"outputType"`
}

// ErrAlreadyRunning is returned by RunDeep when a Deep session's pipeline
// is already being driven by another stream connection.
var ErrAlreadyRunning = fmt.Errorf("deep session pipeline already running")

// RunDeep drives the six-phase Deep pipeline for an existing Deep session
// in status "running", emitting a phase event at every phase boundary and
// exactly one terminal complete/error event while ctx is live (none is
// emitted after ctx is cancelled, nor when it returns ErrAlreadyRunning,
// in which case it emits nothing). It is invoked by the stream
// handler, which owns the request task that cancellation propagates
// through: a client disconnect cancels ctx and RunDeep returns without
// marking the session failed, leaving it "running" (see design notes).
func (o *Orchestrator) RunDeep(ctx context.Context, sessionID, query string, emit func(Event)) error {
	if !o.markRunning(sessionID) {
		return ErrAlreadyRunning
	}
	defer o.clearRunning(sessionID)

	pipelineStart := time.Now()
	seqNo := 1
	totalTokens := models.Tokens{}

	emitPhase := func(phase string, progress int, message string, data map[string]any) {
		emit(Event{Type: EventPhase, Phase: &PhasePayload{
			Phase: phase, Progress: progress, Message: message, Data: data, TimestampMs: time.Now().UnixMilli(),
		}})
	}

	fail := func(err error) error {
		if ctx.Err() != nil {
			// Client disconnected; leave the session running per the
			// documented cancellation semantics.
			return ctx.Err()
		}
		o.fail(ctx, sessionID, err)
		emit(Event{Type: EventError, Error: &ErrorPayload{SessionID: sessionID, Message: err.Error()}})
		return err
	}

	// Phase 1: query_analysis
	emitPhase(models.PhaseQueryAnalysis, 5, "Analyzing query", nil)
	analysisStart := time.Now()
	analysisResp, err := o.llm.Chat(ctx, llm.Request{
		SystemPrompt: llm.QueryAnalysisPrompt,
		UserPrompt:   query,
		Mode:         models.ModeDeep,
		MaxTokens:    500,
		Temperature:  0.3,
		JSONMode:     true,
	})
	if err != nil {
		return fail(fmt.Errorf("query analysis: %w", err))
	}
	analysis := parseQueryAnalysis(analysisResp.Content, query)
	totalTokens.Total += analysisResp.Tokens.Total
	if err := o.store.AppendPhase(ctx, sessionID, models.PhaseQueryAnalysis, seqNo,
		time.Since(analysisStart).Milliseconds(), analysisResp.Tokens.Total,
		map[string]any{"coreQuestion": analysis.CoreQuestion, "subQuestions": analysis.SubQuestions, "domain": analysis.Domain}); err != nil {
		return fail(fmt.Errorf("append phase: %w", err))
	}
	seqNo++
	emitPhase(models.PhaseQueryAnalysis, 15, "Query analyzed", nil)

	// Phase 2: source_discovery
	emitPhase(models.PhaseSourceDiscovery, 20, "Discovering sources", nil)
	discoveryStart := time.Now()
	queries := []search.Query{{Text: query, MaxResults: 4, Depth: search.DepthAdvanced}}
	for i, sq := range analysis.SubQuestions {
		if i >= 4 {
			break
		}
		queries = append(queries, search.Query{Text: sq, MaxResults: 4, Depth: search.DepthAdvanced})
	}
	resultLists := search.SearchMany(ctx, o.search, queries)
	sources := search.DedupeByURL(resultLists...)
	if err := o.store.AppendPhase(ctx, sessionID, models.PhaseSourceDiscovery, seqNo,
		time.Since(discoveryStart).Milliseconds(), 0, map[string]any{"sourcesFound": len(sources)}); err != nil {
		return fail(fmt.Errorf("append phase: %w", err))
	}
	seqNo++
	emitPhase(models.PhaseSourceDiscovery, 30, "Sources discovered", map[string]any{"sourcesFound": len(sources)})

	// Phase 3: content_extraction (skipped if no sources)
	var extraction string
	if len(sources) > 0 {
		emitPhase(models.PhaseContentExtraction, 35, "Extracting content", nil)
		extractionStart := time.Now()
		resp, err := o.llm.Chat(ctx, llm.Request{
			SystemPrompt: llm.ExtractionPrompt,
			UserPrompt:   serializeSources(sources),
			Mode:         models.ModeDeep,
			MaxTokens:    2000,
			Temperature:  0.5,
		})
		if err != nil {
			return fail(fmt.Errorf("content extraction: %w", err))
		}
		extraction = resp.Content
		totalTokens.Total += resp.Tokens.Total
		if err := o.store.AppendPhase(ctx, sessionID, models.PhaseContentExtraction, seqNo,
			time.Since(extractionStart).Milliseconds(), resp.Tokens.Total, nil); err != nil {
			return fail(fmt.Errorf("append phase: %w", err))
		}
		seqNo++
		emitPhase(models.PhaseContentExtraction, 50, "Content extracted", nil)
	}

	// Phase 4: cross_validation (skipped if extraction produced nothing)
	var validation string
	if extraction != "" {
		emitPhase(models.PhaseCrossValidation, 55, "Validating sources", nil)
		validationStart := time.Now()
		resp, err := o.llm.Chat(ctx, llm.Request{
			SystemPrompt: llm.ValidationPrompt,
			UserPrompt:   extraction,
			Mode:         models.ModeDeep,
			MaxTokens:    1000,
			Temperature:  0.3,
		})
		if err != nil {
			return fail(fmt.Errorf("cross validation: %w", err))
		}
		validation = resp.Content
		totalTokens.Total += resp.Tokens.Total
		if err := o.store.AppendPhase(ctx, sessionID, models.PhaseCrossValidation, seqNo,
			time.Since(validationStart).Milliseconds(), resp.Tokens.Total, nil); err != nil {
			return fail(fmt.Errorf("append phase: %w", err))
		}
		seqNo++
		emitPhase(models.PhaseCrossValidation, 65, "Validation complete", nil)
	}

	// Phase 5: structured_synthesis
	emitPhase(models.PhaseStructuredSynth, 70, "Synthesizing report", nil)
	synthesisStart := time.Now()
	synthesisPrompt := buildSynthesisPrompt(query, analysis, extraction, validation, sources)
	resp, err := o.llm.Chat(ctx, llm.Request{
		SystemPrompt: llm.DeepSynthesisPrompt,
		UserPrompt:   synthesisPrompt,
		Mode:         models.ModeDeep,
		MaxTokens:    4000,
		Temperature:  0.7,
	})
	if err != nil {
		return fail(fmt.Errorf("structured synthesis: %w", err))
	}
	report := resp.Content
	totalTokens.Total += resp.Tokens.Total
	if err := o.store.AppendPhase(ctx, sessionID, models.PhaseStructuredSynth, seqNo,
		time.Since(synthesisStart).Milliseconds(), resp.Tokens.Total, nil); err != nil {
		return fail(fmt.Errorf("append phase: %w", err))
	}
	seqNo++
	emitPhase(models.PhaseStructuredSynth, 85, "Report synthesized", nil)

	// Phase 6: citation_linking — a pure transform, no LLM call (see
	// design notes on the citation-linking prompt).
	emitPhase(models.PhaseCitationLinking, 90, "Linking citations", nil)
	linkingStart := time.Now()
	citations := make([]models.Citation, 0, len(sources))
	for i, s := range sources {
		citations = append(citations, models.Citation{ID: i + 1, Title: s.Title, URL: s.URL, Relevance: s.Score})
	}
	if err := o.store.AppendPhase(ctx, sessionID, models.PhaseCitationLinking, seqNo,
		time.Since(linkingStart).Milliseconds(), 0, map[string]any{"citationCount": len(citations)}); err != nil {
		return fail(fmt.Errorf("append phase: %w", err))
	}
	emitPhase(models.PhaseCitationLinking, 100, "Done", nil)

	latencyMs := time.Since(pipelineStart).Milliseconds()
	if err := o.complete(ctx, sessionID, models.ModeDeep, query, report, citations, totalTokens, latencyMs); err != nil {
		return fail(err)
	}

	emit(Event{Type: EventComplete, Complete: &CompletePayload{
		SessionID: sessionID,
		Mode:      models.ModeDeep,
		Report:    report,
		Citations: citations,
		Tokens:    totalTokens,
		FromCache: false,
	}})

	o.logger.Info("deep session completed",
		logging.Fields{}.Component("orchestrator").Session(sessionID).Mode(string(models.ModeDeep)).DurationMs(latencyMs).Slice()...)

	return nil
}

// parseQueryAnalysis parses the model's JSON response, falling back to a
// single-sub-question, general-domain analysis on any parse failure.
func parseQueryAnalysis(raw, query string) queryAnalysis {
	var a queryAnalysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil || a.CoreQuestion == "" {
		return queryAnalysis{
			CoreQuestion: query,
			SubQuestions: []string{query},
			Domain:       "general",
			OutputType:   "analysis",
		}
	}
	return a
}

func serializeSources(sources []search.Result) string {
	var b strings.Builder
	for i, s := range sources {
		snippet := s.Snippet
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, s.Title, s.URL, snippet)
	}
	return b.String()
}

func buildSynthesisPrompt(query string, analysis queryAnalysis, extraction, validation string, sources []search.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research query: %s\n\n", query)
	fmt.Fprintf(&b, "Core question: %s\nSub-questions: %s\nDomain: %s\n\n",
		analysis.CoreQuestion, strings.Join(analysis.SubQuestions, "; "), analysis.Domain)
	if extraction != "" {
		fmt.Fprintf(&b, "Extracted insights:\n%s\n\n", extraction)
	}
	if validation != "" {
		fmt.Fprintf(&b, "Cross-validation:\n%s\n\n", validation)
	}
	if len(sources) > 0 {
		b.WriteString("Sources:\n")
		for i, s := range sources {
			fmt.Fprintf(&b, "[%d] %s (%s)\n", i+1, s.Title, s.URL)
		}
	}
	return b.String()
}
