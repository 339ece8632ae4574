package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/deepresearch/pkg/cache"
	"github.com/codeready-toolchain/deepresearch/pkg/llm"
	"github.com/codeready-toolchain/deepresearch/pkg/logging"
	"github.com/codeready-toolchain/deepresearch/pkg/models"
	"github.com/codeready-toolchain/deepresearch/pkg/search"
)

type fakePhase struct {
	name  string
	seqNo int
}

type fakeStore struct {
	mu        sync.Mutex
	sessions  map[string]*models.Session
	phases    map[string][]fakePhase
	reports   map[string]bool
	errors    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string]*models.Session),
		phases:   make(map[string][]fakePhase),
		reports:  make(map[string]bool),
	}
}

func (s *fakeStore) CreateSession(_ context.Context, query string, mode models.Mode) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &models.Session{ID: id, Query: query, Mode: mode, Status: models.StatusRunning}
	return id, nil
}

func (s *fakeStore) AppendPhase(_ context.Context, sessionID, name string, seqNo int, _ int64, _ int, _ map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases[sessionID] = append(s.phases[sessionID], fakePhase{name: name, seqNo: seqNo})
	return nil
}

func (s *fakeStore) WriteReport(_ context.Context, sessionID, _ string, _ []models.Citation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[sessionID] = true
	return nil
}

func (s *fakeStore) CompleteSession(_ context.Context, sessionID string, totalLatencyMs int64, totalTokens int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[sessionID]
	sess.Status = models.StatusCompleted
	sess.TotalLatencyMs = totalLatencyMs
	sess.TotalTokens = totalTokens
	return nil
}

func (s *fakeStore) FailSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID].Status = models.StatusFailed
	return nil
}

func (s *fakeStore) GetSessionWithReport(_ context.Context, sessionID string) (*models.Session, *models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sessionID], nil, nil
}

func (s *fakeStore) ListPhases(_ context.Context, sessionID string) ([]models.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Phase
	for _, p := range s.phases[sessionID] {
		out = append(out, models.Phase{Name: p.name, SeqNo: p.seqNo})
	}
	return out, nil
}

func (s *fakeStore) ListHistory(_ context.Context, _, _ int) ([]models.Session, error) { return nil, nil }
func (s *fakeStore) CountHistory(_ context.Context) (int, error)                        { return 0, nil }
func (s *fakeStore) DeleteSession(_ context.Context, _ string) (bool, error)            { return true, nil }

func (s *fakeStore) LogError(_ context.Context, _ *string, _, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
}

func (s *fakeStore) phaseNames(sessionID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, p := range s.phases[sessionID] {
		names = append(names, p.name)
	}
	return names
}

type fakeLLM struct {
	response llm.Response
	err      error
}

func (f fakeLLM) Chat(_ context.Context, _ llm.Request) (llm.Response, error) {
	return f.response, f.err
}

type fakeSearch struct {
	results []search.Result
}

func (f fakeSearch) Search(_ context.Context, _ search.Query) []search.Result {
	return f.results
}

func newOrchestrator(t *testing.T, llmClient llm.Client, searchClient search.Client, store *fakeStore) *Orchestrator {
	t.Helper()
	return New(llmClient, searchClient, cache.New(time.Hour), store, logging.NewNop())
}

func TestQuickModePhaseSequence(t *testing.T) {
	store := newFakeStore()
	o := newOrchestrator(t, fakeLLM{response: llm.Response{Content: "answer", Tokens: models.Tokens{Total: 120}}}, fakeSearch{}, store)

	result, err := o.Start(context.Background(), "What is HTTP?", models.ModeQuick)
	require.NoError(t, err)
	assert.Equal(t, "answer", result.Report)
	assert.Empty(t, result.Citations)
	assert.False(t, result.FromCache)
	assert.Equal(t, []string{models.PhaseQuickSynthesis}, store.phaseNames(result.SessionID))
}

func TestStandardModePhaseSequence(t *testing.T) {
	store := newFakeStore()
	sources := []search.Result{{Title: "A", URL: "http://a", Score: 0.9}}
	o := newOrchestrator(t, fakeLLM{response: llm.Response{Content: "report", Tokens: models.Tokens{Total: 200}}}, fakeSearch{results: sources}, store)

	result, err := o.Start(context.Background(), "compare X and Y", models.ModeStandard)
	require.NoError(t, err)
	assert.Equal(t, []string{models.PhaseSourceDiscovery, models.PhaseStructuredSynth}, store.phaseNames(result.SessionID))
	assert.Len(t, result.Citations, 1)
	assert.Equal(t, 1, result.Citations[0].ID)
}

func TestCacheHitSkipsSessionCreation(t *testing.T) {
	store := newFakeStore()
	o := newOrchestrator(t, fakeLLM{response: llm.Response{Content: "answer", Tokens: models.Tokens{Total: 50}}}, fakeSearch{}, store)

	ctx := context.Background()
	first, err := o.Start(ctx, "same query", models.ModeQuick)
	require.NoError(t, err)
	require.False(t, first.FromCache)

	second, err := o.Start(ctx, "same query", models.ModeQuick)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Report, second.Report)

	store.mu.Lock()
	sessionCount := len(store.sessions)
	store.mu.Unlock()
	assert.Equal(t, 1, sessionCount, "cache hit must not create a second session")
}

func TestDeepModeFullPhaseSequence(t *testing.T) {
	store := newFakeStore()
	sources := []search.Result{{Title: "S1", URL: "http://s1", Score: 0.8}}
	analysisJSON, _ := json.Marshal(map[string]any{
		"coreQuestion": "q", "subQuestions": []string{"q1"}, "domain": "general", "outputType": "analysis",
	})
	llmClient := &sequencedLLM{responses: []llm.Response{
		{Content: string(analysisJSON), Tokens: models.Tokens{Total: 10}}, // query_analysis
		{Content: "extracted", Tokens: models.Tokens{Total: 20}},         // content_extraction
		{Content: "validated", Tokens: models.Tokens{Total: 15}},        // cross_validation
		{Content: "final report", Tokens: models.Tokens{Total: 300}},    // structured_synthesis
	}}
	o := newOrchestrator(t, llmClient, fakeSearch{results: sources}, store)

	ctx := context.Background()
	started, err := o.Start(ctx, "deep query", models.ModeDeep)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, started.Status)

	var events []Event
	err = o.RunDeep(ctx, started.SessionID, "deep query", func(e Event) { events = append(events, e) })
	require.NoError(t, err)

	wantPhases := []string{
		models.PhaseQueryAnalysis, models.PhaseSourceDiscovery, models.PhaseContentExtraction,
		models.PhaseCrossValidation, models.PhaseStructuredSynth, models.PhaseCitationLinking,
	}
	assert.Equal(t, wantPhases, store.phaseNames(started.SessionID))

	var progressValues []int
	var sawComplete bool
	for _, e := range events {
		if e.Type == EventPhase {
			progressValues = append(progressValues, e.Phase.Progress)
		}
		if e.Type == EventComplete {
			sawComplete = true
			assert.Equal(t, "final report", e.Complete.Report)
		}
	}
	assert.Equal(t, []int{5, 15, 20, 30, 35, 50, 55, 65, 70, 85, 90, 100}, progressValues)
	assert.True(t, sawComplete)
}

func TestDeepModeSkipsOptionalPhasesWithoutSources(t *testing.T) {
	store := newFakeStore()
	analysisJSON, _ := json.Marshal(map[string]any{"coreQuestion": "q", "subQuestions": []string{}, "domain": "general", "outputType": "analysis"})
	llmClient := &sequencedLLM{responses: []llm.Response{
		{Content: string(analysisJSON), Tokens: models.Tokens{Total: 10}},
		{Content: "final report", Tokens: models.Tokens{Total: 300}},
	}}
	o := newOrchestrator(t, llmClient, fakeSearch{}, store) // no sources

	ctx := context.Background()
	started, err := o.Start(ctx, "deep query", models.ModeDeep)
	require.NoError(t, err)

	err = o.RunDeep(ctx, started.SessionID, "deep query", func(Event) {})
	require.NoError(t, err)

	wantPhases := []string{
		models.PhaseQueryAnalysis, models.PhaseSourceDiscovery, models.PhaseStructuredSynth, models.PhaseCitationLinking,
	}
	assert.Equal(t, wantPhases, store.phaseNames(started.SessionID))
}

func TestQueryAnalysisFallsBackOnParseFailure(t *testing.T) {
	got := parseQueryAnalysis("not json", "original query")
	assert.Equal(t, "original query", got.CoreQuestion)
	assert.Equal(t, []string{"original query"}, got.SubQuestions)
	assert.Equal(t, "general", got.Domain)
}

type sequencedLLM struct {
	mu        sync.Mutex
	responses []llm.Response
	idx       int
}

func (s *sequencedLLM) Chat(_ context.Context, _ llm.Request) (llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.responses[s.idx]
	s.idx++
	return r, nil
}
