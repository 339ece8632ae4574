package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/deepresearch/pkg/cache"
	"github.com/codeready-toolchain/deepresearch/pkg/database"
	"github.com/codeready-toolchain/deepresearch/pkg/llm"
	"github.com/codeready-toolchain/deepresearch/pkg/logging"
	"github.com/codeready-toolchain/deepresearch/pkg/models"
	"github.com/codeready-toolchain/deepresearch/pkg/orchestrator"
	"github.com/codeready-toolchain/deepresearch/pkg/search"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	reports  map[string]*models.Report
	phases   map[string][]models.Phase
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[string]*models.Session),
		reports:  make(map[string]*models.Report),
		phases:   make(map[string][]models.Phase),
	}
}

func (m *memStore) CreateSession(_ context.Context, query string, mode models.Mode) (string, error) {
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = &models.Session{ID: id, Query: query, Mode: mode, Status: models.StatusRunning, CreatedAt: time.Now()}
	return id, nil
}

func (m *memStore) AppendPhase(_ context.Context, sessionID, name string, seqNo int, durationMs int64, tokens int, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phases[sessionID] = append(m.phases[sessionID], models.Phase{SessionID: sessionID, Name: name, SeqNo: seqNo, DurationMs: durationMs, TokensUsed: tokens, Metadata: metadata})
	return nil
}

func (m *memStore) WriteReport(_ context.Context, sessionID, content string, citations []models.Citation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[sessionID] = &models.Report{SessionID: sessionID, Content: content, Citations: citations}
	return nil
}

func (m *memStore) CompleteSession(_ context.Context, sessionID string, totalLatencyMs int64, totalTokens int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[sessionID]
	s.Status = models.StatusCompleted
	s.TotalLatencyMs = totalLatencyMs
	s.TotalTokens = totalTokens
	return nil
}

func (m *memStore) FailSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID].Status = models.StatusFailed
	return nil
}

func (m *memStore) GetSessionWithReport(_ context.Context, sessionID string) (*models.Session, *models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil, database.ErrSessionNotFound
	}
	return s, m.reports[sessionID], nil
}

func (m *memStore) ListPhases(_ context.Context, sessionID string) ([]models.Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phases[sessionID], nil
}

func (m *memStore) ListHistory(_ context.Context, limit, offset int) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Session
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memStore) CountHistory(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions), nil
}

func (m *memStore) DeleteSession(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(m.sessions, sessionID)
	delete(m.reports, sessionID)
	delete(m.phases, sessionID)
	return true, nil
}

func (m *memStore) LogError(_ context.Context, _ *string, _, _ string) {}

type stubLLM struct{ content string }

func (s stubLLM) Chat(_ context.Context, _ llm.Request) (llm.Response, error) {
	return llm.Response{Content: s.content, Tokens: models.Tokens{Total: 100}}, nil
}

type stubSearch struct{}

func (stubSearch) Search(_ context.Context, _ search.Query) []search.Result { return nil }

func newTestServer() (*Server, *memStore) {
	store := newMemStore()
	orch := orchestrator.New(stubLLM{content: "HTTP is a protocol."}, stubSearch{}, cache.New(time.Hour), store, logging.NewNop())
	srv := NewServer(Config{Port: 0, ResearchRatePerMinute: 20, HistoryRatePerMinute: 60}, orch, store, nil, logging.NewNop())
	return srv, store
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)
	return rec
}

func TestSubmitQuickResearchHappyPath(t *testing.T) {
	srv, _ := newTestServer()
	rec := doRequest(t, srv, http.MethodPost, "/research", StartResearchRequest{Query: "What is HTTP?", Mode: "quick"})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StartResearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "HTTP is a protocol.", resp.Report)
	assert.Equal(t, models.ModeQuick, resp.Mode)
	assert.NotEmpty(t, resp.SessionID)
}

func TestSubmitResearchValidationError(t *testing.T) {
	srv, _ := newTestServer()
	rec := doRequest(t, srv, http.MethodPost, "/research", StartResearchRequest{Query: "<script>x</script>stuff"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error)
}

func TestGetSessionNotFound(t *testing.T) {
	srv, _ := newTestServer()
	rec := doRequest(t, srv, http.MethodGet, "/research/00000000-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSessionInvalidUUID(t *testing.T) {
	srv, _ := newTestServer()
	rec := doRequest(t, srv, http.MethodGet, "/research/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateThenFetchRoundTrip(t *testing.T) {
	srv, _ := newTestServer()
	createRec := doRequest(t, srv, http.MethodPost, "/research", StartResearchRequest{Query: "What is HTTP?", Mode: "quick"})
	require.Equal(t, http.StatusOK, createRec.Code)
	var created StartResearchResponse
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	fetchRec := doRequest(t, srv, http.MethodGet, "/research/"+created.SessionID, nil)
	require.Equal(t, http.StatusOK, fetchRec.Code)
	var fetched SessionResponse
	require.NoError(t, json.Unmarshal(fetchRec.Body.Bytes(), &fetched))
	assert.Equal(t, created.Report, fetched.Report)
}

func TestDeleteThenFetchNotFound(t *testing.T) {
	srv, _ := newTestServer()
	createRec := doRequest(t, srv, http.MethodPost, "/research", StartResearchRequest{Query: "What is HTTP?", Mode: "quick"})
	var created StartResearchResponse
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	deleteRec := doRequest(t, srv, http.MethodDelete, "/history/"+created.SessionID, nil)
	assert.Equal(t, http.StatusOK, deleteRec.Code)

	fetchRec := doRequest(t, srv, http.MethodGet, "/research/"+created.SessionID, nil)
	assert.Equal(t, http.StatusNotFound, fetchRec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer()
	rec := doRequest(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitReturns429After20Requests(t *testing.T) {
	srv, _ := newTestServer()
	for i := 0; i < 20; i++ {
		rec := doRequest(t, srv, http.MethodPost, "/research", StartResearchRequest{Query: "a distinct query number", Mode: "quick"})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := doRequest(t, srv, http.MethodPost, "/research", StartResearchRequest{Query: "one too many", Mode: "quick"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
