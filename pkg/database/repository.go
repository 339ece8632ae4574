package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codeready-toolchain/deepresearch/pkg/models"
)

// ErrSessionNotFound is returned when a lookup by session ID finds nothing.
var ErrSessionNotFound = errors.New("session not found")

// slowQueryThreshold is the duration above which an operation is logged
// at warn level, per spec §4.7 "slow-query observation".
const slowQueryThreshold = 1000 * time.Millisecond

// Store is the persistence adapter's contract: typed, parameterized
// reads/writes against the sessions/phases/reports/error_logs schema.
// No operation concatenates SQL from caller-controlled strings.
type Store interface {
	CreateSession(ctx context.Context, query string, mode models.Mode) (string, error)
	AppendPhase(ctx context.Context, sessionID, name string, seqNo int, durationMs int64, tokens int, metadata map[string]any) error
	WriteReport(ctx context.Context, sessionID, content string, citations []models.Citation) error
	CompleteSession(ctx context.Context, sessionID string, totalLatencyMs int64, totalTokens int) error
	FailSession(ctx context.Context, sessionID string) error
	GetSessionWithReport(ctx context.Context, sessionID string) (*models.Session, *models.Report, error)
	ListPhases(ctx context.Context, sessionID string) ([]models.Phase, error)
	ListHistory(ctx context.Context, limit, offset int) ([]models.Session, error)
	CountHistory(ctx context.Context) (int, error)
	DeleteSession(ctx context.Context, sessionID string) (bool, error)
	LogError(ctx context.Context, sessionID *string, message, stack string)
}

// PostgresStore is the Store implementation backed by PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore wraps client's connection pool as a Store.
func NewPostgresStore(client *Client, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: client.DB(), logger: logger}
}

func (s *PostgresStore) observe(op string, start time.Time) {
	if elapsed := time.Since(start); elapsed > slowQueryThreshold {
		ident := op
		if len(ident) > 64 {
			ident = ident[:64]
		}
		s.logger.Warn("slow database operation", zap.String("operation", ident), zap.Duration("elapsed", elapsed))
	}
}

// CreateSession inserts a new session in status "running" and returns its
// generated ID.
func (s *PostgresStore) CreateSession(ctx context.Context, query string, mode models.Mode) (string, error) {
	defer s.observe("CreateSession", time.Now())

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, query, mode, status, created_at, started_at)
		 VALUES ($1, $2, $3, $4, now(), now())`,
		id, query, string(mode), string(models.StatusRunning))
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// AppendPhase writes one Phase row. Phase rows are append-only and must
// be written in strictly increasing seqNo order within a session.
func (s *PostgresStore) AppendPhase(ctx context.Context, sessionID, name string, seqNo int, durationMs int64, tokens int, metadata map[string]any) error {
	defer s.observe("AppendPhase", time.Now())

	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal phase metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO phases (session_id, seq_no, name, duration_ms, tokens_used, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sessionID, seqNo, name, durationMs, tokens, raw)
	if err != nil {
		return fmt.Errorf("append phase: %w", err)
	}
	return nil
}

// WriteReport writes the session's Report. Idempotent: a second call for
// the same session is a no-op rather than a constraint error, since the
// caller has already ensured "at most one report per session" at the
// orchestrator layer.
func (s *PostgresStore) WriteReport(ctx context.Context, sessionID, content string, citations []models.Citation) error {
	defer s.observe("WriteReport", time.Now())

	if citations == nil {
		citations = []models.Citation{}
	}
	raw, err := json.Marshal(citations)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (session_id, content, citations)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (session_id) DO NOTHING`,
		sessionID, content, raw)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// CompleteSession transitions a session to "completed" with its
// aggregate telemetry. Must be called strictly after the session's last
// phase write.
func (s *PostgresStore) CompleteSession(ctx context.Context, sessionID string, totalLatencyMs int64, totalTokens int) error {
	defer s.observe("CompleteSession", time.Now())

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = $1, total_latency_ms = $2, total_tokens = $3, completed_at = now()
		 WHERE id = $4`,
		string(models.StatusCompleted), totalLatencyMs, totalTokens, sessionID)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return checkAffected(res, sessionID)
}

// FailSession transitions a session to "failed".
func (s *PostgresStore) FailSession(ctx context.Context, sessionID string) error {
	defer s.observe("FailSession", time.Now())

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = $1, completed_at = now() WHERE id = $2`,
		string(models.StatusFailed), sessionID)
	if err != nil {
		return fmt.Errorf("fail session: %w", err)
	}
	return checkAffected(res, sessionID)
}

func checkAffected(res sql.Result, sessionID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

// GetSessionWithReport joins a session with its at-most-one report.
func (s *PostgresStore) GetSessionWithReport(ctx context.Context, sessionID string) (*models.Session, *models.Report, error) {
	defer s.observe("GetSessionWithReport", time.Now())

	var sess models.Session
	var totalLatency, totalTokens sql.NullInt64
	var startedAt, completedAt sql.NullTime
	var mode, status string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, query, mode, status, total_latency_ms, total_tokens, created_at, started_at, completed_at
		 FROM sessions WHERE id = $1`, sessionID).
		Scan(&sess.ID, &sess.Query, &mode, &status, &totalLatency, &totalTokens, &sess.CreatedAt, &startedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get session: %w", err)
	}

	sess.Mode = models.Mode(mode)
	sess.Status = models.Status(status)
	sess.TotalLatencyMs = totalLatency.Int64
	sess.TotalTokens = int(totalTokens.Int64)
	if startedAt.Valid {
		t := startedAt.Time
		sess.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		sess.CompletedAt = &t
	}

	var report *models.Report
	var reportID sql.NullInt64
	var content string
	var citationsRaw []byte
	err = s.db.QueryRowContext(ctx,
		`SELECT id, content, citations FROM reports WHERE session_id = $1`, sessionID).
		Scan(&reportID, &content, &citationsRaw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// No report yet — not an error, session may still be running or failed.
	case err != nil:
		return nil, nil, fmt.Errorf("get report: %w", err)
	default:
		var citations []models.Citation
		if err := json.Unmarshal(citationsRaw, &citations); err != nil {
			return nil, nil, fmt.Errorf("unmarshal citations: %w", err)
		}
		report = &models.Report{ID: reportID.Int64, SessionID: sessionID, Content: content, Citations: citations}
	}

	return &sess, report, nil
}

// ListPhases returns a session's phases in insertion order.
func (s *PostgresStore) ListPhases(ctx context.Context, sessionID string) ([]models.Phase, error) {
	defer s.observe("ListPhases", time.Now())

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, seq_no, name, duration_ms, tokens_used, metadata
		 FROM phases WHERE session_id = $1 ORDER BY seq_no ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list phases: %w", err)
	}
	defer rows.Close()

	var phases []models.Phase
	for rows.Next() {
		var p models.Phase
		var raw []byte
		if err := rows.Scan(&p.ID, &p.SessionID, &p.SeqNo, &p.Name, &p.DurationMs, &p.TokensUsed, &raw); err != nil {
			return nil, fmt.Errorf("scan phase: %w", err)
		}
		if err := json.Unmarshal(raw, &p.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal phase metadata: %w", err)
		}
		phases = append(phases, p)
	}
	return phases, rows.Err()
}

// ListHistory returns sessions newest-first for the history endpoint.
func (s *PostgresStore) ListHistory(ctx context.Context, limit, offset int) ([]models.Session, error) {
	defer s.observe("ListHistory", time.Now())

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, mode, status, total_latency_ms, total_tokens, created_at, started_at, completed_at
		 FROM sessions ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var sess models.Session
		var mode, status string
		var totalLatency, totalTokens sql.NullInt64
		var startedAt, completedAt sql.NullTime
		if err := rows.Scan(&sess.ID, &sess.Query, &mode, &status, &totalLatency, &totalTokens, &sess.CreatedAt, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.Mode = models.Mode(mode)
		sess.Status = models.Status(status)
		sess.TotalLatencyMs = totalLatency.Int64
		sess.TotalTokens = int(totalTokens.Int64)
		if startedAt.Valid {
			t := startedAt.Time
			sess.StartedAt = &t
		}
		if completedAt.Valid {
			t := completedAt.Time
			sess.CompletedAt = &t
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// CountHistory returns the total number of sessions, for pagination.
func (s *PostgresStore) CountHistory(ctx context.Context) (int, error) {
	defer s.observe("CountHistory", time.Now())

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sessions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}

// DeleteSession removes a session, cascading to its phases and report.
// Error entries are retained with their session_id set to NULL.
func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	defer s.observe("DeleteSession", time.Now())

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LogError appends an ErrorEntry. Best-effort: failures are logged but
// never returned, since a logging failure must never mask the original
// error that triggered it.
func (s *PostgresStore) LogError(ctx context.Context, sessionID *string, message, stack string) {
	defer s.observe("LogError", time.Now())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO error_logs (session_id, message, stack) VALUES ($1, $2, $3)`,
		sessionID, message, stack)
	if err != nil {
		s.logger.Error("failed to persist error entry", zap.Error(err), zap.String("message", message))
	}
}
