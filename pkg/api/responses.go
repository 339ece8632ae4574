package api

import (
	"time"

	"github.com/codeready-toolchain/deepresearch/pkg/database"
	"github.com/codeready-toolchain/deepresearch/pkg/models"
)

// ErrorResponse is the uniform error body shape from spec §7.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StartResearchResponse is the POST /research happy-path body: either a
// fully completed quick/standard payload, or a running deep-mode
// acknowledgement.
type StartResearchResponse struct {
	SessionID string            `json:"sessionId,omitempty"`
	Mode      models.Mode       `json:"mode"`
	Status    models.Status     `json:"status,omitempty"`
	Report    string            `json:"report,omitempty"`
	Citations []models.Citation `json:"citations,omitempty"`
	Tokens    *models.Tokens    `json:"tokens,omitempty"`
	FromCache bool              `json:"fromCache,omitempty"`
}

// SessionResponse is the GET /research/:id body.
type SessionResponse struct {
	ID             string            `json:"id"`
	Query          string            `json:"query"`
	Mode           models.Mode       `json:"mode"`
	Status         models.Status     `json:"status"`
	TotalLatencyMs int64             `json:"totalLatencyMs,omitempty"`
	TotalTokens    int               `json:"totalTokens,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	Report         string            `json:"report,omitempty"`
	Citations      []models.Citation `json:"citations,omitempty"`
	Phases         []PhaseResponse   `json:"phases,omitempty"`
}

// PhaseResponse is one entry of a SessionResponse's phase list.
type PhaseResponse struct {
	Name       string         `json:"name"`
	DurationMs int64          `json:"durationMs"`
	TokensUsed int            `json:"tokensUsed"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// HistoryResponse is the GET /history body.
type HistoryResponse struct {
	Items  []SessionResponse `json:"items"`
	Total  int               `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// DeleteResponse is the DELETE /history/:id happy-path body.
type DeleteResponse struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// HealthResponse is the GET /health body. Database is omitted when the
// server was built without a database handle (e.g. in unit tests).
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Database  *database.HealthStatus `json:"database,omitempty"`
}
