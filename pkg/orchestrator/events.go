package orchestrator

import "github.com/codeready-toolchain/deepresearch/pkg/models"

// EventType names the three SSE frame kinds the deep pipeline emits.
type EventType string

const (
	EventPhase    EventType = "phase"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one frame of the deep-mode progress stream. Exactly one of
// Phase, Complete, or Error is populated, selected by Type.
type Event struct {
	Type     EventType
	Phase    *PhasePayload
	Complete *CompletePayload
	Error    *ErrorPayload
}

// PhasePayload is emitted on every phase boundary.
type PhasePayload struct {
	Phase       string         `json:"phase"`
	Progress    int            `json:"progress"`
	Message     string         `json:"message"`
	Data        map[string]any `json:"data,omitempty"`
	TimestampMs int64          `json:"timestamp"`
}

// CompletePayload is the terminal success frame: session ID, mode, report,
// citations, and token totals. It does not carry the pipeline latency, and
// its shape differs from a GET /research/:id response body (which holds
// the session snapshot and phases, with no token breakdown).
type CompletePayload struct {
	SessionID string             `json:"sessionId"`
	Mode      models.Mode        `json:"mode"`
	Report    string             `json:"report"`
	Citations []models.Citation  `json:"citations"`
	Tokens    models.Tokens      `json:"tokens"`
	FromCache bool               `json:"fromCache"`
}

// ErrorPayload is the terminal failure frame.
type ErrorPayload struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}
