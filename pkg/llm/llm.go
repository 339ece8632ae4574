// Package llm provides the LLM collaborator adapter: a single chat
// operation with retry, circuit breaking, and per-mode model/timeout
// selection.
package llm

import (
	"context"
	"errors"

	"github.com/codeready-toolchain/deepresearch/pkg/models"
)

// Request is a single chat-style call to the LLM collaborator.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Mode         models.Mode
	MaxTokens    int
	Temperature  float64
	JSONMode     bool
}

// Response is the collaborator's reply: content plus token usage.
type Response struct {
	Content string
	Tokens  models.Tokens
}

// ErrNonRetryable marks an error that the adapter must not retry:
// explicit cancellation, or an HTTP 400/401/403 classified as
// validation/auth.
var ErrNonRetryable = errors.New("llm: non-retryable error")

// Client is the LLM collaborator contract used by the orchestrator. It
// is the only component with retry semantics in this system.
type Client interface {
	Chat(ctx context.Context, req Request) (Response, error)
}
