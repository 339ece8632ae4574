package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/codeready-toolchain/deepresearch/pkg/logging"
	"github.com/codeready-toolchain/deepresearch/pkg/models"
)

// ModelConfig names the model identifiers used per capability tier. Model
// identities are a collaborator concern, centralised here rather than
// scattered across phase call sites.
type ModelConfig struct {
	EconomyModel       string
	HighCapabilityModel string
}

// modelFor resolves the model identifier for mode: quick/standard use the
// economy model, deep uses the high-capability model.
func (m ModelConfig) modelFor(mode models.Mode) string {
	if mode == models.ModeDeep {
		return m.HighCapabilityModel
	}
	return m.EconomyModel
}

// timeoutFor returns the per-attempt timeout for mode: quick 30s,
// standard 45s, deep 60s.
func timeoutFor(mode models.Mode) time.Duration {
	switch mode {
	case models.ModeQuick:
		return 30 * time.Second
	case models.ModeStandard:
		return 45 * time.Second
	case models.ModeDeep:
		return 60 * time.Second
	default:
		return 30 * time.Second
	}
}

const maxAttempts = 3

// OpenAIClient is a Client implementation speaking an OpenAI-compatible
// chat-completions wire format over HTTP, with retry/backoff and a
// per-model-tier circuit breaker.
type OpenAIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	models     ModelConfig
	logger     *zap.Logger

	breakers map[string]*gobreaker.CircuitBreaker

	// attemptTimeout resolves the per-attempt deadline for a mode.
	// Overridable in tests; production callers get timeoutFor.
	attemptTimeout func(models.Mode) time.Duration
}

// NewOpenAIClient constructs an OpenAIClient. baseURL defaults to the
// OpenAI API when empty, allowing tests to point at a local fake server.
func NewOpenAIClient(apiKey, baseURL string, models ModelConfig, logger *zap.Logger) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	c := &OpenAIClient{
		httpClient:     &http.Client{},
		baseURL:        baseURL,
		apiKey:         apiKey,
		models:         models,
		logger:         logger,
		breakers:       make(map[string]*gobreaker.CircuitBreaker),
		attemptTimeout: timeoutFor,
	}
	for _, m := range []string{models.EconomyModel, models.HighCapabilityModel} {
		c.breakers[m] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "llm:" + m,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string                 `json:"model"`
	Messages       []chatMessage          `json:"messages"`
	MaxTokens      int                    `json:"max_tokens"`
	Temperature    float64                `json:"temperature"`
	ResponseFormat map[string]string      `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Chat sends req and returns the reply content and token usage. It
// makes up to maxAttempts attempts, with exponential backoff
// min(1000*2^(attempt-1), 8000)ms, except for non-retryable failures
// (cancellation, 400/401/403), and is gated by a per-model circuit
// breaker.
func (c *OpenAIClient) Chat(ctx context.Context, req Request) (Response, error) {
	model := c.models.modelFor(req.Mode)
	breaker := c.breakers[model]

	var resp Response
	policy := backoff.WithMaxRetries(newBackoffClock(), maxAttempts-1)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout(req.Mode))
		defer cancel()

		out, breakerErr := breaker.Execute(func() (any, error) {
			return c.doChat(attemptCtx, model, req)
		})
		if breakerErr != nil {
			if errors.Is(breakerErr, ErrNonRetryable) || errors.Is(ctx.Err(), context.Canceled) {
				return backoff.Permanent(breakerErr)
			}
			c.logger.Warn("llm chat attempt failed",
				logging.Fields{}.Component("llm").Operation("Chat").Mode(string(req.Mode)).Err(breakerErr).Slice()...)
			return breakerErr
		}
		resp = out.(Response)
		return nil
	}, policy)

	if err != nil {
		return Response{}, fmt.Errorf("llm chat failed after %d attempts: %w", attempt, err)
	}
	return resp, nil
}

func (c *OpenAIClient) doChat(ctx context.Context, model string, req Request) (Response, error) {
	body := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSONMode {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("%w: marshal request: %v", ErrNonRetryable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("%w: build request: %v", ErrNonRetryable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Only explicit cancellation is non-retryable; a per-attempt
		// deadline (context.DeadlineExceeded) must fall through to the
		// caller's retry/backoff loop.
		if errors.Is(ctx.Err(), context.Canceled) {
			return Response{}, fmt.Errorf("%w: %v", ErrNonRetryable, ctx.Err())
		}
		return Response{}, fmt.Errorf("llm request: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read llm response: %w", err)
	}

	switch httpResp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return Response{}, fmt.Errorf("%w: llm returned status %d: %s", ErrNonRetryable, httpResp.StatusCode, string(raw))
	}
	if httpResp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("llm returned status %d: %s", httpResp.StatusCode, string(raw))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Response{}, fmt.Errorf("unmarshal llm response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, fmt.Errorf("llm response contained no choices")
	}

	return Response{
		Content: parsed.Choices[0].Message.Content,
		Tokens: models.Tokens{
			Input:  parsed.Usage.PromptTokens,
			Output: parsed.Usage.CompletionTokens,
			Total:  parsed.Usage.TotalTokens,
		},
	}, nil
}
