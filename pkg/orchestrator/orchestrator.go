// Package orchestrator implements the three research modes — Quick,
// Standard, and Deep — and exclusively owns Session state transitions.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/codeready-toolchain/deepresearch/pkg/cache"
	"github.com/codeready-toolchain/deepresearch/pkg/database"
	"github.com/codeready-toolchain/deepresearch/pkg/llm"
	"github.com/codeready-toolchain/deepresearch/pkg/logging"
	"github.com/codeready-toolchain/deepresearch/pkg/models"
	"github.com/codeready-toolchain/deepresearch/pkg/search"
)

// Orchestrator wires the LLM/Search adapters, cache, and persistence
// layer together to run Quick, Standard, and Deep research sessions.
type Orchestrator struct {
	llm    llm.Client
	search search.Client
	cache  *cache.Cache
	store  database.Store
	logger *zap.Logger

	running   map[string]struct{}
	runningMu sync.Mutex
}

// New constructs an Orchestrator.
func New(llmClient llm.Client, searchClient search.Client, c *cache.Cache, store database.Store, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		llm:     llmClient,
		search:  searchClient,
		cache:   c,
		store:   store,
		logger:  logger,
		running: make(map[string]struct{}),
	}
}

// StartResult is the outcome of Start: either a cache hit, a completed
// quick/standard run, or an acknowledgement that a Deep session has been
// created and is awaiting its stream connection.
type StartResult struct {
	SessionID string
	Mode      models.Mode
	Status    models.Status
	FromCache bool
	Report    string
	Citations []models.Citation
	Tokens    models.Tokens
	LatencyMs int64
}

// Start runs the shared pre-run step (cache consult) and then either
// executes Quick/Standard synchronously to completion, or creates a Deep
// session in status "running" for its stream connection to later drive.
func (o *Orchestrator) Start(ctx context.Context, query string, mode models.Mode) (StartResult, error) {
	key := cache.Fingerprint(query, mode)
	if hit, ok := o.cache.Get(key); ok {
		return StartResult{
			Mode:      mode,
			Status:    models.StatusCompleted,
			FromCache: true,
			Report:    hit.Report,
			Citations: hit.Citations,
			Tokens:    hit.Tokens,
			LatencyMs: hit.LatencyMs,
		}, nil
	}

	sessionID, err := o.store.CreateSession(ctx, query, mode)
	if err != nil {
		return StartResult{}, fmt.Errorf("create session: %w", err)
	}

	if mode == models.ModeDeep {
		return StartResult{SessionID: sessionID, Mode: mode, Status: models.StatusRunning}, nil
	}

	start := time.Now()
	var (
		report    string
		citations []models.Citation
		tokens    models.Tokens
		runErr    error
	)
	switch mode {
	case models.ModeQuick:
		report, citations, tokens, runErr = o.runQuick(ctx, sessionID, query)
	case models.ModeStandard:
		report, citations, tokens, runErr = o.runStandard(ctx, sessionID, query)
	default:
		runErr = fmt.Errorf("unsupported mode %q", mode)
	}

	latencyMs := time.Since(start).Milliseconds()
	if runErr != nil {
		o.fail(ctx, sessionID, runErr)
		return StartResult{}, runErr
	}

	if err := o.complete(ctx, sessionID, mode, query, report, citations, tokens, latencyMs); err != nil {
		return StartResult{}, err
	}

	return StartResult{
		SessionID: sessionID,
		Mode:      mode,
		Status:    models.StatusCompleted,
		Report:    report,
		Citations: citations,
		Tokens:    tokens,
		LatencyMs: latencyMs,
	}, nil
}

// complete persists the Report, marks the Session completed with its
// aggregate telemetry, and populates the cache — in that order, matching
// the ordering guarantee that the terminal update follows the last write.
func (o *Orchestrator) complete(ctx context.Context, sessionID string, mode models.Mode, query, report string, citations []models.Citation, tokens models.Tokens, latencyMs int64) error {
	if err := o.store.WriteReport(ctx, sessionID, report, citations); err != nil {
		o.fail(ctx, sessionID, err)
		return fmt.Errorf("write report: %w", err)
	}
	if err := o.store.CompleteSession(ctx, sessionID, latencyMs, tokens.Total); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}

	o.cache.Set(cache.Fingerprint(query, mode), cache.Result{
		Report:    report,
		Citations: citations,
		Tokens:    tokens,
		LatencyMs: latencyMs,
	}, cache.TTLs(mode))

	return nil
}

// fail marks sessionID failed and appends an ErrorEntry, best-effort: a
// failure here is logged but never propagated, since the caller is
// already unwinding from runErr.
func (o *Orchestrator) fail(ctx context.Context, sessionID string, cause error) {
	msg := cause.Error()
	o.store.LogError(ctx, &sessionID, msg, "")
	if err := o.store.FailSession(ctx, sessionID); err != nil {
		o.logger.Error("failed to mark session failed",
			logging.Fields{}.Component("orchestrator").Session(sessionID).Err(err).Slice()...)
	}
}

// markRunning registers sessionID as actively executing its Deep
// pipeline, returning false if it is already running — guarding against
// two concurrent stream connections driving the same session twice.
func (o *Orchestrator) markRunning(sessionID string) bool {
	o.runningMu.Lock()
	defer o.runningMu.Unlock()
	if _, ok := o.running[sessionID]; ok {
		return false
	}
	o.running[sessionID] = struct{}{}
	return true
}

func (o *Orchestrator) clearRunning(sessionID string) {
	o.runningMu.Lock()
	defer o.runningMu.Unlock()
	delete(o.running, sessionID)
}
