package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codeready-toolchain/deepresearch/pkg/models"
	"github.com/codeready-toolchain/deepresearch/pkg/orchestrator"
)

// submitResearchHandler implements POST /research: validate, consult
// cache, either run quick/standard to completion or create a Deep session
// in status "running".
func (s *Server) submitResearchHandler(c *gin.Context) {
	var req StartResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, &ValidationIssue{Message: "request body must be valid JSON"})
		return
	}

	query, mode, issue := req.Validate()
	if issue != nil {
		s.writeError(c, issue)
		return
	}

	result, err := s.orchestrator.Start(c.Request.Context(), query, mode)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := StartResearchResponse{
		SessionID: result.SessionID,
		Mode:      result.Mode,
		FromCache: result.FromCache,
	}
	if result.Mode == models.ModeDeep && !result.FromCache {
		resp.Status = result.Status
		c.JSON(http.StatusOK, resp)
		return
	}

	resp.Report = result.Report
	resp.Citations = result.Citations
	tokens := result.Tokens
	resp.Tokens = &tokens
	c.JSON(http.StatusOK, resp)
}

// getSessionHandler implements GET /research/:id: session snapshot plus
// report (if any) and phases.
func (s *Server) getSessionHandler(c *gin.Context) {
	id := c.Param("id")
	sess, report, err := s.store.GetSessionWithReport(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	phases, err := s.store.ListPhases(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionToResponse(sess, report, phases))
}

// streamSessionHandler implements GET /research/:id/stream: SSE progress
// for a running Deep session, or an immediate JSON snapshot for a
// session that has already reached a terminal state or is not a Deep
// session.
func (s *Server) streamSessionHandler(c *gin.Context) {
	id := c.Param("id")
	sess, report, err := s.store.GetSessionWithReport(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if sess.Status.Terminal() || sess.Mode != models.ModeDeep {
		phases, err := s.store.ListPhases(c.Request.Context(), id)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, sessionToResponse(sess, report, phases))
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		s.writeError(c, errInternal("streaming not supported"))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	err = s.orchestrator.RunDeep(c.Request.Context(), id, sess.Query, func(ev orchestrator.Event) {
		writeSSEEvent(c.Writer, flusher, ev)
	})
	if err != nil && err != orchestrator.ErrAlreadyRunning {
		s.logger.Warn("deep pipeline ended with error", zap.Error(err))
	}
}

func errInternal(message string) error {
	return &internalError{message}
}

type internalError struct{ message string }

func (e *internalError) Error() string { return e.message }
