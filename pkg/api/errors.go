package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codeready-toolchain/deepresearch/pkg/database"
)

// writeError maps err to the uniform error response shape from spec §7
// and writes it, logging server-side failures (but never their stack, to
// the client).
func (s *Server) writeError(c *gin.Context, err error) {
	status, body := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
		s.store.LogError(c.Request.Context(), nil, err.Error(), "")
	}
	c.JSON(status, body)
}

// mapError classifies err against the service's error taxonomy: a
// *ValidationIssue maps to 400, database.ErrSessionNotFound to 404, and
// anything else to 500.
func mapError(err error) (int, ErrorResponse) {
	var validationErr *ValidationIssue
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: validationErr.Message}
	}

	if errors.Is(err, database.ErrSessionNotFound) {
		return http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "session not found"}
	}

	return http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "an internal error occurred"}
}
