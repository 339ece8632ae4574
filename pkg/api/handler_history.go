package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// listHistoryHandler implements GET /history?limit&offset.
func (s *Server) listHistoryHandler(c *gin.Context) {
	limitStr, limitSet := c.GetQuery("limit")
	limit, _ := strconv.Atoi(limitStr)
	offset, _ := strconv.Atoi(c.Query("offset"))

	limit, offset = paginationDefaults(limit, offset, limitSet)

	sessions, err := s.store.ListHistory(c.Request.Context(), limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	total, err := s.store.CountHistory(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	items := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		items = append(items, sessionToResponse(&sessions[i], nil, nil))
	}

	c.JSON(http.StatusOK, HistoryResponse{Items: items, Total: total, Limit: limit, Offset: offset})
}

// deleteSessionHandler implements DELETE /history/:id.
func (s *Server) deleteSessionHandler(c *gin.Context) {
	id := c.Param("id")
	deleted, err := s.store.DeleteSession(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "session not found"})
		return
	}
	c.JSON(http.StatusOK, DeleteResponse{Deleted: true, ID: id})
}
