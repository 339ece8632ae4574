package api

import "github.com/codeready-toolchain/deepresearch/pkg/models"

func sessionToResponse(sess *models.Session, report *models.Report, phases []models.Phase) SessionResponse {
	resp := SessionResponse{
		ID:             sess.ID,
		Query:          sess.Query,
		Mode:           sess.Mode,
		Status:         sess.Status,
		TotalLatencyMs: sess.TotalLatencyMs,
		TotalTokens:    sess.TotalTokens,
		CreatedAt:      sess.CreatedAt,
	}
	if report != nil {
		resp.Report = report.Content
		resp.Citations = report.Citations
	}
	for _, p := range phases {
		resp.Phases = append(resp.Phases, PhaseResponse{
			Name:       p.Name,
			DurationMs: p.DurationMs,
			TokensUsed: p.TokensUsed,
			Metadata:   p.Metadata,
		})
	}
	return resp
}
