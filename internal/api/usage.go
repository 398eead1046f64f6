package api

import (
	"net/http"
	"time"

	"github.com/nugget/localagent/internal/usage"
)

// maxUsageDays bounds the ?days= window of GET /v1/usage.
const maxUsageDays = 365

// UsageReport is the body of GET /v1/usage.
type UsageReport struct {
	Days      int                       `json:"days"`
	Total     *usage.Summary            `json:"total"`
	ByModel   map[string]*usage.Summary `json:"by_model"`
	BySession map[string]*usage.Summary `json:"by_session"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Usage == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "usage tracking is not enabled")
		return
	}

	days := min(parseIntParam(r, "days", 7), maxUsageDays)
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	total, err := s.deps.Usage.Summary(r.Context(), start, end)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	byModel, err := s.deps.Usage.SummaryByModel(r.Context(), start, end)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	bySession, err := s.deps.Usage.SummaryBySession(r.Context(), start, end)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, UsageReport{
		Days:      days,
		Total:     total,
		ByModel:   byModel,
		BySession: bySession,
	})
}
