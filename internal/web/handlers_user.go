package web

import (
	"net/http"

	"github.com/JonMunkholm/excel-analytics/internal/core"
)

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context(), currentUser(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool            `json:"success"`
		Stats   *core.UserStats `json:"stats"`
	}{true, stats})
}

// handleUserActivity returns the caller's latest entries (?limit=) and the
// per-action summary over the last ?days= days.
func (s *Server) handleUserActivity(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r).ID
	days := parseIntParam(r, "days", core.DefaultSummaryDays)

	recent, err := s.service.RecentActivity(r.Context(), userID, parseIntParam(r, "limit", core.DefaultActivityLimit))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	summary, err := s.service.ActivitySummary(r.Context(), userID, days)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success  bool                 `json:"success"`
		Days     int                  `json:"days"`
		Activity []core.Activity      `json:"activity"`
		Summary  []core.ActionSummary `json:"summary"`
	}{true, days, recent, summary})
}
