package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/excel-analytics/internal/core"
)

type updateUserRequest struct {
	Name     *string    `json:"name" validate:"omitempty,min=2,max=50"`
	Email    *string    `json:"email" validate:"omitempty,email"`
	Role     *core.Role `json:"role" validate:"omitempty,oneof=user admin"`
	IsActive *bool      `json:"isActive"`
}

type bulkDeleteRequest struct {
	Type string   `json:"type" validate:"required,oneof=users uploads charts"`
	IDs  []string `json:"ids" validate:"required,min=1,dive,required"`
}

type adminUserListResponse struct {
	Success    bool                  `json:"success"`
	Users      []core.AccountSummary `json:"users"`
	Pagination core.Pagination       `json:"pagination"`
}

func (s *Server) handleAdminProfile(w http.ResponseWriter, r *http.Request) {
	u, err := s.service.AdminProfile(r.Context(), currentUser(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool       `json:"success"`
		Admin   *core.User `json:"admin"`
	}{true, u})
}

// handleListUsers supports ?search=, ?role=, ?status=active|inactive and
// the usual paging and sorting parameters.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := core.UserFilter{
		Search: q.Get("search"),
		Sort:   parseSort(r, core.UserSortColumns),
		Page:   parsePage(r),
	}
	if role := core.Role(q.Get("role")); role.Valid() {
		f.Role = role
	}
	switch q.Get("status") {
	case "active":
		active := true
		f.Active = &active
	case "inactive":
		active := false
		f.Active = &active
	}

	users, page, err := s.service.ListUsers(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adminUserListResponse{Success: true, Users: users, Pagination: page})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	d, err := s.service.GetUserDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool                `json:"success"`
		User    *core.AccountDetail `json:"user"`
	}{true, d})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	u, err := s.service.UpdateUser(ctx, currentUser(r).ID, chi.URLParam(r, "id"), core.AccountUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Success: true, Message: "User updated successfully", User: u})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := WithRequestMetadata(r.Context(), r)
	if err := s.service.DeleteUser(ctx, currentUser(r).ID, chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok("User deleted successfully"))
}

// handleAnalytics serves the dashboard for ?timeRange=7d|30d|90d|1y.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := s.service.Analytics(r.Context(), core.ParseTimeRange(r.URL.Query().Get("timeRange")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*core.Analytics
	}{true, a})
}

func (s *Server) handleAdminUploads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	uploads, page, err := s.service.ListAllUploads(r.Context(), core.UploadFilter{
		Search: q.Get("search"),
		Status: core.ProcessingStatus(q.Get("status")),
		Sort:   parseSort(r, core.UploadSortColumns),
		Page:   parsePage(r),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadListResponse{Success: true, Uploads: uploads, Pagination: page})
}

func (s *Server) handleAdminCharts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := core.ChartFilter{
		Search: q.Get("search"),
		Sort:   parseSort(r, core.ChartSortColumns),
		Page:   parsePage(r),
	}
	if t := core.ChartType(q.Get("chartType")); t.Valid() {
		f.ChartType = t
	}

	charts, page, err := s.service.ListAllCharts(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chartListResponse{Success: true, Charts: charts, Pagination: page})
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	n, err := s.service.BulkDelete(ctx, currentUser(r).ID, core.BulkKind(req.Type), req.IDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success      bool   `json:"success"`
		Message      string `json:"message"`
		DeletedCount int64  `json:"deletedCount"`
	}{true, fmt.Sprintf("%d %s deleted successfully", n, req.Type), n})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Success  bool          `json:"success"`
		Settings core.Settings `json:"settings"`
	}{true, s.service.Settings()})
}

// handleUpdateSettings merges a partial settings document, either bare or
// wrapped as {"settings": {...}}.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var wrapped struct {
		Settings json.RawMessage `json:"settings"`
	}
	if json.Unmarshal(raw, &wrapped) == nil && len(wrapped.Settings) > 0 {
		raw = wrapped.Settings
	}

	ctx := WithRequestMetadata(r.Context(), r)
	settings, err := s.service.UpdateSettings(ctx, currentUser(r).ID, raw)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success  bool          `json:"success"`
		Message  string        `json:"message"`
		Settings core.Settings `json:"settings"`
	}{true, "Settings updated successfully", settings})
}
