package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/excel-analytics/internal/core"
)

type customizationRequest struct {
	Colors     []string `json:"colors" validate:"omitempty,dive,max=32"`
	FontSize   *int     `json:"fontSize" validate:"omitempty,min=6,max=72"`
	ShowLegend *bool    `json:"showLegend"`
	ShowGrid   *bool    `json:"showGrid"`
	Animation  *bool    `json:"animation"`
}

// apply overlays the request on base.
func (c *customizationRequest) apply(base core.Customization) *core.Customization {
	if c == nil {
		return nil
	}
	if c.Colors != nil {
		base.Colors = c.Colors
	}
	if c.FontSize != nil {
		base.FontSize = c.FontSize
	}
	if c.ShowLegend != nil {
		base.ShowLegend = *c.ShowLegend
	}
	if c.ShowGrid != nil {
		base.ShowGrid = *c.ShowGrid
	}
	if c.Animation != nil {
		base.Animation = *c.Animation
	}
	return &base
}

type generateChartRequest struct {
	UploadID      string                `json:"uploadId" validate:"required"`
	Title         string                `json:"title" validate:"max=100"`
	ChartType     core.ChartType        `json:"chartType"`
	XAxis         string                `json:"xAxis" validate:"required"`
	YAxis         string                `json:"yAxis" validate:"required"`
	Config        json.RawMessage       `json:"config"`
	Customization *customizationRequest `json:"customization"`
	Tags          []string              `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	IsPublic      bool                  `json:"isPublic"`
}

type updateChartRequest struct {
	Title         *string               `json:"title" validate:"omitempty,max=100"`
	ChartType     *core.ChartType       `json:"chartType"`
	XAxis         *string               `json:"xAxis"`
	YAxis         *string               `json:"yAxis"`
	Config        json.RawMessage       `json:"config"`
	Thumbnail     *string               `json:"thumbnail"`
	Customization *customizationRequest `json:"customization"`
	Tags          []string              `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	IsPublic      *bool                 `json:"isPublic"`
}

type chartResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Chart   *core.Chart `json:"chart"`
}

type chartListResponse struct {
	Success    bool            `json:"success"`
	Charts     []core.Chart    `json:"charts"`
	Pagination core.Pagination `json:"pagination"`
}

// handleGenerateChart saves a chart over one of the caller's uploads. An
// empty chartType takes the configured default.
func (s *Server) handleGenerateChart(w http.ResponseWriter, r *http.Request) {
	var req generateChartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	c, err := s.service.GenerateChart(ctx, currentUser(r).ID, core.GenerateChartInput{
		UploadID:      req.UploadID,
		Title:         req.Title,
		ChartType:     req.ChartType,
		XAxis:         req.XAxis,
		YAxis:         req.YAxis,
		Config:        req.Config,
		Customization: req.Customization.apply(core.DefaultCustomization()),
		Tags:          req.Tags,
		IsPublic:      req.IsPublic,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, chartResponse{Success: true, Message: "Chart generated successfully", Chart: c})
}

func (s *Server) handleUserCharts(w http.ResponseWriter, r *http.Request) {
	charts, page, err := s.service.UserCharts(r.Context(), currentUser(r).ID, parsePage(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chartListResponse{Success: true, Charts: charts, Pagination: page})
}

func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	c, err := s.service.GetChart(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chartResponse{Success: true, Chart: c})
}

// handleUpdateChart applies a partial update. Customization fields are
// merged onto the chart's current values.
func (s *Server) handleUpdateChart(w http.ResponseWriter, r *http.Request) {
	var req updateChartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	userID := currentUser(r).ID
	id := chi.URLParam(r, "id")
	in := core.ChartUpdate{
		Title:     req.Title,
		ChartType: req.ChartType,
		XAxis:     req.XAxis,
		YAxis:     req.YAxis,
		Config:    req.Config,
		Thumbnail: req.Thumbnail,
		Tags:      req.Tags,
		IsPublic:  req.IsPublic,
	}
	if req.Customization != nil {
		current, err := s.service.GetChart(r.Context(), userID, id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		in.Customization = req.Customization.apply(current.Customization)
	}

	ctx := WithRequestMetadata(r.Context(), r)
	c, err := s.service.UpdateChart(ctx, userID, id, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chartResponse{Success: true, Message: "Chart updated successfully", Chart: c})
}

func (s *Server) handleDeleteChart(w http.ResponseWriter, r *http.Request) {
	ctx := WithRequestMetadata(r.Context(), r)
	if err := s.service.DeleteChart(ctx, currentUser(r).ID, chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok("Chart deleted successfully"))
}

// handleDownloadChart counts a download. Rendering the image happens in
// the browser.
func (s *Server) handleDownloadChart(w http.ResponseWriter, r *http.Request) {
	ctx := WithRequestMetadata(r.Context(), r)
	c, err := s.service.DownloadChart(ctx, currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chartResponse{Success: true, Message: "Chart download initiated", Chart: c})
}
