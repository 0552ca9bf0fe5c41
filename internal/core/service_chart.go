package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// GenerateChartInput is a new chart request.
type GenerateChartInput struct {
	UploadID      string
	Title         string
	ChartType     ChartType
	XAxis         string
	YAxis         string
	Config        json.RawMessage
	Customization *Customization
	Tags          []string
	IsPublic      bool
}

// ChartUpdate changes a chart. Nil fields are left alone.
type ChartUpdate struct {
	Title         *string
	ChartType     *ChartType
	XAxis         *string
	YAxis         *string
	Config        json.RawMessage
	Thumbnail     *string
	Customization *Customization
	Tags          []string
	IsPublic      *bool
}

func invalidChart(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidChart, fmt.Sprintf(format, args...))
}

func validateTitle(title string) error {
	if utf8.RuneCountInString(title) > MaxChartTitle {
		return invalidChart("title cannot exceed %d characters", MaxChartTitle)
	}
	return nil
}

func validateAxis(name, axis string, columns []string) error {
	if axis == "" {
		return invalidChart("%s is required", name)
	}
	if !slices.Contains(columns, axis) {
		return invalidChart("%s %q is not a column of the upload", name, axis)
	}
	return nil
}

// GenerateChart saves a chart over one of the user's active uploads. When
// the config carries no data, chart data is derived from the upload.
func (s *Service) GenerateChart(ctx context.Context, userID string, in GenerateChartInput) (*Chart, error) {
	up, err := s.GetUpload(ctx, userID, in.UploadID)
	if err != nil {
		return nil, err
	}

	chartType := in.ChartType
	if chartType == "" {
		chartType = s.defaultChartType()
	}
	if !chartType.Valid() {
		return nil, invalidChart("unknown chart type %q", chartType)
	}
	if err := validateAxis("xAxis", in.XAxis, up.Columns); err != nil {
		return nil, err
	}
	if err := validateAxis("yAxis", in.YAxis, up.Columns); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = in.YAxis + " by " + in.XAxis
	}
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	cfg, err := parseChartConfig(in.Config)
	if err != nil {
		return nil, invalidChart("config must be an object")
	}
	if cfg.Data == nil {
		derived, err := json.Marshal(DeriveChartData(up.Data, in.XAxis, in.YAxis))
		if err != nil {
			return nil, fmt.Errorf("encode chart data: %w", err)
		}
		cfg.Data = derived
	}
	config, err := cfg.encode()
	if err != nil {
		return nil, fmt.Errorf("encode chart config: %w", err)
	}

	custom := DefaultCustomization()
	if in.Customization != nil {
		custom = *in.Customization
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	now := s.now()
	c := &Chart{
		UploadID:      up.ID,
		UserID:        userID,
		Title:         title,
		ChartType:     chartType,
		XAxis:         in.XAxis,
		YAxis:         in.YAxis,
		Config:        config,
		ChartData:     cfg.Data,
		Customization: custom,
		IsPublic:      in.IsPublic,
		Tags:          tags,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
		UploadName:    up.OriginalName,
	}
	if err := s.store.CreateChart(ctx, c); err != nil {
		return nil, fmt.Errorf("save chart: %w", err)
	}

	s.logActivity(ctx, activityParams{
		UserID:       userID,
		Action:       ActionCreateChart,
		ResourceType: ResourceChart,
		ResourceID:   c.ID,
		Metadata: map[string]any{
			"chartType": chartType,
			"uploadId":  up.ID,
			"title":     title,
		},
	})
	s.invalidateAnalytics(ctx)
	return c, nil
}

// UserCharts lists a user's active charts, newest first.
func (s *Service) UserCharts(ctx context.Context, userID string, p Page) ([]Chart, Pagination, error) {
	p = p.Normalize()
	charts, total, err := s.store.ListCharts(ctx, ChartFilter{
		UserID: userID,
		Sort:   Sort{By: "createdAt", Desc: true},
		Page:   p,
	})
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list charts: %w", err)
	}
	return charts, NewPagination(p, total), nil
}

// GetChart returns one of the user's active charts.
func (s *Service) GetChart(ctx context.Context, userID, id string) (*Chart, error) {
	c, err := s.ownedChart(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, notFound("chart")
	}
	return c, nil
}

func (s *Service) ownedChart(ctx context.Context, userID, id string) (*Chart, error) {
	c, err := s.store.GetChart(ctx, id)
	if errors.Is(err, ErrNotFound) || (err == nil && c.UserID != userID) {
		return nil, notFound("chart")
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateChart applies a partial update to one of the user's active charts.
// Changed axes must still name columns of the chart's upload.
func (s *Service) UpdateChart(ctx context.Context, userID, id string, in ChartUpdate) (*Chart, error) {
	c, err := s.GetChart(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	var fields []string
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, invalidChart("title cannot be empty")
		}
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		c.Title = title
		fields = append(fields, "title")
	}
	if in.ChartType != nil {
		if !in.ChartType.Valid() {
			return nil, invalidChart("unknown chart type %q", *in.ChartType)
		}
		c.ChartType = *in.ChartType
		fields = append(fields, "chartType")
	}
	if in.XAxis != nil || in.YAxis != nil {
		up, err := s.store.GetUpload(ctx, c.UploadID)
		if err != nil {
			return nil, fmt.Errorf("load chart upload: %w", err)
		}
		if in.XAxis != nil {
			if err := validateAxis("xAxis", *in.XAxis, up.Columns); err != nil {
				return nil, err
			}
			c.XAxis = *in.XAxis
			fields = append(fields, "xAxis")
		}
		if in.YAxis != nil {
			if err := validateAxis("yAxis", *in.YAxis, up.Columns); err != nil {
				return nil, err
			}
			c.YAxis = *in.YAxis
			fields = append(fields, "yAxis")
		}
	}
	if in.Config != nil {
		cfg, err := parseChartConfig(in.Config)
		if err != nil {
			return nil, invalidChart("config must be an object")
		}
		if cfg.Data == nil {
			cfg.Data = c.ChartData
		}
		if c.Config, err = cfg.encode(); err != nil {
			return nil, fmt.Errorf("encode chart config: %w", err)
		}
		c.ChartData = cfg.Data
		fields = append(fields, "config")
	}
	if in.Thumbnail != nil {
		c.Thumbnail = in.Thumbnail
		fields = append(fields, "thumbnail")
	}
	if in.Customization != nil {
		c.Customization = *in.Customization
		fields = append(fields, "customization")
	}
	if in.Tags != nil {
		c.Tags = in.Tags
		fields = append(fields, "tags")
	}
	if in.IsPublic != nil {
		c.IsPublic = *in.IsPublic
		fields = append(fields, "isPublic")
	}

	c.UpdatedAt = s.now()
	if err := s.store.UpdateChart(ctx, c); err != nil {
		return nil, fmt.Errorf("update chart: %w", err)
	}

	s.logActivity(ctx, activityParams{
		UserID:       userID,
		Action:       ActionUpdateChart,
		ResourceType: ResourceChart,
		ResourceID:   id,
		Metadata:     map[string]any{"updatedFields": fields},
	})
	if in.ChartType != nil {
		s.invalidateAnalytics(ctx)
	}
	return c, nil
}

// DeleteChart soft-deletes one of the user's charts.
func (s *Service) DeleteChart(ctx context.Context, userID, id string) error {
	c, err := s.ownedChart(ctx, userID, id)
	if err != nil {
		return err
	}
	if _, err := s.store.SetChartsActive(ctx, []string{id}, false); err != nil {
		return fmt.Errorf("delete chart: %w", err)
	}

	s.logActivity(ctx, activityParams{
		UserID:       userID,
		Action:       ActionDeleteChart,
		ResourceType: ResourceChart,
		ResourceID:   id,
		Metadata:     map[string]any{"title": c.Title},
	})
	s.invalidateAnalytics(ctx)
	return nil
}

// DownloadChart counts a download of one of the user's active charts.
func (s *Service) DownloadChart(ctx context.Context, userID, id string) (*Chart, error) {
	c, err := s.GetChart(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	n, err := s.store.IncrementDownloads(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count download: %w", err)
	}
	c.DownloadCount = n

	s.logActivity(ctx, activityParams{
		UserID:       userID,
		Action:       ActionDownloadChart,
		ResourceType: ResourceChart,
		ResourceID:   id,
	})
	return c, nil
}
