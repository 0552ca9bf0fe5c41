package core

import (
	"encoding/json"
	"time"

	"github.com/JonMunkholm/excel-analytics/internal/ingest"
)

// Role is a user's permission level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is an account. PasswordHash never leaves the server.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Avatar       *string    `json:"avatar"`
	IsActive     bool       `json:"isActive"`
	LastLogin    *time.Time `json:"lastLogin"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// ProcessingStatus tracks an upload through ingestion.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// UploadMetadata is the parse context stored with an upload.
type UploadMetadata struct {
	SheetNames    []string                     `json:"sheetNames"`
	SelectedSheet string                       `json:"selectedSheet"`
	DataTypes     map[string]ingest.ColumnType `json:"dataTypes"`
	Warnings      []string                     `json:"warnings,omitempty"`
}

// Upload is a stored workbook and its parsed records. Listings leave Data
// nil so it is omitted from JSON.
type Upload struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	Filename         string           `json:"filename"`
	OriginalName     string           `json:"originalName"`
	FileSize         int64            `json:"fileSize"`
	MimeType         string           `json:"mimeType"`
	UploadPath       string           `json:"-"`
	Columns          []string         `json:"columns"`
	RowCount         int              `json:"rowCount"`
	Data             []ingest.Record  `json:"data,omitempty"`
	ProcessingStatus ProcessingStatus `json:"processingStatus"`
	ProcessingError  *string          `json:"processingError"`
	Metadata         UploadMetadata   `json:"metadata"`
	IsActive         bool             `json:"isActive"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`

	// Owner details, filled by admin listings.
	UserName  string `json:"userName,omitempty"`
	UserEmail string `json:"userEmail,omitempty"`
}

// FileURL is the public path of the stored file.
func (u *Upload) FileURL() string {
	return "/uploads/" + u.Filename
}

// DataPreview is the summary returned by the preview endpoint.
type DataPreview struct {
	Columns    []string        `json:"columns"`
	RowCount   int             `json:"rowCount"`
	SampleData []ingest.Record `json:"sampleData"`
	Metadata   UploadMetadata  `json:"metadata"`
}

// Preview returns the first limit records with the upload's shape.
func (u *Upload) Preview(limit int) DataPreview {
	if limit <= 0 {
		limit = DefaultPreviewRows
	}
	sample := u.Data
	if len(sample) > limit {
		sample = sample[:limit]
	}
	if sample == nil {
		sample = []ingest.Record{}
	}
	return DataPreview{
		Columns:    u.Columns,
		RowCount:   u.RowCount,
		SampleData: sample,
		Metadata:   u.Metadata,
	}
}

// ChartType is one of the renderable chart kinds.
type ChartType string

const (
	ChartBar       ChartType = "bar"
	ChartLine      ChartType = "line"
	ChartPie       ChartType = "pie"
	ChartScatter   ChartType = "scatter"
	Chart3DBar     ChartType = "3d-bar"
	Chart3DScatter ChartType = "3d-scatter"
)

// ChartTypes lists every accepted ChartType.
var ChartTypes = []ChartType{ChartBar, ChartLine, ChartPie, ChartScatter, Chart3DBar, Chart3DScatter}

// Valid reports whether t is a known chart type.
func (t ChartType) Valid() bool {
	for _, ct := range ChartTypes {
		if t == ct {
			return true
		}
	}
	return false
}

// MaxChartTitle is the longest accepted chart title, in characters.
const MaxChartTitle = 100

// Customization holds presentation overrides for a chart.
type Customization struct {
	Colors     []string `json:"colors"`
	FontSize   *int     `json:"fontSize,omitempty"`
	ShowLegend bool     `json:"showLegend"`
	ShowGrid   bool     `json:"showGrid"`
	Animation  bool     `json:"animation"`
}

// DefaultCustomization is applied to new charts.
func DefaultCustomization() Customization {
	return Customization{Colors: []string{}, ShowLegend: true, ShowGrid: true, Animation: true}
}

// Chart is a saved chart configuration. Config and ChartData are opaque to
// the server apart from the default data derivation.
type Chart struct {
	ID            string          `json:"id"`
	UploadID      string          `json:"uploadId"`
	UserID        string          `json:"userId"`
	Title         string          `json:"title"`
	ChartType     ChartType       `json:"chartType"`
	XAxis         string          `json:"xAxis"`
	YAxis         string          `json:"yAxis"`
	Config        json.RawMessage `json:"config"`
	ChartData     json.RawMessage `json:"chartData"`
	Thumbnail     *string         `json:"thumbnail"`
	Customization Customization   `json:"customization"`
	IsPublic      bool            `json:"isPublic"`
	Tags          []string        `json:"tags"`
	DownloadCount int             `json:"downloadCount"`
	IsActive      bool            `json:"isActive"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`

	// Joined details, filled by listings.
	UploadName string `json:"uploadName,omitempty"`
	UserName   string `json:"userName,omitempty"`
	UserEmail  string `json:"userEmail,omitempty"`
}

// ResourceType is what an activity entry refers to.
type ResourceType string

const (
	ResourceUser   ResourceType = "user"
	ResourceUpload ResourceType = "upload"
	ResourceChart  ResourceType = "chart"
	ResourceSystem ResourceType = "system"
)

// Activity is one entry of the user activity log.
type Activity struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	Action       Action         `json:"action"`
	ResourceType ResourceType   `json:"resourceType"`
	ResourceID   *string        `json:"resourceId"`
	Metadata     map[string]any `json:"metadata"`
	IPAddress    *string        `json:"ipAddress"`
	UserAgent    *string        `json:"userAgent"`
	Timestamp    time.Time      `json:"timestamp"`

	// Actor details, filled by the admin feed.
	UserName  string `json:"userName,omitempty"`
	UserEmail string `json:"userEmail,omitempty"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
	HasNext bool  `json:"hasNext"`
	HasPrev bool  `json:"hasPrev"`
}

// Page selects a slice of a listing. Zero values mean the defaults.
type Page struct {
	Page  int
	Limit int
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Normalize fills defaults and clamps the limit.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// NewPagination describes page p of a listing with total rows.
func NewPagination(p Page, total int64) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Pagination{
		Page:    p.Page,
		Limit:   p.Limit,
		Total:   total,
		Pages:   pages,
		HasNext: p.Page < pages,
		HasPrev: p.Page > 1,
	}
}
