package core

import (
	"context"
	"time"
)

// UserStore persists accounts. Lookups return ErrNotFound for unknown IDs.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
	// DeactivateUsers soft-deletes users and their uploads and charts
	// atomically, returning the number of users changed.
	DeactivateUsers(ctx context.Context, ids []string) (int64, error)
	ListUsers(ctx context.Context, f UserFilter) ([]User, int64, error)
	CountUsers(ctx context.Context, f UserCount) (int64, error)
	UserGrowth(ctx context.Context, since time.Time) ([]DailyCount, error)
}

// UploadStore persists uploads.
type UploadStore interface {
	CreateUpload(ctx context.Context, u *Upload) error
	// GetUpload returns the full record, records included, active or not.
	GetUpload(ctx context.Context, id string) (*Upload, error)
	UpdateUpload(ctx context.Context, u *Upload) error
	// ListUploads never loads records.
	ListUploads(ctx context.Context, f UploadFilter) ([]Upload, int64, error)
	SetUploadsActive(ctx context.Context, ids []string, active bool) (int64, error)
	// CountUploads counts active uploads; an empty userID means all users.
	CountUploads(ctx context.Context, userID string) (int64, error)
	StorageUsed(ctx context.Context) (int64, error)
	UploadStats(ctx context.Context, since time.Time) ([]DailyCount, error)
	// OrphanedFiles returns inactive uploads whose file is still on disk.
	OrphanedFiles(ctx context.Context, limit int) ([]Upload, error)
	ClearUploadPath(ctx context.Context, id string) error
}

// ChartStore persists charts.
type ChartStore interface {
	CreateChart(ctx context.Context, c *Chart) error
	GetChart(ctx context.Context, id string) (*Chart, error)
	UpdateChart(ctx context.Context, c *Chart) error
	IncrementDownloads(ctx context.Context, id string) (int, error)
	ListCharts(ctx context.Context, f ChartFilter) ([]Chart, int64, error)
	SetChartsActive(ctx context.Context, ids []string, active bool) (int64, error)
	// CountCharts counts active charts; an empty userID means all users.
	CountCharts(ctx context.Context, userID string) (int64, error)
	ChartTypeDistribution(ctx context.Context) ([]TypeCount, error)
}

// ActivityStore persists the activity log.
type ActivityStore interface {
	RecordActivity(ctx context.Context, a *Activity) error
	// RecentActivity lists the newest entries; an empty userID means all users.
	RecentActivity(ctx context.Context, userID string, limit int) ([]Activity, error)
	ActivitySummary(ctx context.Context, userID string, since time.Time) ([]ActionSummary, error)
	TopUsers(ctx context.Context, since time.Time, limit int) ([]TopUser, error)
	PurgeActivity(ctx context.Context, before time.Time) (int64, error)
}

// Store bundles the four stores.
type Store interface {
	UserStore
	UploadStore
	ChartStore
	ActivityStore
}

// Sort orders a listing by a whitelisted column.
type Sort struct {
	By   string
	Desc bool
}

// UserFilter selects users for the admin listing.
type UserFilter struct {
	Search string // name or email, case-insensitive
	Role   Role
	Active *bool
	Sort   Sort
	Page   Page
}

// UserCount selects users to count. Zero fields do not filter.
type UserCount struct {
	ActiveOnly    bool
	LoggedInSince time.Time
	CreatedSince  time.Time
}

// UploadFilter selects uploads. An empty UserID spans all users.
type UploadFilter struct {
	UserID string
	Search string // original name, case-insensitive
	Status ProcessingStatus
	Sort   Sort
	Page   Page
}

// ChartFilter selects charts. An empty UserID spans all users.
type ChartFilter struct {
	UserID    string
	Search    string // title, case-insensitive
	ChartType ChartType
	Sort      Sort
	Page      Page
}

// DailyCount is one day of a growth series.
type DailyCount struct {
	Date      string `json:"date"` // YYYY-MM-DD
	Count     int64  `json:"count"`
	TotalSize int64  `json:"totalSize,omitempty"`
}

// TypeCount is one bucket of the chart type distribution.
type TypeCount struct {
	ChartType ChartType `json:"chartType"`
	Count     int64     `json:"count"`
}

// ActionSummary aggregates one action over a window.
type ActionSummary struct {
	Action       Action    `json:"action"`
	Count        int64     `json:"count"`
	LastActivity time.Time `json:"lastActivity"`
}

// TopUser ranks an active user by activity volume.
type TopUser struct {
	UserID        string    `json:"userId"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	ActivityCount int64     `json:"activityCount"`
	LastActivity  time.Time `json:"lastActivity"`
}

// Sortable columns per listing. The first entry is the default.
var (
	UserSortColumns   = []string{"createdAt", "name", "email", "role", "lastLogin", "updatedAt"}
	UploadSortColumns = []string{"createdAt", "originalName", "fileSize", "rowCount", "updatedAt"}
	ChartSortColumns  = []string{"createdAt", "title", "chartType", "downloadCount", "updatedAt"}
)

// NewSort validates by against allowed, falling back to the first entry.
// Only "asc" sorts ascending.
func NewSort(by, order string, allowed []string) Sort {
	s := Sort{By: allowed[0], Desc: order != "asc"}
	for _, col := range allowed {
		if col == by {
			s.By = by
			break
		}
	}
	return s
}

// Order renders the sort direction.
func (s Sort) Order() string {
	if s.Desc {
		return "desc"
	}
	return "asc"
}
