package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/excel-analytics/internal/logging"
)

// Action is the kind of activity being recorded.
type Action string

const (
	ActionLogin               Action = "login"
	ActionLogout              Action = "logout"
	ActionRegister            Action = "register"
	ActionUploadFile          Action = "upload_file"
	ActionSelectSheet         Action = "select_sheet"
	ActionCreateChart         Action = "create_chart"
	ActionUpdateChart         Action = "update_chart"
	ActionDownloadChart       Action = "download_chart"
	ActionDeleteUpload        Action = "delete_upload"
	ActionDeleteChart         Action = "delete_chart"
	ActionProfileUpdate       Action = "profile_update"
	ActionAdminLogin          Action = "admin_login"
	ActionAdminUpdateUser     Action = "admin_update_user"
	ActionAdminDeleteUser     Action = "admin_delete_user"
	ActionAdminUpdateSettings Action = "admin_update_settings"
)

// BulkDeleteAction is the action recorded for a bulk delete of kind.
func BulkDeleteAction(kind BulkKind) Action {
	return Action("admin_bulk_delete_" + string(kind))
}

// activityParams describes one entry to record.
type activityParams struct {
	UserID       string
	Action       Action
	ResourceType ResourceType
	ResourceID   string
	Metadata     map[string]any
}

// activityLevel picks the log level an action is mirrored at.
func activityLevel(a Action) slog.Level {
	switch a {
	case ActionAdminDeleteUser, ActionAdminUpdateSettings,
		BulkDeleteAction(BulkUsers), BulkDeleteAction(BulkUploads), BulkDeleteAction(BulkCharts):
		return slog.LevelWarn
	case ActionLogin, ActionLogout:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// logActivity records an activity entry. Failures are logged and swallowed:
// the activity log never fails the operation it describes.
func (s *Service) logActivity(ctx context.Context, p activityParams) {
	a := &Activity{
		UserID:       p.UserID,
		Action:       p.Action,
		ResourceType: p.ResourceType,
		Metadata:     p.Metadata,
		IPAddress:    IPAddressFromContext(ctx),
		UserAgent:    UserAgentFromContext(ctx),
		Timestamp:    s.now(),
	}
	if a.ResourceType == "" {
		a.ResourceType = ResourceSystem
	}
	if p.ResourceID != "" {
		id := p.ResourceID
		a.ResourceID = &id
	}
	if a.Metadata == nil {
		a.Metadata = map[string]any{}
	}

	log := logging.WithFields(ctx, "action", p.Action, "resource_type", a.ResourceType)
	if err := s.store.RecordActivity(ctx, a); err != nil {
		log.Error("failed to record activity", "error", err)
		return
	}
	log.Log(ctx, activityLevel(p.Action), "activity recorded", "resource_id", p.ResourceID)
}

// RecentActivity returns the newest activity entries of a user.
func (s *Service) RecentActivity(ctx context.Context, userID string, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	return s.store.RecentActivity(ctx, userID, limit)
}

// DefaultActivityLimit is how many entries activity feeds show by default.
const DefaultActivityLimit = 10

// DefaultSummaryDays is the default activity summary window.
const DefaultSummaryDays = 30

// ActivitySummary counts a user's actions over the last days days, most
// frequent first.
func (s *Service) ActivitySummary(ctx context.Context, userID string, days int) ([]ActionSummary, error) {
	if days <= 0 {
		days = DefaultSummaryDays
	}
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	return s.store.ActivitySummary(ctx, userID, since)
}
