package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/excel-analytics/internal/auth"
)

// BulkKind is the resource a bulk delete targets.
type BulkKind string

const (
	BulkUsers   BulkKind = "users"
	BulkUploads BulkKind = "uploads"
	BulkCharts  BulkKind = "charts"
)

// Valid reports whether k is a known bulk delete target.
func (k BulkKind) Valid() bool {
	return k == BulkUsers || k == BulkUploads || k == BulkCharts
}

// statsConcurrency caps the per-user lookups of one listing page.
const statsConcurrency = 8

// AccountStats are the per-user counters shown in the admin listing.
type AccountStats struct {
	TotalUploads int64      `json:"totalUploads"`
	TotalCharts  int64      `json:"totalCharts"`
	LastActivity *time.Time `json:"lastActivity"`
	LastAction   *Action    `json:"lastAction"`
}

// AccountSummary is a user with their counters.
type AccountSummary struct {
	User
	Stats AccountStats `json:"stats"`
}

// AccountRecent is the recent work of one user.
type AccountRecent struct {
	Uploads     []Upload   `json:"uploads"`
	Charts      []Chart    `json:"charts"`
	ActivityLog []Activity `json:"activityLog"`
}

// AccountDetail is the admin view of a single user.
type AccountDetail struct {
	AccountSummary
	RecentActivity AccountRecent `json:"recentActivity"`
}

// AccountUpdate changes a user on behalf of an admin. Nil fields are left
// alone.
type AccountUpdate struct {
	Name     *string
	Email    *string
	Role     *Role
	IsActive *bool
}

// ListUsers returns one page of users matching f, each with counters.
func (s *Service) ListUsers(ctx context.Context, f UserFilter) ([]AccountSummary, Pagination, error) {
	f.Page = f.Page.Normalize()
	f.Search = strings.TrimSpace(f.Search)
	users, total, err := s.store.ListUsers(ctx, f)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list users: %w", err)
	}

	out := make([]AccountSummary, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statsConcurrency)
	for i := range users {
		out[i].User = users[i]
		g.Go(func() error {
			st, err := s.accountStats(gctx, users[i].ID)
			out[i].Stats = st
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Pagination{}, err
	}
	return out, NewPagination(f.Page, total), nil
}

func (s *Service) accountStats(ctx context.Context, userID string) (AccountStats, error) {
	var st AccountStats
	var err error
	if st.TotalUploads, err = s.store.CountUploads(ctx, userID); err != nil {
		return st, err
	}
	if st.TotalCharts, err = s.store.CountCharts(ctx, userID); err != nil {
		return st, err
	}
	last, err := s.store.RecentActivity(ctx, userID, 1)
	if err != nil {
		return st, err
	}
	if len(last) > 0 {
		st.LastActivity = &last[0].Timestamp
		st.LastAction = &last[0].Action
	}
	return st, nil
}

// GetUserDetail returns a user with counters and their latest uploads,
// charts and activity.
func (s *Service) GetUserDetail(ctx context.Context, id string) (*AccountDetail, error) {
	u, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}

	d := &AccountDetail{AccountSummary: AccountSummary{User: *u}}
	recent := Page{Page: 1, Limit: 5}
	byNewest := Sort{By: "createdAt", Desc: true}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Stats.TotalUploads, err = s.store.CountUploads(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		d.Stats.TotalCharts, err = s.store.CountCharts(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		d.RecentActivity.Uploads, _, err = s.store.ListUploads(gctx, UploadFilter{UserID: id, Sort: byNewest, Page: recent})
		return err
	})
	g.Go(func() (err error) {
		d.RecentActivity.Charts, _, err = s.store.ListCharts(gctx, ChartFilter{UserID: id, Sort: byNewest, Page: recent})
		return err
	})
	g.Go(func() (err error) {
		d.RecentActivity.ActivityLog, err = s.store.RecentActivity(gctx, id, DefaultActivityLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(d.RecentActivity.ActivityLog) > 0 {
		d.Stats.LastActivity = &d.RecentActivity.ActivityLog[0].Timestamp
		d.Stats.LastAction = &d.RecentActivity.ActivityLog[0].Action
	}
	return d, nil
}

// UpdateUser changes another user's account.
func (s *Service) UpdateUser(ctx context.Context, actorID, id string, in AccountUpdate) (*User, error) {
	u, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}

	var fields []string
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		u.Name = name
		fields = append(fields, "name")
	}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if email != u.Email {
			if err := s.ensureEmailFree(ctx, email); err != nil {
				return nil, err
			}
			u.Email = email
		}
		fields = append(fields, "email")
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidRequest, *in.Role)
		}
		u.Role = *in.Role
		fields = append(fields, "role")
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
		fields = append(fields, "isActive")
	}

	u.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logActivity(ctx, activityParams{
		UserID:       actorID,
		Action:       ActionAdminUpdateUser,
		ResourceType: ResourceUser,
		ResourceID:   id,
		Metadata:     map[string]any{"updatedFields": fields},
	})
	s.invalidateAnalytics(ctx)
	return u, nil
}

// DeleteUser deactivates a user along with their uploads and charts.
// Stored files are left for the retention job.
func (s *Service) DeleteUser(ctx context.Context, actorID, id string) error {
	u, err := s.Profile(ctx, id)
	if err != nil {
		return err
	}
	if u.ID == actorID {
		return ErrSelfDelete
	}

	if _, err := s.deactivateUsers(ctx, []string{id}); err != nil {
		return err
	}

	s.logActivity(ctx, activityParams{
		UserID:       actorID,
		Action:       ActionAdminDeleteUser,
		ResourceType: ResourceUser,
		ResourceID:   id,
		Metadata: map[string]any{
			"deletedUser": map[string]any{"name": u.Name, "email": u.Email},
		},
	})
	s.invalidateAnalytics(ctx)
	return nil
}

// deactivateUsers soft-deletes users and cascades to their data. It
// returns the number of users changed.
func (s *Service) deactivateUsers(ctx context.Context, ids []string) (int64, error) {
	n, err := s.store.DeactivateUsers(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("deactivate users: %w", err)
	}
	return n, nil
}

// ListAllUploads returns one page of active uploads across all users.
func (s *Service) ListAllUploads(ctx context.Context, f UploadFilter) ([]Upload, Pagination, error) {
	f.Page = f.Page.Normalize()
	f.Search = strings.TrimSpace(f.Search)
	uploads, total, err := s.store.ListUploads(ctx, f)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list uploads: %w", err)
	}
	return uploads, NewPagination(f.Page, total), nil
}

// ListAllCharts returns one page of active charts across all users.
func (s *Service) ListAllCharts(ctx context.Context, f ChartFilter) ([]Chart, Pagination, error) {
	f.Page = f.Page.Normalize()
	f.Search = strings.TrimSpace(f.Search)
	charts, total, err := s.store.ListCharts(ctx, f)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list charts: %w", err)
	}
	return charts, NewPagination(f.Page, total), nil
}

// BulkDelete soft-deletes many resources of one kind and returns how many
// changed. The acting admin is never deleted.
func (s *Service) BulkDelete(ctx context.Context, actorID string, kind BulkKind, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no ids given", ErrInvalidRequest)
	}
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: invalid bulk delete type %q", ErrInvalidRequest, kind)
	}

	var (
		n   int64
		err error
	)
	switch kind {
	case BulkUsers:
		targets := slices.DeleteFunc(slices.Clone(ids), func(id string) bool { return id == actorID })
		if len(targets) > 0 {
			n, err = s.deactivateUsers(ctx, targets)
		}
	case BulkUploads:
		n, err = s.store.SetUploadsActive(ctx, ids, false)
	case BulkCharts:
		n, err = s.store.SetChartsActive(ctx, ids, false)
	}
	if err != nil {
		return n, fmt.Errorf("bulk delete %s: %w", kind, err)
	}

	s.logActivity(ctx, activityParams{
		UserID:       actorID,
		Action:       BulkDeleteAction(kind),
		ResourceType: ResourceSystem,
		Metadata:     map[string]any{"deletedCount": n, "ids": ids},
	})
	s.invalidateAnalytics(ctx)
	return n, nil
}

// AdminProfile returns the signed-in admin.
func (s *Service) AdminProfile(ctx context.Context, id string) (*User, error) {
	u, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != RoleAdmin {
		return nil, ErrForbidden
	}
	return u, nil
}

// SeedAdmin creates an active admin account, or promotes and reactivates the
// account that already owns email and resets its password. It reports
// whether a new account was created.
func (s *Service) SeedAdmin(ctx context.Context, name, email, password string) (*User, bool, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if err := validateName(name); err != nil {
		return nil, false, err
	}
	if err := validatePassword(password); err != nil {
		return nil, false, err
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	u, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		u = &User{Name: name, Email: email, CreatedAt: now}
	case err != nil:
		return nil, false, err
	}
	created := u.ID == ""
	u.PasswordHash = hash
	u.Role = RoleAdmin
	u.IsActive = true
	u.UpdatedAt = now

	if created {
		err = s.store.CreateUser(ctx, u)
	} else {
		err = s.store.UpdateUser(ctx, u)
	}
	if err != nil {
		return nil, false, fmt.Errorf("seed admin: %w", err)
	}
	s.invalidateAnalytics(ctx)
	return u, created, nil
}
