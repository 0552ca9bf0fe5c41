package core

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// memStore is an in-memory Store for service tests. Sorting honours only
// createdAt; every listing is newest first.
type memStore struct {
	mu         sync.Mutex
	seq        int
	users      map[string]*User
	uploads    map[string]*Upload
	charts     map[string]*Chart
	activities []Activity

	// failActivity makes RecordActivity fail.
	failActivity error
	// failDeactivate makes DeactivateUsers fail without changing anything.
	failDeactivate error
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]*User{},
		uploads: map[string]*Upload{},
		charts:  map[string]*Chart{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return prefix + "-" + strconv.Itoa(m.seq)
}

func page[T any](items []T, p Page) []T {
	p = p.Normalize()
	start := min(p.Offset(), len(items))
	end := min(start+p.Limit, len(items))
	return items[start:end]
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// users

func (m *memStore) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	u.ID = m.nextID("user")
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) GetUser(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) UpdateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) DeactivateUsers(_ context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDeactivate != nil {
		return 0, m.failDeactivate
	}
	var n int64
	for _, id := range ids {
		if u, ok := m.users[id]; ok && u.IsActive {
			u.IsActive = false
			n++
		}
	}
	for _, u := range m.uploads {
		if u.IsActive && slices.Contains(ids, u.UserID) {
			u.IsActive = false
		}
	}
	for _, c := range m.charts {
		if c.IsActive && slices.Contains(ids, c.UserID) {
			c.IsActive = false
		}
	}
	return n, nil
}

func (m *memStore) ListUsers(_ context.Context, f UserFilter) ([]User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []User
	for _, u := range m.users {
		if f.Search != "" && !containsFold(u.Name, f.Search) && !containsFold(u.Email, f.Search) {
			continue
		}
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Active != nil && u.IsActive != *f.Active {
			continue
		}
		out = append(out, *u)
	}
	slices.SortFunc(out, func(a, b User) int { return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID)) })
	return page(out, f.Page), int64(len(out)), nil
}

func (m *memStore) CountUsers(_ context.Context, f UserCount) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.users {
		if f.ActiveOnly && !u.IsActive {
			continue
		}
		if !f.LoggedInSince.IsZero() && (u.LastLogin == nil || u.LastLogin.Before(f.LoggedInSince)) {
			continue
		}
		if !f.CreatedSince.IsZero() && u.CreatedAt.Before(f.CreatedSince) {
			continue
		}
		n++
	}
	return n, nil
}

func (m *memStore) UserGrowth(_ context.Context, since time.Time) ([]DailyCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byDay := map[string]int64{}
	for _, u := range m.users {
		if u.IsActive && !u.CreatedAt.Before(since) {
			byDay[u.CreatedAt.UTC().Format(time.DateOnly)]++
		}
	}
	var out []DailyCount
	for d, n := range byDay {
		out = append(out, DailyCount{Date: d, Count: n})
	}
	slices.SortFunc(out, func(a, b DailyCount) int { return cmp.Compare(a.Date, b.Date) })
	return out, nil
}

// uploads

func (m *memStore) CreateUpload(_ context.Context, u *Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.nextID("upload")
	cp := *u
	m.uploads[u.ID] = &cp
	return nil
}

func (m *memStore) GetUpload(_ context.Context, id string) (*Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) UpdateUpload(_ context.Context, u *Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.uploads[u.ID]; !ok {
		return ErrNotFound
	}
	cp := *u
	m.uploads[u.ID] = &cp
	return nil
}

func (m *memStore) ListUploads(_ context.Context, f UploadFilter) ([]Upload, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Upload
	for _, u := range m.uploads {
		if !u.IsActive || (f.UserID != "" && u.UserID != f.UserID) {
			continue
		}
		if f.Search != "" && !containsFold(u.OriginalName, f.Search) {
			continue
		}
		if f.Status != "" && u.ProcessingStatus != f.Status {
			continue
		}
		cp := *u
		cp.Data = nil
		if owner, ok := m.users[u.UserID]; ok {
			cp.UserName, cp.UserEmail = owner.Name, owner.Email
		}
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b Upload) int { return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID)) })
	return page(out, f.Page), int64(len(out)), nil
}

func (m *memStore) SetUploadsActive(_ context.Context, ids []string, active bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if u, ok := m.uploads[id]; ok && u.IsActive != active {
			u.IsActive = active
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountUploads(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.uploads {
		if u.IsActive && (userID == "" || u.UserID == userID) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) StorageUsed(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.uploads {
		if u.IsActive {
			n += u.FileSize
		}
	}
	return n, nil
}

func (m *memStore) UploadStats(_ context.Context, since time.Time) ([]DailyCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byDay := map[string]*DailyCount{}
	for _, u := range m.uploads {
		if !u.IsActive || u.CreatedAt.Before(since) {
			continue
		}
		d := u.CreatedAt.UTC().Format(time.DateOnly)
		if byDay[d] == nil {
			byDay[d] = &DailyCount{Date: d}
		}
		byDay[d].Count++
		byDay[d].TotalSize += u.FileSize
	}
	var out []DailyCount
	for _, dc := range byDay {
		out = append(out, *dc)
	}
	slices.SortFunc(out, func(a, b DailyCount) int { return cmp.Compare(a.Date, b.Date) })
	return out, nil
}

func (m *memStore) OrphanedFiles(_ context.Context, limit int) ([]Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Upload
	for _, u := range m.uploads {
		if !u.IsActive && u.UploadPath != "" {
			out = append(out, *u)
		}
	}
	slices.SortFunc(out, func(a, b Upload) int { return cmp.Compare(a.ID, b.ID) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ClearUploadPath(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[id]
	if !ok {
		return ErrNotFound
	}
	u.UploadPath = ""
	return nil
}

// charts

func (m *memStore) CreateChart(_ context.Context, c *Chart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID("chart")
	cp := *c
	m.charts[c.ID] = &cp
	return nil
}

func (m *memStore) GetChart(_ context.Context, id string) (*Chart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.charts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) UpdateChart(_ context.Context, c *Chart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.charts[c.ID]; !ok {
		return ErrNotFound
	}
	cp := *c
	m.charts[c.ID] = &cp
	return nil
}

func (m *memStore) IncrementDownloads(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.charts[id]
	if !ok {
		return 0, ErrNotFound
	}
	c.DownloadCount++
	return c.DownloadCount, nil
}

func (m *memStore) ListCharts(_ context.Context, f ChartFilter) ([]Chart, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Chart
	for _, c := range m.charts {
		if !c.IsActive || (f.UserID != "" && c.UserID != f.UserID) {
			continue
		}
		if f.Search != "" && !containsFold(c.Title, f.Search) {
			continue
		}
		if f.ChartType != "" && c.ChartType != f.ChartType {
			continue
		}
		cp := *c
		if up, ok := m.uploads[c.UploadID]; ok {
			cp.UploadName = up.OriginalName
		}
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b Chart) int { return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID)) })
	return page(out, f.Page), int64(len(out)), nil
}

func (m *memStore) SetChartsActive(_ context.Context, ids []string, active bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if c, ok := m.charts[id]; ok && c.IsActive != active {
			c.IsActive = active
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountCharts(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, c := range m.charts {
		if c.IsActive && (userID == "" || c.UserID == userID) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) ChartTypeDistribution(_ context.Context) ([]TypeCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[ChartType]int64{}
	for _, c := range m.charts {
		if c.IsActive {
			counts[c.ChartType]++
		}
	}
	var out []TypeCount
	for t, n := range counts {
		out = append(out, TypeCount{ChartType: t, Count: n})
	}
	slices.SortFunc(out, func(a, b TypeCount) int { return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.ChartType, b.ChartType)) })
	return out, nil
}

// activity

func (m *memStore) RecordActivity(_ context.Context, a *Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failActivity != nil {
		return m.failActivity
	}
	a.ID = m.nextID("activity")
	m.activities = append(m.activities, *a)
	return nil
}

// newest returns activities newest first; later inserts win ties.
func (m *memStore) newest() []Activity {
	out := slices.Clone(m.activities)
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b Activity) int { return b.Timestamp.Compare(a.Timestamp) })
	return out
}

func (m *memStore) RecentActivity(_ context.Context, userID string, limit int) ([]Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Activity
	for _, a := range m.newest() {
		if userID != "" && a.UserID != userID {
			continue
		}
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) ActivitySummary(_ context.Context, userID string, since time.Time) ([]ActionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byAction := map[Action]*ActionSummary{}
	for _, a := range m.activities {
		if a.UserID != userID || a.Timestamp.Before(since) {
			continue
		}
		s := byAction[a.Action]
		if s == nil {
			s = &ActionSummary{Action: a.Action}
			byAction[a.Action] = s
		}
		s.Count++
		if a.Timestamp.After(s.LastActivity) {
			s.LastActivity = a.Timestamp
		}
	}
	var out []ActionSummary
	for _, s := range byAction {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b ActionSummary) int { return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Action, b.Action)) })
	return out, nil
}

func (m *memStore) TopUsers(_ context.Context, since time.Time, limit int) ([]TopUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byUser := map[string]*TopUser{}
	for _, a := range m.activities {
		u, ok := m.users[a.UserID]
		if !ok || !u.IsActive || a.Timestamp.Before(since) {
			continue
		}
		t := byUser[a.UserID]
		if t == nil {
			t = &TopUser{UserID: u.ID, Name: u.Name, Email: u.Email}
			byUser[a.UserID] = t
		}
		t.ActivityCount++
		if a.Timestamp.After(t.LastActivity) {
			t.LastActivity = a.Timestamp
		}
	}
	var out []TopUser
	for _, t := range byUser {
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b TopUser) int { return cmp.Or(cmp.Compare(b.ActivityCount, a.ActivityCount), cmp.Compare(a.UserID, b.UserID)) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) PurgeActivity(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.activities[:0]
	var n int64
	for _, a := range m.activities {
		if a.Timestamp.Before(before) {
			n++
			continue
		}
		kept = append(kept, a)
	}
	m.activities = kept
	return n, nil
}

// actions lists the recorded actions in insertion order.
func (m *memStore) actions() []Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Action, len(m.activities))
	for i, a := range m.activities {
		out[i] = a.Action
	}
	return out
}

// lastActivity returns the most recently recorded entry.
func (m *memStore) lastActivity() Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activities[len(m.activities)-1]
}
