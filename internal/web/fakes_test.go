package web

import (
	"context"
	"fmt"
	"sync"

	"github.com/JonMunkholm/excel-analytics/internal/core"
)

// fakeStore keeps users, uploads, charts and activity in memory. Methods
// the handlers under test never reach are left to the embedded nil
// interface and panic if called.
type fakeStore struct {
	core.Store

	mu       sync.Mutex
	seq      int
	users    map[string]*core.User
	uploads  map[string]*core.Upload
	charts   map[string]*core.Chart
	activity []core.Activity
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]*core.User),
		uploads: make(map[string]*core.Upload),
		charts:  make(map[string]*core.Chart),
	}
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeStore) CreateUser(_ context.Context, u *core.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return core.ErrEmailTaken
		}
	}
	if u.ID == "" {
		u.ID = f.nextID("user")
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, id string) (*core.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*core.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeStore) UpdateUser(_ context.Context, u *core.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return core.ErrNotFound
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeStore) CreateUpload(_ context.Context, u *core.Upload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = f.nextID("upload")
	}
	cp := *u
	f.uploads[u.ID] = &cp
	return nil
}

func (f *fakeStore) GetUpload(_ context.Context, id string) (*core.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.uploads[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) CreateChart(_ context.Context, c *core.Chart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		c.ID = f.nextID("chart")
	}
	cp := *c
	f.charts[c.ID] = &cp
	return nil
}

func (f *fakeStore) GetChart(_ context.Context, id string) (*core.Chart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.charts[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) RecordActivity(_ context.Context, a *core.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = f.nextID("activity")
	f.activity = append(f.activity, *a)
	return nil
}

// actions returns the recorded actions in order.
func (f *fakeStore) actions() []core.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Action, len(f.activity))
	for i, a := range f.activity {
		out[i] = a.Action
	}
	return out
}

func (f *fakeStore) lastActivity() core.Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activity[len(f.activity)-1]
}
