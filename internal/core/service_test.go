package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/excel-analytics/internal/auth"
	"github.com/JonMunkholm/excel-analytics/internal/ingest"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	svc   *Service
	store *memStore
	cache *memCache
	dir   string

	mu    sync.Mutex
	clock time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	gw, err := ingest.NewGateway(dir, 0, ingest.NewParser(ingest.DefaultClassifier()))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	env := &testEnv{store: newMemStore(), cache: newMemCache(), dir: dir, clock: testNow}
	env.svc = NewService(env.store, Options{
		Gateway:    gw,
		Issuer:     auth.NewIssuer("access-secret", time.Hour, "refresh-secret", 24*time.Hour),
		Limiter:    NewUploadLimiter(2, time.Second),
		Cache:      env.cache,
		BcryptCost: bcrypt.MinCost,
	})
	env.svc.now = env.now
	return env
}

func (e *testEnv) now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	e.clock = e.clock.Add(d)
	e.mu.Unlock()
}

// register creates an active user and returns it.
func (e *testEnv) register(t *testing.T, name, email string) *User {
	t.Helper()
	res, err := e.svc.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: "secret1"})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return res.User
}

// admin creates a user and promotes it.
func (e *testEnv) admin(t *testing.T) *User {
	t.Helper()
	u := e.register(t, "Root Admin", "admin@example.com")
	u.Role = RoleAdmin
	if err := e.store.UpdateUser(context.Background(), u); err != nil {
		t.Fatalf("promote admin: %v", err)
	}
	return u
}

// upload ingests a one-sheet workbook of rows for userID.
func (e *testEnv) upload(t *testing.T, userID string, rows [][]any) *Upload {
	t.Helper()
	data := workbookBytes(t, sheetRows{"Sheet1", rows})
	u, err := e.svc.UploadExcel(context.Background(), userID, ingest.Upload{
		Reader:       bytes.NewReader(data),
		OriginalName: "report.xlsx",
		MimeType:     xlsxMIME,
		Size:         int64(len(data)),
	})
	if err != nil {
		t.Fatalf("UploadExcel: %v", err)
	}
	e.advance(time.Minute)
	return u
}

type sheetRows struct {
	name string
	rows [][]any
}

// workbookBytes builds an .xlsx in memory with rows written from A1.
func workbookBytes(t *testing.T, sheets ...sheetRows) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				t.Fatalf("SetSheetName: %v", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			t.Fatalf("NewSheet: %v", err)
		}
		for r, row := range s.rows {
			cell, _ := excelize.CoordinatesToCellName(1, r+1)
			if err := f.SetSheetRow(s.name, cell, &row); err != nil {
				t.Fatalf("SetSheetRow: %v", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

// salesRows returns a header plus n rows of Month/Sales/Region.
func salesRows(n int) [][]any {
	rows := [][]any{{"Month", "Sales", "Region"}}
	for i := 1; i <= n; i++ {
		rows = append(rows, []any{fmt.Sprintf("M%02d", i), i * 10, "North"})
	}
	return rows
}

func filesIn(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	return len(entries)
}

// memCache is an in-memory Cache that round-trips through JSON like Redis.
type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
	hits  int
}

func newMemCache() *memCache {
	return &memCache{items: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.items[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(_ context.Context, key string, v any, _ time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.items[key] = b
	c.mu.Unlock()
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func (c *memCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
