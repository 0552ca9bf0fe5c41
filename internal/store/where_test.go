package store

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/excel-analytics/internal/core"
)

// ============================================================================
// whereBuilder Tests
// ============================================================================

func TestWhereBuilder_Build_Empty(t *testing.T) {
	wb := newWhereBuilder()
	whereClause, args := wb.Build()

	if whereClause != "" {
		t.Errorf("expected empty string for no conditions, got %q", whereClause)
	}
	if args != nil {
		t.Errorf("expected nil args for no conditions, got %v", args)
	}
}

func TestWhereBuilder_Conditions(t *testing.T) {
	wb := newWhereBuilder()
	wb.AddRaw("u.is_active")
	wb.Add("role", "")
	wb.Add("role", "admin")
	wb.AddCond("created_at >= %s", "2024-01-01")
	wb.AddSearch("ada", "name", "email")

	whereClause, args := wb.Build()

	expected := " WHERE u.is_active AND role = $1 AND created_at >= $2 AND (name ILIKE $3 OR email ILIKE $3)"
	if whereClause != expected {
		t.Errorf("expected %q, got %q", expected, whereClause)
	}
	if diff := cmp.Diff([]any{"admin", "2024-01-01", "%ada%"}, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	if wb.NextArgIndex() != 4 {
		t.Errorf("expected NextArgIndex 4, got %d", wb.NextArgIndex())
	}
}

func TestWhereBuilder_AddSearch(t *testing.T) {
	tests := []struct {
		name     string
		term     string
		wantArg  any
		wantNone bool
	}{
		{name: "plain", term: "report", wantArg: "%report%"},
		{name: "trimmed", term: "  q1  ", wantArg: "%q1%"},
		{name: "wildcards escaped", term: "50%_off", wantArg: `%50\%\_off%`},
		{name: "blank skipped", term: "   ", wantNone: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := newWhereBuilder()
			wb.AddSearch(tt.term, "title")
			clause, args := wb.Build()
			if tt.wantNone {
				if clause != "" {
					t.Errorf("expected no clause, got %q", clause)
				}
				return
			}
			if len(args) != 1 || args[0] != tt.wantArg {
				t.Errorf("search args = %v, want [%v]", args, tt.wantArg)
			}
		})
	}
}

func TestLimitOffset(t *testing.T) {
	wb := newWhereBuilder()
	wb.Add("role", "user")

	clause, args := limitOffset(wb, core.Page{Page: 3, Limit: 20})
	if clause != " LIMIT $2 OFFSET $3" {
		t.Errorf("unexpected clause %q", clause)
	}
	if diff := cmp.Diff([]any{"user", 20, 40}, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderBy(t *testing.T) {
	tests := []struct {
		sort core.Sort
		want string
	}{
		{core.Sort{By: "title", Desc: false}, " ORDER BY c.title ASC, c.id ASC"},
		{core.Sort{By: "downloadCount", Desc: true}, " ORDER BY c.download_count DESC, c.id DESC"},
		{core.Sort{By: "title; DROP TABLE charts", Desc: true}, " ORDER BY c.created_at DESC, c.id DESC"},
	}
	for _, tt := range tests {
		if got := orderBy(tt.sort, chartSortColumns, "c.id"); got != tt.want {
			t.Errorf("orderBy(%+v) = %q, want %q", tt.sort, got, tt.want)
		}
	}
}

func TestSortColumnsCoverCore(t *testing.T) {
	for _, tc := range []struct {
		name    string
		allowed []string
		columns map[string]string
	}{
		{"users", core.UserSortColumns, userSortColumns},
		{"uploads", core.UploadSortColumns, uploadSortColumns},
		{"charts", core.ChartSortColumns, chartSortColumns},
	} {
		for _, key := range tc.allowed {
			if _, ok := tc.columns[key]; !ok {
				t.Errorf("%s: sort key %q has no column", tc.name, key)
			}
		}
	}
}
