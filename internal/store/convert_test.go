package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/excel-analytics/internal/core"
)

func TestToPgUUID(t *testing.T) {
	const id = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"

	u := toPgUUID(id)
	if !u.Valid || uuidString(u) != id {
		t.Errorf("round trip = %q (valid=%v), want %q", uuidString(u), u.Valid, id)
	}
	for _, bad := range []string{"", "upload-1", "3f2504e0"} {
		if toPgUUID(bad).Valid {
			t.Errorf("toPgUUID(%q) is valid", bad)
		}
	}

	ids := toPgUUIDs([]string{id, "nope", id})
	if len(ids) != 2 {
		t.Errorf("toPgUUIDs kept %d ids, want 2", len(ids))
	}
}

func TestNewID(t *testing.T) {
	const id = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"
	if got := uuidString(newID(id)); got != id {
		t.Errorf("newID kept %q, want %q", got, id)
	}
	a, b := newID(""), newID("")
	if !a.Valid || a == b {
		t.Errorf("newID(\"\") = %v, %v, want two fresh ids", a, b)
	}
}

func TestMapError(t *testing.T) {
	other := errors.New("boom")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), core.ErrNotFound},
		{"email unique", &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_email_key"}, core.ErrEmailTaken},
		{"foreign key", &pgconn.PgError{Code: foreignKeyViolation, Detail: "upload missing"}, core.ErrNotFound},
		{"other", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Errorf("mapError(nil) = %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("mapError() = %v, want %v", got, tt.want)
			}
		})
	}

	var pgErr *pgconn.PgError
	other2 := &pgconn.PgError{Code: uniqueViolation, ConstraintName: "charts_pkey"}
	if got := mapError(other2); !errors.As(got, &pgErr) {
		t.Errorf("unrelated unique violation mapped to %v", got)
	}
}
