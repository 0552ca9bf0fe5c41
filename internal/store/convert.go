package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/excel-analytics/internal/core"
)

// Postgres error codes the store reacts to.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// toPgUUID converts an ID to pgtype.UUID. Invalid IDs come back with
// Valid=false; no row can match them.
func toPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// toPgUUIDs converts IDs for an ANY($n) match, dropping invalid ones.
func toPgUUIDs(ids []string) []pgtype.UUID {
	out := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		if u := toPgUUID(id); u.Valid {
			out = append(out, u)
		}
	}
	return out
}

// uuidString renders a pgtype.UUID, empty when NULL.
func uuidString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

// newID returns id, or a fresh UUID when id is empty.
func newID(id string) pgtype.UUID {
	if u := toPgUUID(id); u.Valid {
		return u
	}
	return pgtype.UUID{Bytes: uuid.New(), Valid: true}
}

// textPtr maps a nullable text column.
func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

// timePtr maps a nullable timestamptz column.
func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// marshalJSON encodes v for a json/jsonb parameter.
func marshalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return b, nil
}

// mapError turns driver errors into the domain errors core understands.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == uniqueViolation && pgErr.ConstraintName == "users_email_key":
		return core.ErrEmailTaken
	case pgErr.Code == foreignKeyViolation:
		return fmt.Errorf("%w: %s", core.ErrNotFound, pgErr.Detail)
	}
	return err
}
