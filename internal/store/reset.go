package store

import (
	"context"
	"fmt"
	"time"
)

// ResetTimeout bounds a full data reset.
const ResetTimeout = 30 * time.Second

// resetTables are truncated by Reset, children before parents.
var resetTables = []string{"activities", "charts", "uploads", "users"}

// Reset deletes every row of the application tables. The schema and its
// migration history are kept. Stored upload files are not touched.
func (p *Postgres) Reset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range resetTables {
		if _, err := tx.Exec(ctx, "TRUNCATE "+table+" CASCADE"); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return tx.Commit(ctx)
}
