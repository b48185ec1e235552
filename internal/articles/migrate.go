package articles

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/postgres"
)

//go:embed schema.sql
var schema string

// Migrate creates the article tables the store reads if they are missing.
// Production databases are owned by the article service; this exists for
// local development and tests.
func Migrate(ctx context.Context, db *postgres.Client) error {
	return db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("applying article schema: %w", err)
		}
		return nil
	})
}
