package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"whaleflow-lab/internal/logging"
	"whaleflow-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies every embedded PostgreSQL migration that is not
// recorded yet. Each file and its tracking row commit in one transaction.
// Returns the names applied by this call.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool, logger *zap.Logger) ([]string, error) {
	logger = logging.OrNop(logger)

	all, err := Load(PostgresFS, "postgres")
	if err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+trackingTable+` (
		name       TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return nil, fmt.Errorf("create %s: %w", trackingTable, err)
	}

	rows, err := pool.Query(ctx, `SELECT name FROM `+trackingTable)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	applied := make(map[string]bool, len(names))
	for _, n := range names {
		applied[n] = true
	}

	var done []string
	for _, m := range pending(all, applied) {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO `+trackingTable+` (name) VALUES ($1)`, m.Name)
			return err
		})
		if err != nil {
			return done, fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
		logger.Info("postgres migration applied", zap.String("migration", m.Name))
		done = append(done, m.Name)
	}
	return done, nil
}
