package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplicationName tags whaleflow sessions in pg_stat_activity unless the DSN
// sets application_name itself.
const ApplicationName = "whaleflow"

const pgErrUniqueViolation = "23505"

// Pool is the shared pgx pool behind every postgres store.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects and pings before returning.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	cfg, err := poolConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

func poolConfig(dsn string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	params := cfg.ConnConfig.RuntimeParams
	if params == nil {
		params = make(map[string]string)
		cfg.ConnConfig.RuntimeParams = params
	}
	if params["application_name"] == "" {
		params["application_name"] = ApplicationName
	}
	return cfg, nil
}

// Close releases every pooled connection.
func (p *Pool) Close() {
	p.Pool.Close()
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
