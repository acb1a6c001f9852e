package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"whaleflow-lab/internal/logging"
	chstore "whaleflow-lab/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the DSN database if needed and applies every
// embedded ClickHouse migration not recorded yet. It returns a connection to
// the target database and the names applied by this call.
func RunClickhouseMigrations(ctx context.Context, dsn string, logger *zap.Logger) (*chstore.Conn, []string, error) {
	logger = logging.OrNop(logger)

	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, nil, err
	}
	all, err := Load(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, nil, err
	}

	if err := createDatabase(ctx, dsn, dbName); err != nil {
		return nil, nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, nil, fmt.Errorf("connect clickhouse db: %w", err)
	}

	done, err := applyClickhouse(ctx, conn, all, logger)
	if err != nil {
		conn.Close()
		return nil, done, err
	}
	return conn, done, nil
}

func createDatabase(ctx context.Context, dsn, dbName string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbName)); err != nil {
		return fmt.Errorf("create database %s: %w", dbName, err)
	}
	return nil
}

// applyClickhouse runs pending migrations statement by statement; the driver
// executes one statement per Exec. A file is recorded only after all of its
// statements succeed.
func applyClickhouse(ctx context.Context, conn *chstore.Conn, all []Migration, logger *zap.Logger) ([]string, error) {
	if err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+trackingTable+` (
		name       String,
		applied_at DateTime DEFAULT now()
	) ENGINE = ReplacingMergeTree ORDER BY name`); err != nil {
		return nil, fmt.Errorf("create %s: %w", trackingTable, err)
	}

	rows, err := conn.Query(ctx, `SELECT DISTINCT name FROM `+trackingTable)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}

	var done []string
	for _, m := range pending(all, applied) {
		stmts, err := splitStatements(m.SQL)
		if err != nil {
			return done, fmt.Errorf("parse migration %s: %w", m.Name, err)
		}
		for _, stmt := range stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				return done, fmt.Errorf("apply migration %s: %w", m.Name, err)
			}
		}
		if err := conn.Exec(ctx, `INSERT INTO `+trackingTable+` (name) VALUES (?)`, m.Name); err != nil {
			return done, fmt.Errorf("record migration %s: %w", m.Name, err)
		}
		logger.Info("clickhouse migration applied", zap.String("migration", m.Name))
		done = append(done, m.Name)
	}
	return done, nil
}

// splitStatements splits SQL on semicolons outside single-quoted literals and
// drops -- line comments. An unterminated literal is an error.
func splitStatements(sql string) ([]string, error) {
	var (
		stmts   []string
		cur     strings.Builder
		inQuote bool
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		switch {
		case inQuote:
			cur.WriteByte(ch)
			if ch == '\'' {
				if i+1 < len(sql) && sql[i+1] == '\'' {
					cur.WriteByte('\'')
					i++
					continue
				}
				inQuote = false
			}
		case ch == '\'':
			inQuote = true
			cur.WriteByte(ch)
		case ch == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case ch == ';':
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated string literal")
	}
	flush()
	return stmts, nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
