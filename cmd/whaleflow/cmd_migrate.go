package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"whaleflow-lab/internal/storage/migrations"
	pgstore "whaleflow-lab/internal/storage/postgres"
)

// migrateCmd applies the embedded schema migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the PostgreSQL and ClickHouse schema migrations",
	Long: `Apply the embedded SQL migrations. PostgreSQL holds transactions, simulated
trades, composite signals and market context; ClickHouse holds the price tick
archive and is skipped when clickhouse.dsn is empty.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if appConfig.Storage.UseMemory {
		return errors.New("migrate needs postgres.dsn; storage.use_memory is set")
	}

	pool, err := pgstore.NewPool(ctx, appConfig.Postgres.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	applied, err := migrations.RunPostgresMigrations(ctx, pool, rootLogger)
	if err != nil {
		return err
	}
	rootLogger.Info("postgres schema up to date", zap.Strings("applied", applied))

	if appConfig.Clickhouse.DSN == "" {
		rootLogger.Info("clickhouse.dsn not set, skipping clickhouse migrations")
		return nil
	}
	conn, applied, err := migrations.RunClickhouseMigrations(ctx, appConfig.Clickhouse.DSN, rootLogger)
	if err != nil {
		return err
	}
	defer conn.Close()
	rootLogger.Info("clickhouse schema up to date", zap.Strings("applied", applied))
	return nil
}
