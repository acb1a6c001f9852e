package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/storage"
)

// SimulatedTradeStore implements storage.SimulatedTradeStore using PostgreSQL.
type SimulatedTradeStore struct {
	pool *Pool
}

// NewSimulatedTradeStore creates a new SimulatedTradeStore.
func NewSimulatedTradeStore(pool *Pool) *SimulatedTradeStore {
	return &SimulatedTradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SimulatedTradeStore = (*SimulatedTradeStore)(nil)

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *SimulatedTradeStore) InsertBulk(ctx context.Context, trades []*domain.SimulatedTrade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO simulated_trades (
			trade_id, run_id, token, entry_time_ms, exit_time_ms, direction,
			entry_price, exit_price, notional,
			gross_pnl, fees_cost, net_pnl, return_pct,
			skipped, skip_reason
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12, $13,
			$14, $15
		)
	`

	for _, t := range trades {
		if t.RunID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			t.TradeID, t.RunID, t.Token, t.EntryTimeMs, t.ExitTimeMs, string(t.Direction),
			t.EntryPrice, t.ExitPrice, t.Notional,
			t.GrossPnL, t.FeesCost, t.NetPnL, t.ReturnPct,
			t.Skipped, t.SkipReason,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert simulated trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunID retrieves all trades of a run, ordered by entry time ASC, token ASC.
func (s *SimulatedTradeStore) GetByRunID(ctx context.Context, runID string) ([]*domain.SimulatedTrade, error) {
	query := `
		SELECT
			trade_id, run_id, token, entry_time_ms, exit_time_ms, direction,
			entry_price, exit_price, notional,
			gross_pnl, fees_cost, net_pnl, return_pct,
			skipped, skip_reason
		FROM simulated_trades
		WHERE run_id = $1
		ORDER BY entry_time_ms ASC, token ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get simulated trades by run id: %w", err)
	}
	defer rows.Close()

	return scanSimulatedTrades(rows)
}

func scanSimulatedTrades(rows pgx.Rows) ([]*domain.SimulatedTrade, error) {
	var trades []*domain.SimulatedTrade

	for rows.Next() {
		var t domain.SimulatedTrade
		var direction string

		err := rows.Scan(
			&t.TradeID, &t.RunID, &t.Token, &t.EntryTimeMs, &t.ExitTimeMs, &direction,
			&t.EntryPrice, &t.ExitPrice, &t.Notional,
			&t.GrossPnL, &t.FeesCost, &t.NetPnL, &t.ReturnPct,
			&t.Skipped, &t.SkipReason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan simulated trade: %w", err)
		}
		t.Direction = domain.Direction(direction)
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate simulated trades: %w", err)
	}
	return trades, nil
}
