package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// signalFilter restricts rows to BUY/SELL against CEX/DEX counterparties.
const signalFilter = `
	upper(classification) IN ('BUY', 'SELL')
	AND upper(counterparty_type) IN ('CEX', 'DEX')
`

// InsertBulk adds multiple transactions atomically. Fails entire batch on duplicate hash.
func (s *TransactionStore) InsertBulk(ctx context.Context, txs []*domain.RawTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	for _, t := range txs {
		if t == nil || t.Hash == "" || t.Symbol == "" || t.USDValue < 0 {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO whale_transactions (
			hash, timestamp_ms, symbol, classification, usd_value, counterparty_type
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, t := range txs {
		_, err := tx.Exec(ctx, query,
			t.Hash, t.Timestamp, strings.ToUpper(t.Symbol),
			t.Classification, t.USDValue, t.CounterpartyType,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert whale transaction in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetSignalRows retrieves signal-eligible rows for a symbol within [start, end).
func (s *TransactionStore) GetSignalRows(ctx context.Context, symbol string, start, end int64) ([]*domain.RawTransaction, error) {
	query := `
		SELECT hash, timestamp_ms, symbol, classification, usd_value, counterparty_type
		FROM whale_transactions
		WHERE symbol = $1 AND timestamp_ms >= $2 AND timestamp_ms < $3
		AND ` + signalFilter + `
		ORDER BY timestamp_ms ASC, hash ASC
	`

	rows, err := s.pool.Query(ctx, query, strings.ToUpper(symbol), start, end)
	if err != nil {
		return nil, fmt.Errorf("get signal rows: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetActiveSymbols returns up to limit symbols ordered by signal-eligible row count DESC, symbol ASC.
func (s *TransactionStore) GetActiveSymbols(ctx context.Context, start, end int64, limit int) ([]string, error) {
	query := `
		SELECT symbol
		FROM whale_transactions
		WHERE timestamp_ms >= $1 AND timestamp_ms < $2
		AND ` + signalFilter + `
		GROUP BY symbol
		ORDER BY count(*) DESC, symbol ASC
		LIMIT $3
	`

	rows, err := s.pool.Query(ctx, query, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("get active symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan active symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active symbols: %w", err)
	}
	return symbols, nil
}

func scanTransactions(rows pgx.Rows) ([]*domain.RawTransaction, error) {
	var txs []*domain.RawTransaction

	for rows.Next() {
		var t domain.RawTransaction
		err := rows.Scan(
			&t.Hash, &t.Timestamp, &t.Symbol,
			&t.Classification, &t.USDValue, &t.CounterpartyType,
		)
		if err != nil {
			return nil, fmt.Errorf("scan whale transaction: %w", err)
		}
		txs = append(txs, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate whale transactions: %w", err)
	}
	return txs, nil
}
