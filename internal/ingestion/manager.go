// Package ingestion loads whale transactions from external sources into storage.
package ingestion

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/logging"
	"whaleflow-lab/internal/storage"
)

// DefaultBatchSize is the number of transactions per InsertBulk call.
const DefaultBatchSize = 500

// Result counts the outcome of one ingestion.
type Result struct {
	Read       int
	Inserted   int
	Duplicates int // already stored, or repeated within the source
	Invalid    int
}

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	Source    TransactionSource
	Store     storage.TransactionStore
	BatchSize int
	Logger    *zap.Logger
}

// Manager orchestrates ingestion from a source to storage.
// It enforces deterministic ordering and uses the storage layer for duplicate rejection.
type Manager struct {
	source    TransactionSource
	store     storage.TransactionStore
	batchSize int
	logger    *zap.Logger
}

// NewManager creates a new ingestion manager.
func NewManager(opts ManagerOptions) *Manager {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Manager{
		source:    opts.Source,
		store:     opts.Store,
		batchSize: batch,
		logger:    logging.OrNop(opts.Logger),
	}
}

// IngestTransactions fetches every transaction from the source and stores it.
// Invalid records and duplicates are counted and skipped, so re-running an
// import is safe. Any other storage error aborts the ingestion.
func (m *Manager) IngestTransactions(ctx context.Context) (Result, error) {
	var res Result
	if m.source == nil || m.store == nil {
		return res, nil
	}

	txs, err := m.source.Fetch(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch transactions: %w", err)
	}
	res.Read = len(txs)

	valid := make([]*domain.RawTransaction, 0, len(txs))
	seen := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		if !isValid(tx) {
			res.Invalid++
			continue
		}
		if _, dup := seen[tx.Hash]; dup {
			res.Duplicates++
			continue
		}
		seen[tx.Hash] = struct{}{}
		valid = append(valid, tx)
	}

	// Enforce deterministic ordering
	SortTransactions(valid)

	for start := 0; start < len(valid); start += m.batchSize {
		end := min(start+m.batchSize, len(valid))
		inserted, dups, err := m.insertBatch(ctx, valid[start:end])
		res.Inserted += inserted
		res.Duplicates += dups
		if err != nil {
			return res, err
		}
	}

	m.logger.Info("transactions ingested",
		zap.Int("read", res.Read),
		zap.Int("inserted", res.Inserted),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("invalid", res.Invalid),
	)
	return res, nil
}

// insertBatch writes a batch in one call. A batch rejected for a duplicate is
// retried row by row so the new rows still land.
func (m *Manager) insertBatch(ctx context.Context, batch []*domain.RawTransaction) (int, int, error) {
	err := m.store.InsertBulk(ctx, batch)
	if err == nil {
		return len(batch), 0, nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return 0, 0, fmt.Errorf("insert transactions: %w", err)
	}

	inserted, dups := 0, 0
	for _, tx := range batch {
		switch err := m.store.InsertBulk(ctx, []*domain.RawTransaction{tx}); {
		case err == nil:
			inserted++
		case errors.Is(err, storage.ErrDuplicateKey):
			dups++
		default:
			return inserted, dups, fmt.Errorf("insert transaction %s: %w", tx.Hash, err)
		}
	}
	return inserted, dups, nil
}

func isValid(tx *domain.RawTransaction) bool {
	return tx != nil && tx.Hash != "" && tx.Symbol != "" && tx.Timestamp > 0 && tx.USDValue >= 0
}
