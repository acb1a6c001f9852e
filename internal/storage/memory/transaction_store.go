package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RawTransaction // keyed by hash
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string]*domain.RawTransaction),
	}
}

// InsertBulk adds multiple transactions atomically. Fails entire batch on duplicate hash.
func (s *TransactionStore) InsertBulk(_ context.Context, txs []*domain.RawTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		if tx == nil || tx.Hash == "" || tx.Symbol == "" || tx.USDValue < 0 {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[tx.Hash]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[tx.Hash]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[tx.Hash] = struct{}{}
	}

	for _, tx := range txs {
		txCopy := *tx
		txCopy.Symbol = strings.ToUpper(txCopy.Symbol)
		s.data[tx.Hash] = &txCopy
	}

	return nil
}

// GetSignalRows retrieves signal-eligible rows for a symbol within [start, end).
func (s *TransactionStore) GetSignalRows(_ context.Context, symbol string, start, end int64) ([]*domain.RawTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbol = strings.ToUpper(symbol)
	var result []*domain.RawTransaction
	for _, tx := range s.data {
		if tx.Symbol != symbol || tx.Timestamp < start || tx.Timestamp >= end {
			continue
		}
		if !tx.IsSignalEligible() {
			continue
		}
		txCopy := *tx
		result = append(result, &txCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].Hash < result[j].Hash
	})

	return result, nil
}

// GetActiveSymbols returns up to limit symbols ordered by signal-eligible row count DESC, symbol ASC.
func (s *TransactionStore) GetActiveSymbols(_ context.Context, start, end int64, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, tx := range s.data {
		if tx.Timestamp < start || tx.Timestamp >= end || !tx.IsSignalEligible() {
			continue
		}
		counts[tx.Symbol]++
	}

	symbols := make([]string, 0, len(counts))
	for sym := range counts {
		symbols = append(symbols, sym)
	}
	sort.Slice(symbols, func(i, j int) bool {
		if counts[symbols[i]] != counts[symbols[j]] {
			return counts[symbols[i]] > counts[symbols[j]]
		}
		return symbols[i] < symbols[j]
	})

	if limit > 0 && len(symbols) > limit {
		symbols = symbols[:limit]
	}
	return symbols, nil
}

var _ storage.TransactionStore = (*TransactionStore)(nil)
