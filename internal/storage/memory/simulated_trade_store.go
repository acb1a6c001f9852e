package memory

import (
	"context"
	"sort"
	"sync"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/storage"
)

// SimulatedTradeStore is an in-memory implementation of storage.SimulatedTradeStore.
type SimulatedTradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SimulatedTrade // keyed by trade_id
}

// NewSimulatedTradeStore creates a new in-memory simulated trade store.
func NewSimulatedTradeStore() *SimulatedTradeStore {
	return &SimulatedTradeStore{
		data: make(map[string]*domain.SimulatedTrade),
	}
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *SimulatedTradeStore) InsertBulk(_ context.Context, trades []*domain.SimulatedTrade) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.TradeID == "" || t.RunID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[t.TradeID] = struct{}{}
	}

	for _, t := range trades {
		tradeCopy := *t
		s.data[t.TradeID] = &tradeCopy
	}

	return nil
}

// GetByRunID retrieves all trades of a run, ordered by entry time ASC, token ASC.
func (s *SimulatedTradeStore) GetByRunID(_ context.Context, runID string) ([]*domain.SimulatedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SimulatedTrade
	for _, t := range s.data {
		if t.RunID == runID {
			tradeCopy := *t
			result = append(result, &tradeCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].EntryTimeMs != result[j].EntryTimeMs {
			return result[i].EntryTimeMs < result[j].EntryTimeMs
		}
		return result[i].Token < result[j].Token
	})

	return result, nil
}

var _ storage.SimulatedTradeStore = (*SimulatedTradeStore)(nil)
