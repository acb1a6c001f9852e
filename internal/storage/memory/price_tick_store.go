package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/storage"
)

// PriceTickStore is an in-memory implementation of storage.PriceTickStore.
type PriceTickStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PriceTick // keyed by (token, timestamp_ms)
}

// NewPriceTickStore creates a new in-memory price tick store.
func NewPriceTickStore() *PriceTickStore {
	return &PriceTickStore{
		data: make(map[string]*domain.PriceTick),
	}
}

func tickKey(token string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", token, timestampMs)
}

// InsertBulk adds multiple ticks. Fails entire batch on duplicate.
func (s *PriceTickStore) InsertBulk(_ context.Context, ticks []*domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(ticks))
	for _, t := range ticks {
		if t == nil || t.Token == "" {
			return storage.ErrInvalidInput
		}
		key := tickKey(strings.ToUpper(t.Token), t.TimestampMs)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, t := range ticks {
		tickCopy := *t
		tickCopy.Token = strings.ToUpper(tickCopy.Token)
		s.data[tickKey(tickCopy.Token, tickCopy.TimestampMs)] = &tickCopy
	}

	return nil
}

// GetByTimeRange retrieves ticks for a token within [start, end] (inclusive).
func (s *PriceTickStore) GetByTimeRange(_ context.Context, token string, start, end int64) ([]*domain.PriceTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token = strings.ToUpper(token)
	var result []*domain.PriceTick
	for _, t := range s.data {
		if t.Token == token && t.TimestampMs >= start && t.TimestampMs <= end {
			tickCopy := *t
			result = append(result, &tickCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

var _ storage.PriceTickStore = (*PriceTickStore)(nil)
