package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/storage"
)

// CompositeSignalStore is an in-memory implementation of storage.CompositeSignalStore.
type CompositeSignalStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.CompositeSignal // keyed by token, ordered by computed_at ASC
}

// NewCompositeSignalStore creates a new in-memory composite signal store.
func NewCompositeSignalStore() *CompositeSignalStore {
	return &CompositeSignalStore{
		data: make(map[string][]*domain.CompositeSignal),
	}
}

// Insert adds a new signal. Returns ErrDuplicateKey if (token, computed_at_ms) exists.
func (s *CompositeSignalStore) Insert(_ context.Context, sig *domain.CompositeSignal) error {
	if sig == nil || sig.Token == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	token := strings.ToUpper(sig.Token)
	for _, existing := range s.data[token] {
		if existing.ComputedAtMs == sig.ComputedAtMs {
			return storage.ErrDuplicateKey
		}
	}

	sigCopy := copySignal(sig)
	sigCopy.Token = token
	list := append(s.data[token], sigCopy)
	sort.Slice(list, func(i, j int) bool {
		return list[i].ComputedAtMs < list[j].ComputedAtMs
	})
	s.data[token] = list
	return nil
}

// GetLatest retrieves the most recent signal for a token.
func (s *CompositeSignalStore) GetLatest(_ context.Context, token string) (*domain.CompositeSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.data[strings.ToUpper(token)]
	if len(list) == 0 {
		return nil, storage.ErrNotFound
	}
	return copySignal(list[len(list)-1]), nil
}

// GetByTimeRange retrieves signals for a token within [start, end] (inclusive).
func (s *CompositeSignalStore) GetByTimeRange(_ context.Context, token string, start, end int64) ([]*domain.CompositeSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CompositeSignal
	for _, sig := range s.data[strings.ToUpper(token)] {
		if sig.ComputedAtMs >= start && sig.ComputedAtMs <= end {
			result = append(result, copySignal(sig))
		}
	}
	return result, nil
}

// copySignal deep-copies slices so callers cannot mutate stored records.
func copySignal(sig *domain.CompositeSignal) *domain.CompositeSignal {
	c := *sig
	c.Tiers = append([]domain.TierScore(nil), sig.Tiers...)
	c.Traps = append([]domain.Trap(nil), sig.Traps...)
	if sig.PriceAtSignal != nil {
		p := *sig.PriceAtSignal
		c.PriceAtSignal = &p
	}
	return &c
}

var _ storage.CompositeSignalStore = (*CompositeSignalStore)(nil)
