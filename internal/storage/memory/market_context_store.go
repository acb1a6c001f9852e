package memory

import (
	"context"
	"strings"
	"sync"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/storage"
)

// MarketContextStore is an in-memory implementation of storage.MarketContextStore.
// Setters replace the current snapshot for a token.
type MarketContextStore struct {
	mu        sync.RWMutex
	sentiment map[string]domain.SentimentScore
	social    map[string]domain.SocialMetrics
	votes     map[string]domain.VoteTally
	dev       map[string]domain.DevActivity
}

// NewMarketContextStore creates a new in-memory market context store.
func NewMarketContextStore() *MarketContextStore {
	return &MarketContextStore{
		sentiment: make(map[string]domain.SentimentScore),
		social:    make(map[string]domain.SocialMetrics),
		votes:     make(map[string]domain.VoteTally),
		dev:       make(map[string]domain.DevActivity),
	}
}

// SetSentiment stores the sentiment snapshot for a token.
func (s *MarketContextStore) SetSentiment(v domain.SentimentScore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.Token = strings.ToUpper(v.Token)
	s.sentiment[v.Token] = v
}

// SetSocial stores the social snapshot for a token.
func (s *MarketContextStore) SetSocial(v domain.SocialMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.Token = strings.ToUpper(v.Token)
	s.social[v.Token] = v
}

// SetVotes stores the vote tally for a token.
func (s *MarketContextStore) SetVotes(v domain.VoteTally) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.Token = strings.ToUpper(v.Token)
	s.votes[v.Token] = v
}

// SetDevActivity stores the developer activity snapshot for a token.
func (s *MarketContextStore) SetDevActivity(v domain.DevActivity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.Token = strings.ToUpper(v.Token)
	s.dev[v.Token] = v
}

func (s *MarketContextStore) GetSentiment(_ context.Context, token string) (*domain.SentimentScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.sentiment[strings.ToUpper(token)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &v, nil
}

func (s *MarketContextStore) GetSocial(_ context.Context, token string) (*domain.SocialMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.social[strings.ToUpper(token)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &v, nil
}

func (s *MarketContextStore) GetVotes(_ context.Context, token string) (*domain.VoteTally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.votes[strings.ToUpper(token)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &v, nil
}

func (s *MarketContextStore) GetDevActivity(_ context.Context, token string) (*domain.DevActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.dev[strings.ToUpper(token)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &v, nil
}

var _ storage.MarketContextStore = (*MarketContextStore)(nil)
