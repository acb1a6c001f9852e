package postgres

import (
	"context"
	"fmt"
	"strings"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/storage"
)

// MarketContextStore implements storage.MarketContextStore using PostgreSQL.
// The tables are filled by collectors outside this module; the Upsert methods
// exist for seeding and tests.
type MarketContextStore struct {
	pool *Pool
}

// NewMarketContextStore creates a new MarketContextStore.
func NewMarketContextStore(pool *Pool) *MarketContextStore {
	return &MarketContextStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MarketContextStore = (*MarketContextStore)(nil)

// GetSentiment returns the sentiment snapshot for a token.
func (s *MarketContextStore) GetSentiment(ctx context.Context, token string) (*domain.SentimentScore, error) {
	var v domain.SentimentScore
	err := s.pool.QueryRow(ctx,
		`SELECT token, score, sample_size, as_of_ms FROM token_sentiment WHERE token = $1`,
		strings.ToUpper(token),
	).Scan(&v.Token, &v.Score, &v.SampleSize, &v.AsOfMs)
	if err != nil {
		return nil, wrapGetError("sentiment", err)
	}
	return &v, nil
}

// GetSocial returns the social engagement snapshot for a token.
func (s *MarketContextStore) GetSocial(ctx context.Context, token string) (*domain.SocialMetrics, error) {
	var v domain.SocialMetrics
	err := s.pool.QueryRow(ctx,
		`SELECT token, engagement_score, rank, as_of_ms FROM social_metrics WHERE token = $1`,
		strings.ToUpper(token),
	).Scan(&v.Token, &v.EngagementScore, &v.Rank, &v.AsOfMs)
	if err != nil {
		return nil, wrapGetError("social metrics", err)
	}
	return &v, nil
}

// GetVotes returns the community vote tally for a token.
func (s *MarketContextStore) GetVotes(ctx context.Context, token string) (*domain.VoteTally, error) {
	var v domain.VoteTally
	err := s.pool.QueryRow(ctx,
		`SELECT token, bullish, bearish FROM community_votes WHERE token = $1`,
		strings.ToUpper(token),
	).Scan(&v.Token, &v.Bullish, &v.Bearish)
	if err != nil {
		return nil, wrapGetError("community votes", err)
	}
	return &v, nil
}

// GetDevActivity returns the developer activity snapshot for a token.
func (s *MarketContextStore) GetDevActivity(ctx context.Context, token string) (*domain.DevActivity, error) {
	var v domain.DevActivity
	err := s.pool.QueryRow(ctx,
		`SELECT token, commits_last_30d, contributors FROM dev_activity WHERE token = $1`,
		strings.ToUpper(token),
	).Scan(&v.Token, &v.CommitsLast30d, &v.Contributors)
	if err != nil {
		return nil, wrapGetError("dev activity", err)
	}
	return &v, nil
}

// UpsertSentiment replaces the sentiment snapshot for a token.
func (s *MarketContextStore) UpsertSentiment(ctx context.Context, v domain.SentimentScore) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO token_sentiment (token, score, sample_size, as_of_ms)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE
		SET score = EXCLUDED.score, sample_size = EXCLUDED.sample_size, as_of_ms = EXCLUDED.as_of_ms
	`, strings.ToUpper(v.Token), v.Score, v.SampleSize, v.AsOfMs)
	if err != nil {
		return fmt.Errorf("upsert sentiment: %w", err)
	}
	return nil
}

// UpsertVotes replaces the community vote tally for a token.
func (s *MarketContextStore) UpsertVotes(ctx context.Context, v domain.VoteTally) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO community_votes (token, bullish, bearish)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE
		SET bullish = EXCLUDED.bullish, bearish = EXCLUDED.bearish
	`, strings.ToUpper(v.Token), v.Bullish, v.Bearish)
	if err != nil {
		return fmt.Errorf("upsert votes: %w", err)
	}
	return nil
}

func wrapGetError(what string, err error) error {
	if isNotFoundError(err) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("get %s: %w", what, err)
}
