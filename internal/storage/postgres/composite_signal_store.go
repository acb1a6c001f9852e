package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/storage"
)

// CompositeSignalStore implements storage.CompositeSignalStore using PostgreSQL.
// Tiers and traps are stored as JSONB.
type CompositeSignalStore struct {
	pool *Pool
}

// NewCompositeSignalStore creates a new CompositeSignalStore.
func NewCompositeSignalStore(pool *Pool) *CompositeSignalStore {
	return &CompositeSignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CompositeSignalStore = (*CompositeSignalStore)(nil)

const compositeColumns = `
	token, computed_at_ms, score, confidence, classification,
	tiers, traps, price_at_signal
`

// Insert adds a new signal. Returns ErrDuplicateKey if (token, computed_at_ms) exists.
func (s *CompositeSignalStore) Insert(ctx context.Context, sig *domain.CompositeSignal) error {
	tiers, err := json.Marshal(nonNilTiers(sig.Tiers))
	if err != nil {
		return fmt.Errorf("marshal tiers: %w", err)
	}
	traps, err := json.Marshal(nonNilTraps(sig.Traps))
	if err != nil {
		return fmt.Errorf("marshal traps: %w", err)
	}

	query := `INSERT INTO composite_signals (` + compositeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.pool.Exec(ctx, query,
		strings.ToUpper(sig.Token), sig.ComputedAtMs, sig.Score, sig.Confidence, sig.Classification,
		tiers, traps, sig.PriceAtSignal,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert composite signal: %w", err)
	}
	return nil
}

// GetLatest retrieves the most recent signal for a token. Returns ErrNotFound if none.
func (s *CompositeSignalStore) GetLatest(ctx context.Context, token string) (*domain.CompositeSignal, error) {
	query := `SELECT ` + compositeColumns + `
		FROM composite_signals
		WHERE token = $1
		ORDER BY computed_at_ms DESC
		LIMIT 1`

	sig, err := scanCompositeSignal(s.pool.QueryRow(ctx, query, strings.ToUpper(token)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest composite signal: %w", err)
	}
	return sig, nil
}

// GetByTimeRange retrieves signals for a token within [start, end] (inclusive).
func (s *CompositeSignalStore) GetByTimeRange(ctx context.Context, token string, start, end int64) ([]*domain.CompositeSignal, error) {
	query := `SELECT ` + compositeColumns + `
		FROM composite_signals
		WHERE token = $1 AND computed_at_ms >= $2 AND computed_at_ms <= $3
		ORDER BY computed_at_ms ASC`

	rows, err := s.pool.Query(ctx, query, strings.ToUpper(token), start, end)
	if err != nil {
		return nil, fmt.Errorf("get composite signals by time range: %w", err)
	}
	defer rows.Close()

	var signals []*domain.CompositeSignal
	for rows.Next() {
		sig, err := scanCompositeSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan composite signal: %w", err)
		}
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate composite signals: %w", err)
	}
	return signals, nil
}

func scanCompositeSignal(row pgx.Row) (*domain.CompositeSignal, error) {
	var sig domain.CompositeSignal
	var tiers, traps []byte

	err := row.Scan(
		&sig.Token, &sig.ComputedAtMs, &sig.Score, &sig.Confidence, &sig.Classification,
		&tiers, &traps, &sig.PriceAtSignal,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(tiers, &sig.Tiers); err != nil {
		return nil, fmt.Errorf("unmarshal tiers: %w", err)
	}
	if err := json.Unmarshal(traps, &sig.Traps); err != nil {
		return nil, fmt.Errorf("unmarshal traps: %w", err)
	}
	return &sig, nil
}

func nonNilTiers(v []domain.TierScore) []domain.TierScore {
	if v == nil {
		return []domain.TierScore{}
	}
	return v
}

func nonNilTraps(v []domain.Trap) []domain.Trap {
	if v == nil {
		return []domain.Trap{}
	}
	return v
}
