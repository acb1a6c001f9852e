package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/storage"
)

// PriceTickStore implements storage.PriceTickStore using ClickHouse.
// Ticks are archived in the provider's base currency.
type PriceTickStore struct {
	conn *Conn
}

// NewPriceTickStore creates a new PriceTickStore.
func NewPriceTickStore(conn *Conn) *PriceTickStore {
	return &PriceTickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceTickStore = (*PriceTickStore)(nil)

// InsertBulk adds multiple ticks. Fails entire batch on duplicate (token, timestamp_ms).
func (s *PriceTickStore) InsertBulk(ctx context.Context, ticks []*domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	type key struct {
		token       string
		timestampMs int64
	}
	seen := make(map[key]struct{}, len(ticks))
	for _, t := range ticks {
		k := key{strings.ToUpper(t.Token), t.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// MergeTree does not enforce uniqueness, so check existing rows first.
	for k := range seen {
		exists, err := s.exists(ctx, k.token, k.timestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO price_ticks (token, timestamp_ms, price)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range ticks {
		if err := batch.Append(strings.ToUpper(t.Token), t.TimestampMs, t.Price); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves ticks for a token within [start, end] (inclusive).
func (s *PriceTickStore) GetByTimeRange(ctx context.Context, token string, start, end int64) ([]*domain.PriceTick, error) {
	query := `
		SELECT token, timestamp_ms, price
		FROM price_ticks FINAL
		WHERE token = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, strings.ToUpper(token), start, end)
	if err != nil {
		return nil, fmt.Errorf("query price ticks: %w", err)
	}
	defer rows.Close()

	return scanPriceTicks(rows)
}

func (s *PriceTickStore) exists(ctx context.Context, token string, timestampMs int64) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM price_ticks WHERE token = ? AND timestamp_ms = ?`,
		token, timestampMs,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanPriceTicks(rows chRows) ([]*domain.PriceTick, error) {
	var ticks []*domain.PriceTick

	for rows.Next() {
		var t domain.PriceTick
		if err := rows.Scan(&t.Token, &t.TimestampMs, &t.Price); err != nil {
			return nil, fmt.Errorf("scan price tick row: %w", err)
		}
		ticks = append(ticks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price tick rows: %w", err)
	}
	return ticks, nil
}
