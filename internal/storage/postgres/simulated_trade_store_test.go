package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/storage"
)

func TestSimulatedTradeStore_InsertBulkAndGetByRunID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSimulatedTradeStore(pool)
	ctx := context.Background()

	trades := []*domain.SimulatedTrade{
		{
			TradeID: "t1", RunID: "run-1", Token: "BTC",
			EntryTimeMs: 0, ExitTimeMs: 3_600_000, Direction: domain.DirectionBullish,
			EntryPrice: ptr(100.0), ExitPrice: ptr(102.0), Notional: 100,
			GrossPnL: 2, FeesCost: 0.3, NetPnL: 1.7, ReturnPct: 1.7,
		},
		{
			TradeID: "t2", RunID: "run-1", Token: "BTC",
			EntryTimeMs: 3_600_000, ExitTimeMs: 7_200_000, Direction: domain.DirectionBearish,
			EntryPrice: ptr(102.0), Notional: 100,
			Skipped: true, SkipReason: domain.SkipReasonMissingPrice,
		},
	}
	require.NoError(t, store.InsertBulk(ctx, trades))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.DirectionBullish, got[0].Direction)
	require.NotNil(t, got[0].ExitPrice)
	assert.Equal(t, 102.0, *got[0].ExitPrice)
	assert.Equal(t, 1.7, got[0].NetPnL)

	assert.True(t, got[1].Skipped)
	assert.Nil(t, got[1].ExitPrice)
	assert.Equal(t, domain.SkipReasonMissingPrice, got[1].SkipReason)

	none, err := store.GetByRunID(ctx, "run-404")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSimulatedTradeStore_InsertBulk_DuplicateRollsBack(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSimulatedTradeStore(pool)
	ctx := context.Background()

	trades := []*domain.SimulatedTrade{
		{TradeID: "a", RunID: "run-1", Token: "ETH", Direction: domain.DirectionBullish},
		{TradeID: "a", RunID: "run-1", Token: "ETH", Direction: domain.DirectionBullish},
	}
	err := store.InsertBulk(ctx, trades)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}
