package memory

import (
	"context"
	"errors"
	"testing"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/storage"
)

func TestPriceTickStore_InsertBulkAndGetByTimeRange(t *testing.T) {
	store := NewPriceTickStore()
	ctx := context.Background()

	ticks := []*domain.PriceTick{
		{Token: "btc", TimestampMs: 3000, Price: 3},
		{Token: "BTC", TimestampMs: 1000, Price: 1},
		{Token: "BTC", TimestampMs: 2000, Price: 2},
		{Token: "ETH", TimestampMs: 2000, Price: 20},
	}
	if err := store.InsertBulk(ctx, ticks); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, "BTC", 1000, 2000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 ticks (inclusive range), got %d", len(result))
	}
	if result[0].TimestampMs != 1000 || result[1].TimestampMs != 2000 {
		t.Errorf("Expected ascending order, got %d, %d", result[0].TimestampMs, result[1].TimestampMs)
	}
}

func TestPriceTickStore_IntraBatchDuplicate(t *testing.T) {
	store := NewPriceTickStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.PriceTick{
		{Token: "BTC", TimestampMs: 1000, Price: 1},
		{Token: "btc", TimestampMs: 1000, Price: 1.1},
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}

	result, _ := store.GetByTimeRange(ctx, "BTC", 0, 5000)
	if len(result) != 0 {
		t.Errorf("Expected 0 ticks (rollback), got %d", len(result))
	}
}
