package memory

import (
	"context"
	"errors"
	"testing"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/storage"
)

func whaleTx(hash, symbol, class, cp string, ts int64, usd float64) *domain.RawTransaction {
	return &domain.RawTransaction{
		Hash:             hash,
		Timestamp:        ts,
		Symbol:           symbol,
		Classification:   class,
		USDValue:         usd,
		CounterpartyType: cp,
	}
}

func TestTransactionStore_GetSignalRowsFiltersNoise(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	txs := []*domain.RawTransaction{
		whaleTx("h1", "BTC", "BUY", "CEX", 1000, 50000),
		whaleTx("h2", "BTC", "sell", "dex", 2000, 20000),   // case-insensitive
		whaleTx("h3", "BTC", "TRANSFER", "CEX", 2500, 9e6), // noise
		whaleTx("h4", "BTC", "BUY", "OTHER", 3000, 7e6),    // noise
		whaleTx("h5", "BTC", "", "CEX", 3100, 1e6),         // unclassified
		whaleTx("h6", "ETH", "BUY", "CEX", 1500, 1e6),      // other token
	}
	if err := store.InsertBulk(ctx, txs); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	rows, err := store.GetSignalRows(ctx, "btc", 0, 10000)
	if err != nil {
		t.Fatalf("GetSignalRows failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0].Hash != "h1" || rows[1].Hash != "h2" {
		t.Errorf("Expected rows ordered by timestamp, got %s, %s", rows[0].Hash, rows[1].Hash)
	}
}

func TestTransactionStore_EndIsExclusive(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	_ = store.InsertBulk(ctx, []*domain.RawTransaction{
		whaleTx("h1", "BTC", "BUY", "CEX", 0, 1),
		whaleTx("h2", "BTC", "BUY", "CEX", domain.HourMs, 1),
	})

	rows, _ := store.GetSignalRows(ctx, "BTC", 0, domain.HourMs)
	if len(rows) != 1 || rows[0].Hash != "h1" {
		t.Errorf("Expected only h1 in [0, 1h), got %d rows", len(rows))
	}
}

func TestTransactionStore_NoRowsIsNotError(t *testing.T) {
	store := NewTransactionStore()

	rows, err := store.GetSignalRows(context.Background(), "DOGE", 0, 1000)
	if err != nil {
		t.Errorf("Expected no error for empty result, got %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Expected 0 rows, got %d", len(rows))
	}
}

func TestTransactionStore_DuplicateHash(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	batch := []*domain.RawTransaction{
		whaleTx("h1", "BTC", "BUY", "CEX", 1000, 1),
		whaleTx("h1", "BTC", "SELL", "CEX", 2000, 1),
	}
	err := store.InsertBulk(ctx, batch)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	rows, _ := store.GetSignalRows(ctx, "BTC", 0, 10000)
	if len(rows) != 0 {
		t.Errorf("Expected batch rollback, got %d rows", len(rows))
	}
}

func TestTransactionStore_RejectsNegativeValue(t *testing.T) {
	store := NewTransactionStore()

	err := store.InsertBulk(context.Background(), []*domain.RawTransaction{
		whaleTx("h1", "BTC", "BUY", "CEX", 1000, -5),
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestTransactionStore_GetActiveSymbols(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	_ = store.InsertBulk(ctx, []*domain.RawTransaction{
		whaleTx("a1", "ETH", "BUY", "CEX", 100, 1),
		whaleTx("a2", "ETH", "SELL", "DEX", 200, 1),
		whaleTx("a3", "BTC", "BUY", "CEX", 300, 1),
		whaleTx("a4", "SOL", "TRANSFER", "CEX", 400, 1), // not eligible
		whaleTx("a5", "ADA", "BUY", "CEX", 500, 1),
	})

	symbols, err := store.GetActiveSymbols(ctx, 0, 1000, 2)
	if err != nil {
		t.Fatalf("GetActiveSymbols failed: %v", err)
	}
	if len(symbols) != 2 {
		t.Fatalf("Expected 2 symbols, got %d", len(symbols))
	}
	if symbols[0] != "ETH" || symbols[1] != "ADA" {
		t.Errorf("Expected [ETH ADA], got %v", symbols)
	}
}
