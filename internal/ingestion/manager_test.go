package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/storage"
	"whaleflow-lab/internal/storage/memory"
)

type sliceSource struct {
	txs []*domain.RawTransaction
	err error
}

func (s *sliceSource) Fetch(context.Context) ([]*domain.RawTransaction, error) {
	return s.txs, s.err
}

// orderValidatingStore wraps a TransactionStore and validates ordering in InsertBulk.
type orderValidatingStore struct {
	storage.TransactionStore
	calls int
}

func (s *orderValidatingStore) InsertBulk(ctx context.Context, txs []*domain.RawTransaction) error {
	s.calls++
	if err := ValidateTransactionOrdering(txs); err != nil {
		return err
	}
	return s.TransactionStore.InsertBulk(ctx, txs)
}

func tx(hash string, ts int64) *domain.RawTransaction {
	return &domain.RawTransaction{
		Hash:             hash,
		Timestamp:        ts,
		Symbol:           "BTC",
		Classification:   domain.ClassificationBuy,
		USDValue:         1_000_000,
		CounterpartyType: domain.CounterpartyCEX,
	}
}

func TestManager_IngestTransactions_Ordering(t *testing.T) {
	source := &sliceSource{txs: []*domain.RawTransaction{
		tx("c", 3000), tx("a", 1000), tx("b", 1000),
	}}
	store := &orderValidatingStore{TransactionStore: memory.NewTransactionStore()}

	mgr := NewManager(ManagerOptions{Source: source, Store: store})
	res, err := mgr.IngestTransactions(context.Background())
	require.NoError(t, err, "Manager must sort before InsertBulk")
	assert.Equal(t, Result{Read: 3, Inserted: 3}, res)
	assert.Equal(t, 1, store.calls)
}

func TestManager_IngestTransactions_Batches(t *testing.T) {
	var txs []*domain.RawTransaction
	for i := 0; i < 7; i++ {
		txs = append(txs, tx(string(rune('a'+i)), int64(1000+i)))
	}
	store := &orderValidatingStore{TransactionStore: memory.NewTransactionStore()}

	mgr := NewManager(ManagerOptions{Source: &sliceSource{txs: txs}, Store: store, BatchSize: 3})
	res, err := mgr.IngestTransactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, res.Inserted)
	assert.Equal(t, 3, store.calls)
}

func TestManager_IngestTransactions_SkipsInvalidAndDuplicates(t *testing.T) {
	bad := tx("neg", 1000)
	bad.USDValue = -1
	source := &sliceSource{txs: []*domain.RawTransaction{
		tx("a", 1000), tx("a", 1000), bad, {Hash: "", Symbol: "BTC", Timestamp: 1}, nil,
	}}
	mgr := NewManager(ManagerOptions{Source: source, Store: memory.NewTransactionStore()})

	res, err := mgr.IngestTransactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Read: 5, Inserted: 1, Duplicates: 1, Invalid: 3}, res)
}

func TestManager_IngestTransactions_Rerun(t *testing.T) {
	store := memory.NewTransactionStore()
	ctx := context.Background()

	first := NewManager(ManagerOptions{Source: &sliceSource{txs: []*domain.RawTransaction{tx("a", 1000)}}, Store: store})
	_, err := first.IngestTransactions(ctx)
	require.NoError(t, err)

	// "a" is already stored; "b" must still land
	second := NewManager(ManagerOptions{Source: &sliceSource{txs: []*domain.RawTransaction{tx("a", 1000), tx("b", 2000)}}, Store: store})
	res, err := second.IngestTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Duplicates)

	rows, err := store.GetSignalRows(ctx, "BTC", 0, 10_000)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestManager_IngestTransactions_SourceError(t *testing.T) {
	mgr := NewManager(ManagerOptions{Source: &sliceSource{err: errors.New("feed down")}, Store: memory.NewTransactionStore()})
	_, err := mgr.IngestTransactions(context.Background())
	assert.ErrorContains(t, err, "feed down")
}

func TestManager_NilSource(t *testing.T) {
	res, err := NewManager(ManagerOptions{}).IngestTransactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestReadNDJSON(t *testing.T) {
	input := `{"hash":"h1","timestamp_ms":1704067200000,"symbol":"btc","classification":"buy","usd_value":2500000,"counterparty_type":"cex"}

{"hash":"h2","timestamp_ms":1704067260000,"symbol":"ETH","classification":"SELL","usd_value":900000,"counterparty_type":"DEX"}
`
	txs, err := ReadNDJSON(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, "BTC", txs[0].Symbol)
	assert.Equal(t, domain.ClassificationBuy, txs[0].Classification)
	assert.Equal(t, domain.CounterpartyCEX, txs[0].CounterpartyType)
	assert.True(t, txs[0].IsSignalEligible())
	assert.Equal(t, int64(1704067260000), txs[1].Timestamp)
}

func TestReadNDJSON_Malformed(t *testing.T) {
	_, err := ReadNDJSON(context.Background(), strings.NewReader("{\"hash\":\"h1\"}\n{oops\n"))
	assert.ErrorContains(t, err, "line 2")
}
