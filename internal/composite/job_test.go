package composite

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/price"
	"whaleflow-lab/internal/storage"
	"whaleflow-lab/internal/storage/memory"
)

type recordingBroadcaster struct {
	mu      sync.Mutex
	signals []*domain.CompositeSignal
	notify  chan struct{}
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{notify: make(chan struct{}, 16)}
}

func (b *recordingBroadcaster) Broadcast(sig *domain.CompositeSignal) {
	b.mu.Lock()
	b.signals = append(b.signals, sig)
	b.mu.Unlock()
	b.notify <- struct{}{}
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.signals)
}

func newTestJob(t *testing.T, tokens []string, store storage.CompositeSignalStore, b Broadcaster) *Job {
	t.Helper()
	scorer := NewScorer(ScorerOptions{
		Transactions: seedTransactions(t),
		Market:       memory.NewMarketContextStore(),
		Now:          func() time.Time { return testNow },
	})
	return NewJob(JobOptions{
		Scorer:      scorer,
		Store:       store,
		Broadcaster: b,
		Tokens:      tokens,
		Interval:    time.Hour,
	})
}

func TestJob_RunOncePersistsAndBroadcasts(t *testing.T) {
	store := memory.NewCompositeSignalStore()
	b := newRecordingBroadcaster()
	job := newTestJob(t, []string{"BTC", "ETH"}, store, b)

	signals, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, "BTC", signals[0].Token)
	assert.Equal(t, "ETH", signals[1].Token)
	assert.Equal(t, 2, b.count())

	latest, err := store.GetLatest(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, testNow.UnixMilli(), latest.ComputedAtMs)
	assert.Equal(t, signals[1].Score, latest.Score)
}

func TestJob_RunOnceDuplicateIsNotFatal(t *testing.T) {
	store := memory.NewCompositeSignalStore()
	job := newTestJob(t, []string{"BTC"}, store, nil)

	_, err := job.RunOnce(context.Background())
	require.NoError(t, err)

	// same clock, same key
	signals, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, signals, 1)
}

func TestJob_AutoDetectTokens(t *testing.T) {
	job := newTestJob(t, nil, memory.NewCompositeSignalStore(), nil)

	signals, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, "BTC", signals[0].Token)
	assert.Equal(t, "ETH", signals[1].Token)
}

func TestJob_RunStopsOnCancel(t *testing.T) {
	b := newRecordingBroadcaster()
	job := newTestJob(t, []string{"BTC"}, nil, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- job.Run(ctx) }()

	select {
	case <-b.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("first tick did not broadcast")
	}
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// timedMomentum records when each momentum call starts.
type timedMomentum struct {
	mu    sync.Mutex
	calls []time.Time
}

func (m *timedMomentum) Momentum(_ context.Context, token string) (*domain.PriceMomentum, error) {
	m.mu.Lock()
	m.calls = append(m.calls, time.Now())
	m.mu.Unlock()
	return &domain.PriceMomentum{Token: token, Price: 1}, nil
}

func TestJob_RunOnceSpacesMomentumCalls(t *testing.T) {
	momentum := &timedMomentum{}
	scorer := NewScorer(ScorerOptions{
		Transactions:    seedTransactions(t),
		Momentum:        momentum,
		MomentumLimiter: price.NewLimiter(40*time.Millisecond, 0, 0),
		Now:             func() time.Time { return testNow },
	})
	job := NewJob(JobOptions{
		Scorer:      scorer,
		Tokens:      []string{"A", "B", "C", "D", "E", "F"},
		Parallelism: 4,
	})

	signals, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 6)

	momentum.mu.Lock()
	calls := append([]time.Time(nil), momentum.calls...)
	momentum.mu.Unlock()
	require.Len(t, calls, 6)
	sort.Slice(calls, func(i, j int) bool { return calls[i].Before(calls[j]) })
	for i := 1; i < len(calls); i++ {
		assert.GreaterOrEqual(t, calls[i].Sub(calls[i-1]), 30*time.Millisecond, "call %d", i)
	}
}

func TestScorer_MomentumLimiterRefusalDropsTier(t *testing.T) {
	limiter := price.NewLimiter(time.Hour, 0, 0)
	require.True(t, limiter.Allow(), "spend the only slot")
	scorer := NewScorer(ScorerOptions{
		Momentum:        stubMomentum{m: &domain.PriceMomentum{Token: "BTC", Price: 1}},
		MomentumLimiter: limiter,
		Now:             func() time.Time { return testNow },
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	in, err := scorer.Gather(ctx, "BTC")
	require.NoError(t, err)
	assert.Nil(t, in.Momentum)
}
