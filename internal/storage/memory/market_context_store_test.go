package memory

import (
	"context"
	"errors"
	"testing"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/storage"
)

func TestMarketContextStore_SetAndGet(t *testing.T) {
	store := NewMarketContextStore()
	ctx := context.Background()

	store.SetSentiment(domain.SentimentScore{Token: "sol", Score: 0.5, SampleSize: 10})
	store.SetDevActivity(domain.DevActivity{Token: "SOL", CommitsLast30d: 120, Contributors: 14})

	sentiment, err := store.GetSentiment(ctx, "SOL")
	if err != nil {
		t.Fatalf("GetSentiment failed: %v", err)
	}
	if sentiment.Score != 0.5 {
		t.Errorf("Expected score 0.5, got %f", sentiment.Score)
	}

	dev, err := store.GetDevActivity(ctx, "sol")
	if err != nil {
		t.Fatalf("GetDevActivity failed: %v", err)
	}
	if dev.Contributors != 14 {
		t.Errorf("Expected 14 contributors, got %d", dev.Contributors)
	}

	if _, err := store.GetVotes(ctx, "SOL"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for votes, got %v", err)
	}
	if _, err := store.GetSocial(ctx, "SOL"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for social, got %v", err)
	}
}
