package ingestion

import (
	"context"

	"whaleflow-lab/internal/domain"
)

// TransactionSource provides raw whale transactions from an external feed.
type TransactionSource interface {
	// Fetch returns every transaction the source holds. Records may be
	// unordered; Manager enforces deterministic ordering.
	Fetch(ctx context.Context) ([]*domain.RawTransaction, error)
}
