package ingestion

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"whaleflow-lab/internal/domain"
)

// record is one line of a newline-delimited JSON transaction export.
type record struct {
	Hash             string  `json:"hash"`
	TimestampMs      int64   `json:"timestamp_ms"`
	Symbol           string  `json:"symbol"`
	Classification   string  `json:"classification"`
	USDValue         float64 `json:"usd_value"`
	CounterpartyType string  `json:"counterparty_type"`
}

// FileSource reads transactions from an NDJSON file, one object per line.
// Blank lines are ignored.
type FileSource struct {
	path string
}

// NewFileSource creates a new FileSource.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Compile-time interface check.
var _ TransactionSource = (*FileSource)(nil)

// Fetch implements TransactionSource.
func (s *FileSource) Fetch(ctx context.Context) ([]*domain.RawTransaction, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()
	return ReadNDJSON(ctx, f)
}

// ReadNDJSON decodes transactions from r. A malformed line fails the read
// with its line number.
func ReadNDJSON(ctx context.Context, r io.Reader) ([]*domain.RawTransaction, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var txs []*domain.RawTransaction
	line := 0
	for scanner.Scan() {
		line++
		if line%1000 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		txs = append(txs, &domain.RawTransaction{
			Hash:             rec.Hash,
			Timestamp:        rec.TimestampMs,
			Symbol:           strings.ToUpper(rec.Symbol),
			Classification:   strings.ToUpper(rec.Classification),
			USDValue:         rec.USDValue,
			CounterpartyType: strings.ToUpper(rec.CounterpartyType),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read line %d: %w", line+1, err)
	}
	return txs, nil
}
