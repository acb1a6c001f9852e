// Package idhash derives deterministic identifiers from natural keys.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|TOKEN|entry_time_ms|direction)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	runID string,
	token string,
	entryTimeMs int64,
	direction string,
) string {
	data := fmt.Sprintf("%s|%s|%d|%s",
		runID,
		strings.ToUpper(token),
		entryTimeMs,
		direction,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
