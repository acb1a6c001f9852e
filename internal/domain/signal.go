package domain

import "encoding/json"

// Direction is the directional label of a signal. The empty value means no signal.
type Direction string

const (
	DirectionNone    Direction = ""
	DirectionBullish Direction = "BULLISH"
	DirectionBearish Direction = "BEARISH"
)

// IsTradeable reports whether the direction opens a simulated trade.
func (d Direction) IsTradeable() bool {
	return d == DirectionBullish || d == DirectionBearish
}

// MarshalJSON encodes DirectionNone as JSON null.
func (d Direction) MarshalJSON() ([]byte, error) {
	if d == DirectionNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(d))
}

// UnmarshalJSON decodes JSON null as DirectionNone.
func (d *Direction) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = DirectionNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*d = Direction(s)
	return nil
}

// HourlySignal is one token's classification for one hour bucket.
type HourlySignal struct {
	Token         string    `json:"token"`
	HourIndex     int       `json:"hour_index"`
	BucketStartMs int64     `json:"bucket_start_ms"`
	Signal        Direction `json:"signal"`
	BuyPct        float64   `json:"buy_pct"`
	NetFlowUSD    float64   `json:"net_flow_usd"`
	TxCount       int       `json:"tx_count"`
	Reason        string    `json:"reason"`
}

// Reason codes for null signals
const (
	ReasonNoData = "NO_DATA"
)
