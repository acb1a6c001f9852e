package domain

// Composite classification labels
const (
	CompositeBullish = "BULLISH"
	CompositeBearish = "BEARISH"
	CompositeNeutral = "NEUTRAL"
)

// Composite tier names
const (
	TierOnChain   = "on_chain"
	TierMomentum  = "momentum"
	TierSentiment = "sentiment_social"
	TierCommunity = "community"
)

// TierScore is the contribution of one data tier to a composite signal.
type TierScore struct {
	Tier       string   `json:"tier"`
	Score      float64  `json:"score"`      // 0..100, 50 neutral
	Confidence float64  `json:"confidence"` // 0..1
	Weight     float64  `json:"weight"`     // effective weight after renormalization
	Available  bool     `json:"available"`
	Factors    []string `json:"factors"`
}

// Trap is a detected anomaly that may make a signal misleading.
type Trap struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Trap codes
const (
	TrapSingleWhale = "SINGLE_WHALE_DOMINANCE"
	TrapThinVolume  = "THIN_VOLUME"
	TrapDivergence  = "PRICE_FLOW_DIVERGENCE"
	TrapLowSample   = "LOW_SAMPLE"
)

// CompositeSignal is one blended multi-tier score for a token.
// Corresponds to composite_signals table in PostgreSQL (append-only, keyed by token + computed_at).
type CompositeSignal struct {
	Token          string      `json:"token"`
	ComputedAtMs   int64       `json:"computed_at_ms"`
	Score          float64     `json:"score"`      // 0..100
	Confidence     float64     `json:"confidence"` // 0..1
	Classification string      `json:"classification"`
	Tiers          []TierScore `json:"tiers"`
	Traps          []Trap      `json:"traps"`
	PriceAtSignal  *float64    `json:"price_at_signal"`
}

// SentimentScore is a stored sentiment reading for a token (-1..1).
type SentimentScore struct {
	Token      string
	Score      float64
	SampleSize int
	AsOfMs     int64
}

// SocialMetrics is a social engagement snapshot for a token.
type SocialMetrics struct {
	Token           string
	EngagementScore float64 // 0..100
	Rank            int     // 1 is best, 0 unknown
	AsOfMs          int64
}

// VoteTally is the community vote count for a token.
type VoteTally struct {
	Token   string
	Bullish int
	Bearish int
}

// DevActivity is a developer activity snapshot for a token.
type DevActivity struct {
	Token          string
	CommitsLast30d int
	Contributors   int
}

// PriceMomentum holds percentage price changes over multiple horizons.
type PriceMomentum struct {
	Token     string
	Price     float64
	Change1h  *float64
	Change24h *float64
	Change7d  *float64
	Change30d *float64
}
