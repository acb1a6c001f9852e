package domain

// PriceTick is one raw price observation from a provider.
// Corresponds to price_ticks table in ClickHouse.
type PriceTick struct {
	Token       string  // token symbol
	TimestampMs int64   // Unix timestamp in milliseconds
	Price       float64 // price in provider base currency (USD)
}

// PricePoint is an hour-aligned closing price in the run's target currency.
// Absence of a PricePoint for an hour means the price is unknown, never zero.
type PricePoint struct {
	Token       string  `json:"token"`
	TimestampMs int64   `json:"timestamp_ms"` // hour-aligned
	Close       float64 `json:"close"`
}
