package price

import "strings"

// DefaultSymbols maps token symbols to CoinGecko coin ids.
var DefaultSymbols = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"XRP":   "ripple",
	"BNB":   "binancecoin",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"TRX":   "tron",
	"AVAX":  "avalanche-2",
	"DOT":   "polkadot",
	"LINK":  "chainlink",
	"MATIC": "matic-network",
	"LTC":   "litecoin",
	"SHIB":  "shiba-inu",
	"UNI":   "uniswap",
	"ATOM":  "cosmos",
	"XLM":   "stellar",
	"ARB":   "arbitrum",
	"OP":    "optimism",
	"PEPE":  "pepe",
	"USDT":  "tether",
	"USDC":  "usd-coin",
}

// SymbolMap resolves token symbols to provider identifiers.
type SymbolMap map[string]string

// NewSymbolMap returns DefaultSymbols merged with overrides. Keys are case-insensitive.
func NewSymbolMap(overrides map[string]string) SymbolMap {
	m := make(SymbolMap, len(DefaultSymbols)+len(overrides))
	for k, v := range DefaultSymbols {
		m[k] = v
	}
	for k, v := range overrides {
		m[strings.ToUpper(k)] = v
	}
	return m
}

// Resolve returns the provider id for a symbol.
func (m SymbolMap) Resolve(symbol string) (string, bool) {
	id, ok := m[strings.ToUpper(symbol)]
	return id, ok && id != ""
}
