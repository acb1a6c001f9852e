package simulation

import (
	"whaleflow-lab/internal/domain"
)

// priceIndex maps hour-aligned timestamps to closing prices.
type priceIndex map[int64]float64

func indexPrices(points []domain.PricePoint) priceIndex {
	idx := make(priceIndex, len(points))
	for _, p := range points {
		idx[p.TimestampMs] = p.Close
	}
	return idx
}

// priceAt returns the close whose timestamp equals target exactly.
// Unlike a nearest-earlier lookup, a gap is reported as missing so the
// trade is skipped instead of priced from a stale hour.
func (idx priceIndex) priceAt(target int64) (float64, bool) {
	p, ok := idx[target]
	if !ok || p <= 0 {
		return 0, false
	}
	return p, true
}
