package price

import (
	"sort"

	"whaleflow-lab/internal/domain"
)

// HourFloor returns the start of the hour containing ts (milliseconds).
func HourFloor(ts int64) int64 {
	return ts - ts%domain.HourMs
}

// Resample converts ticks to the target currency by dividing by fxRate and keeps
// the last tick of each hour bucket as that hour's close. Hours without ticks
// produce no point. The result is ordered by time.
func Resample(token string, ticks []*domain.PriceTick, fxRate float64) []domain.PricePoint {
	if len(ticks) == 0 || fxRate <= 0 {
		return nil
	}

	type last struct {
		ts    int64
		price float64
	}
	closes := make(map[int64]last)
	for _, t := range ticks {
		if t == nil {
			continue
		}
		bucket := HourFloor(t.TimestampMs)
		cur, ok := closes[bucket]
		// >= keeps the later of two ticks sharing a timestamp.
		if !ok || t.TimestampMs >= cur.ts {
			closes[bucket] = last{ts: t.TimestampMs, price: t.Price / fxRate}
		}
	}

	points := make([]domain.PricePoint, 0, len(closes))
	for bucket, c := range closes {
		points = append(points, domain.PricePoint{Token: token, TimestampMs: bucket, Close: c.price})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].TimestampMs < points[j].TimestampMs
	})
	return points
}

// Index maps hour-aligned timestamps to closing prices.
func Index(points []domain.PricePoint) map[int64]float64 {
	idx := make(map[int64]float64, len(points))
	for _, p := range points {
		idx[p.TimestampMs] = p.Close
	}
	return idx
}
