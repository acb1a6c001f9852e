package domain

// FlowAggregate is the reduction of one token's whale transactions over one hour bucket.
type FlowAggregate struct {
	BuyVolume  float64 // summed USD value of BUY rows
	SellVolume float64 // summed USD value of SELL rows
	BuyCount   int
	SellCount  int
	TotalCount int // BuyCount + SellCount
}

// NetFlow returns buy volume minus sell volume.
func (a FlowAggregate) NetFlow() float64 {
	return a.BuyVolume - a.SellVolume
}

// TotalVolume returns buy volume plus sell volume.
func (a FlowAggregate) TotalVolume() float64 {
	return a.BuyVolume + a.SellVolume
}

// BuyPct returns the buy share of total volume in percent.
// Zero volume yields the neutral default of 50.
func (a FlowAggregate) BuyPct() float64 {
	total := a.TotalVolume()
	if total > 0 {
		return a.BuyVolume / total * 100
	}
	return 50
}

// HourBucket is a half-open interval [StartMs, StartMs+1h) indexed relative to a window start.
type HourBucket struct {
	Index   int
	StartMs int64
	EndMs   int64
}

// HourMs is one hour in milliseconds.
const HourMs int64 = 3_600_000

// HourBuckets returns the dense list of hour buckets for a window.
func HourBuckets(windowStartMs int64, hours int) []HourBucket {
	if hours <= 0 {
		return nil
	}
	buckets := make([]HourBucket, hours)
	for i := 0; i < hours; i++ {
		start := windowStartMs + int64(i)*HourMs
		buckets[i] = HourBucket{Index: i, StartMs: start, EndMs: start + HourMs}
	}
	return buckets
}
