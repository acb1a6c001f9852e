// Package composite blends whale flow, price momentum, sentiment, social and
// community data into one bounded score per token.
package composite

import (
	"fmt"
	"math"
	"sort"

	"whaleflow-lab/internal/domain"
)

// Tier weights. Unavailable tiers are dropped and the rest renormalized.
const (
	WeightOnChain   = 0.40
	WeightMomentum  = 0.25
	WeightSentiment = 0.20
	WeightCommunity = 0.15
)

// Classification thresholds on the 0..100 score.
const (
	BullishScore = 60.0
	BearishScore = 40.0
)

// Trap thresholds.
const (
	SingleWhaleShare = 0.5     // largest transaction share of window volume
	ThinVolumeUSD    = 50000.0 // total window volume below this is thin
	LowSampleCount   = 5       // fewer transactions than this is a low sample
	DivergencePct    = 2.0     // 24h price move against flow direction
)

// Momentum horizon weights; missing horizons are renormalized out.
var horizonWeights = []struct {
	name   string
	weight float64
	scale  float64 // percent move that saturates the horizon
	value  func(*domain.PriceMomentum) *float64
}{
	{"1h", 0.10, 2, func(m *domain.PriceMomentum) *float64 { return m.Change1h }},
	{"24h", 0.40, 8, func(m *domain.PriceMomentum) *float64 { return m.Change24h }},
	{"7d", 0.30, 20, func(m *domain.PriceMomentum) *float64 { return m.Change7d }},
	{"30d", 0.20, 40, func(m *domain.PriceMomentum) *float64 { return m.Change30d }},
}

// FlowWindow is the whale flow of the current window half and the one before it.
type FlowWindow struct {
	Current      domain.FlowAggregate
	Previous     domain.FlowAggregate
	LargestTxUSD float64 // largest single signal-eligible transaction in Current
}

// Inputs are the gathered data sources for one token. A nil field is an
// unavailable source.
type Inputs struct {
	Token     string
	NowMs     int64
	Flow      *FlowWindow
	Momentum  *domain.PriceMomentum
	Sentiment *domain.SentimentScore
	Social    *domain.SocialMetrics
	Votes     *domain.VoteTally
	Dev       *domain.DevActivity
}

// Score combines inputs into a CompositeSignal. It is deterministic and
// never fails: with no available tier the result is a neutral 50 with zero confidence.
func Score(in Inputs) domain.CompositeSignal {
	tiers := []domain.TierScore{
		onChainTier(in.Flow),
		momentumTier(in.Momentum),
		sentimentTier(in.Sentiment, in.Social),
		communityTier(in.Votes, in.Dev),
	}

	totalWeight := 0.0
	for _, t := range tiers {
		if t.Available {
			totalWeight += t.Weight
		}
	}

	score, confidence := 50.0, 0.0
	if totalWeight > 0 {
		score, confidence = 0, 0
		for i := range tiers {
			if !tiers[i].Available {
				tiers[i].Weight = 0
				continue
			}
			tiers[i].Weight /= totalWeight
			score += tiers[i].Weight * tiers[i].Score
			confidence += tiers[i].Weight * tiers[i].Confidence
		}
	} else {
		for i := range tiers {
			tiers[i].Weight = 0
		}
	}

	sig := domain.CompositeSignal{
		Token:          in.Token,
		ComputedAtMs:   in.NowMs,
		Score:          round2(clamp(score, 0, 100)),
		Confidence:     round2(clamp(confidence, 0, 1)),
		Classification: classify(score),
		Tiers:          tiers,
		Traps:          detectTraps(in.Flow, in.Momentum, tiers[0]),
	}
	if in.Momentum != nil && in.Momentum.Price > 0 {
		p := in.Momentum.Price
		sig.PriceAtSignal = &p
	}
	return sig
}

func classify(score float64) string {
	switch {
	case score >= BullishScore:
		return domain.CompositeBullish
	case score <= BearishScore:
		return domain.CompositeBearish
	default:
		return domain.CompositeNeutral
	}
}

func onChainTier(f *FlowWindow) domain.TierScore {
	t := domain.TierScore{Tier: domain.TierOnChain, Weight: WeightOnChain, Score: 50, Factors: []string{}}
	if f == nil || f.Current.TotalCount == 0 {
		return t
	}
	cur := f.Current

	// Buy pressure in [-1, 1] carries most of the tier; acceleration of net
	// flow against the previous window adds up to +/-10 points.
	pressure := (cur.BuyPct() - 50) / 50
	accel := 0.0
	if denom := math.Max(cur.TotalVolume(), f.Previous.TotalVolume()); denom > 0 {
		accel = clamp((cur.NetFlow()-f.Previous.NetFlow())/denom, -1, 1)
	}

	t.Available = true
	t.Score = round2(clamp(50+40*pressure+10*accel, 0, 100))
	t.Confidence = round2(math.Min(1, float64(cur.TotalCount)/20))
	t.Factors = append(t.Factors,
		fmt.Sprintf("buy pressure %.1f%%", cur.BuyPct()),
		fmt.Sprintf("net flow $%.1fK", cur.NetFlow()/1000),
		fmt.Sprintf("net flow change vs prior window $%.1fK", (cur.NetFlow()-f.Previous.NetFlow())/1000),
		fmt.Sprintf("%d whale transactions", cur.TotalCount),
	)
	return t
}

func momentumTier(m *domain.PriceMomentum) domain.TierScore {
	t := domain.TierScore{Tier: domain.TierMomentum, Weight: WeightMomentum, Score: 50, Factors: []string{}}
	if m == nil {
		return t
	}

	sum, weights, present := 0.0, 0.0, 0
	for _, h := range horizonWeights {
		v := h.value(m)
		if v == nil || math.IsNaN(*v) {
			continue
		}
		present++
		sum += h.weight * clamp(*v/h.scale, -1, 1)
		weights += h.weight
		t.Factors = append(t.Factors, fmt.Sprintf("%s %+.2f%%", h.name, *v))
	}
	if present == 0 {
		return t
	}

	t.Available = true
	t.Score = round2(clamp(50+50*sum/weights, 0, 100))
	t.Confidence = round2(float64(present) / float64(len(horizonWeights)))
	return t
}

func sentimentTier(s *domain.SentimentScore, soc *domain.SocialMetrics) domain.TierScore {
	t := domain.TierScore{Tier: domain.TierSentiment, Weight: WeightSentiment, Score: 50, Factors: []string{}}

	var scores, confs []float64
	if s != nil {
		scores = append(scores, 50+50*clamp(s.Score, -1, 1))
		confs = append(confs, math.Min(1, float64(s.SampleSize)/50))
		t.Factors = append(t.Factors, fmt.Sprintf("sentiment %+.2f (n=%d)", s.Score, s.SampleSize))
	}
	if soc != nil {
		scores = append(scores, clamp(soc.EngagementScore, 0, 100))
		conf := 0.5
		if soc.Rank > 0 {
			conf = 1
		}
		confs = append(confs, conf)
		t.Factors = append(t.Factors, fmt.Sprintf("social engagement %.1f rank %d", soc.EngagementScore, soc.Rank))
	}
	if len(scores) == 0 {
		return t
	}

	t.Available = true
	t.Score = round2(mean(scores))
	t.Confidence = round2(mean(confs))
	return t
}

func communityTier(v *domain.VoteTally, d *domain.DevActivity) domain.TierScore {
	t := domain.TierScore{Tier: domain.TierCommunity, Weight: WeightCommunity, Score: 50, Factors: []string{}}

	votes := 0
	if v != nil {
		votes = v.Bullish + v.Bearish
	}
	if votes == 0 && d == nil {
		return t
	}

	score := 50.0
	conf := 0.0
	if votes > 0 {
		score = float64(v.Bullish) / float64(votes) * 100
		conf = math.Min(1, float64(votes)/100)
		t.Factors = append(t.Factors, fmt.Sprintf("votes %d bullish / %d bearish", v.Bullish, v.Bearish))
	}
	if d != nil {
		// Active development nudges the tier up by at most 10 points.
		score += math.Min(10, float64(d.CommitsLast30d)/10)
		conf = math.Max(conf, math.Min(1, float64(d.Contributors)/10))
		t.Factors = append(t.Factors, fmt.Sprintf("%d commits by %d contributors in 30d", d.CommitsLast30d, d.Contributors))
	}

	t.Available = true
	t.Score = round2(clamp(score, 0, 100))
	t.Confidence = round2(conf)
	return t
}

// detectTraps flags conditions under which the on-chain read is misleading.
// Traps are sorted by code.
func detectTraps(f *FlowWindow, m *domain.PriceMomentum, onChain domain.TierScore) []domain.Trap {
	traps := []domain.Trap{}
	if f != nil && f.Current.TotalCount > 0 {
		cur := f.Current
		vol := cur.TotalVolume()
		if vol > 0 && f.LargestTxUSD/vol > SingleWhaleShare {
			traps = append(traps, domain.Trap{
				Code:        domain.TrapSingleWhale,
				Description: fmt.Sprintf("one transaction is %.0f%% of whale volume", f.LargestTxUSD/vol*100),
			})
		}
		if vol < ThinVolumeUSD {
			traps = append(traps, domain.Trap{
				Code:        domain.TrapThinVolume,
				Description: fmt.Sprintf("whale volume $%.1fK below $%.0fK", vol/1000, ThinVolumeUSD/1000),
			})
		}
		if cur.TotalCount < LowSampleCount {
			traps = append(traps, domain.Trap{
				Code:        domain.TrapLowSample,
				Description: fmt.Sprintf("only %d whale transactions", cur.TotalCount),
			})
		}
	}
	if onChain.Available && m != nil && m.Change24h != nil {
		ch := *m.Change24h
		if (onChain.Score >= BullishScore && ch <= -DivergencePct) || (onChain.Score <= BearishScore && ch >= DivergencePct) {
			traps = append(traps, domain.Trap{
				Code:        domain.TrapDivergence,
				Description: fmt.Sprintf("flow score %.1f against 24h price move %+.2f%%", onChain.Score, ch),
			})
		}
	}
	sort.Slice(traps, func(i, j int) bool { return traps[i].Code < traps[j].Code })
	return traps
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	s := 0.0
	for _, v := range vs {
		s += v
	}
	return s / float64(len(vs))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
