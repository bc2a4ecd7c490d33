package engine

import (
	"sort"

	"github.com/polycopy/ftsync/internal/model"
	"github.com/shopspring/decimal"
)

const (
	defaultKellyFraction = 0.25
	minMultiplier        = 0.5
	maxMultiplier        = 3.0
	// MaxEntryPrice caps the slippage-adjusted entry.
	MaxEntryPrice = 0.99
)

// Statistical confidence tiers by resolved trade count.
const (
	ConfidenceHigh         = "HIGH"
	ConfidenceMedium       = "MEDIUM"
	ConfidenceLow          = "LOW"
	ConfidenceInsufficient = "INSUFFICIENT"
)

var confidenceMultiplier = map[string]float64{
	ConfidenceInsufficient: 0.5,
	ConfidenceLow:          0.75,
	ConfidenceMedium:       1.0,
	ConfidenceHigh:         1.5,
}

// SizingInput carries everything an allocation method may look at.
type SizingInput struct {
	Method          model.Allocation
	BetSize         float64
	KellyFraction   float64
	MinBet          float64
	MaxBet          float64
	FixedMultiplier float64

	Bankroll        decimal.Decimal
	Edge            float64
	EntryPrice      float64
	Conviction      float64
	TradeCount      int
	Probability     *float64
	ValuePercentile float64
}

// SizeBet returns the bet in dollars, clamped to [MinBet, MaxBet] and rounded to cents.
// It does not check the bankroll.
func SizeBet(in SizingInput) decimal.Decimal {
	var bet decimal.Decimal
	switch in.Method {
	case model.AllocKelly:
		bet = kellyBase(in)
	case model.AllocEdgeScaled:
		bet = kellyBase(in).Mul(decimal.NewFromFloat(clamp(in.Edge/0.10, minMultiplier, maxMultiplier)))
	case model.AllocTiered:
		bet = kellyBase(in).Mul(decimal.NewFromFloat(edgeTier(in.Edge)))
	case model.AllocConfidence:
		tier := ConfidenceTier(in.TradeCount)
		if in.Probability != nil && *in.Probability >= 0.65 {
			tier = promote(tier)
		}
		bet = kellyBase(in).Mul(decimal.NewFromFloat(confidenceMultiplier[tier]))
	case model.AllocConviction:
		bet = kellyBase(in).Mul(decimal.NewFromFloat(clamp(in.Conviction, minMultiplier, maxMultiplier)))
	case model.AllocMLScaled:
		mult := 1.0
		if in.Probability != nil {
			mult = clamp(1+4*(*in.Probability-0.5), minMultiplier, maxMultiplier)
		}
		bet = kellyBase(in).Mul(decimal.NewFromFloat(mult))
	case model.AllocWhale:
		bet = kellyBase(in).Mul(decimal.NewFromFloat(0.5 + 2.5*clamp(in.ValuePercentile, 0, 1)))
	default:
		// FIXED and anything unrecognised
		mult := in.FixedMultiplier
		if mult <= 0 {
			mult = 1
		}
		bet = decimal.NewFromFloat(in.BetSize).Mul(decimal.NewFromFloat(mult))
	}

	if in.MinBet > 0 {
		if lo := decimal.NewFromFloat(in.MinBet); bet.LessThan(lo) {
			bet = lo
		}
	}
	if in.MaxBet > 0 {
		if hi := decimal.NewFromFloat(in.MaxBet); bet.GreaterThan(hi) {
			bet = hi
		}
	}
	return bet.Round(2)
}

// kellyBase is bankroll * kelly_fraction * edge / (1 - entry).
func kellyBase(in SizingInput) decimal.Decimal {
	if in.Edge <= 0 || in.EntryPrice >= 1 {
		return decimal.Zero
	}
	frac := in.KellyFraction
	if frac <= 0 {
		frac = defaultKellyFraction
	}
	f := decimal.NewFromFloat(in.Edge).Div(decimal.NewFromFloat(1 - in.EntryPrice))
	return in.Bankroll.Mul(decimal.NewFromFloat(frac)).Mul(f)
}

func edgeTier(edge float64) float64 {
	switch {
	case edge < 0.05:
		return 0.5
	case edge < 0.10:
		return 1.0
	case edge < 0.20:
		return 1.5
	default:
		return 2.0
	}
}

// ConfidenceTier grades how much history backs a trader's win rate.
func ConfidenceTier(tradeCount int) string {
	switch {
	case tradeCount >= 100:
		return ConfidenceHigh
	case tradeCount >= 30:
		return ConfidenceMedium
	case tradeCount >= 10:
		return ConfidenceLow
	default:
		return ConfidenceInsufficient
	}
}

func promote(tier string) string {
	switch tier {
	case ConfidenceInsufficient:
		return ConfidenceLow
	case ConfidenceLow:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}

// EntryPrice applies slippage to the trader's price, capped at MaxEntryPrice.
func EntryPrice(price, slippage float64) float64 {
	p := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(1 + slippage))
	if ceiling := decimal.NewFromFloat(MaxEntryPrice); p.GreaterThan(ceiling) {
		p = ceiling
	}
	return p.Round(4).InexactFloat64()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ValueRanks answers percentile queries over the run's candidate trade values.
type ValueRanks struct {
	sorted []float64
}

func NewValueRanks(trades []model.CandidateTrade) *ValueRanks {
	vals := make([]float64, len(trades))
	for i := range trades {
		vals[i] = trades[i].TradeValue
	}
	sort.Float64s(vals)
	return &ValueRanks{sorted: vals}
}

// Percentile is the share of other values strictly below v, in [0, 1].
func (r *ValueRanks) Percentile(v float64) float64 {
	if r == nil || len(r.sorted) < 2 {
		return 0.5
	}
	below := sort.SearchFloat64s(r.sorted, v)
	return clamp(float64(below)/float64(len(r.sorted)-1), 0, 1)
}
