package engine

import (
	"fmt"
	"math"

	"SigFusion/internal/domain/models"
)

// factor score bounds
const (
	scoreMin = -10.0
	scoreMax = 10.0
)

// NormalizeInput carries the raw collaborator payloads for one round.
// Nil blocks mean the source was missing; the corresponding factor is
// scored neutral and flagged unavailable.
type NormalizeInput struct {
	Market      *models.MarketSnapshot
	Whales      *models.WhaleFlows
	Derivatives *models.DerivativesSnapshot
	Sentiment   *models.SentimentSnapshot
	Macro       *models.MacroSnapshot
	Options     *models.OptionsSnapshot
}

// Normalizer converts raw payloads into bounded factor scores.
type Normalizer struct{}

func NewNormalizer() *Normalizer { return &Normalizer{} }

// Normalize produces a complete FactorSet. It never fails: a missing
// block yields a neutral reading with Available=false.
func (n *Normalizer) Normalize(in NormalizeInput) models.FactorSet {
	fs := make(models.FactorSet, len(models.AllFactors))
	for _, f := range models.AllFactors {
		fs[f] = models.FactorReading{Factor: f}
	}

	if in.Whales != nil {
		fs[models.FactorWhales] = n.whales(in.Whales)
	}
	if in.Derivatives != nil {
		fs[models.FactorDerivatives] = n.derivatives(in.Derivatives)
	}
	if in.Market != nil && in.Market.HasIndicators {
		fs[models.FactorTrend] = n.trend(in.Market)
		fs[models.FactorMomentum] = n.momentum(in.Market)
		fs[models.FactorADX] = n.adx(in.Market)
		fs[models.FactorDivergence] = n.divergence(in.Market)
	}
	if in.Market != nil && in.Market.HasPrice {
		fs[models.FactorVolume] = n.volume(in.Market)
	}
	if in.Sentiment != nil {
		fs[models.FactorSentiment] = n.sentiment(in.Sentiment)
	}
	if in.Macro != nil {
		fs[models.FactorMacro] = n.macro(in.Macro)
	}
	if in.Options != nil {
		fs[models.FactorOptions] = n.options(in.Options)
	}
	return fs
}

func clampScore(v float64) float64 {
	return math.Max(scoreMin, math.Min(scoreMax, v))
}

// whales: net withdrawal pressure is bullish (coins leaving exchanges),
// net deposits bearish. Flows beyond $10M force a strong reading.
func (n *Normalizer) whales(w *models.WhaleFlows) models.FactorReading {
	const strongFlowUSD = 10_000_000

	total := w.DepositsUSD + w.WithdrawalsUSD
	var score float64
	if total > 0 {
		score = (w.WithdrawalsUSD - w.DepositsUSD) / total * 10
	}
	net := w.WithdrawalsUSD - w.DepositsUSD
	if net > strongFlowUSD && score < 6 {
		score = 6
	}
	if net < -strongFlowUSD && score > -6 {
		score = -6
	}
	return models.FactorReading{
		Factor:    models.FactorWhales,
		Score:     clampScore(score),
		Available: true,
		Detail:    fmt.Sprintf("net=%.0f txs=%d", net, w.TxCount),
	}
}

// derivatives: open-interest vs price quadrant, crowd positioning via
// long/short ratio, and extreme funding as a contrarian signal.
func (n *Normalizer) derivatives(d *models.DerivativesSnapshot) models.FactorReading {
	const (
		oiThreshold      = 1.0  // percent
		priceThreshold   = 0.5  // percent
		fundingExtreme   = 0.001
		lsCrowdedLong    = 1.5
		lsLeanLong       = 1.1
		lsLeanShort      = 0.9
		lsCrowdedShort   = 0.7
	)

	var score float64
	var quad string
	switch {
	case d.OpenInterestChg > oiThreshold && d.PriceChg > priceThreshold:
		score += 5 // new longs funding the move
		quad = "oi_up_price_up"
	case d.OpenInterestChg > oiThreshold && d.PriceChg < -priceThreshold:
		score -= 5 // fresh shorts pressing
		quad = "oi_up_price_down"
	case d.OpenInterestChg < -oiThreshold && d.PriceChg > priceThreshold:
		score += 2 // short covering
		quad = "oi_down_price_up"
	case d.OpenInterestChg < -oiThreshold && d.PriceChg < -priceThreshold:
		score -= 2 // longs unwinding
		quad = "oi_down_price_down"
	default:
		quad = "flat"
	}

	if d.LongShortRatio > 0 {
		switch {
		case d.LongShortRatio > lsCrowdedLong:
			score -= 3 // crowded longs, contrarian
		case d.LongShortRatio > lsLeanLong:
			score += 1
		case d.LongShortRatio < lsCrowdedShort:
			score += 3
		case d.LongShortRatio < lsLeanShort:
			score -= 1
		}
	}

	if d.FundingRate > fundingExtreme {
		score -= 2
	} else if d.FundingRate < -fundingExtreme {
		score += 2
	}

	return models.FactorReading{
		Factor:    models.FactorDerivatives,
		Score:     clampScore(score),
		Available: true,
		Detail:    fmt.Sprintf("quad=%s ls=%.2f funding=%.4f", quad, d.LongShortRatio, d.FundingRate),
	}
}

func (n *Normalizer) trend(m *models.MarketSnapshot) models.FactorReading {
	var score float64
	switch {
	case m.Price > m.EMA50 && m.EMA50 > m.EMA200:
		score = 7
		if m.Change24h > 3 {
			score = 10
		}
	case m.Price < m.EMA50 && m.EMA50 < m.EMA200:
		score = -7
		if m.Change24h < -3 {
			score = -10
		}
	case m.Price > m.EMA200:
		score = 3
	case m.Price < m.EMA200:
		score = -3
	}
	return models.FactorReading{
		Factor:    models.FactorTrend,
		Score:     clampScore(score),
		Available: true,
		Detail:    fmt.Sprintf("ema50=%.2f ema200=%.2f", m.EMA50, m.EMA200),
	}
}

// momentum treats extreme RSI as contrarian and MACD cross as trend
// confirmation.
func (n *Normalizer) momentum(m *models.MarketSnapshot) models.FactorReading {
	var score float64
	switch {
	case m.RSI < 30:
		score += 4
	case m.RSI > 70:
		score -= 4
	}

	hist := m.MACD - m.MACDSignal
	if hist > 0 {
		score += 3
	} else if hist < 0 {
		score -= 3
	}
	if m.Price > 0 && math.Abs(hist) > m.Price*0.005 {
		if hist > 0 {
			score += 3
		} else {
			score -= 3
		}
	}
	return models.FactorReading{
		Factor:    models.FactorMomentum,
		Score:     clampScore(score),
		Available: true,
		Detail:    fmt.Sprintf("rsi=%.1f macd_hist=%.4f", m.RSI, hist),
	}
}

// volume: heavy turnover amplifies the day's direction. 10B USD is the
// line between ordinary and elevated interest for majors.
func (n *Normalizer) volume(m *models.MarketSnapshot) models.FactorReading {
	const heavyVolumeUSD = 10_000_000_000

	var score float64
	if math.Abs(m.Change24h) > 0.5 {
		score = 5
		if m.Volume24h > heavyVolumeUSD {
			score = 10
		}
		if m.Change24h < 0 {
			score = -score
		}
	}
	return models.FactorReading{
		Factor:    models.FactorVolume,
		Score:     clampScore(score),
		Available: true,
		Detail:    fmt.Sprintf("vol24h=%.0f chg=%.2f%%", m.Volume24h, m.Change24h),
	}
}

// adx has no direction of its own; it scales with trend strength and
// takes the sign of the day's move.
func (n *Normalizer) adx(m *models.MarketSnapshot) models.FactorReading {
	var score float64
	if m.ADX > 20 {
		score = math.Min((m.ADX-20)/3, 10)
		if m.Change24h < 0 {
			score = -score
		}
	}
	return models.FactorReading{
		Factor:    models.FactorADX,
		Score:     clampScore(score),
		Available: true,
		Detail:    fmt.Sprintf("adx=%.1f", m.ADX),
	}
}

func (n *Normalizer) divergence(m *models.MarketSnapshot) models.FactorReading {
	// Divergence is precomputed from candle history: +1 bullish,
	// -1 bearish, 0 none. Fractional values scale the reading.
	return models.FactorReading{
		Factor:    models.FactorDivergence,
		Score:     clampScore(m.Divergence * 7),
		Available: true,
	}
}

// sentiment: fear & greed is contrarian at the extremes.
func (n *Normalizer) sentiment(s *models.SentimentSnapshot) models.FactorReading {
	fg := float64(s.FearGreed)
	var score float64
	switch {
	case fg < 25:
		score = (25 - fg) / 3 // extreme fear, lean long
	case fg > 75:
		score = -(fg - 75) / 3 // extreme greed, lean short
	case fg < 45:
		score = 1
	case fg > 55:
		score = -1
	}
	return models.FactorReading{
		Factor:    models.FactorSentiment,
		Score:     clampScore(score),
		Available: true,
		Detail:    fmt.Sprintf("fg=%d", s.FearGreed),
	}
}

// macro: dollar strength is inversely correlated with crypto, equities
// directly, gold weakly. Raw block lands on +-15 and is rescaled.
func (n *Normalizer) macro(m *models.MacroSnapshot) models.FactorReading {
	var raw float64
	if m.DXYChange > 0.3 {
		raw -= 8
	} else if m.DXYChange < -0.3 {
		raw += 8
	}
	if m.SP500Change > 0.5 {
		raw += 6
	} else if m.SP500Change < -0.5 {
		raw -= 6
	}
	if m.GoldChange > 0.3 {
		raw += 3
	} else if m.GoldChange < -0.3 {
		raw -= 3
	}
	raw = math.Max(-15, math.Min(15, raw))
	return models.FactorReading{
		Factor:    models.FactorMacro,
		Score:     clampScore(raw * 10 / 15),
		Available: true,
		Detail:    fmt.Sprintf("dxy=%.2f spx=%.2f gold=%.2f", m.DXYChange, m.SP500Change, m.GoldChange),
	}
}

// options: put/call ratio read contrarian. A crowd loaded with puts is
// fuel for upside.
func (n *Normalizer) options(o *models.OptionsSnapshot) models.FactorReading {
	pcr := o.PutCallRatio
	var raw float64
	switch {
	case pcr > 1.3:
		raw = 10
	case pcr > 1.1:
		raw = 5
	case pcr < 0.7 && pcr > 0:
		raw = -10
	case pcr < 0.9 && pcr > 0:
		raw = -5
	}
	raw = math.Max(-12, math.Min(12, raw))
	return models.FactorReading{
		Factor:    models.FactorOptions,
		Score:     clampScore(raw * 10 / 12),
		Available: true,
		Detail:    fmt.Sprintf("pcr=%.3f", pcr),
	}
}
