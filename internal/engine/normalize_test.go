package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"SigFusion/internal/domain/models"
)

func TestNormalizeMissingBlocks(t *testing.T) {
	fs := NewNormalizer().Normalize(NormalizeInput{})

	require.Len(t, fs, len(models.AllFactors))
	require.Equal(t, 0, fs.Coverage())
	for _, f := range models.AllFactors {
		r := fs[f]
		require.False(t, r.Available)
		require.Zero(t, r.Score)
	}
}

func TestNormalizeWhales(t *testing.T) {
	n := NewNormalizer()

	// proportional imbalance below the strong-flow threshold
	r := n.whales(&models.WhaleFlows{DepositsUSD: 1_000_000, WithdrawalsUSD: 3_000_000})
	require.True(t, r.Available)
	require.InDelta(t, 5.0, r.Score, 1e-9)

	// one-sided outflow saturates
	r = n.whales(&models.WhaleFlows{WithdrawalsUSD: 20_000_000})
	require.InDelta(t, 10.0, r.Score, 1e-9)

	// large net outflow floors the score even when the imbalance is mild
	r = n.whales(&models.WhaleFlows{DepositsUSD: 45_000_000, WithdrawalsUSD: 60_000_000})
	require.InDelta(t, 6.0, r.Score, 1e-9)

	// mirror case for net inflow
	r = n.whales(&models.WhaleFlows{DepositsUSD: 60_000_000, WithdrawalsUSD: 45_000_000})
	require.InDelta(t, -6.0, r.Score, 1e-9)

	// no flows at all stays neutral but available
	r = n.whales(&models.WhaleFlows{})
	require.True(t, r.Available)
	require.Zero(t, r.Score)
}

func TestNormalizeDerivatives(t *testing.T) {
	n := NewNormalizer()

	// OI up with price up: new longs
	r := n.derivatives(&models.DerivativesSnapshot{OpenInterestChg: 2, PriceChg: 1, LongShortRatio: 1.0})
	require.InDelta(t, 5.0, r.Score, 1e-9)

	// OI up with price down: fresh shorts
	r = n.derivatives(&models.DerivativesSnapshot{OpenInterestChg: 2, PriceChg: -1, LongShortRatio: 1.0})
	require.InDelta(t, -5.0, r.Score, 1e-9)

	// OI down with price up: short covering, weaker bullish
	r = n.derivatives(&models.DerivativesSnapshot{OpenInterestChg: -2, PriceChg: 1, LongShortRatio: 1.0})
	require.InDelta(t, 2.0, r.Score, 1e-9)

	// crowded longs are a contrarian short
	r = n.derivatives(&models.DerivativesSnapshot{LongShortRatio: 2.0})
	require.InDelta(t, -3.0, r.Score, 1e-9)

	// crowded shorts are a contrarian long
	r = n.derivatives(&models.DerivativesSnapshot{LongShortRatio: 0.5})
	require.InDelta(t, 3.0, r.Score, 1e-9)

	// extreme positive funding leans short
	r = n.derivatives(&models.DerivativesSnapshot{LongShortRatio: 1.0, FundingRate: 0.002})
	require.InDelta(t, -2.0, r.Score, 1e-9)

	// components stack: quadrant -5, crowded shorts +3, funding +2
	r = n.derivatives(&models.DerivativesSnapshot{
		OpenInterestChg: 2, PriceChg: -1,
		LongShortRatio: 0.5,
		FundingRate:    -0.002,
	})
	require.InDelta(t, 0.0, r.Score, 1e-9)
}

func TestNormalizeTrend(t *testing.T) {
	n := NewNormalizer()

	bull := &models.MarketSnapshot{Price: 110, EMA50: 105, EMA200: 100, Change24h: 1}
	require.InDelta(t, 7.0, n.trend(bull).Score, 1e-9)

	bull.Change24h = 4
	require.InDelta(t, 10.0, n.trend(bull).Score, 1e-9)

	bear := &models.MarketSnapshot{Price: 90, EMA50: 95, EMA200: 100, Change24h: -1}
	require.InDelta(t, -7.0, n.trend(bear).Score, 1e-9)

	bear.Change24h = -4
	require.InDelta(t, -10.0, n.trend(bear).Score, 1e-9)

	// above EMA200 but stack not aligned
	mixed := &models.MarketSnapshot{Price: 102, EMA50: 103, EMA200: 100}
	require.InDelta(t, 3.0, n.trend(mixed).Score, 1e-9)

	mixed = &models.MarketSnapshot{Price: 98, EMA50: 97, EMA200: 100}
	require.InDelta(t, -3.0, n.trend(mixed).Score, 1e-9)
}

func TestNormalizeMomentum(t *testing.T) {
	n := NewNormalizer()

	// oversold RSI plus positive histogram
	m := &models.MarketSnapshot{Price: 100, RSI: 25, MACD: 0.1, MACDSignal: 0.0}
	require.InDelta(t, 7.0, n.momentum(m).Score, 1e-9)

	// overbought RSI plus negative histogram
	m = &models.MarketSnapshot{Price: 100, RSI: 75, MACD: -0.1, MACDSignal: 0.0}
	require.InDelta(t, -7.0, n.momentum(m).Score, 1e-9)

	// a histogram larger than 0.5% of price doubles its contribution
	m = &models.MarketSnapshot{Price: 100, RSI: 50, MACD: 1, MACDSignal: 0}
	require.InDelta(t, 6.0, n.momentum(m).Score, 1e-9)

	// neutral RSI, flat MACD
	m = &models.MarketSnapshot{Price: 100, RSI: 50}
	require.Zero(t, n.momentum(m).Score)
}

func TestNormalizeVolume(t *testing.T) {
	n := NewNormalizer()

	m := &models.MarketSnapshot{Change24h: 2, Volume24h: 5e9}
	require.InDelta(t, 5.0, n.volume(m).Score, 1e-9)

	m = &models.MarketSnapshot{Change24h: 2, Volume24h: 2e10}
	require.InDelta(t, 10.0, n.volume(m).Score, 1e-9)

	m = &models.MarketSnapshot{Change24h: -2, Volume24h: 2e10}
	require.InDelta(t, -10.0, n.volume(m).Score, 1e-9)

	// a flat day carries no volume signal regardless of turnover
	m = &models.MarketSnapshot{Change24h: 0.3, Volume24h: 2e10}
	require.Zero(t, n.volume(m).Score)
}

func TestNormalizeADX(t *testing.T) {
	n := NewNormalizer()

	require.Zero(t, n.adx(&models.MarketSnapshot{ADX: 18, Change24h: 1}).Score)
	require.InDelta(t, 5.0, n.adx(&models.MarketSnapshot{ADX: 35, Change24h: 1}).Score, 1e-9)
	require.InDelta(t, -5.0, n.adx(&models.MarketSnapshot{ADX: 35, Change24h: -1}).Score, 1e-9)
	require.InDelta(t, 10.0, n.adx(&models.MarketSnapshot{ADX: 80, Change24h: 1}).Score, 1e-9)
}

func TestNormalizeDivergence(t *testing.T) {
	n := NewNormalizer()

	require.InDelta(t, 7.0, n.divergence(&models.MarketSnapshot{Divergence: 1}).Score, 1e-9)
	require.InDelta(t, -7.0, n.divergence(&models.MarketSnapshot{Divergence: -1}).Score, 1e-9)
	require.Zero(t, n.divergence(&models.MarketSnapshot{}).Score)
}

func TestNormalizeSentiment(t *testing.T) {
	n := NewNormalizer()

	// extreme fear reads long, scaled by depth
	require.InDelta(t, 5.0, n.sentiment(&models.SentimentSnapshot{FearGreed: 10}).Score, 1e-9)
	// extreme greed reads short
	require.InDelta(t, -5.0, n.sentiment(&models.SentimentSnapshot{FearGreed: 90}).Score, 1e-9)
	// mild lean bands
	require.InDelta(t, 1.0, n.sentiment(&models.SentimentSnapshot{FearGreed: 40}).Score, 1e-9)
	require.InDelta(t, -1.0, n.sentiment(&models.SentimentSnapshot{FearGreed: 60}).Score, 1e-9)
	require.Zero(t, n.sentiment(&models.SentimentSnapshot{FearGreed: 50}).Score)
}

func TestNormalizeMacro(t *testing.T) {
	n := NewNormalizer()

	// weak dollar, strong equities, strong gold: raw 17 clamps to 15
	r := n.macro(&models.MacroSnapshot{DXYChange: -0.5, SP500Change: 1, GoldChange: 0.5})
	require.InDelta(t, 10.0, r.Score, 1e-9)

	r = n.macro(&models.MacroSnapshot{DXYChange: 0.5, SP500Change: -1, GoldChange: -0.5})
	require.InDelta(t, -10.0, r.Score, 1e-9)

	// nothing past its threshold
	r = n.macro(&models.MacroSnapshot{DXYChange: 0.1, SP500Change: 0.2, GoldChange: 0.1})
	require.Zero(t, r.Score)

	// equities alone: 6/15 rescaled
	r = n.macro(&models.MacroSnapshot{SP500Change: 1})
	require.InDelta(t, 4.0, r.Score, 1e-9)
}

func TestNormalizeOptions(t *testing.T) {
	n := NewNormalizer()

	require.InDelta(t, 10.0/1.2, n.options(&models.OptionsSnapshot{PutCallRatio: 1.5}).Score, 1e-9)
	require.InDelta(t, 5.0/1.2, n.options(&models.OptionsSnapshot{PutCallRatio: 1.2}).Score, 1e-9)
	require.InDelta(t, -10.0/1.2, n.options(&models.OptionsSnapshot{PutCallRatio: 0.5}).Score, 1e-9)
	require.InDelta(t, -5.0/1.2, n.options(&models.OptionsSnapshot{PutCallRatio: 0.8}).Score, 1e-9)
	require.Zero(t, n.options(&models.OptionsSnapshot{PutCallRatio: 1.0}).Score)
	// a zero ratio means no data, not infinite put skew
	require.Zero(t, n.options(&models.OptionsSnapshot{}).Score)
}

func TestNormalizeGatesOnSnapshotFlags(t *testing.T) {
	n := NewNormalizer()

	// price-only snapshot scores volume but not the indicator factors
	fs := n.Normalize(NormalizeInput{
		Market: &models.MarketSnapshot{Price: 100, Change24h: 2, Volume24h: 1e9, HasPrice: true},
	})
	require.True(t, fs[models.FactorVolume].Available)
	require.False(t, fs[models.FactorTrend].Available)
	require.False(t, fs[models.FactorMomentum].Available)
	require.Equal(t, 1, fs.Coverage())
}
