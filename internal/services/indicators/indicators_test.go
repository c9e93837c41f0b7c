package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SigFusion/internal/domain/models"
)

func candlesFromCloses(closes []float64) []models.Candle {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Bucket: base.Add(time.Duration(i) * time.Hour),
			Open:   c, Close: c,
			High: c + 0.2, Low: c - 0.2,
			Volume: 10,
		}
	}
	return out
}

func constantCloses(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

func TestComputeLogReturns(t *testing.T) {
	require.Nil(t, ComputeLogReturns(candlesFromCloses([]float64{100})))

	rets := ComputeLogReturns(candlesFromCloses([]float64{100, 110, 99}))
	require.Len(t, rets, 2)
	require.InDelta(t, math.Log(1.1), rets[0], 1e-12)
	require.InDelta(t, math.Log(0.9), rets[1], 1e-12)

	// non-positive closes produce a zero return, not NaN
	rets = ComputeLogReturns(candlesFromCloses([]float64{100, 0, 100}))
	require.Zero(t, rets[0])
	require.Zero(t, rets[1])
}

func TestEMA(t *testing.T) {
	require.Zero(t, EMA(candlesFromCloses(constantCloses(5, 100)), 10))

	// a constant series has itself as its average
	require.InDelta(t, 100.0, EMA(candlesFromCloses(constantCloses(60, 100)), 50), 1e-9)

	// a rising series keeps the EMA between start and last close
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	ema := EMA(candlesFromCloses(closes), 50)
	require.Greater(t, ema, closes[0])
	require.Less(t, ema, closes[len(closes)-1])
}

func TestRSI(t *testing.T) {
	require.InDelta(t, 50.0, RSI(candlesFromCloses(constantCloses(10, 100)), 14), 1e-9)

	up := make([]float64, 40)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	require.InDelta(t, 100.0, RSI(candlesFromCloses(up), 14), 1e-9)

	down := make([]float64, 40)
	for i := range down {
		down[i] = 200 - float64(i)
	}
	require.InDelta(t, 0.0, RSI(candlesFromCloses(down), 14), 1e-9)
}

func TestMACD(t *testing.T) {
	macd, signal := MACD(candlesFromCloses(constantCloses(20, 100)))
	require.Zero(t, macd)
	require.Zero(t, signal)

	macd, signal = MACD(candlesFromCloses(constantCloses(60, 100)))
	require.InDelta(t, 0.0, macd, 1e-9)
	require.InDelta(t, 0.0, signal, 1e-9)

	// in a sustained uptrend the fast EMA runs above the slow one
	up := make([]float64, 60)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	macd, _ = MACD(candlesFromCloses(up))
	require.Greater(t, macd, 0.0)
}

func TestATR(t *testing.T) {
	require.Zero(t, ATR(candlesFromCloses(constantCloses(5, 100)), 14))

	// constant candles with a 0.4 range have exactly that true range
	atr := ATR(candlesFromCloses(constantCloses(40, 100)), 14)
	require.InDelta(t, 0.4, atr, 1e-9)
}

func TestADX(t *testing.T) {
	// a flat market has no directional movement at all
	require.Zero(t, ADX(candlesFromCloses(constantCloses(60, 100)), 14))

	// a relentless one-way trend saturates the index
	up := make([]float64, 60)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	require.InDelta(t, 100.0, ADX(candlesFromCloses(up), 14), 1e-6)
}

func TestDivergenceNoneOnFlat(t *testing.T) {
	require.Zero(t, Divergence(candlesFromCloses(constantCloses(30, 100))))
	require.Zero(t, Divergence(candlesFromCloses(constantCloses(120, 100))))
}

func TestDivergenceBullish(t *testing.T) {
	// Closes drive RSI, wicks mark the swing lows: a steep selloff into
	// the first low, a calm recovery into a marginally lower second low.
	closes := constantCloses(120, 100)
	for i := 55; i <= 69; i++ {
		closes[i] = 100 - float64(i-54)*0.7
	}
	for i := 70; i <= 85; i++ {
		closes[i] = closes[69] + float64(i-69)*0.65
	}
	for i := 86; i < 120; i++ {
		closes[i] = closes[85] + float64(i-85)*0.05
	}
	candles := candlesFromCloses(closes)
	candles[69].Low = 80 // first swing low on a capitulation wick
	candles[105].Low = 78

	require.InDelta(t, 1.0, Divergence(candles), 1e-9)
}

func TestBuildSnapshot(t *testing.T) {
	require.Nil(t, BuildSnapshot("BTCUSDT", nil))

	// short history: price block only
	short := candlesFromCloses([]float64{100, 101, 102})
	snap := BuildSnapshot("BTCUSDT", short)
	require.NotNil(t, snap)
	require.True(t, snap.HasPrice)
	require.False(t, snap.HasIndicators)
	require.InDelta(t, 102.0, snap.Price, 1e-9)
	require.InDelta(t, 2.0, snap.Change24h, 1e-9)
	require.InDelta(t, 10*(100+101+102), snap.Volume24h, 1e-9)

	// long history fills the indicator block
	closes := make([]float64, 250)
	for i := range closes {
		closes[i] = 100 + math.Sin(float64(i)/10)*5
	}
	snap = BuildSnapshot("BTCUSDT", candlesFromCloses(closes))
	require.True(t, snap.HasIndicators)
	require.Greater(t, snap.EMA200, 0.0)
	require.Greater(t, snap.ATR, 0.0)
	require.GreaterOrEqual(t, snap.RSI, 0.0)
	require.LessOrEqual(t, snap.RSI, 100.0)
}

func TestPivotPoint(t *testing.T) {
	c := models.Candle{High: 110, Low: 90, Close: 100}
	require.InDelta(t, 100.0, PivotPoint(c), 1e-9)
}
