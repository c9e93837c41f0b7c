package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SigFusion/internal/domain/models"
)

// flatCandles builds n candles hugging price, with optional overrides
// applied afterwards by the caller.
func flatCandles(n int, price float64) []models.Candle {
	out := make([]models.Candle, n)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = models.Candle{
			Bucket: base.Add(time.Duration(i) * time.Hour),
			Open:   price, Close: price,
			High: price + 0.2, Low: price - 0.2,
		}
	}
	return out
}

func TestDetectSyntheticFallback(t *testing.T) {
	d := NewLevelDetector(testEngineConfig(t))

	// too little history falls back to percentage levels
	support, resistance := d.Detect(flatCandles(5, 100), 100)
	require.Len(t, support, 3)
	require.Len(t, resistance, 3)
	for _, lvl := range support {
		require.Equal(t, "synthetic", lvl.Source)
		require.Equal(t, "support", lvl.Kind)
		require.Less(t, lvl.Price, 100.0)
	}
	require.InDelta(t, 99.0, support[0].Price, 1e-9)
	require.InDelta(t, 103.0, resistance[2].Price, 1e-9)
}

func TestDetectRejectsBadPrice(t *testing.T) {
	d := NewLevelDetector(testEngineConfig(t))
	support, resistance := d.Detect(flatCandles(50, 100), 0)
	require.Nil(t, support)
	require.Nil(t, resistance)
}

func TestDetectSwingLevels(t *testing.T) {
	d := NewLevelDetector(testEngineConfig(t))

	candles := flatCandles(40, 100)
	candles[12].Low = 95 // swing low
	candles[28].High = 105.5

	support, resistance := d.Detect(candles, 100)

	require.NotEmpty(t, support)
	require.Equal(t, "support", support[0].Kind)
	require.InDelta(t, 95.0, support[0].Price, 1e-9)
	require.Equal(t, "swing", support[0].Source)

	require.NotEmpty(t, resistance)
	// nearest-first ordering
	for i := 1; i < len(resistance); i++ {
		require.Greater(t, resistance[i].Price, resistance[i-1].Price)
	}
	require.LessOrEqual(t, len(support), 3)
	require.LessOrEqual(t, len(resistance), 3)
}

func TestCountTouches(t *testing.T) {
	d := NewLevelDetector(testEngineConfig(t))

	candles := flatCandles(20, 100)
	candles[3].Low = 95.2
	candles[9].Low = 94.9
	candles[15].Low = 95.0

	// 1% tolerance around the level
	require.Equal(t, 3, d.countTouches(95, candles))
	require.Equal(t, 0, d.countTouches(80, candles))
}

func TestRoundNumbersNear(t *testing.T) {
	lvls := roundNumbersNear(37000)
	require.Equal(t, []float64{36000, 38000}, lvls)
	require.NotContains(t, lvls, 37000.0)

	require.Nil(t, roundNumbersNear(0))
}

func TestSwingStrengthGrading(t *testing.T) {
	require.Equal(t, 5, swingStrength(6))
	require.Equal(t, 4, swingStrength(3))
	require.Equal(t, 3, swingStrength(2))
	require.Equal(t, 2, swingStrength(0))
}

func TestDedupeLevelsKeepsStronger(t *testing.T) {
	levels := []models.SRLevel{
		{Price: 100.0, Strength: 2},
		{Price: 100.3, Strength: 4},
		{Price: 110.0, Strength: 1},
	}
	out := dedupeLevels(levels, 1.0)
	require.Len(t, out, 2)
	require.Equal(t, 4, out[0].Strength)
	require.InDelta(t, 100.3, out[0].Price, 1e-9)
}
