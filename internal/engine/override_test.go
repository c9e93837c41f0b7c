package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"SigFusion/internal/domain/models"
)

func TestResolveExtremeRSI(t *testing.T) {
	r := NewResolver(testEngineConfig(t))
	fs := fullFactorSet(3)

	// deeply oversold flips a short call positive at full magnitude
	score, note := r.Resolve(-40, fs, OverrideInputs{RSI: 15, HasRSI: true})
	require.InDelta(t, 40.0, score, 1e-9)
	require.Contains(t, note, "oversold")

	// a faint short is forced to at least half the strong band
	score, _ = r.Resolve(-4, fs, OverrideInputs{RSI: 15, HasRSI: true})
	require.InDelta(t, 10.0, score, 1e-9)

	// deeply overbought mirrors
	score, note = r.Resolve(35, fs, OverrideInputs{RSI: 85, HasRSI: true})
	require.InDelta(t, -35.0, score, 1e-9)
	require.Contains(t, note, "overbought")

	// overbought holds an already-short aggregate short, still noted
	score, note = r.Resolve(-35, fs, OverrideInputs{RSI: 85, HasRSI: true})
	require.InDelta(t, -35.0, score, 1e-9)
	require.Contains(t, note, "overbought")

	// a flat aggregate is still forced off zero
	score, _ = r.Resolve(0, fs, OverrideInputs{RSI: 15, HasRSI: true})
	require.InDelta(t, 10.0, score, 1e-9)

	// without live RSI data the rule never fires
	score, note = r.Resolve(-40, fs, OverrideInputs{RSI: 15})
	require.InDelta(t, -40.0, score, 1e-9)
	require.Empty(t, note)
}

func TestResolveExtremeRSIBeatsStrongSignals(t *testing.T) {
	r := NewResolver(testEngineConfig(t))
	fs := fullFactorSet(3)

	// two strong bears line up against a long aggregate, but RSI 19 is
	// extreme oversold: the hard rule fires first and keeps it positive
	score, note := r.Resolve(30, fs, OverrideInputs{
		RSI: 19, HasRSI: true,
		FearGreed: 85, HasFearGreed: true,
		FlowRatio: 0.05, HasFlowRatio: true,
	})
	require.InDelta(t, 30.0, score, 1e-9)
	require.Contains(t, note, "oversold")

	// mirrored: strong bulls cannot rescue an extreme overbought reading
	score, note = r.Resolve(-30, fs, OverrideInputs{
		RSI: 82, HasRSI: true,
		FearGreed: 10, HasFearGreed: true,
		FlowRatio: 20, HasFlowRatio: true,
	})
	require.InDelta(t, -30.0, score, 1e-9)
	require.Contains(t, note, "overbought")
}

func TestResolveStrongSignalFlip(t *testing.T) {
	r := NewResolver(testEngineConfig(t))
	fs := fullFactorSet(3)

	// two contrarian bulls against a short aggregate flip it
	score, note := r.Resolve(-30, fs, OverrideInputs{
		RSI: 22, HasRSI: true,
		FearGreed: 20, HasFearGreed: true,
	})
	require.InDelta(t, 30.0, score, 1e-9)
	require.Contains(t, note, "strong bull signals")

	// one strong signal alone is not enough
	score, note = r.Resolve(-30, fs, OverrideInputs{FearGreed: 20, HasFearGreed: true})
	require.InDelta(t, -30.0, score, 1e-9)
	require.Empty(t, note)

	// bears: greedy crowd plus heavy whale deposits against a long
	score, note = r.Resolve(30, fs, OverrideInputs{
		FearGreed: 80, HasFearGreed: true,
		FlowRatio: 0.05, HasFlowRatio: true,
	})
	require.InDelta(t, -30.0, score, 1e-9)
	require.Contains(t, note, "strong bear signals")

	// a large MACD histogram relative to price counts as a strong signal
	score, note = r.Resolve(-30, fs, OverrideInputs{
		RSI: 22, HasRSI: true,
		MACDHist: 1.0, Price: 100,
	})
	require.InDelta(t, 30.0, score, 1e-9)
	require.Contains(t, note, "macd")
}

func TestResolveNeutralMajority(t *testing.T) {
	r := NewResolver(testEngineConfig(t))

	fs := models.FactorSet{
		models.FactorWhales:    {Score: 0, Available: true},
		models.FactorTrend:     {Score: 0, Available: true},
		models.FactorMomentum:  {Score: 0, Available: true},
		models.FactorVolume:    {Score: 4, Available: true},
		models.FactorSentiment: {Score: 2, Available: true},
	}
	score, note := r.Resolve(18, fs, OverrideInputs{})
	require.InDelta(t, 9.0, score, 1e-9)
	require.Contains(t, note, "neutral majority")

	// exactly half neutral is not a majority
	fs[models.FactorADX] = models.FactorReading{Score: 1, Available: true}
	score, note = r.Resolve(18, fs, OverrideInputs{})
	require.InDelta(t, 18.0, score, 1e-9)
	require.Empty(t, note)
}

func TestResolveNoOp(t *testing.T) {
	r := NewResolver(testEngineConfig(t))
	score, note := r.Resolve(42, fullFactorSet(5), OverrideInputs{RSI: 55, HasRSI: true})
	require.InDelta(t, 42.0, score, 1e-9)
	require.Empty(t, note)
}
