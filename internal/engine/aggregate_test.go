package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"SigFusion/internal/domain/models"
)

func fullFactorSet(score float64) models.FactorSet {
	fs := make(models.FactorSet, len(models.AllFactors))
	for _, f := range models.AllFactors {
		fs[f] = models.FactorReading{Factor: f, Score: score, Available: true}
	}
	return fs
}

func TestNewAggregatorValidation(t *testing.T) {
	cfg := testEngineConfig(t)

	_, err := NewAggregator(cfg)
	require.NoError(t, err)

	missing := testEngineConfig(t)
	missing.Weights = map[string]float64{"whales": 1.0}
	_, err = NewAggregator(missing)
	require.ErrorContains(t, err, "missing weight")

	negative := testEngineConfig(t)
	negative.Weights = map[string]float64{}
	for f, w := range cfg.Weights {
		negative.Weights[f] = w
	}
	negative.Weights["whales"] = -0.1
	_, err = NewAggregator(negative)
	require.ErrorContains(t, err, "negative weight")

	skewed := testEngineConfig(t)
	skewed.Weights = map[string]float64{}
	for f, w := range cfg.Weights {
		skewed.Weights[f] = w * 2
	}
	_, err = NewAggregator(skewed)
	require.ErrorContains(t, err, "sum")
}

func TestAggregateWorkingScore(t *testing.T) {
	agg, err := NewAggregator(testEngineConfig(t))
	require.NoError(t, err)

	// unanimous maximum lands exactly on the working ceiling
	require.InDelta(t, 100.0, agg.Aggregate(fullFactorSet(10)), 1e-9)
	require.InDelta(t, -100.0, agg.Aggregate(fullFactorSet(-10)), 1e-9)
	require.Zero(t, agg.Aggregate(fullFactorSet(0)))

	// a single live factor contributes weight * score * 10
	fs := fullFactorSet(0)
	fs[models.FactorWhales] = models.FactorReading{Factor: models.FactorWhales, Score: 4, Available: true}
	require.InDelta(t, 0.25*4*10, agg.Aggregate(fs), 1e-9)

	// out-of-band scores are clamped before weighting
	fs[models.FactorWhales] = models.FactorReading{Factor: models.FactorWhales, Score: 50, Available: true}
	require.InDelta(t, 0.25*10*10, agg.Aggregate(fs), 1e-9)
}

func TestDirectionFor(t *testing.T) {
	cases := []struct {
		score float64
		want  models.Direction
	}{
		{25, models.DirectionStrongLong},
		{20, models.DirectionLong}, // band edge is exclusive
		{10, models.DirectionLong},
		{5, models.DirectionSideways},
		{0, models.DirectionSideways},
		{-5, models.DirectionSideways},
		{-10, models.DirectionShort},
		{-20, models.DirectionShort},
		{-25, models.DirectionStrongShort},
	}
	for _, c := range cases {
		require.Equal(t, c.want, DirectionFor(c.score), "score %v", c.score)
	}
}

func TestConsensus(t *testing.T) {
	fs := models.FactorSet{
		models.FactorWhales:      {Score: 5, Available: true},
		models.FactorTrend:       {Score: 3, Available: true},
		models.FactorMomentum:    {Score: -2, Available: true},
		models.FactorSentiment:   {Score: 0, Available: true},
		models.FactorDerivatives: {Score: 8, Available: false},
	}

	agree, avail := Consensus(fs, 40)
	require.Equal(t, 4, avail)
	require.Equal(t, 2, agree)

	agree, _ = Consensus(fs, -40)
	require.Equal(t, 1, agree)

	// a zero total agrees with nothing
	agree, _ = Consensus(fs, 0)
	require.Zero(t, agree)
}
