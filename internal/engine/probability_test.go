package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"SigFusion/internal/domain/models"
)

func TestComputeFullConsensus(t *testing.T) {
	p := NewProbabilityCalc(testEngineConfig(t))

	// every factor live and agreeing: base + strength + consensus + coverage
	prob := p.Compute(ProbabilityInputs{
		Score:     60,
		Direction: models.DirectionStrongLong,
		Factors:   fullFactorSet(5),
	})
	require.InDelta(t, 50+60*0.12+12+8, prob, 1e-9)
}

func TestComputeFloorOnEmptyRound(t *testing.T) {
	p := NewProbabilityCalc(testEngineConfig(t))

	prob := p.Compute(ProbabilityInputs{
		Score:     0,
		Direction: models.DirectionSideways,
		Factors:   models.FactorSet{},
	})
	require.InDelta(t, 50.0, prob, 1e-9)
}

func TestComputeConflictPenalty(t *testing.T) {
	p := NewProbabilityCalc(testEngineConfig(t))

	in := ProbabilityInputs{
		Score:     60,
		Direction: models.DirectionStrongLong,
		Factors:   fullFactorSet(5),
	}
	clean := p.Compute(in)
	in.Conflict = true
	require.InDelta(t, clean-5, p.Compute(in), 1e-9)
}

func TestComputeEvenSplitPenalty(t *testing.T) {
	p := NewProbabilityCalc(testEngineConfig(t))

	fs := models.FactorSet{
		models.FactorWhales:      {Score: 5, Available: true},
		models.FactorTrend:       {Score: 5, Available: true},
		models.FactorMomentum:    {Score: -5, Available: true},
		models.FactorDerivatives: {Score: -5, Available: true},
	}
	prob := p.Compute(ProbabilityInputs{Score: 10, Direction: models.DirectionLong, Factors: fs})
	// 2/4 consensus, 4/10 coverage, minus the split penalty
	require.InDelta(t, 50+10*0.12+6+3.2-3, prob, 1e-9)
}

func TestComputeWeakFactorsPenalty(t *testing.T) {
	p := NewProbabilityCalc(testEngineConfig(t))

	strong := p.Compute(ProbabilityInputs{Score: 30, Direction: models.DirectionStrongLong, Factors: fullFactorSet(5)})
	faint := p.Compute(ProbabilityInputs{Score: 30, Direction: models.DirectionStrongLong, Factors: fullFactorSet(1)})
	require.InDelta(t, strong-3, faint, 1e-9)
}

func TestComputeAgainstTrendPenalty(t *testing.T) {
	p := NewProbabilityCalc(testEngineConfig(t))

	fs := fullFactorSet(5)
	fs[models.FactorTrend] = models.FactorReading{Factor: models.FactorTrend, Score: -5, Available: true}

	with := p.Compute(ProbabilityInputs{Score: 40, Direction: models.DirectionLong, Factors: fs})
	fs[models.FactorTrend] = models.FactorReading{Factor: models.FactorTrend, Score: 5, Available: true}
	without := p.Compute(ProbabilityInputs{Score: 40, Direction: models.DirectionLong, Factors: fs})

	// flipping trend against the call costs the trend penalty plus its
	// lost consensus share
	require.InDelta(t, without-4-1.2, with, 1e-9)
}

func TestComputeSidewaysCap(t *testing.T) {
	p := NewProbabilityCalc(testEngineConfig(t))

	prob := p.Compute(ProbabilityInputs{
		Score:     4,
		Direction: models.DirectionSideways,
		Factors:   fullFactorSet(5),
	})
	require.InDelta(t, 58.0, prob, 1e-9)
}

func TestComputeCeiling(t *testing.T) {
	p := NewProbabilityCalc(testEngineConfig(t))

	prob := p.Compute(ProbabilityInputs{
		Score:     150, // correlation cannot produce this, but the clamp must hold
		Direction: models.DirectionStrongLong,
		Factors:   fullFactorSet(9),
	})
	require.InDelta(t, 85.0, prob, 1e-9)
}
