package engine

import (
	"math"

	"SigFusion/internal/domain/models"
	"SigFusion/pkg/config"
)

// ProbabilityInputs carries everything the formula inspects.
type ProbabilityInputs struct {
	Score     float64
	Direction models.Direction
	Factors   models.FactorSet
	Conflict  bool // an override or correlation cap fired this round
}

// ProbabilityCalc computes the published probability of a verdict.
type ProbabilityCalc struct {
	cfg *config.EngineConfig
}

func NewProbabilityCalc(cfg *config.EngineConfig) *ProbabilityCalc {
	return &ProbabilityCalc{cfg: cfg}
}

// Compute starts from the configured base and layers strength,
// consensus and coverage bonuses against conflict and weakness
// penalties. Sideways verdicts are capped low; the result always lands
// in [floor, ceiling].
func (p *ProbabilityCalc) Compute(in ProbabilityInputs) float64 {
	pc := &p.cfg.Probability

	prob := pc.Base

	// strength: conviction scales probability directly
	prob += math.Abs(in.Score) * pc.ScoreFactor

	agree, avail := Consensus(in.Factors, in.Score)
	if avail > 0 {
		prob += float64(agree) / float64(avail) * pc.ConsensusMax
	}

	// coverage: more live sources, more trust
	if n := len(models.AllFactors); n > 0 {
		prob += float64(in.Factors.Coverage()) / float64(n) * pc.CoveragePct
	}

	if in.Conflict {
		prob -= 5
	}
	if avail > 0 && avail-agree == agree {
		prob -= 3 // evenly split factor camp
	}
	if weakFactors(in.Factors) {
		prob -= 3
	}
	if againstTrend(in) {
		prob -= 4
	}

	if in.Direction == models.DirectionSideways && prob > pc.SidewaysCap {
		prob = pc.SidewaysCap
	}

	return math.Max(pc.Floor, math.Min(pc.Ceiling, prob))
}

// weakFactors reports a round whose live scores are all faint.
func weakFactors(fs models.FactorSet) bool {
	sum, n := 0.0, 0
	for _, r := range fs {
		if !r.Available {
			continue
		}
		sum += math.Abs(r.Score)
		n++
	}
	return n > 0 && sum/float64(n) < 2
}

// againstTrend reports a call fighting the trend factor.
func againstTrend(in ProbabilityInputs) bool {
	t, ok := in.Factors[models.FactorTrend]
	if !ok || !t.Available {
		return false
	}
	if in.Direction.IsLong() && t.Score < 0 {
		return true
	}
	if in.Direction.IsShort() && t.Score > 0 {
		return true
	}
	return false
}
