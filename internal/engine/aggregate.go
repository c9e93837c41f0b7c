package engine

import (
	"fmt"
	"math"

	"SigFusion/internal/domain/models"
	"SigFusion/pkg/config"
)

// Working-score direction bands. The weighted [-10, 10] total is
// scaled by 10 into [-100, 100] before banding.
const (
	workingScale   = 10.0
	strongBand     = 20.0
	directionBand  = 5.0
)

// Aggregator folds a FactorSet into a single working score.
type Aggregator struct {
	weights map[models.Factor]float64
}

// NewAggregator builds an aggregator from the configured weight table.
// The table must cover every factor and sum to 1.0; violations are
// construction errors.
func NewAggregator(cfg *config.EngineConfig) (*Aggregator, error) {
	w := make(map[models.Factor]float64, len(models.AllFactors))
	sum := 0.0
	for _, f := range models.AllFactors {
		v, ok := cfg.Weights[string(f)]
		if !ok {
			return nil, fmt.Errorf("aggregator: missing weight for factor %q", f)
		}
		if v < 0 {
			return nil, fmt.Errorf("aggregator: negative weight for factor %q", f)
		}
		w[f] = v
		sum += v
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return nil, fmt.Errorf("aggregator: weights sum to %v, want 1.0", sum)
	}
	return &Aggregator{weights: w}, nil
}

// Aggregate returns the weighted working score in [-100, 100].
// Unavailable factors contribute their neutral zero.
func (a *Aggregator) Aggregate(fs models.FactorSet) float64 {
	total := 0.0
	for f, w := range a.weights {
		r, ok := fs[f]
		if !ok {
			continue
		}
		total += w * math.Max(scoreMin, math.Min(scoreMax, r.Score))
	}
	return total * workingScale
}

// DirectionFor maps a working score to a direction band.
func DirectionFor(score float64) models.Direction {
	switch {
	case score > strongBand:
		return models.DirectionStrongLong
	case score > directionBand:
		return models.DirectionLong
	case score < -strongBand:
		return models.DirectionStrongShort
	case score < -directionBand:
		return models.DirectionShort
	default:
		return models.DirectionSideways
	}
}

// Consensus counts available factors agreeing with the score's sign
// against all available factors. Returns (agreeing, available).
func Consensus(fs models.FactorSet, score float64) (int, int) {
	agree, avail := 0, 0
	for _, r := range fs {
		if !r.Available {
			continue
		}
		avail++
		if score > 0 && r.Score > 0 {
			agree++
		} else if score < 0 && r.Score < 0 {
			agree++
		}
	}
	return agree, avail
}
