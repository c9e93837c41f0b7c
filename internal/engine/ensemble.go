package engine

import (
	"SigFusion/internal/domain/models"
	"SigFusion/pkg/config"
)

// Recommendation labels ordered by conviction.
const (
	RecommendWait    = "wait"
	RecommendCaution = "caution"
	RecommendTake    = "take"
	RecommendStrong  = "strong"
)

// Blender merges the rule verdict with the model-service opinion.
type Blender struct {
	cfg *config.EngineConfig
}

func NewBlender(cfg *config.EngineConfig) *Blender {
	return &Blender{cfg: cfg}
}

// BlendResult is the ensemble outcome attached to a verdict.
type BlendResult struct {
	Recommendation string
	Cancelled      bool
	Confidence     float64 // 0..1
}

// Blend combines the rule confidence (0..100, the round's probability)
// with the ML opinion: rules*0.7 + ml*0.3 on the percent scale, then
// banded through the configured thresholds on 0..1. A nil opinion means
// the model service was unreachable; the rule side then carries full
// weight. A model veto always cancels, whatever the blended number says.
func (b *Blender) Blend(probability float64, ml *models.MLOpinion) BlendResult {
	ec := &b.cfg.Ensemble

	ruleConf := probability
	if ruleConf < 0 {
		ruleConf = 0
	} else if ruleConf > 100 {
		ruleConf = 100
	}

	var blended float64
	if ml == nil {
		blended = ruleConf / 100
	} else {
		mlConf := ml.Confidence
		if mlConf < 0 {
			mlConf = 0
		} else if mlConf > 1 {
			mlConf = 1
		}
		blended = (ec.RuleWeight*ruleConf + ec.MLWeight*mlConf*100) / 100
	}

	res := BlendResult{Confidence: blended}
	switch {
	case blended < ec.CancelBelow:
		res.Recommendation = RecommendWait
		res.Cancelled = true
	case blended < ec.CautionBelow:
		res.Recommendation = RecommendCaution
	case blended < ec.StrongAbove:
		res.Recommendation = RecommendTake
	default:
		res.Recommendation = RecommendStrong
	}

	if ml != nil && ml.ShouldCancel {
		res.Recommendation = RecommendWait
		res.Cancelled = true
	}
	return res
}
