package engine

import (
	"math"

	"SigFusion/internal/domain/models"
	"SigFusion/pkg/config"
)

// Predictor estimates the 4h price path from the working score, recent
// volatility and the detected level frame.
type Predictor struct {
	cfg *config.EngineConfig
}

func NewPredictor(cfg *config.EngineConfig) *Predictor {
	return &Predictor{cfg: cfg}
}

// Predict is total: any score and any (possibly empty) level frame
// produce an estimate. The move is monotone in |score|, scaled by ATR,
// capped at the configured percentage and clamped inside the nearest
// levels.
func (p *Predictor) Predict(symbol string, price, atr, score float64, support, resistance []models.SRLevel) *models.PricePrediction {
	if price <= 0 {
		return nil
	}
	pc := &p.cfg.Predictor

	// Volatility scaling: quiet markets move less than the score alone
	// suggests, wild ones a bit more. Bounded so it never flips the
	// monotonicity in |score|.
	volMult := 1.0
	if atr > 0 {
		volMult = math.Min(math.Max(atr/price*100/2.0, 0.5), 1.5)
	}

	movePct := score / 100 * pc.MaxMovePct * volMult
	if movePct > pc.MaxMovePct {
		movePct = pc.MaxMovePct
	} else if movePct < -pc.MaxMovePct {
		movePct = -pc.MaxMovePct
	}

	target := price * (1 + movePct/100)

	// Respect the frame: targets do not pierce the nearest level.
	if len(resistance) > 0 {
		if clip := resistance[0].Price * pc.ResistanceClip; target > clip {
			target = clip
		}
	}
	if len(support) > 0 {
		if clip := support[0].Price * pc.SupportClip; target < clip {
			target = clip
		}
	}

	band := atr
	if band <= 0 {
		band = price * 0.01
	}

	pred := &models.PricePrediction{
		Symbol:     symbol,
		Current:    price,
		Target4h:   target,
		Low:        math.Min(price, target) - band/2,
		High:       math.Max(price, target) + band/2,
		Confidence: predictionConfidence(score),
	}

	// ATR-derived execution frame, direction dependent.
	if atr > 0 {
		switch {
		case score > directionBand:
			pred.TakeProfit = price + atr*pc.TargetATRMult
			pred.StopLoss = price - atr*pc.StopATRMult
		case score < -directionBand:
			pred.TakeProfit = price - atr*pc.TargetATRMult
			pred.StopLoss = price + atr*pc.StopATRMult
		}
	}
	return pred
}

// predictionConfidence maps |score| onto [50, 85], the neutral floor
// rising monotonically with conviction.
func predictionConfidence(score float64) float64 {
	c := 50 + math.Abs(score)*0.35
	if c > 85 {
		c = 85
	}
	return c
}
