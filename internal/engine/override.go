package engine

import (
	"fmt"
	"math"
	"strings"

	"SigFusion/internal/domain/models"
	"SigFusion/pkg/config"
)

// OverrideInputs carries the raw values the resolver inspects on top
// of the aggregate. Has* flags gate each rule to live data.
type OverrideInputs struct {
	RSI          float64
	HasRSI       bool
	FearGreed    float64
	HasFearGreed bool
	FlowRatio    float64 // whale withdrawals / deposits
	HasFlowRatio bool
	MACDHist     float64 // macd - signal, relative to price
	Price        float64
}

// Resolver applies extreme-condition overrides after aggregation.
type Resolver struct {
	cfg *config.EngineConfig
}

func NewResolver(cfg *config.EngineConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve adjusts the working score and returns a note describing what
// fired. An empty note means no override applied.
func (r *Resolver) Resolve(score float64, fs models.FactorSet, in OverrideInputs) (float64, string) {
	ov := &r.cfg.Override

	// Extreme RSI wins over everything: deeply oversold markets do not
	// get shorted, deeply overbought markets do not get chased. First
	// match wins; no later rule runs on an extreme reading.
	if in.HasRSI && in.RSI < ov.RSIOversold {
		forced := math.Max(math.Abs(score), strongBand/2)
		return forced, fmt.Sprintf("rsi %.1f extreme oversold: forced positive", in.RSI)
	}
	if in.HasRSI && in.RSI > ov.RSIOverbought {
		forced := -math.Max(math.Abs(score), strongBand/2)
		return forced, fmt.Sprintf("rsi %.1f extreme overbought: forced negative", in.RSI)
	}

	// Two or more strong contrarian signals agreeing against the
	// aggregate flip it.
	bulls, bears := r.strongSignals(in)
	if len(bulls) >= ov.MinStrong && score < 0 {
		return math.Abs(score), "strong bull signals: " + strings.Join(bulls, ", ")
	}
	if len(bears) >= ov.MinStrong && score > 0 {
		return -math.Abs(score), "strong bear signals: " + strings.Join(bears, ", ")
	}

	// Neutral majority: when more than half of the live factors sit at
	// zero, shrink conviction toward sideways.
	neutral, avail := 0, 0
	for _, rd := range fs {
		if !rd.Available {
			continue
		}
		avail++
		if rd.Score == 0 {
			neutral++
		}
	}
	if avail > 0 && float64(neutral) > float64(avail)/2 {
		return score * ov.NeutralShrink, fmt.Sprintf("neutral majority %d/%d: score shrunk", neutral, avail)
	}

	return score, ""
}

func (r *Resolver) strongSignals(in OverrideInputs) (bulls, bears []string) {
	ov := &r.cfg.Override
	if in.HasRSI {
		if in.RSI < ov.StrongRSILow {
			bulls = append(bulls, "rsi")
		} else if in.RSI > ov.StrongRSIHigh {
			bears = append(bears, "rsi")
		}
	}
	if in.HasFearGreed {
		if in.FearGreed < ov.StrongFGLow {
			bulls = append(bulls, "fear_greed")
		} else if in.FearGreed > ov.StrongFGHigh {
			bears = append(bears, "fear_greed")
		}
	}
	if in.HasFlowRatio {
		if in.FlowRatio > ov.FlowRatioHigh {
			bulls = append(bulls, "whale_flow")
		} else if in.FlowRatio > 0 && in.FlowRatio < ov.FlowRatioLow {
			bears = append(bears, "whale_flow")
		}
	}
	if in.Price > 0 && math.Abs(in.MACDHist) > in.Price*0.005 {
		if in.MACDHist > 0 {
			bulls = append(bulls, "macd")
		} else {
			bears = append(bears, "macd")
		}
	}
	return bulls, bears
}
