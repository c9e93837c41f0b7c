package models

// Factor identifies one scored input block of the fusion round.
type Factor string

const (
	FactorWhales      Factor = "whales"
	FactorDerivatives Factor = "derivatives"
	FactorTrend       Factor = "trend"
	FactorMomentum    Factor = "momentum"
	FactorVolume      Factor = "volume"
	FactorADX         Factor = "adx"
	FactorDivergence  Factor = "divergence"
	FactorSentiment   Factor = "sentiment"
	FactorMacro       Factor = "macro"
	FactorOptions     Factor = "options"
)

// AllFactors lists every factor in weight order.
var AllFactors = []Factor{
	FactorWhales,
	FactorDerivatives,
	FactorTrend,
	FactorMomentum,
	FactorVolume,
	FactorADX,
	FactorDivergence,
	FactorSentiment,
	FactorMacro,
	FactorOptions,
}

// FactorReading is one normalized factor score. Score is bounded to
// [-10, +10]. Available=false means the source was missing or failed
// and the score is the neutral 0.
type FactorReading struct {
	Factor    Factor  `json:"factor"`
	Score     float64 `json:"score"`
	Available bool    `json:"available"`
	Detail    string  `json:"detail,omitempty"`
}

// FactorSet holds a full round of readings keyed by factor.
type FactorSet map[Factor]FactorReading

// Coverage returns how many factors had live data.
func (fs FactorSet) Coverage() int {
	n := 0
	for _, r := range fs {
		if r.Available {
			n++
		}
	}
	return n
}

// WhaleFlows describes exchange in/out flows for large holders.
type WhaleFlows struct {
	Symbol        string
	DepositsUSD   float64
	WithdrawalsUSD float64
	TxCount       int
	FlowRatio     float64 // withdrawals / deposits, 0 when deposits are 0
}

// DerivativesSnapshot carries futures-market state.
type DerivativesSnapshot struct {
	Symbol           string
	OpenInterestChg  float64 // percent over window
	PriceChg         float64 // percent over the same window
	LongShortRatio   float64
	FundingRate      float64 // fraction per interval, e.g. 0.0001
	TakerBuyVolume   float64
	TakerSellVolume  float64
}

// SentimentSnapshot is the crowd-sentiment block (fear & greed index).
type SentimentSnapshot struct {
	FearGreed int // 0..100
	Label     string
}

// MacroSnapshot aggregates the risk-on/risk-off backdrop.
type MacroSnapshot struct {
	DXYChange   float64 // percent 24h
	SP500Change float64
	GoldChange  float64
}

// OptionsSnapshot is the aggregate options positioning block.
type OptionsSnapshot struct {
	Symbol       string
	PutCallRatio float64
	CallOI       float64
	PutOI        float64
}

// MLOpinion is the model-service verdict blended against the rule score.
type MLOpinion struct {
	Symbol       string  `json:"symbol"`
	Direction    string  `json:"direction"`
	Confidence   float64 `json:"confidence"` // 0..1
	ShouldCancel bool    `json:"should_cancel"`
	Model        string  `json:"model"`
}
