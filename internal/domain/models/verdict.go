package models

import "time"

// Direction is the fused call for a symbol.
type Direction string

const (
	DirectionStrongLong  Direction = "strong_long"
	DirectionLong        Direction = "long"
	DirectionSideways    Direction = "sideways"
	DirectionShort       Direction = "short"
	DirectionStrongShort Direction = "strong_short"
)

// IsLong reports whether d points up.
func (d Direction) IsLong() bool {
	return d == DirectionLong || d == DirectionStrongLong
}

// IsShort reports whether d points down.
func (d Direction) IsShort() bool {
	return d == DirectionShort || d == DirectionStrongShort
}

// Opposes reports a hard long<->short flip. Transitions through
// sideways do not count as opposition.
func (d Direction) Opposes(o Direction) bool {
	return (d.IsLong() && o.IsShort()) || (d.IsShort() && o.IsLong())
}

// SRLevel is one detected support or resistance level.
type SRLevel struct {
	Price    float64 `json:"price"`
	Kind     string  `json:"kind"`   // "support" | "resistance"
	Source   string  `json:"source"` // "swing" | "round" | "synthetic"
	Touches  int     `json:"touches"`
	Strength int     `json:"strength"` // 1..5
}

// PricePrediction is the 4h price path estimate.
type PricePrediction struct {
	Symbol     string  `json:"symbol"`
	Current    float64 `json:"current"`
	Target4h   float64 `json:"target_4h"`
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	TakeProfit float64 `json:"take_profit,omitempty"` // 1.5x ATR from entry
	StopLoss   float64 `json:"stop_loss,omitempty"`   // 1.0x ATR from entry
	Confidence float64 `json:"confidence"`            // 50..85
}

// Verdict is the complete fused decision for one symbol. Every fusion
// round produces one, regardless of how many inputs were missing.
type Verdict struct {
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	Score       float64   `json:"score"`       // working range [-100, 100]
	Probability float64   `json:"probability"` // 50..85
	Coverage    int       `json:"coverage"`    // factors with live data
	Factors     FactorSet `json:"factors"`

	OverrideNote    string `json:"override_note,omitempty"`
	CorrelationNote string `json:"correlation_note,omitempty"`

	Support    []SRLevel        `json:"support"`
	Resistance []SRLevel        `json:"resistance"`
	Prediction *PricePrediction `json:"prediction,omitempty"`

	Recommendation string  `json:"recommendation"` // "take" | "caution" | "wait"
	Cancelled      bool    `json:"cancelled"`
	BlendedConf    float64 `json:"blended_confidence"` // 0..1 after ensemble

	GeneratedAt time.Time `json:"generated_at"`
	ExpiresAt   time.Time `json:"expires_at"`

	Errors map[string]string `json:"errors,omitempty"`
}

// CorrelationEntry is the leader state the propagator keeps per symbol.
type CorrelationEntry struct {
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	Score       float64   `json:"score"`
	Probability float64   `json:"probability"`
	GeneratedAt time.Time `json:"generated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its TTL at now.
func (e CorrelationEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// RankedCandidate is one slot in the published top list.
type RankedCandidate struct {
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	Score       float64   `json:"score"`
	Probability float64   `json:"probability"`
	RankScore   float64   `json:"rank_score"`
	EnteredAt   time.Time `json:"entered_at"`
}
