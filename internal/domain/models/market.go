package models

import "time"

// Tick is a single trade print from the upstream market stream.
type Tick struct {
	Symbol    string
	Timestamp int64 // unix seconds
	Price     float64
	Volume    float64
}

// Candle represents an OHLCV record used for indicators and level detection.
type Candle struct {
	Bucket time.Time
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	OrgID  string
}

// MarketSnapshot carries the per-symbol technical state the normalizer
// consumes. Zero-valued fields with Has*=false mean the upstream feed
// did not deliver that block.
type MarketSnapshot struct {
	Symbol    string
	Price     float64
	Change24h float64 // percent
	Volume24h float64 // quote volume, USD

	RSI        float64
	MACD       float64
	MACDSignal float64
	EMA50      float64
	EMA200     float64
	ADX        float64
	ATR        float64
	Divergence float64 // +1 bullish, -1 bearish, 0 none

	HasPrice      bool
	HasIndicators bool
}
