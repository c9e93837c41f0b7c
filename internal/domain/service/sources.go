package service

import (
	"context"

	"SigFusion/internal/domain/models"
)

// WhaleFlowSource delivers exchange flow data for large holders.
type WhaleFlowSource interface {
	Flows(ctx context.Context, symbol string) (models.WhaleFlows, error)
}

// DerivativesSource delivers futures-market state for a symbol.
type DerivativesSource interface {
	Snapshot(ctx context.Context, symbol string) (models.DerivativesSnapshot, error)
}

// SentimentSource delivers the crowd-sentiment block. Market-wide, not
// per symbol.
type SentimentSource interface {
	Sentiment(ctx context.Context) (models.SentimentSnapshot, error)
}

// MacroSource delivers the macro backdrop (DXY, equities, gold).
type MacroSource interface {
	Macro(ctx context.Context) (models.MacroSnapshot, error)
}

// OptionsSource delivers aggregate options positioning.
type OptionsSource interface {
	Options(ctx context.Context, symbol string) (models.OptionsSnapshot, error)
}

// MLPredictor asks the model service for its opinion on a rule verdict.
type MLPredictor interface {
	Predict(ctx context.Context, symbol string, features map[string]float64) (models.MLOpinion, error)
}
