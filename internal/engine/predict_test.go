package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"SigFusion/internal/domain/models"
)

func TestPredictBullishPath(t *testing.T) {
	p := NewPredictor(testEngineConfig(t))

	// atr of 2% of price gives a neutral volatility multiplier
	pred := p.Predict("BTCUSDT", 100, 2, 50, nil, nil)
	require.NotNil(t, pred)
	require.InDelta(t, 101.75, pred.Target4h, 1e-9)
	require.InDelta(t, 99.0, pred.Low, 1e-9)
	require.InDelta(t, 102.75, pred.High, 1e-9)
	require.InDelta(t, 103.0, pred.TakeProfit, 1e-9)
	require.InDelta(t, 98.0, pred.StopLoss, 1e-9)
	require.InDelta(t, 67.5, pred.Confidence, 1e-9)
}

func TestPredictBearishFrame(t *testing.T) {
	p := NewPredictor(testEngineConfig(t))

	pred := p.Predict("BTCUSDT", 100, 2, -50, nil, nil)
	require.Less(t, pred.Target4h, 100.0)
	require.InDelta(t, 97.0, pred.TakeProfit, 1e-9)
	require.InDelta(t, 102.0, pred.StopLoss, 1e-9)
}

func TestPredictSidewaysHasNoExecutionFrame(t *testing.T) {
	p := NewPredictor(testEngineConfig(t))

	pred := p.Predict("BTCUSDT", 100, 2, 3, nil, nil)
	require.NotNil(t, pred)
	require.Zero(t, pred.TakeProfit)
	require.Zero(t, pred.StopLoss)
}

func TestPredictVolatilityClamped(t *testing.T) {
	p := NewPredictor(testEngineConfig(t))

	// a dead-quiet market still moves at half the nominal rate
	quiet := p.Predict("BTCUSDT", 100, 0.1, 50, nil, nil)
	require.InDelta(t, 100+50.0/100*3.5*0.5, quiet.Target4h, 1e-9)

	// a wild one is capped at the configured max move
	wild := p.Predict("BTCUSDT", 100, 10, 100, nil, nil)
	require.InDelta(t, 103.5, wild.Target4h, 1e-9)
}

func TestPredictRespectsLevels(t *testing.T) {
	p := NewPredictor(testEngineConfig(t))

	res := []models.SRLevel{{Price: 101, Kind: "resistance"}}
	pred := p.Predict("BTCUSDT", 100, 2, 50, nil, res)
	require.InDelta(t, 101*0.995, pred.Target4h, 1e-9)

	sup := []models.SRLevel{{Price: 99, Kind: "support"}}
	pred = p.Predict("BTCUSDT", 100, 2, -50, sup, nil)
	require.InDelta(t, 99*1.005, pred.Target4h, 1e-9)
}

func TestPredictWithoutATR(t *testing.T) {
	p := NewPredictor(testEngineConfig(t))

	pred := p.Predict("BTCUSDT", 100, 0, 50, nil, nil)
	require.NotNil(t, pred)
	// band falls back to 1% of price, no execution frame without ATR
	require.InDelta(t, pred.High-pred.Target4h, 0.5, 1e-9)
	require.Zero(t, pred.TakeProfit)
	require.Zero(t, pred.StopLoss)
}

func TestPredictRejectsBadPrice(t *testing.T) {
	p := NewPredictor(testEngineConfig(t))
	require.Nil(t, p.Predict("BTCUSDT", 0, 2, 50, nil, nil))
}

func TestPredictionConfidenceBounds(t *testing.T) {
	require.InDelta(t, 50.0, predictionConfidence(0), 1e-9)
	require.InDelta(t, 67.5, predictionConfidence(-50), 1e-9)
	require.InDelta(t, 85.0, predictionConfidence(100), 1e-9)
}
