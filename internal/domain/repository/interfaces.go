package repository

import (
	"context"
	"time"

	"SigFusion/internal/domain/models"
)

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// TickSink persists raw ticks for candle materialization.
type TickSink interface {
	Store(ctx context.Context, t *models.Tick) error
	StoreBatch(ctx context.Context, ticks []*models.Tick) error
	Close() error
}

// TickPublisher fans raw ticks out to the message bus.
type TickPublisher interface {
	Publish(ctx context.Context, t *models.Tick) error
	PublishBatch(ctx context.Context, ticks []*models.Tick) error
	Close() error
}

// VerdictHistory is the append-only store of fused decisions.
type VerdictHistory interface {
	Append(ctx context.Context, v *models.Verdict) error
	Recent(ctx context.Context, symbol string, limit int) ([]*models.Verdict, error)
	Health(ctx context.Context) error
	Close() error
}

// VerdictPublisher pushes verdicts to downstream consumers.
type VerdictPublisher interface {
	Publish(ctx context.Context, v *models.Verdict) error
	Close() error
}

type Metrics interface {
	RecordFusionRound(symbol string, seconds float64)
	RecordFactorMissing(factor string)
	RecordOverride(kind string)
	RecordFlipSuppressed(symbol string)
	RecordError(kind string)
	RecordLastScore(symbol string, score float64)
	RecordLatency(op string, seconds float64)
	RecordMessageSent(backend, symbol string)
	RecordLastPrice(symbol string, price float64)
}

// FeatureStore provides read-only access to candles for indicators and
// level detection.
type FeatureStore interface {
	GetCandles(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Candle, error)
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
}
