package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"SigFusion/internal/domain/models"
)

type stubTickSink struct {
	mu     sync.Mutex
	stored []*models.Tick
	err    error
}

func (s *stubTickSink) Store(_ context.Context, t *models.Tick) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = append(s.stored, t)
	return nil
}

func (s *stubTickSink) StoreBatch(_ context.Context, ticks []*models.Tick) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = append(s.stored, ticks...)
	return nil
}

func (s *stubTickSink) Close() error { return nil }

type stubTickPublisher struct {
	mu        sync.Mutex
	published []*models.Tick
}

func (p *stubTickPublisher) Publish(_ context.Context, t *models.Tick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, t)
	return nil
}

func (p *stubTickPublisher) PublishBatch(_ context.Context, ticks []*models.Tick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, ticks...)
	return nil
}

func (p *stubTickPublisher) Close() error { return nil }

func TestTickProcessorRoutesToKafka(t *testing.T) {
	pub := &stubTickPublisher{}
	sink := &stubTickSink{}
	proc := NewTickProcessor(pub, sink, newNopMetrics(), "kafka", 100, 0)

	tick := &models.Tick{Symbol: "BTCUSDT", Timestamp: 1700000000, Price: 42000, Volume: 0.5}
	require.NoError(t, proc.Process(context.Background(), tick))
	require.Len(t, pub.published, 1)
	require.Empty(t, sink.stored)
}

func TestTickProcessorRoutesToClickHouse(t *testing.T) {
	pub := &stubTickPublisher{}
	sink := &stubTickSink{}
	proc := NewTickProcessor(pub, sink, newNopMetrics(), "clickhouse", 100, 0)

	require.NoError(t, proc.Process(context.Background(), &models.Tick{Symbol: "BTCUSDT"}))
	require.Len(t, sink.stored, 1)
	require.Empty(t, pub.published)

	require.NoError(t, proc.ProcessBatch(context.Background(), []*models.Tick{{}, {}}))
	require.Len(t, sink.stored, 3)
}

func TestTickProcessorRejectsBadInput(t *testing.T) {
	proc := NewTickProcessor(&stubTickPublisher{}, &stubTickSink{}, newNopMetrics(), "kafka", 100, 0)
	require.Error(t, proc.Process(context.Background(), nil))

	// empty batches are a no-op, not an error
	require.NoError(t, proc.ProcessBatch(context.Background(), nil))
}

func TestTickProcessorUnknownBackend(t *testing.T) {
	m := newNopMetrics()
	proc := NewTickProcessor(&stubTickPublisher{}, &stubTickSink{}, m, "postgres", 100, 0)

	err := proc.Process(context.Background(), &models.Tick{Symbol: "BTCUSDT"})
	require.ErrorContains(t, err, "unknown backend")
	require.Equal(t, 1, m.errors["process"])
}

func TestTickProcessorSinkFailure(t *testing.T) {
	m := newNopMetrics()
	sink := &stubTickSink{err: fmt.Errorf("connection refused")}
	proc := NewTickProcessor(&stubTickPublisher{}, sink, m, "clickhouse", 100, 0)

	err := proc.Process(context.Background(), &models.Tick{Symbol: "BTCUSDT"})
	require.Error(t, err)
	require.Equal(t, 1, m.errors["process"])
}
