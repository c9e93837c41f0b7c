package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/creasty/defaults"
	"github.com/stretchr/testify/require"

	"SigFusion/internal/domain/models"
	drepo "SigFusion/internal/domain/repository"
	pkgcache "SigFusion/pkg/cache"
	"SigFusion/pkg/config"
	"SigFusion/pkg/logger"
)

// --- stubs ---

type stubStore struct {
	candles []models.Candle
	err     error
}

func (s *stubStore) GetCandles(_ context.Context, _ string, _, _ time.Time, _ drepo.Timeframe) ([]models.Candle, error) {
	return s.candles, s.err
}

func (s *stubStore) GetLatestNCandles(_ context.Context, _ string, _ int, _ drepo.Timeframe) ([]models.Candle, error) {
	return s.candles, s.err
}

type stubWhales struct {
	flows models.WhaleFlows
	err   error
}

func (s *stubWhales) Flows(context.Context, string) (models.WhaleFlows, error) {
	return s.flows, s.err
}

type stubDerivatives struct{ snap models.DerivativesSnapshot }

func (s *stubDerivatives) Snapshot(context.Context, string) (models.DerivativesSnapshot, error) {
	return s.snap, nil
}

type stubSentiment struct{ snap models.SentimentSnapshot }

func (s *stubSentiment) Sentiment(context.Context) (models.SentimentSnapshot, error) {
	return s.snap, nil
}

type stubMacro struct{ snap models.MacroSnapshot }

func (s *stubMacro) Macro(context.Context) (models.MacroSnapshot, error) { return s.snap, nil }

type stubOptions struct{ snap models.OptionsSnapshot }

func (s *stubOptions) Options(context.Context, string) (models.OptionsSnapshot, error) {
	return s.snap, nil
}

type stubML struct {
	op  models.MLOpinion
	err error
}

func (s *stubML) Predict(context.Context, string, map[string]float64) (models.MLOpinion, error) {
	return s.op, s.err
}

type stubHistory struct {
	mu       sync.Mutex
	appended []*models.Verdict
}

func (h *stubHistory) Append(_ context.Context, v *models.Verdict) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appended = append(h.appended, v)
	return nil
}

func (h *stubHistory) Recent(_ context.Context, symbol string, limit int) ([]*models.Verdict, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*models.Verdict, 0, limit)
	for i := len(h.appended) - 1; i >= 0 && len(out) < limit; i-- {
		if h.appended[i].Symbol == symbol {
			out = append(out, h.appended[i])
		}
	}
	return out, nil
}

func (h *stubHistory) Health(context.Context) error { return nil }
func (h *stubHistory) Close() error                 { return nil }

type stubVerdictPublisher struct {
	mu        sync.Mutex
	published []*models.Verdict
}

func (p *stubVerdictPublisher) Publish(_ context.Context, v *models.Verdict) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, v)
	return nil
}

func (p *stubVerdictPublisher) Close() error { return nil }

type nopMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newNopMetrics() *nopMetrics { return &nopMetrics{errors: map[string]int{}} }

func (m *nopMetrics) RecordFusionRound(string, float64) {}
func (m *nopMetrics) RecordFactorMissing(string)        {}
func (m *nopMetrics) RecordOverride(string)             {}
func (m *nopMetrics) RecordFlipSuppressed(string)       {}
func (m *nopMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}
func (m *nopMetrics) RecordLastScore(string, float64)   {}
func (m *nopMetrics) RecordLatency(string, float64)     {}
func (m *nopMetrics) RecordMessageSent(string, string)  {}
func (m *nopMetrics) RecordLastPrice(string, float64)   {}

// --- fixtures ---

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func testConfig(t *testing.T) *config.EngineConfig {
	t.Helper()
	cfg := &config.EngineConfig{}
	require.NoError(t, defaults.Set(cfg))
	cfg.Weights = config.DefaultWeights
	cfg.Correlation.Strengths = config.DefaultCorrelationStrengths
	return cfg
}

func trendingCandles(n int, start, step float64) []models.Candle {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	price := start
	for i := range out {
		out[i] = models.Candle{
			Bucket: base.Add(time.Duration(i) * time.Hour),
			Open:   price, Close: price + step,
			High: price + step + 0.5, Low: price - 0.5,
			Volume: 100,
		}
		price += step
	}
	return out
}

// zigzagCandles alternates an up move and a down move so the net drift
// is controlled without pinning RSI at an extreme.
func zigzagCandles(n int, start, up, down, volume float64) []models.Candle {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	price := start
	for i := range out {
		step := up
		if i%2 == 1 {
			step = -down
		}
		out[i] = models.Candle{
			Bucket: base.Add(time.Duration(i) * time.Hour),
			Open:   price, Close: price + step,
			High: math.Max(price, price+step) + 0.3,
			Low:  math.Min(price, price+step) - 0.3,
			Volume: volume,
		}
		price += step
	}
	return out
}

type fusionFixture struct {
	uc      *FusionUseCase
	history *stubHistory
	pub     *stubVerdictPublisher
	cache   *pkgcache.MemoryCache
	metrics *nopMetrics
}

func newFusionFixture(t *testing.T, sources Sources, store drepo.FeatureStore) *fusionFixture {
	t.Helper()
	f := &fusionFixture{
		history: &stubHistory{},
		pub:     &stubVerdictPublisher{},
		cache:   pkgcache.NewMemoryCache(),
		metrics: newNopMetrics(),
	}
	uc, err := NewFusionUseCase(testConfig(t), store, sources, f.history, f.pub, f.cache, f.metrics, testLogger(t))
	require.NoError(t, err)
	f.uc = uc
	return f
}

func healthySources() Sources {
	return Sources{
		Whales:      &stubWhales{flows: models.WhaleFlows{DepositsUSD: 1e6, WithdrawalsUSD: 3e6, FlowRatio: 3}},
		Derivatives: &stubDerivatives{snap: models.DerivativesSnapshot{OpenInterestChg: 2, PriceChg: 1, LongShortRatio: 1.0}},
		Sentiment:   &stubSentiment{snap: models.SentimentSnapshot{FearGreed: 40}},
		Macro:       &stubMacro{snap: models.MacroSnapshot{SP500Change: 1}},
		Options:     &stubOptions{snap: models.OptionsSnapshot{PutCallRatio: 1.2}},
	}
}

// --- tests ---

func TestAnalyzeFullRound(t *testing.T) {
	store := &stubStore{candles: trendingCandles(300, 100, 0.1)}
	f := newFusionFixture(t, healthySources(), store)

	v, err := f.uc.Analyze(context.Background(), "btcusdt", true)
	require.NoError(t, err)

	require.Equal(t, "BTCUSDT", v.Symbol)
	require.Equal(t, len(models.AllFactors), v.Coverage)
	require.Nil(t, v.Errors)
	require.NotEmpty(t, v.Recommendation)
	require.NotZero(t, v.Probability)
	require.GreaterOrEqual(t, v.Probability, 50.0)
	require.LessOrEqual(t, v.Probability, 85.0)
	require.NotEmpty(t, v.Support)
	require.NotEmpty(t, v.Resistance)
	require.NotNil(t, v.Prediction)
	require.True(t, v.ExpiresAt.After(v.GeneratedAt))

	// round is persisted, published and cached
	require.Len(t, f.history.appended, 1)
	require.Len(t, f.pub.published, 1)
	var cached models.Verdict
	require.NoError(t, f.cache.Get(context.Background(), "verdict:BTCUSDT", &cached))
	require.Equal(t, v.Direction, cached.Direction)
}

func TestAnalyzeAccumulationRoundGoesLong(t *testing.T) {
	// heavy exchange outflows, rising market on elevated turnover
	sources := Sources{
		Whales:      &stubWhales{flows: models.WhaleFlows{DepositsUSD: 1e6, WithdrawalsUSD: 45e6, FlowRatio: 45}},
		Derivatives: &stubDerivatives{snap: models.DerivativesSnapshot{OpenInterestChg: 2, PriceChg: 1, LongShortRatio: 1.2}},
		Sentiment:   &stubSentiment{snap: models.SentimentSnapshot{FearGreed: 40}},
		Macro:       &stubMacro{snap: models.MacroSnapshot{SP500Change: 1}},
		Options:     &stubOptions{snap: models.OptionsSnapshot{PutCallRatio: 1.2}},
	}
	store := &stubStore{candles: zigzagCandles(300, 100, 0.8, 0.4, 300_000)}
	f := newFusionFixture(t, sources, store)

	v, err := f.uc.Analyze(context.Background(), "BTCUSDT", true)
	require.NoError(t, err)
	require.Equal(t, models.DirectionLong, v.Direction)
	require.Greater(t, v.Score, 0.0)
	require.GreaterOrEqual(t, v.Probability, 50.0)
}

func TestAnalyzeDistributionRoundGoesShort(t *testing.T) {
	// heavy exchange inflows, falling market, crowded longs
	sources := Sources{
		Whales:      &stubWhales{flows: models.WhaleFlows{DepositsUSD: 45e6, WithdrawalsUSD: 1e6, FlowRatio: 0.022}},
		Derivatives: &stubDerivatives{snap: models.DerivativesSnapshot{OpenInterestChg: 2, PriceChg: -1, LongShortRatio: 1.6}},
		Sentiment:   &stubSentiment{snap: models.SentimentSnapshot{FearGreed: 60}},
		Macro:       &stubMacro{snap: models.MacroSnapshot{SP500Change: -1}},
		Options:     &stubOptions{snap: models.OptionsSnapshot{PutCallRatio: 0.65}},
	}
	store := &stubStore{candles: zigzagCandles(300, 160, 0.4, 0.8, 300_000)}
	f := newFusionFixture(t, sources, store)

	v, err := f.uc.Analyze(context.Background(), "BTCUSDT", true)
	require.NoError(t, err)
	require.Equal(t, models.DirectionShort, v.Direction)
	require.Less(t, v.Score, 0.0)
}

func TestAnalyzeBalancedRoundStaysSideways(t *testing.T) {
	// every source near its resting point: flows even, drift flat
	sources := Sources{
		Whales:      &stubWhales{flows: models.WhaleFlows{DepositsUSD: 2e6, WithdrawalsUSD: 2e6, FlowRatio: 1}},
		Derivatives: &stubDerivatives{snap: models.DerivativesSnapshot{LongShortRatio: 1.0}},
		Sentiment:   &stubSentiment{snap: models.SentimentSnapshot{FearGreed: 50}},
		Macro:       &stubMacro{},
		Options:     &stubOptions{snap: models.OptionsSnapshot{PutCallRatio: 1.0}},
	}
	store := &stubStore{candles: zigzagCandles(300, 100, 0.1, 0.1, 100)}
	f := newFusionFixture(t, sources, store)

	v, err := f.uc.Analyze(context.Background(), "BTCUSDT", true)
	require.NoError(t, err)
	require.Equal(t, models.DirectionSideways, v.Direction)
	require.LessOrEqual(t, math.Abs(v.Score), 20.0)
}

func TestAnalyzeDegradedSources(t *testing.T) {
	sources := healthySources()
	sources.Whales = &stubWhales{err: fmt.Errorf("upstream 502")}
	store := &stubStore{candles: trendingCandles(300, 100, 0.1)}
	f := newFusionFixture(t, sources, store)

	v, err := f.uc.Analyze(context.Background(), "BTCUSDT", true)
	require.NoError(t, err)

	require.Contains(t, v.Errors, "whales")
	require.Equal(t, len(models.AllFactors)-1, v.Coverage)
	require.False(t, v.Factors[models.FactorWhales].Available)
	require.Equal(t, 1, f.metrics.errors["source_whales"])
}

func TestAnalyzeWithoutAnyData(t *testing.T) {
	// empty feature store and no sources still produce a verdict
	f := newFusionFixture(t, Sources{}, &stubStore{})

	v, err := f.uc.Analyze(context.Background(), "BTCUSDT", true)
	require.NoError(t, err)
	require.Equal(t, models.DirectionSideways, v.Direction)
	require.Zero(t, v.Coverage)
	require.Zero(t, v.Score)
	require.Empty(t, v.Support)
	require.Nil(t, v.Prediction)
}

func TestAnalyzeRejectsEmptySymbol(t *testing.T) {
	f := newFusionFixture(t, Sources{}, &stubStore{})
	_, err := f.uc.Analyze(context.Background(), "", true)
	require.Error(t, err)
}

func TestAnalyzeServesCachedVerdict(t *testing.T) {
	store := &stubStore{candles: trendingCandles(300, 100, 0.1)}
	f := newFusionFixture(t, healthySources(), store)

	first, err := f.uc.Analyze(context.Background(), "BTCUSDT", true)
	require.NoError(t, err)

	// stale=false short-circuits to the cached copy, no new round runs
	second, err := f.uc.Analyze(context.Background(), "BTCUSDT", false)
	require.NoError(t, err)
	require.Equal(t, first.GeneratedAt.Unix(), second.GeneratedAt.Unix())
	require.Len(t, f.history.appended, 1)

	// fresh=true always recomputes
	_, err = f.uc.Analyze(context.Background(), "BTCUSDT", true)
	require.NoError(t, err)
	require.Len(t, f.history.appended, 2)
}

func TestAnalyzeModelVeto(t *testing.T) {
	sources := healthySources()
	sources.ML = &stubML{op: models.MLOpinion{Direction: "long", Confidence: 0.9, ShouldCancel: true}}
	store := &stubStore{candles: trendingCandles(300, 100, 0.1)}
	f := newFusionFixture(t, sources, store)

	v, err := f.uc.Analyze(context.Background(), "BTCUSDT", true)
	require.NoError(t, err)
	require.True(t, v.Cancelled)
	require.Equal(t, "wait", v.Recommendation)
}

func TestAnalyzeModelFailureDegrades(t *testing.T) {
	sources := healthySources()
	sources.ML = &stubML{err: fmt.Errorf("model service down")}
	store := &stubStore{candles: trendingCandles(300, 100, 0.1)}
	f := newFusionFixture(t, sources, store)

	v, err := f.uc.Analyze(context.Background(), "BTCUSDT", true)
	require.NoError(t, err)
	require.False(t, v.Cancelled)
	require.Contains(t, v.Errors, "ml")
}

func TestVerdictFallsBackToHistory(t *testing.T) {
	store := &stubStore{candles: trendingCandles(300, 100, 0.1)}
	f := newFusionFixture(t, healthySources(), store)

	_, err := f.uc.Verdict(context.Background(), "BTCUSDT")
	require.Error(t, err)

	want, err := f.uc.Analyze(context.Background(), "BTCUSDT", true)
	require.NoError(t, err)

	// wipe the cache so the lookup has to go through history
	require.NoError(t, f.cache.Delete(context.Background(), "verdict:BTCUSDT"))

	got, err := f.uc.Verdict(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Equal(t, want.Direction, got.Direction)
	require.InDelta(t, want.Score, got.Score, 1e-9)
}

func TestHistoryNewestFirst(t *testing.T) {
	store := &stubStore{candles: trendingCandles(300, 100, 0.1)}
	f := newFusionFixture(t, healthySources(), store)

	for i := 0; i < 3; i++ {
		_, err := f.uc.Analyze(context.Background(), "BTCUSDT", true)
		require.NoError(t, err)
	}

	vs, err := f.uc.History(context.Background(), "BTCUSDT", 2)
	require.NoError(t, err)
	require.Len(t, vs, 2)
}

func TestLevelsStandalone(t *testing.T) {
	store := &stubStore{candles: trendingCandles(300, 100, 0.1)}
	f := newFusionFixture(t, Sources{}, store)

	support, resistance, err := f.uc.Levels(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.NotEmpty(t, support)
	require.NotEmpty(t, resistance)

	f.uc.store = &stubStore{}
	_, _, err = f.uc.Levels(context.Background(), "BTCUSDT")
	require.Error(t, err)
}

func TestLeaderRecordedForDependents(t *testing.T) {
	store := &stubStore{candles: trendingCandles(300, 100, 0.1)}
	f := newFusionFixture(t, healthySources(), store)

	_, ok := f.uc.Leader()
	require.False(t, ok)

	v, err := f.uc.Analyze(context.Background(), "BTCUSDT", true)
	require.NoError(t, err)

	e, ok := f.uc.Leader()
	require.True(t, ok)
	require.Equal(t, "BTCUSDT", e.Symbol)
	require.InDelta(t, v.Score, e.Score, 1e-9)
}

func TestRankScoreOrdering(t *testing.T) {
	strong := &models.Verdict{Score: 60, Probability: 78, BlendedConf: 0.9}
	weak := &models.Verdict{Score: 15, Probability: 55, BlendedConf: 0.3}
	require.Greater(t, rankScore(strong), rankScore(weak))

	// a coin-flip probability ranks at zero regardless of score
	require.Zero(t, rankScore(&models.Verdict{Score: 90, Probability: 50, BlendedConf: 1}))
}
