package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"SigFusion/internal/domain/models"
	drepo "SigFusion/internal/domain/repository"
	domsvc "SigFusion/internal/domain/service"
	"SigFusion/internal/engine"
	"SigFusion/internal/services/indicators"
	"SigFusion/pkg/cache"
	"SigFusion/pkg/config"
	"SigFusion/pkg/logger"
)

// snapshotCandles is how many candles back the round looks when
// building indicators and levels. Divergence needs 60, EMA200 needs
// 200; 600 gives comfortable warmup on top.
const snapshotCandles = 600

// Sources bundles the collaborator clients one fusion round fans out
// to. Any of them may be nil; the matching factor then scores neutral.
type Sources struct {
	Whales      domsvc.WhaleFlowSource
	Derivatives domsvc.DerivativesSource
	Sentiment   domsvc.SentimentSource
	Macro       domsvc.MacroSource
	Options     domsvc.OptionsSource
	ML          domsvc.MLPredictor
}

// FusionUseCase runs the full decision pipeline for one symbol: fetch,
// normalize, aggregate, override, correlate, level-detect, predict,
// blend, stabilize.
type FusionUseCase struct {
	store   drepo.FeatureStore
	sources Sources

	norm      *engine.Normalizer
	agg       *engine.Aggregator
	resolver  *engine.Resolver
	corr      *engine.Propagator
	levels    *engine.LevelDetector
	predictor *engine.Predictor
	prob      *engine.ProbabilityCalc
	blender   *engine.Blender
	stability *engine.StabilityManager

	history drepo.VerdictHistory
	pub     drepo.VerdictPublisher
	cache   cache.Service
	metrics drepo.Metrics
	log     *logger.Logger

	timeout time.Duration
	ttl     time.Duration
}

// NewFusionUseCase wires the pipeline. It fails when the weight table
// is invalid; a broken table must never reach a live round.
func NewFusionUseCase(
	cfg *config.EngineConfig,
	store drepo.FeatureStore,
	sources Sources,
	history drepo.VerdictHistory,
	pub drepo.VerdictPublisher,
	cacheSvc cache.Service,
	metrics drepo.Metrics,
	log *logger.Logger,
) (*FusionUseCase, error) {
	agg, err := engine.NewAggregator(cfg)
	if err != nil {
		return nil, fmt.Errorf("build aggregator: %w", err)
	}
	return &FusionUseCase{
		store:     store,
		sources:   sources,
		norm:      engine.NewNormalizer(),
		agg:       agg,
		resolver:  engine.NewResolver(cfg),
		corr:      engine.NewPropagator(cfg),
		levels:    engine.NewLevelDetector(cfg),
		predictor: engine.NewPredictor(cfg),
		prob:      engine.NewProbabilityCalc(cfg),
		blender:   engine.NewBlender(cfg),
		stability: engine.NewStabilityManager(cfg),
		history:   history,
		pub:       pub,
		cache:     cacheSvc,
		metrics:   metrics,
		log:       log,
		timeout:   cfg.RoundTimeout,
		ttl:       cfg.VerdictTTL,
	}, nil
}

func verdictKey(symbol string) string {
	return "verdict:" + strings.ToUpper(symbol)
}

// Analyze runs one fusion round for symbol. With fresh=false a cached,
// unexpired verdict is returned as-is.
func (uc *FusionUseCase) Analyze(ctx context.Context, symbol string, fresh bool) (*models.Verdict, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	symbol = strings.ToUpper(symbol)

	if !fresh && uc.cache != nil {
		var cached models.Verdict
		if err := uc.cache.Get(ctx, verdictKey(symbol), &cached); err == nil {
			if time.Now().Before(cached.ExpiresAt) {
				return &cached, nil
			}
		}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	in, candles, errs := uc.collect(ctx, symbol)
	fs := uc.norm.Normalize(in)
	for _, r := range fs {
		if !r.Available {
			uc.metrics.RecordFactorMissing(string(r.Factor))
		}
	}

	score := uc.agg.Aggregate(fs)
	score, overrideNote := uc.resolver.Resolve(score, fs, overrideInputs(in))
	if overrideNote != "" {
		uc.metrics.RecordOverride("resolver")
	}
	preDir := uc.corr.DirectionWithDeadZone(score)
	score, corrNote := uc.corr.Apply(symbol, score)

	// A conflict is a hard long<->short flip of the working call, not a
	// same-direction nudge or a softening into sideways.
	dir := uc.corr.DirectionWithDeadZone(score)
	prob := uc.prob.Compute(engine.ProbabilityInputs{
		Score:     score,
		Direction: dir,
		Factors:   fs,
		Conflict:  preDir.Opposes(dir),
	})

	v := &models.Verdict{
		Symbol:          symbol,
		Direction:       dir,
		Score:           score,
		Probability:     prob,
		Coverage:        fs.Coverage(),
		Factors:         fs,
		OverrideNote:    overrideNote,
		CorrelationNote: corrNote,
		GeneratedAt:     start,
		ExpiresAt:       start.Add(uc.ttl),
		Errors:          errs,
	}

	if in.Market != nil && in.Market.HasPrice {
		v.Support, v.Resistance = uc.levels.Detect(candles, in.Market.Price)
		if in.Market.HasIndicators {
			v.Prediction = uc.predictor.Predict(symbol, in.Market.Price, in.Market.ATR, score, v.Support, v.Resistance)
		}
	}

	blend := uc.blender.Blend(prob, uc.mlOpinion(ctx, symbol, in, score, errs))
	v.Recommendation = blend.Recommendation
	v.Cancelled = blend.Cancelled
	v.BlendedConf = blend.Confidence

	admitted, ok := uc.stability.Admit(symbol, v.Direction, v.Score)
	if !ok {
		uc.metrics.RecordFlipSuppressed(symbol)
	}
	v.Direction = admitted

	uc.corr.Record(v)
	uc.persist(ctx, v)

	if len(v.Errors) == 0 {
		v.Errors = nil
	}
	uc.metrics.RecordLastScore(symbol, v.Score)
	uc.metrics.RecordFusionRound(symbol, time.Since(start).Seconds())
	uc.log.Info("fusion round done",
		logger.String("symbol", symbol),
		logger.String("direction", string(v.Direction)),
		logger.Any("score", v.Score),
		logger.Any("probability", v.Probability),
		logger.Int("coverage", v.Coverage),
	)
	return v, nil
}

// collect fans out to the feature store and every external source. A
// failed fetch lands in the errors map; the round itself never fails.
func (uc *FusionUseCase) collect(ctx context.Context, symbol string) (engine.NormalizeInput, []models.Candle, map[string]string) {
	in := engine.NormalizeInput{}
	var candles []models.Candle
	errs := map[string]string{}

	type item struct {
		name string
		val  interface{}
		err  error
	}
	ch := make(chan item, 6)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		cs, err := uc.store.GetLatestNCandles(ctx, symbol, snapshotCandles, drepo.TF1h)
		if err != nil {
			ch <- item{"market", nil, err}
			return
		}
		candles = cs
		ch <- item{"market", indicators.BuildSnapshot(symbol, cs), nil}
	}()
	if uc.sources.Whales != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := uc.sources.Whales.Flows(ctx, symbol)
			ch <- item{"whales", v, err}
		}()
	}
	if uc.sources.Derivatives != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := uc.sources.Derivatives.Snapshot(ctx, symbol)
			ch <- item{"derivatives", v, err}
		}()
	}
	if uc.sources.Sentiment != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := uc.sources.Sentiment.Sentiment(ctx)
			ch <- item{"sentiment", v, err}
		}()
	}
	if uc.sources.Macro != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := uc.sources.Macro.Macro(ctx)
			ch <- item{"macro", v, err}
		}()
	}
	if uc.sources.Options != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := uc.sources.Options.Options(ctx, symbol)
			ch <- item{"options", v, err}
		}()
	}

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			errs[it.name] = it.err.Error()
			uc.metrics.RecordError("source_" + it.name)
			continue
		}
		switch it.name {
		case "market":
			in.Market = it.val.(*models.MarketSnapshot)
		case "whales":
			v := it.val.(models.WhaleFlows)
			in.Whales = &v
		case "derivatives":
			v := it.val.(models.DerivativesSnapshot)
			in.Derivatives = &v
		case "sentiment":
			v := it.val.(models.SentimentSnapshot)
			in.Sentiment = &v
		case "macro":
			v := it.val.(models.MacroSnapshot)
			in.Macro = &v
		case "options":
			v := it.val.(models.OptionsSnapshot)
			in.Options = &v
		}
	}
	return in, candles, errs
}

func overrideInputs(in engine.NormalizeInput) engine.OverrideInputs {
	oi := engine.OverrideInputs{}
	if in.Market != nil {
		oi.Price = in.Market.Price
		if in.Market.HasIndicators {
			oi.RSI = in.Market.RSI
			oi.HasRSI = true
			oi.MACDHist = in.Market.MACD - in.Market.MACDSignal
		}
	}
	if in.Sentiment != nil {
		oi.FearGreed = float64(in.Sentiment.FearGreed)
		oi.HasFearGreed = true
	}
	if in.Whales != nil && in.Whales.FlowRatio > 0 {
		oi.FlowRatio = in.Whales.FlowRatio
		oi.HasFlowRatio = true
	}
	return oi
}

// mlOpinion asks the model service for its take. Unreachable service
// or bad answer degrades to rule-only blending.
func (uc *FusionUseCase) mlOpinion(ctx context.Context, symbol string, in engine.NormalizeInput, score float64, errs map[string]string) *models.MLOpinion {
	if uc.sources.ML == nil {
		return nil
	}
	features := map[string]float64{"score": score}
	if in.Market != nil && in.Market.HasIndicators {
		features["rsi"] = in.Market.RSI
		features["macd_hist"] = in.Market.MACD - in.Market.MACDSignal
		features["adx"] = in.Market.ADX
		features["atr"] = in.Market.ATR
		features["change_24h"] = in.Market.Change24h
	}
	op, err := uc.sources.ML.Predict(ctx, symbol, features)
	if err != nil {
		errs["ml"] = err.Error()
		uc.metrics.RecordError("source_ml")
		return nil
	}
	return &op
}

func (uc *FusionUseCase) persist(ctx context.Context, v *models.Verdict) {
	if uc.history != nil {
		if err := uc.history.Append(ctx, v); err != nil {
			uc.metrics.RecordError("history_append")
			uc.log.Error("append verdict history", logger.Error(err), logger.String("symbol", v.Symbol))
		}
	}
	if uc.pub != nil {
		if err := uc.pub.Publish(ctx, v); err != nil {
			uc.metrics.RecordError("verdict_publish")
			uc.log.Error("publish verdict", logger.Error(err), logger.String("symbol", v.Symbol))
		}
	}
	if uc.cache != nil {
		if err := uc.cache.Set(ctx, verdictKey(v.Symbol), v, uc.ttl); err != nil {
			uc.log.Warn("cache verdict", logger.Error(err), logger.String("symbol", v.Symbol))
		}
	}
}

// Verdict returns the cached verdict for symbol, falling back to the
// most recent persisted one.
func (uc *FusionUseCase) Verdict(ctx context.Context, symbol string) (*models.Verdict, error) {
	symbol = strings.ToUpper(symbol)
	if uc.cache != nil {
		var cached models.Verdict
		if err := uc.cache.Get(ctx, verdictKey(symbol), &cached); err == nil {
			if time.Now().Before(cached.ExpiresAt) {
				return &cached, nil
			}
		}
	}
	if uc.history == nil {
		return nil, fmt.Errorf("no verdict for %s", symbol)
	}
	vs, err := uc.history.Recent(ctx, symbol, 1)
	if err != nil {
		return nil, err
	}
	if len(vs) == 0 {
		return nil, fmt.Errorf("no verdict for %s", symbol)
	}
	return vs[0], nil
}

// History returns recent persisted verdicts, newest first.
func (uc *FusionUseCase) History(ctx context.Context, symbol string, limit int) ([]*models.Verdict, error) {
	if uc.history == nil {
		return nil, fmt.Errorf("history store not configured")
	}
	if limit <= 0 {
		limit = 20
	}
	return uc.history.Recent(ctx, strings.ToUpper(symbol), limit)
}

// Levels runs level detection alone, without a full round.
func (uc *FusionUseCase) Levels(ctx context.Context, symbol string) (support, resistance []models.SRLevel, err error) {
	symbol = strings.ToUpper(symbol)
	cs, err := uc.store.GetLatestNCandles(ctx, symbol, snapshotCandles, drepo.TF1h)
	if err != nil {
		return nil, nil, err
	}
	if len(cs) == 0 {
		return nil, nil, fmt.Errorf("no candles for %s", symbol)
	}
	price := cs[len(cs)-1].Close
	support, resistance = uc.levels.Detect(cs, price)
	return support, resistance, nil
}

// Leader exposes the propagator's current leader entry.
func (uc *FusionUseCase) Leader() (models.CorrelationEntry, bool) {
	return uc.corr.Leader()
}
