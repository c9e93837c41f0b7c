package usecase

import (
	"context"
	"math"
	"sync"
	"time"

	"SigFusion/internal/domain/models"
	"SigFusion/internal/engine"
	"SigFusion/pkg/cache"
	"SigFusion/pkg/config"
	"SigFusion/pkg/logger"
	"SigFusion/pkg/queue"
)

const topListKey = "scanner:top"

// Scanner sweeps the configured universe on an interval, runs a fresh
// fusion round per symbol and publishes the hysteresis-filtered top
// list.
type Scanner struct {
	fusion   *FusionUseCase
	ranker   *engine.Ranker
	pub      *queue.RedisQueue
	cache    cache.Service
	log      *logger.Logger
	universe []string
	interval time.Duration
	workers  int

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func NewScanner(cfg *config.Config, fusion *FusionUseCase, pub *queue.RedisQueue, cacheSvc cache.Service, log *logger.Logger) *Scanner {
	workers := cfg.Engine.Workers
	if workers < 1 {
		workers = 1
	}
	return &Scanner{
		fusion:   fusion,
		ranker:   engine.NewRanker(&cfg.Engine, cfg.Scanner.Consider, cfg.Scanner.Publish),
		pub:      pub,
		cache:    cacheSvc,
		log:      log,
		universe: cfg.Scanner.Universe,
		interval: cfg.Scanner.Interval,
		workers:  workers,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the scan loop. The first sweep runs immediately.
func (s *Scanner) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		s.sweep(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Stop signals the loop and waits for the sweep in flight.
func (s *Scanner) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

// Top returns the currently published list.
func (s *Scanner) Top(limit int) []models.RankedCandidate {
	list := s.ranker.Current()
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

func (s *Scanner) sweep(ctx context.Context) {
	if len(s.universe) == 0 {
		return
	}
	start := time.Now()

	sem := make(chan struct{}, s.workers)
	results := make(chan *models.Verdict, len(s.universe))
	var wg sync.WaitGroup
	for _, symbol := range s.universe {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			v, err := s.fusion.Analyze(ctx, symbol, true)
			if err != nil {
				s.log.Warn("scan symbol", logger.String("symbol", symbol), logger.Error(err))
				return
			}
			results <- v
		}(symbol)
	}
	go func() { wg.Wait(); close(results) }()

	candidates := make([]models.RankedCandidate, 0, len(s.universe))
	for v := range results {
		if v.Cancelled || v.Direction == models.DirectionSideways {
			continue
		}
		candidates = append(candidates, models.RankedCandidate{
			Symbol:      v.Symbol,
			Direction:   v.Direction,
			Score:       v.Score,
			Probability: v.Probability,
			RankScore:   rankScore(v),
		})
	}

	top := s.ranker.Rank(candidates)
	s.publish(ctx, top)
	s.log.Info("universe sweep done",
		logger.Int("scanned", len(s.universe)),
		logger.Int("candidates", len(candidates)),
		logger.Int("published", len(top)),
		logger.Duration("took", time.Since(start)),
	)
}

// rankScore orders candidates by conviction: probability edge over the
// 50 baseline scaled by signal strength and the blended confidence.
func rankScore(v *models.Verdict) float64 {
	edge := (v.Probability - 50) / 35
	strength := math.Abs(v.Score) / 100
	return edge * strength * (0.5 + 0.5*v.BlendedConf)
}

func (s *Scanner) publish(ctx context.Context, top []models.RankedCandidate) {
	if s.cache != nil {
		if err := s.cache.Set(ctx, topListKey, top, s.interval*2); err != nil {
			s.log.Warn("cache top list", logger.Error(err))
		}
	}
	if s.pub != nil {
		if err := s.pub.PublishMessage(ctx, "top_list", top); err != nil {
			s.log.Warn("publish top list", logger.Error(err))
		}
	}
}
