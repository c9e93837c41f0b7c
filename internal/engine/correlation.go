package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"SigFusion/internal/domain/models"
	icache "SigFusion/internal/service/cache"
	"SigFusion/pkg/config"
)

// Propagator pushes the leader's conviction into dependent symbols.
// Leader entries live in a TTL cache with lazy expiry; a stale leader
// simply stops influencing.
type Propagator struct {
	leader    string
	strengths map[string]float64
	ttl       time.Duration
	deadZone  float64
	strongOpp float64

	store *icache.TTLCache
	now   func() time.Time
}

func NewPropagator(cfg *config.EngineConfig) *Propagator {
	return &Propagator{
		leader:    strings.ToUpper(cfg.Correlation.Leader),
		strengths: cfg.Correlation.Strengths,
		ttl:       cfg.Correlation.TTL,
		deadZone:  cfg.Correlation.DeadZone,
		strongOpp: cfg.Correlation.StrongOpp,
		store:     icache.NewTTLCache(),
		now:       time.Now,
	}
}

// baseAsset strips a quote suffix so BTCUSDT and BTC address the same
// strength entry.
func baseAsset(symbol string) string {
	s := strings.ToUpper(symbol)
	for _, q := range []string{"USDT", "USDC", "BUSD", "USD"} {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return strings.TrimSuffix(s, q)
		}
	}
	return s
}

// Record stores the leader's verdict for downstream propagation.
// Non-leader verdicts are ignored; the leader is never adjusted.
func (p *Propagator) Record(v *models.Verdict) {
	if baseAsset(v.Symbol) != p.leader {
		return
	}
	now := p.now()
	e := models.CorrelationEntry{
		Symbol:      v.Symbol,
		Direction:   v.Direction,
		Score:       v.Score,
		Probability: v.Probability,
		GeneratedAt: now,
		ExpiresAt:   now.Add(p.ttl),
	}
	p.store.Set("corr:"+p.leader, e, p.ttl)
}

// Leader returns the live leader entry, if any.
func (p *Propagator) Leader() (models.CorrelationEntry, bool) {
	v, ok := p.store.Get("corr:" + p.leader)
	if !ok {
		return models.CorrelationEntry{}, false
	}
	e, ok := v.(models.CorrelationEntry)
	if !ok || e.Expired(p.now()) {
		return models.CorrelationEntry{}, false
	}
	return e, true
}

// Apply adjusts a dependent's working score by the leader's pull and
// returns a note when it changed anything. The leader itself passes
// through untouched.
func (p *Propagator) Apply(symbol string, score float64) (float64, string) {
	base := baseAsset(symbol)
	if base == p.leader {
		return score, ""
	}
	e, ok := p.Leader()
	if !ok {
		return score, ""
	}
	strength, ok := p.strengths[base]
	if !ok {
		return score, ""
	}

	// A strongly convinced leader pointing the other way zeroes the
	// dependent's conviction rather than letting it fight the tide.
	if math.Abs(e.Score) > p.strongOpp && opposite(e.Score, score) {
		return 0, fmt.Sprintf("%s leader %.1f opposes: score capped at 0", p.leader, e.Score)
	}

	adjusted := score + e.Score*strength
	if adjusted > 100 {
		adjusted = 100
	} else if adjusted < -100 {
		adjusted = -100
	}
	return adjusted, fmt.Sprintf("%s influence %+.1f (strength %.2f)", p.leader, e.Score*strength, strength)
}

// DirectionWithDeadZone bands the score but collapses weak conviction
// to sideways so coupled symbols do not flap on leader noise.
func (p *Propagator) DirectionWithDeadZone(score float64) models.Direction {
	if math.Abs(score) < p.deadZone {
		return models.DirectionSideways
	}
	return DirectionFor(score)
}

func opposite(a, b float64) bool {
	return (a > 0 && b < 0) || (a < 0 && b > 0)
}
