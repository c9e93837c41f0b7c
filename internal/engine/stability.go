package engine

import (
	"math"
	"sort"
	"sync"
	"time"

	"SigFusion/internal/domain/models"
	"SigFusion/pkg/config"
)

// StabilityManager suppresses direction flapping. A hard long<->short
// flip inside the cooldown window needs repeated confirmation before
// it is published; a large enough score jump bypasses the wait.
type StabilityManager struct {
	cooldown      time.Duration
	confirmations int
	changeBypass  float64

	mu     sync.Mutex
	states map[string]*symbolState
	now    func() time.Time
}

type symbolState struct {
	direction     models.Direction
	score         float64
	changedAt     time.Time
	pending       models.Direction
	confirmations int
}

func NewStabilityManager(cfg *config.EngineConfig) *StabilityManager {
	return &StabilityManager{
		cooldown:      cfg.Stability.Cooldown,
		confirmations: cfg.Stability.Confirmations,
		changeBypass:  cfg.Stability.ChangeBypass,
		states:        make(map[string]*symbolState),
		now:           time.Now,
	}
}

// Admit decides whether the proposed direction is published. When a
// flip is suppressed the previous direction is returned and admitted
// is false; confirmations accumulate across calls and reset whenever
// the pending direction changes.
func (m *StabilityManager) Admit(symbol string, proposed models.Direction, score float64) (models.Direction, bool) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[symbol]
	if !ok {
		m.states[symbol] = &symbolState{direction: proposed, score: score, changedAt: now}
		return proposed, true
	}

	if proposed == st.direction {
		st.score = score
		st.pending = ""
		st.confirmations = 0
		return proposed, true
	}

	// Softening into or out of sideways is not a flip.
	if !st.direction.Opposes(proposed) {
		m.accept(st, proposed, score, now)
		return proposed, true
	}

	// A big enough swing in conviction is its own confirmation.
	ref := math.Max(math.Abs(st.score), 1)
	if math.Abs(score-st.score) >= m.changeBypass*ref*2 || math.Abs(score-st.score) >= m.changeBypass*100 {
		m.accept(st, proposed, score, now)
		return proposed, true
	}

	// Outside the cooldown a flip passes directly.
	if now.Sub(st.changedAt) >= m.cooldown {
		m.accept(st, proposed, score, now)
		return proposed, true
	}

	if st.pending != proposed {
		st.pending = proposed
		st.confirmations = 1
	} else {
		st.confirmations++
	}
	if st.confirmations >= m.confirmations {
		m.accept(st, proposed, score, now)
		return proposed, true
	}
	return st.direction, false
}

func (m *StabilityManager) accept(st *symbolState, dir models.Direction, score float64, now time.Time) {
	st.direction = dir
	st.score = score
	st.changedAt = now
	st.pending = ""
	st.confirmations = 0
}

// Current returns the last admitted direction for a symbol.
func (m *StabilityManager) Current(symbol string) (models.Direction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[symbol]
	if !ok {
		return "", false
	}
	return st.direction, true
}

// Ranker publishes a hysteresis-filtered top list. Incumbents defend
// their slot: a challenger must beat them by the configured margin, or
// the incumbent must have fallen out of the considered set after its
// residency elapsed. Entry times survive re-appearance so dwell is
// measured honestly.
type Ranker struct {
	margin    float64
	residency time.Duration
	consider  int
	publish   int

	mu      sync.Mutex
	current []models.RankedCandidate
	entered map[string]time.Time
	now     func() time.Time
}

func NewRanker(cfg *config.EngineConfig, consider, publish int) *Ranker {
	if consider < publish {
		consider = publish
	}
	return &Ranker{
		margin:    cfg.Stability.RankMargin,
		residency: cfg.Stability.Residency,
		consider:  consider,
		publish:   publish,
		entered:   make(map[string]time.Time),
		now:       time.Now,
	}
}

// Rank folds fresh candidates into the published list.
func (r *Ranker) Rank(candidates []models.RankedCandidate) []models.RankedCandidate {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].RankScore > candidates[j].RankScore })
	if len(candidates) > r.consider {
		candidates = candidates[:r.consider]
	}

	fresh := make(map[string]models.RankedCandidate, len(candidates))
	for _, c := range candidates {
		fresh[c.Symbol] = c
	}

	next := make([]models.RankedCandidate, 0, r.publish)
	taken := make(map[string]bool)

	// Incumbents first: keep them while they are still considered, or
	// while their residency protects them.
	for _, inc := range r.current {
		if len(next) >= r.publish {
			break
		}
		entered := r.entered[inc.Symbol]
		if c, ok := fresh[inc.Symbol]; ok {
			c.EnteredAt = entered
			next = append(next, c)
			taken[inc.Symbol] = true
			continue
		}
		if now.Sub(entered) < r.residency {
			next = append(next, inc)
			taken[inc.Symbol] = true
		}
	}

	// Fill or challenge with the best newcomers.
	for _, c := range candidates {
		if taken[c.Symbol] {
			continue
		}
		if len(next) < r.publish {
			c.EnteredAt = r.enterTime(c.Symbol, now)
			next = append(next, c)
			taken[c.Symbol] = true
			continue
		}
		// Challenge the weakest slot whose residency has elapsed. An
		// incumbent inside its dwell window keeps the slot no matter
		// the margin.
		wi := r.weakestEvictable(next, now)
		if wi < 0 {
			break
		}
		if c.RankScore > next[wi].RankScore*(1+r.margin) {
			delete(r.entered, next[wi].Symbol)
			c.EnteredAt = r.enterTime(c.Symbol, now)
			next[wi] = c
			taken[c.Symbol] = true
		}
	}

	sort.Slice(next, func(i, j int) bool { return next[i].RankScore > next[j].RankScore })

	// Refresh entry bookkeeping.
	kept := make(map[string]bool, len(next))
	for _, c := range next {
		kept[c.Symbol] = true
		if _, ok := r.entered[c.Symbol]; !ok {
			r.entered[c.Symbol] = c.EnteredAt
		}
	}
	for sym, t := range r.entered {
		if !kept[sym] && now.Sub(t) >= r.residency {
			delete(r.entered, sym)
		}
	}

	r.current = next
	out := make([]models.RankedCandidate, len(next))
	copy(out, next)
	return out
}

// Current returns the last published list.
func (r *Ranker) Current() []models.RankedCandidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.RankedCandidate, len(r.current))
	copy(out, r.current)
	return out
}

// enterTime preserves the original entry when a symbol re-appears
// within its residency window.
func (r *Ranker) enterTime(symbol string, now time.Time) time.Time {
	if t, ok := r.entered[symbol]; ok {
		return t
	}
	r.entered[symbol] = now
	return now
}

// weakestEvictable returns the lowest-ranked slot whose holder has
// been in the list at least the residency window, or -1 when every
// slot is still protected.
func (r *Ranker) weakestEvictable(list []models.RankedCandidate, now time.Time) int {
	wi := -1
	for i := range list {
		if now.Sub(r.entered[list[i].Symbol]) < r.residency {
			continue
		}
		if wi < 0 || list[i].RankScore < list[wi].RankScore {
			wi = i
		}
	}
	return wi
}
