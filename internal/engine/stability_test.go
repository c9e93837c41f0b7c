package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SigFusion/internal/domain/models"
)

func TestAdmitFirstSeen(t *testing.T) {
	m := NewStabilityManager(testEngineConfig(t))

	dir, ok := m.Admit("BTCUSDT", models.DirectionLong, 30)
	require.True(t, ok)
	require.Equal(t, models.DirectionLong, dir)

	cur, ok := m.Current("BTCUSDT")
	require.True(t, ok)
	require.Equal(t, models.DirectionLong, cur)
}

func TestAdmitSoftening(t *testing.T) {
	m := NewStabilityManager(testEngineConfig(t))

	m.Admit("BTCUSDT", models.DirectionLong, 30)

	// long -> sideways is not a flip, passes inside the cooldown
	dir, ok := m.Admit("BTCUSDT", models.DirectionSideways, 2)
	require.True(t, ok)
	require.Equal(t, models.DirectionSideways, dir)

	// sideways -> short is not a flip either
	dir, ok = m.Admit("BTCUSDT", models.DirectionShort, -12)
	require.True(t, ok)
	require.Equal(t, models.DirectionShort, dir)
}

func TestAdmitFlipNeedsConfirmations(t *testing.T) {
	m := NewStabilityManager(testEngineConfig(t))

	base := time.Now()
	m.now = func() time.Time { return base }

	// scores chosen close enough that the change bypass stays quiet
	m.Admit("BTCUSDT", models.DirectionShort, -50)

	dir, ok := m.Admit("BTCUSDT", models.DirectionLong, -45)
	require.False(t, ok)
	require.Equal(t, models.DirectionShort, dir)

	dir, ok = m.Admit("BTCUSDT", models.DirectionLong, -45)
	require.False(t, ok)
	require.Equal(t, models.DirectionShort, dir)

	// third consecutive confirmation lets the flip through
	dir, ok = m.Admit("BTCUSDT", models.DirectionLong, -45)
	require.True(t, ok)
	require.Equal(t, models.DirectionLong, dir)
}

func TestAdmitPendingResetOnDirectionChange(t *testing.T) {
	m := NewStabilityManager(testEngineConfig(t))

	base := time.Now()
	m.now = func() time.Time { return base }

	m.Admit("BTCUSDT", models.DirectionLong, 50)

	// two short confirmations, then a strong_short restarts the count
	m.Admit("BTCUSDT", models.DirectionShort, 45)
	m.Admit("BTCUSDT", models.DirectionShort, 45)
	_, ok := m.Admit("BTCUSDT", models.DirectionStrongShort, 45)
	require.False(t, ok)
	_, ok = m.Admit("BTCUSDT", models.DirectionStrongShort, 45)
	require.False(t, ok)
	_, ok = m.Admit("BTCUSDT", models.DirectionStrongShort, 45)
	require.True(t, ok)
}

func TestAdmitLargeSwingBypasses(t *testing.T) {
	m := NewStabilityManager(testEngineConfig(t))

	base := time.Now()
	m.now = func() time.Time { return base }

	m.Admit("BTCUSDT", models.DirectionShort, -50)

	dir, ok := m.Admit("BTCUSDT", models.DirectionLong, 40)
	require.True(t, ok)
	require.Equal(t, models.DirectionLong, dir)
}

func TestAdmitCooldownExpiry(t *testing.T) {
	cfg := testEngineConfig(t)
	m := NewStabilityManager(cfg)

	base := time.Now()
	m.now = func() time.Time { return base }
	m.Admit("BTCUSDT", models.DirectionShort, -50)

	m.now = func() time.Time { return base.Add(cfg.Stability.Cooldown + time.Minute) }
	dir, ok := m.Admit("BTCUSDT", models.DirectionLong, -45)
	require.True(t, ok)
	require.Equal(t, models.DirectionLong, dir)
}

func TestAdmitTracksSymbolsIndependently(t *testing.T) {
	m := NewStabilityManager(testEngineConfig(t))

	m.Admit("BTCUSDT", models.DirectionLong, 30)
	dir, ok := m.Admit("ETHUSDT", models.DirectionShort, -30)
	require.True(t, ok)
	require.Equal(t, models.DirectionShort, dir)
}

func rankedSet(scores map[string]float64) []models.RankedCandidate {
	out := make([]models.RankedCandidate, 0, len(scores))
	for sym, rs := range scores {
		out = append(out, models.RankedCandidate{Symbol: sym, RankScore: rs, Direction: models.DirectionLong})
	}
	return out
}

func TestRankerInitialFill(t *testing.T) {
	r := NewRanker(testEngineConfig(t), 10, 3)

	base := time.Now()
	r.now = func() time.Time { return base }

	top := r.Rank(rankedSet(map[string]float64{"A": 5, "B": 4, "C": 3, "D": 2, "E": 1}))
	require.Len(t, top, 3)
	require.Equal(t, "A", top[0].Symbol)
	require.Equal(t, "C", top[2].Symbol)
	require.Equal(t, base, top[0].EnteredAt)
}

func TestRankerChallengerNeedsMargin(t *testing.T) {
	cfg := testEngineConfig(t)
	r := NewRanker(cfg, 10, 2)

	base := time.Now()
	r.now = func() time.Time { return base }

	r.Rank(rankedSet(map[string]float64{"A": 10, "B": 9}))

	// past residency the slot is contestable, but 9.2 does not clear 9 * 1.10
	r.now = func() time.Time { return base.Add(cfg.Stability.Residency + time.Minute) }
	top := r.Rank(rankedSet(map[string]float64{"A": 10, "B": 9, "C": 9.2}))
	require.Equal(t, []string{"A", "B"}, symbolsOf(top))

	// 10.5 does
	top = r.Rank(rankedSet(map[string]float64{"A": 10, "B": 9, "C": 10.5}))
	require.Equal(t, []string{"C", "A"}, symbolsOf(top))
}

func TestRankerResidencyBlocksEviction(t *testing.T) {
	cfg := testEngineConfig(t)
	r := NewRanker(cfg, 10, 2)

	base := time.Now()
	r.now = func() time.Time { return base }
	r.Rank(rankedSet(map[string]float64{"A": 10, "B": 9}))

	// one minute in, B still scores and its dwell window holds: even a
	// clear-margin challenger cannot take the slot
	r.now = func() time.Time { return base.Add(time.Minute) }
	top := r.Rank(rankedSet(map[string]float64{"A": 10, "B": 9, "C": 10.5}))
	require.Equal(t, []string{"A", "B"}, symbolsOf(top))
}

func TestRankerResidencyProtectsIncumbent(t *testing.T) {
	cfg := testEngineConfig(t)
	r := NewRanker(cfg, 10, 2)

	base := time.Now()
	r.now = func() time.Time { return base }

	r.Rank(rankedSet(map[string]float64{"A": 10, "B": 9}))

	// B drops out of the considered set but keeps its slot for now
	top := r.Rank(rankedSet(map[string]float64{"A": 10}))
	require.Equal(t, []string{"A", "B"}, symbolsOf(top))

	// after residency it is released and the slot opens up
	r.now = func() time.Time { return base.Add(cfg.Stability.Residency + time.Minute) }
	top = r.Rank(rankedSet(map[string]float64{"A": 10, "C": 1}))
	require.Equal(t, []string{"A", "C"}, symbolsOf(top))
}

func TestRankerPreservesEntryTime(t *testing.T) {
	r := NewRanker(testEngineConfig(t), 10, 2)

	base := time.Now()
	r.now = func() time.Time { return base }
	r.Rank(rankedSet(map[string]float64{"A": 10, "B": 9}))

	r.now = func() time.Time { return base.Add(5 * time.Minute) }
	top := r.Rank(rankedSet(map[string]float64{"A": 10, "B": 9}))
	for _, c := range top {
		require.Equal(t, base, c.EnteredAt, "dwell must survive re-appearance for %s", c.Symbol)
	}
}

func symbolsOf(list []models.RankedCandidate) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.Symbol
	}
	return out
}
