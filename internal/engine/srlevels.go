package engine

import (
	"math"
	"sort"

	"SigFusion/internal/domain/models"
	"SigFusion/pkg/config"
)

// LevelDetector finds support and resistance from candle history.
type LevelDetector struct {
	lookback     int
	touchTolPct  float64
	fallbackPct  float64
	fallbackEach int
}

func NewLevelDetector(cfg *config.EngineConfig) *LevelDetector {
	return &LevelDetector{
		lookback:     cfg.Levels.Lookback,
		touchTolPct:  cfg.Levels.TouchTolPct,
		fallbackPct:  cfg.Levels.FallbackPct,
		fallbackEach: cfg.Levels.FallbackEach,
	}
}

// Detect returns up to three supports below price and three
// resistances above, strongest-relevant first. With no candle history
// it falls back to synthetic percentage levels so a verdict always has
// a frame to clamp against.
func (d *LevelDetector) Detect(candles []models.Candle, price float64) (support, resistance []models.SRLevel) {
	if price <= 0 {
		return nil, nil
	}
	if len(candles) < d.lookback*2+1 {
		return d.synthetic(price)
	}

	highs, lows := d.swingPoints(candles)

	levels := make([]models.SRLevel, 0, len(highs)+len(lows))
	for _, lvl := range lows {
		touches := d.countTouches(lvl, candles)
		levels = append(levels, models.SRLevel{
			Price:    lvl,
			Source:   "swing",
			Touches:  touches,
			Strength: swingStrength(touches),
		})
	}
	for _, lvl := range highs {
		touches := d.countTouches(lvl, candles)
		levels = append(levels, models.SRLevel{
			Price:    lvl,
			Source:   "swing",
			Touches:  touches,
			Strength: swingStrength(touches),
		})
	}
	for _, lvl := range roundNumbersNear(price) {
		levels = append(levels, models.SRLevel{
			Price:    lvl,
			Source:   "round",
			Strength: roundStrength(lvl),
		})
	}

	levels = dedupeLevels(levels, price*d.touchTolPct/100)

	for _, lvl := range levels {
		if lvl.Price < price {
			lvl.Kind = "support"
			support = append(support, lvl)
		} else if lvl.Price > price {
			lvl.Kind = "resistance"
			resistance = append(resistance, lvl)
		}
	}

	// nearest first
	sort.Slice(support, func(i, j int) bool { return support[i].Price > support[j].Price })
	sort.Slice(resistance, func(i, j int) bool { return resistance[i].Price < resistance[j].Price })

	if len(support) > 3 {
		support = support[:3]
	}
	if len(resistance) > 3 {
		resistance = resistance[:3]
	}
	if len(support) == 0 || len(resistance) == 0 {
		fs, fr := d.synthetic(price)
		if len(support) == 0 {
			support = fs
		}
		if len(resistance) == 0 {
			resistance = fr
		}
	}
	return support, resistance
}

// swingPoints finds local extrema with lookback candles on each side.
func (d *LevelDetector) swingPoints(candles []models.Candle) (highs, lows []float64) {
	lb := d.lookback
	for i := lb; i < len(candles)-lb; i++ {
		isHigh, isLow := true, true
		for j := i - lb; j <= i+lb; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
		}
		if isHigh {
			highs = append(highs, candles[i].High)
		}
		if isLow {
			lows = append(lows, candles[i].Low)
		}
	}
	return highs, lows
}

// countTouches counts candles whose range came within tolerance of the
// level.
func (d *LevelDetector) countTouches(level float64, candles []models.Candle) int {
	tol := level * d.touchTolPct / 100
	n := 0
	for _, c := range candles {
		if c.Low <= level+tol && c.High >= level-tol {
			n++
		}
	}
	return n
}

// synthetic builds percentage-spaced levels around price when no data
// is available.
func (d *LevelDetector) synthetic(price float64) (support, resistance []models.SRLevel) {
	for i := 1; i <= d.fallbackEach; i++ {
		pct := d.fallbackPct * float64(i) / float64(d.fallbackEach) / 100
		support = append(support, models.SRLevel{
			Price:    price * (1 - pct),
			Kind:     "support",
			Source:   "synthetic",
			Strength: 1,
		})
		resistance = append(resistance, models.SRLevel{
			Price:    price * (1 + pct),
			Kind:     "resistance",
			Source:   "synthetic",
			Strength: 1,
		})
	}
	return support, resistance
}

// swingStrength grades a swing level by how often price respected it.
func swingStrength(touches int) int {
	switch {
	case touches >= 5:
		return 5
	case touches >= 3:
		return 4
	case touches == 2:
		return 3
	default:
		return 2
	}
}

// roundNumbersNear picks psychologically round prices within ~5% of
// price, step scaled to magnitude.
func roundNumbersNear(price float64) []float64 {
	if price <= 0 {
		return nil
	}
	mag := math.Pow(10, math.Floor(math.Log10(price)))
	step := mag / 10
	var out []float64
	lo, hi := price*0.95, price*1.05
	for lvl := math.Floor(lo/step) * step; lvl <= hi; lvl += step {
		if lvl >= lo && lvl <= hi && lvl != price {
			out = append(out, lvl)
		}
	}
	return out
}

// roundStrength grades roundness: more trailing zeros, stronger magnet.
func roundStrength(lvl float64) int {
	switch {
	case math.Mod(lvl, 10000) == 0:
		return 3
	case math.Mod(lvl, 1000) == 0:
		return 2
	default:
		return 1
	}
}

// dedupeLevels merges levels closer than tol, keeping the stronger.
func dedupeLevels(levels []models.SRLevel, tol float64) []models.SRLevel {
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
	out := make([]models.SRLevel, 0, len(levels))
	for _, lvl := range levels {
		if n := len(out); n > 0 && math.Abs(out[n-1].Price-lvl.Price) < tol {
			if lvl.Strength > out[n-1].Strength {
				out[n-1] = lvl
			}
			continue
		}
		out = append(out, lvl)
	}
	return out
}
