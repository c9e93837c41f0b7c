package indicators

import (
	"math"

	"SigFusion/internal/domain/models"
)

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(candles)-1, or nil if insufficient data.
func ComputeLogReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		cur := candles[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// EMA computes the exponential moving average over closes. Returns 0
// when there is not enough data for the period.
func EMA(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}
	k := 2.0 / float64(period+1)
	// seed with SMA of the first period
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += candles[i].Close
	}
	ema := sum / float64(period)
	for i := period; i < len(candles); i++ {
		ema = candles[i].Close*k + ema*(1-k)
	}
	return ema
}

// RSI computes Wilder's relative strength index over closes.
func RSI(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 50
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := candles[i].Close - candles[i-1].Close
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	for i := period + 1; i < len(candles); i++ {
		d := candles[i].Close - candles[i-1].Close
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line and its signal line (12/26/9).
func MACD(candles []models.Candle) (macd, signal float64) {
	if len(candles) < 35 {
		return 0, 0
	}
	macdSeries := make([]float64, 0, len(candles))
	e12 := emaSeries(candles, 12)
	e26 := emaSeries(candles, 26)
	for i := range candles {
		if e12[i] == 0 || e26[i] == 0 {
			continue
		}
		macdSeries = append(macdSeries, e12[i]-e26[i])
	}
	if len(macdSeries) == 0 {
		return 0, 0
	}
	macd = macdSeries[len(macdSeries)-1]
	signal = emaOfSeries(macdSeries, 9)
	return macd, signal
}

// ATR computes Wilder's average true range.
func ATR(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	trs := trueRanges(candles)
	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trs[i]
	}
	atr /= float64(period)
	for i := period; i < len(trs); i++ {
		atr = (atr*float64(period-1) + trs[i]) / float64(period)
	}
	return atr
}

// ADX computes Wilder's average directional index.
func ADX(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period*2+1 {
		return 0
	}
	var plusDM, minusDM, tr float64
	dxs := make([]float64, 0, len(candles))
	trs := trueRanges(candles)
	for i := 1; i < len(candles); i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		p, m := 0.0, 0.0
		if up > down && up > 0 {
			p = up
		}
		if down > up && down > 0 {
			m = down
		}
		if i <= period {
			plusDM += p
			minusDM += m
			tr += trs[i-1]
			if i < period {
				continue
			}
		} else {
			plusDM = plusDM - plusDM/float64(period) + p
			minusDM = minusDM - minusDM/float64(period) + m
			tr = tr - tr/float64(period) + trs[i-1]
		}
		if tr == 0 {
			continue
		}
		pdi := plusDM / tr * 100
		mdi := minusDM / tr * 100
		if pdi+mdi == 0 {
			continue
		}
		dxs = append(dxs, math.Abs(pdi-mdi)/(pdi+mdi)*100)
	}
	if len(dxs) < period {
		return 0
	}
	adx := 0.0
	for i := 0; i < period; i++ {
		adx += dxs[i]
	}
	adx /= float64(period)
	for i := period; i < len(dxs); i++ {
		adx = (adx*float64(period-1) + dxs[i]) / float64(period)
	}
	return adx
}

// Divergence compares the last two price swing lows/highs against RSI
// at the same bars. Returns +1 for bullish divergence (lower price
// low, higher RSI low), -1 for bearish, 0 for none.
func Divergence(candles []models.Candle) float64 {
	const window = 60
	if len(candles) < window {
		return 0
	}
	c := candles[len(candles)-window:]
	half := window / 2

	firstLow, firstLowIdx := minLow(c[:half])
	secondLow, secondLowIdx := minLow(c[half:])
	firstHigh, firstHighIdx := maxHigh(c[:half])
	secondHigh, secondHighIdx := maxHigh(c[half:])
	secondLowIdx += half
	secondHighIdx += half

	rsiAt := func(idx int) float64 {
		end := len(candles) - window + idx + 1
		return RSI(candles[:end], 14)
	}

	if secondLow < firstLow && rsiAt(secondLowIdx) > rsiAt(firstLowIdx) {
		return 1
	}
	if secondHigh > firstHigh && rsiAt(secondHighIdx) < rsiAt(firstHighIdx) {
		return -1
	}
	return 0
}

// BuildSnapshot derives the full indicator block from candle history.
// Candles must be in ascending time order. Returns nil when there is
// no usable data at all.
func BuildSnapshot(symbol string, candles []models.Candle) *models.MarketSnapshot {
	if len(candles) == 0 {
		return nil
	}
	last := candles[len(candles)-1]
	snap := &models.MarketSnapshot{
		Symbol:   symbol,
		Price:    last.Close,
		HasPrice: last.Close > 0,
	}

	// 24h change and volume from whatever history covers
	if first := candles[0]; first.Close > 0 {
		snap.Change24h = (last.Close - first.Close) / first.Close * 100
	}
	for _, c := range candles {
		snap.Volume24h += c.Volume * c.Close
	}

	if len(candles) >= 35 {
		snap.RSI = RSI(candles, 14)
		snap.MACD, snap.MACDSignal = MACD(candles)
		snap.EMA50 = EMA(candles, 50)
		snap.EMA200 = EMA(candles, 200)
		snap.ADX = ADX(candles, 14)
		snap.ATR = ATR(candles, 14)
		snap.Divergence = Divergence(candles)
		snap.HasIndicators = true
	}
	return snap
}

// PivotPoint returns the classic (H+L+C)/3 pivot of the last candle.
func PivotPoint(c models.Candle) float64 {
	return (c.High + c.Low + c.Close) / 3
}

func emaSeries(candles []models.Candle, period int) []float64 {
	out := make([]float64, len(candles))
	if len(candles) < period {
		return out
	}
	k := 2.0 / float64(period+1)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += candles[i].Close
	}
	ema := sum / float64(period)
	out[period-1] = ema
	for i := period; i < len(candles); i++ {
		ema = candles[i].Close*k + ema*(1-k)
		out[i] = ema
	}
	return out
}

func emaOfSeries(xs []float64, period int) float64 {
	if len(xs) < period {
		if len(xs) == 0 {
			return 0
		}
		sum := 0.0
		for _, x := range xs {
			sum += x
		}
		return sum / float64(len(xs))
	}
	k := 2.0 / float64(period+1)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += xs[i]
	}
	ema := sum / float64(period)
	for i := period; i < len(xs); i++ {
		ema = xs[i]*k + ema*(1-k)
	}
	return ema
}

func trueRanges(candles []models.Candle) []float64 {
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		hl := candles[i].High - candles[i].Low
		hc := math.Abs(candles[i].High - candles[i-1].Close)
		lc := math.Abs(candles[i].Low - candles[i-1].Close)
		out = append(out, math.Max(hl, math.Max(hc, lc)))
	}
	return out
}

func minLow(c []models.Candle) (float64, int) {
	lo, idx := math.Inf(1), 0
	for i, x := range c {
		if x.Low < lo {
			lo, idx = x.Low, i
		}
	}
	return lo, idx
}

func maxHigh(c []models.Candle) (float64, int) {
	hi, idx := math.Inf(-1), 0
	for i, x := range c {
		if x.High > hi {
			hi, idx = x.High, i
		}
	}
	return hi, idx
}
