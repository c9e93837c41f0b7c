package collect

import (
	"context"
	"fmt"
	"time"

	"SigFusion/internal/domain/models"
	domsvc "SigFusion/internal/domain/service"
	icache "SigFusion/internal/service/cache"
)

// DerivativesClient pulls futures-market state (open interest, funding,
// long/short positioning) from the derivatives aggregator.
type DerivativesClient struct {
	base     *HTTPSourceBase
	cache    *icache.TTLCache
	cacheTTL time.Duration
	attempts int
}

func NewDerivativesClient(baseURL string, timeout, cacheTTL time.Duration, attempts int) *DerivativesClient {
	return &DerivativesClient{
		base:     NewHTTPSourceBase(baseURL, timeout),
		cache:    icache.NewTTLCache(),
		cacheTTL: cacheTTL,
		attempts: attempts,
	}
}

type derivativesResp struct {
	Symbol          string  `json:"symbol"`
	OpenInterestChg float64 `json:"open_interest_chg"`
	PriceChg        float64 `json:"price_chg"`
	LongShortRatio  float64 `json:"long_short_ratio"`
	FundingRate     float64 `json:"funding_rate"`
	TakerBuyVolume  float64 `json:"taker_buy_volume"`
	TakerSellVolume float64 `json:"taker_sell_volume"`
}

func (c *DerivativesClient) Snapshot(ctx context.Context, symbol string) (models.DerivativesSnapshot, error) {
	key := "derivs:" + symbol
	if v, ok := c.cache.Get(key); ok {
		return v.(models.DerivativesSnapshot), nil
	}

	var dr derivativesResp
	err := c.base.GetJSONWithRetry(ctx, "/futures", map[string][]string{"symbol": {symbol}}, &dr, c.attempts)
	if err != nil {
		return models.DerivativesSnapshot{}, fmt.Errorf("derivatives %s: %w", symbol, err)
	}

	out := models.DerivativesSnapshot{
		Symbol:          symbol,
		OpenInterestChg: dr.OpenInterestChg,
		PriceChg:        dr.PriceChg,
		LongShortRatio:  dr.LongShortRatio,
		FundingRate:     dr.FundingRate,
		TakerBuyVolume:  dr.TakerBuyVolume,
		TakerSellVolume: dr.TakerSellVolume,
	}
	c.cache.Set(key, out, c.cacheTTL)
	return out, nil
}

var _ domsvc.DerivativesSource = (*DerivativesClient)(nil)
