package collect

import (
	"context"
	"fmt"
	"time"

	"SigFusion/internal/domain/models"
	domsvc "SigFusion/internal/domain/service"
	icache "SigFusion/internal/service/cache"
)

// WhaleClient pulls large-holder exchange flows from the flow tracker
// service.
type WhaleClient struct {
	base     *HTTPSourceBase
	cache    *icache.TTLCache
	cacheTTL time.Duration
	attempts int
}

func NewWhaleClient(baseURL string, timeout, cacheTTL time.Duration, attempts int) *WhaleClient {
	return &WhaleClient{
		base:     NewHTTPSourceBase(baseURL, timeout),
		cache:    icache.NewTTLCache(),
		cacheTTL: cacheTTL,
		attempts: attempts,
	}
}

type whaleResp struct {
	Symbol         string  `json:"symbol"`
	DepositsUSD    float64 `json:"deposits_usd"`
	WithdrawalsUSD float64 `json:"withdrawals_usd"`
	TxCount        int     `json:"tx_count"`
}

func (c *WhaleClient) Flows(ctx context.Context, symbol string) (models.WhaleFlows, error) {
	key := "whales:" + symbol
	if v, ok := c.cache.Get(key); ok {
		return v.(models.WhaleFlows), nil
	}

	var wr whaleResp
	err := c.base.GetJSONWithRetry(ctx, "/flows", map[string][]string{"symbol": {symbol}}, &wr, c.attempts)
	if err != nil {
		return models.WhaleFlows{}, fmt.Errorf("whale flows %s: %w", symbol, err)
	}

	out := models.WhaleFlows{
		Symbol:         symbol,
		DepositsUSD:    wr.DepositsUSD,
		WithdrawalsUSD: wr.WithdrawalsUSD,
		TxCount:        wr.TxCount,
	}
	if wr.DepositsUSD > 0 {
		out.FlowRatio = wr.WithdrawalsUSD / wr.DepositsUSD
	}
	c.cache.Set(key, out, c.cacheTTL)
	return out, nil
}

var _ domsvc.WhaleFlowSource = (*WhaleClient)(nil)
