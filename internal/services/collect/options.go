package collect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"SigFusion/internal/domain/models"
	domsvc "SigFusion/internal/domain/service"
	icache "SigFusion/internal/service/cache"
)

// OptionsClient computes the put/call ratio from the Deribit public
// book summary. Options data only exists for BTC and ETH.
type OptionsClient struct {
	base     *HTTPSourceBase
	cache    *icache.TTLCache
	cacheTTL time.Duration
	attempts int
}

func NewOptionsClient(baseURL string, timeout, cacheTTL time.Duration, attempts int) *OptionsClient {
	return &OptionsClient{
		base:     NewHTTPSourceBase(baseURL, timeout),
		cache:    icache.NewTTLCache(),
		cacheTTL: cacheTTL,
		attempts: attempts,
	}
}

type bookSummaryResp struct {
	Result []struct {
		InstrumentName string  `json:"instrument_name"`
		OpenInterest   float64 `json:"open_interest"`
	} `json:"result"`
}

func (c *OptionsClient) Options(ctx context.Context, symbol string) (models.OptionsSnapshot, error) {
	currency := strings.ToUpper(strings.TrimSuffix(strings.ToUpper(symbol), "USDT"))
	if currency != "BTC" && currency != "ETH" {
		return models.OptionsSnapshot{}, fmt.Errorf("options not available for %s", currency)
	}

	key := "options:" + currency
	if v, ok := c.cache.Get(key); ok {
		return v.(models.OptionsSnapshot), nil
	}

	var br bookSummaryResp
	err := c.base.GetJSONWithRetry(ctx, "/get_book_summary_by_currency",
		map[string][]string{"currency": {currency}, "kind": {"option"}}, &br, c.attempts)
	if err != nil {
		return models.OptionsSnapshot{}, fmt.Errorf("options %s: %w", currency, err)
	}

	var callOI, putOI float64
	for _, opt := range br.Result {
		switch {
		case strings.Contains(opt.InstrumentName, "-C"):
			callOI += opt.OpenInterest
		case strings.Contains(opt.InstrumentName, "-P"):
			putOI += opt.OpenInterest
		}
	}

	pcr := 1.0
	if callOI > 0 {
		pcr = putOI / callOI
	}
	out := models.OptionsSnapshot{
		Symbol:       symbol,
		PutCallRatio: pcr,
		CallOI:       callOI,
		PutOI:        putOI,
	}
	c.cache.Set(key, out, c.cacheTTL)
	return out, nil
}

var _ domsvc.OptionsSource = (*OptionsClient)(nil)
