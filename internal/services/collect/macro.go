package collect

import (
	"context"
	"fmt"
	"time"

	"SigFusion/internal/domain/models"
	domsvc "SigFusion/internal/domain/service"
	icache "SigFusion/internal/service/cache"
)

// MacroClient pulls the risk backdrop (dollar index, equities, gold)
// from the macro quote service.
type MacroClient struct {
	base     *HTTPSourceBase
	cache    *icache.TTLCache
	cacheTTL time.Duration
	attempts int
}

func NewMacroClient(baseURL string, timeout, cacheTTL time.Duration, attempts int) *MacroClient {
	return &MacroClient{
		base:     NewHTTPSourceBase(baseURL, timeout),
		cache:    icache.NewTTLCache(),
		cacheTTL: cacheTTL,
		attempts: attempts,
	}
}

type macroResp struct {
	DXYChange   float64 `json:"dxy_change_24h"`
	SP500Change float64 `json:"sp500_change_24h"`
	GoldChange  float64 `json:"gold_change_24h"`
}

func (c *MacroClient) Macro(ctx context.Context) (models.MacroSnapshot, error) {
	if v, ok := c.cache.Get("macro"); ok {
		return v.(models.MacroSnapshot), nil
	}

	var mr macroResp
	err := c.base.GetJSONWithRetry(ctx, "/quotes", nil, &mr, c.attempts)
	if err != nil {
		return models.MacroSnapshot{}, fmt.Errorf("macro quotes: %w", err)
	}

	out := models.MacroSnapshot{
		DXYChange:   mr.DXYChange,
		SP500Change: mr.SP500Change,
		GoldChange:  mr.GoldChange,
	}
	c.cache.Set("macro", out, c.cacheTTL)
	return out, nil
}

var _ domsvc.MacroSource = (*MacroClient)(nil)
