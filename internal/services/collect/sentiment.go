package collect

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"SigFusion/internal/domain/models"
	domsvc "SigFusion/internal/domain/service"
	icache "SigFusion/internal/service/cache"
)

// SentimentClient reads the fear & greed index. Market-wide, so a
// single cache entry covers every symbol.
type SentimentClient struct {
	base     *HTTPSourceBase
	cache    *icache.TTLCache
	cacheTTL time.Duration
	attempts int
}

func NewSentimentClient(baseURL string, timeout, cacheTTL time.Duration, attempts int) *SentimentClient {
	return &SentimentClient{
		base:     NewHTTPSourceBase(baseURL, timeout),
		cache:    icache.NewTTLCache(),
		cacheTTL: cacheTTL,
		attempts: attempts,
	}
}

type fngResp struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
	} `json:"data"`
}

func (c *SentimentClient) Sentiment(ctx context.Context) (models.SentimentSnapshot, error) {
	if v, ok := c.cache.Get("fng"); ok {
		return v.(models.SentimentSnapshot), nil
	}

	var fr fngResp
	err := c.base.GetJSONWithRetry(ctx, "", map[string][]string{"limit": {"1"}}, &fr, c.attempts)
	if err != nil {
		return models.SentimentSnapshot{}, fmt.Errorf("fear greed: %w", err)
	}
	if len(fr.Data) == 0 {
		return models.SentimentSnapshot{}, fmt.Errorf("fear greed: empty payload")
	}
	val, err := strconv.Atoi(fr.Data[0].Value)
	if err != nil {
		return models.SentimentSnapshot{}, fmt.Errorf("fear greed value %q: %w", fr.Data[0].Value, err)
	}

	out := models.SentimentSnapshot{FearGreed: val, Label: fr.Data[0].Classification}
	c.cache.Set("fng", out, c.cacheTTL)
	return out, nil
}

var _ domsvc.SentimentSource = (*SentimentClient)(nil)
