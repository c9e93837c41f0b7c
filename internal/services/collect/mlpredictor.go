package collect

import (
	"context"
	"fmt"
	"time"

	"SigFusion/internal/domain/models"
	domsvc "SigFusion/internal/domain/service"
)

// MLClient asks the model service for its read on a symbol. No
// caching: the opinion depends on the features of the current round.
type MLClient struct {
	base     *HTTPSourceBase
	attempts int
}

func NewMLClient(baseURL string, timeout time.Duration, attempts int) *MLClient {
	return &MLClient{base: NewHTTPSourceBase(baseURL, timeout), attempts: attempts}
}

type mlReq struct {
	Symbol   string             `json:"symbol"`
	Features map[string]float64 `json:"features"`
}

type mlResp struct {
	Direction    string  `json:"direction"`
	Confidence   float64 `json:"confidence"`
	ShouldCancel bool    `json:"should_cancel"`
	Model        string  `json:"model"`
}

func (c *MLClient) Predict(ctx context.Context, symbol string, features map[string]float64) (models.MLOpinion, error) {
	var mr mlResp
	err := c.base.PostJSON(ctx, "/predict", mlReq{Symbol: symbol, Features: features}, &mr)
	if err != nil {
		return models.MLOpinion{}, fmt.Errorf("ml predict %s: %w", symbol, err)
	}
	return models.MLOpinion{
		Symbol:       symbol,
		Direction:    mr.Direction,
		Confidence:   mr.Confidence,
		ShouldCancel: mr.ShouldCancel,
		Model:        mr.Model,
	}, nil
}

var _ domsvc.MLPredictor = (*MLClient)(nil)
