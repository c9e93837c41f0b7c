package api

import (
	"encoding/json"
	"time"

	models "SigFusion/internal/domain/models"
	domrepo "SigFusion/internal/domain/repository"
	icache "SigFusion/internal/service/cache"
	"SigFusion/internal/service/metrics"
	"SigFusion/internal/service/ratelimit"
	"SigFusion/internal/usecase"
	xhttp "SigFusion/pkg/http"
	xlogger "SigFusion/pkg/logger"

	"github.com/labstack/echo/v4"
)

// FusionEchoHandler exposes the fusion pipeline over HTTP.
type FusionEchoHandler struct {
	logger  *xlogger.Logger
	fusion  *usecase.FusionUseCase
	scanner *usecase.Scanner
	candles *usecase.CandlesUseCase
	cache   icache.BytesCache
	rl      *ratelimit.Limiter
}

func NewFusionEchoHandler(logger *xlogger.Logger, fusion *usecase.FusionUseCase, scanner *usecase.Scanner, candles *usecase.CandlesUseCase) *FusionEchoHandler {
	metrics.Register()
	return &FusionEchoHandler{
		logger:  logger,
		fusion:  fusion,
		scanner: scanner,
		candles: candles,
		rl:      ratelimit.New(),
	}
}

// SetCache enables response caching for the read-only endpoints.
func (h *FusionEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *FusionEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/analyze", h.Analyze)
	g.GET("/verdict/:symbol", h.Verdict)
	g.GET("/top", h.Top)
	g.GET("/history", h.History)
	g.GET("/levels", h.Levels)
	g.GET("/leader", h.Leader)
	g.GET("/candles", h.Candles)
}

func (h *FusionEchoHandler) Candles(c echo.Context) error {
	start := time.Now()
	endpoint := "candles"
	defer func() { metrics.FusionLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	now := time.Now()
	from := xhttp.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
	to := xhttp.ParseTimeDefault(req.To, now)

	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Symbol:    req.Symbol,
		From:      from,
		To:        to,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Limit:     req.Limit,
	})
	if err != nil {
		metrics.FusionErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("candles usecase error", xlogger.Error(err), xlogger.String("symbol", req.Symbol))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FusionEchoHandler) Analyze(c echo.Context) error {
	start := time.Now()
	endpoint := "analyze"
	defer func() { metrics.FusionLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":analyze", 5, 2) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}

	v, err := h.fusion.Analyze(c.Request().Context(), req.Symbol, req.Fresh)
	if err != nil {
		metrics.FusionErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("analyze usecase error", xlogger.Error(err), xlogger.String("symbol", req.Symbol))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, v)
}

func (h *FusionEchoHandler) Verdict(c echo.Context) error {
	start := time.Now()
	endpoint := "verdict"
	defer func() { metrics.FusionLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.VerdictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	v, err := h.fusion.Verdict(c.Request().Context(), req.Symbol)
	if err != nil {
		metrics.FusionErrors.WithLabelValues(endpoint).Inc()
		h.logger.Warn("verdict lookup error", xlogger.Error(err), xlogger.String("symbol", req.Symbol))
		return xhttp.NotFoundResponse(c, err.Error())
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, v)
}

func (h *FusionEchoHandler) Top(c echo.Context) error {
	start := time.Now()
	endpoint := "top"
	defer func() { metrics.FusionLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.TopRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.scanner == nil {
		return xhttp.NotFoundResponse(c, "scanner not running")
	}
	return xhttp.SuccessResponse(c, h.scanner.Top(req.Limit))
}

func (h *FusionEchoHandler) History(c echo.Context) error {
	start := time.Now()
	endpoint := "history"
	defer func() { metrics.FusionLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	vs, err := h.fusion.History(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		metrics.FusionErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("history usecase error", xlogger.Error(err), xlogger.String("symbol", req.Symbol))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, vs)
}

type levelsPayload struct {
	Symbol     string           `json:"symbol"`
	Support    []models.SRLevel `json:"support"`
	Resistance []models.SRLevel `json:"resistance"`
}

func (h *FusionEchoHandler) Levels(c echo.Context) error {
	start := time.Now()
	endpoint := "levels"
	defer func() { metrics.FusionLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.LevelsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	_ = domrepo.NormalizeTimeframe(req.TF)

	cacheKey := "levels:" + req.Symbol
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err == nil && ok {
			var p levelsPayload
			if json.Unmarshal(b, &p) == nil {
				return xhttp.SuccessResponse(c, p)
			}
		}
	}

	sup, res, err := h.fusion.Levels(c.Request().Context(), req.Symbol)
	if err != nil {
		metrics.FusionErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("levels usecase error", xlogger.Error(err), xlogger.String("symbol", req.Symbol))
		return xhttp.AppErrorResponse(c, err)
	}
	p := levelsPayload{Symbol: req.Symbol, Support: sup, Resistance: res}
	if h.cache != nil {
		if b, err := json.Marshal(p); err == nil {
			_ = h.cache.SetBytes(cacheKey, b, 30*time.Second)
		}
	}
	return xhttp.SuccessResponse(c, p)
}

func (h *FusionEchoHandler) Leader(c echo.Context) error {
	entry, ok := h.fusion.Leader()
	if !ok {
		return xhttp.NotFoundResponse(c, "no live leader verdict")
	}
	return xhttp.SuccessResponse(c, entry)
}
