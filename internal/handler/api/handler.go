package api

import (
	"encoding/json"
	"net/http"
	"time"

	"SigPull/internal/domain/models"
	drepo "SigPull/internal/domain/repository"
	icache "SigPull/internal/service/cache"
	"SigPull/internal/service/extract"
	"SigPull/internal/service/metrics"
	"SigPull/internal/service/ratelimit"
	"SigPull/internal/usecase"
	pkgcache "SigPull/pkg/cache"
	xhttp "SigPull/pkg/http"
	applogger "SigPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Handler serves the signal extraction and validation endpoints.
type Handler struct {
	extractor *extract.Extractor
	validator *usecase.AssetValidator
	store     drepo.Storage
	cache     icache.BytesCache
	rl        *ratelimit.Limiter
	logger    *applogger.Logger
}

func NewHandler(extractor *extract.Extractor, validator *usecase.AssetValidator, store drepo.Storage, logger *applogger.Logger) *Handler {
	metrics.Register()
	return &Handler{
		extractor: extractor,
		validator: validator,
		store:     store,
		rl:        ratelimit.New(),
		logger:    logger,
	}
}

// SetCache injects a response cache for the read endpoints.
func (h *Handler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/extract", h.Extract)
	g.GET("/validate", h.Validate)
	g.GET("/signals", h.Signals)
	e.GET("/healthz", h.Health)
}

// ExtractResponse carries the signals parsed from a single message.
type ExtractResponse struct {
	Signals []*models.Signal `json:"signals"`
}

func (h *Handler) Extract(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("extract").Observe(time.Since(start).Seconds()) }()

	req := &models.ExtractRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	msg := &models.RawMessage{
		Platform:  models.Platform(req.Platform),
		Channel:   req.Channel,
		Text:      req.Text,
		Timestamp: time.Now().Unix(),
	}

	res := &ExtractResponse{Signals: []*models.Signal{}}
	if s := h.extractor.Extract(msg); s != nil {
		res.Signals = append(res.Signals, s)
		metrics.ExtractedSignals.WithLabelValues(string(s.Direction)).Inc()
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *Handler) Validate(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("validate").Observe(time.Since(start).Seconds()) }()

	req := &models.ValidateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":validate", 5, 2) {
		h.logger.Warn("api.validate rate_limited", applogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}

	res, err := h.validator.Validate(c.Request().Context(), req.Symbol)
	if err != nil {
		metrics.APIErrors.WithLabelValues("validate").Inc()
		h.logger.Error("api.validate error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UpstreamError("exchange data unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *Handler) Signals(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("signals").Observe(time.Since(start).Seconds()) }()

	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":signals", 5, 2) {
		h.logger.Warn("api.signals rate_limited", applogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}

	from, to := parseRange(req.From, req.To)

	cacheKey := pkgcache.GenerateKeyWithParams("signals", req.Symbol, req.From, req.To, req.Limit)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
			h.logger.Warn("api.signals cache_get_error", applogger.Error(err))
		} else if ok {
			h.logger.Debug("api.signals cache_hit", applogger.String("key", cacheKey))
			return c.JSONBlob(http.StatusOK, b)
		}
	}

	signals, err := h.store.Query(c.Request().Context(), req.Symbol, from, to, req.Limit)
	if err != nil {
		metrics.APIErrors.WithLabelValues("signals").Inc()
		h.logger.Error("api.signals error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if signals == nil {
		signals = []*models.Signal{}
	}

	if h.cache != nil {
		envelope := xhttp.APIResponse{
			Status:  http.StatusOK,
			Message: http.StatusText(http.StatusOK),
			Data:    &xhttp.ListDataResponse{Rows: signals, Total: int64(len(signals))},
		}
		if b, err := json.Marshal(envelope); err == nil {
			if err := h.cache.SetBytes(cacheKey, b, 30*time.Second); err != nil {
				h.logger.Warn("api.signals cache_set_error", applogger.Error(err))
			}
		}
	}
	return xhttp.ListResponse(c, signals, int64(len(signals)))
}

func (h *Handler) Health(c echo.Context) error {
	if h.store != nil {
		if err := h.store.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func parseRange(fromStr, toStr string) (time.Time, time.Time) {
	now := time.Now().UTC()
	from := xhttp.ParseTimeDefault(fromStr, now.Add(-24*time.Hour))
	to := xhttp.ParseTimeDefault(toStr, now)
	return from, to
}
